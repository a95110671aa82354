package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/config"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/webdav"
)

var (
	loginServer   string
	loginUsername string
	loginInsecure bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save Nextcloud credentials for later runs",
	Long: `Login prompts for the server URL, account name and app password, verifies
them against the server, and saves them for later runs. Generate an app
password in Nextcloud under Settings > Security > Devices & sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		server := loginServer
		if server == "" {
			fmt.Print("Server URL: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading server URL: %w", err)
			}
			server = strings.TrimSpace(line)
		}
		if !strings.Contains(server, "://") {
			return fmt.Errorf("server URL %q must include a scheme, e.g. https://cloud.example.com", server)
		}

		username := loginUsername
		if username == "" {
			fmt.Print("Username: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading username: %w", err)
			}
			username = strings.TrimSpace(line)
		}

		fmt.Print("App password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password := string(passwordBytes)

		client, err := webdav.New(webdav.Config{
			BaseURL:  webdav.DavURL(server, username),
			Username: username,
			Password: password,
			Insecure: loginInsecure,
		})
		if err != nil {
			return err
		}
		ok, err := client.Exists(context.Background(), "/")
		if err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}
		if !ok {
			return fmt.Errorf("no DAV root for %s on %s", username, server)
		}

		if err := config.SaveCredentials(&config.Credentials{
			ServerURL: server,
			Username:  username,
			Password:  password,
		}); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		path, _ := config.CredentialsPath()
		PrintSuccess(fmt.Sprintf("Logged in as %s. Credentials saved to %s", username, path))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the saved credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.DeleteCredentials(); err != nil {
			return fmt.Errorf("deleting credentials: %w", err)
		}
		PrintSuccess("Credentials removed")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "Nextcloud base URL, e.g. https://cloud.example.com")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Nextcloud account name")
	loginCmd.Flags().BoolVar(&loginInsecure, "insecure", false, "Skip TLS certificate verification")
}
