// Package cli implements the nextcloud-sanitize command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/config"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/logging"
)

var (
	// Persistent flags
	verbose   bool
	logFormat string
	logFile   string

	// cfg is assembled once before any command runs; run merges its own
	// flags on top and validates the result.
	cfg *config.Config
)

// rootCmd is the root command for nextcloud-sanitize.
var rootCmd = &cobra.Command{
	Use:     "nextcloud-sanitize",
	Version: "dev",
	Short:   "Rename Nextcloud files that Windows cannot sync",
	Long: `nextcloud-sanitize walks a folder tree on a Nextcloud server over WebDAV and
renames every file or folder whose name Windows rejects: names containing
\ / : * ? " < > | or reserved device names such as CON, COM1 or LPT1.

Renames happen server-side; no file content is transferred.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = "debug"
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if logFile != "" {
			cfg.LogFile = logFile
		}
		return logging.Init(logging.Config{
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			LogFile: cfg.LogFile,
		})
	},
}

// SetVersion stamps the build version onto the root command.
func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log records to this file as well as stderr")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the nextcloud-sanitize version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(os.Stdout, rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// Execute runs the root command and flushes buffered log records.
func Execute() error {
	err := rootCmd.Execute()
	_ = logging.Sync()
	return err
}
