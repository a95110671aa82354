package cli

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/logging"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/rewrite"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/sanitize"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/webdav"
)

var (
	runDryRun      bool
	runOverwrite   bool
	runReplacement string
	runServer      string
	runUsername    string
	runInsecure    bool
	runTimeout     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Sanitize every entry below a remote folder",
	Long: `Run walks the folder tree rooted at <path> on the server, depth-first, and
renames entries whose names Windows rejects. <path> is relative to the
account's files root, e.g. / or /Documents.

With --dry-run the planned renames are logged and nothing is changed.
When a sanitized name is already taken the entry gets a _1 suffix instead,
or replaces the existing entry when --overwrite is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runServer != "" {
			cfg.ServerURL = runServer
		}
		if runUsername != "" {
			cfg.Username = runUsername
		}
		if cmd.Flags().Changed("replacement") {
			cfg.Replacement = runReplacement
		}
		if cmd.Flags().Changed("insecure") {
			cfg.Insecure = runInsecure
		}
		cfg.DryRun = runDryRun
		cfg.Overwrite = runOverwrite
		if err := cfg.Validate(); err != nil {
			return err
		}

		root := normalizeRoot(args[0])

		client, err := webdav.New(webdav.Config{
			BaseURL:  webdav.DavURL(cfg.ServerURL, cfg.Username),
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  runTimeout,
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return err
		}

		ctx := context.Background()
		ok, err := client.Exists(ctx, root)
		if err != nil {
			return fmt.Errorf("checking %s: %w", root, err)
		}
		if !ok {
			return fmt.Errorf("remote path %s does not exist", root)
		}

		rw := rewrite.New(client, sanitize.New(cfg.ReplacementRune()), rewrite.Options{
			DryRun:    cfg.DryRun,
			Overwrite: cfg.Overwrite,
		})

		start := time.Now()
		rw.Walk(ctx, root)
		elapsed := time.Since(start)

		stats := rw.Stats()
		logging.Info("run complete",
			logging.String("root", root),
			logging.Int("visited", stats.Visited),
			logging.Int("renamed", stats.Renamed),
			logging.Int("skipped", stats.Skipped),
			logging.Int("collisions", stats.Collisions),
			logging.Int("failed", stats.Failed),
			logging.Int("listing_failures", stats.ListFailures),
			logging.Duration("elapsed", elapsed))

		printSummary(stats, cfg.DryRun, elapsed)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "n", false, "Log planned renames without changing anything")
	runCmd.Flags().BoolVar(&runOverwrite, "overwrite", false, "Replace an existing entry that blocks a rename (destructive)")
	runCmd.Flags().StringVarP(&runReplacement, "replacement", "r", "_", "Replacement for illegal characters")
	runCmd.Flags().StringVar(&runServer, "server", "", "Nextcloud base URL (overrides saved credentials and environment)")
	runCmd.Flags().StringVar(&runUsername, "username", "", "Nextcloud account name (overrides saved credentials and environment)")
	runCmd.Flags().BoolVar(&runInsecure, "insecure", false, "Skip TLS certificate verification")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "HTTP request timeout")
}

// normalizeRoot turns the positional argument into a clean absolute remote
// path. Surrounding whitespace is shell spillover, not part of the name.
func normalizeRoot(arg string) string {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "/") {
		arg = "/" + arg
	}
	return path.Clean(arg)
}

// printSummary renders the end-of-run report: the rename pairs first, then
// the counters, with failures called out.
func printSummary(stats *rewrite.Stats, dryRun bool, elapsed time.Duration) {
	fmt.Println()
	if dryRun {
		PrintWarning("Dry run: nothing was changed")
	}

	if len(stats.Renames) > 0 {
		verb := "Renamed"
		if dryRun {
			verb = "Would rename"
		}
		_, _ = headerColor.Printf("%s %s:\n", verb, PrintCount(len(stats.Renames), "entry", "entries"))
		for _, rn := range stats.Renames {
			fmt.Printf("  %s %s %s\n", rn.From, dimColor.Sprint("->"), rn.To)
		}
		fmt.Println()
	}

	PrintSuccess(fmt.Sprintf("Visited %s in %s",
		PrintCount(stats.Visited, "entry", "entries"), elapsed.Round(time.Millisecond)))
	PrintLabelValue("Renamed", strconv.Itoa(stats.Renamed))
	PrintLabelValue("Skipped", strconv.Itoa(stats.Skipped))
	PrintLabelValue("Collisions", strconv.Itoa(stats.Collisions))
	if stats.Failed > 0 || stats.ListFailures > 0 {
		PrintError(fmt.Sprintf("%s could not be renamed, %s failed",
			PrintCount(stats.Failed, "entry", "entries"),
			PrintCount(stats.ListFailures, "listing", "listings")))
	}
}
