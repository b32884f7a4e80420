package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/artifact-organizer/internal/ledger"
	"github.com/pdiddy/artifact-organizer/internal/logger"
	"github.com/pdiddy/artifact-organizer/internal/organize"
	"github.com/pdiddy/artifact-organizer/pkg/types"
)

// errDocumentsFailed is returned under --strict when any document failed.
var errDocumentsFailed = errors.New("one or more documents failed")

// organizeFlagKeys maps organize flags to their configuration keys.
var organizeFlagKeys = map[string]string{
	"roots":    "allowed_roots",
	"exclude":  "exclude_dirs",
	"atomic":   "atomic",
	"dry-run":  "dry_run",
	"ledger":   "ledger_path",
	"manifest": "manifest_path",
	"strict":   "strict",
}

var organizeCmd = &cobra.Command{
	Use:   "organize <source-dir> <dest-dir>",
	Short: "Extract embedded files from artifact documents into a directory tree",
	Long: `Organize walks source-dir recursively, reads every regular file as UTF-8
text and splits it at file path markers. Each embedded file is written to
dest-dir joined with its marker path; parent directories are created and
existing files are overwritten.

A document that cannot be read or written is reported and skipped. The
command exits non-zero only when the run cannot start, or with --strict
when any document failed.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runOrganize,
}

func init() {
	organizeCmd.Flags().StringSlice("roots", types.DefaultAllowedRoots, "top-level directory names a marker path may start with")
	organizeCmd.Flags().StringSlice("exclude", nil, "directory names to skip while walking source-dir (e.g. .git)")
	organizeCmd.Flags().Bool("atomic", false, "write each file through a temporary file and rename")
	organizeCmd.Flags().Bool("dry-run", false, "print the files that would be written without writing them")
	organizeCmd.Flags().String("ledger", "", "SQLite ledger recording runs and written files")
	organizeCmd.Flags().String("manifest", "", "write a YAML manifest of the run to this path")
	organizeCmd.Flags().Bool("strict", false, "exit non-zero if any document failed")

	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, organizeFlagKeys); err != nil {
		return err
	}
	cfg := organizerConfig(args[0], args[1])

	var rec organize.Recorder
	if cfg.LedgerPath != "" && cfg.DryRun {
		logger.Warn("dry run: not recording in ledger %s", cfg.LedgerPath)
	}
	if cfg.LedgerPath != "" && !cfg.DryRun {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer store.Close()
		rec = store
	}

	o, err := organize.New(cfg, rec)
	if err != nil {
		return err
	}

	summary, err := o.Run(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if cfg.Strict && summary.HasFailures() {
		return fmt.Errorf("%w: %d of %d", errDocumentsFailed, summary.Failed, summary.Total())
	}
	return nil
}

// organizerConfig builds the run configuration from the positional
// directories and the resolved flag, environment and file settings.
func organizerConfig(sourceDir, destDir string) types.OrganizerConfig {
	return types.OrganizerConfig{
		SourceDir:    sourceDir,
		DestDir:      destDir,
		AllowedRoots: viper.GetStringSlice("allowed_roots"),
		ExcludeDirs:  viper.GetStringSlice("exclude_dirs"),
		Atomic:       viper.GetBool("atomic"),
		DryRun:       viper.GetBool("dry_run"),
		LedgerPath:   viper.GetString("ledger_path"),
		ManifestPath: viper.GetString("manifest_path"),
		Strict:       viper.GetBool("strict"),
	}
}
