package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/artifact-organizer/internal/ledger"
)

// latestRun selects the most recent run in --run.
const latestRun = "latest"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past organize runs and the files they wrote",
	Long: `History reads the ledger written by "organize --ledger" and lists past
runs, newest first. With --run (an id, or "latest") or --path it lists the
files written instead, each with the document it came from.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runHistory,
}

func init() {
	historyCmd.Flags().String("ledger", "", "SQLite ledger to read")
	historyCmd.Flags().String("run", "", `list files written by this run id ("latest" for the newest run)`)
	historyCmd.Flags().String("path", "", "list files whose marker path contains this text")
	historyCmd.Flags().String("document", "", "list files produced by this source document")
	historyCmd.Flags().Int("limit", ledger.DefaultLimit, "maximum number of rows")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyCmd.Flags().Bool("yaml", false, "output as YAML")
	historyCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	rootCmd.AddCommand(historyCmd)
}

// outputFormat selects how history results are printed.
type outputFormat int

const (
	formatTable outputFormat = iota
	formatJSON
	formatYAML
)

func runHistory(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"ledger": "ledger_path"}); err != nil {
		return err
	}
	path := viper.GetString("ledger_path")
	if path == "" {
		return fmt.Errorf("no ledger configured: pass --ledger or set ledger_path")
	}

	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, _ := cmd.Flags().GetString("run")
	pathFilter, _ := cmd.Flags().GetString("path")
	document, _ := cmd.Flags().GetString("document")
	limit, _ := cmd.Flags().GetInt("limit")
	format := historyFormat(cmd)
	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	if runID == "" && pathFilter == "" && document == "" {
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			return err
		}
		return formatRuns(w, runs, format)
	}

	if runID == latestRun {
		run, err := store.LatestRun(ctx)
		if errors.Is(err, ledger.ErrNoRuns) {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		if err != nil {
			return err
		}
		runID = run.ID
	}

	files, err := store.Files(ctx, ledger.FileQuery{
		RunID:    runID,
		Path:     pathFilter,
		Document: document,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return formatFiles(w, files, format)
}

func historyFormat(cmd *cobra.Command) outputFormat {
	if v, _ := cmd.Flags().GetBool("json"); v {
		return formatJSON
	}
	if v, _ := cmd.Flags().GetBool("yaml"); v {
		return formatYAML
	}
	return formatTable
}

func encode(w io.Writer, v any, format outputFormat) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %d", format)
}

func formatRuns(w io.Writer, runs []ledger.Run, format outputFormat) error {
	if format != formatTable {
		if runs == nil {
			runs = []ledger.Run{}
		}
		return encode(w, runs, format)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-5s  %-6s  %-5s  %s\n",
		"Run", "Started", "Docs", "Empty", "Failed", "Files", "Destination")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range runs {
		started := r.StartedAt.Local().Format(time.DateTime)
		failed := fmt.Sprint(r.Summary.Failed)
		if !r.Finished() {
			failed = "-"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-5d  %-5d  %-6s  %-5d  %s\n",
			r.ID, started, r.Summary.Documents, r.Summary.Empty, failed, r.Summary.Files,
			truncate(r.DestDir, 40))
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

func formatFiles(w io.Writer, files []ledger.FileEntry, format outputFormat) error {
	if format != formatTable {
		if files == nil {
			files = []ledger.FileEntry{}
		}
		return encode(w, files, format)
	}

	if len(files) == 0 {
		fmt.Fprintln(w, "No files found.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-50s  %-8s  %-12s  %s\n",
		"Run", "Path", "Bytes", "SHA-256", "Document")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, f := range files {
		fmt.Fprintf(w, "%-8s  %-50s  %-8d  %-12s  %s\n",
			prefix(f.RunID, 8), truncate(f.Path, 50), f.Bytes, prefix(f.SHA256, 12),
			truncate(f.Document, 30))
	}

	fmt.Fprintf(w, "\n%d files\n", len(files))
	return nil
}

// truncate shortens s to n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
