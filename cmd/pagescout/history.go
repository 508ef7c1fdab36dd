package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/nao1215/pagescout/internal/config"
	"github.com/nao1215/pagescout/internal/database"
	"github.com/nao1215/pagescout/internal/report"
	"github.com/spf13/cobra"
)

// Content change markers used by the page history listing.
const (
	contentChanged   = "changed"
	contentUnchanged = "unchanged"
	contentFirst     = "first"
	contentEmpty     = "empty"
)

// historyDateLayout is the timestamp format of history listings.
const historyDateLayout = "2006-01-02 15:04"

// NewHistoryCmd creates the history command.
// This command reads runs stored by 'pagescout run'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs and page content history",
		Long: `History reads the runs saved by 'pagescout run'.

Without flags it lists the most recent runs with their outcome counts.
With --run it exports a stored run again in any format. With --homepage
it shows, for one page type, which URL was used in each run and whether
the extracted text changed since the previous run.

Examples:
  # List recent runs
  pagescout history

  # Export a stored run as Markdown (a unique ID prefix is enough)
  pagescout history --run 3f1c2a9e -f markdown -o report.md

  # Show how the About page of a website changed across runs
  pagescout history --homepage https://example.org/ --page-type About`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringP("run", "r", "",
		"Export the stored run with this ID or unique ID prefix")
	cmd.Flags().String("homepage", "",
		"Show the content history of this homepage")
	cmd.Flags().StringP("page-type", "P", "About",
		"Page type for --homepage")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Export format for --run: "+strings.Join(report.Formats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write the --run export to specified file path")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	runID, err := flags.GetString("run")
	if err != nil {
		return err
	}
	homepage, err := flags.GetString("homepage")
	if err != nil {
		return err
	}
	if runID != "" && homepage != "" {
		return errors.New("--run and --homepage cannot be used together")
	}

	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if runID != "" && !slices.Contains(report.Formats, format) {
		return fmt.Errorf("%w: %s", report.ErrUnknownFormat, format)
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	out := cmd.OutOrStdout()

	// Reading history never creates a database.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'pagescout run <homepage>' to process websites.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case runID != "":
		output, err := flags.GetString("output")
		if err != nil {
			return err
		}
		cfg := &config.Config{Format: format, OutputFile: output}
		return exportStoredRun(ctx, db, runID, cfg, out)
	case homepage != "":
		pageType, err := flags.GetString("page-type")
		if err != nil {
			return err
		}
		return listContentHistory(ctx, db, out, homepage, pageType)
	default:
		limit, err := flags.GetInt("limit")
		if err != nil {
			return err
		}
		return listRuns(ctx, db, out, limit)
	}
}

// listRuns prints the most recent runs with their outcome counts.
func listRuns(ctx context.Context, db *database.ResultDB, out io.Writer, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'pagescout run <homepage>' to process websites.")
		return nil
	}

	fmt.Fprintf(out, "Stored runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-16s  %-9s  %-7s  %-7s  %-11s  %-9s  %s\n",
		"ID", "Finished", "Websites", "Success", "Blocked", "Unreachable", "Fallbacks", "Page Types")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-8s  %-16s  %-9d  %-7d  %-7d  %-11d  %-9d  %s\n",
			shortID(r.ID),
			r.FinishedAt.Local().Format(historyDateLayout),
			r.Homepages, r.Success, r.EmptyOrBlocked, r.Unreachable, r.Fallbacks,
			strings.Join(r.PageTypes, ", "),
		)
	}
	fmt.Fprintln(out, "\nUse 'pagescout history --run <id>' to export a run again.")

	return nil
}

// exportStoredRun writes a stored run in the requested format.
func exportStoredRun(ctx context.Context, db *database.ResultDB, id string, cfg *config.Config, out io.Writer) error {
	run, records, err := db.LoadRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", id, err)
	}

	export := &report.Export{
		RunID:       run.ID,
		GeneratedAt: run.FinishedAt,
		PageTypes:   run.PageTypes,
		Records:     records,
	}
	return outputExport(cfg, export, out)
}

// listContentHistory prints the stored versions of one page type of one
// homepage, newest first, marking whether the text changed.
func listContentHistory(ctx context.Context, db *database.ResultDB, out io.Writer, homepage, pageType string) error {
	versions, err := db.ContentHistory(ctx, homepage, pageType)
	if err != nil {
		return fmt.Errorf("failed to get content history: %w", err)
	}

	if len(versions) == 0 {
		fmt.Fprintf(out, "No %s history found for %s\n", pageType, homepage)
		return nil
	}

	fmt.Fprintf(out, "%s history for %s (%d runs):\n\n", pageType, homepage, len(versions))
	fmt.Fprintf(out, "  %-8s  %-16s  %-10s  %-17s  %-14s  %-7s  %s\n",
		"Run", "Finished", "Content", "Source", "Outcome", "Length", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))

	for i, v := range versions {
		var previous *database.ContentVersion
		if i+1 < len(versions) {
			previous = &versions[i+1]
		}
		fmt.Fprintf(out, "  %-8s  %-16s  %-10s  %-17s  %-14s  %-7d  %s\n",
			shortID(v.RunID),
			v.FinishedAt.Local().Format(historyDateLayout),
			contentChange(v, previous),
			v.Source, v.Outcome, v.Length, v.URL,
		)
	}

	return nil
}

// contentChange compares a version with the one stored by the previous run.
// previous is nil for the oldest version.
func contentChange(v database.ContentVersion, previous *database.ContentVersion) string {
	switch {
	case v.Digest == "":
		return contentEmpty
	case previous == nil:
		return contentFirst
	case v.Digest == previous.Digest:
		return contentUnchanged
	default:
		return contentChanged
	}
}

// shortID returns the first 8 characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
