package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitesearch/internal/config"
	"github.com/nao1215/sitesearch/internal/database"
	"github.com/nao1215/sitesearch/internal/model"
)

// defaultHistoryLimit is the number of searches listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved searches",
		Long: `History lists the searches recorded in the history database, newest first.

Every search run with 'sitesearch search' or through 'sitesearch serve' is
saved unless --no-save is given. Reports are identified by an ID; any unique
prefix of the ID is accepted.

Examples:
  # List the latest searches
  sitesearch history

  # List searches of one site for one query
  sitesearch history --url https://go.dev/ --query generics

  # Print a saved report as Markdown
  sitesearch history show 3f2a9c1e --markdown

  # Show which pages changed between two searches
  sitesearch history compare 3f2a9c1e 8b41d07a

  # Delete a saved report
  sitesearch history delete 3f2a9c1e`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}

	cmd.Flags().String("url", "", "Only list searches of this start URL")
	cmd.Flags().String("query", "", "Only list searches for this query")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of searches listed (0 = all)")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryCompareCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved search report",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")

	return cmd
}

func newHistoryCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <old-id> <new-id>",
		Short: "Show which pages changed between two saved searches",
		Args:  cobra.ExactArgs(2),
		RunE:  runHistoryCompareCmd,
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved search report",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
}

// openHistory opens the history database in the XDG data directory.
func openHistory() (*database.SearchDB, error) {
	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	var (
		filter database.ListFilter
		err    error
	)
	if filter.StartURL, err = cmd.Flags().GetString("url"); err != nil {
		return err
	}
	if filter.Query, err = cmd.Flags().GetString("query"); err != nil {
		return err
	}
	if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	return listHistory(cmd.Context(), db, filter, cmd.OutOrStdout())
}

// listHistory prints one line per saved search.
func listHistory(ctx context.Context, db *database.SearchDB, filter database.ListFilter, out io.Writer) error {
	reports, err := db.ListReports(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list search history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintln(out, "No saved searches found.")
		fmt.Fprintln(out, "\nUse 'sitesearch search <url> -q <query>' to run a search.")
		return nil
	}

	fmt.Fprintf(out, "Saved searches (%d):\n\n", len(reports))
	fmt.Fprintf(out, "  %-8s  %-19s  %-7s  %-7s  %s\n", "ID", "Date", "Pages", "Matches", "Search")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, meta := range reports {
		status := ""
		if meta.TimedOut {
			status = " (partial)"
		}
		fmt.Fprintf(out, "  %-8s  %-19s  %-7d  %-7d  %s %q%s\n",
			shortID(meta.ID),
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.PagesMatched,
			meta.ContextCount,
			meta.StartURL,
			meta.Query,
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitesearch history show <id>' to print a report.")
	return nil
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	return showReport(cmd.Context(), db, args[0], cfg, cmd.OutOrStdout())
}

// showReport prints the saved report selected by id.
func showReport(ctx context.Context, db *database.SearchDB, id string, cfg *config.Config, out io.Writer) error {
	rep, err := findReport(ctx, db, id)
	if err != nil {
		return err
	}
	_, err = newReportWriter(cfg, out).Write(rep)
	return err
}

// findReport looks up a report by ID or unique ID prefix.
func findReport(ctx context.Context, db *database.SearchDB, id string) (*model.SearchReport, error) {
	rep, err := db.FindReport(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrAmbiguousID) {
			return nil, fmt.Errorf("%w (use more characters of the ID)", err)
		}
		return nil, fmt.Errorf("failed to get search report: %w", err)
	}
	if rep == nil {
		return nil, fmt.Errorf("search report %q not found", id)
	}
	return rep, nil
}

func runHistoryCompareCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	return compareHistory(cmd.Context(), db, args[0], args[1], cmd.OutOrStdout())
}

// compareHistory prints the differences between two saved reports.
func compareHistory(ctx context.Context, db *database.SearchDB, oldID, newID string, out io.Writer) error {
	previous, err := findReport(ctx, db, oldID)
	if err != nil {
		return err
	}
	current, err := findReport(ctx, db, newID)
	if err != nil {
		return err
	}

	diff := compareReports(previous, current)

	fmt.Fprintf(out, "Comparing %s (%s) with %s (%s)\n",
		shortID(previous.ID), previous.StartedAt.Local().Format("2006-01-02 15:04:05"),
		shortID(current.ID), current.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if previous.Request != current.Request {
		fmt.Fprintln(out, "Note: the two searches used different start URLs, queries or depths.")
	}

	if diff.Unchanged() {
		fmt.Fprintln(out, "\nNo changes.")
		return nil
	}

	printURLs(out, "New pages", diff.Added)
	printURLs(out, "Pages no longer matching", diff.Removed)
	printURLs(out, "Pages with changed contexts", diff.Changed)
	return nil
}

func printURLs(out io.Writer, title string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  • %s\n", u)
	}
}

// resultDiff lists the page URLs that differ between two reports.
type resultDiff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Unchanged reports whether both reports found the same contexts on the
// same pages.
func (d resultDiff) Unchanged() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// compareReports compares the results of two reports page by page.
// Every list is sorted.
func compareReports(previous, current *model.SearchReport) resultDiff {
	before := make(map[string][]string, len(previous.Results))
	for _, r := range previous.Results {
		before[r.URL] = r.Contexts
	}

	var diff resultDiff
	seen := make(map[string]struct{}, len(current.Results))
	for _, r := range current.Results {
		seen[r.URL] = struct{}{}
		old, ok := before[r.URL]
		switch {
		case !ok:
			diff.Added = append(diff.Added, r.URL)
		case !slices.Equal(old, r.Contexts):
			diff.Changed = append(diff.Changed, r.URL)
		}
	}
	for u := range before {
		if _, ok := seen[u]; !ok {
			diff.Removed = append(diff.Removed, u)
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.Sort(diff.Changed)
	return diff
}

func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	return deleteReport(cmd.Context(), db, args[0], cmd.OutOrStdout())
}

// deleteReport removes the saved report selected by id.
func deleteReport(ctx context.Context, db *database.SearchDB, id string, out io.Writer) error {
	rep, err := findReport(ctx, db, id)
	if err != nil {
		return err
	}

	deleted, err := db.DeleteReport(ctx, rep.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("search report %q not found", id)
	}

	fmt.Fprintf(out, "Deleted search report %s\n", rep.ID)
	return nil
}
