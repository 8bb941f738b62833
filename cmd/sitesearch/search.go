package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitesearch/internal/config"
	"github.com/nao1215/sitesearch/internal/database"
	"github.com/nao1215/sitesearch/internal/fetch"
	"github.com/nao1215/sitesearch/internal/model"
	"github.com/nao1215/sitesearch/internal/report"
	"github.com/nao1215/sitesearch/internal/search"
	"github.com/nao1215/sitesearch/internal/snippet"
)

// saveTimeout bounds writing one report to the history database. Saving
// runs even after the search was interrupted.
const saveTimeout = 5 * time.Second

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <url>...",
		Short: "Crawl a website and show where a query occurs",
		Long: `Search crawls a website starting at each given URL and prints every sentence
context in which the query occurs.

Only links on the same origin (scheme, host and port) as the start URL are
followed. Each context is the matching sentence together with the sentence
before and after it, and every occurrence of the query is marked with ✅.
Matching is case-insensitive and literal.

Examples:
  # Search a documentation site two links deep (the default)
  sitesearch search https://go.dev/doc/ -q generics

  # Only look at the start page
  sitesearch search https://example.com/ -q "contact us" -d 0

  # Search several sites at once and write a Markdown report
  sitesearch search https://a.example/ https://b.example/ -q pricing -m -o report.md

  # Output JSON and do not record the search in the history database
  sitesearch search https://example.com/ -q privacy --json --no-save

Configuration file (.sitesearch) example:
  sites:
    docs.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("query", "q", "", "Text to search for (required)")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of link hops from the start URL")

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched at the same time")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per start URL (0 = no limit)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of start URLs searched at the same time")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("marker", config.DefaultMarker,
		"Marker inserted before every occurrence of the query")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not record the search in the history database")

	_ = cmd.MarkFlagRequired("query") //nolint:errcheck // flag is defined above

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildSearchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateSearch(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	reqs := buildRequests(cfg, cmd.Flags().Changed("depth"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSearch(ctx, cfg, reqs, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildSearchConfig creates a Config from cobra command flags.
func buildSearchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	flags := cmd.Flags()

	if cfg.Query, err = flags.GetString("query"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Marker, err = flags.GetString("marker"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.Targets = args

	return cfg, nil
}

// buildRequests turns the targets into search requests. A site's
// configured depth is used unless the depth flag was given explicitly.
func buildRequests(cfg *config.Config, depthFromFlag bool) []model.SearchRequest {
	reqs := make([]model.SearchRequest, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		depth := cfg.MaxDepth
		if !depthFromFlag && cfg.SiteConfigs != nil {
			if site := cfg.SiteConfigs.SiteConfigForURL(target); site.Depth > 0 {
				depth = site.Depth
			}
		}
		reqs = append(reqs, model.SearchRequest{
			StartURL: target,
			Query:    cfg.Query,
			MaxDepth: depth,
		})
	}
	return reqs
}

// newServiceFactory returns a factory building one search.Service per
// request, with the cookie, headers and URL patterns configured for the
// request's host.
func newServiceFactory(cfg *config.Config, logger *slog.Logger) search.ServiceFactory {
	extractor := snippet.NewExtractor(
		snippet.WithHighlighter(snippet.NewHighlighter(snippet.WithMarker(cfg.Marker))),
	)

	return func(req model.SearchRequest) *search.Service {
		var site config.SiteConfig
		if cfg.SiteConfigs != nil {
			site = cfg.SiteConfigs.SiteConfigForURL(req.StartURL)
		}

		client, err := fetch.NewHTTPClient(
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithSOCKS5Proxy(cfg.ProxyAddress),
			fetch.WithCookie(site.Cookie),
			fetch.WithHeaders(site.Headers),
		)
		if err != nil {
			// Only an invalid proxy fails here and checkProxy rejects that
			// up front. A nil client makes the fetcher use the defaults.
			logger.Error("failed to create HTTP client", "url", req.StartURL, "error", err)
		}

		fetcher := fetch.NewHTTPFetcher(client,
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithMaxBodySize(cfg.MaxBodySize),
			fetch.WithLogger(logger),
		)

		return search.NewService(fetcher,
			search.WithWorkers(cfg.Concurrency),
			search.WithMaxPages(cfg.MaxPages),
			search.WithExtractor(extractor),
			search.WithPatterns(site.IgnorePatterns, site.FollowPatterns),
			search.WithLogger(logger),
		)
	}
}

// checkProxy fails early when the proxy address cannot be used.
func checkProxy(address string) error {
	if address == "" {
		return nil
	}
	if _, err := fetch.NewHTTPClient(fetch.WithSOCKS5Proxy(address)); err != nil {
		return fmt.Errorf("invalid proxy %q: %w", address, err)
	}
	return nil
}

// runSearch executes the searches, prints the report and records it in the
// history database. Progress and history notes go to errOut so that
// stdout only carries the report.
func runSearch(ctx context.Context, cfg *config.Config, reqs []model.SearchRequest, out, errOut io.Writer, logger *slog.Logger) error {
	for _, req := range reqs {
		if err := search.ValidateRequest(req); err != nil {
			return fmt.Errorf("invalid search for %q: %w", req.StartURL, err)
		}
	}
	if err := checkProxy(cfg.ProxyAddress); err != nil {
		return err
	}

	var db *database.SearchDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	factory := newServiceFactory(cfg, logger)

	var (
		reports   []*model.SearchReport
		searchErr error
	)
	if len(reqs) == 1 {
		fmt.Fprintf(errOut, "Searching %s for %q...\n", reqs[0].StartURL, reqs[0].Query)
		var rep *model.SearchReport
		rep, searchErr = factory(reqs[0]).Search(ctx, reqs[0])
		if rep == nil {
			return searchErr
		}
		reports = []*model.SearchReport{rep}
	} else {
		reports, searchErr = runBatchSearch(ctx, cfg, reqs, factory, errOut, logger)
	}

	if err := writeReports(cfg, out, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if err := saveReport(ctx, db, rep, errOut); err != nil {
			logger.Error("failed to save search report", "id", rep.ID, "error", err)
		}
	}

	if searchErr != nil {
		return fmt.Errorf("search interrupted: %w", searchErr)
	}
	return nil
}

// runBatchSearch searches several start URLs concurrently.
func runBatchSearch(
	ctx context.Context,
	cfg *config.Config,
	reqs []model.SearchRequest,
	factory search.ServiceFactory,
	errOut io.Writer,
	logger *slog.Logger,
) ([]*model.SearchReport, error) {
	fmt.Fprintf(errOut, "Searching %d sites for %q (concurrency: %d)...\n",
		len(reqs), cfg.Query, cfg.BatchSize)

	bp := search.NewBatchProcessor(factory,
		search.WithConcurrency(cfg.BatchSize),
		search.WithBatchLogger(logger),
	)

	reports := make([]*model.SearchReport, len(reqs))
	var (
		mu   sync.Mutex
		done int
	)
	err := bp.ProcessBatchWithCallback(ctx, reqs, func(rep *model.SearchReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = rep
		done++
		fmt.Fprintf(errOut, "[%d/%d] %s: %d page(s) matched\n",
			done, len(reqs), rep.Request.StartURL, len(rep.Results))
	})

	return reports, err
}

// writeReports writes the reports in the format selected by cfg, either to
// out or to cfg.ReportFile.
func writeReports(cfg *config.Config, out io.Writer, reports []*model.SearchReport) error {
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := newReportWriter(cfg, out)
	if len(reports) == 1 {
		_, err := w.Write(reports[0])
		return err
	}
	_, err := w.WriteBatch(reports)
	return err
}

// createReportFile creates or truncates path with owner-only permissions.
// Reports may include pages fetched with a session cookie.
func createReportFile(path string) (*os.File, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// newReportWriter returns the report writer selected by cfg.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// saveReport records rep in db and tells the user whether the results
// differ from the previous search for the same URL and query.
// If db is nil, this function is a no-op.
func saveReport(ctx context.Context, db *database.SearchDB, rep *model.SearchReport, errOut io.Writer) error {
	if db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	prev, err := db.LatestFor(ctx, rep.Request.StartURL, rep.Request.Query, rep.ID)
	if err != nil {
		return err
	}

	if err := db.SaveReport(ctx, rep); err != nil {
		return err
	}

	if note := changeNote(prev, rep); note != "" {
		fmt.Fprintln(errOut, note)
	}
	return nil
}

// changeNote describes how rep compares to the previous search prev.
// Partial results are never compared.
func changeNote(prev *database.ReportMetadata, rep *model.SearchReport) string {
	if prev == nil || prev.TimedOut || rep.TimedOut {
		return ""
	}

	since := prev.Timestamp.Local().Format(time.DateTime)
	if prev.Digest == rep.Digest {
		return fmt.Sprintf("Results for %s are unchanged since the search on %s (%s).",
			rep.Request.StartURL, since, shortID(prev.ID))
	}
	return fmt.Sprintf("Results for %s changed since the search on %s (%s): %d -> %d page(s) matched.",
		rep.Request.StartURL, since, shortID(prev.ID), prev.PagesMatched, len(rep.Results))
}

// shortID returns the first 8 characters of a report ID, enough to select
// it with "sitesearch history show".
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
