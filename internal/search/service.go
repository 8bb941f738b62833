package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/sitesearch/internal/crawler"
	"github.com/nao1215/sitesearch/internal/fetch"
	"github.com/nao1215/sitesearch/internal/model"
	"github.com/nao1215/sitesearch/internal/snippet"
)

// Service crawls a site and collects the context windows around every
// occurrence of a query.
type Service struct {
	fetcher   fetch.Fetcher
	extractor *snippet.Extractor
	logger    *slog.Logger

	workers        int
	maxPages       int
	ignorePatterns []string
	followPatterns []string
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets the number of concurrent fetches per search.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxPages caps the number of pages fetched per search. 0 means no limit.
func WithMaxPages(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxPages = n
		}
	}
}

// WithExtractor replaces the default context extractor.
func WithExtractor(e *snippet.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithPatterns restricts which URL paths are crawled. See
// crawler.WithIgnorePatterns and crawler.WithFollowPatterns.
func WithPatterns(ignore, follow []string) Option {
	return func(s *Service) {
		s.ignorePatterns = ignore
		s.followPatterns = follow
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service that fetches pages with fetcher.
func NewService(fetcher fetch.Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		extractor: snippet.NewExtractor(),
		workers:   crawler.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ValidateRequest checks a request without touching the network.
func ValidateRequest(req model.SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrMissingQuery
	}

	u, err := url.Parse(req.StartURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidStartURL, req.StartURL)
	}

	if req.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, req.MaxDepth)
	}

	return nil
}

// Search validates req, crawls the site and returns a report with one
// PageResult per page on which the query occurs.
//
// Validation errors are returned with a nil report and nothing is fetched.
// When ctx ends during the crawl, the report holds the pages processed so
// far, is marked TimedOut, and is returned together with ctx.Err().
func (s *Service) Search(ctx context.Context, req model.SearchRequest) (*model.SearchReport, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	report := model.NewSearchReport(req)

	spider := crawler.NewSpider(s.fetcher,
		crawler.WithWorkers(s.workers),
		crawler.WithMaxDepth(req.MaxDepth),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithIgnorePatterns(s.ignorePatterns),
		crawler.WithFollowPatterns(s.followPatterns),
		crawler.WithSpiderLogger(s.logger),
	)

	s.logger.Info("starting search",
		"id", report.ID,
		"url", req.StartURL,
		"query", req.Query,
		"maxDepth", req.MaxDepth,
	)

	stats, err := spider.Crawl(ctx, req.StartURL, func(page *crawler.Page) {
		contexts := s.extractor.Extract(page.Text, req.Query)
		if len(contexts) == 0 {
			return
		}
		report.AddResult(model.PageResult{URL: page.URL, Contexts: contexts})
		s.logger.Info("query found", "url", page.URL, "matches", len(contexts))
	})

	stats.PagesMatched = len(report.Results)
	report.Stats = stats

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.TimedOut = true
		}
		report.Error = err.Error()
		report.Finish()
		s.logger.Warn("search interrupted",
			"id", report.ID,
			"url", req.StartURL,
			"error", err,
		)
		return report, err
	}

	report.Finish()

	s.logger.Info("search complete",
		"id", report.ID,
		"url", req.StartURL,
		"pagesFetched", stats.PagesFetched,
		"pagesMatched", stats.PagesMatched,
		"elapsed", report.Duration(),
	)

	return report, nil
}
