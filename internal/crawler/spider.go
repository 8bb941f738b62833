package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitesearch/internal/fetch"
	"github.com/nao1215/sitesearch/internal/model"
)

// DefaultWorkers is the number of concurrent fetches per crawl.
const DefaultWorkers = 10

// ErrInvalidStartURL is returned when the start URL is not an absolute
// http or https URL.
var ErrInvalidStartURL = errors.New("start URL must be an absolute http(s) URL")

// Page is a successfully fetched page handed to a PageHandler.
type Page struct {
	// URL is the normalized URL that was fetched.
	URL string

	// Depth is the link distance from the start URL.
	Depth int

	StatusCode  int
	ContentType string
	Title       string

	// Text is the visible text of the page.
	Text string

	// Links are the absolute links found on the page, before filtering.
	Links []string
}

// PageHandler is called once for every successfully fetched page.
// Calls are made from a single goroutine, one at a time.
type PageHandler func(page *Page)

// Spider crawls a single site breadth-first with a fixed pool of workers.
//
// One coordinator goroutine owns the frontier and the visited set. Workers
// only fetch and parse, then report back over a channel, so checking and
// marking a URL as visited never races.
type Spider struct {
	fetcher fetch.Fetcher

	// workers is the size of the fetch pool.
	workers int

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages dispatched. 0 means no limit.
	maxPages int

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns, when set, restrict crawling to matching URL paths.
	followPatterns []string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the number of concurrent fetches. Non-positive values
// are ignored.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to fetch. 0 means no limit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher fetch.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  fetcher,
		workers:  DefaultWorkers,
		maxDepth: model.DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// outcome is what a worker sends back to the coordinator.
type outcome struct {
	entry entry
	page  *Page
	err   error
}

// Crawl fetches startURL and every same-origin page reachable from it
// within the configured depth, calling handle for each page fetched.
//
// Failed fetches are counted and skipped. When ctx is cancelled no new
// fetches are started, in-flight ones are awaited, and the statistics
// gathered so far are returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string, handle PageHandler) (model.CrawlStats, error) {
	var stats model.CrawlStats

	start := normalizeURL(startURL)
	if start == "" || !isHTTPURL(start) {
		return stats, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}
	origin, err := url.Parse(start)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}
	if handle == nil {
		handle = func(*Page) {}
	}

	state := newCrawlState(origin, s.maxDepth, s.maxPages)
	state.ignorePatterns = s.ignorePatterns
	state.followPatterns = s.followPatterns
	state.seed(start)

	s.logger.Debug("starting crawl",
		"start", start,
		"maxDepth", s.maxDepth,
		"workers", s.workers,
	)

	tasks := make(chan entry)
	results := make(chan outcome)

	var g errgroup.Group
	for range s.workers {
		g.Go(func() error {
			for e := range tasks {
				results <- s.process(ctx, e)
			}
			return nil
		})
	}

	var (
		next      entry
		hasNext   bool
		inFlight  int
		cancelled bool
		done      = ctx.Done()
	)

	for {
		if !cancelled && !hasNext {
			next, hasNext = state.dequeue()
		}
		if !hasNext && inFlight == 0 {
			break
		}

		// A nil channel never becomes ready, which disables the send case
		// while there is nothing to dispatch.
		var send chan<- entry
		if hasNext {
			send = tasks
		}

		select {
		case send <- next:
			hasNext = false
			inFlight++
			s.logger.Debug("dispatched", "url", next.url, "depth", next.depth)

		case out := <-results:
			inFlight--
			if out.err != nil {
				stats.PagesFailed++
				continue
			}
			stats.PagesFetched++
			handle(out.page)
			state.enqueueLinks(out.page.Links, out.entry.depth+1)

		case <-done:
			cancelled = true
			hasNext = false
			done = nil
			state.queue.clear()
			s.logger.Debug("crawl cancelled, waiting for in-flight fetches", "inFlight", inFlight)
		}
	}

	close(tasks)
	_ = g.Wait() //nolint:errcheck // workers never return an error

	stats.URLsDiscovered = len(state.discovered)
	stats.MaxDepthReached = state.maxDepthReached

	s.logger.Debug("crawl finished",
		"start", start,
		"fetched", stats.PagesFetched,
		"failed", stats.PagesFailed,
		"discovered", stats.URLsDiscovered,
		"droppedByDepth", state.droppedByDepth,
	)

	if cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// process fetches and parses one entry. It runs on a worker goroutine.
func (s *Spider) process(ctx context.Context, e entry) outcome {
	res := s.fetcher.Fetch(ctx, e.url)
	if !res.OK() {
		return outcome{entry: e, err: res.Err}
	}

	page := &Page{
		URL:         e.url,
		Depth:       e.depth,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
	}

	if !isTextContent(res.ContentType) {
		return outcome{entry: e, page: page}
	}

	parser, err := NewParser(e.url)
	if err != nil {
		return outcome{entry: e, page: page}
	}
	parsed, err := parser.Parse(strings.NewReader(res.Body))
	if err != nil {
		s.logger.Debug("parse failed", "url", e.url, "error", err)
		return outcome{entry: e, page: page}
	}

	page.Title = parsed.Title
	page.Text = parsed.Text
	page.Links = parsed.Links

	return outcome{entry: e, page: page}
}

// isTextContent reports whether a Content-Type value can carry page text.
// A missing Content-Type is treated as HTML.
func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/xhtml+xml"
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
