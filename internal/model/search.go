package model

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// DefaultMaxDepth is the link depth used when a request does not set one.
const DefaultMaxDepth = 2

// SearchRequest describes one crawl-and-search run.
// It is not modified once the crawl has started.
type SearchRequest struct {
	// StartURL is the absolute http(s) URL the crawl begins at.
	StartURL string `json:"start_url"`

	// Query is the literal text searched for, case-insensitively.
	Query string `json:"query"`

	// MaxDepth is the maximum link distance from StartURL.
	// 0 fetches only the start page.
	MaxDepth int `json:"max_depth"`
}

// PageResult holds every context window found on one page.
// Contexts are in top-to-bottom sentence order and never empty.
type PageResult struct {
	URL      string   `json:"url"`
	Contexts []string `json:"contexts"`
}

// CrawlStats summarises a finished crawl.
type CrawlStats struct {
	// PagesFetched counts successful fetches.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts fetches that failed (network error, non-2xx, ...).
	PagesFailed int `json:"pages_failed"`

	// PagesMatched counts pages that produced at least one context.
	PagesMatched int `json:"pages_matched"`

	// URLsDiscovered counts distinct same-origin URLs seen, including the start URL.
	URLsDiscovered int `json:"urls_discovered"`

	// MaxDepthReached is the deepest depth that was dispatched.
	MaxDepthReached int `json:"max_depth_reached"`
}

// SearchReport is the outcome of a SearchRequest.
type SearchReport struct {
	// ID uniquely identifies the report.
	ID string `json:"id"`

	Request SearchRequest `json:"request"`

	// Results are ordered by page completion, which is not deterministic.
	Results []PageResult `json:"results"`

	Stats CrawlStats `json:"stats"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// TimedOut is set when the crawl was cut short by its context.
	// Results then hold the pages processed before the deadline.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error records a failure that stopped the search, if any.
	Error string `json:"error,omitempty"`

	// Digest is a SHA3-256 fingerprint of Results, see ComputeDigest.
	Digest string `json:"digest,omitempty"`
}

// NewSearchReport creates an empty report for req and stamps its start time.
func NewSearchReport(req SearchRequest) *SearchReport {
	return &SearchReport{
		ID:        uuid.NewString(),
		Request:   req,
		Results:   make([]PageResult, 0),
		StartedAt: time.Now(),
	}
}

// AddResult appends a page result. Results with no contexts are ignored.
func (r *SearchReport) AddResult(result PageResult) {
	if len(result.Contexts) == 0 {
		return
	}
	r.Results = append(r.Results, result)
	r.Stats.PagesMatched = len(r.Results)
}

// Finish stamps the finish time and computes the digest.
func (r *SearchReport) Finish() {
	r.FinishedAt = time.Now()
	r.Digest = r.ComputeDigest()
}

// Duration returns how long the search took.
// It is zero until Finish is called.
func (r *SearchReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ContextCount returns the total number of contexts across all pages.
func (r *SearchReport) ContextCount() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Contexts)
	}
	return n
}

// HasResults reports whether any page matched.
func (r *SearchReport) HasResults() bool {
	return len(r.Results) > 0
}

// SortedResults returns a copy of Results ordered by URL.
func (r *SearchReport) SortedResults() []PageResult {
	sorted := slices.Clone(r.Results)
	slices.SortFunc(sorted, func(a, b PageResult) int {
		return strings.Compare(a.URL, b.URL)
	})
	return sorted
}

// ComputeDigest returns the hex SHA3-256 digest of the results.
// Results are sorted by URL first, so two crawls that found the same
// contexts produce the same digest regardless of completion order.
func (r *SearchReport) ComputeDigest() string {
	data, err := json.Marshal(r.SortedResults())
	if err != nil {
		return ""
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
