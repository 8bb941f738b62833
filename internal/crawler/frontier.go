package crawler

import (
	"net/url"
	"path"
	"strings"
)

// entry is a URL waiting to be fetched together with its link distance
// from the start URL.
type entry struct {
	url   string
	depth int
}

// frontier is a FIFO queue of entries.
type frontier struct {
	items []entry
	head  int
}

func (f *frontier) push(e entry) {
	f.items = append(f.items, e)
}

func (f *frontier) pop() (entry, bool) {
	if f.head >= len(f.items) {
		return entry{}, false
	}
	e := f.items[f.head]
	f.items[f.head] = entry{}
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return e, true
}

func (f *frontier) len() int {
	return len(f.items) - f.head
}

func (f *frontier) clear() {
	f.items = nil
	f.head = 0
}

// visitedSet records normalized URLs that have been dispatched.
type visitedSet map[string]struct{}

// markIfNotVisited inserts u and reports whether it was absent.
func (v visitedSet) markIfNotVisited(u string) bool {
	if _, ok := v[u]; ok {
		return false
	}
	v[u] = struct{}{}
	return true
}

func (v visitedSet) has(u string) bool {
	_, ok := v[u]
	return ok
}

// crawlState is the frontier and visited set of one crawl.
// It is owned by the coordinator goroutine and is not safe for concurrent use.
type crawlState struct {
	origin   *url.URL
	maxDepth int
	maxPages int

	ignorePatterns []string
	followPatterns []string

	queue      frontier
	visited    visitedSet
	discovered map[string]struct{}

	dispatched      int
	droppedByDepth  int
	maxDepthReached int
}

func newCrawlState(origin *url.URL, maxDepth, maxPages int) *crawlState {
	return &crawlState{
		origin:     origin,
		maxDepth:   maxDepth,
		maxPages:   maxPages,
		visited:    make(visitedSet),
		discovered: make(map[string]struct{}),
	}
}

// seed queues the start URL at depth 0. It bypasses the origin and
// pattern filters.
func (c *crawlState) seed(startURL string) {
	c.discovered[startURL] = struct{}{}
	c.queue.push(entry{url: startURL, depth: 0})
}

// enqueueLinks queues the links found on a page at the given depth.
// Links deeper than maxDepth are never queued. Cross-origin, already
// dispatched and pattern-excluded links are dropped.
func (c *crawlState) enqueueLinks(links []string, depth int) {
	if depth > c.maxDepth {
		return
	}

	for _, link := range links {
		normalized := normalizeURL(link)
		if normalized == "" || !sameOrigin(c.origin, normalized) {
			continue
		}
		if c.visited.has(normalized) || !c.shouldCrawl(normalized) {
			continue
		}
		c.discovered[normalized] = struct{}{}
		c.queue.push(entry{url: normalized, depth: depth})
	}
}

// dequeue returns the next entry to dispatch and marks it visited.
// Entries deeper than maxDepth or already visited are discarded. It returns
// false when nothing can be dispatched, either because the queue is empty
// or because the page budget is spent.
func (c *crawlState) dequeue() (entry, bool) {
	for {
		if c.maxPages > 0 && c.dispatched >= c.maxPages {
			c.queue.clear()
			return entry{}, false
		}

		e, ok := c.queue.pop()
		if !ok {
			return entry{}, false
		}
		if e.depth > c.maxDepth {
			c.droppedByDepth++
			continue
		}
		if !c.visited.markIfNotVisited(e.url) {
			continue
		}

		c.dispatched++
		c.maxDepthReached = max(c.maxDepthReached, e.depth)
		return e, true
	}
}

// pending returns the number of queued entries.
func (c *crawlState) pending() int {
	return c.queue.len()
}

// shouldCrawl checks a URL against the ignore and follow patterns.
// Ignore patterns win; when follow patterns are set, at least one must match.
func (c *crawlState) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range c.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(c.followPatterns) == 0 {
		return true
	}
	for _, pattern := range c.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a URL path matches a glob pattern.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match semantics ("*" and "?" within a segment)
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.Contains(ext, "/") {
		if strings.HasSuffix(p, "."+ext) {
			return true
		}
	}

	matched, err := path.Match(pattern, p)
	return err == nil && matched
}

// normalizeURL returns the form of rawURL used for deduplication: fragment
// removed, scheme and host lower-cased, default port dropped and an empty
// path replaced by "/". Unparsable or relative URLs yield "".
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
		if strings.Contains(u.Host, ":") {
			u.Host = "[" + u.Host + "]"
		}
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// sameOrigin reports whether target has the same scheme and host as origin.
func sameOrigin(origin *url.URL, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}
