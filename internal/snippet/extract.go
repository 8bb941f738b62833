package snippet

import "strings"

// Extractor finds the sentences that contain a query and returns each one
// with its neighbours as a highlighted context window.
type Extractor struct {
	segmenter   Segmenter
	highlighter *Highlighter
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithSegmenter replaces the default HeuristicSegmenter.
func WithSegmenter(s Segmenter) ExtractorOption {
	return func(e *Extractor) {
		if s != nil {
			e.segmenter = s
		}
	}
}

// WithHighlighter replaces the default Highlighter.
func WithHighlighter(h *Highlighter) ExtractorOption {
	return func(e *Extractor) {
		if h != nil {
			e.highlighter = h
		}
	}
}

// NewExtractor creates an Extractor with the heuristic segmenter and the
// default marker.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		segmenter:   NewHeuristicSegmenter(),
		highlighter: NewHighlighter(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one context string per sentence of text that contains
// query, in sentence order. A context is the previous sentence (if any), the
// matching sentence and the next sentence (if any), each highlighted and
// joined with a single space. Adjacent matches produce overlapping contexts.
// It returns nil when query is empty or does not occur in text.
func (e *Extractor) Extract(text, query string) []string {
	re := compileQuery(query)
	if re == nil {
		return nil
	}

	sentences := e.segmenter.Split(text)

	var contexts []string
	for i, sentence := range sentences {
		if !re.MatchString(sentence) {
			continue
		}

		lo := max(0, i-1)
		hi := min(len(sentences), i+2)

		window := make([]string, 0, hi-lo)
		for _, s := range sentences[lo:hi] {
			window = append(window, e.highlighter.highlightWith(re, s))
		}
		contexts = append(contexts, strings.Join(window, " "))
	}

	return contexts
}
