package snippet

import (
	"regexp"
	"strings"
)

// DefaultMarker is inserted immediately before every query match.
const DefaultMarker = "✅"

// Highlighter marks case-insensitive occurrences of a literal query.
type Highlighter struct {
	marker string
}

// HighlighterOption configures a Highlighter.
type HighlighterOption func(*Highlighter)

// WithMarker sets the marker string. An empty marker keeps the default.
func WithMarker(marker string) HighlighterOption {
	return func(h *Highlighter) {
		if marker != "" {
			h.marker = marker
		}
	}
}

// NewHighlighter creates a Highlighter using DefaultMarker unless overridden.
func NewHighlighter(opts ...HighlighterOption) *Highlighter {
	h := &Highlighter{marker: DefaultMarker}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Marker returns the marker in use.
func (h *Highlighter) Marker() string {
	return h.marker
}

// Highlight inserts the marker before every non-overlapping, leftmost-first
// match of query in sentence. The matched text keeps its original case.
// An empty query returns the sentence unchanged.
func (h *Highlighter) Highlight(sentence, query string) string {
	re := compileQuery(query)
	if re == nil {
		return sentence
	}
	return h.highlightWith(re, sentence)
}

func (h *Highlighter) highlightWith(re *regexp.Regexp, sentence string) string {
	matches := re.FindAllStringIndex(sentence, -1)
	if len(matches) == 0 {
		return sentence
	}

	var b strings.Builder
	b.Grow(len(sentence) + len(matches)*len(h.marker))

	last := 0
	for _, m := range matches {
		b.WriteString(sentence[last:m[0]])
		b.WriteString(h.marker)
		b.WriteString(sentence[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(sentence[last:])

	return b.String()
}

// Highlight is a convenience wrapper using DefaultMarker.
func Highlight(sentence, query string) string {
	return NewHighlighter().Highlight(sentence, query)
}

// compileQuery builds a case-insensitive matcher for the literal query.
// It returns nil for an empty query.
func compileQuery(query string) *regexp.Regexp {
	if query == "" {
		return nil
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}
