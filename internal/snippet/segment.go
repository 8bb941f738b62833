package snippet

import (
	"unicode"
)

// Segmenter splits text into an ordered sequence of sentences.
type Segmenter interface {
	// Split returns the sentences of text in reading order.
	// Empty text yields an empty slice.
	Split(text string) []string
}

// HeuristicSegmenter splits text after "." or "?" followed by a single
// whitespace character, which is consumed. A split is suppressed when the
// text right before it looks like a capitalised abbreviation ("Mr.", "Dr.")
// or a multi-part abbreviation ("e.g.", "U.S.").
type HeuristicSegmenter struct{}

// NewHeuristicSegmenter returns the default segmenter.
func NewHeuristicSegmenter() *HeuristicSegmenter {
	return &HeuristicSegmenter{}
}

// Split implements Segmenter.
// Zero-length segments (for example after trailing "? ") are dropped.
func (s *HeuristicSegmenter) Split(text string) []string {
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	sentences := make([]string, 0)
	start := 0

	for i, r := range runes {
		if !unicode.IsSpace(r) || !isSplitPoint(runes, i) {
			continue
		}
		if i > start {
			sentences = append(sentences, string(runes[start:i]))
		}
		start = i + 1
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	return sentences
}

// isSplitPoint reports whether the whitespace rune at index i ends a sentence.
func isSplitPoint(runes []rune, i int) bool {
	if i == 0 {
		return false
	}

	prev := runes[i-1]
	if prev != '.' && prev != '?' {
		return false
	}

	return !looksLikeMultiPartAbbrev(runes, i) && !looksLikeTitleAbbrev(runes, i)
}

// looksLikeMultiPartAbbrev matches <word> "." <word> <any> right before i.
func looksLikeMultiPartAbbrev(runes []rune, i int) bool {
	if i < 4 {
		return false
	}
	return isWordRune(runes[i-4]) &&
		runes[i-3] == '.' &&
		isWordRune(runes[i-2]) &&
		runes[i-1] != '\n'
}

// looksLikeTitleAbbrev matches [A-Z][a-z] "." right before i.
func looksLikeTitleAbbrev(runes []rune, i int) bool {
	if i < 3 {
		return false
	}
	return isASCIIUpper(runes[i-3]) &&
		isASCIILower(runes[i-2]) &&
		runes[i-1] == '.'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func isASCIILower(r rune) bool {
	return r >= 'a' && r <= 'z'
}
