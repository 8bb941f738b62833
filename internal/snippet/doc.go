// Package snippet turns page text into highlighted context windows.
//
// # Components
//
//   - Segmenter: splits text into sentences (HeuristicSegmenter by default)
//   - Highlighter: inserts a marker before every occurrence of the query
//   - Extractor: combines both and returns one context string per match
//
// # Usage
//
//	ex := snippet.NewExtractor()
//	contexts := ex.Extract("Hello world. This is fine.", "hello")
//	// contexts == []string{"✅Hello world. This is fine."}
//
// # Sentence Heuristic
//
// HeuristicSegmenter is not a grammar. It splits after "." or "?" followed by
// whitespace unless the text just before the split looks like "Mr." or "e.g.".
// The following trade-offs are known and accepted:
//   - "He left at 5 p.m. Then he slept." stays one sentence
//   - "See fig. 3 for details." is split after "fig."
//   - "!" never ends a sentence
package snippet
