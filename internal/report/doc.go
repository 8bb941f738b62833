// Package report renders search reports.
//
// Three writers share the Writer interface:
//   - SimpleWriter: plain text for terminals
//   - JSONWriter: JSON for other tools, optionally wrapped with the
//     sitesearch version by FullJSONWriter
//   - MarkdownWriter: GitHub-flavoured Markdown for sharing
//
// Writers list pages ordered by URL so that two runs over the same site
// render identically even though pages complete in a different order.
package report
