// Package model defines the data structures shared by the crawler, the
// search service, report writers and the history database.
//
// This package contains the following main types:
//   - SearchRequest: the start URL, query and depth of one search
//   - PageResult: the context windows found on a single page
//   - SearchReport: the full outcome of a search with crawl statistics
//
// All types serialize to JSON, which is the format used by the HTTP API,
// the JSON report writer and the history database.
package model
