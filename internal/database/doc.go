// Package database stores the search history of sitesearch in SQLite.
//
// Each finished search is saved as one row holding the full report as
// JSON plus the columns needed to list and compare searches without
// decoding it: start URL, query, depth, page counts and the result digest.
// Crawl state (frontier, visited set) is never persisted.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, so the binary stays
// easy to cross-compile and the history is a single file.
package database
