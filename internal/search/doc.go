// Package search ties the crawler and the snippet extractor together.
//
// Service.Search validates a model.SearchRequest, crawls the site from its
// start URL and returns a model.SearchReport listing every page on which
// the query occurs together with the highlighted sentence contexts.
// BatchProcessor runs several searches concurrently.
package search
