package search

import "errors"

// Request validation errors. They are returned before any page is fetched.
var (
	// ErrMissingQuery is returned when the query is empty or only whitespace.
	ErrMissingQuery = errors.New("query parameter is required")

	// ErrInvalidStartURL is returned when the start URL is missing or is not
	// an absolute http(s) URL with a host.
	ErrInvalidStartURL = errors.New("start URL must be an absolute http(s) URL")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("max depth must be non-negative")
)
