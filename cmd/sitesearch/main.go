// Package main provides the entry point for the sitesearch CLI.
//
// sitesearch crawls a website from a start URL, staying on the same origin,
// and prints every sentence context in which a query occurs.
//
// Usage:
//
//	sitesearch search <url> -q <query>
//	sitesearch serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
