// Package fetch retrieves web pages for the crawler.
//
// HTTPFetcher turns every outcome into a Result value: a failed DNS lookup,
// a timeout or a 404 is reported through Result.Err and logged, never
// returned as an error or panic. Bodies are capped at a configurable size
// and decoded to UTF-8 using the declared charset, falling back to content
// sniffing when the bytes are not valid UTF-8.
//
// NewHTTPClient builds the underlying *http.Client and can route traffic
// through a SOCKS5 proxy and inject a cookie or custom headers per site.
//
//	client, err := fetch.NewHTTPClient(fetch.WithTimeout(10 * time.Second))
//	if err != nil {
//	    return err
//	}
//	f := fetch.NewHTTPFetcher(client, fetch.WithUserAgent("my-bot/1.0"))
//	res := f.Fetch(ctx, "https://example.com/")
//	if !res.OK() {
//	    // res.Err explains why
//	}
package fetch
