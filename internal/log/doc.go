// Package log builds the slog loggers used by sitesearch.
//
// Every logger is wrapped in a SecureHandler, which masks attributes that
// may carry credentials before they reach the output. Site configurations
// can hold cookies and Authorization headers, and start URLs sometimes
// carry access tokens in their query string, so:
//   - attributes with sensitive keys (cookie, authorization, token ...) are
//     replaced with MaskValue
//   - string values that look like credentials (bearer or basic auth,
//     JWTs, long opaque keys) are replaced with MaskValue
//   - URLs keep their scheme, host and path, but the password in the
//     userinfo and the values of sensitive query parameters are masked
//
// Three output formats are available: logfmt-style text, JSON, and a
// colourised console format for interactive use.
//
//	logger, err := log.New(os.Stderr, log.FormatText, verbose)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
package log
