package fetch

import "errors"

var (
	// ErrUnexpectedStatus is wrapped into a Result when the server answers
	// with a status code outside 2xx.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidProxyAddress is returned when a SOCKS5 proxy address is not
	// in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrUnsupportedScheme is wrapped into a Result for non-http(s) URLs.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)
