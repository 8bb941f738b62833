package fetch

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// decodeBody converts a response body to a UTF-8 string.
//
// Order of precedence:
//  1. charset parameter of the Content-Type header
//  2. the body as is, when it is already valid UTF-8
//  3. encoding sniffed from a BOM or <meta charset> (windows-1252 otherwise)
//
// Bytes that cannot be decoded become U+FFFD.
func decodeBody(body []byte, contentType string) string {
	if label := declaredCharset(contentType); label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			if out, _, err := transform.Bytes(enc.NewDecoder(), body); err == nil {
				return string(out)
			}
		}
	}

	if utf8.Valid(body) {
		return string(body)
	}

	enc, _, _ := charset.DetermineEncoding(body, contentType)
	if out, _, err := transform.Bytes(enc.NewDecoder(), body); err == nil {
		return string(out)
	}

	return strings.ToValidUTF8(string(body), "�")
}

// declaredCharset returns the charset parameter of a Content-Type value.
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}
