package fetcher

import "errors"

// Sentinel errors for content fetch operations. The Hydrator treats them
// all as a retryable fetch failure; they exist so logs and tests can tell
// the failure modes apart.
var (
	// ErrInvalidURL indicates the URL failed parsing, scheme, or SSRF checks.
	ErrInvalidURL = errors.New("invalid url")

	// ErrPrivateIP indicates the URL's hostname resolves to a private,
	// loopback, or link-local IP address (SSRF prevention).
	ErrPrivateIP = errors.New("url resolves to private ip")

	// ErrTimeout indicates the fetch exceeded its configured timeout.
	ErrTimeout = errors.New("fetch timeout")

	// ErrBodyTooLarge indicates the response body exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTooManyRedirects indicates the redirect chain exceeded the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrReadabilityFailed indicates main-text extraction produced nothing usable.
	ErrReadabilityFailed = errors.New("readability extraction failed")
)
