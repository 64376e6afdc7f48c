package dispatch

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// NewHTTPClient returns a client with a cookie jar, so session cookies set by
// the backend are sent back on every later call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) // error is always nil
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}
