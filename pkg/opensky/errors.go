package opensky

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a failed upstream fetch.
type ErrorKind int

const (
	// KindTransient covers network failures, timeouts, non-2xx responses
	// other than 401/429 and malformed payloads.
	KindTransient ErrorKind = iota

	// KindRateLimited is an HTTP 429 from the upstream.
	KindRateLimited

	// KindAuth is a 401 that persisted after the anonymous retry.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	default:
		return "transient"
	}
}

// FetchError is returned by every failed Client call.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int

	// RetryAfter and Headers are only populated for KindRateLimited
	RetryAfter time.Duration
	Headers    RateLimitHeaders

	Err error
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit: Maximum requests allowed
	Remaining int       // X-Rate-Limit-Remaining: Requests or credits remaining
	Reset     time.Time // X-Rate-Limit-Reset: When the rate limit resets
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("upstream rate limit exceeded (retry after %v)", e.RetryAfter)
		}
		return "upstream rate limit exceeded"
	case KindAuth:
		return fmt.Sprintf("upstream rejected credentials (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *FetchError anywhere in err's chain.
// Errors that are not FetchErrors are transient.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind == KindRateLimited {
		return fe, true
	}
	return nil, false
}

// IsAuthError checks if an error is an authentication failure.
func IsAuthError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindAuth
}

func transientError(status int, err error) *FetchError {
	return &FetchError{Kind: KindTransient, StatusCode: status, Err: err}
}

func rateLimitedError(resp *http.Response, now time.Time) *FetchError {
	return &FetchError{
		Kind:       KindRateLimited,
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header, now),
		Headers:    extractRateLimitHeaders(resp.Header),
	}
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both delay-seconds and HTTP-date forms; 0 when absent.
// OpenSky also reports the wait as X-Rate-Limit-Retry-After-Seconds.
func parseRetryAfter(headers http.Header, now time.Time) time.Duration {
	if v := headers.Get("X-Rate-Limit-Retry-After-Seconds"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := retryTime.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// extractRateLimitHeaders reads the X-Rate-Limit-* family (and the
// X-RateLimit-* spelling). Missing numeric values are -1.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{
		Limit:     headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"),
		Remaining: headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"),
	}
	if reset := headerInt(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); reset > 0 {
		rlh.Reset = time.Unix(int64(reset), 0)
	}
	return rlh
}

func headerInt(headers http.Header, names ...string) int {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return -1
}
