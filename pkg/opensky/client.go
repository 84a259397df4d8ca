package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyroute/flightfeed/pkg/logger"
)

// DefaultBaseURL is the public OpenSky REST endpoint.
const DefaultBaseURL = "https://opensky-network.org/api"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 32 << 20

// StatesFetcher is the upstream query surface the feed depends on.
type StatesFetcher interface {
	// FetchStates returns the valid state vectors inside box. An empty
	// slice is a valid result. Failures are *FetchError.
	FetchStates(ctx context.Context, box BoundingBox) ([]FlightState, error)

	// FetchState returns the state vector of one aircraft, or nil when the
	// upstream does not currently see it.
	FetchState(ctx context.Context, icao24 string) (*FlightState, error)
}

// Client implements StatesFetcher against the OpenSky REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *logger.Logger
	now        func() time.Time
}

// NewClient creates a new OpenSky API client. A nil TokenSource means every
// request is anonymous. timeout bounds each request; expiry is a transient
// failure.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if tokens == nil {
		tokens = anonymousSource{}
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}
}

// Tokens returns the client's token source.
func (c *Client) Tokens() TokenSource {
	return c.tokens
}

// FetchStates implements StatesFetcher.
func (c *Client) FetchStates(ctx context.Context, box BoundingBox) ([]FlightState, error) {
	c.log.Debug("Querying states in %s (area %.1f sq deg, ~%d credits)", box, box.Area(), box.EstimatedCredits())

	body, err := c.get(ctx, "/states/all", box.Values())
	if err != nil {
		return nil, err
	}

	states, report, err := ParseStates(body)
	if err != nil {
		c.log.Error("Discarding OpenSky response for %s: %v", box, err)
		return nil, transientError(http.StatusOK, err)
	}
	if report.Incomplete > 0 || report.Invalid > 0 {
		c.log.Debug("Dropped %d incomplete and %d invalid rows of %d", report.Incomplete, report.Invalid, report.Rows)
	}

	return states, nil
}

// FetchState implements StatesFetcher.
func (c *Client) FetchState(ctx context.Context, icao24 string) (*FlightState, error) {
	icao24 = strings.ToLower(strings.TrimSpace(icao24))
	if icao24 == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("icao24", icao24)

	body, err := c.get(ctx, "/states/all", q)
	if err != nil {
		return nil, err
	}

	states, _, err := ParseStates(body)
	if err != nil {
		c.log.Error("Discarding OpenSky response for %s: %v", icao24, err)
		return nil, transientError(http.StatusOK, err)
	}

	for i := range states {
		if states[i].ICAO24 == icao24 {
			return &states[i], nil
		}
	}
	return nil, nil
}

// get issues one GET with the current auth headers. A 401 on an
// authenticated request invalidates the token and is retried exactly once
// without credentials.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	headers := c.tokens.AuthHeaders(ctx)
	authenticated := headers.Get("Authorization") != ""

	resp, body, err := c.do(ctx, u, headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		c.log.Warn("OpenSky rejected token, retrying anonymously")
		c.tokens.Invalidate()

		resp, body, err = c.do(ctx, u, http.Header{})
		if err != nil {
			return nil, err
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &FetchError{Kind: KindAuth, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimitedError(resp, c.now())
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, transientError(resp.StatusCode, fmt.Errorf("API returned status %d: %s", resp.StatusCode, snippet))
	}

	return body, nil
}

// do performs the request and reads the body. Network failures and timeouts
// come back as transient FetchErrors.
func (c *Client) do(ctx context.Context, u string, headers http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, transientError(0, fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flightfeed/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, transientError(0, fmt.Errorf("failed to fetch states: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, transientError(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	return resp, body, nil
}
