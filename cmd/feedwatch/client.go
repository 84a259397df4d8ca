package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skyroute/flightfeed/internal/feed"
)

// feedClient polls a running flightfeed server.
type feedClient struct {
	baseURL    string
	httpClient *http.Client
}

func newFeedClient(baseURL string) *feedClient {
	return &feedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Flights calls GET /api/v1/flights for a region.
func (c *feedClient) Flights(ctx context.Context, lat, lng, radius float64) (feed.Result, error) {
	var result feed.Result

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 4, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', 2, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/flights?"+q.Encode(), nil)
	if err != nil {
		return result, err
	}

	if err := c.do(req, &result); err != nil {
		return result, err
	}
	return result, nil
}

// Lookup calls POST /api/v1/flights for one aircraft.
func (c *feedClient) Lookup(ctx context.Context, lookup feed.LookupRequest) (*feed.Flight, error) {
	body, err := json.Marshal(lookup)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/flights", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Flight *feed.Flight `json:"flight"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Flight, nil
}

func (c *feedClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
