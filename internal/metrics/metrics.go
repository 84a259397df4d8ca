// Package metrics keeps in-process counters for the flight feed.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/skyroute/flightfeed/pkg/opensky"
)

// Metrics collects and tracks feed metrics
type Metrics struct {
	// Feed metrics
	feedRequests atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	staleServed  atomic.Int64
	emptyErrors  atomic.Int64
	lookups      atomic.Int64

	// Upstream metrics
	upstreamCalls       atomic.Int64
	upstreamRateLimited atomic.Int64
	upstreamAuthErrors  atomic.Int64
	upstreamTransient   atomic.Int64
	estimatedCredits    atomic.Int64
	upstreamLatencySum  atomic.Int64
	upstreamLatencyN    atomic.Int64

	// Stream metrics
	streamClients atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Feed metrics methods

func (m *Metrics) IncrementFeedRequests() { m.feedRequests.Add(1) }
func (m *Metrics) IncrementCacheHits()    { m.cacheHits.Add(1) }
func (m *Metrics) IncrementCacheMisses()  { m.cacheMisses.Add(1) }
func (m *Metrics) IncrementStaleServed()  { m.staleServed.Add(1) }
func (m *Metrics) IncrementEmptyErrors()  { m.emptyErrors.Add(1) }
func (m *Metrics) IncrementLookups()      { m.lookups.Add(1) }

func (m *Metrics) GetCacheHits() int64   { return m.cacheHits.Load() }
func (m *Metrics) GetCacheMisses() int64 { return m.cacheMisses.Load() }

// Upstream metrics methods

// RecordUpstreamCall counts one upstream query, its advisory credit cost and
// latency, and classifies err when the call failed.
func (m *Metrics) RecordUpstreamCall(credits int, latency time.Duration, err error) {
	m.upstreamCalls.Add(1)
	m.estimatedCredits.Add(int64(credits))
	m.upstreamLatencySum.Add(latency.Milliseconds())
	m.upstreamLatencyN.Add(1)

	if err == nil {
		return
	}
	switch opensky.KindOf(err) {
	case opensky.KindRateLimited:
		m.upstreamRateLimited.Add(1)
	case opensky.KindAuth:
		m.upstreamAuthErrors.Add(1)
	default:
		m.upstreamTransient.Add(1)
	}
}

func (m *Metrics) GetUpstreamCalls() int64 { return m.upstreamCalls.Load() }

func (m *Metrics) GetAverageUpstreamLatency() float64 {
	n := m.upstreamLatencyN.Load()
	if n == 0 {
		return 0
	}
	return float64(m.upstreamLatencySum.Load()) / float64(n)
}

// Stream metrics methods

func (m *Metrics) StreamOpened() { m.streamClients.Add(1) }
func (m *Metrics) StreamClosed() { m.streamClients.Add(-1) }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	FeedRequests int64 `json:"feed_requests"`
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	StaleServed  int64 `json:"stale_served"`
	EmptyErrors  int64 `json:"empty_with_error"`
	Lookups      int64 `json:"lookups"`

	UpstreamCalls        int64   `json:"upstream_calls"`
	UpstreamRateLimited  int64   `json:"upstream_rate_limited"`
	UpstreamAuthErrors   int64   `json:"upstream_auth_errors"`
	UpstreamTransient    int64   `json:"upstream_transient_errors"`
	EstimatedCredits     int64   `json:"estimated_credits"`
	AvgUpstreamLatencyMs float64 `json:"avg_upstream_latency_ms"`

	StreamClients int64 `json:"stream_clients"`
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:        int64(time.Since(m.startTime).Seconds()),
		FeedRequests:         m.feedRequests.Load(),
		CacheHits:            m.cacheHits.Load(),
		CacheMisses:          m.cacheMisses.Load(),
		StaleServed:          m.staleServed.Load(),
		EmptyErrors:          m.emptyErrors.Load(),
		Lookups:              m.lookups.Load(),
		UpstreamCalls:        m.upstreamCalls.Load(),
		UpstreamRateLimited:  m.upstreamRateLimited.Load(),
		UpstreamAuthErrors:   m.upstreamAuthErrors.Load(),
		UpstreamTransient:    m.upstreamTransient.Load(),
		EstimatedCredits:     m.estimatedCredits.Load(),
		AvgUpstreamLatencyMs: m.GetAverageUpstreamLatency(),
		StreamClients:        m.streamClients.Load(),
	}
}
