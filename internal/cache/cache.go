// Package cache holds the latest upstream snapshot per quantized region.
package cache

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skyroute/flightfeed/pkg/opensky"
)

const (
	DefaultMaxEntries       = 100
	DefaultKeyPrecision     = 1
	DefaultAuthenticatedTTL = 30 * time.Second
	DefaultAnonymousTTL     = 10 * time.Second
)

// Entry is one cached poll result. Entries are replaced whole, never mutated.
type Entry struct {
	Key       string
	Flights   []opensky.FlightState
	FetchedAt time.Time
}

// Age returns how old the entry is at now (never negative).
func (e Entry) Age(now time.Time) time.Duration {
	if age := now.Sub(e.FetchedAt); age > 0 {
		return age
	}
	return 0
}

// Timestamp returns FetchedAt in Unix milliseconds.
func (e Entry) Timestamp() int64 {
	return e.FetchedAt.UnixMilli()
}

// RegionCache stores snapshots by region key.
type RegionCache interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)

	// PurgeOldest evicts the n entries with the oldest FetchedAt and returns
	// how many were removed. n <= 0 evicts the older half.
	PurgeOldest(n int) int

	Len() int

	// FindFlight returns the newest cached state for an aircraft.
	FindFlight(icao24 string) (opensky.FlightState, time.Time, bool)
}

// Key quantizes a query to its cache key. Latitude, longitude and radius are
// rounded to precision decimal places so nearby requests share an entry.
func Key(lat, lng, radius float64, precision int) string {
	if precision < 0 {
		precision = DefaultKeyPrecision
	}
	var b strings.Builder
	b.WriteString(formatRounded(lat, precision))
	b.WriteByte(',')
	b.WriteString(formatRounded(lng, precision))
	b.WriteByte(',')
	b.WriteString(formatRounded(radius, precision))
	return b.String()
}

func formatRounded(v float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // no "-0.0" keys
	}
	return strconv.FormatFloat(r, 'f', precision, 64)
}

// FreshnessPolicy decides whether an entry can be served without polling.
// The window depends on whether the caller currently holds an upstream token.
type FreshnessPolicy struct {
	AuthenticatedTTL time.Duration
	AnonymousTTL     time.Duration
}

// DefaultFreshnessPolicy returns the default TTL tiers.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{
		AuthenticatedTTL: DefaultAuthenticatedTTL,
		AnonymousTTL:     DefaultAnonymousTTL,
	}
}

// TTL returns the freshness window for the given auth state.
func (p FreshnessPolicy) TTL(authenticated bool) time.Duration {
	if authenticated {
		return p.AuthenticatedTTL
	}
	return p.AnonymousTTL
}

// Fresh reports whether entry is younger than the TTL for the auth state.
func (p FreshnessPolicy) Fresh(entry Entry, now time.Time, authenticated bool) bool {
	return entry.Age(now) < p.TTL(authenticated)
}

// MemoryCache is a size-bounded in-memory RegionCache.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	maxEntries int
}

// NewMemoryCache creates a cache holding at most maxEntries regions. When a
// Put exceeds the bound, the older half is evicted by fetch time.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

// Get implements RegionCache.
func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put implements RegionCache.
func (c *MemoryCache) Put(key string, entry Entry) {
	entry.Key = key

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.purgeLocked(len(c.entries) / 2)
	}
}

// PurgeOldest implements RegionCache.
func (c *MemoryCache) PurgeOldest(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		n = len(c.entries) / 2
	}
	return c.purgeLocked(n)
}

func (c *MemoryCache) purgeLocked(n int) int {
	if n <= 0 || len(c.entries) == 0 {
		return 0
	}
	if n >= len(c.entries) {
		n = len(c.entries)
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].FetchedAt.Before(c.entries[keys[j]].FetchedAt)
	})

	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
	return n
}

// Len implements RegionCache.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// FindFlight implements RegionCache.
func (c *MemoryCache) FindFlight(icao24 string) (opensky.FlightState, time.Time, bool) {
	icao24 = strings.ToLower(strings.TrimSpace(icao24))

	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		found     opensky.FlightState
		fetchedAt time.Time
		ok        bool
	)
	for _, e := range c.entries {
		if ok && !e.FetchedAt.After(fetchedAt) {
			continue
		}
		for _, f := range e.Flights {
			if f.ICAO24 == icao24 {
				found, fetchedAt, ok = f, e.FetchedAt, true
				break
			}
		}
	}
	return found, fetchedAt, ok
}
