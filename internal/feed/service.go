// Package feed serves the live flight feed: it answers region queries from
// the region cache when fresh, polls the upstream when not, and falls back to
// the last good snapshot when the upstream fails.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/skyroute/flightfeed/internal/cache"
	"github.com/skyroute/flightfeed/internal/metrics"
	"github.com/skyroute/flightfeed/pkg/coordinates"
	"github.com/skyroute/flightfeed/pkg/logger"
	"github.com/skyroute/flightfeed/pkg/opensky"
	"github.com/skyroute/flightfeed/pkg/tracking"
)

// Config wires a Service. Fetcher, Tokens and Cache are required.
type Config struct {
	Fetcher opensky.StatesFetcher
	Tokens  opensky.TokenSource
	Cache   cache.RegionCache
	Policy  cache.FreshnessPolicy

	// KeyPrecision is the number of decimals cache keys are rounded to.
	// Zero keys by whole degree; negative selects the default.
	KeyPrecision int

	// Directory is optional
	Directory Directory

	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Service is the flight feed orchestrator.
type Service struct {
	fetcher   opensky.StatesFetcher
	tokens    opensky.TokenSource
	cache     cache.RegionCache
	policy    cache.FreshnessPolicy
	precision int
	directory Directory
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time

	// fetches coalesces concurrent misses for the same region key
	fetches singleflight.Group

	rateLimitLog rate.Sometimes
}

// NewService creates a feed service.
func NewService(cfg Config) *Service {
	if cfg.Policy.AuthenticatedTTL <= 0 && cfg.Policy.AnonymousTTL <= 0 {
		cfg.Policy = cache.DefaultFreshnessPolicy()
	}
	if cfg.KeyPrecision < 0 {
		cfg.KeyPrecision = cache.DefaultKeyPrecision
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		fetcher:      cfg.Fetcher,
		tokens:       cfg.Tokens,
		cache:        cfg.Cache,
		policy:       cfg.Policy,
		precision:    cfg.KeyPrecision,
		directory:    cfg.Directory,
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		now:          cfg.Now,
		rateLimitLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// outcomeKind tags the result of one upstream fetch.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRateLimited
	outcomeAuthError
	outcomeTransient
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeAuthError:
		return "auth_error"
	default:
		return "transient_error"
	}
}

type fetchOutcome struct {
	kind  outcomeKind
	entry cache.Entry
	err   error

	// fresh is set when another caller refreshed the entry first
	fresh bool
}

func classify(err error) outcomeKind {
	if err == nil {
		return outcomeSuccess
	}
	switch opensky.KindOf(err) {
	case opensky.KindRateLimited:
		return outcomeRateLimited
	case opensky.KindAuth:
		return outcomeAuthError
	default:
		return outcomeTransient
	}
}

// ValidateQuery fills the default radius and checks ranges.
func ValidateQuery(q Query) (Query, error) {
	if q.Radius == 0 {
		q.Radius = DefaultRadius
	}
	switch {
	case math.IsNaN(q.Lat) || q.Lat < -90 || q.Lat > 90:
		return q, fmt.Errorf("%w: lat must be within [-90, 90]", ErrInvalidQuery)
	case math.IsNaN(q.Lng) || q.Lng < -180 || q.Lng > 180:
		return q, fmt.Errorf("%w: lng must be within [-180, 180]", ErrInvalidQuery)
	case math.IsNaN(q.Radius) || q.Radius <= 0 || q.Radius > 90:
		return q, fmt.Errorf("%w: radius must be within (0, 90]", ErrInvalidQuery)
	}
	return q, nil
}

// Key returns the cache key a query maps to.
func (s *Service) Key(q Query) string {
	return cache.Key(q.Lat, q.Lng, q.Radius, s.precision)
}

// Flights answers a region query. It never fails outright: upstream errors
// are reported in Result.Error alongside the best data available.
//
//	fresh entry          -> predict forward, no upstream call
//	stale or missing     -> fetch
//	fetch success        -> store, return observed positions
//	fetch failed         -> last snapshot (cached=true) or empty, with error
func (s *Service) Flights(ctx context.Context, q Query) Result {
	s.metrics.IncrementFeedRequests()

	if q.Radius == 0 {
		q.Radius = DefaultRadius
	}
	key := s.Key(q)
	now := s.now()

	if entry, ok := s.cache.Get(key); ok && s.policy.Fresh(entry, now, s.tokens.Authenticated()) {
		s.metrics.IncrementCacheHits()
		return s.predicted(entry, now)
	}
	s.metrics.IncrementCacheMisses()

	outcome := s.fetch(ctx, key, q)

	switch outcome.kind {
	case outcomeSuccess:
		if outcome.fresh {
			return s.predicted(outcome.entry, s.now())
		}
		return s.observed(outcome.entry, false, "")
	case outcomeRateLimited:
		if fe, ok := opensky.IsRateLimited(outcome.err); ok {
			s.rateLimitLog.Do(func() {
				s.log.Warn("OpenSky rate limit hit (retry after %v, remaining %d)", fe.RetryAfter, fe.Headers.Remaining)
			})
		}
	case outcomeAuthError:
		s.log.Warn("OpenSky authentication failed after anonymous retry: %v", outcome.err)
	default:
		s.log.Error("OpenSky fetch for %s failed: %v", key, outcome.err)
	}
	return s.fallback(key, outcome.err.Error(), now)
}

// fetch performs the single upstream call for key. Concurrent callers for
// the same key share it. The call is detached from the caller's cancellation
// so a disconnecting client does not fail the others; the HTTP client timeout
// still bounds it.
func (s *Service) fetch(ctx context.Context, key string, q Query) fetchOutcome {
	ctx = context.WithoutCancel(ctx)

	v, _, shared := s.fetches.Do(key, func() (interface{}, error) {
		if entry, ok := s.cache.Get(key); ok && s.policy.Fresh(entry, s.now(), s.tokens.Authenticated()) {
			return fetchOutcome{kind: outcomeSuccess, entry: entry, fresh: true}, nil
		}

		box := opensky.NewBoundingBox(q.Lat, q.Lng, q.Radius)
		credits := box.EstimatedCredits()

		start := time.Now()
		states, err := s.fetcher.FetchStates(ctx, box)
		s.metrics.RecordUpstreamCall(credits, time.Since(start), err)

		outcome := fetchOutcome{kind: classify(err), err: err}
		if outcome.kind != outcomeSuccess {
			return outcome, nil
		}

		outcome.entry = cache.Entry{Key: key, Flights: states, FetchedAt: s.now()}
		s.cache.Put(key, outcome.entry)
		s.log.Debug("Cached %d flights for %s (~%d credits)", len(states), key, credits)
		return outcome, nil
	})
	if shared {
		s.log.Debug("Shared upstream fetch for %s", key)
	}

	return v.(fetchOutcome)
}

// fallback serves the last good snapshot for key as observed data, or an
// empty result, with msg as the error.
func (s *Service) fallback(key, msg string, now time.Time) Result {
	if entry, ok := s.cache.Get(key); ok {
		s.metrics.IncrementStaleServed()
		return s.observed(entry, true, msg)
	}

	s.metrics.IncrementEmptyErrors()
	return Result{
		Flights:       []Flight{},
		Cached:        false,
		Timestamp:     now.UnixMilli(),
		Authenticated: s.tokens.Authenticated(),
		Error:         msg,
	}
}

// predicted projects every flight of a fresh entry forward by its age.
func (s *Service) predicted(entry cache.Entry, now time.Time) Result {
	elapsed := entry.Age(now)
	segments := tracking.SegmentsForElapsed(elapsed)

	flights := make([]Flight, len(entry.Flights))
	for i, state := range entry.Flights {
		flights[i] = s.project(state, elapsed, segments)
	}

	return Result{
		Flights:       flights,
		Cached:        true,
		Timestamp:     entry.Timestamp(),
		Authenticated: s.tokens.Authenticated(),
	}
}

// observed returns an entry as-is: predicted == observed, one-point
// trajectories.
func (s *Service) observed(entry cache.Entry, cached bool, errMsg string) Result {
	flights := make([]Flight, len(entry.Flights))
	for i, state := range entry.Flights {
		flights[i] = s.project(state, 0, 0)
	}

	return Result{
		Flights:       flights,
		Cached:        cached,
		Timestamp:     entry.Timestamp(),
		Authenticated: s.tokens.Authenticated(),
		Error:         errMsg,
	}
}

func (s *Service) project(state opensky.FlightState, elapsed time.Duration, segments int) Flight {
	predicted := tracking.PredictPosition(state, elapsed)
	f := Flight{
		FlightState:       state,
		PredictedPosition: predicted,
		PredictedAltitude: tracking.PredictAltitude(state, elapsed),
		Trajectory:        tracking.BuildTrajectory(state.Position(), predicted, segments),
	}
	if s.directory != nil {
		if airline, ok := s.directory.AirlineForCallsign(state.Callsign); ok {
			f.Airline = airline
		}
	}
	return f
}

// Lookup returns one aircraft by ICAO24. A fresh cached sighting is predicted
// forward; otherwise the aircraft is queried upstream once, with the stale
// sighting as fallback. With a destination, the trajectory runs from the
// predicted position to it.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (*Flight, error) {
	s.metrics.IncrementLookups()

	icao24 := strings.ToLower(strings.TrimSpace(req.ICAO24))
	if icao24 == "" {
		return nil, fmt.Errorf("%w: icao24 is required", ErrInvalidQuery)
	}

	var dest *Airport
	if req.Destination != nil {
		var err error
		if dest, err = s.resolveDestination(ctx, req.Destination); err != nil {
			return nil, err
		}
	}

	now := s.now()
	state, fetchedAt, cached := s.cache.FindFlight(icao24)
	if !cached || !s.policy.Fresh(cache.Entry{FetchedAt: fetchedAt}, now, s.tokens.Authenticated()) {
		start := time.Now()
		found, err := s.fetcher.FetchState(ctx, icao24)
		s.metrics.RecordUpstreamCall(1, time.Since(start), err)

		switch {
		case err == nil && found != nil:
			state, fetchedAt = *found, now
		case err != nil && cached:
			s.log.Warn("Lookup of %s failed upstream, using cached sighting: %v", icao24, err)
		case err != nil:
			return nil, fmt.Errorf("lookup %s: %w", icao24, err)
		case !cached:
			return nil, ErrFlightNotFound
		}
	}

	elapsed := now.Sub(fetchedAt)
	flight := s.project(state, elapsed, tracking.SegmentsForElapsed(elapsed))

	if dest != nil {
		flight.Destination = dest
		flight.Trajectory = tracking.TrajectoryTo(flight.PredictedPosition, dest.Position())
	}

	if s.directory != nil {
		aircraft, err := s.directory.AircraftByICAO24(ctx, icao24)
		if err != nil {
			s.log.Warn("Aircraft directory lookup for %s failed: %v", icao24, err)
		} else if aircraft != nil {
			flight.Aircraft = aircraft
		}
	}

	return &flight, nil
}

func (s *Service) resolveDestination(ctx context.Context, d *Destination) (*Airport, error) {
	if code := strings.ToUpper(strings.TrimSpace(d.Airport)); code != "" {
		if s.directory == nil {
			return nil, fmt.Errorf("%w: %s (no airport directory configured)", ErrUnknownAirport, code)
		}
		airport, err := s.directory.AirportByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("airport lookup %s: %w", code, err)
		}
		if airport == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, code)
		}
		return airport, nil
	}

	if d.Lat == nil || d.Lng == nil {
		return nil, fmt.Errorf("%w: destination needs lat and lng or an airport code", ErrInvalidQuery)
	}
	pos := coordinates.Geographic{Latitude: *d.Lat, Longitude: *d.Lng}
	if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 ||
		math.IsNaN(pos.Latitude) || math.IsNaN(pos.Longitude) {
		return nil, fmt.Errorf("%w: destination out of range", ErrInvalidQuery)
	}
	return &Airport{Latitude: pos.Latitude, Longitude: pos.Longitude}, nil
}

// Authenticated reports whether the upstream token is currently held.
func (s *Service) Authenticated() bool {
	return s.tokens.Authenticated()
}

// InvalidateToken drops the upstream token.
func (s *Service) InvalidateToken() {
	s.tokens.Invalidate()
}

// CacheSize returns the number of cached regions.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}

// PurgeCache evicts the n oldest regions (n <= 0: the older half).
func (s *Service) PurgeCache(n int) int {
	purged := s.cache.PurgeOldest(n)
	s.log.Info("Purged %d cached regions", purged)
	return purged
}

// Metrics returns the service's counters.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// IsNotFound reports whether err means the flight was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlightNotFound)
}
