package feed

import (
	"context"
	"sync"
	"time"

	"github.com/skyroute/flightfeed/pkg/logger"
)

// Region is a hot area kept warm in the cache.
type Region struct {
	Name   string
	Lat    float64
	Lng    float64
	Radius float64
}

// RegionStats tracks per-region warm-up statistics.
type RegionStats struct {
	Flights      int       `json:"flights"`
	LastUpdate   time.Time `json:"last_update"`
	LastError    string    `json:"last_error,omitempty"`
	TotalUpdates int       `json:"total_updates"`
}

// Warmer periodically queries configured regions through the Service so
// their cache entries are fresh when visitors arrive. It shares the cache
// and its freshness policy, so it never polls a region that is still fresh.
type Warmer struct {
	service  *Service
	regions  []Region
	interval time.Duration
	log      *logger.Logger

	mu    sync.Mutex
	stats map[string]*RegionStats
}

// NewWarmer creates a warmer for regions, running every interval.
func NewWarmer(service *Service, regions []Region, interval time.Duration, log *logger.Logger) *Warmer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Warmer{
		service:  service,
		regions:  regions,
		interval: interval,
		log:      log,
		stats:    make(map[string]*RegionStats, len(regions)),
	}
}

// Run warms all regions immediately and then on every tick until ctx is done.
func (w *Warmer) Run(ctx context.Context) {
	if len(w.regions) == 0 {
		w.log.Info("No warm-up regions configured")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Warming %d regions every %v", len(w.regions), w.interval)
	w.WarmOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.WarmOnce(ctx)
		}
	}
}

// WarmOnce queries every region once.
func (w *Warmer) WarmOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("PANIC in warm-up cycle: %v", r)
		}
	}()

	for _, region := range w.regions {
		if ctx.Err() != nil {
			return
		}

		result := w.service.Flights(ctx, Query{Lat: region.Lat, Lng: region.Lng, Radius: region.Radius})

		w.mu.Lock()
		stats := w.stats[region.Name]
		if stats == nil {
			stats = &RegionStats{}
			w.stats[region.Name] = stats
		}
		stats.Flights = len(result.Flights)
		stats.LastUpdate = w.service.now()
		stats.LastError = result.Error
		stats.TotalUpdates++
		w.mu.Unlock()

		if result.Error != "" {
			w.log.Warn("Region %s: %s", region.Name, result.Error)
			continue
		}
		w.log.Debug("Region %s: %d flights (cached=%v)", region.Name, len(result.Flights), result.Cached)
	}
}

// Stats returns a copy of the per-region statistics.
func (w *Warmer) Stats() map[string]RegionStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]RegionStats, len(w.stats))
	for name, s := range w.stats {
		out[name] = *s
	}
	return out
}
