package weather

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/i474232898/greensync-weather/internal/common"
)

// MaxCandidateTimestamps bounds the fallback loop's feed calls per hour.
const MaxCandidateTimestamps = 4

// ReconcileTimeout is the longest a single reconciliation can legitimately
// take: one global call plus a full candidate walk, each feed call preceded
// by up to feedSpacing of limiter wait.
func ReconcileTimeout(globalTimeout, feedTimeout, feedSpacing time.Duration) time.Duration {
	return globalTimeout + MaxCandidateTimestamps*(feedTimeout+feedSpacing)
}

// CandidateTimestamps returns now's top-of-hour mark followed by the three
// preceding hours, most recent first. The result is always descending and
// free of duplicates.
func CandidateTimestamps(now time.Time) []time.Time {
	top := common.TopOfHour(now)
	out := make([]time.Time, 0, MaxCandidateTimestamps)
	for i := 0; i < MaxCandidateTimestamps; i++ {
		ts := top.Add(-time.Duration(i) * time.Hour)
		if len(out) > 0 && !ts.Before(out[len(out)-1]) {
			continue
		}
		out = append(out, ts)
	}
	return out
}

// InsolationEntry is the last value seen for a station in a given hour slot.
type InsolationEntry struct {
	Hour  time.Time
	Value float64
}

// InsolationCache memoizes one irradiance value per station per hour.
// Writes are last-write-wins.
type InsolationCache struct {
	mu      sync.Mutex
	entries map[int]InsolationEntry
}

func NewInsolationCache() *InsolationCache {
	return &InsolationCache{entries: make(map[int]InsolationEntry)}
}

// Lookup returns the entry for station only if it belongs to hour.
func (c *InsolationCache) Lookup(stationID int, hour time.Time) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[stationID]
	if !ok || !e.Hour.Equal(hour) {
		return 0, false
	}
	return e.Value, true
}

// Previous returns the most recent entry for station regardless of its hour.
func (c *InsolationCache) Previous(stationID int) (InsolationEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[stationID]
	return e, ok
}

// Store overwrites the entry for station.
func (c *InsolationCache) Store(stationID int, hour time.Time, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[stationID] = InsolationEntry{Hour: hour, Value: value}
}

// Invalidate drops the entry for station.
func (c *InsolationCache) Invalidate(stationID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, stationID)
}

// InsolationSource acquires irradiance for a station, consulting the cache
// first and walking the candidate timestamps on a miss.
type InsolationSource struct {
	feed   StationFeed
	parser LineParser
	cache  *InsolationCache
	now    Clock
	loc    *time.Location
}

// NewInsolationSource wires the feed client, parser and cache. loc is the
// timezone hour slots are computed in.
func NewInsolationSource(feed StationFeed, parser LineParser, cache *InsolationCache, now Clock, loc *time.Location) *InsolationSource {
	if cache == nil {
		cache = NewInsolationCache()
	}
	if now == nil {
		now = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &InsolationSource{feed: feed, parser: parser, cache: cache, now: now, loc: loc}
}

// Cache exposes the underlying cache.
func (s *InsolationSource) Cache() *InsolationCache {
	return s.cache
}

// GetInsolation never fails: feed and parser errors degrade to the cached
// value, or zero when nothing has been seen yet.
func (s *InsolationSource) GetInsolation(ctx context.Context, stationID int) float64 {
	now := s.now().In(s.loc)
	hour := common.TopOfHour(now)

	if v, ok := s.cache.Lookup(stationID, hour); ok {
		return v
	}

	sample, ok := firstSuccess(CandidateTimestamps(now), func(ts time.Time) (IrradianceSample, bool) {
		return s.attempt(ctx, stationID, ts)
	})
	if ok {
		s.cache.Store(stationID, hour, sample.Value)
		log.Printf("insolation: station %d value %.2f from %s (%s)",
			stationID, sample.Value, common.FormatStamp(sample.SourceTimestamp, s.loc), sample.Rule)
		return sample.Value
	}

	fallback := 0.0
	if prev, ok := s.cache.Previous(stationID); ok {
		fallback = prev.Value
	}
	if err := ctx.Err(); err != nil {
		// Candidates were skipped, not exhausted; leave the hour open.
		log.Printf("insolation: station %d loop cut short (%v); using %.2f", stationID, err, fallback)
		return fallback
	}
	// Mark the hour visited so the loop is not retried until the next slot.
	s.cache.Store(stationID, hour, fallback)
	log.Printf("insolation: station %d exhausted %d candidates; using %.2f", stationID, MaxCandidateTimestamps, fallback)
	return fallback
}

func (s *InsolationSource) attempt(ctx context.Context, stationID int, ts time.Time) (IrradianceSample, bool) {
	if ctx.Err() != nil {
		return IrradianceSample{}, false
	}
	raw, err := s.feed.FetchStationLine(ctx, stationID, ts)
	if err != nil {
		log.Printf("insolation: feed failed for station %d at %s (status %d): %v",
			stationID, common.FormatStamp(ts, s.loc), StatusOf(err), err)
		return IrradianceSample{}, false
	}
	sample := s.parser.Parse(raw)
	if !sample.Success {
		log.Printf("insolation: no irradiance in feed for station %d at %s", stationID, common.FormatStamp(ts, s.loc))
		return IrradianceSample{}, false
	}
	if sample.SourceTimestamp.IsZero() {
		sample.SourceTimestamp = ts
	}
	return sample, true
}

// firstSuccess calls try for each candidate in order and stops at the first
// success.
func firstSuccess[T any](candidates []time.Time, try func(time.Time) (T, bool)) (T, bool) {
	for _, c := range candidates {
		if v, ok := try(c); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
