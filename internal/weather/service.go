package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Target pairs a locality with the farm its readings are stored under.
type Target struct {
	Locality Locality `json:"locality"`
	FarmID   int64    `json:"farmId"`
}

// Service orchestrates reconciliation and persistence.
type Service struct {
	store      Store
	reconciler *Reconciler
	now        Clock
}

// NewService creates a new Service.
func NewService(store Store, reconciler *Reconciler, now Clock) *Service {
	if now == nil {
		now = SystemClock
	}
	return &Service{
		store:      store,
		reconciler: reconciler,
		now:        now,
	}
}

// CollectAndStore reconciles one target and hands the reading to the store.
// A store failure is logged and swallowed; the reading is still returned.
func (s *Service) CollectAndStore(ctx context.Context, t Target) (CanonicalReading, error) {
	reading, err := s.Reconcile(ctx, t)
	if err != nil {
		return CanonicalReading{}, err
	}

	if s.store == nil {
		log.Printf("ERROR: no store configured; reading for farm %d not persisted", t.FarmID)
		return reading, nil
	}
	if err := s.store.SaveReading(ctx, t.FarmID, reading); err != nil {
		log.Printf("ERROR: saving reading for farm %d (%s at %s): %v", t.FarmID, t.Locality.Name, reading.ObservationTime, err)
	}
	return reading, nil
}

// Reconcile produces a reading without persisting it.
func (s *Service) Reconcile(ctx context.Context, t Target) (CanonicalReading, error) {
	if s.reconciler == nil {
		return CanonicalReading{}, fmt.Errorf("no reconciler configured")
	}
	log.Printf("DEBUG: Reconcile called for %s (farm %d)", t.Locality.Key(), t.FarmID)
	return s.reconciler.Reconcile(ctx, t.Locality, t.FarmID)
}

// CurrentConditions returns the provider payload for loc without enrichment.
func (s *Service) CurrentConditions(ctx context.Context, loc Locality) (ProviderPayload, error) {
	if s.reconciler == nil || s.reconciler.Provider() == nil {
		return ProviderPayload{}, fmt.Errorf("no weather provider configured")
	}
	return s.reconciler.Provider().FetchCurrent(ctx, loc)
}

// ErrNoStore is returned by read operations when the service has no store.
var ErrNoStore = errors.New("no store configured")

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ctx context.Context, farmID int64) (CanonicalReading, error) {
	if s.store == nil {
		return CanonicalReading{}, ErrNoStore
	}
	return s.store.GetLatest(ctx, farmID)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, farmID int64, from, to time.Time) ([]CanonicalReading, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetRange(ctx, farmID, from, to)
}

// GetStats summarizes a farm's readings over period ("24h", "7d" or "30d").
func (s *Service) GetStats(ctx context.Context, farmID int64, period string) (ReadingStats, error) {
	if s.store == nil {
		return ReadingStats{}, ErrNoStore
	}
	window, err := StatsWindow(period)
	if err != nil {
		log.Printf("WARN: %v; using 24h", err)
		period, window = "24h", 24*time.Hour
	}
	stats, err := s.store.Stats(ctx, farmID, s.now().Add(-window))
	if err != nil {
		return ReadingStats{}, err
	}
	stats.Period = period
	return stats, nil
}

var errUnsupportedPeriod = errors.New("unsupported stats period")

// StatsWindow maps a stats period name to its duration.
func StatsWindow(period string) (time.Duration, error) {
	switch period {
	case "24h", "":
		return 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	case "30d":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnsupportedPeriod, period)
	}
}
