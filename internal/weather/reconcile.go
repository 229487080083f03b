package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/greensync-weather/internal/common"
)

// Reconciler merges the global provider's current conditions with station
// irradiance into one CanonicalReading.
type Reconciler struct {
	provider   CurrentProvider
	insolation *InsolationSource
	freshness  FreshnessValidator
	now        Clock
	loc        *time.Location
}

// NewReconciler creates a Reconciler. loc is the target timezone for
// observation times and the fixed day window.
func NewReconciler(provider CurrentProvider, insolation *InsolationSource, freshness FreshnessValidator, now Clock, loc *time.Location) *Reconciler {
	if now == nil {
		now = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		provider:   provider,
		insolation: insolation,
		freshness:  freshness,
		now:        now,
		loc:        loc,
	}
}

// Provider returns the global provider used for current conditions.
func (r *Reconciler) Provider() CurrentProvider {
	return r.provider
}

// Reconcile produces a complete reading for loc or an error; it never
// returns a partially populated reading.
func (r *Reconciler) Reconcile(ctx context.Context, loc Locality, farmID int64) (CanonicalReading, error) {
	payload, err := r.provider.FetchCurrent(ctx, loc)
	if err != nil {
		return CanonicalReading{}, fmt.Errorf("reconcile %s: %w", loc.Name, err)
	}

	observedAt := payload.ObservedAt()
	if observedAt.IsZero() {
		return CanonicalReading{}, fmt.Errorf("reconcile %s: %w: missing observation timestamp", loc.Name, ErrUpstreamFormat)
	}

	now := r.now()
	fresh := r.freshness.Classify(observedAt, now)
	switch fresh.Status {
	case FreshnessOutdated:
		log.Printf("reconcile: %s provider reading is %d minutes old (%s)", loc.Name, fresh.DeltaMinutes, fresh.Status)
	case FreshnessError:
		log.Printf("reconcile: %s freshness could not be classified", loc.Name)
	}

	isDay := DeriveIsDay(payload.Icon, payload.Sunrise, payload.Sunset, now, r.loc)

	insolation := 0.0
	if isDay && r.insolation != nil {
		insolation = r.insolation.GetInsolation(ctx, loc.StationID)
	} else if !isDay {
		log.Printf("reconcile: %s is in night time; skipping station %d irradiance", loc.Name, loc.StationID)
	}

	reading := CanonicalReading{
		ObservationTime: common.FormatStamp(observedAt, r.loc),
		WindDirection:   payload.WindDeg,
		WindSpeed:       payload.WindSpeed,
		OutsideTemp:     payload.Temperature,
		DewPoint:        payload.DewPoint,
		Insolation:      insolation,
		IsDay:           isDay,
		IsRain:          DeriveIsRain(payload),
		LocalityID:      farmID,
		Locality:        loc.Name,
		Freshness:       fresh.Status,
		CollectedAt:     now.UTC(),
	}

	if err := ValidateReading(reading); err != nil {
		return CanonicalReading{}, fmt.Errorf("reconcile %s: %w: %v", loc.Name, ErrUpstreamFormat, err)
	}
	return reading, nil
}
