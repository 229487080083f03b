package weather

import (
	"math"
	"time"
)

// DefaultRealtimeTolerance is the maximum provider age still treated as realtime.
const DefaultRealtimeTolerance = 15 * time.Minute

// FreshnessValidator compares a provider observation time with wall-clock time.
type FreshnessValidator struct {
	Tolerance time.Duration
}

// NewFreshnessValidator returns a validator; a non-positive tolerance selects
// DefaultRealtimeTolerance.
func NewFreshnessValidator(tolerance time.Duration) FreshnessValidator {
	if tolerance <= 0 {
		tolerance = DefaultRealtimeTolerance
	}
	return FreshnessValidator{Tolerance: tolerance}
}

// Classify reports whether providerTS is within tolerance of now. A zero
// timestamp on either side yields FreshnessError.
func (v FreshnessValidator) Classify(providerTS, now time.Time) Freshness {
	if providerTS.IsZero() || now.IsZero() {
		return Freshness{Status: FreshnessError}
	}

	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultRealtimeTolerance
	}

	delta := now.Sub(providerTS)
	if delta < 0 {
		delta = -delta
	}
	minutes := int(math.Round(delta.Minutes()))

	if delta <= tolerance {
		return Freshness{IsRealtime: true, DeltaMinutes: minutes, Status: FreshnessRealtime}
	}
	return Freshness{IsRealtime: false, DeltaMinutes: minutes, Status: FreshnessOutdated}
}
