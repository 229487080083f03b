package weather

import (
	"time"
)

// Locality is a named place with coordinates and the meteorological station
// that reports irradiance for it. Localities come from the registry and are
// never mutated.
type Locality struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64 `json:"lon" validate:"gte=-180,lte=180"`
	StationID int     `json:"stationId" validate:"gt=0"`
}

// Key returns a canonical string key for indexing this locality.
func (l Locality) Key() string {
	return l.Name
}

// ProviderPayload is the normalized current-conditions block returned by the
// global provider for one locality at one instant.
type ProviderPayload struct {
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temp"`
	WindSpeed   float64 `json:"windSpeed"`
	WindDeg     float64 `json:"windDeg"`
	// DewPoint is always set on payloads returned by a provider; a response
	// without it is rejected as ErrUpstreamFormat.
	DewPoint float64 `json:"dewPoint"`
	Icon     string  `json:"icon,omitempty"`

	// Epoch seconds, zero when absent.
	Sunrise int64 `json:"sunrise,omitempty"`
	Sunset  int64 `json:"sunset,omitempty"`
	Dt      int64 `json:"dt"`

	Rain1h *float64 `json:"rain1h,omitempty"`
	Snow1h *float64 `json:"snow1h,omitempty"`
}

// ObservedAt returns the provider observation instant, or the zero time.
func (p ProviderPayload) ObservedAt() time.Time {
	if p.Dt <= 0 {
		return time.Time{}
	}
	return time.Unix(p.Dt, 0).UTC()
}

// IrradianceSample is the result of parsing one station feed body.
type IrradianceSample struct {
	Value           float64
	Success         bool
	SourceTimestamp time.Time
	// Rule names the parsing strategy that produced Value.
	Rule string
}

// FreshnessStatus classifies a provider reading against wall-clock time.
type FreshnessStatus string

const (
	FreshnessRealtime FreshnessStatus = "REALTIME"
	FreshnessOutdated FreshnessStatus = "OUTDATED"
	FreshnessError    FreshnessStatus = "ERROR"
)

// Freshness is advisory metadata; it never blocks a reading.
type Freshness struct {
	IsRealtime   bool            `json:"isRealtime"`
	DeltaMinutes int             `json:"deltaMinutes"`
	Status       FreshnessStatus `json:"status"`
}

// CanonicalReading is the single normalized weather record produced per
// reconciliation cycle.
type CanonicalReading struct {
	ObservationTime string  `json:"observationTime" validate:"len=12,numeric"`
	WindDirection   float64 `json:"windDirection" validate:"gte=0,lte=360"`
	WindSpeed       float64 `json:"windSpeed" validate:"gte=0"`
	OutsideTemp     float64 `json:"outsideTemp" validate:"gte=-50,lte=60"`
	DewPoint        float64 `json:"dewPoint"`
	Insolation      float64 `json:"insolation" validate:"gte=0"`
	IsDay           bool    `json:"isDay"`
	IsRain          bool    `json:"isRain"`
	LocalityID      int64   `json:"farmId"`

	Locality    string          `json:"locality"`
	Freshness   FreshnessStatus `json:"freshness"`
	CollectedAt time.Time       `json:"collectedAt"`
}

// ReadingStats summarizes stored readings over a period.
type ReadingStats struct {
	Period          string  `json:"period"`
	AvgTemp         float64 `json:"avgTemp"`
	MinTemp         float64 `json:"minTemp"`
	MaxTemp         float64 `json:"maxTemp"`
	AvgWindSpeed    float64 `json:"avgWindSpeed"`
	TotalInsolation float64 `json:"totalInsolation"`
	AvgDewPoint     float64 `json:"avgDewPoint"`
	RainCount       int     `json:"rainCount"`
	RecordCount     int     `json:"recordCount"`
}
