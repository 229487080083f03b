package weather

import (
	"context"
	"time"
)

// CurrentProvider abstracts the global current-conditions source.
type CurrentProvider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Locality) (ProviderPayload, error)
}

// StationFeed abstracts the national hourly station text feed. ts must be a
// top-of-hour timestamp.
type StationFeed interface {
	FetchStationLine(ctx context.Context, stationID int, ts time.Time) (string, error)
}

// LineParser turns a raw station feed body into an irradiance sample. It must
// not perform I/O.
type LineParser interface {
	Parse(raw string) IrradianceSample
}

// Store is the persistence collaborator contract. Implementations live in
// internal/store.
type Store interface {
	SaveReading(ctx context.Context, farmID int64, reading CanonicalReading) error
	GetLatest(ctx context.Context, farmID int64) (CanonicalReading, error)
	GetRange(ctx context.Context, farmID int64, from, to time.Time) ([]CanonicalReading, error)
	Stats(ctx context.Context, farmID int64, since time.Time) (ReadingStats, error)
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time {
	return time.Now()
}
