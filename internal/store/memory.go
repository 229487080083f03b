package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/greensync-weather/internal/weather"
)

var (
	// ErrNotFound is returned when no readings are available for a farm.
	ErrNotFound = errors.New("no weather readings for farm")
)

// ReadingHistory holds a collection-ordered list of readings for a farm.
type ReadingHistory struct {
	Readings []weather.CanonicalReading
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: farm id, value: history
	data map[int64]*ReadingHistory

	// retention configuration
	maxHistory int           // max number of readings per farm
	maxAge     time.Duration // optional max age for readings
	now        weather.Clock
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[int64]*ReadingHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        weather.SystemClock,
	}
}

// WithClock replaces the clock used for age retention and CollectedAt.
func (s *MemoryStore) WithClock(now weather.Clock) *MemoryStore {
	s.now = now
	return s
}

// SaveReading validates and appends a reading, then enforces retention.
func (s *MemoryStore) SaveReading(_ context.Context, farmID int64, reading weather.CanonicalReading) error {
	if err := weather.ValidateReading(reading); err != nil {
		return err
	}
	reading.LocalityID = farmID
	if reading.CollectedAt.IsZero() {
		reading.CollectedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[farmID]
	if !ok {
		history = &ReadingHistory{}
		s.data[farmID] = history
	}

	history.Readings = append(history.Readings, reading)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Readings) > s.maxHistory {
		over := len(history.Readings) - s.maxHistory
		history.Readings = history.Readings[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Readings); i++ {
			if !history.Readings[i].CollectedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Readings) {
			history.Readings = history.Readings[i:]
		}
	}
	return nil
}

// GetLatest returns the most recently saved reading for a farm.
func (s *MemoryStore) GetLatest(_ context.Context, farmID int64) (weather.CanonicalReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[farmID]
	if !ok || len(history.Readings) == 0 {
		return weather.CanonicalReading{}, ErrNotFound
	}
	return history.Readings[len(history.Readings)-1], nil
}

// GetRange returns all readings for a farm collected between from and to
// (inclusive).
func (s *MemoryStore) GetRange(_ context.Context, farmID int64, from, to time.Time) ([]weather.CanonicalReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[farmID]
	if !ok || len(history.Readings) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.CanonicalReading
	for _, r := range history.Readings {
		if !r.CollectedAt.Before(from) && !r.CollectedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Stats summarizes a farm's readings collected at or after since.
func (s *MemoryStore) Stats(ctx context.Context, farmID int64, since time.Time) (weather.ReadingStats, error) {
	readings, err := s.GetRange(ctx, farmID, since, s.now())
	if errors.Is(err, ErrNotFound) {
		return weather.ReadingStats{}, nil
	}
	if err != nil {
		return weather.ReadingStats{}, err
	}
	return weather.SummarizeReadings(readings), nil
}
