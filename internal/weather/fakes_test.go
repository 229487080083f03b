package weather

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/greensync-weather/internal/common"
)

// testClock is a settable Clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// callLog records the order of upstream calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

type fakeProvider struct {
	payload ProviderPayload
	err     error
	calls   int
	log     *callLog
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchCurrent(ctx context.Context, loc Locality) (ProviderPayload, error) {
	f.calls++
	f.log.add("provider")
	return f.payload, f.err
}

// fakeFeed serves bodies keyed by YYYYMMDDHHmm stamps in UTC.
type fakeFeed struct {
	mu     sync.Mutex
	bodies map[string]string
	err    error
	calls  []time.Time
	log    *callLog
}

func (f *fakeFeed) FetchStationLine(ctx context.Context, stationID int, ts time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ts)
	f.log.add("feed")
	if body, ok := f.bodies[common.FormatStamp(ts, time.UTC)]; ok {
		return body, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return "", nil
}

func (f *fakeFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// floatParser treats the whole body as a single float.
type floatParser struct{}

func (floatParser) Parse(raw string) IrradianceSample {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return IrradianceSample{}
	}
	return IrradianceSample{Value: v, Success: true, Rule: "float"}
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []CanonicalReading
	saveErr error
}

func (s *fakeStore) SaveReading(ctx context.Context, farmID int64, r CanonicalReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return s.saveErr
}

func (s *fakeStore) GetLatest(ctx context.Context, farmID int64) (CanonicalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return CanonicalReading{}, nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) GetRange(ctx context.Context, farmID int64, from, to time.Time) ([]CanonicalReading, error) {
	return nil, nil
}

func (s *fakeStore) Stats(ctx context.Context, farmID int64, since time.Time) (ReadingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeReadings(s.saved), nil
}

func ptr(v float64) *float64 { return &v }

var seoul = Locality{Name: "seoul", Lat: 37.5665, Lon: 126.9780, StationID: 108}
