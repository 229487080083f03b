package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/greensync-weather/internal/weather"
	"github.com/i474232898/greensync-weather/internal/weather/providers"
)

type countingCollector struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{}
	started chan struct{}
	reading weather.CanonicalReading
}

func (c *countingCollector) CollectAndStore(ctx context.Context, t weather.Target) (weather.CanonicalReading, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return weather.CanonicalReading{}, c.err
	}
	r := c.reading
	r.LocalityID = t.FarmID
	return r, nil
}

func (c *countingCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var testTargets = []weather.Target{{
	Locality: weather.Locality{Name: "seoul", Lat: 37.5665, Lon: 126.978, StationID: 108},
	FarmID:   1,
}}

func TestBudgetDisablesAfterMaxCalls(t *testing.T) {
	col := &countingCollector{}
	s := New(Config{MaxCalls: 3}, testTargets, col, nil)

	for i := 0; i < 3; i++ {
		if err := s.Fire(context.Background()); err != nil {
			t.Fatalf("firing %d: unexpected error: %v", i+1, err)
		}
	}
	if s.State() != StateDisabled {
		t.Fatalf("expected Disabled after max calls, got %s", s.State())
	}

	for i := 0; i < 5; i++ {
		if err := s.Fire(context.Background()); !errors.Is(err, weather.ErrBudgetExhausted) {
			t.Fatalf("expected ErrBudgetExhausted, got %v", err)
		}
	}
	if col.count() != 3 {
		t.Fatalf("expected 3 collections, got %d", col.count())
	}

	st := s.Status()
	if st.CallCount != 3 || st.Remaining != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestFailedCycleStillConsumesBudget(t *testing.T) {
	col := &countingCollector{err: weather.ErrAuth}
	s := New(Config{MaxCalls: 2}, testTargets, col, nil)

	_ = s.Fire(context.Background())
	_ = s.Fire(context.Background())
	if s.State() != StateDisabled {
		t.Fatalf("expected Disabled, got %s", s.State())
	}
}

func TestOneFiringRunsAllTargets(t *testing.T) {
	targets := append([]weather.Target{}, testTargets...)
	targets = append(targets, weather.Target{
		Locality: weather.Locality{Name: "busan", Lat: 35.1796, Lon: 129.0756, StationID: 159},
		FarmID:   2,
	})
	col := &countingCollector{}
	s := New(Config{MaxCalls: 10}, targets, col, nil)

	if err := s.Fire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.count() != 2 {
		t.Fatalf("expected both targets collected, got %d", col.count())
	}
	if s.Status().CallCount != 1 {
		t.Fatalf("expected one unit of budget, got %d", s.Status().CallCount)
	}
}

func TestOverlappingFiringIsRejected(t *testing.T) {
	col := &countingCollector{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(Config{MaxCalls: 10}, testTargets, col, nil)

	done := make(chan error, 1)
	go func() { done <- s.Fire(context.Background()) }()
	<-col.started

	if err := s.Fire(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("expected ErrCycleInFlight, got %v", err)
	}
	if !s.Status().InFlight {
		t.Fatal("expected status to report in-flight cycle")
	}

	close(col.block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first firing: %v", err)
	}
	if s.Status().CallCount != 1 {
		t.Fatalf("rejected firing must not consume budget, got %d", s.Status().CallCount)
	}
}

func TestResetReenables(t *testing.T) {
	col := &countingCollector{}
	s := New(Config{MaxCalls: 1}, testTargets, col, nil)

	_ = s.Fire(context.Background())
	if s.State() != StateDisabled {
		t.Fatalf("expected Disabled, got %s", s.State())
	}
	if err := s.Start(); !errors.Is(err, weather.ErrBudgetExhausted) {
		t.Fatalf("expected start to refuse while disabled, got %v", err)
	}

	s.Reset()
	if s.State() != StateIdle || s.Status().CallCount != 0 {
		t.Fatalf("unexpected status after reset %+v", s.Status())
	}
	if err := s.Fire(context.Background()); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestResetDuringFinalCycleKeepsScheduler(t *testing.T) {
	col := &countingCollector{block: make(chan struct{}), started: make(chan struct{})}
	s := New(Config{MaxCalls: 1}, testTargets, col, nil)

	done := make(chan error, 1)
	go func() { done <- s.Fire(context.Background()) }()

	<-col.started
	s.Reset()
	close(col.block)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() == StateDisabled {
		t.Fatal("reset during the final cycle must not leave the scheduler disabled")
	}
	if st := s.Status(); st.CallCount != 0 || st.Remaining != 1 {
		t.Fatalf("unexpected status after reset %+v", st)
	}
}

func TestDefaultCycleTimeoutCoversReconcile(t *testing.T) {
	need := weather.ReconcileTimeout(providers.DefaultOneCallTimeout, providers.DefaultKMATimeout, time.Second)
	if DefaultCycleTimeout < need {
		t.Fatalf("DefaultCycleTimeout %v is shorter than a full reconcile %v", DefaultCycleTimeout, need)
	}
}

func TestStartStop(t *testing.T) {
	col := &countingCollector{}
	s := New(Config{Interval: time.Hour, WarmUp: time.Hour}, testTargets, col, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatalf("expected Running, got %s", s.State())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("re-entrant start should be a no-op, got %v", err)
	}

	s.Stop()
	if s.State() != StateIdle {
		t.Fatalf("expected Idle after stop, got %s", s.State())
	}
	if col.count() != 0 {
		t.Fatalf("no firing expected before warm-up, got %d", col.count())
	}
}

func TestStartWithoutTargets(t *testing.T) {
	s := New(Config{}, nil, &countingCollector{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected Idle without targets, got %s", s.State())
	}
}

func TestScheduledFiringAfterWarmUp(t *testing.T) {
	col := &countingCollector{started: make(chan struct{}, 4)}
	s := New(Config{Interval: time.Hour, WarmUp: 50 * time.Millisecond}, testTargets, col, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	select {
	case <-col.started:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a firing after warm-up")
	}
}

func TestDiff(t *testing.T) {
	prev := weather.CanonicalReading{ObservationTime: "202501151300", OutsideTemp: 3.2, Insolation: 1.1, IsDay: true}
	next := prev
	if changes := Diff(prev, next); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}

	next.ObservationTime = "202501151305"
	next.OutsideTemp = 3.6
	next.IsRain = true
	changes := Diff(prev, next)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", changes)
	}
	if changes[1].Field != "outsideTemp" || changes[1].Before != 3.2 || changes[1].After != 3.6 {
		t.Fatalf("unexpected change %+v", changes[1])
	}
}
