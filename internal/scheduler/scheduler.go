package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/i474232898/greensync-weather/internal/weather"
)

// State is the scheduler lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateDisabled State = "DISABLED"
)

const (
	DefaultMaxCalls      = 1000
	DefaultInterval      = 5 * time.Minute
	DefaultWarmUp        = 3 * time.Second
	DefaultCycleTimeout  = 60 * time.Second
	DefaultWarnRemaining = 50
)

// ErrCycleInFlight is returned by Fire when the previous cycle has not
// finished yet.
var ErrCycleInFlight = errors.New("collection cycle already in flight")

// Collector runs one reconciliation for a target and persists the result.
type Collector interface {
	CollectAndStore(ctx context.Context, t weather.Target) (weather.CanonicalReading, error)
}

// Config holds scheduler settings.
type Config struct {
	Interval time.Duration
	// WarmUp delays the first firing after Start.
	WarmUp   time.Duration
	MaxCalls int64
	// CycleTimeout bounds each target's reconciliation. It must cover a full
	// insolation candidate walk; see weather.ReconcileTimeout.
	CycleTimeout time.Duration
	// WarnRemaining logs a warning once this many calls or fewer remain.
	WarnRemaining int64
	Location      *time.Location
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.WarmUp < 0 {
		c.WarmUp = 0
	}
	if c.MaxCalls <= 0 {
		c.MaxCalls = DefaultMaxCalls
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
	if c.WarnRemaining < 0 {
		c.WarnRemaining = 0
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State     State     `json:"state"`
	CallCount int64     `json:"callCount"`
	MaxCalls  int64     `json:"maxCalls"`
	Remaining int64     `json:"remaining"`
	Interval  string    `json:"interval"`
	InFlight  bool      `json:"inFlight"`
	LastRun   time.Time `json:"lastRun"`
	LastCycle string    `json:"lastCycle,omitempty"`
	Targets   []string  `json:"targets"`
}

// Scheduler periodically collects readings for the configured targets within
// a lifetime call budget. One firing consumes one unit of budget regardless
// of the number of targets.
type Scheduler struct {
	mu   sync.Mutex
	cron *gocron.Scheduler
	job  *gocron.Job

	collector Collector
	targets   []weather.Target
	cfg       Config
	now       weather.Clock

	state    *atomic.String
	calls    *atomic.Int64
	inFlight *atomic.Bool

	lastMu    sync.Mutex
	previous  map[int64]weather.CanonicalReading
	lastRun   time.Time
	lastCycle string
}

// New creates a new Scheduler in the Idle state.
func New(cfg Config, targets []weather.Target, collector Collector, now weather.Clock) *Scheduler {
	if now == nil {
		now = weather.SystemClock
	}
	return &Scheduler{
		collector: collector,
		targets:   targets,
		cfg:       cfg.withDefaults(),
		now:       now,
		state:     atomic.NewString(string(StateIdle)),
		calls:     atomic.NewInt64(0),
		inFlight:  atomic.NewBool(false),
		previous:  make(map[int64]weather.CanonicalReading),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start schedules the recurring job. The first firing happens after the
// warm-up delay. Calling Start while Running is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateRunning:
		log.Println("scheduler: WARN start called while already running; ignoring")
		return nil
	case StateDisabled:
		log.Printf("scheduler: budget exhausted (%d/%d); reset before starting", s.calls.Load(), s.cfg.MaxCalls)
		return weather.ErrBudgetExhausted
	}

	if len(s.targets) == 0 {
		log.Println("scheduler: no targets configured; nothing to schedule")
		return nil
	}

	c := gocron.NewScheduler(s.cfg.Location)
	c.Every(s.cfg.Interval)
	if s.cfg.WarmUp > 0 {
		c.StartAt(time.Now().Add(s.cfg.WarmUp))
	} else {
		c.StartImmediately()
	}
	job, err := c.SingletonMode().Do(s.tick)
	if err != nil {
		return err
	}

	c.StartAsync()
	s.cron, s.job = c, job
	s.state.Store(string(StateRunning))

	log.Printf("scheduler: started; every %s after %s warm-up, %d/%d calls used",
		s.cfg.Interval, s.cfg.WarmUp, s.calls.Load(), s.cfg.MaxCalls)
	return nil
}

// Stop cancels future firings and returns to Idle. A cycle already in flight
// is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron, s.job = nil, nil
	s.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	if s.State() != StateIdle {
		s.state.Store(string(StateIdle))
		log.Printf("scheduler: stopped (%d/%d calls used)", s.calls.Load(), s.cfg.MaxCalls)
	}
}

// Reset zeroes the call counter. A Disabled scheduler returns to Idle.
func (s *Scheduler) Reset() {
	s.calls.Store(0)
	if s.State() == StateDisabled {
		s.state.Store(string(StateIdle))
	}
	log.Printf("scheduler: call counter reset (0/%d)", s.cfg.MaxCalls)
}

// Status reports the scheduler state and budget usage.
func (s *Scheduler) Status() Status {
	calls := s.calls.Load()
	remaining := s.cfg.MaxCalls - calls
	if remaining < 0 {
		remaining = 0
	}

	targets := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t.Locality.Name)
	}

	s.lastMu.Lock()
	lastRun, lastCycle := s.lastRun, s.lastCycle
	s.lastMu.Unlock()

	return Status{
		State:     s.State(),
		CallCount: calls,
		MaxCalls:  s.cfg.MaxCalls,
		Remaining: remaining,
		Interval:  s.cfg.Interval.String(),
		InFlight:  s.inFlight.Load(),
		LastRun:   lastRun,
		LastCycle: lastCycle,
		Targets:   targets,
	}
}

func (s *Scheduler) tick() {
	err := s.Fire(context.Background())
	if err != nil && !errors.Is(err, weather.ErrBudgetExhausted) {
		log.Printf("scheduler: %v", err)
	}
}

// Fire runs one collection cycle over all targets, consuming one unit of
// budget. It returns weather.ErrBudgetExhausted once the budget is spent and
// ErrCycleInFlight if another cycle is running.
func (s *Scheduler) Fire(ctx context.Context) error {
	if s.State() == StateDisabled {
		return weather.ErrBudgetExhausted
	}
	if !s.inFlight.CAS(false, true) {
		log.Println("scheduler: previous cycle still in flight; skipping firing")
		return ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	if s.calls.Load() >= s.cfg.MaxCalls {
		log.Printf("scheduler: budget of %d calls reached; disabling", s.cfg.MaxCalls)
		s.disable()
		return weather.ErrBudgetExhausted
	}

	n := s.calls.Inc()
	cycleID := uuid.NewString()
	started := s.now()

	log.Printf("scheduler: cycle %s started (%d/%d)", cycleID, n, s.cfg.MaxCalls)
	s.runCycle(ctx, cycleID)

	s.lastMu.Lock()
	s.lastRun, s.lastCycle = started, cycleID
	s.lastMu.Unlock()

	// Re-read the counter: Reset may have run while the cycle was in flight.
	used := s.calls.Load()
	remaining := s.cfg.MaxCalls - used
	log.Printf("scheduler: cycle %s finished; %d calls remaining", cycleID, remaining)
	if remaining <= s.cfg.WarnRemaining {
		log.Printf("scheduler: WARN only %d calls remaining", remaining)
	}

	if used >= s.cfg.MaxCalls {
		log.Printf("scheduler: budget of %d calls reached; disabling", s.cfg.MaxCalls)
		s.disable()
	}
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context, cycleID string) {
	for _, t := range s.targets {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
		reading, err := s.collector.CollectAndStore(cctx, t)
		cancel()

		if err != nil {
			log.Printf("scheduler: cycle %s: farm %d (%s, station %d) failed (status %d): %v",
				cycleID, t.FarmID, t.Locality.Name, t.Locality.StationID, weather.StatusOf(err), err)
			continue
		}

		s.lastMu.Lock()
		prev, seen := s.previous[t.FarmID]
		s.previous[t.FarmID] = reading
		s.lastMu.Unlock()

		if !seen {
			log.Printf("scheduler: cycle %s: farm %d first reading at %s: temp=%.1f insolation=%.2f isDay=%t isRain=%t",
				cycleID, t.FarmID, reading.ObservationTime, reading.OutsideTemp, reading.Insolation, reading.IsDay, reading.IsRain)
			continue
		}
		changes := Diff(prev, reading)
		if len(changes) == 0 {
			log.Printf("scheduler: cycle %s: farm %d unchanged", cycleID, t.FarmID)
			continue
		}
		for _, c := range changes {
			log.Printf("scheduler: cycle %s: farm %d %s: %v -> %v", cycleID, t.FarmID, c.Field, c.Before, c.After)
		}
	}
}

// disable moves to Disabled and cancels the recurring job. It may run on the
// job's own goroutine, so the gocron scheduler is stopped asynchronously.
func (s *Scheduler) disable() {
	s.state.Store(string(StateDisabled))

	s.mu.Lock()
	c, job := s.cron, s.job
	s.cron, s.job = nil, nil
	s.mu.Unlock()

	if c != nil {
		if job != nil {
			c.RemoveByReference(job)
		}
		go c.Stop()
	}
}
