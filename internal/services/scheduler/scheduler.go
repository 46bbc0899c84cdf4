// Package scheduler runs polling cycles on a fixed interval and guarantees
// that at most one cycle runs at a time.
package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roylee0704/gron"

	"github.com/mcoot/playerwatch/internal/dependencies/clock"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/model"
)

// State is the lifecycle state of the scheduler
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Poller runs one polling cycle
type Poller interface {
	PollAllPlayers(ctx context.Context) (*model.PollingCycleLog, error)
}

// Config controls the schedule
type Config struct {
	Interval   time.Duration
	RunOnStart bool
	// StopPollInterval is how often Stop checks for an in-flight cycle to finish
	StopPollInterval time.Duration
}

// DefaultConfig returns the default schedule
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		RunOnStart:       true,
		StopPollInterval: time.Second,
	}
}

// Status is a point-in-time view of the scheduler
type Status struct {
	State         State
	Interval      time.Duration
	StartedAt     *time.Time
	LastRunAt     *time.Time
	NextRunAt     *time.Time
	LastCycle     *model.PollingCycleLog
	LastError     string
	CyclesRun     int
	CyclesSkipped int
}

// Scheduler triggers polling cycles
type Scheduler struct {
	poller  Poller
	closer  io.Closer
	clock   clock.Clock
	metrics metrics.Recorder
	cfg     Config
	logger  *slog.Logger

	state atomic.Int32
	cron  *gron.Cron
	wg    sync.WaitGroup

	mu            sync.Mutex
	startedAt     *time.Time
	lastRunAt     *time.Time
	lastCycle     *model.PollingCycleLog
	lastErr       error
	cyclesRun     int
	cyclesSkipped int
	closed        bool
}

// New creates a scheduler. closer, if non-nil, is closed once Stop has
// waited out any in-flight cycle.
func New(poller Poller, closer io.Closer, clk clock.Clock, recorder metrics.Recorder, cfg Config, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = metrics.Noop()
	}
	if cfg.StopPollInterval <= 0 {
		cfg.StopPollInterval = DefaultConfig().StopPollInterval
	}
	return &Scheduler{
		poller:  poller,
		closer:  closer,
		clock:   clk,
		metrics: recorder,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Start begins the periodic schedule and, if configured, an immediate cycle
func (s *Scheduler) Start() error {
	if s.State() == StateStopped {
		return model.ErrSchedulerStopped
	}

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	now := s.clock.Now()
	s.startedAt = &now
	s.cron = gron.New()
	s.cron.AddFunc(gron.Every(s.cfg.Interval), s.tick)
	s.cron.Start()
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Bool("run_on_start", s.cfg.RunOnStart),
	)

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}
	return nil
}

func (s *Scheduler) tick() {
	_, err := s.RunOnce(context.Background())
	switch {
	case errors.Is(err, model.ErrCycleAlreadyRunning):
		s.mu.Lock()
		s.cyclesSkipped++
		s.mu.Unlock()
		s.metrics.IncCyclesSkipped()
		s.logger.Warn("previous polling cycle still running, skipping")
	case errors.Is(err, model.ErrSchedulerStopped):
		s.logger.Debug("scheduler stopped, skipping tick")
	}
}

// RunOnce runs a cycle now unless one is already running or the scheduler
// has been stopped. The cycle is not cancelled if ctx is.
func (s *Scheduler) RunOnce(ctx context.Context) (*model.PollingCycleLog, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if s.State() == StateStopped {
			return nil, model.ErrSchedulerStopped
		}
		return nil, model.ErrCycleAlreadyRunning
	}
	defer s.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))

	start := s.clock.Now()
	cycle, err := s.poller.PollAllPlayers(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.lastRunAt = &start
	s.lastErr = err
	if err == nil {
		s.lastCycle = cycle
		s.cyclesRun++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("polling cycle failed", slog.String("error", err.Error()))
	}
	return cycle, err
}

// Stop halts the schedule, waits for an in-flight cycle to finish and then
// releases the closer. Calling Stop again is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.StopPollInterval)
	defer ticker.Stop()

	for !s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		if s.State() == StateStopped {
			break
		}
		s.logger.Info("waiting for polling cycle to finish")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("scheduler stopped")
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Status reports the scheduler state and the outcome of the last cycle
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:         s.State(),
		Interval:      s.cfg.Interval,
		StartedAt:     s.startedAt,
		LastRunAt:     s.lastRunAt,
		LastCycle:     s.lastCycle,
		CyclesRun:     s.cyclesRun,
		CyclesSkipped: s.cyclesSkipped,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.startedAt != nil && status.State != StateStopped && s.cfg.Interval > 0 {
		elapsed := s.clock.Now().Sub(*s.startedAt)
		next := s.startedAt.Add((elapsed/s.cfg.Interval + 1) * s.cfg.Interval)
		status.NextRunAt = &next
	}
	return status
}
