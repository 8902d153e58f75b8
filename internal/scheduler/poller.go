package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/recur/internal/store"
)

// Sentinel errors for poller lifecycle operations.
var (
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval time.Duration // default 60s
	Logger   *slog.Logger
	Metrics  *Metrics
	Now      func() time.Time // injectable for testing
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Poller is a level-triggered due-task detector. Every tick it asks the
// task store for all active tasks whose next run is at or before now and
// hands each one to the runner in its own goroutine, without waiting.
// The store query is authoritative; there is no in-memory queue, so a
// crash-restart rediscovers the same due tasks on the next tick.
//
// Known hazard: if an execution outlives the poll interval, the task's
// NextRunAt is not advanced until the run finishes, so a later tick can
// pick the same occurrence up again. The single-instance deployment
// model accepts this; the runner keeps the window small by rescheduling
// immediately after the agent turn settles.
type Poller struct {
	cfg    PollerConfig
	tasks  store.TaskStore
	runner *Runner

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller creates a Poller that dispatches due tasks to runner.
func NewPoller(cfg PollerConfig, tasks store.TaskStore, runner *Runner) (*Poller, error) {
	if tasks == nil {
		return nil, errors.New("scheduler: nil task store")
	}
	if runner == nil {
		return nil, errors.New("scheduler: nil runner")
	}

	return &Poller{
		cfg:    cfg.withDefaults(),
		tasks:  tasks,
		runner: runner,
	}, nil
}

// Start begins the poll loop. Returns ErrAlreadyStarted if called twice.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)

	p.cfg.Logger.Info("scheduler: poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop halts the poll loop. In-flight executions are not interrupted;
// they run to completion on their own goroutines. Returns ErrNotStarted
// if the poller is not running.
func (p *Poller) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return ErrNotStarted
	}

	p.cancel()
	p.cancel = nil
	p.cfg.Logger.Info("scheduler: poller stopped")
	return nil
}

// run is the ticker loop.
func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick queries for due tasks and dispatches each without waiting. A store
// failure is logged and the next tick retries naturally.
func (p *Poller) tick(ctx context.Context) {
	p.cfg.Metrics.PollTicks.Inc()

	now := p.cfg.Now().UTC()
	due, err := p.tasks.FindDue(ctx, now)
	if err != nil {
		p.cfg.Metrics.PollErrors.Inc()
		p.cfg.Logger.Error("scheduler: due-task query failed", "error", err)
		return
	}

	for _, t := range due {
		p.cfg.Metrics.DueTasks.Inc()
		// Fire and forget: the tick never waits on an execution, so one
		// slow agent turn cannot delay detection of other due tasks.
		// WithoutCancel lets in-flight runs settle after Stop.
		go p.runner.Execute(context.WithoutCancel(ctx), t)
	}

	if len(due) > 0 {
		p.cfg.Logger.Debug("scheduler: dispatched due tasks", "count", len(due))
	}
}
