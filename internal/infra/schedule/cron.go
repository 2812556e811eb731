package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appschedule "chaletbook/internal/app/schedule"
)

// Cron runs registered jobs on robfig/cron. A job still running when its
// next tick arrives is skipped, and a panic is logged instead of killing
// the worker.
type Cron struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	base context.Context
	jobs map[string]cron.EntryID
}

// New builds a scheduler. timeout bounds each run; zero means one hour.
func New(logger *slog.Logger, timeout time.Duration) *Cron {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	adapter := cronLogger{logger: logger.With("component", "cron")}
	return &Cron{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		timeout: timeout,
		base:    context.Background(),
		jobs:    make(map[string]cron.EntryID),
	}
}

func (s *Cron) Register(job appschedule.Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("schedule: job needs a name and a func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("schedule: job %q already registered", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule: job %q: %w", job.Name, err)
	}
	s.jobs[job.Name] = id
	return nil
}

// RunNow executes a registered job's func synchronously, outside the cron loop.
func (s *Cron) RunNow(ctx context.Context, job appschedule.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return job.Run(ctx)
}

func (s *Cron) run(job appschedule.Job) {
	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	if base.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	start := time.Now()
	log := s.logger.With("job", job.Name)
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	log.Debug("job done", "duration_ms", time.Since(start).Milliseconds())
}

// Start begins ticking. Runs derive their context from ctx.
func (s *Cron) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts ticking; the returned context is done once running jobs finish.
func (s *Cron) Stop() context.Context {
	return s.cron.Stop()
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

var _ appschedule.Scheduler = (*Cron)(nil)
