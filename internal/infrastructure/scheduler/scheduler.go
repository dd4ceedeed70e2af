// Package scheduler runs background jobs on cron specs. It is a thin layer
// over robfig/cron that adds per-job timeouts, structured logging and run
// statistics.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Description returns a human-readable description of the job.
	Description() string

	// Run executes the job. The context is cancelled on timeout or when the
	// scheduler stops.
	Run(ctx context.Context) error
}

// JobStats summarises the runs of one job.
type JobStats struct {
	Spec      string
	RunCount  int64
	FailCount int64
	LastRun   time.Time
	LastError error
	NextRun   time.Time
}

var (
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// Timezone for cron specs (default UTC).
	Timezone *time.Location

	// JobTimeout bounds a single run (default one minute).
	JobTimeout time.Duration
}

type entry struct {
	job   Job
	id    cron.EntryID
	stats JobStats
}

// Scheduler runs registered jobs. Overlapping runs of one job are skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*entry
	log     *logger.Logger
	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	log := cfg.Logger.With(logger.Component("scheduler"))
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Timezone),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    make(map[string]*entry),
		log:     log,
		timeout: cfg.JobTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register schedules job on spec, e.g. "@every 30s" or "0 3 * * *".
func (s *Scheduler) Register(job Job, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, stats: JobStats{Spec: spec}}
	id, err := s.cron.AddFunc(spec, func() { s.runJob(e) })
	if err != nil {
		return fmt.Errorf("scheduler: bad spec %q for %s: %w", spec, name, err)
	}
	e.id = id
	s.jobs[name] = e

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("spec", spec),
		logger.String("description", job.Description()),
	)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.runJob(e)
}

// Stats returns the statistics of a job.
func (s *Scheduler) Stats(name string) (JobStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return JobStats{}, false
	}
	st := e.stats
	st.NextRun = s.cron.Entry(e.id).Next
	return st, true
}

func (s *Scheduler) runJob(e *entry) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	name := e.job.Name()
	start := time.Now()
	err := e.job.Run(ctx)
	dur := time.Since(start)

	s.mu.Lock()
	e.stats.RunCount++
	e.stats.LastRun = start
	e.stats.LastError = err
	if err != nil {
		e.stats.FailCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", logger.String("job", name), logger.Duration("duration", dur), logger.Err(err))
		return err
	}
	s.log.Debug("job completed", logger.String("job", name), logger.Duration("duration", dur))
	return nil
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Zap().Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Zap().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
