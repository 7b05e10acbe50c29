// Package scheduler runs periodic background jobs of the learning hub,
// such as rebuilding the leaderboard projection from the primary store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golearn/learning-hub/pkg/logger"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobPanicked             = errors.New("job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// Job is a unit of background work. Run receives a context that is
// cancelled on Stop and bounded by the job timeout.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule yields the next due time after t.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// Observer receives the outcome of every run (Prometheus in production).
type Observer interface {
	ObserveJob(job string, took time.Duration, err error)
}

// IntervalSchedule fires every Interval after the previous due time.
type IntervalSchedule struct {
	Interval time.Duration
}

func Every(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }
func (s *IntervalSchedule) String() string             { return "@every " + s.Interval.String() }

// JobResult describes one finished run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger   *logger.Logger
	Observer Observer

	// JobTimeout bounds a single run. Zero means no bound.
	JobTimeout time.Duration

	// MaxHistorySize caps the results kept for GetHistory.
	MaxHistorySize int

	// RunOnStart makes every job due as soon as the scheduler starts.
	RunOnStart bool
}

func DefaultConfig() Config {
	return Config{
		Logger:         logger.Nop(),
		JobTimeout:     5 * time.Minute,
		MaxHistorySize: 100,
		RunOnStart:     true,
	}
}

// entry is the mutable state of one registered job. Fields other than
// job, schedule and exec are guarded by Scheduler.mu.
type entry struct {
	job      Job
	schedule Schedule

	// exec is held for the whole run, so a job never overlaps with itself.
	// Scheduled runs skip when it is taken; RunNow waits for it.
	exec sync.Mutex

	enabled   bool
	nextRun   time.Time
	lastRun   time.Time
	runCount  int64
	failCount int64
	last      *JobResult
}

// Scheduler drives every registered job from its own goroutine, sleeping
// until the job's next due time.
type Scheduler struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu      sync.Mutex
	jobs    map[string]*entry
	history []JobResult

	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	wg        sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 100
	}
	return &Scheduler{
		cfg:  cfg,
		log:  cfg.Logger.Named("scheduler"),
		now:  time.Now,
		jobs: make(map[string]*entry),
	}
}

// Register adds a job. A job registered on a running scheduler starts
// right away.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{job: job, schedule: schedule, enabled: true}
	e.nextRun = s.firstRun(schedule)
	s.jobs[name] = e

	if s.running {
		s.spawn(e)
	}
	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", e.nextRun),
	)
	return nil
}

func (s *Scheduler) firstRun(schedule Schedule) time.Time {
	if s.cfg.RunOnStart {
		return s.now()
	}
	return schedule.Next(s.now())
}

// DisableJob stops scheduled runs; RunNow still works.
func (s *Scheduler) DisableJob(name string) error { return s.setEnabled(name, false) }

// EnableJob resumes scheduled runs one interval from now.
func (s *Scheduler) EnableJob(name string) error { return s.setEnabled(name, true) }

func (s *Scheduler) setEnabled(name string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = on
	if on {
		e.nextRun = e.schedule.Next(s.now())
	}
	return nil
}

// Start launches one loop per job. The loops end when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.now()

	for _, e := range s.jobs {
		if s.cfg.RunOnStart {
			e.nextRun = s.now()
		}
		s.spawn(e)
	}
	s.log.Info("scheduler started", logger.Int("jobs_count", len(s.jobs)))
	return nil
}

// Stop cancels the loops and waits for in-flight runs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped", logger.Duration("uptime", s.now().Sub(s.startedAt)))
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// spawn must be called with s.mu held.
func (s *Scheduler) spawn(e *entry) {
	ctx := s.runCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, e)
	}()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if s.claim(e) {
			if e.exec.TryLock() {
				s.execute(ctx, e, false)
				e.exec.Unlock()
			} else {
				s.log.Warn("previous run still in flight, tick skipped",
					logger.String("job", e.job.Name()),
				)
			}
		}
		timer.Reset(s.untilNext(e))
	}
}

// claim reports whether e is due and, if so, advances its schedule.
func (s *Scheduler) claim(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !e.enabled || now.Before(e.nextRun) {
		return false
	}
	e.nextRun = e.schedule.Next(now)
	return true
}

func (s *Scheduler) untilNext(e *entry) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !e.enabled {
		// re-check periodically so EnableJob takes effect
		return time.Second
	}
	return max(e.nextRun.Sub(s.now()), 0)
}

// RunNow executes a job immediately, ignoring its schedule and enabled
// state. It waits for a scheduled run of the same job to finish first.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	e.exec.Lock()
	defer e.exec.Unlock()

	res := s.execute(ctx, e, true)
	return &res, res.Error
}

func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) JobResult {
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	name := e.job.Name()
	started := s.now()
	err := runSafely(ctx, e.job)
	done := s.now()

	res := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: done,
		Duration:    done.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveJob(name, res.Duration, err)
	}

	s.mu.Lock()
	e.lastRun = started
	e.runCount++
	if err != nil {
		e.failCount++
	}
	e.last = &res
	s.history = append(s.history, res)
	if over := len(s.history) - s.cfg.MaxHistorySize; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", logger.String("job", name), logger.Latency(res.Duration), logger.Err(err))
	} else {
		s.log.Info("job completed", logger.String("job", name), logger.Latency(res.Duration))
	}
	return res
}

func runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}

// ListJobs returns every registered job sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		out = append(out, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Enabled:     e.enabled,
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
			LastResult:  e.last,
		})
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// GetHistory returns up to limit most recent results, oldest first.
// limit <= 0 returns everything kept.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	return slices.Clone(s.history[len(s.history)-limit:])
}
