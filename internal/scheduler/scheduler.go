// Package scheduler runs the background agents on their intervals
// and exposes a manual trigger for the HTTP API.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// Job is a named unit of periodic work. Every and Expr are mutually
// exclusive: Expr is a cron expression, Every a fixed interval.
type Job struct {
	Name  string
	Every time.Duration
	Expr  string
	Run   func(ctx context.Context) error
}

type jobState struct {
	job     Job
	nextRun time.Time
	running bool
	lastRun time.Time
	lastErr error
}

// Service dispatches registered jobs from a one-second tick loop. A
// job that is still running when it comes due again is skipped, never
// stacked.
type Service struct {
	mu       sync.Mutex
	jobs     map[string]*jobState
	order    []string
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New() *Service {
	return &Service{jobs: make(map[string]*jobState)}
}

// Add registers a job. Cron expressions are validated up front so a
// typo fails at startup, not silently at dispatch time.
func (s *Service) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if job.Expr != "" {
		if !gronx.New().IsValid(job.Expr) {
			return fmt.Errorf("invalid cron expression %q for job %s", job.Expr, job.Name)
		}
	} else if job.Every <= 0 {
		return fmt.Errorf("job %s needs a positive interval or a cron expression", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	st := &jobState{job: job}
	st.nextRun = nextRun(job, time.Now())
	s.jobs[job.Name] = st
	s.order = append(s.order, job.Name)
	return nil
}

// Start begins the dispatch loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stop)
	slog.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts dispatch and waits for the loop to exit. In-flight jobs
// finish on their own goroutines.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Service) loop(ctx context.Context, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Service) dispatchDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var due []*jobState
	for _, name := range s.order {
		st := s.jobs[name]
		if st.nextRun.IsZero() || st.nextRun.After(now) {
			continue
		}
		st.nextRun = nextRun(st.job, now)
		if st.running {
			slog.Warn("scheduler: previous run still active, skipping", "job", st.job.Name)
			continue
		}
		st.running = true
		due = append(due, st)
	}
	s.mu.Unlock()

	for _, st := range due {
		s.wg.Add(1)
		go s.execute(ctx, st)
	}
}

// Trigger fires a job immediately, off-schedule. It reports whether
// the job exists; the run itself happens asynchronously.
func (s *Service) Trigger(ctx context.Context, name string) bool {
	s.mu.Lock()
	st, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if st.running {
		s.mu.Unlock()
		slog.Warn("scheduler: trigger ignored, job already running", "job", name)
		return true
	}
	st.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, st)
	return true
}

func (s *Service) execute(ctx context.Context, st *jobState) {
	defer s.wg.Done()

	started := time.Now()
	err := runGuarded(ctx, st.job)
	if err != nil {
		slog.Error("scheduler: job failed", "job", st.job.Name, "error", err)
	} else {
		slog.Debug("scheduler: job finished", "job", st.job.Name, "took", time.Since(started))
	}

	s.mu.Lock()
	st.running = false
	st.lastRun = started
	st.lastErr = err
	s.mu.Unlock()
}

// runGuarded recovers a panicking job so one bad run cannot take the
// scheduler down.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v\n%s", job.Name, r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}

func nextRun(job Job, from time.Time) time.Time {
	if job.Expr != "" {
		next, err := gronx.NextTickAfter(job.Expr, from, false)
		if err != nil {
			slog.Error("scheduler: next tick computation failed", "job", job.Name, "error", err)
			return time.Time{}
		}
		return next
	}
	return from.Add(job.Every)
}

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	Name    string    `json:"name"`
	Running bool      `json:"running"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run,omitempty"`
	LastErr string    `json:"last_error,omitempty"`
}

// Status reports all jobs in registration order.
func (s *Service) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		st := s.jobs[name]
		js := JobStatus{Name: name, Running: st.running, NextRun: st.nextRun, LastRun: st.lastRun}
		if st.lastErr != nil {
			js.LastErr = st.lastErr.Error()
		}
		out = append(out, js)
	}
	return out
}
