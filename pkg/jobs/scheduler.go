// Package jobs runs the back office's periodic checks on cron schedules.
//
// Each job is registered with a cron expression. The scheduler sleeps until
// the earliest next tick, runs every job due at that minute and retries a
// failing run under its policy. A job never overlaps with itself.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/metrics"
)

// Job is one periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// RetryPolicy defines how failed runs are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // doubled after each failed attempt
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is given.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		MaxBackoff:  time.Minute,
	}
}

// delay returns the wait before attempt n+1.
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// RunStatus is the last outcome of a job.
type RunStatus struct {
	Job      string    `json:"job"`
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	LastRun  time.Time `json:"last_run,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

type entry struct {
	expr    string
	job     Job
	policy  RetryPolicy
	running bool
	status  RunStatus
}

// Scheduler runs registered jobs on their cron expressions.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	bus     domain.EventBus
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a scheduler. bus may be nil.
func NewScheduler(bus domain.EventBus) *Scheduler {
	return &Scheduler{bus: bus, now: time.Now, sleep: sleepCtx}
}

// Add registers job on the cron expression expr with the default policy.
func (s *Scheduler) Add(expr string, job Job) error {
	return s.AddWithPolicy(expr, job, DefaultRetryPolicy())
}

// AddWithPolicy registers job with an explicit retry policy.
func (s *Scheduler) AddWithPolicy(expr string, job Job, policy RetryPolicy) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("%w: %q for job %s", ErrInvalidSchedule, expr, job.Name())
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
		}
	}
	s.entries = append(s.entries, &entry{
		expr:   expr,
		job:    job,
		policy: policy,
		status: RunStatus{Job: job.Name(), Schedule: expr},
	})
	return nil
}

// Next returns the earliest tick strictly after ref across all jobs.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return time.Time{}, ErrNoJobs
	}
	var next time.Time
	for _, e := range s.entries {
		t, err := gronx.NextTickAfter(e.expr, ref, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("next tick for %s: %w", e.job.Name(), err)
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, nil
}

// Start runs the schedule until ctx is cancelled. Due jobs run on their own
// goroutines so a slow job does not delay the others.
func (s *Scheduler) Start(ctx context.Context) error {
	logger.InfoCF("jobs", "Scheduler started", map[string]interface{}{
		"jobs": len(s.Status()),
	})
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		next, err := s.Next(s.now())
		if err != nil {
			return err
		}
		if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
			logger.InfoC("jobs", "Scheduler stopped")
			return nil
		}
		for _, e := range s.due(next) {
			wg.Add(1)
			go func(e *entry) {
				defer wg.Done()
				s.run(ctx, e)
			}(e)
		}
	}
}

// RunDue runs, synchronously, every job due at ref and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context, ref time.Time) int {
	due := s.due(ref)
	for _, e := range due {
		s.run(ctx, e)
	}
	return len(due)
}

// RunNow runs the named job immediately, regardless of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *entry
	for _, e := range s.entries {
		if e.job.Name() == name {
			found = e
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, found)
}

func (s *Scheduler) due(ref time.Time) []*entry {
	g := gronx.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entry
	for _, e := range s.entries {
		ok, err := g.IsDue(e.expr, ref)
		if err != nil {
			logger.WarnCF("jobs", "Invalid schedule", map[string]interface{}{
				"job":   e.job.Name(),
				"error": err.Error(),
			})
			continue
		}
		if ok {
			out = append(out, e)
		}
	}
	return out
}

// run executes e under its retry policy. It fails with ErrAlreadyRunning
// while another run of e is in progress.
func (s *Scheduler) run(ctx context.Context, e *entry) error {
	s.mu.Lock()
	if e.running {
		s.mu.Unlock()
		logger.WarnCF("jobs", "Skipping overlapping run", map[string]interface{}{"job": e.job.Name()})
		return ErrAlreadyRunning
	}
	e.running = true
	e.status.Running = true
	s.mu.Unlock()

	name := e.job.Name()
	s.publish(domain.EventJobTriggered, name, nil)

	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= e.policy.MaxAttempts; attempt++ {
		start := time.Now()
		err = e.job.Run(ctx)
		metrics.RecordJob(name, time.Since(start), err)
		if err == nil {
			break
		}
		logger.WarnCF("jobs", "Job attempt failed", map[string]interface{}{
			"job":     name,
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt == e.policy.MaxAttempts {
			break
		}
		if serr := s.sleep(ctx, e.policy.delay(attempt)); serr != nil {
			err = serr
			break
		}
	}

	s.mu.Lock()
	e.running = false
	e.status = RunStatus{Job: name, Schedule: e.expr, LastRun: s.now(), Attempts: min(attempt, e.policy.MaxAttempts)}
	if err != nil {
		e.status.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		logger.ErrorCF("jobs", "Job failed", map[string]interface{}{"job": name, "error": err.Error()})
		s.publish(domain.EventJobFailed, name, map[string]string{"error": err.Error()})
		return err
	}
	logger.InfoCF("jobs", "Job completed", map[string]interface{}{"job": name, "attempts": attempt})
	s.publish(domain.EventJobCompleted, name, nil)
	return nil
}

func (s *Scheduler) publish(t domain.EventType, job string, data interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.NewEvent(t, domain.EntityID(job), data))
}

// Status returns a snapshot of every job, sorted by name.
func (s *Scheduler) Status() []RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.status
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
