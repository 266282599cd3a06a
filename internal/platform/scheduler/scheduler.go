// Package scheduler runs recurring jobs on their own goroutines. Each job is
// cancelled independently through the Handle returned when it is scheduled.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Schedule yields the next run time strictly after the given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Every runs a job at a fixed interval.
type Every time.Duration

func (e Every) Next(after time.Time) time.Time {
	return after.Add(time.Duration(e))
}

// DailyAt runs a job once per day at a wall-clock time in a fixed zone.
type DailyAt struct {
	Hour, Minute int
	Location     *time.Location
}

func (d DailyAt) Next(after time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// Job is one scheduled unit of work. Errors are logged; the schedule continues.
type Job func(ctx context.Context) error

// Handle cancels a scheduled job.
type Handle interface {
	Cancel()
}

// Scheduler starts jobs against a schedule.
type Scheduler interface {
	Schedule(name string, s Schedule, job Job) Handle
}

// Runner is the goroutine-backed Scheduler used in production.
type Runner struct {
	ctx    context.Context
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner whose jobs stop when ctx ends.
func NewRunner(ctx context.Context, opts ...Option) *Runner {
	r := &Runner{ctx: ctx, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type runHandle struct {
	cancel context.CancelFunc
}

func (h runHandle) Cancel() { h.cancel() }

func (r *Runner) Schedule(name string, s Schedule, job Job) Handle {
	ctx, cancel := context.WithCancel(r.ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next := s.Next(r.now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := job(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err)
			}
		}
	}()
	r.logger.Info("job scheduled", "job", name, "next_run", s.Next(r.now()))
	return runHandle{cancel: cancel}
}

// Wait blocks until every scheduled job has stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}
