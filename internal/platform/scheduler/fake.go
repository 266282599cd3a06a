package scheduler

import (
	"context"
	"sync"
	"time"

	"onboard/pkg/requestcontext"
)

// Fake is a manually driven Scheduler for tests. Advance runs every job whose
// next run time falls within the new clock reading, in schedule order, with the
// run time set as the request time on the job's context.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	jobs []*fakeJob
}

type fakeJob struct {
	mu        *sync.Mutex
	name      string
	schedule  Schedule
	job       Job
	next      time.Time
	cancelled bool
	runs      int
}

func (j *fakeJob) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Schedule(name string, s Schedule, job Job) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := &fakeJob{mu: &f.mu, name: name, schedule: s, job: job, next: s.Next(f.now)}
	f.jobs = append(f.jobs, j)
	return j
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, running due jobs synchronously.
func (f *Fake) Advance(ctx context.Context, d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		j, at := f.nextDue(target)
		if j == nil {
			break
		}
		_ = j.job(requestcontext.WithTime(ctx, at))
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

func (f *Fake) nextDue(target time.Time) (*fakeJob, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due *fakeJob
	for _, j := range f.jobs {
		if j.cancelled || j.next.After(target) {
			continue
		}
		if due == nil || j.next.Before(due.next) {
			due = j
		}
	}
	if due == nil {
		return nil, time.Time{}
	}
	at := due.next
	f.now = at
	due.next = due.schedule.Next(at)
	due.runs++
	return due, at
}

// Runs reports how often the named job has run.
func (f *Fake) Runs(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, j := range f.jobs {
		if j.name == name {
			total += j.runs
		}
	}
	return total
}
