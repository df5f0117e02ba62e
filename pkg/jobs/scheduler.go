// Package jobs runs bulk network operations one unit at a time with
// cooperative cancellation and a single completion per job.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Scheduler holds one job slot per kind. Units of every job share the
// transport, which callers serialize; the scheduler itself never runs two
// units of the same job concurrently.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[Kind]*Job
	wg     sync.WaitGroup

	observersMu sync.RWMutex
	observers   []func(Result)

	now func() time.Time
}

// NewScheduler creates a scheduler. Jobs run under ctx; cancelling ctx aborts
// in-flight exchanges, unlike Cancel which waits for the unit boundary.
func NewScheduler(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		active: make(map[Kind]*Job),
		now:    time.Now,
	}
}

// Observe registers fn to be called with every finished job's result.
func (s *Scheduler) Observe(fn func(Result)) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Schedule starts plan in the background. onComplete, if not nil, is called
// exactly once with the job's success flag after the slot has been released,
// so it may schedule a follow-up job of the same kind.
func (s *Scheduler) Schedule(plan Plan, onComplete func(success bool)) (*Job, error) {
	if _, err := ParseKind(string(plan.Kind)); err != nil {
		return nil, fmt.Errorf("%w: %q", err, plan.Kind)
	}

	s.mu.Lock()
	if _, busy := s.active[plan.Kind]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, plan.Kind)
	}
	job := &Job{
		id:        uuid.NewString(),
		kind:      plan.Kind,
		total:     len(plan.Units),
		startedAt: s.now().UTC(),
		state:     StateRunning,
		done:      make(chan struct{}),
	}
	s.active[plan.Kind] = job
	s.wg.Add(1)
	s.mu.Unlock()

	log.Info().
		Str("job", job.id).
		Str("kind", string(job.kind)).
		Int("units", job.total).
		Msg("Job started")

	go s.run(job, plan, onComplete)

	return job, nil
}

func (s *Scheduler) run(job *Job, plan Plan, onComplete func(bool)) {
	defer s.wg.Done()

	result := Result{
		JobID:     job.id,
		Kind:      job.kind,
		Total:     job.total,
		StartedAt: job.startedAt,
	}

	for _, unit := range plan.Units {
		if job.cancelRequested.Load() {
			result.Cancelled = true
			break
		}
		if err := s.runUnit(unit); err != nil {
			log.Warn().
				Err(err).
				Str("job", job.id).
				Str("unit", unit.Name).
				Msg("Unit failed, continuing")
			result.Failures = append(result.Failures, DeviceFailure{Unit: unit.Name, Error: err.Error()})
		}
		result.Processed++
		job.processed.Add(1)
	}

	s.mu.Lock()
	job.sealed = true
	if job.cancelRequested.Load() {
		result.Cancelled = true
	}
	s.mu.Unlock()

	var finishErr error
	if plan.Finish != nil {
		finishErr = plan.Finish(s.ctx, result.Cancelled)
		if finishErr != nil {
			log.Error().Err(finishErr).Str("job", job.id).Msg("Job finish step failed")
			result.Error = finishErr.Error()
		}
	}

	result.Success = !result.Cancelled && finishErr == nil
	result.State = StateCompleted
	if result.Cancelled {
		result.State = StateCancelled
	}
	result.CompletedAt = s.now().UTC()

	job.mu.Lock()
	job.state = result.State
	job.result = result
	job.mu.Unlock()

	s.mu.Lock()
	if s.active[job.kind] == job {
		delete(s.active, job.kind)
	}
	s.mu.Unlock()

	close(job.done)

	log.Info().
		Str("job", job.id).
		Str("kind", string(job.kind)).
		Str("state", string(result.State)).
		Int("processed", result.Processed).
		Int("failures", len(result.Failures)).
		Bool("success", result.Success).
		Msg("Job finished")

	if onComplete != nil {
		onComplete(result.Success)
	}

	s.observersMu.RLock()
	observers := append([]func(Result){}, s.observers...)
	s.observersMu.RUnlock()
	for _, fn := range observers {
		fn(result)
	}
}

// runUnit turns a panicking unit into a unit failure.
func (s *Scheduler) runUnit(unit Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()
	return unit.Run(s.ctx)
}

// Cancel asks job to stop at the next unit boundary. The unit in progress
// finishes; units already processed keep their effect. A cancel accepted while
// the last unit runs still marks the job cancelled. Once every unit has run
// the job can no longer be cancelled.
func (s *Scheduler) Cancel(job *Job) error {
	if job == nil {
		return ErrNoSuchJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[job.kind] != job || job.sealed {
		return fmt.Errorf("%w: %s", ErrNoSuchJob, job.id)
	}
	job.cancelRequested.Store(true)
	log.Info().Str("job", job.id).Str("kind", string(job.kind)).Msg("Job cancellation requested")
	return nil
}

// CancelKind cancels the active job of kind.
func (s *Scheduler) CancelKind(kind Kind) error {
	job, ok := s.Active(kind)
	if !ok {
		return fmt.Errorf("%w: no %s job running", ErrNoSuchJob, kind)
	}
	return s.Cancel(job)
}

// Active returns the running job of kind.
func (s *Scheduler) Active(kind Kind) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.active[kind]
	return job, ok
}

// IsRunning reports whether a job of kind is active.
func (s *Scheduler) IsRunning(kind Kind) bool {
	_, ok := s.Active(kind)
	return ok
}

// Running returns snapshots of every active job.
func (s *Scheduler) Running() []Snapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.active))
	for _, k := range Kinds {
		if job, ok := s.active[k]; ok {
			jobs = append(jobs, job)
		}
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

// Shutdown requests cancellation of every active job and waits for them, or
// for ctx, whichever comes first. In-flight exchanges are aborted.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, job := range s.active {
		job.cancelRequested.Store(true)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
