package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitResult(t *testing.T, job *Job) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := job.Wait(ctx)
	require.NoError(t, err)
	return result
}

func recordingUnits(n int, log *[]int, mu *sync.Mutex) []Unit {
	units := make([]Unit, n)
	for i := range units {
		i := i
		units[i] = Unit{
			Name: fmt.Sprintf("unit-%d", i),
			Run: func(ctx context.Context) error {
				mu.Lock()
				*log = append(*log, i)
				mu.Unlock()
				return nil
			},
		}
	}
	return units
}

func TestScheduleRunsUnitsInOrder(t *testing.T) {
	s := NewScheduler(context.Background())
	var (
		mu  sync.Mutex
		ran []int
	)

	var callbacks atomic.Int32
	var success atomic.Bool
	job, err := s.Schedule(Plan{Kind: KindSync, Units: recordingUnits(5, &ran, &mu)}, func(ok bool) {
		callbacks.Add(1)
		success.Store(ok)
	})
	require.NoError(t, err)

	result := waitResult(t, job)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran)
	assert.True(t, result.Success)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, StateCompleted, job.State())

	assert.Eventually(t, func() bool { return callbacks.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, success.Load())
	assert.False(t, s.IsRunning(KindSync))
}

func TestUnitsNeverOverlap(t *testing.T) {
	s := NewScheduler(context.Background())
	var inFlight, maxInFlight atomic.Int32

	units := make([]Unit, 20)
	for i := range units {
		units[i] = Unit{Name: fmt.Sprint(i), Run: func(ctx context.Context) error {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return nil
		}}
	}

	job, err := s.Schedule(Plan{Kind: KindImport, Units: units}, nil)
	require.NoError(t, err)
	waitResult(t, job)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestCancelStopsAtUnitBoundary(t *testing.T) {
	s := NewScheduler(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var ran [5]atomic.Bool

	units := make([]Unit, 5)
	for i := range units {
		i := i
		units[i] = Unit{Name: fmt.Sprint(i), Run: func(ctx context.Context) error {
			if i == 2 {
				close(started)
				<-release
			}
			ran[i].Store(true)
			return nil
		}}
	}

	completed := make(chan bool, 1)
	job, err := s.Schedule(Plan{Kind: KindConnect, Units: units}, func(ok bool) { completed <- ok })
	require.NoError(t, err)

	<-started
	require.NoError(t, s.Cancel(job))
	close(release)

	result := waitResult(t, job)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, 3, result.Processed)
	for i := 0; i < 3; i++ {
		assert.True(t, ran[i].Load(), "unit %d should have run", i)
	}
	for i := 3; i < 5; i++ {
		assert.False(t, ran[i].Load(), "unit %d should not have run", i)
	}
	assert.False(t, <-completed)
}

func TestCancelDuringLastUnit(t *testing.T) {
	s := NewScheduler(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	units := []Unit{{Name: "only", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}}

	completed := make(chan bool, 1)
	job, err := s.Schedule(Plan{Kind: KindImport, Units: units}, func(ok bool) { completed <- ok })
	require.NoError(t, err)

	<-started
	require.NoError(t, s.Cancel(job))
	close(release)

	result := waitResult(t, job)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, 1, result.Processed)
	assert.False(t, <-completed)
}

func TestCancelRefusedWhileFinishing(t *testing.T) {
	s := NewScheduler(context.Background())
	finishing := make(chan struct{})
	release := make(chan struct{})

	var sawCancelled atomic.Bool
	job, err := s.Schedule(Plan{
		Kind:  KindPurgeHubLinks,
		Units: []Unit{{Name: "only", Run: func(ctx context.Context) error { return nil }}},
		Finish: func(ctx context.Context, cancelled bool) error {
			sawCancelled.Store(cancelled)
			close(finishing)
			<-release
			return nil
		},
	}, nil)
	require.NoError(t, err)

	<-finishing
	assert.ErrorIs(t, s.Cancel(job), ErrNoSuchJob)
	close(release)

	result := waitResult(t, job)
	assert.False(t, sawCancelled.Load())
	assert.True(t, result.Success)
	assert.Equal(t, StateCompleted, result.State)
}

func TestUnitFailureDoesNotAbortBatch(t *testing.T) {
	s := NewScheduler(context.Background())
	var last atomic.Bool

	units := []Unit{
		{Name: "ok", Run: func(ctx context.Context) error { return nil }},
		{Name: "unreachable", Run: func(ctx context.Context) error { return errors.New("timeout") }},
		{Name: "boom", Run: func(ctx context.Context) error { panic("bad device") }},
		{Name: "last", Run: func(ctx context.Context) error { last.Store(true); return nil }},
	}

	job, err := s.Schedule(Plan{Kind: KindSync, Units: units}, nil)
	require.NoError(t, err)

	result := waitResult(t, job)
	assert.True(t, result.Success)
	assert.False(t, result.Cancelled)
	assert.Equal(t, 4, result.Processed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "unreachable", result.Failures[0].Unit)
	assert.Equal(t, "boom", result.Failures[1].Unit)
	assert.True(t, last.Load())
}

func TestSecondJobOfSameKindRejected(t *testing.T) {
	s := NewScheduler(context.Background())
	release := make(chan struct{})
	block := []Unit{{Name: "block", Run: func(ctx context.Context) error { <-release; return nil }}}

	first, err := s.Schedule(Plan{Kind: KindSync, Units: block}, nil)
	require.NoError(t, err)
	assert.True(t, s.IsRunning(KindSync))

	_, err = s.Schedule(Plan{Kind: KindSync}, nil)
	assert.ErrorIs(t, err, ErrJobRunning)

	other, err := s.Schedule(Plan{Kind: KindImport}, nil)
	require.NoError(t, err)
	waitResult(t, other)

	running := s.Running()
	require.Len(t, running, 1)
	assert.Equal(t, first.ID(), running[0].JobID)

	close(release)
	waitResult(t, first)
}

func TestCancelUnknownJob(t *testing.T) {
	s := NewScheduler(context.Background())

	assert.ErrorIs(t, s.Cancel(nil), ErrNoSuchJob)
	assert.ErrorIs(t, s.CancelKind(KindSync), ErrNoSuchJob)

	job, err := s.Schedule(Plan{Kind: KindSync}, nil)
	require.NoError(t, err)
	waitResult(t, job)
	assert.ErrorIs(t, s.Cancel(job), ErrNoSuchJob)
}

func TestUnknownKindRejected(t *testing.T) {
	s := NewScheduler(context.Background())
	_, err := s.Schedule(Plan{Kind: "reboot"}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestCompletionCanChainSameKind(t *testing.T) {
	s := NewScheduler(context.Background())
	chained := make(chan error, 1)

	_, err := s.Schedule(Plan{Kind: KindSync}, func(ok bool) {
		_, err := s.Schedule(Plan{Kind: KindSync}, nil)
		chained <- err
	})
	require.NoError(t, err)

	select {
	case err := <-chained:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never ran")
	}
}

func TestFinishErrorFailsBatch(t *testing.T) {
	s := NewScheduler(context.Background())
	var sawCancelled atomic.Bool

	job, err := s.Schedule(Plan{
		Kind:  KindPurgeHubLinks,
		Units: []Unit{{Name: "a", Run: func(ctx context.Context) error { return nil }}},
		Finish: func(ctx context.Context, cancelled bool) error {
			sawCancelled.Store(cancelled)
			return errors.New("hub write failed")
		},
	}, nil)
	require.NoError(t, err)

	result := waitResult(t, job)
	assert.False(t, result.Success)
	assert.False(t, result.Cancelled)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "hub write failed", result.Error)
	assert.False(t, sawCancelled.Load())
}

func TestObserversSeeEveryResult(t *testing.T) {
	s := NewScheduler(context.Background())
	results := make(chan Result, 2)
	s.Observe(func(r Result) { results <- r })

	job, err := s.Schedule(Plan{Kind: KindRemoveGateway}, nil)
	require.NoError(t, err)

	select {
	case r := <-results:
		assert.Equal(t, job.ID(), r.JobID)
		assert.Equal(t, KindRemoveGateway, r.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("observer not called")
	}
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	s := NewScheduler(context.Background())
	units := []Unit{
		{Name: "wait", Run: func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }},
		{Name: "never", Run: func(ctx context.Context) error { return nil }},
	}

	job, err := s.Schedule(Plan{Kind: KindSync, Units: units}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	result := job.Result()
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Failures, 1)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("nope")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
