package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(zap.NewNop(), 4, time.Second)
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	return r
}

func counter(n *atomic.Int32) JobFunc {
	return func(ctx context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestRegistry_ImmediateFirstFire(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, counter(&calls)))
	assert.True(t, r.IsScheduled("poll:1"))
	assert.Equal(t, 1, r.ActiveCount())

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	next, ok := r.NextRun("poll:1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)
}

func TestRegistry_InitialDelay(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	require.NoError(t, r.RegisterRecurring("notify:1", 150*time.Millisecond, time.Hour, counter(&calls)))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRegistry_ReregisterReplaces(t *testing.T) {
	r := newTestRegistry(t)
	var old, replacement atomic.Int32

	require.NoError(t, r.RegisterRecurring("poll:1", 100*time.Millisecond, time.Hour, counter(&old)))
	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, counter(&replacement)))
	assert.Equal(t, 1, r.ActiveCount())

	require.Eventually(t, func() bool { return replacement.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Zero(t, old.Load())
	assert.Equal(t, int32(1), replacement.Load())
}

func TestRegistry_Cancel(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	require.NoError(t, r.RegisterRecurring("poll:1", 100*time.Millisecond, time.Hour, counter(&calls)))
	require.NoError(t, r.RegisterRecurring("notify:1", 100*time.Millisecond, time.Hour, counter(&calls)))
	require.NoError(t, r.RegisterRecurring("poll:2", time.Hour, time.Hour, counter(&calls)))

	r.Cancel("poll:1")
	r.Cancel("poll:404")
	r.CancelAll("notify:1", "notify:404")

	assert.False(t, r.IsScheduled("poll:1"))
	assert.False(t, r.IsScheduled("notify:1"))
	assert.True(t, r.IsScheduled("poll:2"))
	assert.Equal(t, 1, r.ActiveCount())

	time.Sleep(250 * time.Millisecond)
	assert.Zero(t, calls.Load())

	_, ok := r.NextRun("poll:1")
	assert.False(t, ok)
}

func TestRegistry_FailingJobKeepsFiring(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	job := JobFunc(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("catalog unreachable")
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, 30*time.Millisecond, job))

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, r.IsScheduled("poll:1"))
}

func TestRegistry_PanickingJobKeepsFiring(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	job := JobFunc(func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, 30*time.Millisecond, job))

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, r.IsScheduled("poll:1"))
}

func TestRegistry_FiringsOfOneKeyNeverOverlap(t *testing.T) {
	r := newTestRegistry(t)
	var running, maxRunning, calls atomic.Int32

	job := JobFunc(func(ctx context.Context) error {
		now := running.Add(1)
		for {
			prev := maxRunning.Load()
			if now <= prev || maxRunning.CompareAndSwap(prev, now) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
		return nil
	})
	require.NoError(t, r.RegisterRecurring("notify:1", 0, 10*time.Millisecond, job))

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	// Replacing the entry while a firing is in flight must not overlap either.
	require.NoError(t, r.RegisterRecurring("notify:1", 0, 10*time.Millisecond, job))
	before := calls.Load()
	require.Eventually(t, func() bool { return calls.Load() >= before+3 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestRegistry_DifferentKeysRunConcurrently(t *testing.T) {
	r := newTestRegistry(t)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	blocking := JobFunc(func(ctx context.Context) error {
		started.Done()
		<-release
		return nil
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, blocking))
	require.NoError(t, r.RegisterRecurring("poll:2", 0, time.Hour, blocking))

	done := make(chan struct{})
	go func() {
		started.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs for different keys did not run concurrently")
	}
	close(release)
}

func TestRegistry_ShutdownRejectsRegistration(t *testing.T) {
	r := New(zap.NewNop(), 2, time.Second)
	var calls atomic.Int32

	require.NoError(t, r.RegisterRecurring("poll:1", time.Hour, time.Hour, counter(&calls)))
	require.NoError(t, r.Shutdown(context.Background()))

	assert.Zero(t, r.ActiveCount())
	assert.False(t, r.IsScheduled("poll:1"))

	err := r.RegisterRecurring("poll:1", 0, time.Hour, counter(&calls))
	require.ErrorIs(t, err, ErrSchedulingUnavailable)

	// Idempotent.
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRegistry_ShutdownWaitsForInFlight(t *testing.T) {
	r := New(zap.NewNop(), 2, time.Second)
	started := make(chan struct{})
	var finished atomic.Bool

	job := JobFunc(func(ctx context.Context) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, r.RegisterRecurring("notify:1", 0, time.Hour, job))
	<-started

	require.NoError(t, r.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestRegistry_ShutdownForcesAfterGrace(t *testing.T) {
	r := New(zap.NewNop(), 2, 50*time.Millisecond)
	started := make(chan struct{})
	cancelled := make(chan struct{})

	job := JobFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, job))
	<-started

	err := r.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrShutdownTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight job was not cancelled")
	}
}

func TestRegistry_RejectsNonPositivePeriod(t *testing.T) {
	r := newTestRegistry(t)
	assert.Error(t, r.RegisterRecurring("poll:1", 0, 0, counter(new(atomic.Int32))))
	assert.False(t, r.IsScheduled("poll:1"))
}

func TestRegistry_ReplacementFiresWhileOldRunInFlight(t *testing.T) {
	r := newTestRegistry(t)
	var replacement atomic.Int32

	slow := JobFunc(func(ctx context.Context) error {
		time.Sleep(150 * time.Millisecond)
		return nil
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, 20*time.Millisecond, slow))

	// Let a firing of the old entry run and another queue behind it.
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, counter(&replacement)))

	require.Eventually(t, func() bool { return replacement.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_CancelledWhileWaitingForWorker(t *testing.T) {
	r := New(zap.NewNop(), 1, time.Second)
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	var busy, cancelled atomic.Int32

	block := JobFunc(func(ctx context.Context) error {
		busy.Add(1)
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.NoError(t, r.RegisterRecurring("poll:1", 0, time.Hour, block))
	require.Eventually(t, func() bool { return busy.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.RegisterRecurring("poll:2", 0, time.Hour, counter(&cancelled)))
	time.Sleep(30 * time.Millisecond)
	r.Cancel("poll:2")

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, cancelled.Load())
}

func laneCount(r *Registry) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}

func TestRegistry_CancelReleasesLane(t *testing.T) {
	r := newTestRegistry(t)
	var calls atomic.Int32

	require.NoError(t, r.RegisterRecurring("poll:1", time.Hour, time.Hour, counter(&calls)))
	assert.Equal(t, 1, laneCount(r))
	r.Cancel("poll:1")
	assert.Zero(t, laneCount(r))

	// A lane held by an in-flight firing outlives the cancel.
	running := make(chan struct{})
	release := make(chan struct{})
	job := JobFunc(func(ctx context.Context) error {
		close(running)
		<-release
		return nil
	})
	require.NoError(t, r.RegisterRecurring("poll:2", 0, time.Hour, job))
	<-running
	r.Cancel("poll:2")
	assert.Equal(t, 1, laneCount(r))

	close(release)
	require.Eventually(t, func() bool { return laneCount(r) == 0 }, time.Second, 5*time.Millisecond)
}
