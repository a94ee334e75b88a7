package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrSchedulingUnavailable = errors.New("scheduling unavailable: registry is shut down")
	ErrShutdownTimeout       = errors.New("in-flight jobs did not finish within the grace period")
)

// Job is one unit of recurring work. The context is cancelled when the
// registry force-terminates on shutdown.
type Job interface {
	Run(ctx context.Context) error
}

type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

type entry struct {
	key  string
	id   cron.EntryID
	lane *lane
}

// lane serializes firings of one key. At most one firing waits behind a
// running one; further due firings are dropped, so a slow job delays its
// next run instead of building a backlog. A firing of a newer entry takes
// the waiting slot over from a replaced one.
type lane struct {
	mu      sync.Mutex
	waiting atomic.Pointer[entry]
	refs    int // firings holding the lane, guarded by Registry.mu
}

// Registry keeps at most one recurring timer per key. Timers are driven by
// a cron instance and firings execute on a bounded worker pool. Firings for
// the same key never overlap, including across re-registration.
type Registry struct {
	log   *zap.Logger
	cron  *cron.Cron
	sem   chan struct{}
	grace time.Duration
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	lanes   map[string]*lane
	closed  bool
}

func NewRegistry(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *Registry {
	r := New(log, cfg.Scheduler.Workers, cfg.Scheduler.ShutdownGrace)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop task registry")
			return r.Shutdown(ctx)
		},
	})
	return r
}

func New(log *zap.Logger, workers int, grace time.Duration) *Registry {
	if workers <= 0 {
		workers = 1
	}
	cronLog := &cronLogger{log.Sugar().With("component", "cron")}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	c.Start()

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:     log,
		cron:    c,
		sem:     make(chan struct{}, workers),
		grace:   grace,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		lanes:   make(map[string]*lane),
	}
}

// RegisterRecurring schedules job to first fire after initialDelay and then
// every period. An existing entry under key is cancelled first.
func (r *Registry) RegisterRecurring(key string, initialDelay, period time.Duration, job Job) error {
	if period <= 0 {
		return fmt.Errorf("register %s: period must be positive, got %s", key, period)
	}
	if initialDelay < 0 {
		initialDelay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSchedulingUnavailable
	}

	if prev, ok := r.entries[key]; ok {
		r.cron.Remove(prev.id)
		delete(r.entries, key)
	}

	l, ok := r.lanes[key]
	if !ok {
		l = &lane{}
		r.lanes[key] = l
	}

	e := &entry{key: key, lane: l}
	first := r.now().Add(initialDelay)
	e.id = r.cron.Schedule(newFixedRate(first, period), r.firing(e, job))
	r.entries[key] = e

	r.log.Sugar().Debugw("Registered recurring job",
		"key", key, "first_fire", first.UTC().Format(time.RFC3339), "period", period.String())
	return nil
}

// Cancel stops future firings for key. An in-flight firing is not
// interrupted. Unknown keys are ignored.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(key)
}

func (r *Registry) CancelAll(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.cancelLocked(key)
	}
}

func (r *Registry) cancelLocked(key string) {
	e, ok := r.entries[key]
	if !ok {
		return
	}
	r.cron.Remove(e.id)
	delete(r.entries, key)
	r.pruneLocked(key)
	r.log.Sugar().Debugw("Cancelled recurring job", "key", key)
}

// pruneLocked drops the key's lane once nothing is scheduled on it and no
// firing holds it.
func (r *Registry) pruneLocked(key string) {
	l, ok := r.lanes[key]
	if !ok || l.refs > 0 {
		return
	}
	if _, scheduled := r.entries[key]; !scheduled {
		delete(r.lanes, key)
	}
}

func (r *Registry) IsScheduled(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// NextRun reports when key is next due to fire.
func (r *Registry) NextRun(key string) (time.Time, bool) {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	next := r.cron.Entry(e.id).Next
	return next, !next.IsZero()
}

// Shutdown refuses further registrations, cancels every entry and waits for
// in-flight firings. If they outlast the grace period or ctx, their context
// is cancelled and ErrShutdownTimeout is returned.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for key := range r.entries {
		r.cancelLocked(key)
	}
	r.mu.Unlock()

	defer r.cancel()

	done := r.cron.Stop().Done()
	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case <-done:
		r.log.Sugar().Info("Task registry stopped")
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	r.log.Sugar().Warnw("Forcing termination of in-flight jobs", "grace", r.grace.String())
	return ErrShutdownTimeout
}

// firing wraps job for cron. It serializes on the key's lane, skips if the
// entry was replaced or cancelled while waiting, then runs on the worker
// pool. Errors are logged and never deregister the timer.
func (r *Registry) firing(e *entry, job Job) cron.FuncJob {
	return func() {
		r.holdLane(e)
		defer r.releaseLane(e)

		l := e.lane
		if !r.enqueue(e) {
			r.log.Sugar().Debugw("Skipping firing, previous run still queued", "key", e.key)
			return
		}
		l.mu.Lock()
		l.waiting.CompareAndSwap(e, nil)
		defer l.mu.Unlock()

		if !r.isCurrent(e) {
			return
		}

		select {
		case r.sem <- struct{}{}:
		case <-r.ctx.Done():
			return
		}
		defer func() { <-r.sem }()

		// The entry may have been replaced while the pool was saturated.
		if !r.isCurrent(e) {
			return
		}

		runID := uuid.NewString()
		start := time.Now()
		err := job.Run(r.ctx)
		elapsed := time.Since(start)

		if err != nil {
			r.log.Sugar().Errorw("Job failed",
				"key", e.key, "run_id", runID, "elapsed_msecs", elapsed.Milliseconds(), "err", err)
			return
		}
		r.log.Sugar().Debugw("Job completed",
			"key", e.key, "run_id", runID, "elapsed_msecs", elapsed.Milliseconds())
	}
}

// enqueue claims the lane's waiting slot for e. It fails if e already waits
// or if the waiter belongs to the current entry. A waiter of a replaced or
// cancelled entry is displaced.
func (r *Registry) enqueue(e *entry) bool {
	l := e.lane
	for {
		w := l.waiting.Load()
		if w == e || (w != nil && r.isCurrent(w)) {
			return false
		}
		if l.waiting.CompareAndSwap(w, e) {
			return true
		}
	}
}

func (r *Registry) holdLane(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.lane.refs++
}

func (r *Registry) releaseLane(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.lane.refs--
	if r.lanes[e.key] == e.lane {
		r.pruneLocked(e.key)
	}
}

func (r *Registry) isCurrent(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[e.key] == e
}
