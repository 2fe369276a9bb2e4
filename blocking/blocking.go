// Package blocking dispatches potentially-blocking callables off a
// scheduler's run loop so cooperative tasks never stall one another. It
// mirrors hce's blocking service: a three-tier worker cache (per-scheduler,
// process-wide, fresh-spawn) fronting a pool of goroutines each pinned to
// its own OS thread.
package blocking

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/internal/metrics"
	"github.com/maumercado/hce-go/task"
)

// contextKey distinguishes the goroutine-local markers this package
// stashes in a context: whether the calling goroutine is itself a
// blocking worker (re-entrancy guard) or the timer service's
// callback-dispatch goroutine (treated identically, see §4.3).
type contextKey int

const nonTaskContextKey contextKey = iota

// NonTaskContext returns a context marking the calling goroutine as
// "not running a task" for the purposes of Block's re-entrancy rule: a
// Block call given such a context runs synchronously rather than spawning
// another worker. Blocking workers pass it to every callable they run; it
// is also available to other non-task callers, such as a timer callback.
func NonTaskContext(parent context.Context) context.Context {
	return context.WithValue(parent, nonTaskContextKey, true)
}

func isNonTaskContext(ctx context.Context) bool {
	v, _ := ctx.Value(nonTaskContextKey).(bool)
	return v
}

// Worker is a single goroutine, pinned to its own OS thread, that runs
// dispatched callables one at a time. It can live in a Scheduler's
// per-scheduler cache tier (scheduler.Scheduler.AcquireWorker and
// ReleaseWorker) as well as in the process-wide Cache.
type Worker struct {
	id   string
	work chan func()
	idle bool
}

func newWorker() *Worker {
	w := &Worker{id: uuid.New().String()[:8], work: make(chan func())}
	go w.loop()
	return w
}

// Name implements nameable.Nameable.
func (w *Worker) Name() string { return "blocking-worker-" + w.id }

func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for fn := range w.work {
		fn()
	}
}

// Idle reports whether the worker is currently sitting in the process-wide
// Cache, waiting to be handed a callable. The per-scheduler tier does not
// set this flag.
func (w *Worker) Idle() bool { return w.idle }

func (w *Worker) dispatch(fn func()) {
	w.work <- fn
}

func (w *Worker) close() {
	close(w.work)
}

// Cache is the process-wide, mutex-protected tier of the worker cache —
// the second tier consulted after a scheduler's own per-scheduler cache
// misses.
type Cache struct {
	mu      sync.Mutex
	idle    []*Worker
	maxSize int
}

// NewCache constructs a process-wide cache bounded to maxSize idle
// workers.
func NewCache(maxSize int) *Cache {
	return &Cache{maxSize: maxSize}
}

func (c *Cache) acquire() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.idle)
	if n == 0 {
		return nil
	}
	w := c.idle[n-1]
	c.idle = c.idle[:n-1]
	w.idle = false
	return w
}

// release returns w to the cache if there's room, otherwise reports false
// so the caller can destroy it instead.
func (c *Cache) release(w *Worker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.idle) >= c.maxSize {
		return false
	}
	w.idle = true
	c.idle = append(c.idle, w)
	return true
}

// Service is the singleton blocking dispatcher. One Service exists per
// lifecycle.
type Service struct {
	log        zerolog.Logger
	process    *Cache
	spawned    int64 // best-effort counter, guarded by mu
	cachedHits int64
	mu         sync.Mutex
}

// Name implements nameable.Nameable.
func (s *Service) Name() string { return "blocking" }

// New constructs a blocking Service backed by a process-wide cache of the
// given size.
func New(log zerolog.Logger, processCacheSize int) *Service {
	return &Service{
		log:     log.With().Str("component", "blocking").Logger(),
		process: NewCache(processCacheSize),
	}
}

// SchedulerCache is the narrow interface Block needs from the caller's
// origin scheduler to consult and repopulate its per-scheduler worker
// tier. Package scheduler's *Scheduler implements it directly; the hce
// facade recovers it from the task's Yielder.SchedulerCache by type
// assertion.
type SchedulerCache interface {
	AcquireWorker() *Worker
	ReleaseWorker(w *Worker) bool
}

// Block runs fn off the calling goroutine. If called from within a
// running task (y != nil and ctx is not a NonTaskContext), fn runs on a
// cached or freshly spawned Worker and the task suspends until it
// finishes. Otherwise — including when called from a blocking worker
// itself, or from any other caller that passes a NonTaskContext — fn runs
// synchronously on the calling goroutine and its result is returned
// directly.
func Block[R any](ctx context.Context, s *Service, y *task.Yielder, sc SchedulerCache, fn func(context.Context) (R, error)) (R, error) {
	if y == nil || isNonTaskContext(ctx) {
		return fn(ctx)
	}

	w, cached := s.acquireWorker(sc)
	aw := awaitable.New[blockResult[R]](y.ResumeHook())

	start := time.Now()
	w.dispatch(func() {
		result, err := runRecovered(NonTaskContext(ctx), fn)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordBlockingDispatch(cached, status, time.Since(start).Seconds())
		aw.Resume(blockResult[R]{value: result, err: err}, nil)
		s.releaseWorker(sc, w)
	})

	res, awErr := task.Await(y, aw)
	if awErr != nil {
		var zero R
		return zero, awErr
	}
	return res.value, res.err
}

type blockResult[R any] struct {
	value R
	err   error
}

func runRecovered[R any](ctx context.Context, fn func(context.Context) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = fmt.Errorf("blocking: callable panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (s *Service) acquireWorker(sc SchedulerCache) (w *Worker, cached bool) {
	if sc != nil {
		if w := sc.AcquireWorker(); w != nil {
			s.mu.Lock()
			s.cachedHits++
			s.mu.Unlock()
			return w, true
		}
	}
	if w := s.process.acquire(); w != nil {
		s.mu.Lock()
		s.cachedHits++
		s.mu.Unlock()
		return w, true
	}
	s.mu.Lock()
	s.spawned++
	s.mu.Unlock()
	return newWorker(), false
}

func (s *Service) releaseWorker(sc SchedulerCache, w *Worker) {
	if sc != nil && sc.ReleaseWorker(w) {
		return
	}
	if s.process.release(w) {
		return
	}
	w.close()
}

// WorkerCount returns the process-wide count of workers ever spawned by
// this service (a monotonically increasing diagnostic counter, not a
// live count of workers currently alive).
func (s *Service) WorkerCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// CacheHitCount returns how many Block dispatches were satisfied by a
// cached worker (per-scheduler or process-wide) rather than a fresh
// spawn.
func (s *Service) CacheHitCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedHits
}
