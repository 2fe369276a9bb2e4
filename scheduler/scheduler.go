// Package scheduler implements the single-threaded run loop that drives
// tasks to completion and the pool that load-balances across many such
// run loops.
package scheduler

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/blocking"
	"github.com/maumercado/hce-go/internal/metrics"
	"github.com/maumercado/hce-go/task"
)

// defaultBlockingCacheSize bounds the per-scheduler blocking-worker cache.
// The spec calls for a larger allowance on the globally shared scheduler,
// since it absorbs the bulk of ad hoc Block calls from code with no
// dedicated worker scheduler of its own.
const (
	defaultBlockingCacheSize = 4
	globalBlockingCacheSize  = 16
)

// ErrHalted is returned by Schedule once the scheduler's run loop has
// stopped accepting new work.
var ErrHalted = errors.New("scheduler: halted")

// RunState describes the lifecycle phase of a Scheduler's run loop.
type RunState int

const (
	StateReady RunState = iota
	StateRunning
	StateHalted
)

func (st RunState) String() string {
	switch st {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// JoinAwaitable is resolved with a task's completion error once that task
// finishes running on its scheduler.
type JoinAwaitable = awaitable.Awaitable[error]

// Scheduler owns a FIFO of runnable tasks and a single goroutine, pinned
// to its own OS thread, that drains it. Schedule may be called safely
// from any goroutine; the run loop itself must only ever run on the
// goroutine started by Run.
type Scheduler struct {
	name string
	log  zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	submit   []entry
	draining []entry
	count    int // best-effort scheduled+running snapshot
	state    RunState
	paused   bool

	// blockingCache is the per-scheduler tier of blocking.Service's worker
	// cache. The source engine keeps this as a true thread-local because
	// coroutines there execute on the scheduler's own OS thread; in this
	// port a task's body runs on its own dedicated goroutine (see package
	// task), so this tier is instead guarded by mu like the rest of the
	// scheduler's state — a deliberate simplification noted in DESIGN.md.
	blockingCache    []*blocking.Worker
	blockingCacheCap int
}

type entry struct {
	t    *task.Task
	join *JoinAwaitable
}

// New constructs a Scheduler. It does not start running until Run is
// called on a dedicated goroutine.
func New(name string, log zerolog.Logger) *Scheduler {
	cap := defaultBlockingCacheSize
	if name == GlobalName {
		cap = globalBlockingCacheSize
	}
	s := &Scheduler{
		name:             name,
		log:              log.With().Str("component", "scheduler").Str("name", name).Logger(),
		blockingCacheCap: cap,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// GlobalName is the conventional name of the pool's index-0 globally
// shared scheduler, used to size its blocking-worker cache more
// generously than a dedicated worker scheduler's.
const GlobalName = "global"

// AcquireWorker implements blocking.SchedulerCache, satisfying the
// per-scheduler tier of the blocking worker cache.
func (s *Scheduler) AcquireWorker() *blocking.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.blockingCache)
	if n == 0 {
		return nil
	}
	w := s.blockingCache[n-1]
	s.blockingCache = s.blockingCache[:n-1]
	return w
}

// ReleaseWorker implements blocking.SchedulerCache.
func (s *Scheduler) ReleaseWorker(w *blocking.Worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blockingCache) >= s.blockingCacheCap {
		return false
	}
	s.blockingCache = append(s.blockingCache, w)
	return true
}

// Name implements Nameable.
func (s *Scheduler) Name() string { return s.name }

// Schedule enqueues t for execution on s and returns an awaitable that
// resolves with the task's completion error. Safe to call from any
// goroutine, including from within a task running on s or on another
// scheduler.
func (s *Scheduler) Schedule(t *task.Task) *JoinAwaitable {
	s.mu.Lock()
	if s.state == StateHalted {
		s.mu.Unlock()
		return awaitable.Ready[error](nil, ErrHalted)
	}
	join := awaitable.New[error](nil)
	e := entry{t: t, join: join}
	t.SetRescheduler(func() { s.resumeTask(e) })
	t.SetSchedulerCache(s)
	s.submit = append(s.submit, e)
	s.count++
	count := s.count
	s.mu.Unlock()
	metrics.UpdateSchedulerQueueDepth(s.name, float64(count))
	s.cond.Signal()
	return join
}

// ScheduledCount is a best-effort snapshot of the number of tasks queued
// plus currently executing. Used only for load balancing; never for
// correctness.
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// State returns the current run state.
func (s *Scheduler) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Halt stops the run loop after it finishes draining whatever is
// currently marked runnable. Submissions after Halt returns fail with
// ErrHalted.
func (s *Scheduler) Halt() {
	s.mu.Lock()
	s.state = StateHalted
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Pause stops the run loop from picking up its next drain batch until
// Resume is called. Work already mid-drain finishes normally; Schedule
// still accepts new submissions while paused, they simply queue up. This
// is a control-plane administrative knob, not a core scheduling concept.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume reverses Pause, waking the run loop to continue draining.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Paused reports whether Pause has been called without a matching Resume.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Run pins the calling goroutine to its OS thread and executes the run
// loop until Halt is called and the queue drains. It must be called
// exactly once, on a freshly spawned goroutine dedicated to this
// scheduler — mirroring the source engine's one-thread-per-scheduler
// design.
func (s *Scheduler) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	for {
		s.mu.Lock()
		for (len(s.submit) == 0 || s.paused) && s.state != StateHalted {
			s.cond.Wait()
		}
		if len(s.submit) == 0 && s.state == StateHalted {
			s.mu.Unlock()
			return
		}
		s.draining, s.submit = s.submit, s.draining[:0]
		s.mu.Unlock()

		s.drain()
	}
}

// drain steps every entry captured by this iteration's queue swap. A
// yielded task is appended back onto the *live* submission queue (not
// this private slice), so it lands after everything already drained in
// this pass and after anything concurrently submitted during it, but
// before work submitted only after the pass completes.
func (s *Scheduler) drain() {
	for _, e := range s.draining {
		s.step(e)
	}
	s.draining = s.draining[:0]
}

func (s *Scheduler) step(e entry) {
	start := time.Now()
	outcome := e.t.Step()
	switch outcome {
	case task.StepCompleted:
		s.mu.Lock()
		s.count--
		count := s.count
		s.mu.Unlock()
		status := "ok"
		if e.t.Err() != nil {
			status = "error"
		}
		metrics.RecordTaskCompletion(s.name, status, time.Since(start).Seconds())
		metrics.UpdateSchedulerQueueDepth(s.name, float64(count))
		e.join.Resume(e.t.Err(), nil)
	case task.StepSuspended:
		// Ownership drops here: whoever resumes the awaitable the task is
		// now waiting on will call resumeTask (via the rescheduler hook
		// wired in Schedule), re-enqueueing it on this scheduler.
	case task.StepYielded:
		s.mu.Lock()
		s.submit = append(s.submit, e)
		s.mu.Unlock()
		s.cond.Signal()
	}
}

// resumeTask re-drives a previously suspended task's next step. It is
// invoked by an awaitable's onResume hook, which fires on whatever
// goroutine called Resume (a blocking worker, the timer service, another
// scheduler) — so it only enqueues the continuation; the actual step
// still happens on this scheduler's own run-loop goroutine.
func (s *Scheduler) resumeTask(e entry) {
	s.mu.Lock()
	if s.state == StateHalted {
		s.mu.Unlock()
		s.log.Warn().Msg("dropping resume for task on halted scheduler")
		return
	}
	s.submit = append(s.submit, e)
	s.mu.Unlock()
	s.cond.Signal()
}
