// Package task models a single cooperatively-scheduled unit of work. Go has
// no native stackful coroutine, so each Task runs its body on its own
// goroutine for its entire lifetime and hands control back and forth with
// the driving scheduler through a pair of unbuffered channels — only one
// side is ever runnable at a time, so a Task never executes concurrently
// with itself, matching the single-threaded coroutine semantics of the
// original engine.
package task

import (
	"github.com/maumercado/hce-go/awaitable"
)

// StepOutcome describes what happened the last time a Task ran.
type StepOutcome int

const (
	// StepSuspended means the task is now waiting on an Awaitable and must
	// not run again until that awaitable is resumed.
	StepSuspended StepOutcome = iota
	// StepYielded means the task asked to be re-enqueued immediately,
	// behind whatever else is already queued for the next drain.
	StepYielded
	// StepCompleted means the task's body returned. A panic in the body is
	// not recovered and aborts the process instead.
	StepCompleted
)

func (o StepOutcome) String() string {
	switch o {
	case StepSuspended:
		return "suspended"
	case StepYielded:
		return "yielded"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Body is the function a Task runs. It receives a Yielder to suspend
// itself cooperatively and returns the error the task ultimately failed
// (or succeeded) with.
type Body func(y *Yielder) error

type stepResult struct {
	outcome StepOutcome
	err     error
}

// Task is a single coroutine-like unit of work driven by a scheduler's run
// loop. The zero value is not usable; construct with New.
type Task struct {
	body           Body
	yielder        *Yielder
	resumeSignal   chan struct{}
	stepDone       chan stepResult
	started        bool
	done           bool
	err            error
	rescheduleFn   func()
	schedulerCache interface{}
}

// SetRescheduler records the function that must be called to re-enqueue
// this task on its origin scheduler after it suspends on an awaitable
// other than its own join. Called once by the scheduler that accepts the
// task via Schedule, before the task's first Step.
func (t *Task) SetRescheduler(fn func()) {
	t.rescheduleFn = fn
}

// SetSchedulerCache records the task's origin scheduler as an opaque
// value, so Yielder.SchedulerCache can hand it back to blocking.Block
// without package task importing package blocking (which itself imports
// task). Called once by the scheduler that accepts the task via Schedule.
func (t *Task) SetSchedulerCache(sc interface{}) {
	t.schedulerCache = sc
}

// New constructs a Task from a body. The task does not begin executing
// until Start is called.
func New(body Body) *Task {
	t := &Task{
		body:         body,
		resumeSignal: make(chan struct{}),
		stepDone:     make(chan stepResult),
	}
	t.yielder = &Yielder{task: t}
	return t
}

// Start launches the task's goroutine and runs it up to its first
// suspension, yield, or completion. It must be called exactly once, from
// the scheduler's run-loop goroutine.
func (t *Task) Start() StepOutcome {
	t.started = true
	go t.run()
	return t.awaitStep()
}

// Step drives the task to its next suspension, yield, or completion: it
// starts the task if this is the first call, or resumes it otherwise.
// This lets a scheduler's run loop treat "runnable" entries uniformly
// regardless of whether they are brand new or were previously suspended.
func (t *Task) Step() StepOutcome {
	if !t.started {
		return t.Start()
	}
	return t.Resume()
}

// Resume hands control back to a suspended or yielded task and runs it up
// to its next suspension, yield, or completion. It must only be called
// from the scheduler's run-loop goroutine, and only when the task is not
// already done.
func (t *Task) Resume() StepOutcome {
	if t.done {
		panic("task: Resume called on a completed task")
	}
	t.resumeSignal <- struct{}{}
	return t.awaitStep()
}

func (t *Task) awaitStep() StepOutcome {
	res := <-t.stepDone
	if res.outcome == StepCompleted {
		t.done = true
		t.err = res.err
	}
	return res.outcome
}

// Done reports whether the task's body has returned.
func (t *Task) Done() bool { return t.done }

// Err returns the error the task's body completed with. Only meaningful
// once Done reports true.
func (t *Task) Err() error { return t.err }

// run executes the task's body on its own goroutine. A panic out of the
// body is not recovered here: per SPEC_FULL.md §4.1/§7, an unrecovered
// panic out of a task's resume function is a fatal invariant violation
// and must abort the process, not flow back through stepDone as an
// ordinary completion error. Leaving the panic unrecovered lets Go's
// default goroutine-panic behavior do exactly that.
func (t *Task) run() {
	result := stepResult{outcome: StepCompleted, err: t.body(t.yielder)}
	t.stepDone <- result
}

// Yielder is passed to a running task's body and is the only way the body
// may suspend itself. It is not safe to retain or use from any goroutine
// other than the task's own.
type Yielder struct {
	task *Task
}

// Yield suspends the task and asks to be re-enqueued for the next drain,
// behind whatever else is already queued.
func (y *Yielder) Yield() {
	y.task.stepDone <- stepResult{outcome: StepYielded}
	<-y.task.resumeSignal
}

// Await suspends the task until aw is resumed, then returns its result.
// The caller supplying aw is responsible for wiring an onResume hook (at
// construction, via awaitable.New) that re-enqueues this task on its
// origin scheduler — Await itself only performs the suspend/wake
// handshake and reads the already-fulfilled result.
func Await[T any](y *Yielder, aw *awaitable.Awaitable[T]) (T, error) {
	aw.MarkAwaited()
	y.task.stepDone <- stepResult{outcome: StepSuspended}
	<-y.task.resumeSignal
	return aw.Result()
}

// ResumeHook returns the function that, when called, re-enqueues this
// task on its origin scheduler. Packages that construct an awaitable for
// a task to Await on (blocking, timersvc) pass this as the onResume hook
// to awaitable.New so that fulfilling the awaitable automatically
// schedules the task's next step.
func (y *Yielder) ResumeHook() func() {
	return y.task.rescheduleFn
}

// SchedulerCache returns the origin scheduler this task was submitted to,
// as an opaque value. Callers that need the per-scheduler tier of
// blocking.Service's worker cache (see package blocking's SchedulerCache
// interface) type-assert the result themselves, since package task
// cannot reference package blocking's types without an import cycle.
func (y *Yielder) SchedulerCache() interface{} {
	return y.task.schedulerCache
}
