// Package timersvc implements the engine's timer service: a single
// goroutine, pinned to its own OS thread, that fires callbacks at their
// deadlines using a hybrid busy-wait/condition-variable sleep strategy to
// trade CPU for precision only when a deadline is imminent.
package timersvc

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/internal/metrics"
	"github.com/maumercado/hce-go/sid"
)

// ErrNilCallback is returned by Start/StartAfter when onTimeout is nil.
// The source engine throws on this; Go idiom returns an error for an
// expected rejection path instead (see DESIGN.md).
var ErrNilCallback = errors.New("timersvc: onTimeout must not be nil")

// Algorithm computes when the timer loop should next wake from a timed
// wait, given the current time and the deadline it is waiting for. It is
// pluggable through New's algorithm parameter; the Timer.TimeoutAlgorithm
// config field does not select it.
type Algorithm interface {
	NextWake(now, deadline time.Time, cfg Thresholds) time.Time
}

// Thresholds configures the hybrid busy-wait/sleep strategy.
type Thresholds struct {
	// BusyWait is the window before a deadline in which the timer loop
	// busy-polls instead of sleeping, trading CPU for precision.
	BusyWait time.Duration
	// Short is the recheck interval used once a deadline is no farther
	// away than Short itself: the loop wakes at now+Short. Deadlines
	// between Short and Long wake BusyWait early.
	Short time.Duration
	// Long is the wake-ahead margin used for deadlines farther out than
	// Long itself.
	Long time.Duration
}

// DefaultThresholds mirrors the source engine's defaults: busy-wait only
// in the last millisecond, wake 1ms early inside the "short" band, and
// wake a full "long" margin early otherwise so a timed OS sleep doesn't
// need re-arming.
var DefaultThresholds = Thresholds{
	BusyWait: time.Millisecond,
	Short:    5 * time.Millisecond,
	Long:     50 * time.Millisecond,
}

// HybridAlgorithm is the default early-wakeup algorithm described in the
// engine's design: wake early enough before a far-off deadline to avoid
// oversleeping the OS timer's own slop, then let the busy-wait phase
// close the final gap precisely.
type HybridAlgorithm struct{}

func (HybridAlgorithm) NextWake(now, deadline time.Time, cfg Thresholds) time.Time {
	remaining := deadline.Sub(now)
	switch {
	case remaining > cfg.Long:
		return deadline.Add(-cfg.Long)
	case remaining > cfg.Short:
		return deadline.Add(-cfg.BusyWait)
	default:
		return now.Add(cfg.Short)
	}
}

type entry struct {
	id        sid.Sid
	deadline  time.Time
	onTimeout func()
	onCancel  func()
	cancelled bool
}

// Service is the singleton timer service. One Service exists per
// lifecycle, running its loop on a dedicated OS thread.
type Service struct {
	log        zerolog.Logger
	thresholds Thresholds
	algorithm  Algorithm

	mu    sync.Mutex
	cond  *sync.Cond
	list  []*entry
	byID  map[sid.Sid]*entry
	state runState

	// busyWaitEpoch is bumped on every insert/cancel so a goroutine
	// currently busy-polling notices it must re-evaluate the head of the
	// list rather than continuing to wait on a deadline that no longer
	// applies.
	busyWaitEpoch uint64
}

type runState int

const (
	stateReady runState = iota
	stateRunning
	stateHalted
)

// Name implements Nameable.
func (s *Service) Name() string { return "timer" }

// New constructs a Service. It does not begin firing timers until Run is
// called on a dedicated goroutine.
func New(log zerolog.Logger, thresholds Thresholds, algorithm Algorithm) *Service {
	if algorithm == nil {
		algorithm = HybridAlgorithm{}
	}
	s := &Service{
		log:        log.With().Str("component", "timer").Logger(),
		thresholds: thresholds,
		algorithm:  algorithm,
		byID:       make(map[sid.Sid]*entry),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start registers a timer that fires onTimeout at deadline, or runs
// onCancel (if non-nil) if it is cancelled first. onTimeout must not be
// nil.
func (s *Service) Start(deadline time.Time, onTimeout func(), onCancel func()) (sid.Sid, error) {
	if onTimeout == nil {
		return sid.Sid{}, ErrNilCallback
	}

	id := sid.New()
	e := &entry{id: id, deadline: deadline, onTimeout: onTimeout, onCancel: onCancel}

	s.mu.Lock()
	s.insertSorted(e)
	s.byID[id] = e
	s.busyWaitEpoch++
	size := len(s.list)
	s.mu.Unlock()
	metrics.SetTimerListSize(float64(size))
	s.cond.Signal()

	return id, nil
}

// StartAfter is a convenience for Start(time.Now().Add(d), ...).
func (s *Service) StartAfter(d time.Duration, onTimeout func(), onCancel func()) (sid.Sid, error) {
	return s.Start(time.Now().Add(d), onTimeout, onCancel)
}

// insertSorted inserts e into s.list, kept sorted by deadline ascending,
// using an insertion-sort pass since the list is already sorted and
// expected to stay small (tens to thousands of entries).
func (s *Service) insertSorted(e *entry) {
	i := len(s.list)
	s.list = append(s.list, e)
	for i > 0 && s.list[i-1].deadline.After(e.deadline) {
		s.list[i] = s.list[i-1]
		i--
	}
	s.list[i] = e
}

// Cancel removes a pending timer. It returns true iff id was found still
// pending (neither fired nor already cancelled); onCancel, if provided,
// runs synchronously on the calling goroutine, outside any internal lock.
func (s *Service) Cancel(id sid.Sid) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok || e.cancelled {
		s.mu.Unlock()
		return false
	}
	e.cancelled = true
	delete(s.byID, id)
	for i, le := range s.list {
		if le == e {
			s.list = append(s.list[:i], s.list[i+1:]...)
			break
		}
	}
	s.busyWaitEpoch++
	size := len(s.list)
	onCancel := e.onCancel
	s.mu.Unlock()
	metrics.SetTimerListSize(float64(size))
	metrics.RecordTimerCancellation()
	s.cond.Signal()

	if onCancel != nil {
		onCancel()
	}
	return true
}

// PendingCount returns the number of timers currently pending.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// Running reports whether id refers to a timer that is still pending.
func (s *Service) Running(id sid.Sid) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	return ok && !e.cancelled
}

// Halt stops the run loop. Pending timers are left un-fired and un-
// cancelled; callers that need firm shutdown semantics should Cancel
// everything they own before halting.
func (s *Service) Halt() {
	s.mu.Lock()
	s.state = stateHalted
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Run pins the calling goroutine to its OS thread and executes the timer
// loop until Halt is called. It must be called exactly once, on a
// dedicated goroutine.
func (s *Service) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.mu.Lock()
	s.state = stateRunning
	s.mu.Unlock()

	for {
		fired := s.collectDue()
		s.dispatch(fired)

		if s.waitForWork() {
			return
		}
	}
}

// collectDue pops every entry whose deadline has passed and returns their
// onTimeout callbacks, to be invoked outside the lock.
func (s *Service) collectDue() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []func()
	now := time.Now()
	for len(s.list) > 0 && !s.list[0].deadline.After(now) {
		e := s.list[0]
		s.list = s.list[1:]
		delete(s.byID, e.id)
		metrics.RecordTimerFire(now.Sub(e.deadline).Seconds())
		due = append(due, e.onTimeout)
	}
	metrics.SetTimerListSize(float64(len(s.list)))
	return due
}

func (s *Service) dispatch(callbacks []func()) {
	for _, cb := range callbacks {
		cb()
	}
}

// waitForWork blocks until there is a head entry within reach, using the
// hybrid busy-wait/condvar strategy, or returns true once Halt has been
// called — regardless of whether the list is empty, so a Halt racing a
// pending-but-not-yet-due timer still ends the loop instead of busy/timed
// waiting on a deadline nobody will ever collect.
func (s *Service) waitForWork() (halted bool) {
	s.mu.Lock()
	if s.state == stateHalted {
		s.mu.Unlock()
		return true
	}
	for len(s.list) == 0 {
		s.cond.Wait()
		if s.state == stateHalted {
			s.mu.Unlock()
			return true
		}
	}
	deadline := s.list[0].deadline
	epoch := s.busyWaitEpoch
	s.mu.Unlock()

	now := time.Now()
	if deadline.Sub(now) <= s.thresholds.BusyWait {
		s.busyWait(deadline, epoch)
		return false
	}

	wake := s.algorithm.NextWake(now, deadline, s.thresholds)
	s.timedWait(wake, epoch)
	return false
}

// busyWait spins until deadline, or until epoch changes (a new insert or
// cancel invalidated the wait target and the loop must re-evaluate).
func (s *Service) busyWait(deadline time.Time, epoch uint64) {
	for time.Now().Before(deadline) {
		s.mu.Lock()
		changed := s.busyWaitEpoch != epoch
		halted := s.state == stateHalted
		s.mu.Unlock()
		if changed || halted {
			return
		}
	}
}

// timedWait sleeps until wake, waking early if epoch changes.
func (s *Service) timedWait(wake time.Time, epoch uint64) {
	d := time.Until(wake)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	poll := time.NewTicker(time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-timer.C:
			return
		case <-poll.C:
			s.mu.Lock()
			changed := s.busyWaitEpoch != epoch
			halted := s.state == stateHalted
			s.mu.Unlock()
			if changed || halted {
				return
			}
		}
	}
}
