// Package hce is the facade over the engine's subsystem packages: a
// single entry point that wires configuration, logging, and the
// scheduler/blocking/timer singletons together, and the small set of
// top-level operations (Schedule, Block, Sleep, TimerStart/Cancel) most
// callers need without reaching into the subsystem packages directly.
package hce

import (
	"context"
	"time"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/blocking"
	"github.com/maumercado/hce-go/internal/config"
	"github.com/maumercado/hce-go/lifecycle"
	"github.com/maumercado/hce-go/scheduler"
	"github.com/maumercado/hce-go/sid"
	"github.com/maumercado/hce-go/task"
	"github.com/maumercado/hce-go/timersvc"
)

// Environment is re-exported from package lifecycle so modules written
// against this facade don't need to import it directly.
type Environment = lifecycle.Environment

// Module is anything an embedding host can hand a live Environment to.
// This is the entire cross-component contract in this rewrite — see
// DESIGN.md for why the source engine's dynamic-library loading
// mechanism was dropped in favor of this explicit, single-binary call.
type Module interface {
	Start(ctx context.Context, env *Environment) (int, error)
}

// Initialize constructs the runtime's singletons. The returned Lifecycle
// scopes their existence — call Close when done.
func Initialize(cfg *config.Config) (*lifecycle.Lifecycle, error) {
	return lifecycle.New(cfg)
}

// Schedule submits t to the pool's lightest-loaded scheduler.
func Schedule(lc *lifecycle.Lifecycle, t *task.Task) *scheduler.JoinAwaitable {
	return lc.Registry().Pool.Schedule(t)
}

// Block runs fn off the calling task's OS thread, or synchronously if y
// is nil or ctx marks a non-task context (see package blocking). When y
// is non-nil, its origin scheduler's own worker cache (tier 1 of the
// three-tier cache blocking.Service implements) is consulted first,
// falling through to the process-wide tier or a fresh spawn exactly as
// it would for a caller that held the *scheduler.Scheduler directly.
func Block[R any](lc *lifecycle.Lifecycle, ctx context.Context, y *task.Yielder, fn func(context.Context) (R, error)) (R, error) {
	var sc blocking.SchedulerCache
	if y != nil {
		sc, _ = y.SchedulerCache().(blocking.SchedulerCache)
	}
	return blocking.Block[R](ctx, lc.Registry().Blocking, y, sc, fn)
}

// Sleep suspends the calling task for duration d, resuming via the timer
// service. It returns an error only if the timer service rejects the
// request outright (never for normal cancellation, which Sleep has no way
// to trigger since it owns no externally visible Sid).
func Sleep(lc *lifecycle.Lifecycle, y *task.Yielder, d time.Duration) error {
	aw := awaitable.New[struct{}](y.ResumeHook())
	_, err := lc.Registry().Timer.StartAfter(d, func() {
		aw.Resume(struct{}{}, nil)
	}, nil)
	if err != nil {
		return err
	}
	_, err = task.Await(y, aw)
	return err
}

// TimerStart registers a timer and returns both its cancellable Sid and
// an awaitable that resolves true if the timer fired or false if it was
// cancelled first.
func TimerStart(lc *lifecycle.Lifecycle, deadline time.Time, onTimeout func(), onCancel func()) (sid.Sid, *awaitable.Awaitable[bool], error) {
	result := awaitable.New[bool](nil)
	wrappedTimeout := func() {
		if onTimeout != nil {
			onTimeout()
		}
		result.Resume(true, nil)
	}
	wrappedCancel := func() {
		if onCancel != nil {
			onCancel()
		}
		result.Resume(false, nil)
	}
	id, err := lc.Registry().Timer.Start(deadline, wrappedTimeout, wrappedCancel)
	if err != nil {
		return sid.Sid{}, nil, err
	}
	return id, result, nil
}

// TimerCancel cancels a pending timer started via TimerStart.
func TimerCancel(lc *lifecycle.Lifecycle, id sid.Sid) bool {
	return lc.Registry().Timer.Cancel(id)
}

// TimerRunning reports whether id refers to a still-pending timer.
func TimerRunning(lc *lifecycle.Lifecycle, id sid.Sid) bool {
	return lc.Registry().Timer.Running(id)
}

// Global returns the pool's globally shared scheduler, for callers that
// need scheduler affinity rather than load-balanced Schedule.
func Global(lc *lifecycle.Lifecycle) *scheduler.Scheduler {
	return lc.Registry().Pool.Global()
}

var _ timersvc.Algorithm = timersvc.HybridAlgorithm{}
