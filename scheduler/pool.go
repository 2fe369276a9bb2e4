package scheduler

import (
	"sync/atomic"

	"github.com/maumercado/hce-go/task"
)

// Pool load-balances task submissions across a fixed set of Schedulers.
// Index 0 is always the globally shared scheduler; the rest are
// additional workers sized to the configured thread-pool count.
type Pool struct {
	schedulers []*Scheduler
	rotation   uint64 // pool-wide, advanced atomically by one per Select call
}

// NewPool wraps an already-constructed set of schedulers. The global
// scheduler must be schedulers[0].
func NewPool(schedulers []*Scheduler) *Pool {
	return &Pool{schedulers: schedulers}
}

// Schedulers returns an immutable view of the pool's schedulers.
func (p *Pool) Schedulers() []*Scheduler {
	out := make([]*Scheduler, len(p.schedulers))
	copy(out, p.schedulers)
	return out
}

// Select returns the scheduler with the smallest ScheduledCount,
// short-circuiting on the first empty one found. Ties are broken by
// visiting order, which rotates by one call each time to spread the
// first-touch cost rather than always starting at index 0. The rotation
// counter is a single atomic shared by every caller of the pool; there is
// no per-thread rotation index.
func (p *Pool) Select() *Scheduler {
	n := len(p.schedulers)
	if n == 0 {
		panic("scheduler: pool has no schedulers")
	}
	start := int(atomic.AddUint64(&p.rotation, 1) % uint64(n))

	best := p.schedulers[start]
	bestCount := best.ScheduledCount()
	if bestCount == 0 {
		return best
	}
	for i := 1; i < n; i++ {
		idx := (start + i) % n
		candidate := p.schedulers[idx]
		count := candidate.ScheduledCount()
		if count == 0 {
			return candidate
		}
		if count < bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}

// Schedule is a convenience for Select().Schedule(t).
func (p *Pool) Schedule(t *task.Task) *JoinAwaitable {
	return p.Select().Schedule(t)
}

// Global returns the pool's index-0 globally shared scheduler.
func (p *Pool) Global() *Scheduler {
	return p.schedulers[0]
}

// ByName returns the scheduler registered under name, or nil if none
// matches. Used by the control plane to resolve a path parameter to a
// specific scheduler for pause/resume/stats requests.
func (p *Pool) ByName(name string) *Scheduler {
	for _, s := range p.schedulers {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Name implements nameable.Nameable.
func (p *Pool) Name() string { return "pool" }

// HaltAll halts every scheduler in the pool. It does not wait for their
// run loops to return, and package lifecycle does not wait for them
// either.
func (p *Pool) HaltAll() {
	for _, s := range p.schedulers {
		s.Halt()
	}
}
