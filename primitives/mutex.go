package primitives

import (
	"sync"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/task"
)

// Mutex is a task-aware mutual exclusion lock: a task that cannot
// immediately acquire it suspends (yielding its OS thread back to the
// scheduler) rather than blocking, so other tasks on the same scheduler
// keep making progress while it waits.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []*awaitable.Awaitable[struct{}]
}

// NewMutex constructs an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

// Lock suspends the calling task until the mutex is acquired.
func (m *Mutex) Lock(y *task.Yielder) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return
	}
	aw := awaitable.New[struct{}](y.ResumeHook())
	m.waiters = append(m.waiters, aw)
	m.mu.Unlock()

	_, _ = task.Await(y, aw)
}

// Unlock releases the mutex, waking the next queued waiter (if any) to
// hold it next. Unlock on an already-unlocked Mutex panics, matching
// sync.Mutex's own behavior.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		panic("primitives: Unlock of unlocked Mutex")
	}
	if len(m.waiters) == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.mu.Unlock()

	next.Resume(struct{}{}, nil)
}

// TryLock attempts to acquire the mutex without suspending, reporting
// whether it succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}
