package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/task"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New("test", zerolog.Nop())
	go s.Run()
	t.Cleanup(func() {
		s.Halt()
	})
	return s
}

func TestScheduleRunsTaskToCompletion(t *testing.T) {
	s := newTestScheduler(t)

	var ran bool
	var mu sync.Mutex
	ta := task.New(func(y *task.Yielder) error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil
	})

	join := s.Schedule(ta)
	waitReady(t, join)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, ran)
}

func TestScheduleAfterHaltFails(t *testing.T) {
	s := New("test", zerolog.Nop())
	go s.Run()
	s.Halt()
	time.Sleep(20 * time.Millisecond)

	ta := task.New(func(y *task.Yielder) error { return nil })
	join := s.Schedule(ta)

	v, err := waitReady(t, join)
	assert.ErrorIs(t, err, ErrHalted)
	_ = v
}

func TestYieldedTaskRunsAgainNextDrain(t *testing.T) {
	s := newTestScheduler(t)

	var order []int
	var mu sync.Mutex
	record := func(n int) {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	ta := task.New(func(y *task.Yielder) error {
		record(1)
		y.Yield()
		record(2)
		return nil
	})

	join := s.Schedule(ta)
	waitReady(t, join)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

func TestAwaitSuspendsUntilExternalResume(t *testing.T) {
	s := newTestScheduler(t)

	var got int
	var aw *awaitable.Awaitable[int]
	ready := make(chan struct{})

	ta := task.New(func(y *task.Yielder) error {
		aw = awaitable.New[int](y.ResumeHook())
		close(ready)
		v, err := task.Await(y, aw)
		if err != nil {
			return err
		}
		got = v
		return nil
	})

	join := s.Schedule(ta)
	<-ready
	time.Sleep(10 * time.Millisecond)
	aw.Resume(55, nil)

	waitReady(t, join)
	assert.Equal(t, 55, got)
}

func TestScheduledCountDecrementsOnCompletion(t *testing.T) {
	s := newTestScheduler(t)

	ta := task.New(func(y *task.Yielder) error { return nil })
	join := s.Schedule(ta)
	waitReady(t, join)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, s.ScheduledCount())
}

// waitReady polls a JoinAwaitable until it resolves and returns the
// task's completion error alongside the awaitable-level error (e.g.
// ErrHalted for a task rejected outright).
func waitReady(t *testing.T, aw *JoinAwaitable) (taskErr error, awaitErr error) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if aw.IsReady() {
			return aw.Result()
		}
		select {
		case <-deadline:
			require.Fail(t, "awaitable never became ready")
		case <-time.After(time.Millisecond):
		}
	}
}
