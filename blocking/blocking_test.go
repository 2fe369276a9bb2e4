package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/hce-go/task"
)

func TestBlockOutsideTaskRunsSynchronously(t *testing.T) {
	svc := New(zerolog.Nop(), 4)

	v, err := Block[int](context.Background(), svc, nil, nil, func(ctx context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBlockInsideTaskSuspendsAndResumes(t *testing.T) {
	svc := New(zerolog.Nop(), 4)

	var got int
	done := make(chan struct{})
	ta := task.New(func(y *task.Yielder) error {
		v, err := Block[int](context.Background(), svc, y, nil, func(ctx context.Context) (int, error) {
			time.Sleep(5 * time.Millisecond)
			return 42, nil
		})
		if err != nil {
			return err
		}
		got = v
		return nil
	})
	// With no scheduler, the awaitable's resume hook is the task's
	// rescheduler; use it to learn that the worker has finished.
	ta.SetRescheduler(func() { close(done) })

	outcome := ta.Start()
	require.Equal(t, task.StepSuspended, outcome)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("block never resumed")
	}
	// In this bare test (no scheduler) we drive the final step manually.
	ta.Resume()
	assert.Equal(t, 42, got)
}

func TestBlockPropagatesPanicAsError(t *testing.T) {
	svc := New(zerolog.Nop(), 4)

	_, err := Block[int](context.Background(), svc, nil, nil, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestBlockPropagatesCallableError(t *testing.T) {
	svc := New(zerolog.Nop(), 4)
	wantErr := errors.New("explicit failure")

	_, err := Block[int](context.Background(), svc, nil, nil, func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestNonTaskContextRunsSynchronouslyEvenWithYielder(t *testing.T) {
	svc := New(zerolog.Nop(), 4)
	ctx := NonTaskContext(context.Background())

	var ranSynchronously bool
	ta := task.New(func(y *task.Yielder) error {
		_, _ = Block[int](ctx, svc, y, nil, func(ctx context.Context) (int, error) {
			ranSynchronously = true
			return 1, nil
		})
		return nil
	})

	outcome := ta.Start()
	assert.Equal(t, task.StepCompleted, outcome)
	assert.True(t, ranSynchronously)
}

func TestBlockOutsideTaskNeverSpawnsWorkers(t *testing.T) {
	svc := New(zerolog.Nop(), 4)

	for i := 0; i < 3; i++ {
		_, err := Block[int](context.Background(), svc, nil, nil, func(ctx context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	// Outside-task Block never touches the cache (it runs synchronously),
	// so spawned stays zero; this asserts that path never spawns workers.
	assert.Equal(t, int64(0), svc.WorkerCount())
}

func TestCacheAcquireReleaseRoundTrip(t *testing.T) {
	c := NewCache(1)
	w := newWorker()
	defer w.close()

	assert.True(t, c.release(w))
	got := c.acquire()
	assert.Same(t, w, got)
	assert.Nil(t, c.acquire())
}

func TestCacheRespectsMaxSize(t *testing.T) {
	c := NewCache(1)
	w1 := newWorker()
	w2 := newWorker()
	defer w1.close()
	defer w2.close()

	assert.True(t, c.release(w1))
	assert.False(t, c.release(w2))
}
