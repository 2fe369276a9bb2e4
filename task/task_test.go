package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maumercado/hce-go/awaitable"
)

func TestCompletesImmediately(t *testing.T) {
	ta := New(func(y *Yielder) error { return nil })
	outcome := ta.Start()

	assert.Equal(t, StepCompleted, outcome)
	assert.True(t, ta.Done())
	assert.NoError(t, ta.Err())
}

func TestCompletesWithError(t *testing.T) {
	want := errors.New("boom")
	ta := New(func(y *Yielder) error { return want })
	outcome := ta.Start()

	assert.Equal(t, StepCompleted, outcome)
	assert.Equal(t, want, ta.Err())
}

func TestYieldThenComplete(t *testing.T) {
	var steps []string
	ta := New(func(y *Yielder) error {
		steps = append(steps, "before")
		y.Yield()
		steps = append(steps, "after")
		return nil
	})

	outcome := ta.Start()
	assert.Equal(t, StepYielded, outcome)
	assert.Equal(t, []string{"before"}, steps)

	outcome = ta.Resume()
	assert.Equal(t, StepCompleted, outcome)
	assert.Equal(t, []string{"before", "after"}, steps)
}

func TestMultipleYields(t *testing.T) {
	count := 0
	ta := New(func(y *Yielder) error {
		for i := 0; i < 3; i++ {
			count++
			y.Yield()
		}
		return nil
	})

	outcome := ta.Start()
	for outcome == StepYielded {
		outcome = ta.Resume()
	}

	assert.Equal(t, StepCompleted, outcome)
	assert.Equal(t, 3, count)
}

func TestAwaitSuspendsAndDeliversResult(t *testing.T) {
	aw := awaitable.New[int](nil)
	var got int

	ta := New(func(y *Yielder) error {
		v, err := Await(y, aw)
		if err != nil {
			return err
		}
		got = v
		return nil
	})

	outcome := ta.Start()
	assert.Equal(t, StepSuspended, outcome)

	aw.Resume(99, nil)
	outcome = ta.Resume()

	assert.Equal(t, StepCompleted, outcome)
	assert.Equal(t, 99, got)
}

func TestAwaitPropagatesError(t *testing.T) {
	aw := awaitable.New[int](nil)
	wantErr := errors.New("blocking failed")

	ta := New(func(y *Yielder) error {
		_, err := Await(y, aw)
		return err
	})

	ta.Start()
	aw.Resume(0, wantErr)
	outcome := ta.Resume()

	assert.Equal(t, StepCompleted, outcome)
	assert.Equal(t, wantErr, ta.Err())
}

func TestResumeOnCompletedTaskPanics(t *testing.T) {
	ta := New(func(y *Yielder) error { return nil })
	ta.Start()

	assert.Panics(t, func() {
		ta.Resume()
	})
}

// A task body's panic is a fatal invariant violation (SPEC_FULL.md §4.1,
// §7): it is not recovered into an ordinary completion error, so there is
// no in-process way to observe it other than the process aborting. That
// behavior is exercised by hand, not by a unit test that would have to
// crash the test binary to pass.

func TestAwaitableOnResumeHookFiresOnTaskResume(t *testing.T) {
	var reenqueued bool
	aw := awaitable.New[int](func() { reenqueued = true })

	ta := New(func(y *Yielder) error {
		_, _ = Await(y, aw)
		return nil
	})
	ta.Start()

	aw.Resume(1, nil)
	assert.True(t, reenqueued)

	ta.Resume()
	assert.True(t, ta.Done())
}
