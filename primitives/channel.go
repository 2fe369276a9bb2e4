// Package primitives offers application-level collaborators built atop
// the awaitable/task suspension mechanism, so code running inside a task
// can coordinate the way it would with Go's native chan and sync.Mutex
// without ever blocking the OS thread a scheduler's run loop depends on.
package primitives

import (
	"errors"
	"sync"

	"github.com/maumercado/hce-go/awaitable"
	"github.com/maumercado/hce-go/task"
)

// ErrClosed is returned by Send on a closed channel. Recv on a closed
// channel reports ok == false instead.
var ErrClosed = errors.New("primitives: channel closed")

// Chan is an unbuffered, task-aware rendezvous channel. Unlike a native Go
// channel, a task suspended on Send or Recv yields its OS thread back to
// the scheduler rather than parking it, so other tasks on the same
// scheduler keep making progress.
type Chan[T any] struct {
	mu     sync.Mutex
	closed bool

	// sendWaiter/recvWaiter hold at most one waiter of each kind at a
	// time, since this is an unbuffered, one-at-a-time rendezvous.
	sendWaiter *awaitable.Awaitable[error]
	sendValue  T
	recvWaiter *awaitable.Awaitable[recvResult[T]]
}

type recvResult[T any] struct {
	value T
	ok    bool
}

// NewChan constructs an empty, open Chan.
func NewChan[T any]() *Chan[T] {
	return &Chan[T]{}
}

// Send suspends the calling task until a Recv rendezvous with value v, or
// returns ErrClosed immediately if the channel is already closed.
func (c *Chan[T]) Send(y *task.Yielder, v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if rw := c.recvWaiter; rw != nil {
		c.recvWaiter = nil
		c.mu.Unlock()
		rw.Resume(recvResult[T]{value: v, ok: true}, nil)
		return nil
	}

	aw := awaitable.New[error](y.ResumeHook())
	c.sendWaiter = aw
	c.sendValue = v
	c.mu.Unlock()

	return mustAwait(y, aw)
}

// Recv suspends the calling task until a Send rendezvous, or returns
// (zero, false) once the channel is closed with no sender waiting.
func (c *Chan[T]) Recv(y *task.Yielder) (T, bool) {
	c.mu.Lock()
	if sw := c.sendWaiter; sw != nil {
		v := c.sendValue
		c.sendWaiter = nil
		c.mu.Unlock()
		sw.Resume(nil, nil)
		return v, true
	}
	if c.closed {
		c.mu.Unlock()
		var zero T
		return zero, false
	}

	aw := awaitable.New[recvResult[T]](y.ResumeHook())
	c.recvWaiter = aw
	c.mu.Unlock()

	res, err := task.Await(y, aw)
	if err != nil {
		var zero T
		return zero, false
	}
	return res.value, res.ok
}

// Close marks the channel closed. Any task still suspended in Recv wakes
// with (zero, false); a task suspended in Send wakes with ErrClosed.
func (c *Chan[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	rw := c.recvWaiter
	c.recvWaiter = nil
	sw := c.sendWaiter
	c.sendWaiter = nil
	c.mu.Unlock()

	if rw != nil {
		var zero recvResult[T]
		rw.Resume(zero, nil)
	}
	if sw != nil {
		sw.Resume(ErrClosed, nil)
	}
}

func mustAwait(y *task.Yielder, aw *awaitable.Awaitable[error]) error {
	err, awErr := task.Await(y, aw)
	if awErr != nil {
		return awErr
	}
	return err
}
