package wsdash

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/hce-go/internal/controlplane/events"
)

func newTestHub(t *testing.T) *Hub {
	h := NewHub(zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func newTestClient(h *Hub) *Client {
	return &Client{ID: "test-client", hub: h, send: make(chan []byte, sendBufferSize), log: zerolog.Nop()}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	h := newTestHub(t)
	c := newTestClient(h)

	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Unregister(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHubBroadcastDeliversToRegisteredClients(t *testing.T) {
	h := newTestHub(t)
	c := newTestClient(h)

	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Broadcast(events.New("proc-1", events.TaskCompleted, map[string]interface{}{"id": "t1"}))

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), "task.completed")
		assert.Contains(t, string(msg), "t1")
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast event")
	}
}

func TestHubBroadcastDropsEventWhenChannelFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	// Don't start Run; fill the broadcast channel to its capacity and
	// confirm Broadcast drops rather than blocks.
	for i := 0; i < cap(h.broadcast); i++ {
		h.broadcast <- events.New("proc-1", events.TaskScheduled, nil)
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast(events.New("proc-1", events.TaskScheduled, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked instead of dropping on a full channel")
	}
}

func TestHubStopClosesClientSendChannels(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()
	c := newTestClient(h)

	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Stop()

	_, ok := <-c.send
	assert.False(t, ok, "client send channel should be closed after Stop")
}
