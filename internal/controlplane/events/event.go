// Package events defines the control plane's own event envelope —
// distinct from the engine core, which has no event bus of its own. The
// control plane synthesizes these from the snapshots it takes of the
// core's schedulers, blocking service, and timer service, and broadcasts
// them to dashboard clients and (optionally) a cluster-wide Redis
// pub/sub channel.
package events

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of event being reported.
type Type string

const (
	TaskScheduled    Type = "task.scheduled"
	TaskCompleted    Type = "task.completed"
	TimerFired       Type = "timer.fired"
	TimerCancelled   Type = "timer.cancelled"
	SchedulerPaused  Type = "scheduler.paused"
	SchedulerResumed Type = "scheduler.resumed"
	PoolDepthChanged Type = "pool.depth_changed"
)

// Event is the envelope broadcast over the dashboard WebSocket hub and,
// when clustering is enabled, republished to every other control plane
// in the fleet via Redis pub/sub.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"` // originating process/control-plane id
	Data      map[string]interface{} `json:"data"`
}

// New constructs an Event stamped with the given source identifier.
func New(source string, t Type, data map[string]interface{}) *Event {
	return &Event{Type: t, Timestamp: time.Now().UTC(), Source: source, Data: data}
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event.
func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
