package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// promauto registers these at package init; just verify they exist.
	assert.NotNil(t, SchedulerQueueDepth)
	assert.NotNil(t, TasksCompleted)
	assert.NotNil(t, TaskDuration)

	assert.NotNil(t, BlockingWorkersSpawned)
	assert.NotNil(t, BlockingCacheHits)
	assert.NotNil(t, BlockingDuration)

	assert.NotNil(t, TimerListSize)
	assert.NotNil(t, TimerFireLatency)
	assert.NotNil(t, TimersCancelled)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)

	assert.NotNil(t, RedisOperationDuration)
	assert.NotNil(t, RedisErrors)
	assert.NotNil(t, IsClusterLeader)

	assert.NotNil(t, WebSocketConnections)
	assert.NotNil(t, WebSocketMessages)
}

func TestRecordTaskCompletion(t *testing.T) {
	TasksCompleted.Reset()
	TaskDuration.Reset()

	RecordTaskCompletion("global", "success", 0.002)
	RecordTaskCompletion("global", "error", 0.0005)
}

func TestUpdateSchedulerQueueDepth(t *testing.T) {
	SchedulerQueueDepth.Reset()

	UpdateSchedulerQueueDepth("global", 12)
	UpdateSchedulerQueueDepth("worker-1", 0)
}

func TestRecordBlockingDispatch(t *testing.T) {
	RecordBlockingDispatch(true, "ok", 0.001)
	RecordBlockingDispatch(false, "error", 0.05)
}

func TestSetTimerListSize(t *testing.T) {
	SetTimerListSize(0)
	SetTimerListSize(42)
}

func TestRecordTimerFireAndCancellation(t *testing.T) {
	RecordTimerFire(0.0003)
	RecordTimerCancellation()
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestDuration.Reset()
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/v1/stats", "200", 0.01)
	RecordHTTPRequest("POST", "/v1/timers/abc/cancel", "200", 0.002)
}

func TestRecordRedisOperationAndError(t *testing.T) {
	RedisOperationDuration.Reset()
	RedisErrors.Reset()

	RecordRedisOperation("SETNX", 0.001)
	RecordRedisError("PUBLISH")
}

func TestSetClusterLeader(t *testing.T) {
	SetClusterLeader(true)
	SetClusterLeader(false)
}

func TestWebSocketMetrics(t *testing.T) {
	WebSocketMessages.Reset()

	SetWebSocketConnections(3)
	RecordWebSocketMessage("timer.fired")
	RecordWebSocketMessage("task.completed")
}
