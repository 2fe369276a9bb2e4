package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler metrics
	SchedulerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hce_scheduler_queue_depth",
			Help: "Current number of tasks queued or executing on a scheduler",
		},
		[]string{"scheduler"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hce_tasks_completed_total",
			Help: "Total number of tasks that reached completion",
		},
		[]string{"scheduler", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hce_task_duration_seconds",
			Help:    "Task step-to-completion wall time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18), // 0.1ms to ~13s
		},
		[]string{"scheduler"},
	)

	// Blocking service metrics
	BlockingWorkersSpawned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hce_blocking_workers_spawned_total",
			Help: "Total number of blocking workers spawned fresh (cache miss on all tiers)",
		},
	)

	BlockingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hce_blocking_cache_hits_total",
			Help: "Total number of Block dispatches satisfied by a cached worker",
		},
	)

	BlockingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hce_blocking_call_duration_seconds",
			Help:    "Duration of dispatched blocking callables in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"status"},
	)

	// Timer metrics
	TimerListSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hce_timer_list_size",
			Help: "Current number of pending timers",
		},
	)

	TimerFireLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hce_timer_fire_latency_seconds",
			Help:    "Difference between a timer's requested deadline and its actual fire time",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		},
	)

	TimersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hce_timers_cancelled_total",
			Help: "Total number of timers cancelled before firing",
		},
	)

	// Control plane HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hce_controlplane_http_request_duration_seconds",
			Help:    "Control plane HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hce_controlplane_http_requests_total",
			Help: "Total number of control plane HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Control plane cluster (Redis) metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hce_controlplane_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hce_controlplane_redis_errors_total",
			Help: "Total number of Redis errors from the control plane cluster layer",
		},
		[]string{"operation"},
	)

	IsClusterLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hce_controlplane_is_cluster_leader",
			Help: "1 if this process currently holds the cluster leader lock, else 0",
		},
	)

	// Control plane WebSocket dashboard metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hce_controlplane_websocket_connections",
			Help: "Current number of connected dashboard WebSocket clients",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hce_controlplane_websocket_messages_total",
			Help: "Total number of WebSocket events broadcast to dashboard clients",
		},
		[]string{"type"},
	)
)

// RecordTaskCompletion records a task reaching completion on scheduler.
func RecordTaskCompletion(scheduler, status string, durationSeconds float64) {
	TasksCompleted.WithLabelValues(scheduler, status).Inc()
	TaskDuration.WithLabelValues(scheduler).Observe(durationSeconds)
}

// UpdateSchedulerQueueDepth sets the queue depth gauge for scheduler.
func UpdateSchedulerQueueDepth(scheduler string, depth float64) {
	SchedulerQueueDepth.WithLabelValues(scheduler).Set(depth)
}

// RecordBlockingDispatch records a Block() call's outcome and duration.
func RecordBlockingDispatch(cached bool, status string, durationSeconds float64) {
	if cached {
		BlockingCacheHits.Inc()
	} else {
		BlockingWorkersSpawned.Inc()
	}
	BlockingDuration.WithLabelValues(status).Observe(durationSeconds)
}

// SetTimerListSize sets the pending-timer-count gauge.
func SetTimerListSize(size float64) {
	TimerListSize.Set(size)
}

// RecordTimerFire records the latency between a timer's deadline and its
// actual fire time in the TimerFireLatency histogram.
func RecordTimerFire(latencySeconds float64) {
	TimerFireLatency.Observe(latencySeconds)
}

// RecordTimerCancellation increments the cancelled-timers counter.
func RecordTimerCancellation() {
	TimersCancelled.Inc()
}

// RecordHTTPRequest records a control plane HTTP request.
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRedisOperation records a cluster-layer Redis operation.
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRedisError records a cluster-layer Redis error.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// SetClusterLeader sets whether this process currently holds the cluster
// leader lock.
func SetClusterLeader(isLeader bool) {
	if isLeader {
		IsClusterLeader.Set(1)
		return
	}
	IsClusterLeader.Set(0)
}

// SetWebSocketConnections sets the connected-dashboard-clients gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a broadcast dashboard event by type.
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}
