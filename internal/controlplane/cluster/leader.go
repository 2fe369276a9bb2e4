// Package cluster gives a fleet of engine processes' control planes a
// way to agree on a single leader (for publishing one aggregated
// cluster-wide stats snapshot instead of N redundant ones) and to
// republish local dashboard events process-wide. It is strictly
// additive observability: it never reaches into another process's
// in-memory scheduler, blocking, or timer state, preserving the core
// engine's no-distributed-coordination stance.
package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/internal/metrics"
)

const (
	leaderLockKey = "hce:controlplane:leader"
	leaderLockTTL = 5 * time.Second
	renewInterval = leaderLockTTL / 2
)

// Leader holds a renewable SETNX lock, mirroring the teacher's
// queue/scheduler.go distributed-lock pattern applied to a different
// payload (aggregated stats publication rather than due-task
// activation): only the current holder publishes the fleet-wide stats
// snapshot, and the lock is short-TTL so a crashed leader is replaced
// within one TTL plus one renewal period rather than requiring explicit
// failover.
type Leader struct {
	client *redis.Client
	log    zerolog.Logger
	id     string

	mu       sync.RWMutex
	isLeader bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLeader constructs a Leader. id identifies this process's lock
// holder value, for diagnostics only.
func NewLeader(client *redis.Client, log zerolog.Logger, id string) *Leader {
	return &Leader{
		client: client,
		log:    log.With().Str("component", "cluster-leader").Logger(),
		id:     id,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run periodically attempts to acquire or renew the leader lock until
// Stop is called or ctx is cancelled.
func (l *Leader) Run(ctx context.Context) {
	defer close(l.doneCh)

	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		l.tryAcquire(ctx)
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (l *Leader) tryAcquire(ctx context.Context) {
	start := time.Now()
	ok, err := l.client.SetNX(ctx, leaderLockKey, l.id, leaderLockTTL).Result()
	metrics.RecordRedisOperation("setnx", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRedisError("setnx")
		l.log.Warn().Err(err).Msg("leader lock attempt failed")
		l.setLeader(false)
		return
	}
	if !ok && l.IsLeader() {
		// Already held: renew the TTL if the lock still carries our id.
		val, getErr := l.client.Get(ctx, leaderLockKey).Result()
		if getErr == nil && val == l.id {
			start = time.Now()
			ok, err = l.client.Expire(ctx, leaderLockKey, leaderLockTTL).Result()
			metrics.RecordRedisOperation("expire", time.Since(start).Seconds())
			if err != nil {
				metrics.RecordRedisError("expire")
				ok = false
			}
		}
	}
	l.setLeader(ok)
}

func (l *Leader) setLeader(v bool) {
	l.mu.Lock()
	l.isLeader = v
	l.mu.Unlock()
	metrics.SetClusterLeader(v)
}

// IsLeader reports whether this process currently holds the lock.
func (l *Leader) IsLeader() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isLeader
}

// Stop ends the renewal loop and blocks until it has exited.
func (l *Leader) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

// Release drops the lock immediately, e.g. during graceful shutdown, so
// the next renewal tick elsewhere can take over without waiting out the
// full TTL.
func (l *Leader) Release(ctx context.Context) {
	val, err := l.client.Get(ctx, leaderLockKey).Result()
	if err != nil || val != l.id {
		return
	}
	l.client.Del(ctx, leaderLockKey)
}
