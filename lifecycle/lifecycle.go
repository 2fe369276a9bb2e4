// Package lifecycle owns construction and teardown ordering for every
// engine singleton: memory caches, the scheduler registry and its global
// scheduler, the thread pool, the blocking service, and the timer
// service. Exactly one Lifecycle may exist in a process at a time.
package lifecycle

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/blocking"
	"github.com/maumercado/hce-go/internal/config"
	"github.com/maumercado/hce-go/internal/logger"
	"github.com/maumercado/hce-go/memory"
	"github.com/maumercado/hce-go/scheduler"
	"github.com/maumercado/hce-go/timersvc"
)

// ErrAlreadyRunning is returned by New when a Lifecycle already exists in
// this process. Constructing a second one concurrently is a fatal
// invariant violation in the source design; Go idiom returns an error for
// the caller to handle rather than aborting here, since the caller may
// simply be misusing the API rather than corrupting shared state.
var ErrAlreadyRunning = errors.New("lifecycle: a Lifecycle is already running in this process")

var running int32

// Registry exposes the live singletons an embedding host (tests, the
// control-plane server, or a linked-in module) can reach without an
// import cycle back through package lifecycle.
type Registry struct {
	Pool     *scheduler.Pool
	Blocking *blocking.Service
	Timer    *timersvc.Service
	Memory   *memory.BucketCache
}

// Environment is passed to a module's Start(ctx, env) call — see
// SPEC_FULL.md §6 for why this replaces the source engine's dynamic
// cross-module pointer-table mechanism.
type Environment struct {
	Registry *Registry
	Log      zerolog.Logger
}

// Lifecycle owns the construction order (memory -> scheduler registry ->
// global scheduler -> thread pool -> blocking service -> timer service)
// and its exact reverse for teardown.
type Lifecycle struct {
	cfg *config.Config
	log zerolog.Logger

	registry *Registry
	done     chan struct{}
}

// New constructs every engine singleton in order and starts their run
// loops on dedicated goroutines. It fails with ErrAlreadyRunning if
// another Lifecycle is already alive in this process.
func New(cfg *config.Config) (*Lifecycle, error) {
	if !atomic.CompareAndSwapInt32(&running, 0, 1) {
		return nil, ErrAlreadyRunning
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.WithComponent("lifecycle")

	mem := memory.NewBucketCache(cfg.Allocator.DefaultBlockByteLimit)

	workerCount := cfg.ThreadPool.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount < 1 {
		workerCount = 1
	}

	schedulers := make([]*scheduler.Scheduler, workerCount)
	schedulers[0] = scheduler.New(scheduler.GlobalName, log)
	for i := 1; i < workerCount; i++ {
		schedulers[i] = scheduler.New(fmt.Sprintf("worker-%d", i), log)
	}
	for _, s := range schedulers {
		go s.Run()
	}
	pool := scheduler.NewPool(schedulers)

	blockingSvc := blocking.New(log, cfg.Blocking.ProcessCacheSize)

	thresholds := timersvc.Thresholds{
		BusyWait: cfg.Timer.BusyWait(),
		Short:    cfg.Timer.ShortWake(),
		Long:     cfg.Timer.LongWake(),
	}
	timerSvc := timersvc.New(log, thresholds, timersvc.HybridAlgorithm{})
	go timerSvc.Run()

	l := &Lifecycle{
		cfg: cfg,
		log: log,
		registry: &Registry{
			Pool:     pool,
			Blocking: blockingSvc,
			Timer:    timerSvc,
			Memory:   mem,
		},
		done: make(chan struct{}),
	}

	l.log.Info().Int("schedulers", workerCount).Msg("lifecycle started")
	return l, nil
}

// Registry returns the live singleton registry. Valid for the lifetime of
// the Lifecycle.
func (l *Lifecycle) Registry() *Registry { return l.registry }

// Environment builds an Environment for passing to a module's Start.
func (l *Lifecycle) Environment() *Environment {
	return &Environment{Registry: l.registry, Log: l.log}
}

// Close halts every scheduler and the timer service, in the reverse of
// construction order, and releases the single-instance guard. It does
// not wait for in-flight blocking workers to drain — those are left to
// their own per-callable completion, matching the source engine's
// best-effort worker-thread shutdown semantics (errors there are logged,
// not fatal).
func (l *Lifecycle) Close() error {
	defer atomic.StoreInt32(&running, 0)

	l.registry.Timer.Halt()
	l.registry.Pool.HaltAll()

	close(l.done)
	l.log.Info().Msg("lifecycle stopped")
	return nil
}
