package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/hce-go/internal/config"
	"github.com/maumercado/hce-go/task"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Logging.Level = "error"
	cfg.ThreadPool.WorkerCount = 2
	cfg.Blocking.ProcessCacheSize = 4
	cfg.Timer.BusyWaitMicros = 1000
	cfg.Timer.ShortWakeMicros = 5000
	cfg.Timer.LongWakeMicros = 20000
	cfg.Allocator.DefaultBlockByteLimit = 1 << 16
	return cfg
}

func TestNewConstructsRegistry(t *testing.T) {
	lc, err := New(testConfig())
	require.NoError(t, err)
	defer lc.Close()

	reg := lc.Registry()
	assert.NotNil(t, reg.Pool)
	assert.NotNil(t, reg.Blocking)
	assert.NotNil(t, reg.Timer)
	assert.NotNil(t, reg.Memory)
	assert.Len(t, reg.Pool.Schedulers(), 2)
}

func TestSecondLifecycleFailsWhileFirstIsRunning(t *testing.T) {
	lc, err := New(testConfig())
	require.NoError(t, err)
	defer lc.Close()

	_, err2 := New(testConfig())
	assert.ErrorIs(t, err2, ErrAlreadyRunning)
}

func TestCloseReleasesGuardForNewLifecycle(t *testing.T) {
	lc, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, lc.Close())

	lc2, err := New(testConfig())
	require.NoError(t, err)
	defer lc2.Close()
}

func TestEngineRunsTaskEndToEnd(t *testing.T) {
	lc, err := New(testConfig())
	require.NoError(t, err)
	defer lc.Close()

	done := make(chan struct{})
	ta := task.New(func(y *task.Yielder) error {
		close(done)
		return nil
	})
	lc.Registry().Pool.Schedule(ta)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}
