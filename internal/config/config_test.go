package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	originalDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)

	// Memory/allocator defaults
	assert.Equal(t, int64(1<<20), cfg.Memory.SystemThreadCacheBytes)
	assert.Equal(t, int64(4<<20), cfg.Memory.GlobalSchedulerCacheBytes)
	assert.Equal(t, int64(64<<10), cfg.Allocator.DefaultBlockByteLimit)

	// Scheduler / thread pool defaults
	assert.Equal(t, 0, cfg.Scheduler.GlobalTaskResourceLimit)
	assert.Equal(t, 0, cfg.ThreadPool.WorkerCount)
	assert.Equal(t, "lightest", cfg.ThreadPool.SelectionAlgorithm)

	// Blocking defaults
	assert.Equal(t, 64, cfg.Blocking.ProcessCacheSize)
	assert.Equal(t, 16, cfg.Blocking.GlobalSchedulerCacheCap)
	assert.Equal(t, 4, cfg.Blocking.WorkerSchedulerCacheCap)

	// Timer defaults
	assert.Equal(t, "hybrid", cfg.Timer.TimeoutAlgorithm)
	assert.Equal(t, time.Millisecond, cfg.Timer.BusyWait())
	assert.Equal(t, 5*time.Millisecond, cfg.Timer.ShortWake())
	assert.Equal(t, 50*time.Millisecond, cfg.Timer.LongWake())

	// Control plane defaults
	assert.False(t, cfg.ControlPlane.Enabled)
	assert.Equal(t, "0.0.0.0:8090", cfg.ControlPlane.BindAddr)
	assert.Equal(t, "/metrics", cfg.ControlPlane.MetricsPath)
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir + "/config.yaml"

	configContent := `
logging:
  level: "warn"
  pretty: true

threadpool:
  workercount: 4

controlplane:
  enabled: true
  bindaddr: "127.0.0.1:9090"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	originalDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, 4, cfg.ThreadPool.WorkerCount)
	assert.True(t, cfg.ControlPlane.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.ControlPlane.BindAddr)
}

func TestTimerConfig_DurationHelpers(t *testing.T) {
	cfg := TimerConfig{
		BusyWaitMicros:  2000,
		ShortWakeMicros: 3000,
		LongWakeMicros:  4000,
	}

	assert.Equal(t, 2*time.Millisecond, cfg.BusyWait())
	assert.Equal(t, 3*time.Millisecond, cfg.ShortWake())
	assert.Equal(t, 4*time.Millisecond, cfg.LongWake())
}

func TestBlockingConfig_Fields(t *testing.T) {
	cfg := BlockingConfig{
		ProcessCacheSize:        32,
		GlobalSchedulerCacheCap: 8,
		WorkerSchedulerCacheCap: 2,
	}

	assert.Equal(t, 32, cfg.ProcessCacheSize)
	assert.Equal(t, 8, cfg.GlobalSchedulerCacheCap)
}
