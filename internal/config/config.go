package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging      LoggingConfig
	Memory       MemoryConfig
	Allocator    AllocatorConfig
	Scheduler    SchedulerConfig
	ThreadPool   ThreadPoolConfig
	Blocking     BlockingConfig
	Timer        TimerConfig
	ControlPlane ControlPlaneConfig
}

type LoggingConfig struct {
	Level  string
	Pretty bool
}

type MemoryConfig struct {
	SystemThreadCacheBytes int64
	GlobalSchedulerCacheBytes int64
	WorkerSchedulerCacheBytes int64
	BucketIndexerBase         int
}

type AllocatorConfig struct {
	DefaultBlockByteLimit int64
}

type SchedulerConfig struct {
	GlobalTaskResourceLimit int
}

type ThreadPoolConfig struct {
	WorkerCount         int // 0 = auto-detect via runtime.NumCPU
	PerWorkerTaskLimit  int
	SelectionAlgorithm  string
}

type BlockingConfig struct {
	ProcessCacheSize        int
	GlobalSchedulerCacheCap int
	WorkerSchedulerCacheCap int
}

type TimerConfig struct {
	ThreadPriority   string // loaded but not applied; the timer goroutine runs at default priority
	BusyWaitMicros   int64
	ShortWakeMicros  int64
	LongWakeMicros   int64
	TimeoutAlgorithm string
}

type ControlPlaneConfig struct {
	Enabled       bool
	BindAddr      string
	AuthEnabled   bool
	JWTSecret     string
	RedisAddr     string
	MetricsPath   string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/hce")

	setDefaults()

	viper.SetEnvPrefix("HCE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)

	// Memory defaults
	viper.SetDefault("memory.systemthreadcachebytes", 1<<20)
	viper.SetDefault("memory.globalschedulercachebytes", 4<<20)
	viper.SetDefault("memory.workerschedulercachebytes", 1<<20)
	viper.SetDefault("memory.bucketindexerbase", 2)

	// Allocator defaults
	viper.SetDefault("allocator.defaultblockbytelimit", 64<<10)

	// Scheduler defaults
	viper.SetDefault("scheduler.globaltaskresourcelimit", 0) // 0 = unbounded

	// Thread pool defaults
	viper.SetDefault("threadpool.workercount", 0) // 0 = runtime.NumCPU()
	viper.SetDefault("threadpool.perworkertasklimit", 0)
	viper.SetDefault("threadpool.selectionalgorithm", "lightest")

	// Blocking service defaults
	viper.SetDefault("blocking.processcachesize", 64)
	viper.SetDefault("blocking.globalschedulercachecap", 16)
	viper.SetDefault("blocking.workerschedulercachecap", 4)

	// Timer defaults
	viper.SetDefault("timer.threadpriority", "normal")
	viper.SetDefault("timer.busywaitmicros", 1000)
	viper.SetDefault("timer.shortwakemicros", 5000)
	viper.SetDefault("timer.longwakemicros", 50000)
	viper.SetDefault("timer.timeoutalgorithm", "hybrid")

	// Control plane defaults
	viper.SetDefault("controlplane.enabled", false)
	viper.SetDefault("controlplane.bindaddr", "0.0.0.0:8090")
	viper.SetDefault("controlplane.authenabled", false)
	viper.SetDefault("controlplane.jwtsecret", "")
	viper.SetDefault("controlplane.redisaddr", "localhost:6379")
	viper.SetDefault("controlplane.metricspath", "/metrics")
}

func (c *TimerConfig) BusyWait() time.Duration  { return time.Duration(c.BusyWaitMicros) * time.Microsecond }
func (c *TimerConfig) ShortWake() time.Duration { return time.Duration(c.ShortWakeMicros) * time.Microsecond }
func (c *TimerConfig) LongWake() time.Duration  { return time.Duration(c.LongWakeMicros) * time.Microsecond }
