package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func Init(level string, pretty bool) {
	// Parse log level
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

func Get() *zerolog.Logger {
	return &log
}

func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithScheduler tags log lines with the originating scheduler's name, so
// interleaved run-loop output across a pool can be told apart.
func WithScheduler(name string) zerolog.Logger {
	return log.With().Str("component", "scheduler").Str("scheduler", name).Logger()
}

// WithWorker tags log lines emitted by a blocking worker goroutine.
func WithWorker(workerID string) zerolog.Logger {
	return log.With().Str("component", "blocking").Str("worker_id", workerID).Logger()
}

// WithSid tags log lines concerning a specific timer identity.
func WithSid(id string) zerolog.Logger {
	return log.With().Str("component", "timer").Str("sid", id).Logger()
}

// Convenience methods
func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
