// Command hce-demo boots one engine process end to end: load config, start
// the scheduler/blocking/timer singletons, mount the control plane's admin
// HTTP API and dashboard WebSocket over them, schedule a couple of sample
// tasks that exercise Schedule/Block/Sleep, and shut down
// cleanly on SIGINT/SIGTERM. It replaces the teacher's split
// cmd/api-server + cmd/worker pair, since this engine has no separate
// producer/consumer processes to split across.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go"
	"github.com/maumercado/hce-go/internal/config"
	"github.com/maumercado/hce-go/internal/controlplane"
	"github.com/maumercado/hce-go/internal/logger"
	"github.com/maumercado/hce-go/lifecycle"
	"github.com/maumercado/hce-go/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lc, err := hce.Initialize(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize engine: %v\n", err)
		os.Exit(1)
	}

	log := logger.WithComponent("hce-demo")
	log.Info().Msg("engine started")

	scheduleSamples(lc, log.With().Str("component", "demo-tasks").Logger())

	var srv *http.Server
	if cfg.ControlPlane.Enabled {
		cp := controlplane.NewServer(&cfg.ControlPlane, lc.Registry(), logger.WithComponent("controlplane"))
		cp.Start()
		srv = &http.Server{Addr: cfg.ControlPlane.BindAddr, Handler: cp}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("control plane server error")
			}
		}()
		log.Info().Str("addr", cfg.ControlPlane.BindAddr).Msg("control plane listening")
		defer cp.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("control plane shutdown error")
		}
	}

	if err := lc.Close(); err != nil {
		log.Error().Err(err).Msg("engine shutdown error")
	}
	log.Info().Msg("engine stopped")
}

// scheduleSamples runs a couple of representative workloads so a freshly
// started process has something to show on the dashboard: one task that
// sleeps via the timer service, one that blocks on a simulated I/O call.
func scheduleSamples(lc *lifecycle.Lifecycle, log zerolog.Logger) {
	sleeper := task.New(func(y *task.Yielder) error {
		log.Info().Msg("sleeper task: sleeping 2s")
		if err := hce.Sleep(lc, y, 2*time.Second); err != nil {
			return err
		}
		log.Info().Msg("sleeper task: woke up")
		return nil
	})
	hce.Schedule(lc, sleeper)

	blocker := task.New(func(y *task.Yielder) error {
		log.Info().Msg("blocker task: dispatching simulated I/O")
		result, err := hce.Block(lc, context.Background(), y, func(ctx context.Context) (string, error) {
			time.Sleep(100 * time.Millisecond)
			return "done", nil
		})
		if err != nil {
			return err
		}
		log.Info().Str("result", result).Msg("blocker task: I/O completed")
		return nil
	})
	hce.Schedule(lc, blocker)
}
