// Package controlplane is the optional HTTP/WebSocket/Redis layer that
// observes and administers one or more engine processes. It never
// participates in scheduling, timer firing, or blocking dispatch — it
// only reads snapshots off the core's Registry and issues administrative
// commands (pause/resume a scheduler, cancel a timer by sid), exactly
// the way the teacher's HTTP/admin layer sits above its Redis-backed
// queue without being part of the queue's core consistency guarantees.
package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/internal/config"
	"github.com/maumercado/hce-go/internal/controlplane/wsdash"
	"github.com/maumercado/hce-go/internal/metrics"
	"github.com/maumercado/hce-go/lifecycle"
	"github.com/maumercado/hce-go/scheduler"
	"github.com/maumercado/hce-go/sid"
)

// Server is the control plane's HTTP surface: a chi router bound to one
// engine process's lifecycle.Registry.
type Server struct {
	router *chi.Mux
	log    zerolog.Logger
	reg    *lifecycle.Registry
	wsHub  *wsdash.Hub
	wsH    *wsdash.Handler

	auth authConfig

	mu      sync.RWMutex
	sids    map[string]sid.Sid // sid.String() -> Sid, see RegisterTimer
	metrics string
}

// NewServer wires a control plane server over reg. cfg supplies auth and
// metrics-path configuration; its bind address is not read here (listening
// and Redis wiring are the embedding cmd's responsibility — see
// cmd/hce-demo).
func NewServer(cfg *config.ControlPlaneConfig, reg *lifecycle.Registry, log zerolog.Logger) *Server {
	log = log.With().Str("component", "controlplane").Logger()
	hub := wsdash.NewHub(log)

	s := &Server{
		router:  chi.NewRouter(),
		log:     log,
		reg:     reg,
		wsHub:   hub,
		wsH:     wsdash.NewHandler(hub, log),
		auth:    authConfig{enabled: cfg.AuthEnabled, secret: cfg.JWTSecret},
		sids:    make(map[string]sid.Sid),
		metrics: cfg.MetricsPath,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/health"))
	s.router.Use(recordHTTPMetrics)
}

// recordHTTPMetrics feeds every request's method/path/status and
// duration into the internal/metrics HTTP histogram and counter.
func recordHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}
		metrics.RecordHTTPRequest(r.Method, routePattern, status, time.Since(start).Seconds())
	})
}

func (s *Server) setupRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/stats", s.handleStats)
		r.Get("/schedulers/{id}", s.handleSchedulerDetail)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.auth))
			r.Use(rateLimit(20))
			r.Post("/timers/{sid}/cancel", s.handleTimerCancel)
			r.Post("/schedulers/{id}/pause", s.handleSchedulerPause)
			r.Post("/schedulers/{id}/resume", s.handleSchedulerResume)
		})
	})

	s.router.Get("/dashboard/ws", s.wsH.ServeWS)

	if s.metrics != "" {
		s.router.Handle(s.metrics, promhttp.Handler())
	}
}

// Router returns the underlying chi router, e.g. for http.Server.Handler.
func (s *Server) Router() *chi.Mux { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins the dashboard hub's broadcast loop.
func (s *Server) Start() { go s.wsHub.Run() }

// Stop halts the dashboard hub, closing every connected client.
func (s *Server) Stop() { s.wsHub.Stop() }

// RegisterTimer records id under its string form so a later
// POST /v1/timers/{sid}/cancel request can resolve it back to a Sid. The
// control plane never starts timers itself — the engine's sid.Sid has no
// string encoding a client could invent, so the embedding application
// must opt a timer into cancellability by calling this once it has
// started it via the core facade.
func (s *Server) RegisterTimer(id sid.Sid) {
	s.mu.Lock()
	s.sids[id.String()] = id
	s.mu.Unlock()
}

// UnregisterTimer drops a previously registered sid, e.g. once it has
// fired and is no longer cancellable.
func (s *Server) UnregisterTimer(id sid.Sid) {
	s.mu.Lock()
	delete(s.sids, id.String())
	s.mu.Unlock()
}

func (s *Server) lookupSid(key string) (sid.Sid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sids[key]
	return id, ok
}

// schedulerStat is one scheduler's snapshot in a stats response.
type schedulerStat struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Paused    bool   `json:"paused"`
	Scheduled int    `json:"scheduled"`
}

type statsResponse struct {
	Timestamp      time.Time       `json:"timestamp"`
	Schedulers     []schedulerStat `json:"schedulers"`
	BlockingSpawns int64           `json:"blocking_spawns"`
	BlockingHits   int64           `json:"blocking_cache_hits"`
	TimersPending  int             `json:"timers_pending"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	schedulers := s.reg.Pool.Schedulers()
	out := statsResponse{
		Timestamp:      time.Now().UTC(),
		Schedulers:     make([]schedulerStat, 0, len(schedulers)),
		BlockingSpawns: s.reg.Blocking.WorkerCount(),
		BlockingHits:   s.reg.Blocking.CacheHitCount(),
		TimersPending:  s.reg.Timer.PendingCount(),
	}
	for _, sc := range schedulers {
		out.Schedulers = append(out.Schedulers, schedulerStatOf(sc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchedulerDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")
	sc := s.reg.Pool.ByName(name)
	if sc == nil {
		http.Error(w, "scheduler not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, schedulerStatOf(sc))
}

func (s *Server) handleSchedulerPause(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")
	sc := s.reg.Pool.ByName(name)
	if sc == nil {
		http.Error(w, "scheduler not found", http.StatusNotFound)
		return
	}
	sc.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSchedulerResume(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")
	sc := s.reg.Pool.ByName(name)
	if sc == nil {
		http.Error(w, "scheduler not found", http.StatusNotFound)
		return
	}
	sc.Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTimerCancel(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sid")
	id, ok := s.lookupSid(key)
	if !ok {
		http.Error(w, "unknown timer sid", http.StatusNotFound)
		return
	}
	cancelled := s.reg.Timer.Cancel(id)
	if cancelled {
		s.UnregisterTimer(id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func schedulerStatOf(sc *scheduler.Scheduler) schedulerStat {
	return schedulerStat{
		Name:      sc.Name(),
		State:     sc.State().String(),
		Paused:    sc.Paused(),
		Scheduled: sc.ScheduledCount(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
