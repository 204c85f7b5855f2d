package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
)

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Checkpoint *service.Checkpoint
	// Session is the terminal's session handle passed to every command.
	Session session.Context
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     chi.Router
	checkpoint *service.Checkpoint
	session    session.Context
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	s := &Server{
		logger:     d.Logger,
		router:     r,
		checkpoint: d.Checkpoint,
		session:    d.Session,
	}

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleCurrentSession)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", s.handleSubmitEntry)
			r.Get("/", s.handleListEntries)
			r.Get("/{entryID}", s.handleGetEntry)
			r.Post("/{entryID}/badge", s.handleIssueBadge)
			r.Post("/{entryID}/exit", s.handleSubmitExit)
		})

		r.Route("/badges", func(r chi.Router) {
			r.Post("/", s.handleRegisterBadge)
			r.Get("/{code}", s.handleGetBadge)
			r.Post("/{code}/lost", s.handleReportLost)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Post("/{alertID}/resolve", s.handleResolveAlert)
		})
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
