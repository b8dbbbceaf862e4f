// Package web serves the reminder submission form, health and metrics.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zuppa/internal/metrics"
	"zuppa/internal/store"
	"zuppa/pkg/logx"
)

//go:embed templates/index.html
var templatesFS embed.FS

type Config struct {
	Addr         string // default: "127.0.0.1:8080"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	cfg   Config
	log   logx.Logger
	store store.Store
	met   *metrics.Metrics
	tmpl  *template.Template

	srv *http.Server
}

func New(cfg Config, st store.Store, reg *prometheus.Registry, log logx.Logger, met *metrics.Metrics) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, log: log, store: st, met: met, tmpl: tmpl}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Post("/reminders", s.handleCreateReminder)
	r.Get("/healthz", s.handleHealthz)
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start begins serving in the background. Listen errors other than a clean
// shutdown are logged, not fatal: the scheduler keeps running without a form.
func (s *Server) Start(ctx context.Context) error {
	_ = ctx

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.log.Info("web listening", logx.String("addr", s.cfg.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web server exited", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
