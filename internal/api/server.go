// Package api serves the backtest panel over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/dispersion/internal/api/handler/api"
	"github.com/newthinker/dispersion/internal/api/handler/web"
	"github.com/newthinker/dispersion/internal/metrics"
	"github.com/newthinker/dispersion/internal/panel"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the panel.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux

	// runCtx is cancelled on Shutdown so background runs stop.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	TemplatesDir string
	// MetricsPath is where the registry is exposed; empty disables it.
	MetricsPath string
}

// Dependencies holds the objects the handlers serve.
type Dependencies struct {
	Panel   *panel.Panel
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	runCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:    logger,
		mux:       mux,
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	routes, err := s.setupRoutes(cfg, deps)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics, routes...)(handler)
	}
	s.httpServer.Handler = handler

	return s, nil
}

// setupRoutes configures all HTTP routes and returns their paths.
func (s *Server) setupRoutes(cfg Config, deps Dependencies) ([]string, error) {
	webHandler, err := web.NewHandler(cfg.TemplatesDir, deps.Panel)
	if err != nil {
		return nil, fmt.Errorf("creating web handler: %w", err)
	}
	webHandler.SetRunContext(s.runCtx)
	webHandler.SetLogger(s.logger.Named("web"))

	panelAPI := apihandler.NewPanelHandler(s.runCtx, deps.Panel)

	routes := map[string]http.HandlerFunc{
		"/":          webHandler.Panel,
		"/run":       webHandler.Run,
		"/chart.png": webHandler.Chart,

		"/api/state":   panelAPI.State,
		"/api/edit":    panelAPI.Edit,
		"/api/run":     panelAPI.Run,
		"/api/weights": panelAPI.Weights,
		"/api/health":  s.handleHealth,
	}

	paths := make([]string, 0, len(routes)+1)
	for path, h := range routes {
		s.mux.HandleFunc(path, h)
		paths = append(paths, path)
	}

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle(cfg.MetricsPath, deps.Metrics.Handler())
		paths = append(paths, cfg.MetricsPath)
	}

	return paths, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and cancels any running
// backtest.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.cancelRun()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
