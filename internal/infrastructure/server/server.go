// Package server assembles the profile API: middleware, REST handlers,
// the event stream and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/profiled/internal/api/http"
	"github.com/GriffinCanCode/profiled/internal/api/middleware"
	"github.com/GriffinCanCode/profiled/internal/api/ws"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/config"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/lifecycle"
)

// Deps are the components the server exposes
type Deps struct {
	Manager  *lifecycle.Manager
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Breaker  apihttp.BreakerStater
	Logger   *zap.Logger
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	config     *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, deps Deps) *Server {
	logger := logging.OrNop(deps.Logger).Named("server")

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware order: recovery sees panics from everything below it
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(deps.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	apihttp.NewHandlers(deps.Manager, deps.Metrics, deps.Breaker, logger).Register(router)
	if deps.Gatherer != nil {
		apihttp.NewMetricsHandlers(deps.Metrics, deps.Gatherer).Register(router)
	}
	router.GET("/ws/events", ws.NewHandler(deps.Manager, deps.Metrics, logger).HandleConnection)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
		config: cfg,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
