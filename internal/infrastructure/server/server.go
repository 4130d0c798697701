package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/Jarvis/sandbox/internal/api/http"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/api/middleware"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/sandbox"
	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
)

// Server wraps the HTTP server and the browser session it exposes
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	session    *sandbox.Session
	tracer     *tracing.Tracer
	metrics    *monitoring.Metrics
	logger     *logging.Logger
	config     *config.Config
}

// Option customizes server construction
type Option func(*options)

type options struct {
	factory sandbox.Factory
}

// WithFactory replaces the browser driver factory
func WithFactory(f sandbox.Factory) Option {
	return func(o *options) { o.factory = f }
}

// NewServer wires the session, middleware and routes
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("Initializing sandbox server",
		zap.String("addr", cfg.Addr()),
		zap.Duration("nav_timeout", cfg.Driver.NavigationTimeout),
		zap.Bool("scripts", cfg.Driver.EnableScripts),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("sandbox", logger)

	session := sandbox.New(sandbox.Options{
		Config:  cfg.Driver,
		Factory: o.factory,
		Metrics: metrics,
		Tracer:  tracer,
		Logger:  logger,
	})
	if cfg.Driver.EagerStart {
		// a failed start leaves the session degraded; the first open_page retries
		if err := session.Start(); err != nil {
			logger.Warn("Browser did not start eagerly", zap.Error(err))
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.String("scope", cfg.RateLimit.Scope),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		if cfg.RateLimit.Scope == config.RateLimitGlobal {
			router.Use(middleware.GlobalRateLimit(rl))
		} else {
			router.Use(middleware.RateLimit(rl))
		}
	}

	apihttp.NewHandlers(session, logger).Register(router)
	if cfg.Metrics.Enabled {
		router.GET(protocol.PathMetrics, gin.WrapH(metrics.Handler()))
	}

	s := &Server{
		router:  router,
		session: session,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the compressed HTTP handler
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Session returns the browser session served by s
func (s *Server) Session() *sandbox.Session {
	return s.session
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close tears the browser session down and flushes logs
func (s *Server) Close() error {
	err := s.session.Close()
	if err != nil {
		s.logger.Error("Failed to close browser session", zap.Error(err))
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
