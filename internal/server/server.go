// Package server exposes swing analysis over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
)

const metricsPath = "/metrics"

// Analyzer runs the pipeline on an uploaded video
type Analyzer interface {
	ProcessReader(ctx context.Context, r io.Reader, filename, club string, onProgress pose.ProgressFunc) (storage.Record, error)
}

// Searcher finds swings with similar metrics
type Searcher interface {
	SearchSimilar(ctx context.Context, query []float32, exclude uuid.UUID, limit int) ([]storage.SearchResult, error)
}

// Config holds the server settings
type Config struct {
	Listen      string
	MaxUploadMB int
	RecentTTL   time.Duration

	// overlay image size in CSS pixels and device pixel ratio
	OverlayWidth  int
	OverlayHeight int
	OverlayScale  float64
}

// Server is the HTTP API
type Server struct {
	Echo *echo.Echo

	config   Config
	analyzer Analyzer
	finder   storage.Finder
	searcher Searcher
	gatherer prometheus.Gatherer
	recent   *cache.Cache
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithSearcher enables the similar swings endpoint
func WithSearcher(s Searcher) Option {
	return func(srv *Server) { srv.searcher = s }
}

// WithGatherer serves metrics from g instead of the default registry
func WithGatherer(g prometheus.Gatherer) Option {
	return func(srv *Server) { srv.gatherer = g }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.logger = logging.OrDiscard(l) }
}

// New creates the server and registers its routes
func New(config Config, analyzer Analyzer, finder storage.Finder, opts ...Option) *Server {
	if config.RecentTTL <= 0 {
		config.RecentTTL = 30 * time.Minute
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 200
	}

	s := &Server{
		Echo:     echo.New(),
		config:   config,
		analyzer: analyzer,
		finder:   finder,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recent = cache.New(config.RecentTTL, 2*config.RecentTTL)

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.configureMiddleware()
	s.initRoutes()
	return s
}

func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
}

func (s *Server) initRoutes() {
	s.Echo.GET("/healthz", s.health)
	s.Echo.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.Echo.Group("/api/v1")
	api.POST("/swings", s.uploadSwing, middleware.BodyLimit(fmt.Sprintf("%dM", s.config.MaxUploadMB)))
	api.GET("/swings/:id", s.getSwing)
	api.GET("/swings/:id/overlay.png", s.getOverlay)
	api.GET("/swings/:id/similar", s.getSimilar)
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("http server listening", "address", s.config.Listen)
	if err := s.Echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
