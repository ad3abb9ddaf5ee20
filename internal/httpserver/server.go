// Package httpserver exposes the daemon's HTTP surface: Telegram webhook
// intake fanned out to store engines, plus health, reload, and admin
// endpoints for operators.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/registry"
)

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 8080
	defaultMaxBodyBytes = 1 << 20
)

// Server routes webhook traffic to store engines and serves the admin API.
type Server struct {
	echo    *echo.Echo
	reg     *registry.Registry
	factory registry.Factory
	logger  *zap.Logger
	config  *Config
	started time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// NewServer creates a new HTTP server. The factory is used by the reload
// endpoints to rebuild store engines.
func NewServer(reg *registry.Registry, factory registry.Factory, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if factory == nil {
		return nil, fmt.Errorf("engine factory cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: defaultHost,
			Port: defaultPort,
		}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			requestDuration.WithLabelValues(c.Request().Method, c.Path()).Observe(duration.Seconds())

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		reg:     reg,
		factory: factory,
		logger:  logger,
		config:  cfg,
		started: time.Now(),
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.POST("/webhook/:slug", s.handleWebhook)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/reload", s.handleRescan)
	s.echo.POST("/reload/:slug", s.handleReload)

	admin := s.echo.Group("/admin")
	admin.GET("/stores", s.handleStores)
	admin.GET("/:slug/stats", s.handleStoreStats)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// handleWebhook dispatches one Telegram update to the addressed store's
// engine. Unknown slugs get a 404 so a misconfigured bot webhook surfaces
// immediately instead of being retried forever.
func (s *Server) handleWebhook(c echo.Context) error {
	slug := c.Param("slug")
	eng, ok := s.reg.Engine(slug)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown store %q", slug))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, s.config.MaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "update payload too large")
	}

	store := strings.ToLower(slug)
	if err := eng.HandleUpdate(c.Request().Context(), body); err != nil {
		webhooksTotal.WithLabelValues(store, "error").Inc()
		s.logger.Error("webhook update failed",
			zap.String("store", store),
			zap.Error(err),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "update processing failed")
	}

	webhooksTotal.WithLabelValues(store, "ok").Inc()
	return c.JSON(http.StatusOK, WebhookResponse{OK: true})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Stores: s.reg.Len(),
		Uptime: int64(time.Since(s.started).Seconds()),
	})
}

// handleReload reloads a single store from disk. The registry keeps the old
// state on failure, so a 409 means the previous catalog is still serving.
func (s *Server) handleReload(c echo.Context) error {
	slug := c.Param("slug")
	if err := s.reg.ReloadStore(c.Request().Context(), slug, s.factory); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	resp := ReloadResponse{Slug: strings.ToLower(slug)}
	if sc, ok := s.reg.Store(slug); ok {
		resp.Products = len(sc.Catalog())
	}
	return c.JSON(http.StatusOK, resp)
}

// handleRescan rescans the stores root, loading new stores and rebuilding
// every engine.
func (s *Server) handleRescan(c echo.Context) error {
	count, err := s.reg.LoadAll(c.Request().Context(), s.factory)
	if err != nil {
		s.logger.Error("store rescan failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "rescan failed")
	}
	return c.JSON(http.StatusOK, RescanResponse{Stores: count})
}

// handleStores lists every loaded store with its stats.
func (s *Server) handleStores(c echo.Context) error {
	slugs := s.reg.Slugs()
	stores := make([]StoreStats, 0, len(slugs))
	for _, slug := range slugs {
		if st, ok := s.storeStats(slug); ok {
			stores = append(stores, st)
		}
	}
	return c.JSON(http.StatusOK, StoresResponse{Stores: stores})
}

// handleStoreStats returns stats for a single store.
func (s *Server) handleStoreStats(c echo.Context) error {
	slug := c.Param("slug")
	st, ok := s.storeStats(slug)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown store %q", slug))
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) storeStats(slug string) (StoreStats, bool) {
	// One snapshot for both, so a reload landing mid-request cannot pair
	// a fresh context with the engine it replaced.
	sc, eng, ok := s.reg.Lookup(slug)
	if !ok {
		return StoreStats{}, false
	}
	st := StoreStats{
		Slug:      sc.Slug(),
		StoreName: sc.Config().StoreName,
		Products:  len(sc.Catalog()),
	}
	if adm, ok := eng.(adminEngine); ok {
		st.Categories = adm.Categories()
		st.IndexSize = adm.IndexSize()
		counters := adm.Stats()
		st.Counters = &counters
	}
	return st, true
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server, draining in-flight webhooks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
