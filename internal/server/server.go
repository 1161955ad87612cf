// Package server exposes the OCPI HTTP API: version discovery, the
// credentials handshake, and the receiver interfaces of the entity stores.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/config"
	"github.com/chargeweave/ocpihub/internal/observability"
	"github.com/chargeweave/ocpihub/internal/party"
	"github.com/chargeweave/ocpihub/internal/registration"
	"github.com/chargeweave/ocpihub/internal/store"
	"github.com/chargeweave/ocpihub/internal/versions"
)

// Server is the OCPI HTTP server.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server

	directory  *party.Directory
	handshake  *registration.Handshake
	negotiator *versions.Negotiator
	stores     *store.Set

	metrics       *observability.Metrics
	healthChecker *observability.HealthChecker

	shutdownOnce sync.Once
}

// New creates the server and wires up middleware and routes.
func New(cfg *config.Config, logger *zap.Logger, directory *party.Directory, handshake *registration.Handshake, negotiator *versions.Negotiator, stores *store.Set) *Server {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if directory == nil {
		panic("directory cannot be nil")
	}
	if handshake == nil {
		panic("handshake cannot be nil")
	}
	if negotiator == nil {
		panic("negotiator cannot be nil")
	}
	if stores == nil {
		panic("stores cannot be nil")
	}

	gin.SetMode(cfg.Server.GinMode)

	s := &Server{
		config:        cfg,
		logger:        logger,
		router:        gin.New(),
		directory:     directory,
		handshake:     handshake,
		negotiator:    negotiator,
		stores:        stores,
		healthChecker: initHealthChecker(directory),
	}

	if cfg.Observability.Metrics.Enabled {
		s.metrics = observability.InitMetrics()
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func initHealthChecker(directory *party.Directory) *observability.HealthChecker {
	hc := observability.NewHealthChecker("1.0.0")
	hc.RegisterHealthCheck("directory", observability.GenericHealthCheck(func(context.Context) error {
		// The directory is in-process; reaching it at all means healthy.
		_ = directory.Len()
		return nil
	}))
	return hc
}

// SetHealthChecker replaces the health checker, used to register backend
// checks after construction.
func (s *Server) SetHealthChecker(hc *observability.HealthChecker) {
	if hc != nil {
		s.healthChecker = hc
	}
}

// HealthChecker returns the server's health checker.
func (s *Server) HealthChecker() *observability.HealthChecker {
	return s.healthChecker
}

// Router returns the underlying gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery must be first to catch panics from everything below.
	s.router.Use(s.recoveryMiddleware())
	s.router.Use(s.loggingMiddleware())

	if s.config.Observability.Metrics.Enabled {
		s.router.Use(s.metricsMiddleware())
	}

	s.router.Use(s.corsMiddleware())
}

// Start runs the server until a shutdown signal or a fatal error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server",
			zap.String("address", s.httpServer.Addr),
			zap.String("mode", s.config.Server.GinMode),
		)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured timeout.
// Safe to call multiple times.
func (s *Server) Shutdown() error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown",
			zap.Duration("timeout", s.config.Server.ShutdownTimeout),
		)

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("error during shutdown", zap.Error(err))
				shutdownErr = fmt.Errorf("server shutdown failed: %w", err)
				return
			}
		}

		s.logger.Info("server shutdown complete")
	})

	return shutdownErr
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
				)
				abortServerError(c, "internal server error")
			}
		}()
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_size", c.Writer.Size()),
		)

		for _, e := range c.Errors {
			s.logger.Error("request error", zap.Error(e.Err))
		}
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		s.metrics.HTTPInFlightInc()
		defer s.metrics.HTTPInFlightDec()

		c.Next()

		s.metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			fmt.Sprintf("%d", c.Writer.Status()),
			time.Since(start),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", gin.WrapF(s.healthChecker.HealthHandler()))
	s.router.GET("/ready", gin.WrapF(s.healthChecker.ReadinessHandler()))
	s.router.GET("/live", gin.WrapF(observability.LivenessHandler()))

	if s.config.Observability.Metrics.Enabled {
		s.router.GET(s.config.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	ocpiGroup := s.router.Group(s.config.OCPI.PathPrefix)

	// Version discovery is reachable anonymously; a presented token still
	// must resolve.
	discovery := ocpiGroup.Group("", s.optionalAuth())
	discovery.GET("/versions", s.handleVersions)
	discovery.GET("/versions/:version", s.handleVersionDetails)

	versioned := ocpiGroup.Group("/"+string(implementedVersion), s.requireAuth())
	versioned.GET("/credentials", s.handleGetCredentials)
	versioned.POST("/credentials", s.handlePostCredentials)
	versioned.PUT("/credentials", s.handlePutCredentials)
	versioned.DELETE("/credentials", s.handleDeleteCredentials)

	for _, side := range []string{"cpo", "emsp"} {
		sideGroup := versioned.Group("/" + side)

		locations := sideGroup.Group("/locations")
		locations.GET("/:country_code/:party_id/:location_id", s.handleGetLocation)
		locations.PUT("/:country_code/:party_id/:location_id", s.handlePutLocation)
		locations.PATCH("/:country_code/:party_id/:location_id", s.handlePatchLocation)
		locations.GET("/:country_code/:party_id/:location_id/:evse_uid", s.handleGetEvse)
		locations.PUT("/:country_code/:party_id/:location_id/:evse_uid", s.handlePutEvse)
		locations.PATCH("/:country_code/:party_id/:location_id/:evse_uid", s.handlePatchEvse)
		locations.GET("/:country_code/:party_id/:location_id/:evse_uid/:connector_id", s.handleGetConnector)
		locations.PUT("/:country_code/:party_id/:location_id/:evse_uid/:connector_id", s.handlePutConnector)
		locations.PATCH("/:country_code/:party_id/:location_id/:evse_uid/:connector_id", s.handlePatchConnector)

		tariffs := sideGroup.Group("/tariffs")
		tariffs.GET("/:country_code/:party_id/:tariff_id", s.handleGetTariff)
		tariffs.PUT("/:country_code/:party_id/:tariff_id", s.handlePutTariff)
		tariffs.PATCH("/:country_code/:party_id/:tariff_id", s.handlePatchTariff)

		sessions := sideGroup.Group("/sessions")
		sessions.GET("/:country_code/:party_id/:session_id", s.handleGetSession)
		sessions.PUT("/:country_code/:party_id/:session_id", s.handlePutSession)
		sessions.PATCH("/:country_code/:party_id/:session_id", s.handlePatchSession)

		tokens := sideGroup.Group("/tokens")
		tokens.GET("/:country_code/:party_id/:token_uid", s.handleGetToken)
		tokens.PUT("/:country_code/:party_id/:token_uid", s.handlePutToken)
		tokens.PATCH("/:country_code/:party_id/:token_uid", s.handlePatchToken)

		cdrs := sideGroup.Group("/cdrs")
		cdrs.GET("/:cdr_id", s.handleGetCDR)
		cdrs.POST("", s.handlePostCDR)

		sideGroup.POST("/commands/:command", s.handleCommand)
	}
}
