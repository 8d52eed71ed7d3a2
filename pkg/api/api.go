package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/system"
	"github.com/equitraccion/site/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	gin    *gin.Engine
	config config.Config
	log    *zap.SugaredLogger
	gate   *SessionGate
	health HealthChecker
}

// NewServer builds the engine with logging, recovery, security headers and the
// session gate installed. A nil gate is built from the session configuration.
func NewServer(log *zap.Logger, cfg config.Config,
	debug bool, gate *SessionGate,
) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
		SecurityHeaders(cfg.IsProduction()),
	)
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxy list, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:4321", "http://localhost:8080"},
				AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}),
		)
	}

	if gate == nil {
		var err error
		if gate, err = NewSessionGateFromConfig(cfg, nil, log.Sugar()); err != nil {
			// fail closed: every protected path is rejected
			log.Error("Failed to build session gate", zap.Error(err))
			gate = &SessionGate{log: log.Sugar()}
		}
	}
	engine.Use(gate.Handlers()...)

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    log.Sugar(),
		gate:   gate,
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("/api/version", s.getVersion)
	engine.NoRoute(s.noRoute(cfg.Server.StaticDir))

	return s
}

// WithHealthCheck makes /healthz report the given dependency.
func (s *Server) WithHealthCheck(h HealthChecker) *Server {
	s.health = h
	return s
}

// RegisterAll mounts the controllers below /api.
func (s *Server) RegisterAll(controllers []APIController) error {
	return s.register(s.gin.Group("api"), controllers)
}

// RegisterRoot mounts controllers serving pages and documents outside /api.
func (s *Server) RegisterRoot(controllers []APIController) error {
	return s.register(&s.gin.RouterGroup, controllers)
}

func (s *Server) register(r *gin.RouterGroup, controllers []APIController) error {
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled, then drains in-flight requests for at
// most shutdownTimeout.
func (s *Server) Listen(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
			s.log.Infow("Listening with TLS", "address", srv.Addr)
			err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			s.log.Infow("Listening", "address", srv.Addr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down HTTP server", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			system.GetReqLogger(c, s.log).Warnw("Health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}

// noRoute answers unknown API paths with JSON and everything else from the
// static directory, when one is configured.
func (s *Server) noRoute(staticDir string) gin.HandlerFunc {
	var static gin.HandlerFunc
	if staticDir != "" {
		static = ServeStatic("/", staticDir)
	}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || static == nil {
			apiresponses.RespondError(c, &apiresponses.NotFoundError{Resource: "route", ID: c.Request.URL.Path, Message: "Recurso no encontrado"}, nil)
			return
		}
		static(c)
	}
}
