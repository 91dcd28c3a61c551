package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/middleware/auth"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
	"go.uber.org/zap"
)

// Routes registers handlers on e. Operator routes add requireAdmin.
type Routes func(e *echo.Echo, requireAdmin echo.MiddlewareFunc)

type Server struct {
	service string
	config  config.HTTPConfig
	logger  *zap.Logger
	echo    *echo.Echo
}

func NewServer(service string, cfg config.HTTPConfig, jwt config.JWTConfig, log *zap.Logger, routes Routes) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	logger.WithEchoLogger(e, log)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(metrics.Middleware())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{echo.GET, echo.POST},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}

	s := &Server{
		service: service,
		config:  cfg,
		logger:  log,
		echo:    e,
	}
	s.setupRoutes(jwt, routes)
	return s
}

func (s *Server) setupRoutes(jwt config.JWTConfig, routes Routes) {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.service,
		})
	})
	s.echo.GET("/metrics", metrics.Handler())

	requireAdmin := auth.JWTMiddleware(auth.JWTConfig{
		Secret:    jwt.Secret,
		AdminRole: jwt.AdminRole,
		Logger:    s.logger,
	})
	routes(s.echo, requireAdmin)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
