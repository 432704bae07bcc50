// Package api serves the control plane over HTTP: the admin JSON API on the
// control plane host, and application subdomains through the proxy.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"apphost/internal/domain/model"
	"apphost/internal/infra/http/proxy"
	"apphost/pkg/cqrs"
	"apphost/pkg/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Address  string
	Sessions *Sessions
	Users    interface {
		UserGetter
		Authenticator
	}
	Commands cqrs.CommandBus
	Queries  cqrs.QueryBus
	// Proxy handles application subdomains. Nil serves only the admin API.
	Proxy *proxy.Proxy
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// SyncEnabled is set when git hosting is managed by this process.
	SyncEnabled bool
}

type Server struct {
	echo *echo.Echo
	addr string
}

func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.Recover())
	e.Pre(requestLogger())
	if opts.Proxy != nil {
		e.Pre(dispatchSubdomains(opts.Proxy))
	}

	identify := opts.Sessions.Identify(opts.Users)
	h := &handlers{
		sessions:    opts.Sessions,
		auth:        opts.Users,
		commands:    opts.Commands,
		queries:     opts.Queries,
		syncEnabled: opts.SyncEnabled,
	}
	registerRoutes(e, h, identify)

	e.GET("/healthz", healthz)
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{echo: e, addr: opts.Address}
}

func registerRoutes(e *echo.Echo, h *handlers, identify func(*http.Request) *model.User) {
	api := e.Group("/api", loadUser(identify))
	api.POST("/session", h.login)
	api.DELETE("/session", h.logout)

	auth := api.Group("", requireSession)
	auth.GET("/session", h.me)

	admin := requireRole(model.RoleAdmin)
	deployer := requireRole(model.RoleAdmin, model.RoleDev)

	auth.GET("/apps", h.listApps)
	auth.POST("/apps", h.createApp, deployer)
	auth.GET("/apps/:folder", h.getApp, requireGrant)
	auth.DELETE("/apps/:folder", h.deleteApp, admin)
	auth.POST("/apps/:folder/redeploy", h.redeployApp, requireGrant, deployer)
	auth.GET("/apps/:folder/secrets", h.getSecrets, admin)
	auth.PUT("/apps/:folder/secrets", h.saveSecrets, admin)
	auth.PUT("/apps/:folder/access", h.restrictApp, admin)
	auth.GET("/apps/:folder/logs", h.appLog, requireGrant)

	auth.GET("/templates", h.listTemplates)
	auth.POST("/templates", h.createTemplate, admin)
	auth.DELETE("/templates/:folder", h.deleteTemplate, admin)

	auth.GET("/users", h.listUsers, admin)
	auth.POST("/users", h.createUser, admin)
	auth.PATCH("/users/:id", h.updateUser, admin)
	auth.DELETE("/users/:id", h.deleteUser, admin)
	auth.POST("/users/:id/keys", h.addKey, requireSelfOrAdmin)
	auth.DELETE("/users/:id/keys/:keyId", h.removeKey, requireSelfOrAdmin)

	auth.POST("/sync", h.sync, admin)
}

// dispatchSubdomains hands application subdomains to the proxy before
// routing.
func dispatchSubdomains(p *proxy.Proxy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := p.Match(c.Request().Host); ok {
				p.ServeHTTP(c.Response(), c.Request())
				return nil
			}
			return next(c)
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogHost:     true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"host", v.Host,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			}
			if v.Error != nil {
				log.Debug("Request failed", append(args, "error", v.Error)...)
				return nil
			}
			log.Debug("Request", args...)
			return nil
		},
	})
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "address", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return log.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return log.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}
