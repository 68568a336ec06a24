// Package routes assembles the HTTP API
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/entity"
	"github.com/Ramsey-B/fern/pkg/routes/folder"
	"github.com/Ramsey-B/fern/pkg/routes/health"
)

type Options struct {
	// ContainerID is the dependency container handlers resolve services from
	ContainerID string
	Logger      ectologger.Logger
	Health      *health.Checker
	// ServiceName enables otel tracing of requests when set
	ServiceName   string
	ExposeMetrics bool
	AllowOrigins  []string
	AllowMethods  []string
}

// New builds the echo instance with middleware and every route registered.
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(opts.Logger)

	e.Use(echomiddleware.Recover())
	if len(opts.AllowOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: opts.AllowMethods,
		}))
	}
	if opts.ServiceName != "" {
		e.Use(otelecho.Middleware(opts.ServiceName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Container(opts.ContainerID))
	e.Use(middleware.Logger(opts.Logger))

	if opts.Health != nil {
		opts.Health.RegisterRoutes(e)
	}
	if opts.ExposeMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api/v1")
	entity.Register(api.Group("/entities"))
	entity.RegisterMerges(api.Group("/merges"))
	folder.Register(api.Group("/folders"))

	return e
}
