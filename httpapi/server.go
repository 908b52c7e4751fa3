package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentshim/logging"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Logger logging.Logger
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
}

// NewServer returns an echo server with the agent routes, panic recovery
// and request logging.
func NewServer(agent Agent, optFns ...func(o *ServerOptions)) *echo.Echo {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				opts.Logger.Warn("http request failed", append(args, "error", v.Error)...)
				return nil
			}
			opts.Logger.Debug("http request", args...)
			return nil
		},
	}))

	NewHandler(agent).RegisterRoutes(e)

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return e
}
