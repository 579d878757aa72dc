package server

import (
	"time"

	"github.com/labstack/echo/v4"

	"pository/pkg/log"
)

// accessLogMiddleware emits one structured JSON line per request via the
// shared zerolog logger, independent of the Prometheus counters recorded
// by metricsMiddleware.
func (s *Server) accessLogMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Info().
				Str("requestId", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remoteIp", c.RealIP()).
				Msg("access")

			return err
		}
	}
}

// metricsMiddleware records request counts and latency for every route,
// labeled by the route pattern rather than the resolved path so cardinality
// stays bounded regardless of how many distinct packages exist.
func (s *Server) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			method := c.Request().Method
			status := c.Response().Status

			s.metrics.RequestsTotal.WithLabelValues(route, method, statusLabel(status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
