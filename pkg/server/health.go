package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pository/pkg/metrics"
)

func (s *Server) healthz(c echo.Context) error {
	if c.QueryParam("verbose") != "1" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	return c.JSON(http.StatusOK, metrics.Collect(s.storage))
}

func (s *Server) readyz(c echo.Context) error {
	if !s.storage.IsStorageReady() {
		return errNotReady(c)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metricsHandler(c echo.Context) error {
	if stats, err := s.storage.GetStorageStats(""); err == nil {
		s.metrics.StorageBytes.Set(float64(stats.TotalSize))
		s.metrics.PackageCount.Set(float64(stats.PackageCount))
	}
	handler := promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
