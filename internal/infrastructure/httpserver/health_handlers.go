package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/infrastructure/health"
)

// healthCheck serves the monitor's last report. Degraded still answers 200 so load
// balancers keep routing while the cache or a replica is down.
func (s *Server) healthCheck(c echo.Context) error {
	report := health.Report{Status: health.StatusHealthy, CheckedAt: time.Now().UTC()}
	if s.monitor != nil {
		report = s.monitor.Snapshot()
	}
	body := map[string]any{
		"status":    report.Status,
		"timestamp": report.CheckedAt.Format(time.RFC3339),
		"service":   "brandhub",
		"checks":    report.Checks,
	}
	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, body)
}
