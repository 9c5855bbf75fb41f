package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver/helpers"
)

// MetricsMiddleware records request counts and latencies. Counts carry the resolved
// business so per-tenant traffic is visible; unscoped requests use an empty label.
type MetricsMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetricsMiddleware expects requestsTotal labelled method, endpoint, status, business
// and requestDuration labelled method, endpoint.
func NewMetricsMiddleware(requestsTotal *prometheus.CounterVec, requestDuration *prometheus.HistogramVec) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}
}

func (m *MetricsMiddleware) CollectHTTPMetrics() echo.MiddlewareFunc {
	return echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := strconv.Itoa(c.Response().Status)
			// resolved by a later middleware, readable once next returns
			businessID := ""
			if id, ok := helpers.GetBusinessIDRaw(c); ok {
				businessID = id.String()
			}

			m.requestsTotal.WithLabelValues(method, path, status, businessID).Inc()
			m.requestDuration.WithLabelValues(method, path).Observe(duration)

			return err
		}
	})
}
