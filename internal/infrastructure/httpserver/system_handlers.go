package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/infrastructure/breaker"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

type cacheStatusResponse struct {
	Status      redis.Status           `json:"status"`
	Mode        redis.Mode             `json:"mode"`
	LastError   string                 `json:"last_error,omitempty"`
	Breaker     breaker.State          `json:"breaker"`
	Health      redis.HealthResult     `json:"health"`
	Encryption  encryptionStatus       `json:"encryption"`
	Namespaces  []redis.NamespaceStats `json:"namespaces"`
	LockedOut   bool                   `json:"locked_out"`
	Environment string                 `json:"environment,omitempty"`
}

type encryptionStatus struct {
	Enabled     bool   `json:"enabled"`
	ActiveKeyID string `json:"active_key_id,omitempty"`
}

func (s *Server) cacheStatus(c echo.Context) error {
	if s.cache == nil {
		return c.JSON(http.StatusOK, map[string]any{"status": redis.StatusDisabled, "mode": redis.ModeDisabled})
	}
	m := s.cache.Manager()
	status, lastErr := m.Status()
	enabled, keyID := s.cache.Encryption()
	resp := cacheStatusResponse{
		Status:      status,
		Mode:        m.Spec().Mode,
		Breaker:     s.cache.BreakerState(),
		Encryption:  encryptionStatus{Enabled: enabled, ActiveKeyID: keyID},
		Namespaces:  s.cache.Stats(),
		LockedOut:   m.LockedOut(),
		Environment: s.config.Environment,
	}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	if resp.Mode != redis.ModeDisabled {
		resp.Health = s.cache.HealthCheck(c.Request().Context())
	}
	return c.JSON(http.StatusOK, resp)
}

type invalidateRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) invalidateCache(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Tags) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "tags are required")
	}
	if s.cache == nil {
		return c.JSON(http.StatusOK, map[string]any{"invalidated": req.Tags})
	}
	if err := s.cache.InvalidateByTags(c.Request().Context(), req.Tags...); err != nil {
		if errors.Is(err, redis.ErrInvalidKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if s.logger != nil {
		s.logger.WithField("tags", req.Tags).Info("cache tags invalidated by operator")
	}
	return c.JSON(http.StatusOK, map[string]any{"invalidated": req.Tags})
}

type replicaStatusResponse struct {
	Replicas []db.ReplicaStats  `json:"replicas"`
	Breakers []breaker.Snapshot `json:"breakers"`
	Settings breaker.Settings   `json:"breaker_settings"`
}

func (s *Server) replicaStatus(c echo.Context) error {
	if s.router == nil {
		return c.JSON(http.StatusOK, replicaStatusResponse{Replicas: []db.ReplicaStats{}, Breakers: []breaker.Snapshot{}})
	}
	reg := s.router.Breakers()
	return c.JSON(http.StatusOK, replicaStatusResponse{
		Replicas: s.router.ReplicaStats(),
		Breakers: reg.Snapshots(),
		Settings: reg.Settings(),
	})
}
