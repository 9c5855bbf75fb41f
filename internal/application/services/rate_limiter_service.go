package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/ports"
)

// RateLimiterService is a fixed-window limiter with a per-business limit and a
// shared burst multiplier.
type RateLimiterService struct {
	repo            ports.RateLimitRepository
	businessRepo    ports.BusinessRepository
	defaultLimit    int
	burstMultiplier float64
	window          time.Duration
	keyPrefix       string
	logger          *logrus.Logger
}

// RateLimiterConfig groups configuration parameters for the rate limiter.
type RateLimiterConfig struct {
	DefaultRequestsPerMinute int
	BurstMultiplier          float64
	Window                   time.Duration
	KeyPrefix                string
}

func NewRateLimiterService(repo ports.RateLimitRepository, businessRepo ports.BusinessRepository, cfg *RateLimiterConfig, logger *logrus.Logger) *RateLimiterService {
	dl := 120
	bm := 2.0
	w := time.Minute
	kp := "app:ratelimit"
	if cfg != nil {
		if cfg.DefaultRequestsPerMinute > 0 {
			dl = cfg.DefaultRequestsPerMinute
		}
		if cfg.BurstMultiplier > 0 {
			bm = cfg.BurstMultiplier
		}
		if cfg.Window > 0 {
			w = cfg.Window
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &RateLimiterService{repo: repo, businessRepo: businessRepo, defaultLimit: dl, burstMultiplier: bm, window: w, keyPrefix: kp, logger: logger}
}

// Allow fails open: when the counter store errors or is unreachable the request is
// allowed with the full burst remaining.
func (s *RateLimiterService) Allow(ctx context.Context, businessID uuid.UUID) (bool, int, int, time.Time, error) {
	limit := s.defaultLimit
	if s.businessRepo != nil {
		if b, err := s.businessRepo.GetByID(ctx, businessID); err == nil && b != nil {
			if b.Settings.Limits.RequestsPerMinute > 0 {
				limit = b.Settings.Limits.RequestsPerMinute
			}
		}
	}
	ttl := s.window * 2
	count, windowStart, err := s.repo.IncrementWindow(ctx, businessID, s.window, s.keyPrefix, ttl)
	reset := windowStart.Add(s.window)
	burst := int(float64(limit) * s.burstMultiplier)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"business_id": businessID}).WithError(err).Error("rate limiter: failed to increment window")
		}
		return true, burst, limit, reset, err
	}
	if count == 0 {
		if s.logger != nil {
			s.logger.WithField("business_id", businessID).Debug("rate limiter: counter store unavailable, allowing")
		}
		return true, burst, limit, reset, nil
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"business_id": businessID, "count": count, "burst": burst, "limit": limit}).Debug("rate limiter window state")
	}
	if count > burst {
		return false, 0, limit, reset, nil
	}
	return true, burst - count, limit, reset, nil
}
