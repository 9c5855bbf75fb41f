package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/avatarctic/brandhub/internal/core/ports"
	infraDB "github.com/avatarctic/brandhub/internal/infrastructure/db"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

// dbHealthChecker wraps the primary database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.DB.PingContext(ctx) }

// cacheHealthChecker probes the cache through the store so the connection
// manager's status follows the probe.
type cacheHealthChecker struct{ store *redis.Store }

func (c *cacheHealthChecker) Name() string { return "cache" }
func (c *cacheHealthChecker) Check(ctx context.Context) error {
	if c.store.Manager().Spec().Mode == redis.ModeDisabled {
		return nil
	}
	res := c.store.HealthCheck(ctx)
	if !res.Healthy {
		return errors.New(res.Error)
	}
	return nil
}

// replicaHealthChecker pings every replica; failed replicas leave rotation until a
// later check succeeds.
type replicaHealthChecker struct{ router *infraDB.Router }

func (r *replicaHealthChecker) Name() string { return "replicas" }
func (r *replicaHealthChecker) Check(ctx context.Context) error {
	var failed []string
	for name, err := range r.router.CheckHealth(ctx) {
		if err != nil {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return fmt.Errorf("replicas unreachable: %s", strings.Join(failed, ", "))
}

// NewDBHealthChecker creates a health checker for the primary database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewCacheHealthChecker creates a health checker for the cache backend.
func NewCacheHealthChecker(store *redis.Store) ports.HealthChecker {
	return &cacheHealthChecker{store: store}
}

// NewReplicaHealthChecker creates a health checker for the read replicas.
func NewReplicaHealthChecker(router *infraDB.Router) ports.HealthChecker {
	return &replicaHealthChecker{router: router}
}
