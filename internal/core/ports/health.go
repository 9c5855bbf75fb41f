package ports

import "context"

// HealthChecker probes one dependency, such as the primary database or the cache
// backend. Check returns nil while the dependency answers; Name labels the result
// in the health report and the dependency_up gauge.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
