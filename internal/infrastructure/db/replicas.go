package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/configs"
	"github.com/avatarctic/brandhub/internal/infrastructure/breaker"
)

// ErrNoReplicaAvailable is returned when neither a healthy replica nor the primary can serve a read.
var ErrNoReplicaAvailable = errors.New("no replica available")

const primaryBreakerKey = "db:primary"

// ReplicaStatus is the connection state of one replica.
type ReplicaStatus string

const (
	ReplicaConnected    ReplicaStatus = "connected"
	ReplicaConnecting   ReplicaStatus = "connecting"
	ReplicaDisconnected ReplicaStatus = "disconnected"
	ReplicaError        ReplicaStatus = "error"
)

var (
	replicaQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_queries_total",
			Help: "Read queries by target and outcome",
		},
		[]string{"replica", "outcome"},
	)
	replicaQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replica_query_duration_seconds",
			Help:    "Read query latency by target",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"replica"},
	)
)

func init() {
	prometheus.MustRegister(replicaQueries, replicaQueryDuration)
}

// Replica is one named read-only database handle with rolling statistics.
type Replica struct {
	Name           string
	Weight         int
	ReadPreference string
	DB             *sqlx.DB

	mu          sync.Mutex
	status      ReplicaStatus
	queryCount  int64
	errorCount  int
	avgMs       float64
	lastError   string
	lastChecked time.Time
}

// NewReplica wraps an opened handle. Weight is clamped to 1..10.
func NewReplica(name string, handle *sqlx.DB, weight int, readPreference string) *Replica {
	if weight < 1 {
		weight = 1
	}
	if weight > 10 {
		weight = 10
	}
	return &Replica{Name: name, Weight: weight, ReadPreference: readPreference, DB: handle, status: ReplicaConnected}
}

func (r *Replica) healthy(maxErrors int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == ReplicaConnected && r.errorCount < maxErrors
}

// record folds one attempt into the cumulative average and error count.
func (r *Replica) record(elapsed time.Duration, err error) {
	ms := float64(elapsed.Microseconds()) / 1000
	r.mu.Lock()
	r.queryCount++
	r.avgMs += (ms - r.avgMs) / float64(r.queryCount)
	if err != nil {
		r.errorCount++
		r.lastError = err.Error()
	}
	r.mu.Unlock()
}

func (r *Replica) setStatus(s ReplicaStatus, err error) {
	r.mu.Lock()
	r.status = s
	r.lastChecked = time.Now()
	if err != nil {
		r.lastError = err.Error()
	} else {
		r.errorCount = 0
		r.lastError = ""
	}
	r.mu.Unlock()
}

// ReplicaStats is the observable state of one replica.
type ReplicaStats struct {
	Name              string        `json:"name"`
	Weight            int           `json:"weight"`
	ReadPreference    string        `json:"read_preference"`
	Status            ReplicaStatus `json:"status"`
	Healthy           bool          `json:"healthy"`
	QueryCount        int64         `json:"query_count"`
	AvgResponseTimeMs float64       `json:"avg_response_time_ms"`
	ErrorCount        int           `json:"error_count"`
	LastError         string        `json:"last_error,omitempty"`
	LastChecked       time.Time     `json:"last_checked,omitempty"`
	Breaker           breaker.State `json:"breaker"`
}

// RouterOptions tunes query routing; zero values select defaults.
type RouterOptions struct {
	QueryTimeout time.Duration
	Retries      int
	MaxErrors    int
	// Rand drives weighted selection; tests inject a seeded source.
	Rand *rand.Rand
}

// QueryOptions steer a single ExecuteQuery call.
type QueryOptions struct {
	// Replica names a preferred replica, used when healthy.
	Replica string
	// Primary skips replicas entirely, for read-your-writes paths.
	Primary bool
	// Timeout overrides the router's per-attempt timeout.
	Timeout time.Duration
	// Retries is the retry budget for this call. Zero uses the router's budget; a
	// negative value sends the first failure straight to the primary.
	Retries int
}

// Router spreads reads over weighted replicas and falls back to the primary.
type Router struct {
	primary  *sqlx.DB
	replicas []*Replica
	breakers *breaker.Registry
	opts     RouterOptions
	logger   *logrus.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewRouter builds a router. primary may be nil only in tests.
func NewRouter(primary *sqlx.DB, replicas []*Replica, breakers *breaker.Registry, opts RouterOptions, logger *logrus.Logger) *Router {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 10
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if breakers == nil {
		breakers = breaker.NewRegistry(breaker.Settings{Timeout: opts.QueryTimeout}, logger)
	}
	return &Router{primary: primary, replicas: replicas, breakers: breakers, opts: opts, logger: logger, rnd: rnd}
}

// OpenReplicas opens one pool per configured replica using the primary's pool
// settings and pings it once. A replica that cannot be reached is kept in the error
// state so a later health check can bring it back.
func OpenReplicas(ctx context.Context, nodes []configs.ReplicaConfig, pool *configs.DatabaseConfig, logger *logrus.Logger) ([]*Replica, error) {
	replicas := make([]*Replica, 0, len(nodes))
	for _, n := range nodes {
		handle, err := open(n.DSN, pool)
		if err != nil {
			for _, r := range replicas {
				_ = r.DB.Close()
			}
			return nil, fmt.Errorf("replica %s: %w", n.Name, err)
		}
		rep := NewReplica(n.Name, handle, n.Weight, n.ReadPreference)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := handle.PingContext(pctx); err != nil {
			rep.setStatus(ReplicaError, err)
			if logger != nil {
				logger.WithError(err).WithField("replica", n.Name).Warn("replica unreachable at startup")
			}
		} else {
			rep.setStatus(ReplicaConnected, nil)
		}
		cancel()
		replicas = append(replicas, rep)
	}
	return replicas, nil
}

// SelectReplica returns the named replica when it is healthy, otherwise a weighted
// random pick among healthy replicas.
func (r *Router) SelectReplica(opts QueryOptions) (*Replica, error) {
	return r.selectReplica(opts.Replica, nil)
}

// available reports whether rep may take a query: healthy, and its breaker not open.
func (r *Router) available(rep *Replica) bool {
	return rep.healthy(r.opts.MaxErrors) && r.breakers.State(replicaBreakerKey(rep.Name)) != breaker.StateOpen
}

func replicaBreakerKey(name string) string { return "replica:" + name }

func (r *Router) selectReplica(preferred string, exclude map[string]bool) (*Replica, error) {
	if preferred != "" && !exclude[preferred] {
		for _, rep := range r.replicas {
			if rep.Name == preferred && r.available(rep) {
				return rep, nil
			}
		}
	}
	candidates := make([]*Replica, 0, len(r.replicas))
	total := 0
	for _, rep := range r.replicas {
		if exclude[rep.Name] || !r.available(rep) {
			continue
		}
		candidates = append(candidates, rep)
		total += rep.Weight
	}
	if len(candidates) == 0 {
		return nil, ErrNoReplicaAvailable
	}
	r.rndMu.Lock()
	pick := r.rnd.Intn(total)
	r.rndMu.Unlock()
	for _, rep := range candidates {
		pick -= rep.Weight
		if pick < 0 {
			return rep, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

// ExecuteQuery runs fn against a replica. A failed attempt is retried on a different
// replica while the retry budget lasts, after which the primary serves the read.
// sql.ErrNoRows is a result, not a failure, and is returned as is.
func ExecuteQuery[T any](ctx context.Context, r *Router, fn func(ctx context.Context, db *sqlx.DB) (T, error), opts QueryOptions) (T, error) {
	var zero T
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.opts.QueryTimeout
	}

	retries := r.opts.Retries
	switch {
	case opts.Retries > 0:
		retries = opts.Retries
	case opts.Retries < 0:
		retries = 0
	}

	var lastErr error
	if !opts.Primary {
		tried := make(map[string]bool)
		for attempt := 0; attempt <= retries; attempt++ {
			rep, err := r.selectReplica(opts.Replica, tried)
			if err != nil {
				break
			}
			tried[rep.Name] = true
			v, err := attemptOn(ctx, r, replicaBreakerKey(rep.Name), rep.Name, rep.DB, timeout, fn, rep)
			if err == nil || errors.Is(err, sql.ErrNoRows) {
				return v, err
			}
			lastErr = err
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			if r.logger != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{"replica": rep.Name, "attempt": attempt + 1}).Warn("replica query failed")
			}
		}
	}

	if r.primary == nil {
		if lastErr != nil {
			return zero, fmt.Errorf("%w: %v", ErrNoReplicaAvailable, lastErr)
		}
		return zero, ErrNoReplicaAvailable
	}
	v, err := attemptOn(ctx, r, primaryBreakerKey, "primary", r.primary, timeout, fn, nil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && lastErr != nil {
		return zero, fmt.Errorf("primary fallback failed: %w (last replica error: %v)", err, lastErr)
	}
	return v, err
}

func attemptOn[T any](ctx context.Context, r *Router, key, label string, handle *sqlx.DB, timeout time.Duration, fn func(ctx context.Context, db *sqlx.DB) (T, error), rep *Replica) (T, error) {
	var passthrough error
	start := time.Now()
	v, err := breaker.Execute(ctx, r.breakers, key, func(ctx context.Context) (T, error) {
		qctx, cancel := context.WithTimeout(context.WithValue(ctx, targetKey{}, label), timeout)
		defer cancel()
		v, err := fn(qctx, handle)
		if errors.Is(err, sql.ErrNoRows) {
			passthrough = err
			return v, nil
		}
		return v, err
	})
	elapsed := time.Since(start)
	if errors.Is(err, breaker.ErrCircuitOpen) {
		replicaQueries.WithLabelValues(label, "circuit_open").Inc()
		return v, err
	}
	if rep != nil {
		rep.record(elapsed, err)
	}
	replicaQueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		replicaQueries.WithLabelValues(label, "error").Inc()
		return v, err
	}
	replicaQueries.WithLabelValues(label, "ok").Inc()
	return v, passthrough
}

type targetKey struct{}

// Target names the connection serving the query running under ctx: a replica name
// or "primary". It is empty outside ExecuteQuery.
func Target(ctx context.Context) string {
	name, _ := ctx.Value(targetKey{}).(string)
	return name
}

// CheckHealth pings every replica. A successful ping marks the replica connected and
// clears its error count; a failed one takes it out of rotation. The returned map
// holds the ping error per replica name, nil for healthy replicas.
func (r *Router) CheckHealth(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.replicas))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, rep := range r.replicas {
		wg.Add(1)
		go func(rep *Replica) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
			defer cancel()
			err := rep.DB.PingContext(pctx)
			if err != nil {
				rep.setStatus(ReplicaError, err)
				if r.logger != nil {
					r.logger.WithError(err).WithField("replica", rep.Name).Warn("replica health check failed")
				}
			} else {
				rep.setStatus(ReplicaConnected, nil)
			}
			mu.Lock()
			out[rep.Name] = err
			mu.Unlock()
		}(rep)
	}
	wg.Wait()
	return out
}

// ReplicaStats reports every replica in configuration order.
func (r *Router) ReplicaStats() []ReplicaStats {
	out := make([]ReplicaStats, 0, len(r.replicas))
	for _, rep := range r.replicas {
		healthy := rep.healthy(r.opts.MaxErrors)
		rep.mu.Lock()
		out = append(out, ReplicaStats{
			Name:              rep.Name,
			Weight:            rep.Weight,
			ReadPreference:    rep.ReadPreference,
			Status:            rep.status,
			Healthy:           healthy,
			QueryCount:        rep.queryCount,
			AvgResponseTimeMs: rep.avgMs,
			ErrorCount:        rep.errorCount,
			LastError:         rep.lastError,
			LastChecked:       rep.lastChecked,
		})
		rep.mu.Unlock()
		out[len(out)-1].Breaker = r.breakers.State(replicaBreakerKey(rep.Name))
	}
	return out
}

// Breakers exposes the registry for status reporting.
func (r *Router) Breakers() *breaker.Registry { return r.breakers }

// Primary returns the write handle.
func (r *Router) Primary() *sqlx.DB { return r.primary }

// Close closes every replica pool. The primary belongs to Database.
func (r *Router) Close() error {
	var errs []error
	for _, rep := range r.replicas {
		if err := rep.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica %s: %w", rep.Name, err))
		}
		rep.setStatus(ReplicaDisconnected, nil)
	}
	return errors.Join(errs...)
}
