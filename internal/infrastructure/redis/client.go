package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/brandhub/configs"
)

var (
	// ErrPasswordRequired is returned when a production-like environment has no cache password.
	ErrPasswordRequired = errors.New("cache password is required in production-like environments")
	// ErrAuthLockout is returned while reconnects are suspended after repeated auth failures.
	ErrAuthLockout = errors.New("cache authentication locked out after repeated failures")
	// ErrCacheDisabled is returned by Connect/Ping when no backend is configured.
	ErrCacheDisabled = errors.New("cache backend not configured")
)

// Status is the lifecycle state of the cache connection.
type Status string

const (
	StatusDisabled     Status = "disabled"
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// Mode is the topology of the configured backend.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeSingle   Mode = "single"
	ModeCluster  Mode = "cluster"
)

// ConnectionSpec is the normalised form of the cache configuration.
type ConnectionSpec struct {
	Mode  Mode
	Addrs []string
	URL   string
	DB    int
	TLS   bool
}

// ParseConnectionSpec normalises CACHE_BACKEND_URL / CACHE_CLUSTER_NODES. More than one
// node switches to cluster mode; a comma separated host:port list in the URL is treated
// the same as CACHE_CLUSTER_NODES.
func ParseConnectionSpec(cfg *config.CacheConfig) (ConnectionSpec, error) {
	if cfg == nil || !cfg.Enabled() {
		return ConnectionSpec{Mode: ModeDisabled}, nil
	}
	nodes := cfg.ClusterNodes
	if len(nodes) == 0 && !strings.Contains(cfg.URL, "://") && strings.Contains(cfg.URL, ",") {
		for _, n := range strings.Split(cfg.URL, ",") {
			if n = strings.TrimSpace(n); n != "" {
				nodes = append(nodes, n)
			}
		}
	}
	if len(nodes) > 1 {
		return ConnectionSpec{Mode: ModeCluster, Addrs: nodes, TLS: cfg.RequireTLS}, nil
	}
	if cfg.URL != "" && len(nodes) == 0 {
		if !strings.Contains(cfg.URL, "://") {
			return ConnectionSpec{Mode: ModeSingle, Addrs: []string{cfg.URL}, DB: cfg.DB, TLS: cfg.RequireTLS}, nil
		}
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return ConnectionSpec{}, fmt.Errorf("invalid CACHE_BACKEND_URL: %w", err)
		}
		return ConnectionSpec{Mode: ModeSingle, Addrs: []string{opts.Addr}, URL: cfg.URL, DB: opts.DB, TLS: cfg.RequireTLS || opts.TLSConfig != nil}, nil
	}
	return ConnectionSpec{Mode: ModeSingle, Addrs: nodes, DB: cfg.DB, TLS: cfg.RequireTLS}, nil
}

// Manager owns the shared go-redis client and tracks its health. The client itself is
// safe for concurrent use; the manager mutex only guards status bookkeeping.
type Manager struct {
	cfg    *config.CacheConfig
	spec   ConnectionSpec
	client redis.UniversalClient
	logger *logrus.Logger
	now    func() time.Time

	mu           sync.RWMutex
	status       Status
	lastErr      error
	listeners    []func(from, to Status)
	authFailures []time.Time
	lockedUntil  time.Time
}

// NewManager validates security settings and builds (but does not dial) the client.
// An unconfigured backend yields a disabled manager rather than an error.
func NewManager(cfg *config.CacheConfig, productionLike bool, logger *logrus.Logger) (*Manager, error) {
	m := &Manager{cfg: cfg, logger: logger, now: time.Now, status: StatusDisabled}
	spec, err := ParseConnectionSpec(cfg)
	if err != nil {
		return nil, err
	}
	m.spec = spec
	if spec.Mode == ModeDisabled {
		if logger != nil {
			logger.Warn("cache backend not configured; caching disabled")
		}
		return m, nil
	}
	if productionLike && cfg.Password == "" && !hasURLPassword(spec.URL) {
		return nil, ErrPasswordRequired
	}
	var tlsCfg *tls.Config
	if cfg.RequireTLS {
		if tlsCfg, err = buildTLSConfig(cfg); err != nil {
			return nil, err
		}
	}
	if m.client, err = m.buildClient(tlsCfg); err != nil {
		return nil, err
	}
	m.status = StatusDisconnected
	return m, nil
}

// NewManagerWithClient wraps an existing client; used by tests and tooling.
func NewManagerWithClient(client redis.UniversalClient, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:    &config.CacheConfig{AuthFailureLimit: 3, AuthFailureWindow: 5 * time.Minute},
		spec:   ConnectionSpec{Mode: ModeSingle},
		client: client,
		logger: logger,
		now:    time.Now,
		status: StatusDisconnected,
	}
}

func (m *Manager) buildClient(tlsCfg *tls.Config) (redis.UniversalClient, error) {
	cfg := m.cfg
	onConnect := func(ctx context.Context, cn *redis.Conn) error {
		m.markConnected()
		return nil
	}
	if m.spec.Mode == ModeCluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           m.spec.Addrs,
			Username:        cfg.Username,
			Password:        cfg.Password,
			TLSConfig:       tlsCfg,
			MaxRetries:      cfg.MaxRetries,
			MinRetryBackoff: cfg.MinRetryBackoff,
			MaxRetryBackoff: cfg.MaxRetryBackoff,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			PoolSize:        cfg.PoolSize,
			MinIdleConns:    cfg.MinIdleConns,
			OnConnect:       onConnect,
		}), nil
	}

	opts := &redis.Options{}
	if m.spec.URL != "" {
		parsed, err := redis.ParseURL(m.spec.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_BACKEND_URL: %w", err)
		}
		opts = parsed
	} else {
		opts.Addr = m.spec.Addrs[0]
		opts.DB = m.spec.DB
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if tlsCfg != nil {
		opts.TLSConfig = tlsCfg
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.OnConnect = onConnect
	return redis.NewClient(opts), nil
}

func buildTLSConfig(cfg *config.CacheConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in cache CA file %s", cfg.TLSCAFile)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cache client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func hasURLPassword(raw string) bool {
	if raw == "" {
		return false
	}
	opts, err := redis.ParseURL(raw)
	return err == nil && opts.Password != ""
}

// Connect dials the backend and waits for the first successful PING. A failure leaves
// the manager in the error state; go-redis keeps reconnecting lazily on later commands.
func (m *Manager) Connect(ctx context.Context) error {
	if m.client == nil {
		return ErrCacheDisabled
	}
	m.setStatus(StatusConnecting, nil)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := m.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to cache (%s): %w", m.spec.Mode, err)
	}
	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{"mode": m.spec.Mode, "addrs": m.spec.Addrs, "tls": m.spec.TLS}).Info("connected to cache backend")
	}
	return nil
}

// Ping round-trips to the backend and updates the status accordingly.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	if m == nil || m.client == nil {
		return 0, ErrCacheDisabled
	}
	if m.lockedOut() {
		return 0, ErrAuthLockout
	}
	start := time.Now()
	err := m.client.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		m.ReportError(err)
		return latency, err
	}
	m.resetAuthFailures()
	m.setStatus(StatusReady, nil)
	return latency, nil
}

// Client returns the shared client, or false when caching is disabled or locked out.
func (m *Manager) Client() (redis.UniversalClient, bool) {
	if m == nil || m.client == nil {
		return nil, false
	}
	if m.lockedOut() {
		return nil, false
	}
	return m.client, true
}

// ReportError classifies a command error. Auth failures feed the lockout window;
// connectivity failures move the connection into the error state.
func (m *Manager) ReportError(err error) {
	if m == nil || err == nil || errors.Is(err, redis.Nil) {
		return
	}
	if isAuthError(err) {
		m.recordAuthFailure(err)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setStatus(StatusError, err)
}

func (m *Manager) recordAuthFailure(err error) {
	now := m.now()
	window := m.cfg.AuthFailureWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	limit := m.cfg.AuthFailureLimit
	if limit <= 0 {
		limit = 3
	}

	m.mu.Lock()
	kept := m.authFailures[:0]
	for _, t := range m.authFailures {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	m.authFailures = append(kept, now)
	locked := len(m.authFailures) >= limit
	if locked {
		m.lockedUntil = now.Add(window)
	}
	m.mu.Unlock()

	m.setStatus(StatusError, err)
	if m.logger == nil {
		return
	}
	if locked {
		m.logger.WithError(err).WithField("retry_after", window).Error("cache authentication failed repeatedly; suspending cache access")
	} else {
		m.logger.WithError(err).Warn("cache authentication failed")
	}
}

func (m *Manager) lockedOut() bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockedUntil.IsZero() {
		return false
	}
	if now.Before(m.lockedUntil) {
		return true
	}
	m.lockedUntil = time.Time{}
	m.authFailures = nil
	return false
}

// LockedOut reports whether access is suspended after repeated auth failures.
func (m *Manager) LockedOut() bool { return m.lockedOut() }

func isAuthError(err error) bool {
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "NOAUTH") ||
		strings.Contains(msg, "WRONGPASS") ||
		strings.Contains(msg, "INVALID PASSWORD") ||
		strings.Contains(msg, "INVALID USERNAME-PASSWORD")
}

// resetAuthFailures clears the failure window; only consecutive failures lock out.
func (m *Manager) resetAuthFailures() {
	m.mu.Lock()
	m.authFailures = m.authFailures[:0]
	m.mu.Unlock()
}

func (m *Manager) markConnected() {
	m.resetAuthFailures()
	m.mu.RLock()
	current := m.status
	m.mu.RUnlock()
	if current == StatusReady || current == StatusConnected {
		return
	}
	m.setStatus(StatusConnected, nil)
}

func (m *Manager) setStatus(to Status, err error) {
	m.mu.Lock()
	from := m.status
	m.status = to
	m.lastErr = err
	listeners := append([]func(from, to Status){}, m.listeners...)
	m.mu.Unlock()

	if from == to {
		return
	}
	if m.logger != nil {
		entry := m.logger.WithFields(logrus.Fields{"from": from, "to": to, "mode": m.spec.Mode})
		if err != nil {
			entry.WithError(err).Warn("cache connection status changed")
		} else {
			entry.Info("cache connection status changed")
		}
	}
	for _, fn := range listeners {
		fn(from, to)
	}
}

// OnStatusChange registers a callback invoked after every status transition.
func (m *Manager) OnStatusChange(fn func(from, to Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Status returns the current status and the error that caused it, if any.
func (m *Manager) Status() (Status, error) {
	if m == nil {
		return StatusDisabled, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.lastErr
}

// Spec returns the normalised connection spec.
func (m *Manager) Spec() ConnectionSpec {
	if m == nil {
		return ConnectionSpec{Mode: ModeDisabled}
	}
	return m.spec
}

// Close releases the client.
func (m *Manager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.setStatus(StatusDisconnected, nil)
	return err
}
