// Package health polls dependency checkers on a fixed interval and classifies the
// service as healthy, degraded or unhealthy.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/ports"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

var dependencyUp = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dependency_up",
		Help: "1 when the dependency passed its last health check",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(dependencyUp)
}

// Check registers a checker. A failing critical checker makes the service unhealthy,
// a failing non-critical one only degrades it.
type Check struct {
	Checker  ports.HealthChecker
	Critical bool
}

// CheckResult is the outcome of one checker in a Report.
type CheckResult struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	Critical  bool    `json:"critical"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

type Monitor struct {
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger

	mu   sync.RWMutex
	last Report

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

// NewMonitor creates a monitor; nothing runs until Start.
func NewMonitor(interval, timeout time.Duration, logger *logrus.Logger, checks ...Check) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	var kept []Check
	for _, c := range checks {
		if c.Checker != nil {
			kept = append(kept, c)
		}
	}
	return &Monitor{
		checks:   kept,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		last:     Report{Status: StatusHealthy},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one round synchronously and then polls in the background until Stop.
func (m *Monitor) Start(ctx context.Context) {
	first := false
	m.startOnce.Do(func() { first = true })
	if !first {
		return
	}
	m.RunOnce(ctx)
	m.started.Store(true)
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RunOnce(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends background polling and waits for the loop to exit. It is safe to call
// more than once and before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if !m.started.Load() {
		return
	}
	select {
	case <-m.done:
	case <-time.After(m.timeout + time.Second):
	}
}

// RunOnce checks every dependency concurrently and stores the report.
func (m *Monitor) RunOnce(ctx context.Context) Report {
	results := make([]CheckResult, len(m.checks))
	var wg sync.WaitGroup
	for i, c := range m.checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			err := c.Checker.Check(cctx)
			res := CheckResult{
				Name:      c.Checker.Name(),
				Healthy:   err == nil,
				Critical:  c.Critical,
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
		}(i, c)
	}
	wg.Wait()

	report := Report{Status: Classify(results), Checks: results, CheckedAt: time.Now().UTC()}
	for _, r := range results {
		up := 0.0
		if r.Healthy {
			up = 1
		}
		dependencyUp.WithLabelValues(r.Name).Set(up)
	}

	m.mu.Lock()
	previous := m.last.Status
	m.last = report
	m.mu.Unlock()

	if m.logger != nil && previous != report.Status {
		entry := m.logger.WithFields(logrus.Fields{"from": previous, "to": report.Status})
		for _, r := range results {
			if !r.Healthy {
				entry = entry.WithField(r.Name, r.Error)
			}
		}
		if report.Status == StatusHealthy {
			entry.Info("service health changed")
		} else {
			entry.Warn("service health changed")
		}
	}
	return report
}

// Classify derives the overall status from individual results.
func Classify(results []CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		if r.Healthy {
			continue
		}
		if r.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

// Snapshot returns the last report.
func (m *Monitor) Snapshot() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
