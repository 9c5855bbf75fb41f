// Package breaker guards calls to unreliable dependencies with one circuit breaker
// per logical operation key. Breakers are created lazily on first use and live for
// the lifetime of the Registry.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned without invoking the operation while a breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTimeout is returned when an attempt outlives its deadline. It counts as a failure.
	ErrTimeout = errors.New("operation timed out")
)

// State mirrors the gobreaker states using the names exposed on the status surface.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

// Settings configures every breaker in a Registry.
type Settings struct {
	// FailureThreshold consecutive failures trip a closed breaker.
	FailureThreshold int `json:"failure_threshold"`
	// SuccessThreshold consecutive half-open successes close the breaker again.
	SuccessThreshold int `json:"success_threshold"`
	// ResetTimeout is how long a breaker stays open before probing.
	ResetTimeout time.Duration `json:"reset_timeout"`
	// Timeout bounds each attempt.
	Timeout time.Duration `json:"timeout"`
}

// DefaultSettings returns the thresholds used when a field is left zero.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		ResetTimeout:     60 * time.Second,
		Timeout:          5 * time.Second,
	}
}

// Snapshot is the observable state of one breaker.
type Snapshot struct {
	Key             string    `json:"key"`
	State           State     `json:"state"`
	FailureCount    uint32    `json:"failure_count"`
	SuccessCount    uint32    `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitempty"`
}

type entry struct {
	cb          *gobreaker.CircuitBreaker
	lastFailure time.Time
	nextAttempt time.Time
}

// Registry owns the per-key breakers. It is safe for concurrent use; gobreaker
// serialises state transitions per breaker, the registry mutex guards the map and
// the failure timestamps.
type Registry struct {
	settings Settings
	logger   *logrus.Logger
	gauge    *prometheus.GaugeVec

	mu       sync.Mutex
	breakers map[string]*entry
}

var stateGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state per operation key (0 closed, 1 half-open, 2 open)",
	},
	[]string{"key"},
)

func init() {
	prometheus.MustRegister(stateGauge)
}

// NewRegistry creates a registry; zero fields in s fall back to DefaultSettings.
func NewRegistry(s Settings, logger *logrus.Logger) *Registry {
	d := DefaultSettings()
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = d.FailureThreshold
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = d.SuccessThreshold
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = d.ResetTimeout
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	return &Registry{settings: s, logger: logger, gauge: stateGauge, breakers: make(map[string]*entry)}
}

// Settings returns the effective settings.
func (r *Registry) Settings() Settings { return r.settings }

func (r *Registry) get(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.breakers[key]; ok {
		return e
	}
	e := &entry{}
	e.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: uint32(r.settings.SuccessThreshold),
		Timeout:     r.settings.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(r.settings.FailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || callerCancelled(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.onStateChange(name, from, to)
		},
	})
	r.breakers[key] = e
	r.gauge.WithLabelValues(key).Set(0)
	return e
}

// onStateChange runs inside gobreaker's lock; it must not call back into the breaker.
func (r *Registry) onStateChange(key string, from, to gobreaker.State) {
	r.mu.Lock()
	if e, ok := r.breakers[key]; ok {
		if to == gobreaker.StateOpen {
			e.nextAttempt = time.Now().Add(r.settings.ResetTimeout)
		} else {
			e.nextAttempt = time.Time{}
		}
	}
	r.mu.Unlock()

	r.gauge.WithLabelValues(key).Set(gaugeValue(to))
	if r.logger == nil {
		return
	}
	fields := logrus.Fields{"breaker": key, "from": from.String(), "to": to.String()}
	if to == gobreaker.StateOpen {
		r.logger.WithFields(fields).Warn("circuit breaker opened")
	} else {
		r.logger.WithFields(fields).Info("circuit breaker state changed")
	}
}

func (r *Registry) recordFailure(e *entry) {
	r.mu.Lock()
	e.lastFailure = time.Now()
	r.mu.Unlock()
}

// Run executes fn under the breaker for key, bounded by the configured timeout.
func (r *Registry) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, r, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute is the generic form of Run returning fn's result.
func Execute[T any](ctx context.Context, r *Registry, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	// a caller that already gave up says nothing about the dependency
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	e := r.get(key)
	res, err := e.cb.Execute(func() (interface{}, error) {
		return withTimeout(ctx, r.settings.Timeout, fn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, key)
		}
		if !callerCancelled(err) {
			r.recordFailure(e)
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// callerCancelled reports cancellation coming from the caller's context rather than
// from the attempt deadline, which surfaces as ErrTimeout instead.
func callerCancelled(err error) bool {
	return errors.Is(err, context.Canceled) && !errors.Is(err, ErrTimeout)
}

// withTimeout races fn against the deadline. On timeout the attempt is abandoned;
// fn sees a cancelled context and its eventual result is discarded.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, res.err)
			}
			return nil, res.err
		}
		return res.v, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

// State returns the current state for key; unknown keys are closed.
func (r *Registry) State(key string) State {
	r.mu.Lock()
	e, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return toState(e.cb.State())
}

// Snapshots reports every breaker created so far, sorted by key.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	keys := make([]string, 0, len(r.breakers))
	entries := make(map[string]*entry, len(r.breakers))
	for k, e := range r.breakers {
		keys = append(keys, k)
		entries[k] = e
	}
	r.mu.Unlock()
	sort.Strings(keys)

	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		e := entries[k]
		state := e.cb.State()
		counts := e.cb.Counts()
		r.mu.Lock()
		snap := Snapshot{
			Key:             k,
			State:           toState(state),
			FailureCount:    counts.ConsecutiveFailures,
			SuccessCount:    counts.ConsecutiveSuccesses,
			LastFailureTime: e.lastFailure,
		}
		if state == gobreaker.StateOpen {
			snap.NextAttemptTime = e.nextAttempt
		}
		r.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

func toState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func gaugeValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
