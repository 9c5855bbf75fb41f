package redis

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations by namespace, operation and result",
		},
		[]string{"namespace", "op", "result"},
	)
	cacheOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Cache operation latency",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(cacheOperations, cacheOperationDuration)
}

// Result labels for cache_operations_total.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultOK      = "ok"
	resultSkipped = "skipped"
	resultError   = "error"
)

// NamespaceStats is the hit/miss/op tally for one key namespace.
type NamespaceStats struct {
	Namespace  string  `json:"namespace"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Operations int64   `json:"operations"`
	HitRate    float64 `json:"hit_rate"`
}

type statsBook struct {
	mu sync.Mutex
	ns map[string]*NamespaceStats
}

func newStatsBook() *statsBook {
	return &statsBook{ns: make(map[string]*NamespaceStats)}
}

func (b *statsBook) entry(namespace string) *NamespaceStats {
	e, ok := b.ns[namespace]
	if !ok {
		e = &NamespaceStats{Namespace: namespace}
		b.ns[namespace] = e
	}
	return e
}

// record tallies one operation. Hits and misses are only counted for reads the
// backend actually answered.
func (b *statsBook) record(key, op, result string, started time.Time) {
	namespace := namespaceOf(key)
	cacheOperations.WithLabelValues(namespace, op, result).Inc()
	cacheOperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())

	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(namespace)
	e.Operations++
	switch result {
	case resultHit:
		e.Hits++
	case resultMiss:
		e.Misses++
	}
}

func (b *statsBook) snapshot() []NamespaceStats {
	b.mu.Lock()
	out := make([]NamespaceStats, 0, len(b.ns))
	for _, e := range b.ns {
		s := *e
		if reads := s.Hits + s.Misses; reads > 0 {
			s.HitRate = float64(s.Hits) / float64(reads)
		}
		out = append(out, s)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}
