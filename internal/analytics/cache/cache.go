// Package cache fronts analytics queries with a read-through result cache.
//
// Entries are keyed by the query kind and the canonical form of the filter,
// so filters that differ only in key order, list order or the order of AND/OR
// children share an entry. The cache fails open: a backend that cannot be
// read or written is logged and bypassed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/ports"
	"view-analytics-service/internal/platform/logger"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is the lifetime of every cached result.
	DefaultTTL = 15 * time.Minute

	// DefaultComputeTimeout bounds a shared computation once it no longer
	// follows any single caller's deadline.
	DefaultComputeTimeout = time.Minute

	keyPrefix = "analytics:"
)

// ErrMiss is returned by a Backend when no live entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Backend stores opaque values with a time to live.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key returns the cache key of a query kind and filter tree.
func Key(kind string, where filter.Node) (string, error) {
	canonical, err := filter.Canonical(where)
	if err != nil {
		return "", err
	}
	h := xxhash.New()
	_, _ = h.WriteString(kind)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(canonical)
	return keyPrefix + kind + ":" + strconv.FormatUint(h.Sum64(), 16), nil
}

type metrics struct {
	lookups *prometheus.CounterVec
	errors  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit or miss).",
		}, []string{"result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: "cache",
			Name:      "backend_errors_total",
			Help:      "Cache backend failures by operation.",
		}, []string{"op"}),
	}
}

// Layer implements ports.ResultCachePort over a Backend.
type Layer struct {
	backend        Backend
	computeTimeout time.Duration
	log            logger.Logger
	metrics        *metrics
	group          singleflight.Group
}

var _ ports.ResultCachePort = (*Layer)(nil)

type Option func(*layerOptions)

type layerOptions struct {
	computeTimeout time.Duration
	registerer     prometheus.Registerer
}

func WithComputeTimeout(d time.Duration) Option {
	return func(o *layerOptions) {
		if d > 0 {
			o.computeTimeout = d
		}
	}
}

// WithRegisterer registers the cache counters on reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *layerOptions) { o.registerer = reg }
}

func NewLayer(backend Backend, log logger.Logger, opts ...Option) *Layer {
	o := layerOptions{
		computeTimeout: DefaultComputeTimeout,
		registerer:     prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Layer{
		backend:        backend,
		computeTimeout: o.computeTimeout,
		log:            log.With(logger.String("component", "analytics_cache")),
		metrics:        newMetrics(o.registerer),
	}
}

// GetOrCompute returns the cached rows for kind and where, computing and
// storing them on a miss. Concurrent misses on one key share a single
// computation. Compute errors are returned and never cached.
//
// The shared computation is detached from the caller that started it, so a
// cancelled caller only abandons its own wait.
func (l *Layer) GetOrCompute(ctx context.Context, kind string, where filter.Node, compute ports.ComputeFunc) ([]domain.Row, error) {
	key, err := Key(kind, where)
	if err != nil {
		return nil, err
	}

	if rows, ok := l.get(ctx, key); ok {
		l.metrics.lookups.WithLabelValues("hit").Inc()
		return rows, nil
	}
	l.metrics.lookups.WithLabelValues("miss").Inc()

	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(shared, l.computeTimeout)
		defer cancel()

		rows, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		l.set(cctx, key, rows)
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Row), nil
	}
}

func (l *Layer) get(ctx context.Context, key string) ([]domain.Row, bool) {
	raw, err := l.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, false
	}
	if err != nil {
		l.metrics.errors.WithLabelValues("get").Inc()
		l.log.Warn("Cache read failed, computing result", logger.String("key", key), logger.Error(err))
		return nil, false
	}

	var rows []domain.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		l.metrics.errors.WithLabelValues("decode").Inc()
		l.log.Warn("Cached entry is corrupt, computing result", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows, true
}

func (l *Layer) set(ctx context.Context, key string, rows []domain.Row) {
	if rows == nil {
		rows = []domain.Row{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		l.metrics.errors.WithLabelValues("encode").Inc()
		l.log.Warn("Result not cacheable", logger.String("key", key), logger.Error(err))
		return
	}
	if err := l.backend.Set(ctx, key, raw, DefaultTTL); err != nil {
		l.metrics.errors.WithLabelValues("set").Inc()
		l.log.Warn("Cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// Nop is a Backend that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
