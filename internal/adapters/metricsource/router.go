package metricsource

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

type route struct {
	prefix string
	source monitoring.MetricSource
}

// Router dispatches a metric to the source registered for its longest
// matching prefix. Unmatched metrics go through the fallbacks in order and
// the first one with a sample wins.
type Router struct {
	mu        sync.RWMutex
	routes    []route
	fallbacks []monitoring.MetricSource
	logger    *logrus.Logger
}

var _ monitoring.MetricSource = (*Router)(nil)

func NewRouter(logger *logrus.Logger, fallbacks ...monitoring.MetricSource) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{fallbacks: fallbacks, logger: logger}
}

// Route sends metrics starting with prefix to source
func (r *Router) Route(prefix string, source monitoring.MetricSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, route{prefix: prefix, source: source})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].prefix) > len(r.routes[j].prefix)
	})
}

// AddFallback appends a source consulted for unrouted metrics
func (r *Router) AddFallback(source monitoring.MetricSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, source)
}

func (r *Router) GetLatestValue(ctx context.Context, metric, tenantID string, window time.Duration) (*float64, error) {
	r.mu.RLock()
	var routed monitoring.MetricSource
	for _, rt := range r.routes {
		if strings.HasPrefix(metric, rt.prefix) {
			routed = rt.source
			break
		}
	}
	fallbacks := r.fallbacks
	r.mu.RUnlock()

	if routed != nil {
		return routed.GetLatestValue(ctx, metric, tenantID, window)
	}

	var lastErr error
	for _, source := range fallbacks {
		value, err := source.GetLatestValue(ctx, metric, tenantID, window)
		if err != nil {
			r.logger.WithError(err).WithField("metric", metric).Debug("Fallback metric source failed")
			lastErr = err
			continue
		}
		if value != nil {
			return value, nil
		}
	}
	return nil, lastErr
}
