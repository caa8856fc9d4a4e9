package metricsource

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// PrometheusSource reads the newest sample of a series from a Prometheus
// server. Dots in metric names map to underscores.
type PrometheusSource struct {
	api         v1.API
	tenantLabel string
	timeout     time.Duration
	logger      *logrus.Logger
}

var _ monitoring.MetricSource = (*PrometheusSource)(nil)

func NewPrometheusSource(cfg config.PrometheusSourceConfig, logger *logrus.Logger) (*PrometheusSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prometheus url is required")
	}

	client, err := api.NewClient(api.Config{
		Address: cfg.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PrometheusSource{
		api:         v1.NewAPI(client),
		tenantLabel: cfg.TenantLabel,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Query builds the PromQL expression used for a lookup. Multiple matching
// series collapse to their maximum.
func (s *PrometheusSource) Query(metric, tenantID string, window time.Duration) string {
	selector := strings.ReplaceAll(metric, ".", "_")
	if tenantID != "" && s.tenantLabel != "" {
		selector = fmt.Sprintf("%s{%s=%q}", selector, s.tenantLabel, tenantID)
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return fmt.Sprintf("max(last_over_time(%s[%s]))", selector, model.Duration(window))
}

func (s *PrometheusSource) GetLatestValue(ctx context.Context, metric, tenantID string, window time.Duration) (*float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := s.Query(metric, tenantID, window)
	result, warnings, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("prometheus query %q failed: %w", query, err)
	}
	if len(warnings) > 0 {
		s.logger.WithFields(logrus.Fields{
			"query":    query,
			"warnings": warnings,
		}).Warn("Prometheus query returned warnings")
	}

	var value float64
	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return nil, nil
		}
		value = float64(v[0].Value)
	case *model.Scalar:
		value = float64(v.Value)
	default:
		return nil, fmt.Errorf("unexpected prometheus result type %s", result.Type())
	}

	if math.IsNaN(value) {
		return nil, nil
	}
	return &value, nil
}
