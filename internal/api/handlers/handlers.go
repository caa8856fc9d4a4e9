package handlers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/core/metrics"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/internal/database/models"
	"github.com/frostdev-ops/alert-engine/internal/websocket"
)

// SampleStore accepts pushed metric samples
type SampleStore interface {
	RecordSample(ctx context.Context, metric, tenantID string, value float64, at time.Time) error
	ListSamples(ctx context.Context, metric, tenantID string, limit int) ([]*models.MetricSample, error)
}

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	manager *monitoring.AlertManager
	samples SampleStore
	health  *metrics.HealthChecker
	wsHub   *websocket.Hub
	log     *logrus.Logger
}

// NewHandlers creates a new handlers instance. samples, health and wsHub
// may be nil; their endpoints then answer 503.
func NewHandlers(manager *monitoring.AlertManager, samples SampleStore, health *metrics.HealthChecker, wsHub *websocket.Hub, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handlers{
		manager: manager,
		samples: samples,
		health:  health,
		wsHub:   wsHub,
		log:     logger,
	}
}
