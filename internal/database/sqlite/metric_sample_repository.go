package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/internal/database/models"
)

// MetricSampleRepository stores pushed metric samples and serves them back
// as a metric source
type MetricSampleRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
	now func() time.Time
}

var _ monitoring.MetricSource = (*MetricSampleRepository)(nil)

func NewMetricSampleRepository(db *sqlx.DB, log *logrus.Logger) *MetricSampleRepository {
	return &MetricSampleRepository{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// SetClock overrides the time source used for lookback windows
func (r *MetricSampleRepository) SetClock(clock monitoring.Clock) {
	r.now = clock.Now
}

// RecordSample stores one value. A zero at is replaced with the current time.
func (r *MetricSampleRepository) RecordSample(ctx context.Context, metric, tenantID string, value float64, at time.Time) error {
	if metric == "" {
		return fmt.Errorf("metric name is required")
	}
	if at.IsZero() {
		at = r.now()
	}

	query := `INSERT INTO metric_samples (metric, tenant_id, value, recorded_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, metric, tenantID, value, at.UnixNano()); err != nil {
		r.log.WithError(err).WithField("metric", metric).Error("Failed to record metric sample")
		return fmt.Errorf("failed to record metric sample: %w", err)
	}
	return nil
}

// GetLatestValue returns the newest sample recorded within window, or nil
func (r *MetricSampleRepository) GetLatestValue(ctx context.Context, metric, tenantID string, window time.Duration) (*float64, error) {
	query := `SELECT value FROM metric_samples
			  WHERE metric = ? AND tenant_id = ? AND recorded_at >= ?
			  ORDER BY recorded_at DESC, id DESC LIMIT 1`

	since := r.now().Add(-window).UnixNano()

	var value float64
	if err := r.db.GetContext(ctx, &value, query, metric, tenantID, since); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.log.WithError(err).WithField("metric", metric).Error("Failed to get latest metric value")
		return nil, fmt.Errorf("failed to get latest metric value: %w", err)
	}
	return &value, nil
}

// ListSamples returns the newest samples of a metric, newest first
func (r *MetricSampleRepository) ListSamples(ctx context.Context, metric, tenantID string, limit int) ([]*models.MetricSample, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, metric, tenant_id, value, recorded_at FROM metric_samples
			  WHERE metric = ? AND tenant_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`

	var samples []*models.MetricSample
	if err := r.db.SelectContext(ctx, &samples, query, metric, tenantID, limit); err != nil {
		r.log.WithError(err).WithField("metric", metric).Error("Failed to list metric samples")
		return nil, fmt.Errorf("failed to list metric samples: %w", err)
	}
	return samples, nil
}

// PurgeBefore deletes samples recorded before cutoff
func (r *MetricSampleRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE recorded_at < ?`, cutoff.UnixNano())
	if err != nil {
		r.log.WithError(err).Error("Failed to purge metric samples")
		return 0, fmt.Errorf("failed to purge metric samples: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return purged, nil
}
