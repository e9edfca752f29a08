package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// SampleRepository keeps the long-term sample history used for capacity
// projections, beyond what the in-memory ring buffers retain.
type SampleRepository struct {
	db *sqlx.DB
}

func NewSampleRepository(db *sqlx.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

type sampleRow struct {
	Service   string    `db:"service"`
	Metric    string    `db:"metric"`
	Value     float64   `db:"value"`
	Timestamp time.Time `db:"timestamp"`
}

func (r *SampleRepository) Insert(ctx context.Context, s models.MetricSample) error {
	query := `
		INSERT INTO metric_samples (service, metric, value, timestamp)
		VALUES (:service, :metric, :value, :timestamp)
		ON CONFLICT DO NOTHING`

	_, err := r.db.NamedExecContext(ctx, query, sampleRow{
		Service:   s.Service,
		Metric:    string(s.Metric),
		Value:     s.Value,
		Timestamp: s.Timestamp,
	})
	return err
}

func (r *SampleRepository) GetRange(ctx context.Context, service string, metric models.MetricKind, from, to time.Time) ([]models.MetricSample, error) {
	query := `
		SELECT service, metric, value, timestamp
		FROM metric_samples
		WHERE service = $1 AND metric = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp`

	var rows []sampleRow
	if err := r.db.SelectContext(ctx, &rows, query, service, string(metric), from, to); err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}

	samples := make([]models.MetricSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, models.MetricSample{
			Service:   row.Service,
			Metric:    models.MetricKind(row.Metric),
			Value:     row.Value,
			Timestamp: row.Timestamp,
		})
	}
	return samples, nil
}
