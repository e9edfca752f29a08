package queries

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// PolicyRepository stores policies as JSON documents with a few indexed
// columns, and thresholds as plain rows.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) UpsertPolicy(ctx context.Context, p models.ScalingPolicy) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scaling_policies (id, service, enabled, priority, document, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			service = EXCLUDED.service,
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			document = EXCLUDED.document,
			last_modified = EXCLUDED.last_modified`

	_, err = r.db.ExecContext(ctx, query, p.ID, p.Service, p.Enabled, p.Priority, string(doc), p.LastModified)
	return err
}

func (r *PolicyRepository) DeletePolicy(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scaling_policies WHERE id = $1`, id)
	return err
}

func (r *PolicyRepository) ListPolicies(ctx context.Context) ([]models.ScalingPolicy, error) {
	var docs [][]byte
	if err := r.db.SelectContext(ctx, &docs, `SELECT document FROM scaling_policies ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	policies := make([]models.ScalingPolicy, 0, len(docs))
	for _, doc := range docs {
		var p models.ScalingPolicy
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode policy document: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

type thresholdRow struct {
	Service   string  `db:"service"`
	Metric    string  `db:"metric"`
	Warning   float64 `db:"warning"`
	Critical  float64 `db:"critical"`
	Emergency float64 `db:"emergency"`
	Enabled   bool    `db:"enabled"`
}

func (r *PolicyRepository) UpsertThreshold(ctx context.Context, t models.AlertThreshold) error {
	query := `
		INSERT INTO alert_thresholds (service, metric, warning, critical, emergency, enabled)
		VALUES (:service, :metric, :warning, :critical, :emergency, :enabled)
		ON CONFLICT (service, metric) DO UPDATE SET
			warning = EXCLUDED.warning,
			critical = EXCLUDED.critical,
			emergency = EXCLUDED.emergency,
			enabled = EXCLUDED.enabled`

	_, err := r.db.NamedExecContext(ctx, query, thresholdRow{
		Service:   t.Service,
		Metric:    string(t.Metric),
		Warning:   t.Warning,
		Critical:  t.Critical,
		Emergency: t.Emergency,
		Enabled:   t.Enabled,
	})
	return err
}

func (r *PolicyRepository) ListThresholds(ctx context.Context) ([]models.AlertThreshold, error) {
	var rows []thresholdRow
	query := `SELECT service, metric, warning, critical, emergency, enabled FROM alert_thresholds ORDER BY service, metric`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}

	thresholds := make([]models.AlertThreshold, 0, len(rows))
	for _, row := range rows {
		thresholds = append(thresholds, models.AlertThreshold{
			Service:   row.Service,
			Metric:    models.MetricKind(row.Metric),
			Warning:   row.Warning,
			Critical:  row.Critical,
			Emergency: row.Emergency,
			Enabled:   row.Enabled,
		})
	}
	return thresholds, nil
}
