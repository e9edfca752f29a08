package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

type alertRow struct {
	ID             string     `db:"id"`
	Level          string     `db:"level"`
	Service        string     `db:"service"`
	Title          string     `db:"title"`
	Message        string     `db:"message"`
	Timestamp      time.Time  `db:"timestamp"`
	Acknowledged   bool       `db:"acknowledged"`
	AcknowledgedBy string     `db:"acknowledged_by"`
	AcknowledgedAt *time.Time `db:"acknowledged_at"`
	Escalated      bool       `db:"escalated"`
	EscalatedTo    []byte     `db:"escalated_to"`
	Resolved       bool       `db:"resolved"`
	ResolvedAt     *time.Time `db:"resolved_at"`
	Metadata       []byte     `db:"metadata"`
	Version        int64      `db:"version"`
}

// Upsert stores the latest state of an alert. Older versions never
// overwrite newer ones.
func (r *AlertRepository) Upsert(ctx context.Context, alert *models.ScalingAlert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return err
	}
	var escalatedTo *string
	if len(alert.EscalatedTo) > 0 {
		raw, err := json.Marshal(alert.EscalatedTo)
		if err != nil {
			return err
		}
		doc := string(raw)
		escalatedTo = &doc
	}

	query := `
		INSERT INTO scaling_alerts
			(id, level, service, title, message, timestamp, acknowledged, acknowledged_by,
			 acknowledged_at, escalated, escalated_to, resolved, resolved_at, metadata, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			acknowledged = EXCLUDED.acknowledged,
			acknowledged_by = EXCLUDED.acknowledged_by,
			acknowledged_at = EXCLUDED.acknowledged_at,
			escalated = EXCLUDED.escalated,
			escalated_to = EXCLUDED.escalated_to,
			resolved = EXCLUDED.resolved,
			resolved_at = EXCLUDED.resolved_at,
			version = EXCLUDED.version
		WHERE scaling_alerts.version < EXCLUDED.version`

	_, err = r.db.ExecContext(ctx, query,
		alert.ID,
		alert.Level.String(),
		alert.Service,
		alert.Title,
		alert.Message,
		alert.Timestamp,
		alert.Acknowledged,
		alert.AcknowledgedBy,
		alert.AcknowledgedAt,
		alert.Escalated,
		escalatedTo,
		alert.Resolved,
		alert.ResolvedAt,
		string(metadata),
		int64(alert.Version),
	)
	return err
}

func (r *AlertRepository) GetOpen(ctx context.Context) ([]models.ScalingAlert, error) {
	query := `
		SELECT id, level, service, title, message, timestamp, acknowledged, acknowledged_by,
			   acknowledged_at, escalated, escalated_to, resolved, resolved_at, metadata, version
		FROM scaling_alerts
		WHERE resolved = FALSE
		ORDER BY timestamp`

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get open alerts: %w", err)
	}

	alerts := make([]models.ScalingAlert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (r alertRow) toModel() (models.ScalingAlert, error) {
	level, err := models.ParseSeverity(r.Level)
	if err != nil {
		return models.ScalingAlert{}, err
	}
	a := models.ScalingAlert{
		ID:             r.ID,
		Level:          level,
		Service:        r.Service,
		Title:          r.Title,
		Message:        r.Message,
		Timestamp:      r.Timestamp,
		Acknowledged:   r.Acknowledged,
		AcknowledgedBy: r.AcknowledgedBy,
		AcknowledgedAt: r.AcknowledgedAt,
		Escalated:      r.Escalated,
		Resolved:       r.Resolved,
		ResolvedAt:     r.ResolvedAt,
		Version:        uint64(r.Version),
	}
	if len(r.EscalatedTo) > 0 {
		if err := json.Unmarshal(r.EscalatedTo, &a.EscalatedTo); err != nil {
			return a, fmt.Errorf("decode escalated_to: %w", err)
		}
	}
	if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
		return a, fmt.Errorf("decode metadata: %w", err)
	}
	return a, nil
}
