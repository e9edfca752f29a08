package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type ScalingEventRepository struct {
	db *sqlx.DB
}

func NewScalingEventRepository(db *sqlx.DB) *ScalingEventRepository {
	return &ScalingEventRepository{db: db}
}

type scalingEventRow struct {
	ID             string    `db:"id"`
	Type           string    `db:"type"`
	Service        string    `db:"service"`
	Reason         string    `db:"reason"`
	Timestamp      time.Time `db:"timestamp"`
	BeforeState    []byte    `db:"before_state"`
	AfterState     []byte    `db:"after_state"`
	DurationMs     int64     `db:"duration_ms"`
	Success        bool      `db:"success"`
	ErrorMessage   string    `db:"error_message"`
	TriggeredBy    string    `db:"triggered_by"`
	WeddingContext []byte    `db:"wedding_context"`
}

func (r scalingEventRow) toModel() (models.ScalingEvent, error) {
	e := models.ScalingEvent{
		ID:           r.ID,
		Type:         models.DecisionType(r.Type),
		Service:      r.Service,
		Reason:       r.Reason,
		Timestamp:    r.Timestamp,
		Duration:     time.Duration(r.DurationMs) * time.Millisecond,
		Success:      r.Success,
		ErrorMessage: r.ErrorMessage,
		TriggeredBy:  r.TriggeredBy,
	}
	if err := json.Unmarshal(r.BeforeState, &e.BeforeState); err != nil {
		return e, fmt.Errorf("decode before_state: %w", err)
	}
	if err := json.Unmarshal(r.AfterState, &e.AfterState); err != nil {
		return e, fmt.Errorf("decode after_state: %w", err)
	}
	if len(r.WeddingContext) > 0 {
		var wc models.WeddingContext
		if err := json.Unmarshal(r.WeddingContext, &wc); err != nil {
			return e, fmt.Errorf("decode wedding_context: %w", err)
		}
		e.WeddingContext = &wc
	}
	return e, nil
}

const scalingEventColumns = `id, type, service, reason, timestamp, before_state, after_state,
		duration_ms, success, error_message, triggered_by, wedding_context`

func (r *ScalingEventRepository) Insert(ctx context.Context, event *models.ScalingEvent) error {
	before, err := json.Marshal(event.BeforeState)
	if err != nil {
		return err
	}
	after, err := json.Marshal(event.AfterState)
	if err != nil {
		return err
	}
	var wedding *string
	if event.WeddingContext != nil {
		raw, err := json.Marshal(event.WeddingContext)
		if err != nil {
			return err
		}
		doc := string(raw)
		wedding = &doc
	}

	query := `
		INSERT INTO scaling_events (` + scalingEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.Service,
		event.Reason,
		event.Timestamp,
		string(before),
		string(after),
		event.Duration.Milliseconds(),
		event.Success,
		event.ErrorMessage,
		event.TriggeredBy,
		wedding,
	)
	return err
}

func (r *ScalingEventRepository) GetByService(ctx context.Context, service string, from, to time.Time, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		WHERE service = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4`

	var rows []scalingEventRow
	if err := r.db.SelectContext(ctx, &rows, query, service, from, to, limit); err != nil {
		return nil, fmt.Errorf("failed to get scaling events: %w", err)
	}
	return toScalingEvents(rows)
}

func (r *ScalingEventRepository) GetRecent(ctx context.Context, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + scalingEventColumns + `
		FROM scaling_events
		ORDER BY timestamp DESC
		LIMIT $1`

	var rows []scalingEventRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent scaling events: %w", err)
	}
	return toScalingEvents(rows)
}

// GetLastByService returns the newest scaling event time per service.
// Failed attempts count too since they also start a cooldown.
func (r *ScalingEventRepository) GetLastByService(ctx context.Context) (map[string]time.Time, error) {
	query := `
		SELECT service, MAX(timestamp) AS last
		FROM scaling_events
		GROUP BY service`

	var rows []struct {
		Service string    `db:"service"`
		Last    time.Time `db:"last"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get last scaling events: %w", err)
	}

	last := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		last[row.Service] = row.Last
	}
	return last, nil
}

func toScalingEvents(rows []scalingEventRow) ([]models.ScalingEvent, error) {
	events := make([]models.ScalingEvent, 0, len(rows))
	for _, row := range rows {
		e, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

type ScalingStats struct {
	Service             string    `json:"service" db:"-"`
	From                time.Time `json:"from" db:"-"`
	To                  time.Time `json:"to" db:"-"`
	ScaleUpCount        int       `json:"scale_up_count" db:"scale_up_count"`
	ScaleDownCount      int       `json:"scale_down_count" db:"scale_down_count"`
	EmergencyCount      int       `json:"emergency_count" db:"emergency_count"`
	ManualOverrideCount int       `json:"manual_override_count" db:"manual_override_count"`
	SuccessCount        int       `json:"success_count" db:"success_count"`
	FailedCount         int       `json:"failed_count" db:"failed_count"`
	WeddingAwareCount   int       `json:"wedding_aware_count" db:"wedding_aware_count"`
}

func (r *ScalingEventRepository) GetStats(ctx context.Context, service string, from, to time.Time) (*ScalingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE type = 'scale_up') AS scale_up_count,
			COUNT(*) FILTER (WHERE type = 'scale_down') AS scale_down_count,
			COUNT(*) FILTER (WHERE type = 'emergency_scale') AS emergency_count,
			COUNT(*) FILTER (WHERE type = 'manual_override') AS manual_override_count,
			COUNT(*) FILTER (WHERE success) AS success_count,
			COUNT(*) FILTER (WHERE NOT success) AS failed_count,
			COUNT(*) FILTER (WHERE wedding_context IS NOT NULL) AS wedding_aware_count
		FROM scaling_events
		WHERE service = $1 AND timestamp >= $2 AND timestamp <= $3`

	var stats ScalingStats
	if err := r.db.GetContext(ctx, &stats, query, service, from, to); err != nil {
		return nil, fmt.Errorf("failed to get scaling stats: %w", err)
	}

	stats.Service = service
	stats.From = from
	stats.To = to

	return &stats, nil
}
