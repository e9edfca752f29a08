package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

var validSinks = map[string]bool{"log": true, "webhook": true, "redis": true}

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
		if c.Database.MaxConnections <= 0 {
			errs = append(errs, errors.New("database.max_connections must be positive"))
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}

	// Engine validation
	if c.Engine.EvaluationInterval <= 0 {
		errs = append(errs, errors.New("engine.evaluation_interval must be positive"))
	}
	if c.Engine.EvaluationTimeout <= 0 || c.Engine.EvaluationTimeout > c.Engine.EvaluationInterval {
		errs = append(errs, errors.New("engine.evaluation_timeout must be positive and at most engine.evaluation_interval"))
	}
	if c.Engine.HistorySize <= 0 {
		errs = append(errs, errors.New("engine.history_size must be positive"))
	}
	if c.Engine.StoreShards <= 0 || c.Engine.ServiceLockStripes <= 0 {
		errs = append(errs, errors.New("engine.store_shards and engine.service_lock_stripes must be positive"))
	}
	for _, month := range []int{c.Engine.SeasonStartMonth, c.Engine.SeasonEndMonth} {
		if month < 1 || month > 12 {
			errs = append(errs, errors.New("engine season months must be between 1 and 12"))
			break
		}
	}

	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("engine.timezone is invalid: %w", err))
	}
	if c.Engine.PeakStartHour < 0 || c.Engine.PeakEndHour > 24 || c.Engine.PeakStartHour >= c.Engine.PeakEndHour {
		errs = append(errs, errors.New("engine peak hours must satisfy 0 <= peak_start_hour < peak_end_hour <= 24"))
	}

	// Ingest validation
	validIngest := map[string]bool{"http": true, "websocket": true, "synthetic": true}
	if !validIngest[c.Ingest.Type] {
		errs = append(errs, errors.New("ingest.type must be one of: http, websocket, synthetic"))
	}
	if c.Ingest.Type == "synthetic" {
		if len(c.Ingest.Synthetic.Series) == 0 {
			errs = append(errs, errors.New("ingest.synthetic.series is required for synthetic ingestion"))
		}
		for i, s := range c.Ingest.Synthetic.Series {
			if s.Service == "" || s.Metric == "" {
				errs = append(errs, fmt.Errorf("ingest.synthetic.series[%d]: service and metric are required", i))
			}
			if s.Base < 0 {
				errs = append(errs, fmt.Errorf("ingest.synthetic.series[%d]: base must not be negative", i))
			}
		}
	}
	if c.Ingest.Type == "websocket" && c.Ingest.Endpoint == "" {
		errs = append(errs, errors.New("ingest.endpoint is required for websocket ingestion"))
	}

	// Projector validation
	if c.Projector.Enabled {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Projector.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("projector.schedule is invalid: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Projector.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("projector.timezone is invalid: %w", err))
	}
	if c.Projector.HorizonDays <= 0 {
		errs = append(errs, errors.New("projector.horizon_days must be positive"))
	}
	if c.Projector.UnitsPerInstance <= 0 {
		errs = append(errs, errors.New("projector.units_per_instance must be positive"))
	}
	if cost, err := decimal.NewFromString(c.Projector.PerInstanceDailyCost); err != nil || cost.IsNegative() {
		errs = append(errs, errors.New("projector.per_instance_daily_cost must be a non-negative decimal"))
	}
	if c.Projector.SmoothingAlpha <= 0 || c.Projector.SmoothingAlpha > 1 {
		errs = append(errs, errors.New("projector.smoothing_alpha must be within (0, 1]"))
	}

	// Effector validation
	if c.Effector.Type != "simulator" {
		errs = append(errs, errors.New("effector.type must be: simulator"))
	}
	if c.Effector.CallTimeout <= 0 {
		errs = append(errs, errors.New("effector.call_timeout must be positive"))
	}
	if c.Effector.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("effector.max_concurrency must be positive"))
	}

	// Notification validation
	for level, sinks := range c.Notifications.Channels {
		for _, sink := range sinks {
			if !validSinks[sink] {
				errs = append(errs, fmt.Errorf("notifications.channels.%s: unknown sink %q", level, sink))
			}
			if sink == "webhook" && c.Notifications.WebhookURL == "" {
				errs = append(errs, fmt.Errorf("notifications.channels.%s: webhook sink needs notifications.webhook_url", level))
			}
			if sink == "redis" && !c.Redis.Enabled {
				errs = append(errs, fmt.Errorf("notifications.channels.%s: redis sink needs redis.enabled", level))
			}
		}
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.Prometheus.Enabled && (c.Prometheus.Port <= 0 || c.Prometheus.Port > 65535) {
		errs = append(errs, errors.New("prometheus.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return nil
}
