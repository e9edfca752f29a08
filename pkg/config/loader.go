package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/wedding-autoscaler")
	}

	v.SetEnvPrefix("SCALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "wedding-autoscaler")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")
	v.SetDefault("app.rules_file", "configs/rules.yaml")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "wedding_autoscaler")
	v.SetDefault("database.user", "admin")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "1m")
	v.SetDefault("database.ping_timeout", "5s")
	v.SetDefault("database.migration_timeout", "1m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "scaling-alerts")

	// Engine defaults
	v.SetDefault("engine.evaluation_interval", "10s")
	v.SetDefault("engine.evaluation_timeout", "5s")
	v.SetDefault("engine.history_size", 720)
	v.SetDefault("engine.store_shards", 16)
	v.SetDefault("engine.service_lock_stripes", 32)
	v.SetDefault("engine.recent_events_limit", 500)
	v.SetDefault("engine.season_start_month", 4)
	v.SetDefault("engine.season_end_month", 10)
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.peak_start_hour", 8)
	v.SetDefault("engine.peak_end_hour", 23)

	// Ingest defaults
	v.SetDefault("ingest.type", "http")
	v.SetDefault("ingest.endpoint", "ws://localhost:9000/samples")
	v.SetDefault("ingest.retry_delay", "5s")
	v.SetDefault("ingest.read_timeout", "60s")
	v.SetDefault("ingest.circuit_breaker.max_failures", 5)
	v.SetDefault("ingest.circuit_breaker.timeout", "30s")
	v.SetDefault("ingest.synthetic.interval", "10s")
	v.SetDefault("ingest.synthetic.jitter", 0.05)

	// Projector defaults
	v.SetDefault("projector.enabled", true)
	v.SetDefault("projector.schedule", "0 0 2 * * *")
	v.SetDefault("projector.horizon_days", 14)
	v.SetDefault("projector.metric", "requests")
	v.SetDefault("projector.units_per_instance", 1000.0)
	v.SetDefault("projector.per_instance_daily_cost", "24.00")
	v.SetDefault("projector.smoothing_alpha", 0.3)
	v.SetDefault("projector.timezone", "UTC")

	// Effector defaults
	v.SetDefault("effector.type", "simulator")
	v.SetDefault("effector.provision_time", "2s")
	v.SetDefault("effector.call_timeout", "30s")
	v.SetDefault("effector.max_concurrency", 4)
	v.SetDefault("effector.queue_size", 16)
	v.SetDefault("effector.circuit_breaker.max_failures", 5)
	v.SetDefault("effector.circuit_breaker.timeout", "1m")

	// Notification defaults
	v.SetDefault("notifications.channels", map[string][]string{
		"warning":   {"log"},
		"critical":  {"log"},
		"emergency": {"log"},
	})
	v.SetDefault("notifications.webhook_issuer", "wedding-autoscaler")
	v.SetDefault("notifications.timeout", "5s")

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.default_limit", 50)
	v.SetDefault("api.max_limit", 500)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Trace-ID"})
	v.SetDefault("api.cors.exposed_headers", []string{"X-Trace-ID"})

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.broadcast_buffer", 256)
	v.SetDefault("websocket.client_buffer", 256)

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)

	// Events defaults
	v.SetDefault("events.buffer_size", 100)
}
