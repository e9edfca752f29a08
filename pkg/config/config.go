package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Projector     ProjectorConfig     `mapstructure:"projector"`
	Effector      EffectorConfig      `mapstructure:"effector"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	API           APIConfig           `mapstructure:"api"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Prometheus    PrometheusConfig    `mapstructure:"prometheus"`
	Events        EventsConfig        `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RulesFile       string        `mapstructure:"rules_file"`
}

type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Name             string        `mapstructure:"name"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	MaxConnections   int           `mapstructure:"max_connections"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`
	MigrationTimeout time.Duration `mapstructure:"migration_timeout"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// EngineConfig drives the evaluation loop and the sample store.
type EngineConfig struct {
	EvaluationInterval time.Duration `mapstructure:"evaluation_interval"`
	EvaluationTimeout  time.Duration `mapstructure:"evaluation_timeout"`
	HistorySize        int           `mapstructure:"history_size"`
	StoreShards        int           `mapstructure:"store_shards"`
	ServiceLockStripes int           `mapstructure:"service_lock_stripes"`
	RecentEventsLimit  int           `mapstructure:"recent_events_limit"`
	SeasonStartMonth   int           `mapstructure:"season_start_month"`
	SeasonEndMonth     int           `mapstructure:"season_end_month"`
	// Timezone and the peak hours define the calendar's Saturday peak for
	// rules that do not name their own zone or window.
	Timezone      string `mapstructure:"timezone"`
	PeakStartHour int    `mapstructure:"peak_start_hour"`
	PeakEndHour   int    `mapstructure:"peak_end_hour"`
}

type IngestConfig struct {
	Type           string               `mapstructure:"type"`
	Endpoint       string               `mapstructure:"endpoint"`
	RetryDelay     time.Duration        `mapstructure:"retry_delay"`
	ReadTimeout    time.Duration        `mapstructure:"read_timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Synthetic      SyntheticConfig      `mapstructure:"synthetic"`
}

// SyntheticConfig drives the generated feed used when ingest.type is
// synthetic.
type SyntheticConfig struct {
	Interval time.Duration           `mapstructure:"interval"`
	Jitter   float64                 `mapstructure:"jitter"`
	Series   []SyntheticSeriesConfig `mapstructure:"series"`
}

type SyntheticSeriesConfig struct {
	Service string  `mapstructure:"service"`
	Metric  string  `mapstructure:"metric"`
	Base    float64 `mapstructure:"base"`
	Pattern string  `mapstructure:"pattern"`
	Ceiling float64 `mapstructure:"ceiling"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ProjectorConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Schedule             string  `mapstructure:"schedule"`
	HorizonDays          int     `mapstructure:"horizon_days"`
	Metric               string  `mapstructure:"metric"`
	UnitsPerInstance     float64 `mapstructure:"units_per_instance"`
	PerInstanceDailyCost string  `mapstructure:"per_instance_daily_cost"`
	SmoothingAlpha       float64 `mapstructure:"smoothing_alpha"`
	Timezone             string  `mapstructure:"timezone"`
}

type EffectorConfig struct {
	Type           string               `mapstructure:"type"`
	ProvisionTime  time.Duration        `mapstructure:"provision_time"`
	CallTimeout    time.Duration        `mapstructure:"call_timeout"`
	MaxConcurrency int                  `mapstructure:"max_concurrency"`
	QueueSize      int                  `mapstructure:"queue_size"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// NotificationsConfig maps alert levels to sink names (log, webhook, redis).
type NotificationsConfig struct {
	Channels      map[string][]string `mapstructure:"channels"`
	WebhookURL    string              `mapstructure:"webhook_url"`
	WebhookSecret string              `mapstructure:"webhook_secret"`
	WebhookIssuer string              `mapstructure:"webhook_issuer"`
	Timeout       time.Duration       `mapstructure:"timeout"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
