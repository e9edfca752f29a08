package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// LogSink writes notifications to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, n Notification) error {
	entry := logger.WithAlert(n.Alert.Service, n.Alert.ID).WithFields(map[string]interface{}{
		"event_type": n.Type,
		"level":      n.Alert.Level.String(),
		"recipients": n.Recipients,
	})
	switch {
	case n.Type == models.EventTypeAlertResolved:
		entry.Info(n.Alert.Title + " (resolved)")
	case n.Alert.Level >= models.SeverityCritical:
		entry.Error(n.Alert.Title)
	default:
		entry.Warn(n.Alert.Title)
	}
	return nil
}

// WebhookSink POSTs the notification as JSON. Each request carries an HS256
// bearer token whose "body_sha256" claim binds it to the payload.
type WebhookSink struct {
	url    string
	secret []byte
	issuer string
	client *http.Client
}

type WebhookConfig struct {
	URL     string
	Secret  string
	Issuer  string
	Timeout time.Duration
}

func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "wedding-scaler"
	}
	return &WebhookSink{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	token, err := w.sign(n, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookSink) sign(n Notification, body []byte) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":         w.issuer,
		"sub":         n.Alert.ID,
		"iat":         now.Unix(),
		"exp":         now.Add(5 * time.Minute).Unix(),
		"jti":         models.NewUUID(),
		"event":       string(n.Type),
		"body_sha256": fmt.Sprintf("%x", sha256.Sum256(body)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(w.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign webhook token: %w", err)
	}
	return signed, nil
}

// RedisPublisher is the subset of the redis client the sink needs.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes notifications as JSON on a pub/sub channel.
type RedisSink struct {
	client  RedisPublisher
	channel string
}

func NewRedisSink(client RedisPublisher, channel string) *RedisSink {
	if channel == "" {
		channel = "wedding-scaler:alerts"
	}
	return &RedisSink{client: client, channel: channel}
}

// NewRedisClient opens a client for the given server.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}
