package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/resilience"
)

type WebSocketFeedConfig struct {
	Endpoint    string
	RetryDelay  time.Duration
	ReadTimeout time.Duration
	Breaker     *resilience.CircuitBreaker
}

// WebSocketFeed dials a sample stream and reconnects until cancelled. Each
// text message is one JSON sample or an array of samples.
type WebSocketFeed struct {
	endpoint    string
	retryDelay  time.Duration
	readTimeout time.Duration
	breaker     *resilience.CircuitBreaker
	dialer      websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewWebSocketFeed(cfg WebSocketFeedConfig) *WebSocketFeed {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "ingest"})
	}

	return &WebSocketFeed{
		endpoint:    cfg.Endpoint,
		retryDelay:  cfg.RetryDelay,
		readTimeout: cfg.ReadTimeout,
		breaker:     cfg.Breaker,
		dialer:      websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

func (f *WebSocketFeed) Run(ctx context.Context, handle Handler) error {
	log := logger.WithField("endpoint", f.endpoint)

	for {
		err := f.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
			return f.session(ctx, handle)
		})

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.isClosed() {
			return ErrFeedClosed
		}

		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			log.Debug("Ingest circuit open, waiting before reconnect")
		case err != nil:
			log.WithError(err).Warnf("Sample stream interrupted, reconnecting in %s", f.retryDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retryDelay):
		}
	}
}

// session holds one connection open until it fails.
func (f *WebSocketFeed) session(ctx context.Context, handle Handler) error {
	conn, _, err := f.dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial sample stream: %w", err)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return ErrFeedClosed
	}
	f.conn = conn
	f.mu.Unlock()

	logger.WithField("endpoint", f.endpoint).Info("Connected to sample stream")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read sample: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		samples, err := Decode(data, time.Now())
		if err != nil {
			logger.WithError(err).Warn("Dropping malformed sample message")
			continue
		}
		for _, s := range samples {
			handle(s)
		}
	}
}

func (f *WebSocketFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *WebSocketFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
