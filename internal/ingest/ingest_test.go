package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

func TestDecode(t *testing.T) {
	now := time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"single", `{"service":"web","metric":"cpu","value":92,"timestamp":"2026-06-13T11:59:00Z"}`, 1, false},
		{"array", `[{"service":"web","metric":"cpu","value":1},{"service":"api","metric":"requests","value":2}]`, 2, false},
		{"empty", `  `, 0, true},
		{"not json", `cpu=92`, 0, true},
		{"missing service", `{"metric":"cpu","value":92}`, 0, true},
		{"missing metric", `{"service":"web","value":92}`, 0, true},
		{"wildcard service", `{"service":"all","metric":"cpu","value":92}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload), now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSample)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDecode_StampsMissingTimestamp(t *testing.T) {
	now := time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)
	got, err := Decode([]byte(`{"service":"web","metric":"cpu","value":50}`), now)
	require.NoError(t, err)
	assert.Equal(t, now, got[0].Timestamp)
}

type collector struct {
	mu      sync.Mutex
	samples []models.MetricSample
	ch      chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 100)}
}

func (c *collector) handle(s models.MetricSample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for sample %d", i+1)
		}
	}
}

func TestFakeMetricFeed(t *testing.T) {
	samples := []models.MetricSample{
		{Service: "web", Metric: models.MetricCPU, Value: 1},
		{Service: "web", Metric: models.MetricCPU, Value: 2},
	}
	feed := NewFakeMetricFeed(samples, 0)
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, c.handle) }()

	c.wait(t, 2)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, samples, c.samples)
}

func TestFakeMetricFeed_Failure(t *testing.T) {
	feed := NewFakeMetricFeed([]models.MetricSample{{Service: "web", Metric: models.MetricCPU, Value: 1}}, 0)
	boom := errors.New("feed unavailable")
	feed.SetShouldFail(true, boom)

	called := false
	err := feed.Run(context.Background(), func(models.MetricSample) { called = true })
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestWebSocketFeed_ReceivesAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections int
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"service":"web","metric":"cpu","value":91}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"service":"web","metric":"cpu","value":92},{"service":"web","metric":"memory","value":40}]`))
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	feed := NewWebSocketFeed(WebSocketFeedConfig{
		Endpoint:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		RetryDelay: 10 * time.Millisecond,
	})
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, c.handle) }()

	c.wait(t, 3)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.samples, 3)
	assert.Equal(t, 91.0, c.samples[0].Value)
	assert.Equal(t, models.MetricMemory, c.samples[2].Metric)
	require.NoError(t, feed.Close())
}
