package notify

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

type memorySink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []Notification
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, n)
	return m.err
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

func alertAt(level models.Severity) models.ScalingAlert {
	return models.ScalingAlert{ID: "a1", Service: "web", Level: level, Title: "cpu alert on web"}
}

func TestNewRouter_RejectsUnknownNames(t *testing.T) {
	_, err := NewRouter(map[string][]string{"severe": {"log"}}, 0, LogSink{})
	assert.Error(t, err)

	_, err = NewRouter(map[string][]string{"warning": {"pager"}}, 0, LogSink{})
	assert.Error(t, err)
}

func TestRouter_RoutesByLevel(t *testing.T) {
	logSink := &memorySink{name: "log"}
	hook := &memorySink{name: "webhook"}
	r, err := NewRouter(map[string][]string{
		"warning":   {"log"},
		"critical":  {"log", "webhook"},
		"emergency": {"log", "webhook"},
	}, time.Second, logSink, hook)
	require.NoError(t, err)

	assert.Equal(t, []string{"log", "webhook"}, r.SinksFor(models.SeverityCritical))

	require.NoError(t, r.Route(context.Background(), Notification{Type: models.EventTypeAlertCreated, Alert: alertAt(models.SeverityWarning)}))
	require.NoError(t, r.Route(context.Background(), Notification{Type: models.EventTypeAlertCreated, Alert: alertAt(models.SeverityEmergency)}))

	assert.Equal(t, 2, logSink.count())
	assert.Equal(t, 1, hook.count())
}

func TestRouter_EscalationCarriesRecipients(t *testing.T) {
	sink := &memorySink{name: "log"}
	r, err := NewRouter(map[string][]string{"critical": {"log"}}, 0, sink)
	require.NoError(t, err)

	a := alertAt(models.SeverityCritical)
	a.EscalatedTo = []string{"oncall", "wedding-support"}
	require.NoError(t, r.Route(context.Background(), Notification{Type: models.EventTypeAlertEscalated, Alert: a}))

	require.Len(t, sink.got, 1)
	assert.Equal(t, []string{"oncall", "wedding-support"}, sink.got[0].Recipients)
}

func TestRouter_SinkFailureDoesNotStopOthers(t *testing.T) {
	broken := &memorySink{name: "webhook", err: errors.New("unreachable")}
	ok := &memorySink{name: "log"}
	r, err := NewRouter(map[string][]string{"critical": {"webhook", "log"}}, 0, broken, ok)
	require.NoError(t, err)

	err = r.Route(context.Background(), Notification{Type: models.EventTypeAlertCreated, Alert: alertAt(models.SeverityCritical)})
	assert.Error(t, err)
	assert.Equal(t, 1, ok.count())
}

func TestRouter_RunFiltersEventTypes(t *testing.T) {
	sink := &memorySink{name: "log"}
	r, err := NewRouter(map[string][]string{"critical": {"log"}}, 0, sink)
	require.NoError(t, err)

	events := make(chan *models.Event, 4)
	a := alertAt(models.SeverityCritical)
	events <- models.NewEvent(models.EventTypeAlertCreated, "web", "").WithData(a)
	events <- models.NewEvent(models.EventTypeAlertAcknowledged, "web", "").WithData(a)
	events <- models.NewEvent(models.EventTypeAlertResolved, "web", "").WithData(a)
	events <- models.NewEvent(models.EventTypeDecisionMade, "web", "")
	close(events)

	r.Run(context.Background(), events)
	assert.Equal(t, 2, sink.count())
}

func TestWebhookSink_SignsPayload(t *testing.T) {
	secret := "s3cret"
	var gotClaims jwt.MapClaims
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		gotClaims = token.Claims.(jwt.MapClaims)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: srv.URL, Secret: secret, Issuer: "test"})
	err := sink.Send(context.Background(), Notification{Type: models.EventTypeAlertCreated, Alert: alertAt(models.SeverityCritical)})
	require.NoError(t, err)

	require.NotNil(t, gotClaims)
	assert.Equal(t, "test", gotClaims["iss"])
	assert.Equal(t, "a1", gotClaims["sub"])
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256(gotBody)), gotClaims["body_sha256"])

	var n Notification
	require.NoError(t, json.Unmarshal(gotBody, &n))
	assert.Equal(t, "web", n.Alert.Service)
}

func TestWebhookSink_WrongSecretRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("other"), nil }); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: srv.URL, Secret: "s3cret"})
	err := sink.Send(context.Background(), Notification{Alert: alertAt(models.SeverityCritical)})
	assert.ErrorContains(t, err, "401")
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisSink(t *testing.T) {
	client := &fakeRedis{}
	sink := NewRedisSink(client, "alerts")

	require.NoError(t, sink.Send(context.Background(), Notification{Type: models.EventTypeAlertResolved, Alert: alertAt(models.SeverityWarning)}))
	assert.Equal(t, "alerts", client.channel)

	var n Notification
	require.NoError(t, json.Unmarshal(client.payload, &n))
	assert.Equal(t, models.EventTypeAlertResolved, n.Type)

	client.err = errors.New("connection refused")
	assert.Error(t, sink.Send(context.Background(), Notification{Alert: alertAt(models.SeverityWarning)}))
}
