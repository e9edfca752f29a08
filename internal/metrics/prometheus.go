package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/wedding-autoscaler/internal/logger"
)

const namespace = "wedding_scaler"

type Metrics struct {
	// Counters
	samplesIngested    *prometheus.CounterVec
	samplesDiscarded   *prometheus.CounterVec
	alertsCreated      *prometheus.CounterVec
	alertsSuppressed   *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	decisionsSkipped   *prometheus.CounterVec
	scalingEventsTotal *prometheus.CounterVec
	configRejections   *prometheus.CounterVec

	// Gauges
	serviceInstances    *prometheus.GaugeVec
	openAlerts          prometheus.Gauge
	circuitBreakerState *prometheus.GaugeVec

	// Histograms
	effectorLatency   *prometheus.HistogramVec
	evaluationLatency prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics set, registering it on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return instance
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		samplesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Metric samples accepted into the store",
		}, []string{"service", "metric"}),
		samplesDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_discarded_total",
			Help:      "Metric samples discarded as duplicate or out of order",
		}, []string{"service", "metric"}),
		alertsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created by level",
		}, []string{"service", "level"}),
		alertsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Breaches absorbed by an already open alert",
		}, []string{"service", "metric"}),
		decisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Scaling decisions emitted by type",
		}, []string{"service", "type"}),
		decisionsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_skipped_total",
			Help:      "Fired policies that produced no decision, by reason",
		}, []string{"service", "reason"}),
		scalingEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scaling_events_total",
			Help:      "Scaling events recorded by outcome",
		}, []string{"service", "type", "outcome"}),
		configRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_rejections_total",
			Help:      "Rejected configuration updates",
		}, []string{"source"}),
		serviceInstances: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_instances",
			Help:      "Current instance count per service",
		}, []string{"service"}),
		openAlerts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_alerts",
			Help:      "Unresolved alerts",
		}),
		circuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		effectorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "effector_latency_seconds",
			Help:      "Time taken by the scaling effector to apply a decision",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "outcome"}),
		evaluationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_pass_seconds",
			Help:      "Duration of a full policy evaluation pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncSampleIngested(service, metric string) {
	m.samplesIngested.WithLabelValues(service, metric).Inc()
}

func (m *Metrics) IncSampleDiscarded(service, metric string) {
	m.samplesDiscarded.WithLabelValues(service, metric).Inc()
}

func (m *Metrics) IncAlertCreated(service, level string) {
	m.alertsCreated.WithLabelValues(service, level).Inc()
}

func (m *Metrics) IncAlertSuppressed(service, metric string) {
	m.alertsSuppressed.WithLabelValues(service, metric).Inc()
}

func (m *Metrics) IncDecision(service, decisionType string) {
	m.decisionsTotal.WithLabelValues(service, decisionType).Inc()
}

func (m *Metrics) IncDecisionSkipped(service, reason string) {
	m.decisionsSkipped.WithLabelValues(service, reason).Inc()
}

func (m *Metrics) IncScalingEvent(service, decisionType string, success bool) {
	m.scalingEventsTotal.WithLabelValues(service, decisionType, outcome(success)).Inc()
}

func (m *Metrics) IncConfigRejection(source string) {
	m.configRejections.WithLabelValues(source).Inc()
}

func (m *Metrics) SetServiceInstances(service string, count int) {
	m.serviceInstances.WithLabelValues(service).Set(float64(count))
}

func (m *Metrics) SetOpenAlerts(count int) {
	m.openAlerts.Set(float64(count))
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) ObserveEffectorLatency(service string, success bool, d time.Duration) {
	m.effectorLatency.WithLabelValues(service, outcome(success)).Observe(d.Seconds())
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	m.evaluationLatency.Observe(d.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func StartServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Get().Handler())

	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Infof("Prometheus metrics server listening on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Prometheus server error: %v", err)
		}
	}()
	return srv
}
