// Package orchestrator wires the sample store, alert manager, policy engine
// and effector dispatcher together and owns the live configuration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shopspring/decimal"

	"github.com/OldStager01/wedding-autoscaler/internal/alert"
	"github.com/OldStager01/wedding-autoscaler/internal/capacity"
	"github.com/OldStager01/wedding-autoscaler/internal/events"
	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/internal/policy"
	"github.com/OldStager01/wedding-autoscaler/internal/scaler"
	"github.com/OldStager01/wedding-autoscaler/internal/store"
	"github.com/OldStager01/wedding-autoscaler/internal/wedding"
	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

// ErrSampleDiscarded is returned by Ingest for a sample that is not newer
// than the newest one already retained for its series.
var ErrSampleDiscarded = errors.New("sample discarded: not newer than retained history")

type Config struct {
	HistorySize       int
	StoreShards       int
	LockStripes       int
	RecentEventsLimit int
	EventBufferSize   int
	Season            wedding.Season
	// Location, PeakStartHour and PeakEndHour configure the wedding calendar.
	// Zero values keep the calendar defaults.
	Location      *time.Location
	PeakStartHour int
	PeakEndHour   int
	Dispatcher    scaler.DispatcherConfig
	Projection    ProjectionConfig
}

type ProjectionConfig struct {
	HorizonDays          int
	Metric               models.MetricKind
	UnitsPerInstance     float64
	PerInstanceDailyCost decimal.Decimal
	SmoothingAlpha       float64
	// Lookback bounds the persisted history read for a projection.
	Lookback time.Duration
	// Location is used for projected day boundaries and the cron schedule.
	Location *time.Location
}

// ConfigFrom derives the orchestrator settings from the service config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	cost, err := decimal.NewFromString(cfg.Projector.PerInstanceDailyCost)
	if err != nil {
		return Config{}, fmt.Errorf("projector.per_instance_daily_cost: %w", err)
	}

	calendarLoc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("engine.timezone: %w", err)
	}
	projectorLoc, err := time.LoadLocation(cfg.Projector.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("projector.timezone: %w", err)
	}

	return Config{
		HistorySize:       cfg.Engine.HistorySize,
		StoreShards:       cfg.Engine.StoreShards,
		LockStripes:       cfg.Engine.ServiceLockStripes,
		RecentEventsLimit: cfg.Engine.RecentEventsLimit,
		EventBufferSize:   cfg.Events.BufferSize,
		Season: wedding.Season{
			StartMonth: time.Month(cfg.Engine.SeasonStartMonth),
			EndMonth:   time.Month(cfg.Engine.SeasonEndMonth),
		},
		Location:      calendarLoc,
		PeakStartHour: cfg.Engine.PeakStartHour,
		PeakEndHour:   cfg.Engine.PeakEndHour,
		Dispatcher: scaler.DispatcherConfig{
			MaxConcurrency: cfg.Effector.MaxConcurrency,
			QueueSize:      cfg.Effector.QueueSize,
			CallTimeout:    cfg.Effector.CallTimeout,
		},
		Projection: ProjectionConfig{
			HorizonDays:          cfg.Projector.HorizonDays,
			Metric:               models.MetricKind(cfg.Projector.Metric),
			UnitsPerInstance:     cfg.Projector.UnitsPerInstance,
			PerInstanceDailyCost: cost,
			SmoothingAlpha:       cfg.Projector.SmoothingAlpha,
			Location:             projectorLoc,
		},
	}, nil
}

// ConfigStore persists administrative changes.
type ConfigStore interface {
	UpsertPolicy(ctx context.Context, p models.ScalingPolicy) error
	DeletePolicy(ctx context.Context, id string) error
	UpsertThreshold(ctx context.Context, t models.AlertThreshold) error
}

// SampleStore keeps samples beyond the in-memory window for projections.
type SampleStore interface {
	Insert(ctx context.Context, s models.MetricSample) error
	GetRange(ctx context.Context, service string, metric models.MetricKind, from, to time.Time) ([]models.MetricSample, error)
}

// Persistence groups the optional database adapters. Nil fields disable the
// corresponding writes.
type Persistence struct {
	Config        ConfigStore
	Samples       SampleStore
	ScalingEvents events.ScalingEventStore
	Alerts        events.AlertStore
}

type Option func(*Orchestrator)

func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = clk }
}

func WithPersistence(p Persistence) Option {
	return func(o *Orchestrator) { o.persist = p }
}

type Orchestrator struct {
	cfg     Config
	clock   clock.Clock
	persist Persistence

	store       *store.Store
	registry    *scaler.Registry
	alerts      *alert.Manager
	engine      *policy.Engine
	dispatcher  *scaler.Dispatcher
	calendar    *wedding.Calendar
	projections *capacity.Scheduler
	eventBus    *events.EventBus
	publisher   *events.Publisher
	eventLogger *events.EventLogger
	locks       *StripedLock

	configMu   sync.RWMutex
	policies   map[string]models.ScalingPolicy
	thresholds []models.AlertThreshold
	saved      savedConfig

	recentMu sync.RWMutex
	recent   []models.ScalingEvent

	samples chan models.MetricSample
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, effector scaler.Effector, opts ...Option) *Orchestrator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 720
	}
	if cfg.RecentEventsLimit <= 0 {
		cfg.RecentEventsLimit = 500
	}
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = 100
	}
	if cfg.Season.StartMonth == 0 || cfg.Season.EndMonth == 0 {
		cfg.Season = wedding.DefaultSeason
	}
	if cfg.Projection.HorizonDays <= 0 {
		cfg.Projection.HorizonDays = 14
	}
	if cfg.Projection.Metric == "" {
		cfg.Projection.Metric = models.MetricRequests
	}
	if cfg.Projection.Lookback <= 0 {
		cfg.Projection.Lookback = 30 * 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:      cfg,
		clock:    clock.NewClock(),
		store:    store.New(cfg.HistorySize, cfg.StoreShards),
		registry: scaler.NewRegistry(),
		calendar: wedding.NewCalendar(nil, calendarOptions(cfg)...),
		eventBus: events.NewEventBus(cfg.EventBufferSize),
		locks:    NewStripedLock(cfg.LockStripes),
		policies: make(map[string]models.ScalingPolicy),
		saved:    newSavedConfig(),
		samples:  make(chan models.MetricSample, 1024),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.publisher = events.NewPublisher(o.eventBus)
	o.alerts = alert.NewManager(
		alert.WithPublisher(o.publisher),
		alert.WithSuppressionHook(func(s models.MetricSample, existingID string) {
			metrics.Get().IncAlertSuppressed(s.Service, string(s.Metric))
			o.publisher.AlertSuppressed(s, existingID)
		}),
	)
	o.engine = policy.NewEngine(o.registry, wedding.NewResolver(cfg.Season))
	o.dispatcher = scaler.NewDispatcher(effector, o.registry, o, cfg.Dispatcher)
	o.eventLogger = events.NewEventLogger(o.eventBus.SubscribeAll(), o.persist.ScalingEvents, o.persist.Alerts)
	o.projections = capacity.NewScheduler(o.Project,
		capacity.OnComplete(o.publisher.ProjectionComplete),
		capacity.WithLocation(cfg.Projection.Location),
	)

	return o
}

func calendarOptions(cfg Config) []wedding.CalendarOption {
	opts := []wedding.CalendarOption{wedding.WithLocation(cfg.Location)}
	if cfg.PeakEndHour > 0 {
		opts = append(opts, wedding.WithPeakHours(cfg.PeakStartHour, cfg.PeakEndHour))
	}
	return opts
}

func (o *Orchestrator) Start() error {
	logger.Info("Orchestrator starting")
	o.eventLogger.Start()

	if o.persist.Samples != nil {
		o.wg.Add(1)
		go o.writeSamples()
	}
	return nil
}

// Stop drains queued scaling work until ctx expires, then shuts down the
// event pipeline.
func (o *Orchestrator) Stop(ctx context.Context) {
	logger.Info("Orchestrator stopping")

	o.projections.Stop()
	if err := o.dispatcher.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Scaling dispatcher did not drain in time")
	}

	o.cancel()
	o.wg.Wait()
	o.eventLogger.Stop()
	o.eventBus.Close()

	logger.Info("Orchestrator stopped")
}

// Ingest stores a sample, refreshes the service's utilization fields and
// runs it through the alert manager.
func (o *Orchestrator) Ingest(sample models.MetricSample) (models.AlertMutation, error) {
	if err := ingest.Check(sample); err != nil {
		return models.AlertMutation{Kind: models.MutationNoOp}, err
	}

	lock := o.locks.GetLock(sample.Service)
	lock.Lock()
	defer lock.Unlock()

	m := metrics.Get()
	if !o.store.Append(sample) {
		m.IncSampleDiscarded(sample.Service, string(sample.Metric))
		logger.WithService(sample.Service).WithField("metric", sample.Metric).Debug("Discarded out-of-order sample")
		return models.AlertMutation{Kind: models.MutationNoOp}, ErrSampleDiscarded
	}
	m.IncSampleIngested(sample.Service, string(sample.Metric))
	o.registry.Refresh(sample)

	mutation := o.alerts.Ingest(sample, o.Thresholds())
	if mutation.IsCreate() {
		m.IncAlertCreated(sample.Service, mutation.Alert.Level.String())
		m.SetOpenAlerts(o.alerts.OpenCount())
	}

	if o.persist.Samples != nil {
		select {
		case o.samples <- sample:
		default:
			logger.WithService(sample.Service).Warn("Sample persistence queue full, dropping sample")
		}
	}
	return mutation, nil
}

// HandleSample adapts Ingest to a metric feed handler.
func (o *Orchestrator) HandleSample(sample models.MetricSample) {
	if _, err := o.Ingest(sample); err != nil && !errors.Is(err, ErrSampleDiscarded) {
		logger.WithService(sample.Service).WithError(err).Warn("Rejected metric sample")
	}
}

func (o *Orchestrator) writeSamples() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case s := <-o.samples:
			ctx, cancel := context.WithTimeout(o.ctx, 5*time.Second)
			if err := o.persist.Samples.Insert(ctx, s); err != nil {
				logger.WithService(s.Service).WithError(err).Warn("Failed to persist sample")
			}
			cancel()
		}
	}
}

// EvaluateOnce runs one policy pass per service, each under the service's
// lock, and queues the resulting decisions. Services not reached before ctx
// expires are left for the next pass.
func (o *Orchestrator) EvaluateOnce(ctx context.Context, now time.Time) []models.ScalingDecision {
	start := time.Now()
	defer func() { metrics.Get().ObserveEvaluation(time.Since(start)) }()

	byService := make(map[string][]models.ScalingPolicy)
	for _, p := range o.Policies() {
		byService[p.Service] = append(byService[p.Service], p)
	}
	services := make([]string, 0, len(byService))
	for name := range byService {
		services = append(services, name)
	}
	sort.Strings(services)

	var decisions []models.ScalingDecision
	for i, service := range services {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warnf("Evaluation pass cut short, %d services pending", len(services)-i)
			break
		}
		decisions = append(decisions, o.evaluateService(service, byService[service], now)...)
	}
	return decisions
}

func (o *Orchestrator) evaluateService(service string, policies []models.ScalingPolicy, now time.Time) []models.ScalingDecision {
	lock := o.locks.GetLock(service)
	lock.Lock()
	defer lock.Unlock()

	m := metrics.Get()
	result := o.engine.EvaluateDetailed(policies, o.store, now, o.calendar)

	for _, skip := range result.Skipped {
		m.IncDecisionSkipped(skip.Service, string(skip.Reason))
		o.publisher.DecisionSkipped(skip.Service, skip.PolicyID, string(skip.Reason), skip.Detail)
	}

	dispatched := make([]models.ScalingDecision, 0, len(result.Decisions))
	for _, decision := range result.Decisions {
		m.IncDecision(decision.Service, string(decision.Type))
		o.publisher.DecisionMade(decision)
		if err := o.dispatcher.Submit(decision); err != nil {
			logger.WithPolicy(decision.Service, decision.PolicyID).WithError(err).Error("Failed to queue scaling decision")
			o.publisher.Error(decision.Service, "Failed to queue scaling decision", err)
			continue
		}
		dispatched = append(dispatched, decision)
	}
	return dispatched
}

// ManualOverride scales a service to target, clamped to its bounds and
// ignoring cooldown. A target equal to the current count is not dispatched.
func (o *Orchestrator) ManualOverride(service string, target int, actor string) (models.ScalingDecision, bool, error) {
	if target < 0 {
		return models.ScalingDecision{}, false, fmt.Errorf("%w: %d", scaler.ErrInvalidTarget, target)
	}

	lock := o.locks.GetLock(service)
	lock.Lock()
	defer lock.Unlock()

	svc, ok := o.registry.Service(service)
	if !ok {
		return models.ScalingDecision{}, false, fmt.Errorf("%w: %s", scaler.ErrServiceNotFound, service)
	}
	if actor == "" {
		actor = "operator"
	}

	decision := models.ScalingDecision{
		ID:            models.NewUUID(),
		Service:       service,
		Type:          models.DecisionManualOverride,
		FromInstances: svc.CurrentInstances,
		ToInstances:   svc.Clamp(target),
		Reason:        fmt.Sprintf("manual override to %d by %s", target, actor),
		Timestamp:     o.clock.Now(),
	}
	if decision.IsNoOp() {
		logger.WithService(service).Infof("Manual override to %d is a no-op", decision.ToInstances)
		return decision, false, nil
	}

	metrics.Get().IncDecision(service, string(decision.Type))
	o.publisher.DecisionMade(decision)
	if err := o.dispatcher.Submit(decision); err != nil {
		return decision, false, err
	}
	return decision, true, nil
}

// ScalingStarted and ScalingFinished receive dispatcher callbacks.
func (o *Orchestrator) ScalingStarted(decision models.ScalingDecision) {
	o.publisher.ScalingStarted(decision)
}

func (o *Orchestrator) ScalingFinished(event models.ScalingEvent) {
	o.recentMu.Lock()
	o.recent = append(o.recent, event)
	if over := len(o.recent) - o.cfg.RecentEventsLimit; over > 0 {
		o.recent = append([]models.ScalingEvent(nil), o.recent[over:]...)
	}
	o.recentMu.Unlock()

	o.publisher.ScalingFinished(event)
}

// RecentEvents returns up to limit scaling events, newest first, optionally
// for one service.
func (o *Orchestrator) RecentEvents(service string, limit int) []models.ScalingEvent {
	o.recentMu.RLock()
	defer o.recentMu.RUnlock()

	out := make([]models.ScalingEvent, 0)
	for i := len(o.recent) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if service != "" && o.recent[i].Service != service {
			continue
		}
		out = append(out, o.recent[i])
	}
	return out
}

func (o *Orchestrator) Services() []models.ServiceInstance {
	return o.registry.List()
}

func (o *Orchestrator) Service(name string) (models.ServiceInstance, bool) {
	return o.registry.Service(name)
}

// History returns the retained samples for one series, oldest first.
func (o *Orchestrator) History(service string, metric models.MetricKind) []models.MetricSample {
	return o.store.History(service, metric)
}

func (o *Orchestrator) Calendar() *wedding.Calendar {
	return o.calendar
}

func (o *Orchestrator) SubscribeEvents(types ...models.EventType) <-chan *models.Event {
	return o.eventBus.SubscribeTypes(types...)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}

// PendingScaling is the number of decisions queued but not yet applied.
func (o *Orchestrator) PendingScaling() int {
	return o.dispatcher.Pending()
}
