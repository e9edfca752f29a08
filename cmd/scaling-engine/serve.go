package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/OldStager01/wedding-autoscaler/api"
	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/internal/notify"
	"github.com/OldStager01/wedding-autoscaler/internal/orchestrator"
	"github.com/OldStager01/wedding-autoscaler/internal/resilience"
	"github.com/OldStager01/wedding-autoscaler/internal/scaler"
	"github.com/OldStager01/wedding-autoscaler/internal/simulator"
	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/database"
	"github.com/OldStager01/wedding-autoscaler/pkg/database/queries"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const (
	defaultMigrationTimeout = time.Minute
	defaultShutdownTimeout  = 30 * time.Second
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scaling engine, API and dashboard feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	orchCfg, err := orchestrator.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	var db *database.DB
	var persist orchestrator.Persistence
	if cfg.Database.Enabled {
		db, err = openDatabase(context.Background(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		policyRepo := queries.NewPolicyRepository(db.DB)
		persist = orchestrator.Persistence{
			Config:        policyRepo,
			Samples:       queries.NewSampleRepository(db.DB),
			ScalingEvents: queries.NewScalingEventRepository(db.DB),
			Alerts:        queries.NewAlertRepository(db.DB),
		}
	}

	effector := scaler.NewBreakerEffector(
		scaler.NewSimulatorEffector(scaler.SimulatorConfig{ProvisionTime: cfg.Effector.ProvisionTime}),
		newBreaker("effector", cfg.Effector.CircuitBreaker),
	)

	orch := orchestrator.New(orchCfg, effector, orchestrator.WithPersistence(persist))
	if err := orch.ReloadRules(cfg.App.RulesFile); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if db != nil {
		if err := restoreState(orch, db); err != nil {
			return err
		}
	}
	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := startNotifications(ctx, cfg, orch)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	feed := startIngest(ctx, cfg.Ingest, orch)

	runner := orchestrator.NewRunner(orch, orchestrator.RunnerConfig{
		Interval: cfg.Engine.EvaluationInterval,
		Timeout:  cfg.Engine.EvaluationTimeout,
	})
	runner.Start()

	if cfg.Projector.Enabled {
		if err := orch.StartProjections(cfg.Projector.Schedule); err != nil {
			return fmt.Errorf("failed to schedule projections: %w", err)
		}
	}

	var promServer *http.Server
	if cfg.Prometheus.Enabled {
		promServer = metrics.StartServer(cfg.Prometheus.Port)
	}

	server := api.NewServer(cfg.API, orch, api.Options{
		DB:        db,
		RulesFile: cfg.App.RulesFile,
		WebSocket: &cfg.WebSocket,
	})

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	var serveErr error
wait:
	for {
		select {
		case err := <-errChan:
			serveErr = fmt.Errorf("server error: %w", err)
			break wait
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				logger.Infof("Received %v, reloading %s", sig, cfg.App.RulesFile)
				if err := orch.ReloadRules(cfg.App.RulesFile); err != nil {
					logger.WithError(err).Warn("Rules reload rejected")
				}
				continue
			}
			logger.Infof("Received signal %v, shutting down", sig)
			break wait
		}
	}

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown")
	}
	runner.Stop()
	cancel()
	if feed != nil {
		feed.Close()
	}
	orch.Stop(shutdownCtx)
	if promServer != nil {
		promServer.Shutdown(shutdownCtx)
	}

	logger.Info("Engine stopped gracefully")
	return serveErr
}

func newBreaker(name string, cfg config.CircuitBreakerConfig) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        name,
		MaxFailures: cfg.MaxFailures,
		Timeout:     cfg.Timeout,
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.Get().SetCircuitBreakerState(name, int(to))
		},
	})
}

// restoreState overlays admin changes saved by earlier runs and reopens
// unresolved alerts.
func restoreState(orch *orchestrator.Orchestrator, db *database.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := queries.NewPolicyRepository(db.DB)
	policies, err := repo.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored policies: %w", err)
	}
	thresholds, err := repo.ListThresholds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored thresholds: %w", err)
	}
	applied := orch.ApplyStored(policies, thresholds)

	open, err := queries.NewAlertRepository(db.DB).GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open alerts: %w", err)
	}
	restored := orch.RestoreAlerts(open)

	last, err := queries.NewScalingEventRepository(db.DB).GetLastByService(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last scaling events: %w", err)
	}
	cooldowns := orch.RestoreCooldowns(last)

	logger.WithFields(map[string]interface{}{
		"stored_config": applied,
		"open_alerts":   restored,
		"cooldowns":     cooldowns,
	}).Info("Restored persisted state")
	return nil
}

func startNotifications(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator) (*redis.Client, error) {
	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(notify.WebhookConfig{
			URL:     cfg.Notifications.WebhookURL,
			Secret:  cfg.Notifications.WebhookSecret,
			Issuer:  cfg.Notifications.WebhookIssuer,
			Timeout: cfg.Notifications.Timeout,
		}))
	}

	var client *redis.Client
	if cfg.Redis.Enabled {
		client = notify.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		sinks = append(sinks, notify.NewRedisSink(client, cfg.Redis.Channel))
	}

	router, err := notify.NewRouter(cfg.Notifications.Channels, cfg.Notifications.Timeout, sinks...)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, fmt.Errorf("invalid notification routing: %w", err)
	}

	go router.Run(ctx, orch.SubscribeEvents(notify.RoutedTypes()...))
	return client, nil
}

// startIngest runs the pull feed when one is configured. The http type only
// accepts pushes on POST /samples.
func startIngest(ctx context.Context, cfg config.IngestConfig, orch *orchestrator.Orchestrator) ingest.Feed {
	var feed ingest.Feed
	switch cfg.Type {
	case "websocket":
		feed = ingest.NewWebSocketFeed(ingest.WebSocketFeedConfig{
			Endpoint:    cfg.Endpoint,
			RetryDelay:  cfg.RetryDelay,
			ReadTimeout: cfg.ReadTimeout,
			Breaker:     newBreaker("ingest", cfg.CircuitBreaker),
		})
	case "synthetic":
		feed = simulator.NewFeed(syntheticConfig(cfg.Synthetic))
	default:
		return nil
	}

	go func() {
		if err := feed.Run(ctx, orch.HandleSample); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("Sample feed stopped")
		}
	}()
	return feed
}

func syntheticConfig(cfg config.SyntheticConfig) simulator.Config {
	series := make([]simulator.Series, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		series = append(series, simulator.Series{
			Service: s.Service,
			Metric:  models.MetricKind(s.Metric),
			Base:    s.Base,
			Pattern: simulator.ParsePattern(s.Pattern),
			Ceiling: s.Ceiling,
		})
	}
	return simulator.Config{Series: series, Interval: cfg.Interval, Jitter: cfg.Jitter}
}
