package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/OldStager01/wedding-autoscaler/api/docs"
	"github.com/OldStager01/wedding-autoscaler/api/handlers"
	"github.com/OldStager01/wedding-autoscaler/api/middleware"
	"github.com/OldStager01/wedding-autoscaler/api/websocket"
	"github.com/OldStager01/wedding-autoscaler/internal/metrics"
	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/database"
	"github.com/OldStager01/wedding-autoscaler/pkg/database/queries"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
)

const maxSampleBody = 1 << 20

// Engine is everything the HTTP layer needs from the scaling engine.
type Engine interface {
	handlers.AlertService
	handlers.PolicyService
	handlers.ServiceDirectory
	handlers.EventSource
	handlers.ProjectionService
	handlers.SampleSink
	PendingScaling() int
	SubscribeAllEvents() <-chan *models.Event
}

type Options struct {
	// DB is nil when persistence is disabled.
	DB        *database.DB
	RulesFile string
	WebSocket *config.WebSocketConfig
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.APIConfig
	opts       Options
	engine     Engine
	wsHub      *websocket.Hub
	wsBridge   *websocket.EventBridge
}

func NewServer(cfg config.APIConfig, engine Engine, opts Options) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router: gin.New(),
		config: cfg,
		opts:   opts,
		engine: engine,
		wsHub:  websocket.NewHub(opts.WebSocket),
	}

	s.setupMiddleware()
	s.setupRoutes()

	go s.wsHub.Run()

	s.wsBridge = websocket.NewEventBridge(s.wsHub, engine.SubscribeAllEvents())
	s.wsBridge.Start()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(s.config.CORS))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())

	if s.config.RateLimit > 0 {
		s.router.Use(middleware.RateLimit(middleware.NewRateLimiter(s.config.RateLimit, time.Minute)))
	}

	endpoints := middleware.NewEndpointRateLimiter()
	endpoints.AddEndpoint("/projections/run", 6, time.Minute)
	endpoints.AddEndpoint("/rules/reload", 6, time.Minute)
	s.router.Use(endpoints.Middleware())
}

func (s *Server) setupRoutes() {
	limits := handlers.NewListLimits(&s.config)

	var pinger handlers.Pinger
	var eventRepo handlers.EventRepository
	if s.opts.DB != nil {
		pinger = s.opts.DB
		eventRepo = queries.NewScalingEventRepository(s.opts.DB.DB)
	}

	healthHandler := handlers.NewHealthHandler(pinger, s.engine)
	alertHandler := handlers.NewAlertHandler(s.engine)
	policyHandler := handlers.NewPolicyHandler(s.engine, s.opts.RulesFile)
	serviceHandler := handlers.NewServiceHandler(s.engine, limits)
	eventHandler := handlers.NewEventHandler(s.engine, eventRepo, limits)
	projectionHandler := handlers.NewProjectionHandler(s.engine)
	sampleHandler := handlers.NewSampleHandler(s.engine)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	s.router.GET("/metrics", gin.WrapH(metrics.Get().Handler()))
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	s.router.GET("/alerts", alertHandler.List)
	s.router.GET("/alerts/:id", alertHandler.Get)
	s.router.POST("/alerts/:id/acknowledge", alertHandler.Acknowledge)
	s.router.POST("/alerts/:id/escalate", alertHandler.Escalate)
	s.router.POST("/alerts/:id/resolve", alertHandler.Resolve)

	s.router.GET("/policies", policyHandler.List)
	s.router.GET("/policies/:id", policyHandler.Get)
	s.router.PUT("/policies/:id", policyHandler.Upsert)
	s.router.PATCH("/policies/:id/enabled", policyHandler.SetEnabled)
	s.router.DELETE("/policies/:id", policyHandler.Delete)
	s.router.GET("/thresholds", policyHandler.ListThresholds)
	s.router.PUT("/thresholds", policyHandler.UpsertThreshold)
	s.router.POST("/rules/reload", policyHandler.ReloadRules)

	s.router.GET("/services", serviceHandler.List)
	s.router.GET("/services/:name", serviceHandler.Get)
	s.router.PUT("/services/:name", serviceHandler.Register)
	s.router.POST("/services/:name/override", serviceHandler.Override)
	s.router.GET("/services/:name/metrics/:metric", serviceHandler.Metrics)

	s.router.GET("/events", eventHandler.List)
	s.router.GET("/events/stats", eventHandler.Stats)

	s.router.GET("/projections", projectionHandler.Latest)
	s.router.POST("/projections/run", projectionHandler.Run)

	s.router.POST("/samples", middleware.RequestSizeLimit(maxSampleBody), sampleHandler.Ingest)
}

func (s *Server) Start() error {
	idle := s.config.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  idle,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.wsBridge.Stop()
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
