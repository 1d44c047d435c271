package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/internal/config"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/internal/infrastructure/events"
	mongoRepo "github.com/wms-platform/production-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/production-service/internal/workflows"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
	"github.com/wms-platform/production-service/pkg/middleware"
	"github.com/wms-platform/production-service/pkg/mongodb"
	"github.com/wms-platform/production-service/pkg/outbox"
	"github.com/wms-platform/production-service/pkg/temporal"
	"github.com/wms-platform/production-service/pkg/tracing"
)

func main() {
	// Setup logger
	logger := logging.New(logging.DefaultConfig(config.ServiceName))
	logger.SetDefault()

	logger.Info("Starting production-service API")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint, "enabled", cfg.Tracing.Enabled)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceProduction)
	store := mongoRepo.NewStore(mongoClient, eventFactory)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure indexes")
	}
	if err := config.SeedSizeCharts(ctx, store.SizeCharts(), cfg.Charts); err != nil {
		logger.WithError(err).Error("Failed to seed size charts")
		os.Exit(1)
	}

	// Initialize Kafka producer
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

	// Outbox relay for request and order events
	outboxPublisher := outbox.NewPublisher(store.Outbox(), producer, logger, m, outbox.DefaultPublisherConfig())
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Audit trail and notifications go to Kafka off the request path
	sideChannel := events.NewPublisher(producer, eventFactory, logger, events.DefaultConfig())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sideChannel.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("Side-channel publisher did not drain")
		}
	}()

	engine, coordinator := newApplication(store, cfg.Rules, sideChannel, sideChannel, logger, m)

	h := &handlers{engine: engine, coordinator: coordinator}
	if cfg.TemporalEnabled {
		temporalClient, err := temporal.NewClient(ctx, cfg.Temporal, logger.Logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create Temporal client")
			os.Exit(1)
		}
		defer temporalClient.Close()
		h.fulfillment = temporalStarter(temporalClient)
		logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort)
	}

	router := newRouter(h, logger, m, cfg.CORSOrigins, func() error {
		return mongoClient.HealthCheck(ctx)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("Server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server exited")
}

func newApplication(store domain.Store, rules *domain.SKURules, audit application.AuditLogger, notifier application.Notifier, logger *logging.Logger, m *metrics.Metrics) (*application.Engine, *application.Coordinator) {
	allocator := application.NewAllocator(store.Bins(), logger, m)
	engine := application.NewEngine(store, allocator, logger, m, application.EngineConfig{
		Rules:    rules,
		Audit:    audit,
		Notifier: notifier,
	})
	matcher := application.NewMatcher(store.Items(), domain.NewScorer(rules), logger, m)
	return engine, application.NewCoordinator(engine, matcher, logger, m)
}

func newRouter(h *handlers, logger *logging.Logger, m *metrics.Metrics, origins []string, ready func() error) *gin.Engine {
	router := gin.New()

	// Floor terminals and the supervisor UI call the API from the browser.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID, middleware.HeaderOperatorID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
	}))
	middleware.Setup(router, &middleware.Config{
		Logger:      logger,
		Metrics:     m,
		ServiceName: config.ServiceName,
	})

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, ready))
	if m != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(m))
	}

	h.register(router.Group("/api/v1"))
	return router
}

func temporalStarter(c *temporal.Client) fulfillmentStarter {
	return func(ctx context.Context, orderID, operatorID string) (string, string, error) {
		run, err := c.StartWorkflow(ctx, fmt.Sprintf("order-fulfillment-%s", orderID),
			temporal.TaskQueues.Production, temporal.WorkflowNames.OrderFulfillment,
			workflows.OrderFulfillmentInput{OrderID: orderID, OperatorID: operatorID})
		if err != nil {
			return "", "", err
		}
		return run.GetID(), run.GetRunID(), nil
	}
}
