package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/production-service/internal/activities"
	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/internal/config"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/internal/infrastructure/events"
	mongoRepo "github.com/wms-platform/production-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/production-service/internal/workflows"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/mongodb"
	"github.com/wms-platform/production-service/pkg/temporal"
)

func main() {
	logger := logging.New(logging.DefaultConfig(config.ServiceName))
	logger.SetDefault()

	logger.Info("Starting production-service worker")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	cfg.Temporal.Identity = "production-worker"

	// Initialize MongoDB
	ctx := context.Background()
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	// Request and order events are relayed by the API's outbox publisher.
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceProduction)
	store := mongoRepo.NewStore(mongoClient, eventFactory)

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()
	sideChannel := events.NewPublisher(producer, eventFactory, logger, events.DefaultConfig())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sideChannel.Close(closeCtx)
	}()

	allocator := application.NewAllocator(store.Bins(), logger, nil)
	engine := application.NewEngine(store, allocator, logger, nil, application.EngineConfig{
		Rules:    cfg.Rules,
		Audit:    sideChannel,
		Notifier: sideChannel,
	})
	matcher := application.NewMatcher(store.Items(), domain.NewScorer(cfg.Rules), logger, nil)
	coordinator := application.NewCoordinator(engine, matcher, logger, nil)

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(ctx, cfg.Temporal, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Production))

	w.RegisterWorkflow(workflows.OrderFulfillmentWorkflow)
	w.RegisterActivity(activities.NewProductionActivities(coordinator, logger))
	logger.Info("Registered workflow and activities", "workflow", temporal.WorkflowNames.OrderFulfillment)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Worker failed to start")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Production)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
