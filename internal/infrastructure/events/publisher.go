package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/outbox"
	"github.com/wms-platform/production-service/pkg/resilience"
)

// ErrQueueFull is returned when an event is dropped because the publish
// queue is saturated.
var ErrQueueFull = errors.New("side-channel publish queue is full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("side-channel publisher is closed")

// Config holds side-channel publisher configuration
type Config struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		QueueSize:      1024,
		Workers:        2,
		PublishTimeout: 5 * time.Second,
	}
}

type job struct {
	ctx   context.Context
	topic string
	event *cloudevents.Event
}

// Publisher sends audit entries and notifications to Kafka off the request
// path. Callers never wait for the broker; a saturated queue or an open
// circuit drops the event and reports an error for logging.
type Publisher struct {
	producer outbox.EventProducer
	factory  *cloudevents.EventFactory
	breaker  *resilience.CircuitBreaker
	logger   *logging.Logger
	config   Config

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

var (
	_ application.AuditLogger = (*Publisher)(nil)
	_ application.Notifier    = (*Publisher)(nil)
)

// NewPublisher creates a Publisher and starts its workers.
func NewPublisher(producer outbox.EventProducer, factory *cloudevents.EventFactory, logger *logging.Logger, config Config) *Publisher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultConfig().PublishTimeout
	}

	logger = logger.WithComponent("side-channel-publisher")
	p := &Publisher{
		producer: producer,
		factory:  factory,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-side-channel"), logger.Logger),
		logger:   logger,
		config:   config,
		queue:    make(chan job, config.QueueSize),
	}
	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// LogEvent implements application.AuditLogger
func (p *Publisher) LogEvent(ctx context.Context, e application.AuditEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	ce := p.factory.CreateEvent(ctx, cloudevents.AuditLogged, auditSubject(e), e)
	ce.OperatorID = e.ActorID
	ce.OrderID = e.OrderID
	ce.RequestID = e.RequestID
	return p.enqueue(ctx, kafka.Topics.Audit, ce)
}

// CreateNotification implements application.Notifier
func (p *Publisher) CreateNotification(ctx context.Context, n application.Notification) error {
	subject := "role/" + n.UserRole
	if n.UserID != "" {
		subject = "user/" + n.UserID
	}
	ce := p.factory.CreateEvent(ctx, cloudevents.NotificationCreated, subject, n)
	ce.OrderID = n.Metadata["orderId"]
	ce.RequestID = n.Metadata["requestId"]
	return p.enqueue(ctx, kafka.Topics.Notifications, ce)
}

func auditSubject(e application.AuditEvent) string {
	switch {
	case e.RequestID != "":
		return "request/" + e.RequestID
	case e.OrderID != "":
		return "order/" + e.OrderID
	case e.ItemID != "":
		return "item/" + e.ItemID
	default:
		return "actor/" + e.ActorID
	}
}

func (p *Publisher) enqueue(ctx context.Context, topic string, ce *cloudevents.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- job{ctx: context.WithoutCancel(ctx), topic: topic, event: ce}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for j := range p.queue {
		p.publish(j)
	}
}

func (p *Publisher) publish(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, p.config.PublishTimeout)
	defer cancel()

	start := time.Now()
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.producer.PublishEvent(ctx, j.topic, j.event)
	})
	p.logger.KafkaPublish(ctx, j.topic, j.event.Type, err == nil, time.Since(start))
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Dropped side-channel event",
			"topic", j.topic, "eventType", j.event.Type, "subject", j.event.Subject)
	}
}

// Close stops accepting events and waits for queued ones to be sent or for
// ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
