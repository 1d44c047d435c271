package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/logging"
)

type published struct {
	topic string
	event *cloudevents.Event
}

type fakeProducer struct {
	mu     sync.Mutex
	sent   []published
	err    error
	block  chan struct{}
	called int
}

func (p *fakeProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.called++
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, event: event})
	return nil
}

func (p *fakeProducer) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

func newPublisher(producer *fakeProducer, cfg Config) *Publisher {
	return NewPublisher(producer, cloudevents.NewEventFactory(cloudevents.SourceProduction), logging.Discard(), cfg)
}

func TestPublisher_LogEvent(t *testing.T) {
	producer := &fakeProducer{}
	p := newPublisher(producer, DefaultConfig())

	err := p.LogEvent(context.Background(), application.AuditEvent{
		Type:      application.AuditRequestCompleted,
		ActorID:   "op-1",
		RequestID: "REQ-1",
		OrderID:   "ORDER-1",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close(context.Background()))

	sent := producer.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, kafka.Topics.Audit, sent[0].topic)

	ce := sent[0].event
	assert.Equal(t, cloudevents.AuditLogged, ce.Type)
	assert.Equal(t, "request/REQ-1", ce.Subject)
	assert.Equal(t, "op-1", ce.OperatorID)
	assert.Equal(t, "ORDER-1", ce.OrderID)

	data, err := json.Marshal(ce.Data)
	require.NoError(t, err)
	var decoded application.AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, application.AuditRequestCompleted, decoded.Type)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestPublisher_AuditSubject(t *testing.T) {
	tests := []struct {
		name  string
		event application.AuditEvent
		want  string
	}{
		{name: "request", event: application.AuditEvent{RequestID: "R", OrderID: "O", ItemID: "I"}, want: "request/R"},
		{name: "order", event: application.AuditEvent{OrderID: "O", ItemID: "I"}, want: "order/O"},
		{name: "item", event: application.AuditEvent{ItemID: "I"}, want: "item/I"},
		{name: "actor", event: application.AuditEvent{ActorID: "op-1"}, want: "actor/op-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auditSubject(tt.event))
		})
	}
}

func TestPublisher_CreateNotification(t *testing.T) {
	producer := &fakeProducer{}
	p := newPublisher(producer, DefaultConfig())

	require.NoError(t, p.CreateNotification(context.Background(), application.Notification{
		Type:     application.NotificationOrderReady,
		Message:  "order ORDER-1 is ready for packing",
		UserRole: "PACKING_LEAD",
		Metadata: map[string]string{"orderId": "ORDER-1"},
	}))
	require.NoError(t, p.CreateNotification(context.Background(), application.Notification{
		Type:   application.NotificationRequestFailed,
		UserID: "op-7",
	}))
	require.NoError(t, p.Close(context.Background()))

	sent := producer.snapshot()
	require.Len(t, sent, 2)
	subjects := []string{sent[0].event.Subject, sent[1].event.Subject}
	assert.ElementsMatch(t, []string{"role/PACKING_LEAD", "user/op-7"}, subjects)
	for _, s := range sent {
		assert.Equal(t, kafka.Topics.Notifications, s.topic)
		assert.Equal(t, cloudevents.NotificationCreated, s.event.Type)
	}
}

func TestPublisher_DoesNotBlockCaller(t *testing.T) {
	producer := &fakeProducer{block: make(chan struct{})}
	p := newPublisher(producer, Config{QueueSize: 1, Workers: 1, PublishTimeout: time.Second})

	event := application.AuditEvent{Type: application.AuditStepAdvanced, ActorID: "op-1"}
	// The worker takes the first event and blocks in the producer; the
	// second fills the queue; the third is dropped.
	require.NoError(t, p.LogEvent(context.Background(), event))
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.LogEvent(context.Background(), event))
	assert.ErrorIs(t, p.LogEvent(context.Background(), event), ErrQueueFull)

	close(producer.block)
	require.NoError(t, p.Close(context.Background()))
	assert.Len(t, producer.snapshot(), 2)
}

func TestPublisher_SurvivesCancelledCaller(t *testing.T) {
	producer := &fakeProducer{}
	p := newPublisher(producer, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.LogEvent(ctx, application.AuditEvent{Type: application.AuditOrderProcessed, OrderID: "ORDER-1"}))
	cancel()

	require.NoError(t, p.Close(context.Background()))
	assert.Len(t, producer.snapshot(), 1)
}

func TestPublisher_FailuresAreSwallowed(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	p := newPublisher(producer, DefaultConfig())

	for i := 0; i < 20; i++ {
		require.NoError(t, p.LogEvent(context.Background(), application.AuditEvent{Type: application.AuditStepAdvanced}))
	}
	require.NoError(t, p.Close(context.Background()))

	producer.mu.Lock()
	defer producer.mu.Unlock()
	assert.Empty(t, producer.sent)
	assert.Less(t, producer.called, 20, "open circuit should short-circuit the broker")
}

func TestPublisher_Closed(t *testing.T) {
	p := newPublisher(&fakeProducer{}, DefaultConfig())
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.ErrorIs(t, p.LogEvent(context.Background(), application.AuditEvent{}), ErrClosed)
	assert.ErrorIs(t, p.CreateNotification(context.Background(), application.Notification{}), ErrClosed)
}
