package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/logging"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, event *Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockRepository) SaveAll(ctx context.Context, events []*Event) error {
	return m.Called(ctx, events).Error(0)
}

func (m *mockRepository) FindUnpublished(ctx context.Context, limit int) ([]*Event, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*Event)
	return events, args.Error(1)
}

func (m *mockRepository) MarkPublished(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return m.Called(ctx, eventID, errorMsg).Error(0)
}

func (m *mockRepository) DeletePublishedBefore(ctx context.Context, olderThanSeconds int) (int64, error) {
	args := m.Called(ctx, olderThanSeconds)
	return args.Get(0).(int64), args.Error(1)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

func newEvent(t *testing.T, aggregateID string) *Event {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourceProduction).
		CreateEvent(context.Background(), cloudevents.RequestCompleted, "request/"+aggregateID, nil)
	event, err := NewEvent(aggregateID, "request", "production.requests.events", ce)
	require.NoError(t, err)
	return event
}

func TestPublisher_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	ok := newEvent(t, "REQ-1")
	broken := newEvent(t, "REQ-2")

	repo := new(mockRepository)
	producer := new(mockProducer)

	repo.On("FindUnpublished", ctx, 100).Return([]*Event{ok, broken}, nil)
	producer.On("PublishEvent", ctx, "production.requests.events", mock.MatchedBy(func(e *cloudevents.Event) bool {
		return e.Subject == "request/REQ-1"
	})).Return(nil)
	producer.On("PublishEvent", ctx, "production.requests.events", mock.MatchedBy(func(e *cloudevents.Event) bool {
		return e.Subject == "request/REQ-2"
	})).Return(errors.New("broker down"))
	repo.On("MarkPublished", ctx, ok.ID).Return(nil)
	repo.On("IncrementRetry", ctx, broken.ID, mock.AnythingOfType("string")).Return(nil)

	p := NewPublisher(repo, producer, logging.Discard(), nil, nil)

	assert.Equal(t, 1, p.ProcessBatch(ctx))
	repo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestPublisher_FindError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	repo.On("FindUnpublished", ctx, 100).Return(nil, errors.New("db down"))

	p := NewPublisher(repo, new(mockProducer), logging.Discard(), nil, nil)

	assert.Equal(t, 0, p.ProcessBatch(ctx))
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
}

func TestPublisher_StartStop(t *testing.T) {
	p := NewPublisher(new(mockRepository), new(mockProducer), logging.Discard(), nil, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
}

func TestEvent_ShouldRetry(t *testing.T) {
	event := newEvent(t, "REQ-1")
	assert.True(t, event.ShouldRetry())

	event.RetryCount = DefaultMaxRetries
	assert.False(t, event.ShouldRetry())

	ce, err := event.CloudEvent()
	require.NoError(t, err)
	assert.Equal(t, cloudevents.RequestCompleted, ce.Type)
}
