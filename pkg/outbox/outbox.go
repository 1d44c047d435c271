package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/production-service/pkg/cloudevents"
)

// DefaultMaxRetries is how often the relay retries an event before parking it.
const DefaultMaxRetries = 10

// Event is a CloudEvent stored alongside the aggregate write that produced it.
type Event struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewEvent wraps a CloudEvent for the outbox
func NewEvent(aggregateID, aggregateType, topic string, ce *cloudevents.Event) (*Event, error) {
	payload, err := json.Marshal(ce)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", ce.Type, err)
	}

	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     ce.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

// IsPublished reports whether the event has been relayed
func (e *Event) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry reports whether the relay should try the event again
func (e *Event) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// CloudEvent decodes the stored payload
func (e *Event) CloudEvent() (*cloudevents.Event, error) {
	var ce cloudevents.Event
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return nil, fmt.Errorf("failed to decode outbox event %s: %w", e.ID, err)
	}
	return &ce, nil
}
