package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// RequestCreatedEvent is published when a request is opened
type RequestCreatedEvent struct {
	RequestID string    `json:"requestId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *RequestCreatedEvent) EventType() string     { return "production.request.created" }
func (e *RequestCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }
func (e *RequestCreatedEvent) AggregateID() string   { return e.RequestID }

// RequestStepAdvancedEvent is published for each recorded step
type RequestStepAdvancedEvent struct {
	RequestID  string    `json:"requestId"`
	Type       string    `json:"type"`
	Step       string    `json:"step"`
	OperatorID string    `json:"operatorId"`
	AdvancedAt time.Time `json:"advancedAt"`
}

func (e *RequestStepAdvancedEvent) EventType() string     { return "production.request.step-advanced" }
func (e *RequestStepAdvancedEvent) OccurredAt() time.Time { return e.AdvancedAt }
func (e *RequestStepAdvancedEvent) AggregateID() string   { return e.RequestID }

// RequestCompletedEvent is published when a request completes
type RequestCompletedEvent struct {
	RequestID   string    `json:"requestId"`
	Type        string    `json:"type"`
	ItemID      string    `json:"itemId,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *RequestCompletedEvent) EventType() string     { return "production.request.completed" }
func (e *RequestCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
func (e *RequestCompletedEvent) AggregateID() string   { return e.RequestID }

// RequestFailedEvent is published when a request fails
type RequestFailedEvent struct {
	RequestID string    `json:"requestId"`
	Type      string    `json:"type"`
	Step      string    `json:"step"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failedAt"`
}

func (e *RequestFailedEvent) EventType() string     { return "production.request.failed" }
func (e *RequestFailedEvent) OccurredAt() time.Time { return e.FailedAt }
func (e *RequestFailedEvent) AggregateID() string   { return e.RequestID }

// OrderStatusChangedEvent is published when an order changes status
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

func (e *OrderStatusChangedEvent) EventType() string     { return "production.order.status-changed" }
func (e *OrderStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *OrderStatusChangedEvent) AggregateID() string   { return e.OrderID }
