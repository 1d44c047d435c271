package application

import (
	"context"
	"time"
)

// Audit event types
const (
	AuditRequestCreated   = "REQUEST_CREATED"
	AuditStepAdvanced     = "REQUEST_STEP_ADVANCED"
	AuditRequestCompleted = "REQUEST_COMPLETED"
	AuditRequestFailed    = "REQUEST_FAILED"
	AuditRequestRetried   = "REQUEST_RETRIED"
	AuditProblemReported  = "PROBLEM_REPORTED"
	AuditOrderProcessed   = "ORDER_PROCESSED"
	AuditOrderAdvanced    = "ORDER_ADVANCED"
	AuditBinProcessed     = "BIN_PROCESSED"
)

// AuditEvent is one entry of the production audit trail.
type AuditEvent struct {
	Type       string            `json:"type"`
	ActorID    string            `json:"actorId"`
	ItemID     string            `json:"itemId,omitempty"`
	OrderID    string            `json:"orderId,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// AuditLogger records audit events. Implementations must not block callers
// on slow sinks; errors are only reported for logging.
type AuditLogger interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}

// Notification types
const (
	NotificationDefect        = "DEFECT_DETECTED"
	NotificationOrderReady    = "ORDER_READY_FOR_PACKING"
	NotificationOrderShort    = "ORDER_SHORT"
	NotificationRequestFailed = "REQUEST_FAILED"
)

// Notification is a message for an operator or a role.
type Notification struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	UserID   string            `json:"userId,omitempty"`
	UserRole string            `json:"userRole,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Notifier delivers notifications. Delivery is best effort.
type Notifier interface {
	CreateNotification(ctx context.Context, n Notification) error
}

type noopAudit struct{}

func (noopAudit) LogEvent(context.Context, AuditEvent) error { return nil }

type noopNotifier struct{}

func (noopNotifier) CreateNotification(context.Context, Notification) error { return nil }
