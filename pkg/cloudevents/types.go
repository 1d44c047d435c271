package cloudevents

import "time"

// Event types published by the production service
const (
	RequestCreated      = "production.request.created"
	RequestStepAdvanced = "production.request.step-advanced"
	RequestCompleted    = "production.request.completed"
	RequestFailed       = "production.request.failed"
	OrderStatusChanged  = "production.order.status-changed"

	AuditLogged         = "production.audit.logged"
	NotificationCreated = "production.notification.created"
)

// SourceProduction is the event source of this service.
const SourceProduction = "/production/production-service"

// Event is a CloudEvents v1.0 envelope with production extensions.
type Event struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype,omitempty"`
	Data            interface{} `json:"data,omitempty"`

	// Extensions
	OperatorID  string `json:"operatorid,omitempty"`
	OrderID     string `json:"orderid,omitempty"`
	RequestID   string `json:"requestid,omitempty"`
	TraceParent string `json:"traceparent,omitempty"`
}
