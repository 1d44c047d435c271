package application

import "github.com/wms-platform/production-service/internal/domain"

// StepCommand advances a request by one step.
type StepCommand struct {
	RequestID string
	// Type, when set, must match the request type.
	Type       domain.RequestType
	Step       domain.Step
	Payload    any
	OperatorID string
}

// CreateRequestCommand opens a request.
type CreateRequestCommand struct {
	Type            domain.RequestType `json:"type" validate:"required"`
	ItemID          string             `json:"itemId,omitempty"`
	OrderID         string             `json:"orderId,omitempty"`
	BatchID         string             `json:"batchId,omitempty"`
	MaterialID      string             `json:"materialId,omitempty"`
	BinID           string             `json:"binId,omitempty"`
	ParentRequestID string             `json:"parentRequestId,omitempty"`
	Metadata        *domain.Metadata   `json:"metadata,omitempty"`
	Annotations     map[string]string  `json:"annotations,omitempty"`
	CreatedBy       string             `json:"-"`
}

// RetryRequestCommand reopens a failed request.
type RetryRequestCommand struct {
	RequestID  string
	OperatorID string
}

// ReportProblemCommand records a defect against a request's item.
type ReportProblemCommand struct {
	RequestID     string                 `json:"-"`
	Category      domain.ProblemCategory `json:"category" validate:"required,oneof=MEASUREMENT VISUAL DAMAGE OTHER"`
	Severity      domain.ProblemSeverity `json:"severity" validate:"required,oneof=MINOR MAJOR CRITICAL"`
	Description   string                 `json:"description" validate:"required"`
	MarkDefective bool                   `json:"markDefective"`
	OperatorID    string                 `json:"-"`
}

// ProcessBinCommand sends every laundry-ready item in a wash bin to the laundry.
type ProcessBinCommand struct {
	BinID      string
	OperatorID string
}

// ProcessOrderCommand starts fulfillment of a NEW order.
type ProcessOrderCommand struct {
	OrderID    string
	OperatorID string
}

// AllocateBinCommand reserves bin capacity.
type AllocateBinCommand struct {
	SKU      string         `json:"sku" validate:"omitempty,sku"`
	Quantity int            `json:"quantity" validate:"required,gte=1"`
	Type     domain.BinType `json:"type" validate:"required,oneof=STORAGE WASH QC PACKING FINISHING"`
}

// ReleaseBinCommand returns capacity to a bin.
type ReleaseBinCommand struct {
	BinID    string `json:"-"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

// MatchSKUQuery looks up inventory for a SKU without committing it.
type MatchSKUQuery struct {
	SKU             string
	UncommittedOnly bool
}
