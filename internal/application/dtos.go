package application

import (
	"time"

	"github.com/wms-platform/production-service/internal/domain"
)

// RequestDTO represents a request in responses
type RequestDTO struct {
	ID              string                 `json:"id"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	CurrentStep     string                 `json:"currentStep"`
	ItemID          string                 `json:"itemId,omitempty"`
	OrderID         string                 `json:"orderId,omitempty"`
	BatchID         string                 `json:"batchId,omitempty"`
	MaterialID      string                 `json:"materialId,omitempty"`
	BinID           string                 `json:"binId,omitempty"`
	ParentRequestID string                 `json:"parentRequestId,omitempty"`
	Metadata        domain.Metadata        `json:"metadata"`
	Annotations     map[string]string      `json:"annotations,omitempty"`
	Timeline        []domain.TimelineEntry `json:"timeline"`
	Failure         *domain.Failure        `json:"failure,omitempty"`
	RetryCount      int                    `json:"retryCount"`
	CreatedBy       string                 `json:"createdBy"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
}

// ProblemDTO represents a defect record
type ProblemDTO struct {
	ID              string     `json:"id"`
	ItemID          string     `json:"itemId,omitempty"`
	RequestID       string     `json:"requestId"`
	Category        string     `json:"category"`
	Severity        string     `json:"severity"`
	DiscoveredStage string     `json:"discoveredStage"`
	Description     string     `json:"description"`
	Resolution      string     `json:"resolution"`
	ReportedBy      string     `json:"reportedBy"`
	ReportedAt      time.Time  `json:"reportedAt"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}

// StepResultDTO is the outcome of a step advance
type StepResultDTO struct {
	Request RequestDTO   `json:"request"`
	Spawned []RequestDTO `json:"spawned,omitempty"`
	Problem *ProblemDTO  `json:"problem,omitempty"`
}

// AssignmentDTO represents one fulfilled unit of an order item
type AssignmentDTO struct {
	OrderItemID     string                   `json:"orderItemId"`
	TargetSKU       string                   `json:"targetSku"`
	InventoryItemID string                   `json:"inventoryItemId"`
	MatchedSKU      string                   `json:"matchedSku"`
	Tier            string                   `json:"tier"`
	Substitutions   []domain.Substitution    `json:"substitutions,omitempty"`
	Adjustment      *domain.LengthAdjustment `json:"adjustment,omitempty"`
	BinID           string                   `json:"binId,omitempty"`
}

// OrderDTO represents an order
type OrderDTO struct {
	ID          string               `json:"id"`
	OrderNumber string               `json:"orderNumber"`
	CustomerID  string               `json:"customerId,omitempty"`
	Status      string               `json:"status"`
	Assignments []AssignmentDTO      `json:"assignments,omitempty"`
	Shipment    *domain.ShipmentPrep `json:"shipment,omitempty"`
	UnitCount   int                  `json:"unitCount"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// ProcessOrderResultDTO is the outcome of processing an order
type ProcessOrderResultDTO struct {
	Order    OrderDTO     `json:"order"`
	Requests []RequestDTO `json:"requests"`
}

// MatchDTO represents an inventory match
type MatchDTO struct {
	TargetSKU     string                   `json:"targetSku"`
	ItemID        string                   `json:"itemId"`
	MatchedSKU    string                   `json:"matchedSku"`
	Tier          string                   `json:"tier"`
	Score         int                      `json:"score"`
	Phase         string                   `json:"phase"`
	Substitutions []domain.Substitution    `json:"substitutions,omitempty"`
	Adjustment    *domain.LengthAdjustment `json:"adjustment,omitempty"`
}

// BinProcessResultDTO is the outcome of sending a wash bin to the laundry
type BinProcessResultDTO struct {
	BinID     string   `json:"binId"`
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped,omitempty"`
	Reset     bool     `json:"reset"`
}

// NextActionsResultDTO is what executing next actions changed
type NextActionsResultDTO struct {
	Spawned []RequestDTO `json:"spawned"`
	Orders  []OrderDTO   `json:"orders,omitempty"`
}
