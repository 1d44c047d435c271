package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata carries the per-type payload of a request. Exactly the member
// matching the request type is set.
type Metadata struct {
	Move      *MoveMetadata      `bson:"move,omitempty" json:"move,omitempty"`
	Pattern   *PatternMetadata   `bson:"pattern,omitempty" json:"pattern,omitempty"`
	Cutting   *CuttingMetadata   `bson:"cutting,omitempty" json:"cutting,omitempty"`
	QC        *QCMetadata        `bson:"qc,omitempty" json:"qc,omitempty"`
	Wash      *WashMetadata      `bson:"wash,omitempty" json:"wash,omitempty"`
	Finishing *FinishingMetadata `bson:"finishing,omitempty" json:"finishing,omitempty"`
	Packing   *PackingMetadata   `bson:"packing,omitempty" json:"packing,omitempty"`
	Recovery  *RecoveryMetadata  `bson:"recovery,omitempty" json:"recovery,omitempty"`
}

// MoveMetadata tracks a physical relocation.
type MoveMetadata struct {
	FromLocation        string `bson:"fromLocation,omitempty" json:"fromLocation,omitempty"`
	ExpectedDestination string `bson:"expectedDestination,omitempty" json:"expectedDestination,omitempty"`
	Destination         string `bson:"destination,omitempty" json:"destination,omitempty"`
}

// PatternMetadata tracks pattern making for a batch.
type PatternMetadata struct {
	PatternCode string `bson:"patternCode,omitempty" json:"patternCode,omitempty"`
}

// CuttingMetadata tracks fabric cutting for a batch.
type CuttingMetadata struct {
	WastePercentage  *decimal.Decimal `bson:"wastePercentage,omitempty" json:"wastePercentage,omitempty"`
	PiecesCut        int              `bson:"piecesCut,omitempty" json:"piecesCut,omitempty"`
	GeneratedItemIDs []string         `bson:"generatedItemIds,omitempty" json:"generatedItemIds,omitempty"`
}

// DefectObservation is one defect noted during inspection.
type DefectObservation struct {
	Category    ProblemCategory `bson:"category" json:"category" validate:"required,oneof=MEASUREMENT VISUAL DAMAGE OTHER"`
	Severity    ProblemSeverity `bson:"severity" json:"severity" validate:"required,oneof=MINOR MAJOR CRITICAL"`
	Description string          `bson:"description" json:"description"`
}

// QCMetadata tracks inspection results.
type QCMetadata struct {
	SizeChartID  string              `bson:"sizeChartId,omitempty" json:"sizeChartId,omitempty"`
	Measurements []MeasurementResult `bson:"measurements,omitempty" json:"measurements,omitempty"`
	VisualPassed *bool               `bson:"visualPassed,omitempty" json:"visualPassed,omitempty"`
	Defects      []DefectObservation `bson:"defects,omitempty" json:"defects,omitempty"`
	BinID        string              `bson:"binId,omitempty" json:"binId,omitempty"`
}

// WashMetadata tracks a wash cycle.
type WashMetadata struct {
	WashGroup       string     `bson:"washGroup,omitempty" json:"washGroup,omitempty"`
	BinID           string     `bson:"binId,omitempty" json:"binId,omitempty"`
	SentToLaundryAt *time.Time `bson:"sentToLaundryAt,omitempty" json:"sentToLaundryAt,omitempty"`
	ProblemID       string     `bson:"problemId,omitempty" json:"problemId,omitempty"`
	FailureReason   string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// FinishingMetadata tracks the finishing operations of one garment.
type FinishingMetadata struct {
	RequiredOps  []Step `bson:"requiredOps" json:"requiredOps"`
	CompletedOps []Step `bson:"completedOps,omitempty" json:"completedOps,omitempty"`
	TargetLength string `bson:"targetLength,omitempty" json:"targetLength,omitempty"`
	OriginalSKU  string `bson:"originalSku,omitempty" json:"originalSku,omitempty"`
	FinalSKU     string `bson:"finalSku,omitempty" json:"finalSku,omitempty"`
}

// IsRequired reports whether op must be performed.
func (f *FinishingMetadata) IsRequired(op Step) bool {
	return containsStep(f.RequiredOps, op)
}

// IsDone reports whether op has been performed.
func (f *FinishingMetadata) IsDone(op Step) bool {
	return containsStep(f.CompletedOps, op)
}

// Pending returns required operations not yet performed, other than except.
func (f *FinishingMetadata) Pending(except Step) []Step {
	var pending []Step
	for _, op := range f.RequiredOps {
		if op != except && !f.IsDone(op) {
			pending = append(pending, op)
		}
	}
	return pending
}

// PackingMetadata tracks packing of one item.
type PackingMetadata struct {
	ScannedItemID string `bson:"scannedItemId,omitempty" json:"scannedItemId,omitempty"`
	BinID         string `bson:"binId,omitempty" json:"binId,omitempty"`
}

// RecoveryMetadata tracks rework of a defective item.
type RecoveryMetadata struct {
	ProblemID           string           `bson:"problemId,omitempty" json:"problemId,omitempty"`
	FailedStep          Step             `bson:"failedStep,omitempty" json:"failedStep,omitempty"`
	FailureReason       string           `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	SuggestedResolution ResolutionAction `bson:"suggestedResolution,omitempty" json:"suggestedResolution,omitempty"`
	Resolution          ResolutionAction `bson:"resolution,omitempty" json:"resolution,omitempty"`
	Notes               string           `bson:"notes,omitempty" json:"notes,omitempty"`
}

// NewMetadata returns empty metadata with the member for requestType set.
func NewMetadata(requestType RequestType) Metadata {
	var m Metadata
	switch requestType {
	case RequestTypeMove:
		m.Move = &MoveMetadata{}
	case RequestTypePattern:
		m.Pattern = &PatternMetadata{}
	case RequestTypeCutting:
		m.Cutting = &CuttingMetadata{}
	case RequestTypeQC:
		m.QC = &QCMetadata{}
	case RequestTypeWash:
		m.Wash = &WashMetadata{}
	case RequestTypeFinishing:
		m.Finishing = &FinishingMetadata{}
	case RequestTypePacking:
		m.Packing = &PackingMetadata{}
	case RequestTypeRecovery:
		m.Recovery = &RecoveryMetadata{}
	}
	return m
}

func (m Metadata) members() map[RequestType]bool {
	return map[RequestType]bool{
		RequestTypeMove:      m.Move != nil,
		RequestTypePattern:   m.Pattern != nil,
		RequestTypeCutting:   m.Cutting != nil,
		RequestTypeQC:        m.QC != nil,
		RequestTypeWash:      m.Wash != nil,
		RequestTypeFinishing: m.Finishing != nil,
		RequestTypePacking:   m.Packing != nil,
		RequestTypeRecovery:  m.Recovery != nil,
	}
}

// CheckType verifies that only the member for requestType is set.
func (m Metadata) CheckType(requestType RequestType) error {
	for t, set := range m.members() {
		if set && t != requestType {
			return fmt.Errorf("%w: %s metadata on %s request", ErrMetadataMismatch, t, requestType)
		}
		if !set && t == requestType {
			return fmt.Errorf("%w: %s request without %s metadata", ErrMetadataMismatch, requestType, t)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	var c Metadata
	if m.Move != nil {
		v := *m.Move
		c.Move = &v
	}
	if m.Pattern != nil {
		v := *m.Pattern
		c.Pattern = &v
	}
	if m.Cutting != nil {
		v := *m.Cutting
		v.GeneratedItemIDs = append([]string(nil), m.Cutting.GeneratedItemIDs...)
		c.Cutting = &v
	}
	if m.QC != nil {
		v := *m.QC
		v.Measurements = append([]MeasurementResult(nil), m.QC.Measurements...)
		v.Defects = append([]DefectObservation(nil), m.QC.Defects...)
		if m.QC.VisualPassed != nil {
			passed := *m.QC.VisualPassed
			v.VisualPassed = &passed
		}
		c.QC = &v
	}
	if m.Wash != nil {
		v := *m.Wash
		if m.Wash.SentToLaundryAt != nil {
			t := *m.Wash.SentToLaundryAt
			v.SentToLaundryAt = &t
		}
		c.Wash = &v
	}
	if m.Finishing != nil {
		v := *m.Finishing
		v.RequiredOps = append([]Step(nil), m.Finishing.RequiredOps...)
		v.CompletedOps = append([]Step(nil), m.Finishing.CompletedOps...)
		c.Finishing = &v
	}
	if m.Packing != nil {
		v := *m.Packing
		c.Packing = &v
	}
	if m.Recovery != nil {
		v := *m.Recovery
		c.Recovery = &v
	}
	return c
}

func containsStep(steps []Step, s Step) bool {
	for _, candidate := range steps {
		if candidate == s {
			return true
		}
	}
	return false
}
