package application

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/validation"
)

// Step payloads. Each step that takes operator input declares one of these.

// ItemScanPayload identifies a scanned item.
type ItemScanPayload struct {
	ItemID string `json:"itemId" validate:"required"`
}

// DestinationScanPayload identifies a scanned destination.
type DestinationScanPayload struct {
	Destination string `json:"destination" validate:"required"`
}

// MaterialValidationPayload identifies the fabric to cut.
type MaterialValidationPayload struct {
	MaterialID string `json:"materialId" validate:"required"`
}

// CuttingProcessPayload reports the cut.
type CuttingProcessPayload struct {
	WastePercentage *decimal.Decimal `json:"wastePercentage" validate:"required"`
	PiecesCut       int              `json:"piecesCut" validate:"gte=0"`
}

// PatternProcessPayload names the pattern used.
type PatternProcessPayload struct {
	PatternCode string `json:"patternCode" validate:"required"`
}

// OrderValidationPayload identifies the order being packed.
type OrderValidationPayload struct {
	OrderID string `json:"orderId" validate:"required"`
}

// BinPayload identifies a bin.
type BinPayload struct {
	BinID string `json:"binId" validate:"required"`
}

// OptionalBinPayload names a bin or leaves the choice to the allocator.
type OptionalBinPayload struct {
	BinID string `json:"binId,omitempty"`
}

// MeasurementsPayload carries measured dimensions by name.
type MeasurementsPayload struct {
	Measurements map[string]decimal.Decimal `json:"measurements" validate:"required,min=1"`
}

// VisualInspectionPayload reports a visual inspection.
type VisualInspectionPayload struct {
	Passed  *bool                      `json:"passed" validate:"required"`
	Defects []domain.DefectObservation `json:"defects,omitempty" validate:"dive"`
}

// HemPayload optionally overrides the hemmed length.
type HemPayload struct {
	Length string `json:"length,omitempty" validate:"omitempty,sku_length"`
}

// FinalQCPayload reports the final inspection.
type FinalQCPayload struct {
	Passed *bool  `json:"passed" validate:"required"`
	Notes  string `json:"notes,omitempty"`
}

// ResolutionPayload decides how a defect is handled.
type ResolutionPayload struct {
	Resolution domain.ResolutionAction `json:"resolution" validate:"required,oneof=REPAIR SCRAP DOWNGRADE"`
	Notes      string                  `json:"notes,omitempty"`
}

// decodePayload turns raw JSON or a typed value into the step's payload and
// validates its tags.
func decodePayload(spec StepSpec, step domain.Step, raw any) (any, error) {
	if spec.NewPayload == nil {
		return nil, nil
	}
	target := spec.NewPayload()

	var data []byte
	switch v := raw.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		want := reflect.TypeOf(target)
		got := reflect.ValueOf(v)
		switch {
		case got.Type() == want:
			target = v
		case got.Type() == want.Elem():
			ptr := reflect.New(want.Elem())
			ptr.Elem().Set(got)
			target = ptr.Interface()
		default:
			return nil, errors.ErrInvalidRequest(fmt.Sprintf("payload %T does not match step %s", v, step)).
				WithDetail("expected", want.Elem().Name())
		}
	}

	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, errors.ErrInvalidRequest(fmt.Sprintf("payload does not match step %s: %v", step, err))
		}
	}

	if appErr := validation.Struct(target); appErr != nil {
		return nil, appErr
	}
	return target, nil
}

func payloadAs[T any](sc *StepContext) *T {
	p, _ := sc.Payload.(*T)
	return p
}
