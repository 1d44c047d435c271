package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

// setupPackableOrder leaves ORDER-1 READY_FOR_PACKING with ITEM-1 waiting.
func setupPackableOrder(t *testing.T, f *fixture) {
	t.Helper()
	item := f.addCommittedItem(t, "ITEM-1", "ST-32-R-32-RAW", domain.StageStock, "ORDER-1", "ST-32-R-32-RAW")
	f.addProcessingOrder(t, "ORDER-1", item)
	f.moveItem(t, "ITEM-1", domain.StageAvailable, domain.CommitmentReadyForPacking)

	order := f.getOrder(t, "ORDER-1")
	require.NoError(t, order.TransitionTo(domain.OrderStatusReadyForPacking, f.now))
	require.NoError(t, f.store.Orders().Update(f.ctx, order))
}

func TestPacking_FullPath(t *testing.T) {
	f := newFixture(t)
	setupPackableOrder(t, f)
	f.addBin(t, "P1", domain.BinTypePacking, 4, 0)

	req := f.create(t, CreateRequestCommand{Type: domain.RequestTypePacking})
	res := f.advance(t, req.ID, domain.StepOrderValidation, OrderValidationPayload{OrderID: "ORDER-1"})
	assert.Equal(t, "ORDER-1", res.Request.OrderID)

	res = f.advance(t, req.ID, domain.StepItemScan, ItemScanPayload{ItemID: "ITEM-1"})
	assert.Equal(t, "ITEM-1", res.Request.Metadata.Packing.ScannedItemID)

	f.advance(t, req.ID, domain.StepBinAssignment, BinPayload{BinID: "P1"})
	item := f.getItem(t, "ITEM-1")
	assert.Equal(t, domain.StagePacking, item.Stage)
	assert.Equal(t, domain.CommitmentAssigned, item.Commitment)
	assert.Equal(t, 1, f.getBin(t, "P1").CurrentCount)

	res = f.advance(t, req.ID, domain.StepPackingComplete, nil)
	assert.Equal(t, string(domain.RequestStatusCompleted), res.Request.Status)
	assert.Equal(t, "P1", res.Request.Metadata.Packing.BinID)
	assert.Equal(t, domain.CommitmentPacked, f.getItem(t, "ITEM-1").Commitment)
	assert.Equal(t, domain.OrderStatusPacked, f.getOrder(t, "ORDER-1").Status)
}

func TestPacking_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(t *testing.T, f *fixture)
		orderID  string
		itemID   string
		binID    string
		wantStep domain.Step
		wantCode string
	}{
		{
			name: "order not ready",
			prepare: func(t *testing.T, f *fixture) {
				f.addOrder(t, "ORDER-2", domain.OrderItem{ID: "L1", SKU: "ST-32-R-32-RAW", Quantity: 1})
			},
			orderID:  "ORDER-2",
			wantStep: domain.StepNone,
			wantCode: errors.CodeUnavailable,
		},
		{
			name:     "unknown order",
			orderID:  "ORDER-9",
			wantStep: domain.StepNone,
			wantCode: errors.CodeNotFound,
		},
		{
			name: "item of another order",
			prepare: func(t *testing.T, f *fixture) {
				f.addCommittedItem(t, "ITEM-2", "ST-32-R-32-RAW", domain.StageStock, "ORDER-2", "ST-32-R-32-RAW")
				f.moveItem(t, "ITEM-2", domain.StageAvailable, domain.CommitmentReadyForPacking)
			},
			orderID:  "ORDER-1",
			itemID:   "ITEM-2",
			wantStep: domain.StepOrderValidation,
			wantCode: errors.CodeValidation,
		},
		{
			name: "item not finished",
			prepare: func(t *testing.T, f *fixture) {
				f.addItem(t, "ITEM-3", "ST-32-R-32-RAW", domain.StageStock)
			},
			orderID:  "ORDER-1",
			itemID:   "ITEM-3",
			wantStep: domain.StepOrderValidation,
			wantCode: errors.CodeUnavailable,
		},
		{
			name: "full packing bin",
			prepare: func(t *testing.T, f *fixture) {
				f.addBin(t, "P2", domain.BinTypePacking, 10, 10)
			},
			orderID:  "ORDER-1",
			itemID:   "ITEM-1",
			binID:    "P2",
			wantStep: domain.StepItemScan,
			wantCode: errors.CodeResourceExhausted,
		},
		{
			name: "storage bin",
			prepare: func(t *testing.T, f *fixture) {
				f.addBin(t, "S1", domain.BinTypeStorage, 10, 0)
			},
			orderID:  "ORDER-1",
			itemID:   "ITEM-1",
			binID:    "S1",
			wantStep: domain.StepItemScan,
			wantCode: errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			setupPackableOrder(t, f)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			req := f.create(t, CreateRequestCommand{Type: domain.RequestTypePacking})

			steps := []struct {
				step    domain.Step
				payload any
			}{
				{domain.StepOrderValidation, OrderValidationPayload{OrderID: tt.orderID}},
				{domain.StepItemScan, ItemScanPayload{ItemID: tt.itemID}},
				{domain.StepBinAssignment, BinPayload{BinID: tt.binID}},
			}
			var err error
			for _, s := range steps {
				if _, err = f.step(req.ID, s.step, s.payload); err != nil {
					break
				}
			}
			requireCode(t, err, tt.wantCode)
			assert.Equal(t, tt.wantStep, f.getRequest(t, req.ID).CurrentStep)

			if tt.binID != "" {
				bin := f.getBin(t, tt.binID)
				before := 0
				if tt.binID == "P2" {
					before = 10
				}
				assert.Equal(t, before, bin.CurrentCount)
				assert.Equal(t, domain.StageAvailable, f.getItem(t, "ITEM-1").Stage)
			}
		})
	}
}

func TestPacking_RetryAfterFailure(t *testing.T) {
	tests := []struct {
		name          string
		steps         func(t *testing.T, f *fixture, id string)
		markDefective bool
		wantRetry     bool
	}{
		{
			name: "failed after the item scan",
			steps: func(t *testing.T, f *fixture, id string) {
				f.advance(t, id, domain.StepOrderValidation, OrderValidationPayload{OrderID: "ORDER-1"})
				f.advance(t, id, domain.StepItemScan, ItemScanPayload{ItemID: "ITEM-1"})
			},
			wantRetry: true,
		},
		{
			name: "failed after bin assignment",
			steps: func(t *testing.T, f *fixture, id string) {
				f.advance(t, id, domain.StepOrderValidation, OrderValidationPayload{OrderID: "ORDER-1"})
				f.advance(t, id, domain.StepItemScan, ItemScanPayload{ItemID: "ITEM-1"})
				f.advance(t, id, domain.StepBinAssignment, BinPayload{BinID: "P1"})
			},
		},
		{
			name: "item marked defective",
			steps: func(t *testing.T, f *fixture, id string) {
				f.advance(t, id, domain.StepOrderValidation, OrderValidationPayload{OrderID: "ORDER-1"})
				f.advance(t, id, domain.StepItemScan, ItemScanPayload{ItemID: "ITEM-1"})
			},
			markDefective: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			setupPackableOrder(t, f)
			f.addBin(t, "P1", domain.BinTypePacking, 4, 0)

			req := f.create(t, CreateRequestCommand{Type: domain.RequestTypePacking})
			tt.steps(t, f, req.ID)

			_, err := f.engine.ReportProblem(f.ctx, ReportProblemCommand{
				RequestID: req.ID, Category: domain.ProblemOther, Severity: domain.SeverityMinor,
				Description: "tape gun jammed", MarkDefective: tt.markDefective, OperatorID: operator,
			})
			require.NoError(t, err)

			dto, err := f.engine.Retry(f.ctx, RetryRequestCommand{RequestID: req.ID, OperatorID: operator})
			if !tt.wantRetry {
				requireCode(t, err, errors.CodeInvalidTransition)
				assert.ErrorIs(t, err, domain.ErrRequestNotRetryable)
				assert.Equal(t, domain.RequestStatusFailed, f.getRequest(t, req.ID).Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, string(domain.StepNone), dto.CurrentStep)
			f.advance(t, req.ID, domain.StepOrderValidation, OrderValidationPayload{OrderID: "ORDER-1"})
			f.advance(t, req.ID, domain.StepItemScan, ItemScanPayload{ItemID: "ITEM-1"})
			f.advance(t, req.ID, domain.StepBinAssignment, BinPayload{BinID: "P1"})
			res := f.advance(t, req.ID, domain.StepPackingComplete, nil)
			assert.Equal(t, string(domain.RequestStatusCompleted), res.Request.Status)
		})
	}
}
