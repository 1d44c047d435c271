package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

type packingHandler struct{}

func (packingHandler) Workflow() *Workflow { return packingWorkflow }

var packingWorkflow = &Workflow{
	Type:  domain.RequestTypePacking,
	Entry: domain.StepNone,
	Steps: map[domain.Step]StepSpec{
		domain.StepNone: {Next: []domain.Step{domain.StepOrderValidation}},
		domain.StepOrderValidation: {
			Next:       []domain.Step{domain.StepItemScan},
			NewPayload: func() any { return &OrderValidationPayload{} },
			Apply:      validatePackingOrder,
		},
		domain.StepItemScan: {
			Next:       []domain.Step{domain.StepBinAssignment},
			NewPayload: func() any { return &ItemScanPayload{} },
			Apply:      scanPackingItem,
		},
		domain.StepBinAssignment: {
			Next:       []domain.Step{domain.StepPackingComplete},
			NewPayload: func() any { return &BinPayload{} },
			Apply:      assignPackingBin,
		},
		domain.StepPackingComplete: {
			Apply: completePacking,
		},
	},
	CanRetry: packingRetryable,
}

// packingRetryable refuses a retry once the scanned item has left the packing
// queue. The retry restarts at order validation and the item scan would never
// accept it again.
func packingRetryable(ctx context.Context, sc *StepContext) error {
	if sc.Request.ItemID == "" {
		return nil
	}
	item, err := sc.Item(ctx)
	if err != nil {
		return err
	}
	if item.Stage != domain.StageAvailable || item.Commitment != domain.CommitmentReadyForPacking {
		return fmt.Errorf("%w: item %s is already %s/%s", domain.ErrRequestNotRetryable, item.ID, item.Stage, item.Commitment)
	}
	return nil
}

func validatePackingOrder(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	orderID := payloadAs[OrderValidationPayload](sc).OrderID
	if sc.Request.OrderID != "" && sc.Request.OrderID != orderID {
		return nil, errors.ErrValidation(fmt.Sprintf("request %s packs order %s", sc.Request.ID, sc.Request.OrderID))
	}
	order, err := sc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, errors.ErrNotFoundWithID("order", orderID)
	}
	if order.Status != domain.OrderStatusReadyForPacking {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotReady, order.OrderNumber, order.Status)
	}

	sc.Request.OrderID = order.ID
	return &StepOutcome{Changes: map[string]string{"orderId": order.ID}}, nil
}

func scanPackingItem(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := scanItem(ctx, sc, payloadAs[ItemScanPayload](sc).ItemID)
	if err != nil {
		return nil, err
	}
	if item.Stage != domain.StageAvailable || item.Commitment != domain.CommitmentReadyForPacking {
		return nil, fmt.Errorf("%w: item %s is %s/%s", domain.ErrItemUnavailable, item.ID, item.Stage, item.Commitment)
	}
	if item.OrderID != sc.Request.OrderID {
		return nil, fmt.Errorf("%w: item %s, order %s", domain.ErrItemNotInOrder, item.ID, sc.Request.OrderID)
	}

	sc.Request.Metadata.Packing.ScannedItemID = item.ID
	return &StepOutcome{Changes: map[string]string{"itemId": item.ID}}, nil
}

func assignPackingBin(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	bin, err := assignItemToBin(ctx, sc, item, payloadAs[BinPayload](sc).BinID, domain.BinTypePacking)
	if err != nil {
		return nil, err
	}
	if err := item.Transition(domain.StagePacking, domain.CommitmentAssigned, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	sc.Request.Metadata.Packing.BinID = bin.ID
	sc.Request.BinID = bin.ID
	return &StepOutcome{Changes: map[string]string{
		"binId": bin.ID,
		"item":  string(item.Stage) + "/" + string(item.Commitment),
	}}, nil
}

func completePacking(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	if err := item.Transition(domain.StagePacking, domain.CommitmentPacked, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	return &StepOutcome{
		Complete: true,
		Changes:  map[string]string{"item": string(item.Stage) + "/" + string(item.Commitment)},
		Actions:  []NextAction{AdvanceOrderAction(sc.Request.OrderID, domain.OrderStatusPacked)},
	}, nil
}
