package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

// LaundryLocation is where washed items sit outside any bin.
const LaundryLocation = "LAUNDRY"

type washHandler struct{}

func (washHandler) Workflow() *Workflow { return washWorkflow }

var washWorkflow = &Workflow{
	Type:  domain.RequestTypeWash,
	Entry: domain.StepAssignBin,
	Steps: map[domain.Step]StepSpec{
		domain.StepAssignBin: {Next: []domain.Step{domain.StepBinAssigned}},
		domain.StepBinAssigned: {
			Next:       []domain.Step{domain.StepReadyForLaundry},
			NewPayload: func() any { return &BinPayload{} },
			Validate:   checkWashGroup,
			Apply:      assignWashBin,
		},
		domain.StepReadyForLaundry: {Next: []domain.Step{domain.StepAtLaundry}},
		domain.StepAtLaundry: {
			Next:  []domain.Step{domain.StepCompleted},
			Apply: sendToLaundry,
		},
		domain.StepCompleted: {
			Apply: completeWash,
		},
	},
}

// checkWashGroup runs before any capacity check so a mismatched bin is
// reported as such even when full.
func checkWashGroup(ctx context.Context, sc *StepContext) error {
	binID := payloadAs[BinPayload](sc).BinID
	bin, err := sc.Store.Bins().FindByID(ctx, binID)
	if err != nil {
		return fmt.Errorf("failed to get bin: %w", err)
	}
	if bin == nil {
		return errors.ErrNotFoundWithID("bin", binID)
	}
	item, err := sc.Item(ctx)
	if err != nil {
		return err
	}
	sku, err := sc.Rules.Parse(item.SKU)
	if err != nil {
		return err
	}
	if group := sc.Rules.WashGroup(sku.Wash); group != bin.WashGroup {
		return fmt.Errorf("%w: item %s is %s, bin %s is %s", domain.ErrWashGroupMismatch, item.ID, group, bin.Code, bin.WashGroup)
	}
	return nil
}

func assignWashBin(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	bin, err := assignItemToBin(ctx, sc, item, payloadAs[BinPayload](sc).BinID, domain.BinTypeWash)
	if err != nil {
		return nil, err
	}
	if err := item.Transition(domain.StageWash, domain.CommitmentInProcess, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	sc.Request.Metadata.Wash.BinID = bin.ID
	sc.Request.BinID = bin.ID
	return &StepOutcome{Changes: map[string]string{
		"binId": bin.ID,
		"item":  string(item.Stage) + "/" + string(item.Commitment),
	}}, nil
}

func sendToLaundry(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	from := item.Location
	if err := removeFromBin(ctx, sc.Allocator, item, LaundryLocation, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	sent := sc.Now
	sc.Request.Metadata.Wash.SentToLaundryAt = &sent
	return &StepOutcome{Changes: map[string]string{"location": from + " -> " + item.Location}}, nil
}

// completeWash returns the item to QC. An item washed for an order takes the
// ordered wash.
func completeWash(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	changes := map[string]string{}
	if item.TargetSKU != "" && item.TargetSKU != item.SKU {
		current, err := sc.Rules.Parse(item.SKU)
		if err != nil {
			return nil, err
		}
		target, err := sc.Rules.Parse(item.TargetSKU)
		if err != nil {
			return nil, err
		}
		if current.Wash != target.Wash {
			rewritten := current
			rewritten.Wash = target.Wash
			item.Rewrite(rewritten, sc.Now)
			changes["sku"] = current.String() + " -> " + rewritten.String()
		}
	}
	if err := item.Transition(domain.StageQC, domain.CommitmentInProcess, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	changes["item"] = string(item.Stage) + "/" + string(item.Commitment)

	return &StepOutcome{
		Complete: true,
		Changes:  changes,
		Actions: []NextAction{CreateRequestAction(CreateRequestCommand{
			Type:            domain.RequestTypeQC,
			ItemID:          item.ID,
			OrderID:         item.OrderID,
			ParentRequestID: sc.Request.ID,
			CreatedBy:       sc.OperatorID,
		})},
	}, nil
}
