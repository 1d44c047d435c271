package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

// ScrapLocation is where scrapped items end up.
const ScrapLocation = "SCRAP"

type recoveryHandler struct{}

func (recoveryHandler) Workflow() *Workflow { return recoveryWorkflow }

var recoveryWorkflow = &Workflow{
	Type:  domain.RequestTypeRecovery,
	Entry: domain.StepAssessmentRequired,
	Steps: map[domain.Step]StepSpec{
		domain.StepAssessmentRequired: {Next: []domain.Step{domain.StepResolutionDecided}},
		domain.StepResolutionDecided: {
			Next:       []domain.Step{domain.StepRepairComplete, domain.StepScrapConfirmed, domain.StepDowngradeConfirmed},
			NewPayload: func() any { return &ResolutionPayload{} },
			Apply:      decideResolution,
		},
		domain.StepRepairComplete: {
			Validate: requireResolution(domain.ResolutionRepair),
			Apply:    completeRepair,
		},
		domain.StepScrapConfirmed: {
			Validate: requireResolution(domain.ResolutionScrap),
			Apply:    confirmScrap,
		},
		domain.StepDowngradeConfirmed: {
			Validate: requireResolution(domain.ResolutionDowngrade),
			Apply:    confirmDowngrade,
		},
	},
}

func decideResolution(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	p := payloadAs[ResolutionPayload](sc)
	md := sc.Request.Metadata.Recovery
	md.Resolution = p.Resolution
	md.Notes = p.Notes

	changes := map[string]string{"resolution": string(p.Resolution)}
	if md.SuggestedResolution != "" && md.SuggestedResolution != p.Resolution {
		changes["suggested"] = string(md.SuggestedResolution)
	}
	return &StepOutcome{Changes: changes}, nil
}

func requireResolution(action domain.ResolutionAction) func(context.Context, *StepContext) error {
	return func(ctx context.Context, sc *StepContext) error {
		if decided := sc.Request.Metadata.Recovery.Resolution; decided != action {
			return fmt.Errorf("%w: decided %s, confirming %s", domain.ErrInvalidResolutionAction, decided, action)
		}
		return nil
	}
}

// resolveProblem closes the problem that opened this recovery, if any.
func resolveProblem(ctx context.Context, sc *StepContext, action domain.ResolutionAction) error {
	id := sc.Request.Metadata.Recovery.ProblemID
	if id == "" {
		return nil
	}
	problem, err := sc.Store.Problems().FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get problem: %w", err)
	}
	if problem == nil {
		return errors.ErrNotFoundWithID("problem", id)
	}
	if err := problem.Resolve(action, sc.Now); err != nil {
		return err
	}
	if err := sc.Store.Problems().Update(ctx, problem); err != nil {
		return fmt.Errorf("failed to update problem: %w", err)
	}
	return nil
}

// detachFromOrder drops the item's assignment from its order. The returned
// actions match a replacement for the freed unit, then re-check whether the
// order is ready.
func detachFromOrder(ctx context.Context, sc *StepContext, item *domain.InventoryItem) ([]NextAction, error) {
	if item.OrderID == "" {
		return nil, nil
	}
	order, err := sc.Store.Orders().FindByID(ctx, item.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	if !order.Unassign(item.ID) {
		return nil, nil
	}
	order.UpdatedAt = sc.Now
	if err := sc.Store.Orders().Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return []NextAction{
		RefillOrderAction(order.ID, item.ID),
		AdvanceOrderAction(order.ID, domain.OrderStatusReadyForPacking),
	}, nil
}

func completeRepair(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	commitment := domain.CommitmentUncommitted
	if item.OrderID != "" {
		commitment = domain.CommitmentCommitted
	}
	if err := item.Transition(domain.StageQC, commitment, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	if err := resolveProblem(ctx, sc, domain.ResolutionRepair); err != nil {
		return nil, err
	}

	return &StepOutcome{
		Complete: true,
		Changes:  map[string]string{"item": string(item.Stage) + "/" + string(item.Commitment)},
		Actions: []NextAction{CreateRequestAction(CreateRequestCommand{
			Type:            domain.RequestTypeQC,
			ItemID:          item.ID,
			OrderID:         item.OrderID,
			ParentRequestID: sc.Request.ID,
			CreatedBy:       sc.OperatorID,
		})},
	}, nil
}

func confirmScrap(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	if err := markDefective(item, sc); err != nil {
		return nil, err
	}
	if err := removeFromBin(ctx, sc.Allocator, item, ScrapLocation, sc.Now); err != nil {
		return nil, err
	}
	actions, err := detachFromOrder(ctx, sc, item)
	if err != nil {
		return nil, err
	}
	if err := item.Release(domain.StageScrapped, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	if err := resolveProblem(ctx, sc, domain.ResolutionScrap); err != nil {
		return nil, err
	}

	return &StepOutcome{
		Complete: true,
		Changes:  map[string]string{"item": string(item.Stage), "location": item.Location},
		Actions:  actions,
	}, nil
}

func confirmDowngrade(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	if err := markDefective(item, sc); err != nil {
		return nil, err
	}
	actions, err := detachFromOrder(ctx, sc, item)
	if err != nil {
		return nil, err
	}
	if err := item.Release(domain.StageStock, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	if err := resolveProblem(ctx, sc, domain.ResolutionDowngrade); err != nil {
		return nil, err
	}

	return &StepOutcome{
		Complete: true,
		Changes:  map[string]string{"item": string(item.Stage) + "/" + string(item.Commitment)},
		Actions:  actions,
	}, nil
}
