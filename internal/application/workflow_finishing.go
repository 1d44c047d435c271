package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

var finishingOps = []domain.Step{domain.StepButton, domain.StepNametag, domain.StepHem, domain.StepFinalQC}

type finishingHandler struct{}

func (finishingHandler) Workflow() *Workflow { return finishingWorkflow }

var finishingWorkflow = &Workflow{
	Type:  domain.RequestTypeFinishing,
	Entry: domain.StepOperationsPending,
	Steps: map[domain.Step]StepSpec{
		domain.StepOperationsPending: {Next: finishingOps},
		domain.StepButton: {
			Next:     finishingOps,
			Validate: checkFinishingOp(domain.StepButton),
			Apply:    finishSimpleOp(domain.StepButton),
		},
		domain.StepNametag: {
			Next:     finishingOps,
			Validate: checkFinishingOp(domain.StepNametag),
			Apply:    finishSimpleOp(domain.StepNametag),
		},
		domain.StepHem: {
			Next:       finishingOps,
			NewPayload: func() any { return &HemPayload{} },
			Validate:   checkFinishingOp(domain.StepHem),
			Apply:      hem,
		},
		domain.StepFinalQC: {
			NewPayload: func() any { return &FinalQCPayload{} },
			Validate:   checkFinalQC,
			Apply:      finalQC,
		},
	},
}

// planFinishing lists the operations a garment needs. HEM is only required
// when the ordered length differs from the item's and is not universal.
func planFinishing(item *domain.InventoryItem) (*domain.FinishingMetadata, error) {
	plan := &domain.FinishingMetadata{
		RequiredOps: []domain.Step{domain.StepButton, domain.StepNametag},
		OriginalSKU: item.SKU,
	}
	if item.TargetSKU != "" {
		current, err := domain.ParseSKU(item.SKU)
		if err != nil {
			return nil, err
		}
		target, err := domain.ParseSKU(item.TargetSKU)
		if err != nil {
			return nil, err
		}
		if target.Length != current.Length && !target.IsUniversalLength() {
			plan.RequiredOps = append(plan.RequiredOps, domain.StepHem)
			plan.TargetLength = target.Length
		}
	}
	plan.RequiredOps = append(plan.RequiredOps, domain.StepFinalQC)
	return plan, nil
}

func checkFinishingOp(op domain.Step) func(context.Context, *StepContext) error {
	return func(ctx context.Context, sc *StepContext) error {
		md := sc.Request.Metadata.Finishing
		if !md.IsRequired(op) {
			return fmt.Errorf("%w: %s", domain.ErrFinishingOpNotRequired, op)
		}
		if md.IsDone(op) {
			return fmt.Errorf("%w: %s", domain.ErrFinishingOpDone, op)
		}
		return nil
	}
}

func checkFinalQC(ctx context.Context, sc *StepContext) error {
	if err := checkFinishingOp(domain.StepFinalQC)(ctx, sc); err != nil {
		return err
	}
	if pending := sc.Request.Metadata.Finishing.Pending(domain.StepFinalQC); len(pending) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrFinishingIncomplete, pending)
	}
	return nil
}

func finishSimpleOp(op domain.Step) func(context.Context, *StepContext) (*StepOutcome, error) {
	return func(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
		md := sc.Request.Metadata.Finishing
		md.CompletedOps = append(md.CompletedOps, op)
		return &StepOutcome{Changes: map[string]string{"operation": string(op)}}, nil
	}
}

func hem(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	md := sc.Request.Metadata.Finishing
	length := payloadAs[HemPayload](sc).Length
	if length == "" {
		length = md.TargetLength
	}
	if length == "" {
		return nil, errors.ErrValidationWithFields("hem length is required", map[string]string{"length": "is required"})
	}
	if err := sc.Rules.ValidateLength(length); err != nil {
		return nil, err
	}

	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	sku, err := sc.Rules.Parse(item.SKU)
	if err != nil {
		return nil, err
	}
	hemmed := sku.WithLength(length)
	item.Rewrite(hemmed, sc.Now)
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	if md.OriginalSKU == "" {
		md.OriginalSKU = sku.String()
	}
	md.FinalSKU = hemmed.String()
	md.CompletedOps = append(md.CompletedOps, domain.StepHem)
	return &StepOutcome{Changes: map[string]string{
		"operation": string(domain.StepHem),
		"sku":       sku.String() + " -> " + hemmed.String(),
	}}, nil
}

// finalQC releases the garment for packing, or sends it to recovery.
func finalQC(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	p := payloadAs[FinalQCPayload](sc)
	md := sc.Request.Metadata.Finishing
	if !*p.Passed {
		reason := "final inspection failed"
		if p.Notes != "" {
			reason += ": " + p.Notes
		}
		return &StepOutcome{Defect: &Defect{
			Step:          domain.StepFinalQC,
			Category:      domain.ProblemVisual,
			Severity:      domain.SeverityMajor,
			Reason:        reason,
			MarkDefective: true,
		}}, nil
	}

	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	md.CompletedOps = append(md.CompletedOps, domain.StepFinalQC)
	if md.FinalSKU == "" {
		md.FinalSKU = item.SKU
	}

	outcome := &StepOutcome{Complete: true}
	if item.OrderID != "" {
		if err := item.Transition(domain.StageAvailable, domain.CommitmentReadyForPacking, sc.Now); err != nil {
			return nil, err
		}
		outcome.Actions = []NextAction{
			CreateRequestAction(CreateRequestCommand{
				Type:            domain.RequestTypePacking,
				ItemID:          item.ID,
				OrderID:         item.OrderID,
				ParentRequestID: sc.Request.ID,
				CreatedBy:       sc.OperatorID,
			}),
			AdvanceOrderAction(item.OrderID, domain.OrderStatusReadyForPacking),
		}
	} else if err := item.Release(domain.StageAvailable, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	outcome.Changes = map[string]string{
		"operation": string(domain.StepFinalQC),
		"item":      string(item.Stage) + "/" + string(item.Commitment),
	}
	return outcome, nil
}
