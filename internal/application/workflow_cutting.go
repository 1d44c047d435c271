package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

var (
	minWaste = decimal.Zero
	maxWaste = decimal.NewFromInt(100)
)

type cuttingHandler struct{}

func (cuttingHandler) Workflow() *Workflow { return cuttingWorkflow }

var cuttingWorkflow = &Workflow{
	Type:  domain.RequestTypeCutting,
	Entry: domain.StepNone,
	Steps: map[domain.Step]StepSpec{
		domain.StepNone: {Next: []domain.Step{domain.StepMaterialValidation}},
		domain.StepMaterialValidation: {
			Next:       []domain.Step{domain.StepCuttingProcess},
			NewPayload: func() any { return &MaterialValidationPayload{} },
			Apply:      validateMaterial,
		},
		domain.StepCuttingProcess: {
			Next:       []domain.Step{domain.StepCuttingComplete},
			NewPayload: func() any { return &CuttingProcessPayload{} },
			Validate:   validateWaste,
			Apply:      startCutting,
		},
		domain.StepCuttingComplete: {
			Apply: completeCutting,
		},
	},
}

func loadMaterial(ctx context.Context, sc *StepContext, id string) (*domain.Material, error) {
	material, err := sc.Store.Materials().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	if material == nil {
		return nil, errors.ErrNotFoundWithID("material", id)
	}
	return material, nil
}

func loadBatch(ctx context.Context, sc *StepContext) (*domain.ProductionBatch, error) {
	id := sc.Request.BatchID
	if id == "" {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("request %s has no batch", sc.Request.ID))
	}
	batch, err := sc.Store.Batches().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return nil, errors.ErrNotFoundWithID("batch", id)
	}
	return batch, nil
}

func validateMaterial(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	id := payloadAs[MaterialValidationPayload](sc).MaterialID
	if sc.Request.MaterialID != "" && sc.Request.MaterialID != id {
		return nil, errors.ErrValidation(fmt.Sprintf("request %s is for material %s", sc.Request.ID, sc.Request.MaterialID))
	}
	material, err := loadMaterial(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if !material.IsReadyToCut() {
		return nil, fmt.Errorf("%w: material %s is %s/%s", domain.ErrMaterialUnavailable, material.Code, material.Status, material.Condition)
	}
	if _, err := loadBatch(ctx, sc); err != nil {
		return nil, err
	}

	sc.Request.MaterialID = material.ID
	return &StepOutcome{Changes: map[string]string{"materialId": material.ID}}, nil
}

func validateWaste(ctx context.Context, sc *StepContext) error {
	waste := *payloadAs[CuttingProcessPayload](sc).WastePercentage
	if waste.LessThan(minWaste) || waste.GreaterThan(maxWaste) {
		return fmt.Errorf("%w: got %s", domain.ErrInvalidWastePercentage, waste.String())
	}
	return nil
}

func startCutting(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	p := payloadAs[CuttingProcessPayload](sc)

	material, err := loadMaterial(ctx, sc, sc.Request.MaterialID)
	if err != nil {
		return nil, err
	}
	if err := material.StartCutting(sc.Now); err != nil {
		return nil, err
	}
	if err := sc.Store.Materials().Update(ctx, material); err != nil {
		return nil, fmt.Errorf("failed to update material: %w", err)
	}

	batch, err := loadBatch(ctx, sc)
	if err != nil {
		return nil, err
	}
	switch batch.Status {
	case domain.BatchStatusInProgress:
	case domain.BatchStatusReady:
		if err := batch.TransitionTo(domain.BatchStatusInProgress, sc.Now); err != nil {
			return nil, err
		}
		if err := sc.Store.Batches().Update(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to update batch: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: batch %s is %s", domain.ErrBatchNotReady, batch.Code, batch.Status)
	}

	md := sc.Request.Metadata.Cutting
	waste := *p.WastePercentage
	md.WastePercentage = &waste
	md.PiecesCut = p.PiecesCut
	return &StepOutcome{Changes: map[string]string{
		"material":        string(material.Status) + "/" + string(material.Condition),
		"batch":           string(batch.Status),
		"wastePercentage": waste.String(),
	}}, nil
}

// completeCutting finishes the material and batch and creates the batch's
// garments in PRODUCTION.
func completeCutting(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	material, err := loadMaterial(ctx, sc, sc.Request.MaterialID)
	if err != nil {
		return nil, err
	}
	if err := material.FinishCutting(sc.Now); err != nil {
		return nil, err
	}
	if err := sc.Store.Materials().Update(ctx, material); err != nil {
		return nil, fmt.Errorf("failed to update material: %w", err)
	}

	batch, err := loadBatch(ctx, sc)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusInProgress {
		return nil, fmt.Errorf("%w: batch %s is %s", domain.ErrBatchNotInProgress, batch.Code, batch.Status)
	}
	if err := batch.TransitionTo(domain.BatchStatusCompleted, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.Store.Batches().Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to update batch: %w", err)
	}

	items, err := generateBatchItems(sc, batch)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := sc.Store.Items().Create(ctx, items...); err != nil {
			return nil, fmt.Errorf("failed to create batch items: %w", err)
		}
	}

	md := sc.Request.Metadata.Cutting
	for _, item := range items {
		md.GeneratedItemIDs = append(md.GeneratedItemIDs, item.ID)
	}
	return &StepOutcome{
		Complete: true,
		Changes: map[string]string{
			"material":       string(material.Status) + "/" + string(material.Condition),
			"batch":          string(batch.Status),
			"generatedItems": fmt.Sprint(len(items)),
		},
	}, nil
}

func generateBatchItems(sc *StepContext, batch *domain.ProductionBatch) ([]*domain.InventoryItem, error) {
	sku, err := sc.Rules.Parse(batch.SKU)
	if err != nil {
		return nil, err
	}
	items := make([]*domain.InventoryItem, 0, batch.Quantity)
	for i := 0; i < batch.Quantity; i++ {
		item := domain.NewInventoryItem(sc.NewID(), sku, domain.StageProduction, "CUTTING", sc.Now)
		item.BatchID = batch.ID
		items = append(items, item)
	}
	return items, nil
}
