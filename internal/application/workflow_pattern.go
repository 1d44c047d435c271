package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
)

type patternHandler struct{}

func (patternHandler) Workflow() *Workflow { return patternWorkflow }

var patternWorkflow = &Workflow{
	Type:  domain.RequestTypePattern,
	Entry: domain.StepNone,
	Steps: map[domain.Step]StepSpec{
		domain.StepNone: {Next: []domain.Step{domain.StepBatchValidation}},
		domain.StepBatchValidation: {
			Next:     []domain.Step{domain.StepPatternProcess},
			Validate: requireBatchStatus(domain.BatchStatusReady, domain.ErrBatchNotReady),
		},
		domain.StepPatternProcess: {
			Next:       []domain.Step{domain.StepPatternComplete},
			NewPayload: func() any { return &PatternProcessPayload{} },
			Validate:   requireBatchStatus(domain.BatchStatusReady, domain.ErrBatchNotReady),
			Apply:      startPattern,
		},
		domain.StepPatternComplete: {
			Validate: requireBatchStatus(domain.BatchStatusInProgress, domain.ErrBatchNotInProgress),
			Apply:    completePattern,
		},
	},
}

func requireBatchStatus(status domain.BatchStatus, sentinel error) func(context.Context, *StepContext) error {
	return func(ctx context.Context, sc *StepContext) error {
		batch, err := loadBatch(ctx, sc)
		if err != nil {
			return err
		}
		if batch.Status != status {
			return fmt.Errorf("%w: batch %s is %s", sentinel, batch.Code, batch.Status)
		}
		return nil
	}
}

func advanceBatch(ctx context.Context, sc *StepContext, next domain.BatchStatus) (*domain.ProductionBatch, error) {
	batch, err := loadBatch(ctx, sc)
	if err != nil {
		return nil, err
	}
	if err := batch.TransitionTo(next, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.Store.Batches().Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to update batch: %w", err)
	}
	return batch, nil
}

func startPattern(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	code := payloadAs[PatternProcessPayload](sc).PatternCode
	batch, err := advanceBatch(ctx, sc, domain.BatchStatusInProgress)
	if err != nil {
		return nil, err
	}
	sc.Request.Metadata.Pattern.PatternCode = code
	return &StepOutcome{Changes: map[string]string{"patternCode": code, "batch": string(batch.Status)}}, nil
}

func completePattern(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	batch, err := advanceBatch(ctx, sc, domain.BatchStatusCompleted)
	if err != nil {
		return nil, err
	}
	return &StepOutcome{Complete: true, Changes: map[string]string{"batch": string(batch.Status)}}, nil
}
