package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
)

// failWithDefect fails the request, records a Problem and returns the action
// that spawns the follow-up request: WASH for measurement problems, RECOVERY
// for everything else. The caller persists the request.
func (e *Engine) failWithDefect(ctx context.Context, sc *StepContext, d Defect) (*domain.Problem, NextAction, error) {
	req := sc.Request
	if d.Severity == "" {
		d.Severity = domain.SeverityMajor
	}
	if d.Category == "" {
		d.Category = domain.ProblemOther
	}

	problem := &domain.Problem{
		ID:              sc.NewID(),
		ItemID:          req.ItemID,
		RequestID:       req.ID,
		Category:        d.Category,
		Severity:        d.Severity,
		DiscoveredStage: req.Type,
		Description:     d.Reason,
		Resolution:      domain.SuggestedResolution(d.Severity),
		ReportedBy:      sc.OperatorID,
		ReportedAt:      sc.Now,
	}
	if err := sc.Store.Problems().Create(ctx, problem); err != nil {
		return nil, NextAction{}, fmt.Errorf("failed to create problem: %w", err)
	}

	details := map[string]string{
		"category": string(d.Category),
		"severity": string(d.Severity),
	}
	for k, v := range d.Details {
		details[k] = v
	}
	failure := domain.Failure{Step: d.Step, Reason: d.Reason, ProblemID: problem.ID, Details: details}
	if err := req.Fail(failure, sc.OperatorID, sc.Now); err != nil {
		return nil, NextAction{}, err
	}

	if d.MarkDefective && req.ItemID != "" {
		item, err := sc.Item(ctx)
		if err != nil {
			return nil, NextAction{}, err
		}
		if err := markDefective(item, sc); err != nil {
			return nil, NextAction{}, err
		}
		if err := sc.SaveItem(ctx, item); err != nil {
			return nil, NextAction{}, err
		}
	}

	follow := CreateRequestCommand{
		ItemID:          req.ItemID,
		OrderID:         req.OrderID,
		ParentRequestID: req.ID,
		CreatedBy:       sc.OperatorID,
	}
	if d.Category == domain.ProblemMeasurement {
		follow.Type = domain.RequestTypeWash
		follow.Metadata = &domain.Metadata{Wash: &domain.WashMetadata{
			ProblemID:     problem.ID,
			FailureReason: d.Reason,
		}}
	} else {
		follow.Type = domain.RequestTypeRecovery
		follow.Metadata = &domain.Metadata{Recovery: &domain.RecoveryMetadata{
			ProblemID:           problem.ID,
			FailedStep:          d.Step,
			FailureReason:       d.Reason,
			SuggestedResolution: problem.Resolution,
		}}
	}

	e.logger.WithContext(ctx).Warn("Defect detected",
		"requestId", req.ID,
		"itemId", req.ItemID,
		"problemId", problem.ID,
		"category", d.Category,
		"severity", d.Severity,
		"followUp", follow.Type,
	)
	return problem, CreateRequestAction(follow), nil
}

// markDefective puts the item on hold. The order link is kept.
func markDefective(item *domain.InventoryItem, sc *StepContext) error {
	if item.Stage == domain.StageDefective {
		return nil
	}
	return item.Transition(domain.StageDefective, domain.CommitmentOnHold, sc.Now)
}
