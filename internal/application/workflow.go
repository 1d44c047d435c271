package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

// WorkflowHandler supplies the step table of one request type.
type WorkflowHandler interface {
	Workflow() *Workflow
}

// Workflow is the declarative step table of a request type. Every step that
// can be current, including Entry, has a spec whose Next lists the steps an
// operator may advance to from it.
type Workflow struct {
	Type  domain.RequestType
	Entry domain.Step
	Steps map[domain.Step]StepSpec

	// CanRetry vetoes reopening a failed request at Entry. Nil allows it.
	CanRetry func(ctx context.Context, sc *StepContext) error
}

// StepSpec describes one step.
type StepSpec struct {
	Next []domain.Step

	// NewPayload returns a pointer to the payload struct for this step.
	// Nil means the step takes no payload.
	NewPayload func() any

	// Validate checks preconditions without mutating anything.
	Validate func(ctx context.Context, sc *StepContext) error

	// Apply performs the step's mutations.
	Apply func(ctx context.Context, sc *StepContext) (*StepOutcome, error)

	// AutoNext is recorded immediately after this step succeeds.
	AutoNext domain.Step
}

// Spec returns the spec for step.
func (w *Workflow) Spec(step domain.Step) (StepSpec, bool) {
	spec, ok := w.Steps[step]
	return spec, ok
}

// StepOutcome is what a step did.
type StepOutcome struct {
	Changes  map[string]string
	Complete bool
	Defect   *Defect
	Actions  []NextAction
}

// Defect routes the request into the defect branch instead of recording the step.
type Defect struct {
	Step          domain.Step
	Category      domain.ProblemCategory
	Severity      domain.ProblemSeverity
	Reason        string
	Details       map[string]string
	MarkDefective bool
}

// NextActionKind names a chained effect.
type NextActionKind string

const (
	ActionCreateRequest NextActionKind = "CREATE_REQUEST"
	ActionAdvanceOrder  NextActionKind = "ADVANCE_ORDER"
	ActionRefillOrder   NextActionKind = "REFILL_ORDER"
)

// NextAction is a follow-up a handler asks for. The Coordinator executes
// actions in the same transaction as the step that produced them.
type NextAction struct {
	Kind           NextActionKind
	Request        *CreateRequestCommand
	OrderID        string
	OrderStatus    domain.OrderStatus
	// ExcludeItemIDs are items a refill must not match back to the order.
	ExcludeItemIDs []string
}

// CreateRequestAction builds a CREATE_REQUEST action.
func CreateRequestAction(cmd CreateRequestCommand) NextAction {
	return NextAction{Kind: ActionCreateRequest, Request: &cmd}
}

// AdvanceOrderAction builds an ADVANCE_ORDER action.
func AdvanceOrderAction(orderID string, status domain.OrderStatus) NextAction {
	return NextAction{Kind: ActionAdvanceOrder, OrderID: orderID, OrderStatus: status}
}

// RefillOrderAction builds a REFILL_ORDER action for units released from
// the order by the given items.
func RefillOrderAction(orderID string, released ...string) NextAction {
	return NextAction{Kind: ActionRefillOrder, OrderID: orderID, ExcludeItemIDs: released}
}

// StepContext is the state a step operates on. Items loaded through it are
// cached so several mutations of one item share a version.
type StepContext struct {
	Request    *domain.Request
	Payload    any
	OperatorID string
	Now        time.Time

	Store     domain.Store
	Rules     *domain.SKURules
	Allocator *Allocator
	NewID     func() string

	items map[string]*domain.InventoryItem
}

// Item loads the request item.
func (sc *StepContext) Item(ctx context.Context) (*domain.InventoryItem, error) {
	if sc.Request.ItemID == "" {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("%s request %s has no item", sc.Request.Type, sc.Request.ID))
	}
	return sc.LoadItem(ctx, sc.Request.ItemID)
}

// LoadItem loads any item by id.
func (sc *StepContext) LoadItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	if item, ok := sc.items[id]; ok {
		return item, nil
	}
	item, err := sc.Store.Items().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	if item == nil {
		return nil, errors.ErrNotFoundWithID("inventory item", id)
	}
	if sc.items == nil {
		sc.items = make(map[string]*domain.InventoryItem)
	}
	sc.items[id] = item
	return item, nil
}

// SaveItem writes an item loaded through this context.
func (sc *StepContext) SaveItem(ctx context.Context, item *domain.InventoryItem) error {
	if err := sc.Store.Items().Update(ctx, item); err != nil {
		return fmt.Errorf("failed to update inventory item %s: %w", item.ID, err)
	}
	return nil
}

// validateTransition checks that step may follow the request's current step.
func validateTransition(wf *Workflow, req *domain.Request, step domain.Step) (StepSpec, error) {
	if req.Status.IsTerminal() {
		return StepSpec{}, fmt.Errorf("%w: request %s is %s", domain.ErrRequestTerminal, req.ID, req.Status)
	}
	current, ok := wf.Spec(req.CurrentStep)
	if !ok {
		return StepSpec{}, fmt.Errorf("%w: %s has no step %q", domain.ErrInvalidStepTransition, wf.Type, req.CurrentStep)
	}
	target, ok := wf.Spec(step)
	if !ok || !containsStep(current.Next, step) {
		return StepSpec{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStepTransition, displayStep(req.CurrentStep), step)
	}
	return target, nil
}

func containsStep(steps []domain.Step, s domain.Step) bool {
	for _, candidate := range steps {
		if candidate == s {
			return true
		}
	}
	return false
}

func displayStep(s domain.Step) string {
	if s == domain.StepNone {
		return "START"
	}
	return string(s)
}
