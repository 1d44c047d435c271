package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
	"github.com/wms-platform/production-service/pkg/tracing"
	"github.com/wms-platform/production-service/pkg/validation"
)

// Coordinator fulfills orders and executes the next actions requested by
// workflow steps.
type Coordinator struct {
	engine    *Engine
	matcher   *Matcher
	allocator *Allocator
	store     domain.Store
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewCoordinator creates a Coordinator and registers it as the engine's
// action executor.
func NewCoordinator(engine *Engine, matcher *Matcher, logger *logging.Logger, m *metrics.Metrics) *Coordinator {
	c := &Coordinator{
		engine:    engine,
		matcher:   matcher,
		allocator: engine.allocator,
		store:     engine.store,
		logger:    logger.WithComponent("coordinator"),
		metrics:   m,
	}
	engine.setExecutor(c)
	return c
}

// ExecuteNextActions runs actions in their own transaction.
func (c *Coordinator) ExecuteNextActions(ctx context.Context, actions []NextAction, operatorID string) (*NextActionsResultDTO, error) {
	var result *actionResult
	err := withTransaction(ctx, c.store, c.engine.tx, "next_actions", func(ctx context.Context) error {
		var err error
		result, err = c.executeActions(ctx, actions, operatorID)
		return err
	})
	if err != nil {
		return nil, toAppError(err)
	}

	c.engine.afterActions(ctx, operatorID, result)
	dto := &NextActionsResultDTO{Spawned: ToRequestDTOs(result.Spawned)}
	for _, o := range result.Orders {
		dto.Orders = append(dto.Orders, ToOrderDTO(o))
	}
	return dto, nil
}

func (c *Coordinator) executeActions(ctx context.Context, actions []NextAction, operatorID string) (*actionResult, error) {
	result := &actionResult{}
	for _, action := range actions {
		switch action.Kind {
		case ActionCreateRequest:
			if action.Request == nil {
				return nil, errors.ErrInvalidRequest("create request action without a request")
			}
			cmd := *action.Request
			if cmd.CreatedBy == "" {
				cmd.CreatedBy = operatorID
			}
			req, err := c.engine.createRequest(ctx, cmd)
			if err != nil {
				return nil, err
			}
			result.Spawned = append(result.Spawned, req)
		case ActionRefillOrder:
			refilled, err := c.refillOrder(ctx, action, operatorID)
			if err != nil {
				return nil, err
			}
			result.merge(refilled)
		case ActionAdvanceOrder:
			order, err := c.advanceOrder(ctx, action.OrderID, action.OrderStatus)
			if err != nil {
				return nil, err
			}
			if order != nil {
				result.Orders = append(result.Orders, order)
			}
		default:
			return nil, errors.ErrInvalidRequest(fmt.Sprintf("unknown next action %q", action.Kind))
		}
	}
	return result, nil
}

// advanceOrder moves the order to target once every unit has an item and
// every item has caught up. It returns nil when the order did not change.
func (c *Coordinator) advanceOrder(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := c.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, errors.ErrNotFoundWithID("order", orderID)
	}
	if !order.Status.CanTransitionTo(target) || target == domain.OrderStatusCancelled {
		return nil, nil
	}

	ids := order.AssignedItemIDs()
	if len(ids) == 0 || !order.IsFullyAssigned() {
		return nil, nil
	}
	for _, id := range ids {
		item, err := c.store.Items().FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get inventory item: %w", err)
		}
		if item == nil || !itemReadyFor(item, target) {
			return nil, nil
		}
	}

	if err := order.TransitionTo(target, c.engine.now()); err != nil {
		return nil, err
	}
	if err := c.store.Orders().Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	c.logger.WithContext(ctx).Info("Order advanced", "orderId", order.ID, "status", order.Status)
	return order, nil
}

func itemReadyFor(item *domain.InventoryItem, target domain.OrderStatus) bool {
	switch target {
	case domain.OrderStatusReadyForPacking:
		return (item.Stage == domain.StageAvailable && item.Commitment == domain.CommitmentReadyForPacking) ||
			item.Stage == domain.StagePacking || item.Stage == domain.StageShipped
	case domain.OrderStatusPacked:
		return item.Commitment == domain.CommitmentPacked
	}
	return false
}

// ProcessOrder matches, commits and bins inventory for every unit of a NEW
// order and seeds the first production request of each item. Nothing is
// kept if any unit cannot be matched.
func (c *Coordinator) ProcessOrder(ctx context.Context, cmd ProcessOrderCommand) (*ProcessOrderResultDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "coordinator.ProcessOrder", attribute.String("order.id", cmd.OrderID))

	var (
		order   *domain.Order
		seeded  []*domain.Request
		matches []*MatchResult
	)
	err := withTransaction(ctx, c.store, c.engine.tx, "process_order", func(ctx context.Context) error {
		var err error
		order, seeded, matches, err = c.processOrder(ctx, cmd)
		return err
	})
	tracing.EndSpan(span, err)

	if err != nil {
		appErr := toAppError(err)
		outcome := "failed"
		if appErr.Is(errors.CodeSKUNotFound) {
			outcome = "sku_not_found"
		}
		c.metrics.RecordOrderProcessed(outcome)
		c.logger.WithContext(ctx).WithError(err).Warn("Order processing rejected",
			"orderId", cmd.OrderID, "code", appErr.Code)
		return nil, appErr
	}

	c.metrics.RecordOrderProcessed("processed")
	substituted := 0
	for _, m := range matches {
		if m.Tier != domain.TierExact {
			substituted++
		}
	}
	logAction(ctx, c.engine.audit, c.logger, AuditEvent{
		Type:    AuditOrderProcessed,
		ActorID: cmd.OperatorID,
		OrderID: order.ID,
		Metadata: map[string]string{
			"units":       fmt.Sprint(len(matches)),
			"substituted": fmt.Sprint(substituted),
			"bins":        fmt.Sprint(len(order.Shipment.BinIDs)),
		},
	})
	c.engine.afterActions(ctx, cmd.OperatorID, &actionResult{Spawned: seeded})
	c.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "production.order.processed",
		EntityType: "order",
		EntityID:   order.ID,
		Action:     "process",
		ActorID:    cmd.OperatorID,
		RelatedIDs: map[string]string{"orderNumber": order.OrderNumber, "units": fmt.Sprint(len(matches))},
	})

	return &ProcessOrderResultDTO{Order: ToOrderDTO(order), Requests: ToRequestDTOs(seeded)}, nil
}

func (c *Coordinator) processOrder(ctx context.Context, cmd ProcessOrderCommand) (*domain.Order, []*domain.Request, []*MatchResult, error) {
	order, err := c.store.Orders().FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil, nil, errors.ErrNotFoundWithID("order", cmd.OrderID)
	}
	if order.Status != domain.OrderStatusNew {
		return nil, nil, nil, errors.ErrInvalidOrderStatus(order.ID, string(order.Status))
	}

	now := c.engine.now()
	var (
		matches []*MatchResult
		items   []*domain.InventoryItem
		binIDs  []string
		seen    = make(map[string]bool)
	)
	for _, line := range order.Items {
		for unit := len(line.Assignments); unit < line.Quantity; unit++ {
			match, err := c.matcher.FindMatchingSKU(ctx, line.SKU, true)
			if err != nil {
				return nil, nil, nil, err
			}
			if match == nil {
				return nil, nil, nil, errors.ErrSKUNotFound(line.SKU).WithDetail("orderItemId", line.ID)
			}

			bin, err := c.assignUnit(ctx, order, line, match, now)
			if err != nil {
				return nil, nil, nil, err
			}
			if !seen[bin.ID] {
				seen[bin.ID] = true
				binIDs = append(binIDs, bin.ID)
			}
			matches = append(matches, match)
			items = append(items, match.Item)
		}
	}

	order.Shipment = &domain.ShipmentPrep{
		PreparedAt: now,
		PreparedBy: cmd.OperatorID,
		ItemCount:  len(items),
		BinIDs:     binIDs,
	}
	if err := order.TransitionTo(domain.OrderStatusProcessing, now); err != nil {
		return nil, nil, nil, err
	}
	if err := c.store.Orders().Update(ctx, order); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to update order: %w", err)
	}

	seeded := make([]*domain.Request, 0, len(items))
	for i, item := range items {
		req, err := c.engine.createRequest(ctx, CreateRequestCommand{
			Type:      firstStage(item, matches[i]),
			ItemID:    item.ID,
			OrderID:   order.ID,
			CreatedBy: cmd.OperatorID,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		seeded = append(seeded, req)
	}
	return order, seeded, matches, nil
}

// assignUnit commits match.Item to one unit of line and stocks it in a
// storage bin.
func (c *Coordinator) assignUnit(ctx context.Context, order *domain.Order, line domain.OrderItem, match *MatchResult, now time.Time) (*domain.Bin, error) {
	item := match.Item
	if err := item.CommitTo(order.ID, line.ID, line.SKU, now); err != nil {
		return nil, err
	}
	bin, err := reserveItemBin(ctx, c.allocator, item, domain.BinTypeStorage, now)
	if err != nil {
		return nil, err
	}
	if err := c.store.Items().Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to commit inventory item %s: %w", item.ID, err)
	}

	if err := order.Assign(line.ID, domain.Assignment{
		InventoryItemID: item.ID,
		MatchedSKU:      item.SKU,
		Tier:            match.Tier,
		Substitutions:   match.Substitutions,
		Adjustment:      match.Adjustment,
		BinID:           bin.ID,
	}); err != nil {
		return nil, err
	}
	return bin, nil
}

// refillOrder matches replacement items for the open units of a PROCESSING
// order and seeds their first request. Units that stay open, for lack of
// inventory or storage room, leave the order short; it cannot advance until
// they are filled.
func (c *Coordinator) refillOrder(ctx context.Context, action NextAction, operatorID string) (*actionResult, error) {
	order, err := c.store.Orders().FindByID(ctx, action.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, errors.ErrNotFoundWithID("order", action.OrderID)
	}
	result := &actionResult{}
	if order.Status == domain.OrderStatusCancelled || order.IsFullyAssigned() {
		return result, nil
	}
	if order.Status != domain.OrderStatusProcessing {
		result.Short = append(result.Short, order)
		return result, nil
	}

	now := c.engine.now()
	var (
		items   []*domain.InventoryItem
		matches []*MatchResult
	)
fill:
	for _, line := range order.Items {
		for unit := len(line.Assignments); unit < line.Quantity; unit++ {
			match, err := c.matcher.FindReplacement(ctx, line.SKU, action.ExcludeItemIDs)
			if err != nil {
				return nil, err
			}
			if match == nil {
				break
			}
			bin, err := c.assignUnit(ctx, order, line, match, now)
			if errors.HasCode(err, errors.CodeResourceExhausted) {
				break fill
			}
			if err != nil {
				return nil, err
			}
			if order.Shipment != nil && !slices.Contains(order.Shipment.BinIDs, bin.ID) {
				order.Shipment.BinIDs = append(order.Shipment.BinIDs, bin.ID)
			}
			items = append(items, match.Item)
			matches = append(matches, match)
		}
	}

	if len(items) > 0 {
		order.UpdatedAt = now
		if err := c.store.Orders().Update(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		for i, item := range items {
			req, err := c.engine.createRequest(ctx, CreateRequestCommand{
				Type:      firstStage(item, matches[i]),
				ItemID:    item.ID,
				OrderID:   order.ID,
				CreatedBy: operatorID,
			})
			if err != nil {
				return nil, err
			}
			result.Spawned = append(result.Spawned, req)
		}
		c.logger.WithContext(ctx).Info("Order refilled", "orderId", order.ID, "units", len(items))
	}
	if !order.IsFullyAssigned() {
		result.Short = append(result.Short, order)
	}
	return result, nil
}

// firstStage picks the request that starts production of a committed item.
func firstStage(item *domain.InventoryItem, match *MatchResult) domain.RequestType {
	if item.Stage == domain.StageProduction || match.SubstitutesWash() {
		return domain.RequestTypeWash
	}
	return domain.RequestTypeQC
}

// Order returns an order by id.
func (c *Coordinator) Order(ctx context.Context, id string) (*OrderDTO, error) {
	order, err := c.store.Orders().FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(fmt.Errorf("failed to get order: %w", err))
	}
	if order == nil {
		return nil, errors.ErrNotFoundWithID("order", id)
	}
	dto := ToOrderDTO(order)
	return &dto, nil
}

// MatchSKU reports the item an order for q.SKU would receive, without
// committing it.
func (c *Coordinator) MatchSKU(ctx context.Context, q MatchSKUQuery) (*MatchDTO, error) {
	match, err := c.matcher.FindMatchingSKU(ctx, q.SKU, q.UncommittedOnly)
	if err != nil {
		return nil, toAppError(err)
	}
	if match == nil {
		return nil, errors.ErrSKUNotFound(q.SKU)
	}
	dto := ToMatchDTO(q.SKU, match)
	return &dto, nil
}

// AllocateBin reserves capacity for cmd.Quantity items.
func (c *Coordinator) AllocateBin(ctx context.Context, cmd AllocateBinCommand) (*Allocation, error) {
	if appErr := validation.Struct(&cmd); appErr != nil {
		return nil, appErr
	}

	var alloc *Allocation
	err := withTransaction(ctx, c.store, c.engine.tx, "allocate_bin", func(ctx context.Context) error {
		var err error
		alloc, err = c.allocator.Allocate(ctx, AllocationRequest{SKU: cmd.SKU, Quantity: cmd.Quantity, Type: cmd.Type})
		return err
	})
	if err != nil {
		return nil, toAppError(err)
	}
	return alloc, nil
}

// ReleaseBin returns capacity to a bin.
func (c *Coordinator) ReleaseBin(ctx context.Context, cmd ReleaseBinCommand) error {
	if appErr := validation.Struct(&cmd); appErr != nil {
		return appErr
	}

	err := withTransaction(ctx, c.store, c.engine.tx, "release_bin", func(ctx context.Context) error {
		bin, err := c.store.Bins().FindByID(ctx, cmd.BinID)
		if err != nil {
			return fmt.Errorf("failed to get bin: %w", err)
		}
		if bin == nil {
			return errors.ErrNotFoundWithID("bin", cmd.BinID)
		}
		return c.allocator.Release(ctx, bin.ID, cmd.Quantity)
	})
	if err != nil {
		return toAppError(err)
	}
	return nil
}
