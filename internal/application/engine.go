package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
	"github.com/wms-platform/production-service/pkg/tracing"
	"github.com/wms-platform/production-service/pkg/validation"
)

// actionExecutor runs next actions inside the caller's transaction.
type actionExecutor interface {
	executeActions(ctx context.Context, actions []NextAction, operatorID string) (*actionResult, error)
}

// actionResult collects what chained actions changed.
type actionResult struct {
	Spawned []*domain.Request
	Orders  []*domain.Order
	// Short holds orders left with units no item could fill.
	Short   []*domain.Order
}

func (r *actionResult) merge(other *actionResult) {
	if other == nil {
		return
	}
	r.Spawned = append(r.Spawned, other.Spawned...)
	r.Orders = append(r.Orders, other.Orders...)
	r.Short = append(r.Short, other.Short...)
}

// EngineConfig holds the optional collaborators of an Engine.
type EngineConfig struct {
	Rules    *domain.SKURules
	Tx       *TxPolicy
	Audit    AuditLogger
	Notifier Notifier
	Clock    func() time.Time
	NewID    func() string
}

// Engine drives requests through their workflow step tables.
type Engine struct {
	store     domain.Store
	rules     *domain.SKURules
	allocator *Allocator
	handlers  map[domain.RequestType]WorkflowHandler
	executor  actionExecutor
	tx        TxPolicy
	audit     AuditLogger
	notifier  Notifier
	logger    *logging.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
	newID     func() string
}

// NewEngine creates an Engine with every built-in workflow registered.
func NewEngine(store domain.Store, allocator *Allocator, logger *logging.Logger, m *metrics.Metrics, cfg EngineConfig) *Engine {
	e := &Engine{
		store:     store,
		rules:     cfg.Rules,
		allocator: allocator,
		handlers:  make(map[domain.RequestType]WorkflowHandler),
		audit:     cfg.Audit,
		notifier:  cfg.Notifier,
		logger:    logger.WithComponent("engine"),
		metrics:   m,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
	}
	if e.rules == nil {
		e.rules = domain.DefaultSKURules()
	}
	if cfg.Tx != nil {
		e.tx = *cfg.Tx
	} else {
		e.tx = DefaultTxPolicy(logger, m)
	}
	if e.audit == nil {
		e.audit = noopAudit{}
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	for _, h := range []WorkflowHandler{
		moveHandler{}, cuttingHandler{}, patternHandler{}, packingHandler{},
		qcHandler{}, washHandler{}, finishingHandler{}, recoveryHandler{},
	} {
		e.Register(h)
	}
	return e
}

// Register installs or replaces the handler for its request type.
func (e *Engine) Register(h WorkflowHandler) {
	e.handlers[h.Workflow().Type] = h
}

// Rules returns the SKU rules in use.
func (e *Engine) Rules() *domain.SKURules {
	return e.rules
}

func (e *Engine) setExecutor(x actionExecutor) {
	e.executor = x
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) workflow(t domain.RequestType) (*Workflow, error) {
	h, ok := e.handlers[t]
	if !ok {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("no workflow handles %s requests", t))
	}
	return h.Workflow(), nil
}

func (e *Engine) loadRequest(ctx context.Context, id string) (*domain.Request, error) {
	req, err := e.store.Requests().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, errors.ErrNotFoundWithID("request", id)
	}
	return req, nil
}

func (e *Engine) runActions(ctx context.Context, actions []NextAction, operatorID string) (*actionResult, error) {
	if len(actions) == 0 {
		return &actionResult{}, nil
	}
	if e.executor == nil {
		return nil, fmt.Errorf("no coordinator registered to run %d next actions", len(actions))
	}
	return e.executor.executeActions(ctx, actions, operatorID)
}

// stepResult is what one advance changed.
type stepResult struct {
	request *domain.Request
	problem *domain.Problem
	actionResult
}

// Advance moves a request to cmd.Step in one transaction.
func (e *Engine) Advance(ctx context.Context, cmd StepCommand) (*StepResultDTO, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "engine.Advance",
		attribute.String("request.id", cmd.RequestID),
		attribute.String("request.step", string(cmd.Step)),
	)

	var result *stepResult
	err := withTransaction(ctx, e.store, e.tx, "advance", func(ctx context.Context) error {
		var err error
		result, err = e.advance(ctx, cmd)
		return err
	})
	tracing.EndSpan(span, err)

	requestType := string(cmd.Type)
	if result != nil {
		requestType = string(result.request.Type)
	}
	e.metrics.RecordStep(requestType, string(cmd.Step), err == nil, time.Since(start))

	if err != nil {
		appErr := toAppError(err)
		e.logger.WithContext(ctx).WithError(err).Warn("Step rejected",
			"requestId", cmd.RequestID, "step", cmd.Step, "code", appErr.Code)
		return nil, appErr
	}

	e.afterStep(ctx, cmd, result)

	return &StepResultDTO{
		Request: ToRequestDTO(result.request),
		Spawned: ToRequestDTOs(result.Spawned),
		Problem: ToProblemDTO(result.problem),
	}, nil
}

func (e *Engine) advance(ctx context.Context, cmd StepCommand) (*stepResult, error) {
	req, err := e.loadRequest(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if cmd.Type != "" && cmd.Type != req.Type {
		return nil, errors.ErrInvalidRequest(fmt.Sprintf("request %s is %s, not %s", req.ID, req.Type, cmd.Type))
	}
	wf, err := e.workflow(req.Type)
	if err != nil {
		return nil, err
	}

	spec, err := validateTransition(wf, req, cmd.Step)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(spec, cmd.Step, cmd.Payload)
	if err != nil {
		return nil, err
	}

	sc := e.stepContext(req, payload, cmd.OperatorID)
	if spec.Validate != nil {
		if err := spec.Validate(ctx, sc); err != nil {
			return nil, err
		}
	}
	outcome := &StepOutcome{}
	if spec.Apply != nil {
		o, err := spec.Apply(ctx, sc)
		if err != nil {
			return nil, err
		}
		if o != nil {
			outcome = o
		}
	}

	result := &stepResult{request: req}
	if outcome.Defect != nil {
		problem, action, err := e.failWithDefect(ctx, sc, *outcome.Defect)
		if err != nil {
			return nil, err
		}
		result.problem = problem
		outcome.Actions = append(outcome.Actions, action)
	} else {
		status := domain.RequestStatusInProgress
		if outcome.Complete {
			status = domain.RequestStatusCompleted
		}
		if err := req.SetStatus(status, sc.Now); err != nil {
			return nil, err
		}
		req.Record(cmd.Step, cmd.OperatorID, outcome.Changes, sc.Now)
		if spec.AutoNext != domain.StepNone {
			req.Record(spec.AutoNext, cmd.OperatorID, nil, sc.Now)
		}
	}

	if err := e.store.Requests().Update(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	chained, err := e.runActions(ctx, outcome.Actions, cmd.OperatorID)
	if err != nil {
		return nil, err
	}
	result.merge(chained)
	return result, nil
}

func (e *Engine) stepContext(req *domain.Request, payload any, operatorID string) *StepContext {
	return &StepContext{
		Request:    req,
		Payload:    payload,
		OperatorID: operatorID,
		Now:        e.now(),
		Store:      e.store,
		Rules:      e.rules,
		Allocator:  e.allocator,
		NewID:      e.newID,
	}
}

// afterStep writes the audit trail and notifications for a committed step.
func (e *Engine) afterStep(ctx context.Context, cmd StepCommand, result *stepResult) {
	req := result.request
	event := AuditEvent{
		Type:      AuditStepAdvanced,
		ActorID:   cmd.OperatorID,
		ItemID:    req.ItemID,
		OrderID:   req.OrderID,
		RequestID: req.ID,
		Metadata:  map[string]string{"step": string(cmd.Step), "requestType": string(req.Type)},
	}
	switch req.Status {
	case domain.RequestStatusCompleted:
		event.Type = AuditRequestCompleted
	case domain.RequestStatusFailed:
		event.Type = AuditRequestFailed
	}
	logAction(ctx, e.audit, e.logger, event)

	if result.problem != nil {
		e.announceProblem(ctx, req, result.problem)
	}
	e.afterActions(ctx, cmd.OperatorID, &result.actionResult)

	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "production.request.step_advanced",
		EntityType: "request",
		EntityID:   req.ID,
		Action:     string(cmd.Step),
		ActorID:    cmd.OperatorID,
		RelatedIDs: map[string]string{"itemId": req.ItemID, "orderId": req.OrderID, "status": string(req.Status)},
	})
}

func (e *Engine) announceProblem(ctx context.Context, req *domain.Request, problem *domain.Problem) {
	e.metrics.RecordRequestFailed(string(req.Type))
	e.metrics.RecordDefect(string(problem.Category), string(problem.Severity))
	logAction(ctx, e.audit, e.logger, AuditEvent{
		Type:      AuditProblemReported,
		ActorID:   problem.ReportedBy,
		ItemID:    problem.ItemID,
		OrderID:   req.OrderID,
		RequestID: req.ID,
		Metadata: map[string]string{
			"problemId": problem.ID,
			"category":  string(problem.Category),
			"severity":  string(problem.Severity),
		},
	})
	notify(ctx, e.notifier, e.logger, Notification{
		Type:     NotificationDefect,
		Message:  fmt.Sprintf("%s defect on item %s during %s: %s", problem.Severity, problem.ItemID, req.Type, problem.Description),
		UserRole: "QC_SUPERVISOR",
		Metadata: map[string]string{"problemId": problem.ID, "requestId": req.ID},
	})
}

// afterActions records the requests and order changes made by next actions.
func (e *Engine) afterActions(ctx context.Context, operatorID string, result *actionResult) {
	e.announceOrders(ctx, operatorID, result.Orders)
	for _, order := range result.Short {
		assigned := len(order.AssignedItemIDs())
		e.logger.WithContext(ctx).Warn("Order is short of inventory",
			"orderId", order.ID, "units", order.UnitCount(), "assigned", assigned)
		notify(ctx, e.notifier, e.logger, Notification{
			Type:     NotificationOrderShort,
			Message:  fmt.Sprintf("order %s has %d of %d units assigned", order.OrderNumber, assigned, order.UnitCount()),
			UserRole: "PRODUCTION_LEAD",
			Metadata: map[string]string{"orderId": order.ID},
		})
	}
	for _, spawned := range result.Spawned {
		e.metrics.RecordRequestCreated(string(spawned.Type))
		logAction(ctx, e.audit, e.logger, AuditEvent{
			Type:      AuditRequestCreated,
			ActorID:   operatorID,
			ItemID:    spawned.ItemID,
			OrderID:   spawned.OrderID,
			RequestID: spawned.ID,
			Metadata:  map[string]string{"requestType": string(spawned.Type), "parentRequestId": spawned.ParentRequestID},
		})
	}
}

func (e *Engine) announceOrders(ctx context.Context, operatorID string, orders []*domain.Order) {
	for _, order := range orders {
		logAction(ctx, e.audit, e.logger, AuditEvent{
			Type:     AuditOrderAdvanced,
			ActorID:  operatorID,
			OrderID:  order.ID,
			Metadata: map[string]string{"status": string(order.Status)},
		})
		if order.Status == domain.OrderStatusReadyForPacking {
			notify(ctx, e.notifier, e.logger, Notification{
				Type:     NotificationOrderReady,
				Message:  fmt.Sprintf("order %s is ready for packing", order.OrderNumber),
				UserRole: "PACKING_LEAD",
				Metadata: map[string]string{"orderId": order.ID},
			})
		}
	}
}

// Create opens a request at its workflow entry step.
func (e *Engine) Create(ctx context.Context, cmd CreateRequestCommand) (*RequestDTO, error) {
	var req *domain.Request
	err := withTransaction(ctx, e.store, e.tx, "create_request", func(ctx context.Context) error {
		var err error
		req, err = e.createRequest(ctx, cmd)
		return err
	})
	if err != nil {
		return nil, toAppError(err)
	}

	e.metrics.RecordRequestCreated(string(req.Type))
	logAction(ctx, e.audit, e.logger, AuditEvent{
		Type:      AuditRequestCreated,
		ActorID:   cmd.CreatedBy,
		ItemID:    req.ItemID,
		OrderID:   req.OrderID,
		RequestID: req.ID,
		Metadata:  map[string]string{"requestType": string(req.Type)},
	})
	e.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "production.request.created",
		EntityType: "request",
		EntityID:   req.ID,
		Action:     "created",
		ActorID:    cmd.CreatedBy,
		RelatedIDs: map[string]string{"type": string(req.Type), "itemId": req.ItemID, "orderId": req.OrderID},
	})

	dto := ToRequestDTO(req)
	return &dto, nil
}

// createRequest validates references and stores a new request. It runs in
// the caller's transaction.
func (e *Engine) createRequest(ctx context.Context, cmd CreateRequestCommand) (*domain.Request, error) {
	if !cmd.Type.IsValid() {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown request type %q", cmd.Type))
	}
	wf, err := e.workflow(cmd.Type)
	if err != nil {
		return nil, err
	}

	var item *domain.InventoryItem
	switch cmd.Type {
	case domain.RequestTypeQC, domain.RequestTypeWash, domain.RequestTypeFinishing, domain.RequestTypeRecovery:
		if cmd.ItemID == "" {
			return nil, errors.ErrValidationWithFields(fmt.Sprintf("%s requests need an item", cmd.Type),
				map[string]string{"itemId": "is required"})
		}
	case domain.RequestTypeCutting, domain.RequestTypePattern:
		if cmd.BatchID == "" {
			return nil, errors.ErrValidationWithFields(fmt.Sprintf("%s requests need a batch", cmd.Type),
				map[string]string{"batchId": "is required"})
		}
	}

	if cmd.ItemID != "" {
		if item, err = e.store.Items().FindByID(ctx, cmd.ItemID); err != nil {
			return nil, fmt.Errorf("failed to get inventory item: %w", err)
		} else if item == nil {
			return nil, errors.ErrNotFoundWithID("inventory item", cmd.ItemID)
		}
	}
	if err := e.checkReferences(ctx, cmd); err != nil {
		return nil, err
	}

	metadata := domain.NewMetadata(cmd.Type)
	if cmd.Metadata != nil {
		metadata = cmd.Metadata.Clone()
	}
	if err := e.initMetadata(&metadata, cmd.Type, item); err != nil {
		return nil, err
	}

	now := e.now()
	req, err := domain.NewRequest(e.newID(), cmd.Type, wf.Entry, metadata, cmd.CreatedBy, now)
	if err != nil {
		return nil, err
	}
	req.ItemID = cmd.ItemID
	req.OrderID = cmd.OrderID
	req.BatchID = cmd.BatchID
	req.MaterialID = cmd.MaterialID
	req.BinID = cmd.BinID
	req.ParentRequestID = cmd.ParentRequestID
	if req.OrderID == "" && item != nil {
		req.OrderID = item.OrderID
	}
	for k, v := range cmd.Annotations {
		req.Annotate(k, v)
	}

	if err := e.store.Requests().Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

func (e *Engine) checkReferences(ctx context.Context, cmd CreateRequestCommand) error {
	type ref struct {
		resource string
		id       string
		find     func() (bool, error)
	}
	refs := []ref{
		{"order", cmd.OrderID, func() (bool, error) { o, err := e.store.Orders().FindByID(ctx, cmd.OrderID); return o != nil, err }},
		{"batch", cmd.BatchID, func() (bool, error) { b, err := e.store.Batches().FindByID(ctx, cmd.BatchID); return b != nil, err }},
		{"material", cmd.MaterialID, func() (bool, error) { m, err := e.store.Materials().FindByID(ctx, cmd.MaterialID); return m != nil, err }},
		{"bin", cmd.BinID, func() (bool, error) { b, err := e.store.Bins().FindByID(ctx, cmd.BinID); return b != nil, err }},
		{"request", cmd.ParentRequestID, func() (bool, error) { r, err := e.store.Requests().FindByID(ctx, cmd.ParentRequestID); return r != nil, err }},
	}
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		found, err := r.find()
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", r.resource, err)
		}
		if !found {
			return errors.ErrNotFoundWithID(r.resource, r.id)
		}
	}
	return nil
}

// initMetadata fills derived metadata the caller left empty.
func (e *Engine) initMetadata(m *domain.Metadata, t domain.RequestType, item *domain.InventoryItem) error {
	if err := m.CheckType(t); err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	switch t {
	case domain.RequestTypeMove:
		if m.Move.FromLocation == "" {
			m.Move.FromLocation = item.Location
		}
	case domain.RequestTypeWash:
		if m.Wash.WashGroup == "" {
			sku, err := item.ParsedSKU()
			if err != nil {
				return err
			}
			m.Wash.WashGroup = e.rules.WashGroup(sku.Wash)
		}
	case domain.RequestTypeFinishing:
		if len(m.Finishing.RequiredOps) == 0 {
			plan, err := planFinishing(item)
			if err != nil {
				return err
			}
			*m.Finishing = *plan
		} else if !m.Finishing.IsRequired(domain.StepFinalQC) {
			m.Finishing.RequiredOps = append(m.Finishing.RequiredOps, domain.StepFinalQC)
		}
		if m.Finishing.OriginalSKU == "" {
			m.Finishing.OriginalSKU = item.SKU
		}
	}
	return nil
}

// Get returns a request by id.
func (e *Engine) Get(ctx context.Context, id string) (*RequestDTO, error) {
	req, err := e.loadRequest(ctx, id)
	if err != nil {
		return nil, toAppError(err)
	}
	dto := ToRequestDTO(req)
	return &dto, nil
}

// Children returns the requests spawned by a request.
func (e *Engine) Children(ctx context.Context, id string) ([]RequestDTO, error) {
	if _, err := e.loadRequest(ctx, id); err != nil {
		return nil, toAppError(err)
	}
	children, err := e.store.Requests().FindByParent(ctx, id)
	if err != nil {
		return nil, toAppError(fmt.Errorf("failed to list child requests: %w", err))
	}
	return ToRequestDTOs(children), nil
}

// Retry reopens a failed request of a retryable type at its entry step.
func (e *Engine) Retry(ctx context.Context, cmd RetryRequestCommand) (*RequestDTO, error) {
	var req *domain.Request
	err := withTransaction(ctx, e.store, e.tx, "retry_request", func(ctx context.Context) error {
		var err error
		if req, err = e.loadRequest(ctx, cmd.RequestID); err != nil {
			return err
		}
		wf, err := e.workflow(req.Type)
		if err != nil {
			return err
		}
		if wf.CanRetry != nil && req.Status == domain.RequestStatusFailed {
			if err := wf.CanRetry(ctx, e.stepContext(req, nil, cmd.OperatorID)); err != nil {
				return err
			}
		}
		if err := req.Retry(wf.Entry, cmd.OperatorID, e.now()); err != nil {
			return err
		}
		return e.store.Requests().Update(ctx, req)
	})
	if err != nil {
		return nil, toAppError(err)
	}

	logAction(ctx, e.audit, e.logger, AuditEvent{
		Type:      AuditRequestRetried,
		ActorID:   cmd.OperatorID,
		ItemID:    req.ItemID,
		OrderID:   req.OrderID,
		RequestID: req.ID,
		Metadata:  map[string]string{"retryCount": fmt.Sprint(req.RetryCount)},
	})
	e.logger.WithContext(ctx).Info("Retried request", "requestId", req.ID, "retryCount", req.RetryCount)

	dto := ToRequestDTO(req)
	return &dto, nil
}

// ReportProblem fails a request through the defect branch.
func (e *Engine) ReportProblem(ctx context.Context, cmd ReportProblemCommand) (*StepResultDTO, error) {
	if appErr := validation.Struct(&cmd); appErr != nil {
		return nil, appErr
	}

	var result *stepResult
	err := withTransaction(ctx, e.store, e.tx, "report_problem", func(ctx context.Context) error {
		req, err := e.loadRequest(ctx, cmd.RequestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return fmt.Errorf("%w: request %s is %s", domain.ErrRequestTerminal, req.ID, req.Status)
		}
		if req.ItemID == "" {
			return errors.ErrInvalidRequest(fmt.Sprintf("request %s has no item to report a problem against", req.ID))
		}

		sc := e.stepContext(req, nil, cmd.OperatorID)
		problem, action, err := e.failWithDefect(ctx, sc, Defect{
			Step:          domain.StepProblemReport,
			Category:      cmd.Category,
			Severity:      cmd.Severity,
			Reason:        cmd.Description,
			MarkDefective: cmd.MarkDefective,
		})
		if err != nil {
			return err
		}
		if err := e.store.Requests().Update(ctx, req); err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		chained, err := e.runActions(ctx, []NextAction{action}, cmd.OperatorID)
		if err != nil {
			return err
		}
		result = &stepResult{request: req, problem: problem}
		result.merge(chained)
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	e.afterStep(ctx, StepCommand{RequestID: cmd.RequestID, Step: domain.StepProblemReport, OperatorID: cmd.OperatorID}, result)
	return &StepResultDTO{
		Request: ToRequestDTO(result.request),
		Spawned: ToRequestDTOs(result.Spawned),
		Problem: ToProblemDTO(result.problem),
	}, nil
}

// ProcessBin sends every item of a wash bin whose request is ready for the
// laundry through AT_LAUNDRY and resets the bin once it is empty.
func (e *Engine) ProcessBin(ctx context.Context, cmd ProcessBinCommand) (*BinProcessResultDTO, error) {
	result := &BinProcessResultDTO{BinID: cmd.BinID}
	var steps []*stepResult

	err := withTransaction(ctx, e.store, e.tx, "process_bin", func(ctx context.Context) error {
		result.Processed, result.Skipped, result.Reset = nil, nil, false
		steps = nil

		bin, err := e.store.Bins().FindByID(ctx, cmd.BinID)
		if err != nil {
			return fmt.Errorf("failed to get bin: %w", err)
		}
		if bin == nil {
			return errors.ErrNotFoundWithID("bin", cmd.BinID)
		}
		if bin.Type != domain.BinTypeWash {
			return fmt.Errorf("%w: bin %s is %s, expected %s", domain.ErrBinTypeMismatch, bin.Code, bin.Type, domain.BinTypeWash)
		}

		items, err := e.store.Items().FindByBin(ctx, bin.ID)
		if err != nil {
			return fmt.Errorf("failed to list bin items: %w", err)
		}
		for _, item := range items {
			open, err := e.store.Requests().FindOpenByItem(ctx, item.ID, domain.RequestTypeWash)
			if err != nil {
				return fmt.Errorf("failed to list wash requests: %w", err)
			}
			sent := false
			for _, req := range open {
				if req.CurrentStep != domain.StepReadyForLaundry {
					continue
				}
				step, err := e.advance(ctx, StepCommand{
					RequestID:  req.ID,
					Type:       domain.RequestTypeWash,
					Step:       domain.StepAtLaundry,
					OperatorID: cmd.OperatorID,
				})
				if err != nil {
					return err
				}
				steps = append(steps, step)
				result.Processed = append(result.Processed, req.ID)
				sent = true
			}
			if !sent {
				result.Skipped = append(result.Skipped, item.ID)
			}
		}

		remaining, err := e.store.Items().FindByBin(ctx, bin.ID)
		if err != nil {
			return fmt.Errorf("failed to list bin items: %w", err)
		}
		if len(remaining) == 0 {
			if err := e.allocator.Reset(ctx, bin.ID); err != nil {
				return err
			}
			result.Reset = true
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	for _, step := range steps {
		e.afterStep(ctx, StepCommand{RequestID: step.request.ID, Step: domain.StepAtLaundry, OperatorID: cmd.OperatorID}, step)
	}
	logAction(ctx, e.audit, e.logger, AuditEvent{
		Type:    AuditBinProcessed,
		ActorID: cmd.OperatorID,
		Metadata: map[string]string{
			"binId":     cmd.BinID,
			"processed": fmt.Sprint(len(result.Processed)),
			"reset":     fmt.Sprint(result.Reset),
		},
	})
	e.logger.WithContext(ctx).Info("Processed wash bin",
		"binId", cmd.BinID, "processed", len(result.Processed), "skipped", len(result.Skipped), "reset", result.Reset)
	return result, nil
}
