package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/internal/infrastructure/memory"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/resilience"
)

const operator = "OP-1"

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// recordingAudit captures audit events.
type recordingAudit struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func (r *recordingAudit) LogEvent(_ context.Context, e AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) CreateNotification(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	engine   *Engine
	coord    *Coordinator
	alloc    *Allocator
	audit    *recordingAudit
	notifier *recordingNotifier
	now      time.Time

	mu  sync.Mutex
	seq int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
		now:      fixedNow,
	}
	logger := logging.Discard()
	rules := domain.DefaultSKURules()

	f.alloc = NewAllocator(f.store.Bins(), logger, nil)
	f.engine = NewEngine(f.store, f.alloc, logger, nil, EngineConfig{
		Rules: rules,
		Tx: &TxPolicy{
			Retry:  &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2},
			Logger: logger,
		},
		Audit:    f.audit,
		Notifier: f.notifier,
		Clock:    func() time.Time { return f.now },
		NewID:    f.nextID,
	})
	f.coord = NewCoordinator(f.engine, NewMatcher(f.store.Items(), domain.NewScorer(rules), logger, nil), logger, nil)
	return f
}

func (f *fixture) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("ID-%03d", f.seq)
}

func (f *fixture) addItem(t *testing.T, id, sku string, stage domain.ItemStage) *domain.InventoryItem {
	t.Helper()
	item := domain.NewInventoryItem(id, domain.MustParseSKU(sku), stage, "RACK-1", f.now)
	require.NoError(t, f.store.Items().Create(f.ctx, item))
	return item
}

func (f *fixture) addBin(t *testing.T, id string, binType domain.BinType, capacity, count int) *domain.Bin {
	t.Helper()
	bin := &domain.Bin{
		ID:           id,
		Code:         "BIN-" + id,
		Type:         binType,
		Capacity:     capacity,
		CurrentCount: count,
		Active:       true,
	}
	require.NoError(t, f.store.Bins().Create(f.ctx, bin))
	return bin
}

func (f *fixture) addWashBin(t *testing.T, id, group string, capacity int) *domain.Bin {
	t.Helper()
	bin := &domain.Bin{ID: id, Code: "BIN-" + id, Type: domain.BinTypeWash, WashGroup: group, Capacity: capacity, Active: true}
	require.NoError(t, f.store.Bins().Create(f.ctx, bin))
	return bin
}

func (f *fixture) addSizeChart(t *testing.T, key string, dims map[string][3]int64) {
	t.Helper()
	chart := &domain.SizeChart{ID: "CHART-" + key, Key: key, Dimensions: map[string]domain.Tolerance{}}
	for name, d := range dims {
		chart.Dimensions[name] = domain.Tolerance{
			Min:    decimal.NewFromInt(d[0]),
			Target: decimal.NewFromInt(d[1]),
			Max:    decimal.NewFromInt(d[2]),
		}
	}
	require.NoError(t, f.store.SizeCharts().Save(f.ctx, chart))
}

func (f *fixture) addOrder(t *testing.T, id string, lines ...domain.OrderItem) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:          id,
		OrderNumber: "SO-" + id,
		Status:      domain.OrderStatusNew,
		Items:       lines,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	require.NoError(t, f.store.Orders().Create(f.ctx, order))
	return order
}

func (f *fixture) getItem(t *testing.T, id string) *domain.InventoryItem {
	t.Helper()
	item, err := f.store.Items().FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func (f *fixture) getBin(t *testing.T, id string) *domain.Bin {
	t.Helper()
	bin, err := f.store.Bins().FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, bin)
	return bin
}

func (f *fixture) getRequest(t *testing.T, id string) *domain.Request {
	t.Helper()
	req, err := f.store.Requests().FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

func (f *fixture) getOrder(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := f.store.Orders().FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func (f *fixture) create(t *testing.T, cmd CreateRequestCommand) *RequestDTO {
	t.Helper()
	if cmd.CreatedBy == "" {
		cmd.CreatedBy = operator
	}
	dto, err := f.engine.Create(f.ctx, cmd)
	require.NoError(t, err)
	return dto
}

func (f *fixture) step(requestID string, step domain.Step, payload any) (*StepResultDTO, error) {
	f.now = f.now.Add(time.Minute)
	return f.engine.Advance(f.ctx, StepCommand{RequestID: requestID, Step: step, Payload: payload, OperatorID: operator})
}

func (f *fixture) advance(t *testing.T, requestID string, step domain.Step, payload any) *StepResultDTO {
	t.Helper()
	result, err := f.step(requestID, step, payload)
	require.NoError(t, err, "advance %s to %s", requestID, step)
	return result
}

func requireCode(t *testing.T, err error, code string) *errors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	assert.True(t, appErr.Is(code), "expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
	return appErr
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func boolPtr(b bool) *bool {
	return &b
}

// addCommittedItem adds an item already committed to a unit of orderID.
func (f *fixture) addCommittedItem(t *testing.T, id, sku string, stage domain.ItemStage, orderID, target string) *domain.InventoryItem {
	t.Helper()
	item := domain.NewInventoryItem(id, domain.MustParseSKU(sku), stage, "RACK-1", f.now)
	require.NoError(t, item.CommitTo(orderID, orderID+"-L1", target, f.now))
	require.NoError(t, f.store.Items().Create(f.ctx, item))
	return item
}

func (f *fixture) addWaistChart(t *testing.T) {
	t.Helper()
	f.addSizeChart(t, "ST-32", map[string][3]int64{
		"waist":  {30, 32, 34},
		"inseam": {31, 32, 33},
	})
}

// addProcessingOrder adds a PROCESSING order whose units are fulfilled by
// items, one order line per item.
func (f *fixture) addProcessingOrder(t *testing.T, id string, items ...*domain.InventoryItem) *domain.Order {
	t.Helper()
	order := &domain.Order{ID: id, OrderNumber: "SO-" + id, Status: domain.OrderStatusProcessing, CreatedAt: f.now, UpdatedAt: f.now}
	for i, item := range items {
		lineID := fmt.Sprintf("%s-L%d", id, i+1)
		item.OrderItemID = lineID
		order.Items = append(order.Items, domain.OrderItem{
			ID:       lineID,
			SKU:      item.TargetSKU,
			Quantity: 1,
			Assignments: []domain.Assignment{{
				InventoryItemID: item.ID,
				MatchedSKU:      item.SKU,
				Tier:            domain.TierExact,
			}},
		})
	}
	require.NoError(t, f.store.Orders().Create(f.ctx, order))
	return order
}

// moveItem forces an item into stage/commitment and stores it.
func (f *fixture) moveItem(t *testing.T, id string, stage domain.ItemStage, commitment domain.ItemCommitment) *domain.InventoryItem {
	t.Helper()
	item := f.getItem(t, id)
	require.NoError(t, item.Transition(stage, commitment, f.now))
	require.NoError(t, f.store.Items().Update(f.ctx, item))
	return item
}
