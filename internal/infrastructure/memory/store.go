package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/wms-platform/production-service/internal/domain"
)

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

type state struct {
	items      map[string]*domain.InventoryItem
	bins       map[string]*domain.Bin
	orders     map[string]*domain.Order
	requests   map[string]*domain.Request
	materials  map[string]*domain.Material
	batches    map[string]*domain.ProductionBatch
	problems   map[string]*domain.Problem
	sizeCharts map[string]*domain.SizeChart
	events     []domain.DomainEvent
}

func newState() *state {
	return &state{
		items:      make(map[string]*domain.InventoryItem),
		bins:       make(map[string]*domain.Bin),
		orders:     make(map[string]*domain.Order),
		requests:   make(map[string]*domain.Request),
		materials:  make(map[string]*domain.Material),
		batches:    make(map[string]*domain.ProductionBatch),
		problems:   make(map[string]*domain.Problem),
		sizeCharts: make(map[string]*domain.SizeChart),
	}
}

func cloneMap[T any](m map[string]T, clone func(T) T) map[string]T {
	c := make(map[string]T, len(m))
	for k, v := range m {
		c[k] = clone(v)
	}
	return c
}

func (s *state) snapshot() *state {
	return &state{
		items:      cloneMap(s.items, (*domain.InventoryItem).Clone),
		bins:       cloneMap(s.bins, (*domain.Bin).Clone),
		orders:     cloneMap(s.orders, (*domain.Order).Clone),
		requests:   cloneMap(s.requests, (*domain.Request).Clone),
		materials:  cloneMap(s.materials, (*domain.Material).Clone),
		batches:    cloneMap(s.batches, (*domain.ProductionBatch).Clone),
		problems:   cloneMap(s.problems, (*domain.Problem).Clone),
		sizeCharts: cloneMap(s.sizeCharts, (*domain.SizeChart).Clone),
		events:     append([]domain.DomainEvent(nil), s.events...),
	}
}

// Store is an in-memory domain.Store. Transactions are serialized behind a
// single mutex and rolled back from a snapshot on error.
type Store struct {
	mu    sync.Mutex
	state *state

	failMu   sync.Mutex
	failNext int
	failErr  error
	attempts int
}

var _ domain.Store = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// FailNextTransactions makes the next n top-level transactions run, roll
// back, and return err. It simulates commit failures.
func (s *Store) FailNextTransactions(n int, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext = n
	s.failErr = err
}

// TransactionAttempts returns how many top-level transactions were started.
func (s *Store) TransactionAttempts() int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.attempts
}

func (s *Store) takeFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.attempts++
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	return nil
}

// WithTransaction implements domain.Transactor
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	injected := s.takeFailure()
	before := s.state.snapshot()

	err := fn(context.WithValue(ctx, txKey{}, true))
	if err == nil {
		err = injected
	}
	if err != nil {
		s.state = before
		return err
	}
	return nil
}

// lock guards single operations made outside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Events returns the committed domain events in order.
func (s *Store) Events() []domain.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DomainEvent(nil), s.state.events...)
}

func (s *Store) Items() domain.InventoryRepository { return &itemRepo{s} }

func (s *Store) Bins() domain.BinRepository { return &binRepo{s} }

func (s *Store) Orders() domain.OrderRepository { return &orderRepo{s} }

func (s *Store) Requests() domain.RequestRepository { return &requestRepo{s} }

func (s *Store) Materials() domain.MaterialRepository { return &materialRepo{s} }

func (s *Store) Batches() domain.BatchRepository { return &batchRepo{s} }

func (s *Store) Problems() domain.ProblemRepository { return &problemRepo{s} }

func (s *Store) SizeCharts() domain.SizeChartRepository { return &sizeChartRepo{s} }

// versioned applies optimistic concurrency: stored must carry the version
// the caller read.
func versioned(kind, id string, stored, incoming int64) error {
	if stored != incoming {
		return fmt.Errorf("%w: %s %s at version %d, have %d", domain.ErrConcurrentModification, kind, id, stored, incoming)
	}
	return nil
}

type itemRepo struct{ s *Store }

func (r *itemRepo) Create(ctx context.Context, items ...*domain.InventoryItem) error {
	defer r.s.lock(ctx)()
	for _, item := range items {
		if _, exists := r.s.state.items[item.ID]; exists {
			return fmt.Errorf("inventory item %s already exists", item.ID)
		}
	}
	for _, item := range items {
		item.Version = 1
		r.s.state.items[item.ID] = item.Clone()
	}
	return nil
}

func (r *itemRepo) FindByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	defer r.s.lock(ctx)()
	if item, ok := r.s.state.items[id]; ok {
		return item.Clone(), nil
	}
	return nil, nil
}

func (r *itemRepo) find(match func(*domain.InventoryItem) bool, filter domain.ItemFilter) []*domain.InventoryItem {
	var out []*domain.InventoryItem
	for _, item := range r.s.state.items {
		if !match(item) {
			continue
		}
		if filter.UncommittedOnly && !item.IsUncommitted() {
			continue
		}
		if len(filter.Stages) > 0 && !hasStage(filter.Stages, item.Stage) {
			continue
		}
		if slices.Contains(filter.ExcludeIDs, item.ID) {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func hasStage(stages []domain.ItemStage, stage domain.ItemStage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}

func (r *itemRepo) FindBySKU(ctx context.Context, sku string, filter domain.ItemFilter) ([]*domain.InventoryItem, error) {
	defer r.s.lock(ctx)()
	return r.find(func(i *domain.InventoryItem) bool { return i.SKU == sku }, filter), nil
}

func (r *itemRepo) FindByPrefix(ctx context.Context, prefix string, filter domain.ItemFilter) ([]*domain.InventoryItem, error) {
	defer r.s.lock(ctx)()
	return r.find(func(i *domain.InventoryItem) bool { return i.SKUPrefix == prefix }, filter), nil
}

func (r *itemRepo) FindByBin(ctx context.Context, binID string) ([]*domain.InventoryItem, error) {
	defer r.s.lock(ctx)()
	return r.find(func(i *domain.InventoryItem) bool { return i.BinID == binID }, domain.ItemFilter{}), nil
}

func (r *itemRepo) FindByOrder(ctx context.Context, orderID string) ([]*domain.InventoryItem, error) {
	defer r.s.lock(ctx)()
	return r.find(func(i *domain.InventoryItem) bool { return i.OrderID == orderID }, domain.ItemFilter{}), nil
}

func (r *itemRepo) Update(ctx context.Context, item *domain.InventoryItem) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.state.items[item.ID]
	if !ok {
		return fmt.Errorf("%w: inventory item %s vanished", domain.ErrConcurrentModification, item.ID)
	}
	if err := versioned("inventory item", item.ID, stored.Version, item.Version); err != nil {
		return err
	}
	item.Version++
	r.s.state.items[item.ID] = item.Clone()
	return nil
}

type binRepo struct{ s *Store }

func (r *binRepo) Create(ctx context.Context, bins ...*domain.Bin) error {
	defer r.s.lock(ctx)()
	for _, bin := range bins {
		if _, exists := r.s.state.bins[bin.ID]; exists {
			return fmt.Errorf("bin %s already exists", bin.ID)
		}
		r.s.state.bins[bin.ID] = bin.Clone()
	}
	return nil
}

func (r *binRepo) FindByID(ctx context.Context, id string) (*domain.Bin, error) {
	defer r.s.lock(ctx)()
	if bin, ok := r.s.state.bins[id]; ok {
		return bin.Clone(), nil
	}
	return nil, nil
}

func (r *binRepo) FindByCode(ctx context.Context, code string) (*domain.Bin, error) {
	defer r.s.lock(ctx)()
	for _, bin := range r.s.state.bins {
		if bin.Code == code {
			return bin.Clone(), nil
		}
	}
	return nil, nil
}

func (r *binRepo) Find(ctx context.Context, q domain.BinQuery) ([]*domain.Bin, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Bin
	for _, bin := range r.s.state.bins {
		if q.Type != "" && bin.Type != q.Type {
			continue
		}
		if q.Unassigned && bin.AffinitySKU != "" {
			continue
		}
		if !q.Unassigned && q.AffinitySKU != "" && bin.AffinitySKU != q.AffinitySKU {
			continue
		}
		if q.ActiveOnly && !bin.Active {
			continue
		}
		if bin.FreeSpace() < q.MinFree {
			continue
		}
		out = append(out, bin.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *binRepo) IncrementIfRoom(ctx context.Context, id string, n int) (bool, error) {
	defer r.s.lock(ctx)()
	bin, ok := r.s.state.bins[id]
	if !ok || !bin.Active || bin.CurrentCount+n > bin.Capacity {
		return false, nil
	}
	bin.CurrentCount += n
	return true, nil
}

func (r *binRepo) DecrementIfAtLeast(ctx context.Context, id string, n int) (bool, error) {
	defer r.s.lock(ctx)()
	bin, ok := r.s.state.bins[id]
	if !ok || bin.CurrentCount < n {
		return false, nil
	}
	bin.CurrentCount -= n
	return true, nil
}

func (r *binRepo) ResetCount(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if bin, ok := r.s.state.bins[id]; ok {
		bin.CurrentCount = 0
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.state.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	order.Version = 1
	r.s.state.events = append(r.s.state.events, order.PullEvents()...)
	r.s.state.orders[order.ID] = order.Clone()
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	defer r.s.lock(ctx)()
	if order, ok := r.s.state.orders[id]; ok {
		return order.Clone(), nil
	}
	return nil, nil
}

func (r *orderRepo) Update(ctx context.Context, order *domain.Order) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.state.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: order %s vanished", domain.ErrConcurrentModification, order.ID)
	}
	if err := versioned("order", order.ID, stored.Version, order.Version); err != nil {
		return err
	}
	order.Version++
	r.s.state.events = append(r.s.state.events, order.PullEvents()...)
	r.s.state.orders[order.ID] = order.Clone()
	return nil
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(ctx context.Context, request *domain.Request) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.state.requests[request.ID]; exists {
		return fmt.Errorf("request %s already exists", request.ID)
	}
	request.Version = 1
	r.s.state.events = append(r.s.state.events, request.PullEvents()...)
	r.s.state.requests[request.ID] = request.Clone()
	return nil
}

func (r *requestRepo) FindByID(ctx context.Context, id string) (*domain.Request, error) {
	defer r.s.lock(ctx)()
	if request, ok := r.s.state.requests[id]; ok {
		return request.Clone(), nil
	}
	return nil, nil
}

func (r *requestRepo) sorted(match func(*domain.Request) bool) []*domain.Request {
	var out []*domain.Request
	for _, request := range r.s.state.requests {
		if match(request) {
			out = append(out, request.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *requestRepo) FindOpenByItem(ctx context.Context, itemID string, requestType domain.RequestType) ([]*domain.Request, error) {
	defer r.s.lock(ctx)()
	return r.sorted(func(req *domain.Request) bool {
		return req.ItemID == itemID &&
			!req.Status.IsTerminal() &&
			(requestType == "" || req.Type == requestType)
	}), nil
}

func (r *requestRepo) FindByParent(ctx context.Context, parentID string) ([]*domain.Request, error) {
	defer r.s.lock(ctx)()
	return r.sorted(func(req *domain.Request) bool { return req.ParentRequestID == parentID }), nil
}

func (r *requestRepo) Update(ctx context.Context, request *domain.Request) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.state.requests[request.ID]
	if !ok {
		return fmt.Errorf("%w: request %s vanished", domain.ErrConcurrentModification, request.ID)
	}
	if err := versioned("request", request.ID, stored.Version, request.Version); err != nil {
		return err
	}
	request.Version++
	r.s.state.events = append(r.s.state.events, request.PullEvents()...)
	r.s.state.requests[request.ID] = request.Clone()
	return nil
}

type materialRepo struct{ s *Store }

func (r *materialRepo) Create(ctx context.Context, material *domain.Material) error {
	defer r.s.lock(ctx)()
	material.Version = 1
	r.s.state.materials[material.ID] = material.Clone()
	return nil
}

func (r *materialRepo) FindByID(ctx context.Context, id string) (*domain.Material, error) {
	defer r.s.lock(ctx)()
	if material, ok := r.s.state.materials[id]; ok {
		return material.Clone(), nil
	}
	return nil, nil
}

func (r *materialRepo) Update(ctx context.Context, material *domain.Material) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.state.materials[material.ID]
	if !ok {
		return fmt.Errorf("%w: material %s vanished", domain.ErrConcurrentModification, material.ID)
	}
	if err := versioned("material", material.ID, stored.Version, material.Version); err != nil {
		return err
	}
	material.Version++
	r.s.state.materials[material.ID] = material.Clone()
	return nil
}

type batchRepo struct{ s *Store }

func (r *batchRepo) Create(ctx context.Context, batch *domain.ProductionBatch) error {
	defer r.s.lock(ctx)()
	batch.Version = 1
	r.s.state.batches[batch.ID] = batch.Clone()
	return nil
}

func (r *batchRepo) FindByID(ctx context.Context, id string) (*domain.ProductionBatch, error) {
	defer r.s.lock(ctx)()
	if batch, ok := r.s.state.batches[id]; ok {
		return batch.Clone(), nil
	}
	return nil, nil
}

func (r *batchRepo) Update(ctx context.Context, batch *domain.ProductionBatch) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.state.batches[batch.ID]
	if !ok {
		return fmt.Errorf("%w: batch %s vanished", domain.ErrConcurrentModification, batch.ID)
	}
	if err := versioned("batch", batch.ID, stored.Version, batch.Version); err != nil {
		return err
	}
	batch.Version++
	r.s.state.batches[batch.ID] = batch.Clone()
	return nil
}

type problemRepo struct{ s *Store }

func (r *problemRepo) Create(ctx context.Context, problem *domain.Problem) error {
	defer r.s.lock(ctx)()
	r.s.state.problems[problem.ID] = problem.Clone()
	return nil
}

func (r *problemRepo) FindByID(ctx context.Context, id string) (*domain.Problem, error) {
	defer r.s.lock(ctx)()
	if problem, ok := r.s.state.problems[id]; ok {
		return problem.Clone(), nil
	}
	return nil, nil
}

func (r *problemRepo) FindByItem(ctx context.Context, itemID string) ([]*domain.Problem, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Problem
	for _, problem := range r.s.state.problems {
		if problem.ItemID == itemID {
			out = append(out, problem.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.Before(out[j].ReportedAt) })
	return out, nil
}

func (r *problemRepo) Update(ctx context.Context, problem *domain.Problem) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.state.problems[problem.ID]; !ok {
		return fmt.Errorf("%w: problem %s vanished", domain.ErrConcurrentModification, problem.ID)
	}
	r.s.state.problems[problem.ID] = problem.Clone()
	return nil
}

type sizeChartRepo struct{ s *Store }

func (r *sizeChartRepo) Save(ctx context.Context, chart *domain.SizeChart) error {
	defer r.s.lock(ctx)()
	r.s.state.sizeCharts[chart.Key] = chart.Clone()
	return nil
}

func (r *sizeChartRepo) FindByKey(ctx context.Context, key string) (*domain.SizeChart, error) {
	defer r.s.lock(ctx)()
	if chart, ok := r.s.state.sizeCharts[key]; ok {
		return chart.Clone(), nil
	}
	return nil, nil
}
