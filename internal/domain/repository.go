package domain

import "context"

// Find methods return (nil, nil) when the entity does not exist.

// ItemFilter narrows inventory lookups.
type ItemFilter struct {
	Stages          []ItemStage
	UncommittedOnly bool
	ExcludeIDs      []string
}

// InventoryRepository persists inventory items
type InventoryRepository interface {
	Create(ctx context.Context, items ...*InventoryItem) error
	FindByID(ctx context.Context, id string) (*InventoryItem, error)
	// FindBySKU returns items with the exact SKU, oldest first.
	FindBySKU(ctx context.Context, sku string, filter ItemFilter) ([]*InventoryItem, error)
	// FindByPrefix returns items sharing style-waist, oldest first.
	FindByPrefix(ctx context.Context, prefix string, filter ItemFilter) ([]*InventoryItem, error)
	FindByBin(ctx context.Context, binID string) ([]*InventoryItem, error)
	FindByOrder(ctx context.Context, orderID string) ([]*InventoryItem, error)
	// Update writes the item if its version is unchanged and bumps the version.
	Update(ctx context.Context, item *InventoryItem) error
}

// BinQuery selects allocation candidates.
type BinQuery struct {
	Type        BinType
	AffinitySKU string
	// Unassigned selects bins without any affinity instead of AffinitySKU.
	Unassigned bool
	ActiveOnly bool
	MinFree    int
}

// BinRepository persists bins. Count changes are conditional updates so
// capacity is never exceeded under concurrency.
type BinRepository interface {
	Create(ctx context.Context, bins ...*Bin) error
	FindByID(ctx context.Context, id string) (*Bin, error)
	FindByCode(ctx context.Context, code string) (*Bin, error)
	Find(ctx context.Context, query BinQuery) ([]*Bin, error)
	// IncrementIfRoom adds n when currentCount+n <= capacity on an active bin.
	// It reports false when the condition did not hold.
	IncrementIfRoom(ctx context.Context, id string, n int) (bool, error)
	// DecrementIfAtLeast removes n when currentCount >= n.
	DecrementIfAtLeast(ctx context.Context, id string, n int) (bool, error)
	ResetCount(ctx context.Context, id string) error
}

// OrderRepository persists orders
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}

// RequestRepository persists requests
type RequestRepository interface {
	Create(ctx context.Context, request *Request) error
	FindByID(ctx context.Context, id string) (*Request, error)
	// FindOpenByItem returns non-terminal requests for the item, optionally of one type.
	FindOpenByItem(ctx context.Context, itemID string, requestType RequestType) ([]*Request, error)
	FindByParent(ctx context.Context, parentID string) ([]*Request, error)
	Update(ctx context.Context, request *Request) error
}

// MaterialRepository persists fabric
type MaterialRepository interface {
	Create(ctx context.Context, material *Material) error
	FindByID(ctx context.Context, id string) (*Material, error)
	Update(ctx context.Context, material *Material) error
}

// BatchRepository persists production batches
type BatchRepository interface {
	Create(ctx context.Context, batch *ProductionBatch) error
	FindByID(ctx context.Context, id string) (*ProductionBatch, error)
	Update(ctx context.Context, batch *ProductionBatch) error
}

// ProblemRepository persists defect records
type ProblemRepository interface {
	Create(ctx context.Context, problem *Problem) error
	FindByID(ctx context.Context, id string) (*Problem, error)
	FindByItem(ctx context.Context, itemID string) ([]*Problem, error)
	Update(ctx context.Context, problem *Problem) error
}

// SizeChartRepository persists size charts
type SizeChartRepository interface {
	Save(ctx context.Context, chart *SizeChart) error
	FindByKey(ctx context.Context, key string) (*SizeChart, error)
}

// Transactor runs fn atomically. Repository calls made with the ctx passed to
// fn join the transaction; nested calls join the outer transaction.
// Retryable failures are reported as ErrTransientTransaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the transactional store.
type Store interface {
	Transactor
	Items() InventoryRepository
	Bins() BinRepository
	Orders() OrderRepository
	Requests() RequestRepository
	Materials() MaterialRepository
	Batches() BatchRepository
	Problems() ProblemRepository
	SizeCharts() SizeChartRepository
}

// FindSizeChart looks up the chart for a SKU, trying style-waist-shape-length
// then style-waist.
func FindSizeChart(ctx context.Context, repo SizeChartRepository, sku SKU) (*SizeChart, error) {
	for _, key := range []string{sku.SizeKey(), sku.Prefix()} {
		chart, err := repo.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if chart != nil {
			return chart, nil
		}
	}
	return nil, nil
}
