package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	"github.com/wms-platform/production-service/pkg/metrics"
)

// maxAllocationAttempts bounds re-selection after losing a conditional increment.
const maxAllocationAttempts = 3

// AllocationRequest asks for room for Quantity items of SKU in a bin of Type.
type AllocationRequest struct {
	SKU      string
	Quantity int
	Type     domain.BinType
}

// Allocation is the capacity reserved in one bin.
type Allocation struct {
	BinID    string `json:"binId"`
	BinCode  string `json:"binCode"`
	Quantity int    `json:"quantity"`
}

// Allocator reserves bin capacity. Every count change is a conditional
// update so 0 <= currentCount <= capacity holds under concurrency.
type Allocator struct {
	bins    domain.BinRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewAllocator creates an Allocator.
func NewAllocator(bins domain.BinRepository, logger *logging.Logger, m *metrics.Metrics) *Allocator {
	return &Allocator{bins: bins, logger: logger.WithComponent("allocator"), metrics: m}
}

// Allocate picks a bin and increments it. Bins with affinity for the SKU are
// preferred over unassigned bins. Among candidates the fullest bin that fits
// the whole quantity wins; otherwise the emptiest bin takes what it can.
func (a *Allocator) Allocate(ctx context.Context, req AllocationRequest) (*Allocation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, req.Quantity)
	}
	if req.Type == "" {
		req.Type = domain.BinTypeStorage
	}

	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		bin, err := a.selectBin(ctx, req)
		if err != nil {
			return nil, err
		}
		if bin == nil {
			break
		}

		n := req.Quantity
		if free := bin.FreeSpace(); free < n {
			n = free
		}
		ok, err := a.bins.IncrementIfRoom(ctx, bin.ID, n)
		if err != nil {
			return nil, fmt.Errorf("failed to increment bin %s: %w", bin.ID, err)
		}
		if ok {
			a.metrics.RecordBinAllocation(string(req.Type), true)
			a.logger.WithContext(ctx).Debug("Allocated bin",
				"binId", bin.ID, "binCode", bin.Code, "sku", req.SKU, "quantity", n)
			return &Allocation{BinID: bin.ID, BinCode: bin.Code, Quantity: n}, nil
		}

		a.logger.WithContext(ctx).Debug("Lost bin allocation race", "binId", bin.ID, "attempt", attempt)
	}

	a.metrics.RecordBinAllocation(string(req.Type), false)
	return nil, errors.ErrResourceExhausted(fmt.Sprintf("no %s bin has room for %s", req.Type, req.SKU)).
		WithDetail("sku", req.SKU).
		WithDetail("binType", string(req.Type))
}

func (a *Allocator) selectBin(ctx context.Context, req AllocationRequest) (*domain.Bin, error) {
	queries := []domain.BinQuery{{Type: req.Type, Unassigned: true, ActiveOnly: true, MinFree: 1}}
	if req.SKU != "" {
		affinity := domain.BinQuery{Type: req.Type, AffinitySKU: req.SKU, ActiveOnly: true, MinFree: 1}
		queries = append([]domain.BinQuery{affinity}, queries...)
	}

	for _, q := range queries {
		bins, err := a.bins.Find(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to find bins: %w", err)
		}
		if bin := pickBin(bins, req.Quantity); bin != nil {
			return bin, nil
		}
	}
	return nil, nil
}

func pickBin(bins []*domain.Bin, quantity int) *domain.Bin {
	var fullestFit, roomiest *domain.Bin
	for _, bin := range bins {
		free := bin.FreeSpace()
		if free < 1 {
			continue
		}
		if free >= quantity && (fullestFit == nil || free < fullestFit.FreeSpace()) {
			fullestFit = bin
		}
		if roomiest == nil || free > roomiest.FreeSpace() {
			roomiest = bin
		}
	}
	if fullestFit != nil {
		return fullestFit
	}
	return roomiest
}

// Assign increments a specific bin by n after checking it can serve binType.
func (a *Allocator) Assign(ctx context.Context, binID string, binType domain.BinType, n int) (*domain.Bin, error) {
	bin, err := a.bins.FindByID(ctx, binID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bin: %w", err)
	}
	if bin == nil {
		return nil, errors.ErrNotFoundWithID("bin", binID)
	}
	if err := bin.CheckAssignable(binType, n); err != nil {
		a.metrics.RecordBinAllocation(string(bin.Type), false)
		return nil, err
	}

	ok, err := a.bins.IncrementIfRoom(ctx, binID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to increment bin %s: %w", binID, err)
	}
	if !ok {
		a.metrics.RecordBinAllocation(string(bin.Type), false)
		return nil, fmt.Errorf("%w: bin %s", domain.ErrBinFull, bin.Code)
	}

	a.metrics.RecordBinAllocation(string(bin.Type), true)
	bin.CurrentCount += n
	return bin, nil
}

// Release returns n slots to the bin. The count never drops below zero.
func (a *Allocator) Release(ctx context.Context, binID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, n)
	}
	ok, err := a.bins.DecrementIfAtLeast(ctx, binID, n)
	if err != nil {
		return fmt.Errorf("failed to decrement bin %s: %w", binID, err)
	}
	if !ok {
		a.logger.WithContext(ctx).Warn("Bin release skipped, count below release size", "binId", binID, "quantity", n)
	}
	return nil
}

// Reset empties the bin.
func (a *Allocator) Reset(ctx context.Context, binID string) error {
	if err := a.bins.ResetCount(ctx, binID); err != nil {
		return fmt.Errorf("failed to reset bin %s: %w", binID, err)
	}
	return nil
}
