package application

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

func TestAllocator_FullBinIsExhausted(t *testing.T) {
	f := newFixture(t)
	f.addBin(t, "S1", domain.BinTypeStorage, 10, 10)

	_, err := f.coord.AllocateBin(f.ctx, AllocateBinCommand{SKU: "ST-32-R-32-RAW", Quantity: 1, Type: domain.BinTypeStorage})
	appErr := requireCode(t, err, errors.CodeResourceExhausted)
	assert.Equal(t, "ST-32-R-32-RAW", appErr.Details["sku"])
	assert.Equal(t, 10, f.getBin(t, "S1").CurrentCount)

	_, err = f.alloc.Assign(f.ctx, "S1", domain.BinTypeStorage, 1)
	assert.ErrorIs(t, err, domain.ErrBinFull)
	requireCode(t, toAppError(err), errors.CodeResourceExhausted)
	assert.Equal(t, 10, f.getBin(t, "S1").CurrentCount)
}

func TestAllocator_Preferences(t *testing.T) {
	tests := []struct {
		name     string
		bins     []domain.Bin
		quantity int
		wantBin  string
		wantQty  int
	}{
		{
			name: "affinity bin before unassigned",
			bins: []domain.Bin{
				{ID: "U1", Capacity: 10, Active: true},
				{ID: "A1", Capacity: 10, AffinitySKU: "ST-32-R-32-RAW", Active: true},
			},
			quantity: 2,
			wantBin:  "A1",
			wantQty:  2,
		},
		{
			name: "other SKU affinity is never used",
			bins: []domain.Bin{
				{ID: "A1", Capacity: 10, AffinitySKU: "ST-34-R-32-RAW", Active: true},
				{ID: "U1", Capacity: 10, CurrentCount: 9, Active: true},
			},
			quantity: 1,
			wantBin:  "U1",
			wantQty:  1,
		},
		{
			name: "fullest bin that fits",
			bins: []domain.Bin{
				{ID: "U1", Capacity: 10, CurrentCount: 2, Active: true},
				{ID: "U2", Capacity: 10, CurrentCount: 7, Active: true},
				{ID: "U3", Capacity: 10, CurrentCount: 9, Active: true},
			},
			quantity: 3,
			wantBin:  "U2",
			wantQty:  3,
		},
		{
			name: "roomiest bin takes what it can",
			bins: []domain.Bin{
				{ID: "U1", Capacity: 10, CurrentCount: 8, Active: true},
				{ID: "U2", Capacity: 10, CurrentCount: 6, Active: true},
			},
			quantity: 5,
			wantBin:  "U2",
			wantQty:  4,
		},
		{
			name: "inactive bins are skipped",
			bins: []domain.Bin{
				{ID: "U1", Capacity: 10},
				{ID: "U2", Capacity: 10, CurrentCount: 5, Active: true},
			},
			quantity: 1,
			wantBin:  "U2",
			wantQty:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, b := range tt.bins {
				bin := b
				bin.Code = "BIN-" + b.ID
				bin.Type = domain.BinTypeStorage
				require.NoError(t, f.store.Bins().Create(f.ctx, &bin))
			}

			alloc, err := f.alloc.Allocate(f.ctx, AllocationRequest{SKU: "ST-32-R-32-RAW", Quantity: tt.quantity})
			require.NoError(t, err)
			assert.Equal(t, tt.wantBin, alloc.BinID)
			assert.Equal(t, tt.wantQty, alloc.Quantity)
		})
	}
}

func TestAllocator_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	f.addBin(t, "S1", domain.BinTypeStorage, 10, 0)

	_, err := f.alloc.Allocate(f.ctx, AllocationRequest{Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.coord.AllocateBin(f.ctx, AllocateBinCommand{Quantity: 0, Type: domain.BinTypeStorage})
	requireCode(t, err, errors.CodeValidation)
}

func TestAllocator_AssignChecksType(t *testing.T) {
	f := newFixture(t)
	f.addBin(t, "Q1", domain.BinTypeQC, 10, 0)

	_, err := f.alloc.Assign(f.ctx, "Q1", domain.BinTypeWash, 1)
	assert.ErrorIs(t, err, domain.ErrBinTypeMismatch)

	_, err = f.alloc.Assign(f.ctx, "NOPE", domain.BinTypeWash, 1)
	requireCode(t, err, errors.CodeNotFound)
}

func TestAllocator_ReleaseNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	f.addBin(t, "S1", domain.BinTypeStorage, 10, 1)

	require.NoError(t, f.coord.ReleaseBin(f.ctx, ReleaseBinCommand{BinID: "S1", Quantity: 3}))
	assert.Equal(t, 1, f.getBin(t, "S1").CurrentCount)

	require.NoError(t, f.coord.ReleaseBin(f.ctx, ReleaseBinCommand{BinID: "S1", Quantity: 1}))
	assert.Equal(t, 0, f.getBin(t, "S1").CurrentCount)

	err := f.coord.ReleaseBin(f.ctx, ReleaseBinCommand{BinID: "MISSING", Quantity: 1})
	requireCode(t, err, errors.CodeNotFound)
}

func TestAllocator_ConcurrentAllocateRelease(t *testing.T) {
	f := newFixture(t)
	f.addBin(t, "S1", domain.BinTypeStorage, 5, 0)
	f.addBin(t, "S2", domain.BinTypeStorage, 5, 0)

	const workers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		allocated = map[string]int{}
		exhausted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alloc, err := f.coord.AllocateBin(f.ctx, AllocateBinCommand{Quantity: 1, Type: domain.BinTypeStorage})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.HasCode(err, errors.CodeResourceExhausted) {
					exhausted++
				}
				return
			}
			allocated[alloc.BinID]++
			if i%4 == 0 {
				if err := f.coord.ReleaseBin(f.ctx, ReleaseBinCommand{BinID: alloc.BinID, Quantity: 1}); err == nil {
					allocated[alloc.BinID]--
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, id := range []string{"S1", "S2"} {
		bin := f.getBin(t, id)
		assert.GreaterOrEqual(t, bin.CurrentCount, 0)
		assert.LessOrEqual(t, bin.CurrentCount, bin.Capacity)
		assert.Equal(t, allocated[id], bin.CurrentCount, "bin %s count", id)
		total += allocated[id]
	}
	assert.LessOrEqual(t, total, 10)
	assert.Positive(t, exhausted)
}
