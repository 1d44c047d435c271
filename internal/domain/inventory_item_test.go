package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(stage ItemStage) *InventoryItem {
	return NewInventoryItem("ITEM-001", MustParseSKU("ST-32-R-32-RAW"), stage, "A-01", time.Now())
}

func TestInventoryItem_Transition(t *testing.T) {
	tests := []struct {
		name       string
		from       ItemStage
		commitment ItemCommitment
		to         ItemStage
		toCommit   ItemCommitment
		wantErr    error
	}{
		{"Stock to QC in process", StageStock, CommitmentCommitted, StageQC, CommitmentInProcess, nil},
		{"QC to finishing", StageQC, CommitmentInProcess, StageFinishing, CommitmentInProcess, nil},
		{"Finishing to ready for packing", StageFinishing, CommitmentInProcess, StageAvailable, CommitmentReadyForPacking, nil},
		{"Commitment change in place", StageStock, CommitmentUncommitted, StageStock, CommitmentCommitted, nil},
		{"Shipped is terminal", StageShipped, CommitmentPacked, StageStock, CommitmentUncommitted, ErrInvalidItemTransition},
		{"Scrapped is terminal", StageScrapped, CommitmentUncommitted, StageScrapped, CommitmentUncommitted, ErrInvalidItemTransition},
		{"Stock cannot ship", StageStock, CommitmentCommitted, StageShipped, CommitmentPacked, ErrInvalidItemTransition},
		{"Packed is not valid in stock", StageAvailable, CommitmentReadyForPacking, StageStock, CommitmentPacked, ErrInvalidStatusPair},
		{"Ready for packing only when available", StageQC, CommitmentInProcess, StageQC, CommitmentReadyForPacking, ErrInvalidStatusPair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newTestItem(tt.from)
			item.Commitment = tt.commitment

			err := item.Transition(tt.to, tt.toCommit, time.Now())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, item.Stage)
				assert.Equal(t, tt.commitment, item.Commitment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, item.Stage)
			assert.Equal(t, tt.toCommit, item.Commitment)
		})
	}
}

func TestStatusPairTable_IsComplete(t *testing.T) {
	for stage := range stageTransitions {
		assert.NotEmpty(t, allowedCommitments[stage], "stage %s has no commitments", stage)
		for _, next := range stageTransitions[stage] {
			assert.True(t, next.IsValid(), "unknown stage %s reachable from %s", next, stage)
		}
	}
}

func TestInventoryItem_CommitAndRelease(t *testing.T) {
	item := newTestItem(StageStock)

	require.NoError(t, item.CommitTo("ORD-1", "OI-1", "ST-32-R-32-RAW", time.Now()))
	assert.Equal(t, CommitmentCommitted, item.Commitment)
	assert.Equal(t, "ORD-1", item.OrderID)

	err := item.CommitTo("ORD-2", "OI-9", "ST-32-R-32-RAW", time.Now())
	assert.ErrorIs(t, err, ErrItemUnavailable)
	assert.Equal(t, "ORD-1", item.OrderID)

	require.NoError(t, item.Release(StageStock, time.Now()))
	assert.True(t, item.IsUncommitted())
	assert.Empty(t, item.OrderID)
	assert.Empty(t, item.TargetSKU)
}

func TestInventoryItem_Location(t *testing.T) {
	item := newTestItem(StageAvailable)
	assert.True(t, item.IsAvailable())

	item.PlaceInBin(&Bin{ID: "BIN-1", Code: "PK-01"}, time.Now())
	assert.Equal(t, "BIN-1", item.BinID)
	assert.Equal(t, "PK-01", item.Location)

	item.MoveTo("RACK-7", time.Now())
	assert.Empty(t, item.BinID)
	assert.Equal(t, "RACK-7", item.Location)

	item.Rewrite(MustParseSKU("ST-32-R-34-RAW"), time.Now())
	assert.Equal(t, "ST-32-R-34-RAW", item.SKU)
	assert.Equal(t, "ST-32", item.SKUPrefix)
}

func TestBin_CheckAssignable(t *testing.T) {
	bin := &Bin{ID: "B1", Code: "PK-01", Type: BinTypePacking, Capacity: 10, CurrentCount: 10, Active: true}

	assert.ErrorIs(t, bin.CheckAssignable(BinTypePacking, 1), ErrBinFull)
	bin.CurrentCount = 9
	assert.NoError(t, bin.CheckAssignable(BinTypePacking, 1))
	assert.ErrorIs(t, bin.CheckAssignable(BinTypePacking, 2), ErrBinFull)
	assert.ErrorIs(t, bin.CheckAssignable(BinTypeWash, 1), ErrBinTypeMismatch)
	bin.Active = false
	assert.ErrorIs(t, bin.CheckAssignable(BinTypePacking, 1), ErrBinInactive)
	assert.Equal(t, 1, bin.FreeSpace())
}
