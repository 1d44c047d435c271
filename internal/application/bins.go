package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/errors"
)

// Item bin moves keep bin counts equal to the number of items placed in
// them: entering a bin reserves a slot there and frees the slot of the bin
// the item leaves.

// assignItemToBin places item in a specific bin of binType.
func assignItemToBin(ctx context.Context, sc *StepContext, item *domain.InventoryItem, binID string, binType domain.BinType) (*domain.Bin, error) {
	if item.BinID == binID {
		bin, err := sc.Store.Bins().FindByID(ctx, binID)
		if err != nil {
			return nil, fmt.Errorf("failed to get bin: %w", err)
		}
		if bin == nil {
			return nil, errors.ErrNotFoundWithID("bin", binID)
		}
		if binType != "" && bin.Type != binType {
			return nil, fmt.Errorf("%w: bin %s is %s, expected %s", domain.ErrBinTypeMismatch, bin.Code, bin.Type, binType)
		}
		return bin, nil
	}

	bin, err := sc.Allocator.Assign(ctx, binID, binType, 1)
	if err != nil {
		return nil, err
	}
	if err := placeItem(ctx, sc.Allocator, item, bin, sc.Now); err != nil {
		return nil, err
	}
	return bin, nil
}

// allocateItemBin lets the allocator pick a bin of binType for item.
func allocateItemBin(ctx context.Context, sc *StepContext, item *domain.InventoryItem, binType domain.BinType) (*domain.Bin, error) {
	return reserveItemBin(ctx, sc.Allocator, item, binType, sc.Now)
}

// reserveItemBin places item in a bin of binType. An item already sitting in
// a bin of that type keeps its slot; otherwise the allocator picks a bin,
// which can never be the current one since its type differs.
func reserveItemBin(ctx context.Context, allocator *Allocator, item *domain.InventoryItem, binType domain.BinType, now time.Time) (*domain.Bin, error) {
	if item.BinID != "" {
		current, err := allocator.bins.FindByID(ctx, item.BinID)
		if err != nil {
			return nil, fmt.Errorf("failed to get bin: %w", err)
		}
		if current != nil && current.Type == binType {
			item.PlaceInBin(current, now)
			return current, nil
		}
	}

	alloc, err := allocator.Allocate(ctx, AllocationRequest{SKU: item.SKU, Quantity: 1, Type: binType})
	if err != nil {
		return nil, err
	}
	bin := &domain.Bin{ID: alloc.BinID, Code: alloc.BinCode, Type: binType}
	if err := placeItem(ctx, allocator, item, bin, now); err != nil {
		return nil, err
	}
	return bin, nil
}

// placeItem records item in bin, whose slot is already reserved.
func placeItem(ctx context.Context, allocator *Allocator, item *domain.InventoryItem, bin *domain.Bin, now time.Time) error {
	if item.BinID != "" && item.BinID != bin.ID {
		if err := allocator.Release(ctx, item.BinID, 1); err != nil {
			return err
		}
	}
	item.PlaceInBin(bin, now)
	return nil
}

// removeFromBin takes item out of its bin to a plain location.
func removeFromBin(ctx context.Context, allocator *Allocator, item *domain.InventoryItem, location string, now time.Time) error {
	if item.BinID != "" {
		if err := allocator.Release(ctx, item.BinID, 1); err != nil {
			return err
		}
	}
	item.MoveTo(location, now)
	return nil
}
