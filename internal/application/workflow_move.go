package application

import (
	"context"
	"fmt"
	"regexp"

	"github.com/wms-platform/production-service/internal/domain"
)

var destinationRe = regexp.MustCompile(`^[A-Z0-9-]+$`)

// WASH, QC and PACKING bins are filled only by their own workflows, which
// enforce wash groups and order checks.
var moveBinTypes = map[domain.BinType]bool{
	domain.BinTypeStorage:   true,
	domain.BinTypeFinishing: true,
}

type moveHandler struct{}

func (moveHandler) Workflow() *Workflow { return moveWorkflow }

var moveWorkflow = &Workflow{
	Type:  domain.RequestTypeMove,
	Entry: domain.StepNone,
	Steps: map[domain.Step]StepSpec{
		domain.StepNone: {Next: []domain.Step{domain.StepItemScan}},
		domain.StepItemScan: {
			Next:       []domain.Step{domain.StepDestinationScan},
			NewPayload: func() any { return &ItemScanPayload{} },
			Apply:      moveItemScan,
		},
		domain.StepDestinationScan: {
			Next:       []domain.Step{domain.StepMoveComplete},
			NewPayload: func() any { return &DestinationScanPayload{} },
			Validate:   validateDestination,
			Apply:      moveDestinationScan,
		},
		domain.StepMoveComplete: {
			Apply: moveComplete,
		},
	},
}

// scanItem binds the scanned item to the request, or checks it against the
// item already bound.
func scanItem(ctx context.Context, sc *StepContext, itemID string) (*domain.InventoryItem, error) {
	if sc.Request.ItemID != "" && sc.Request.ItemID != itemID {
		return nil, fmt.Errorf("%w: scanned %s, request is for %s", domain.ErrItemMismatch, itemID, sc.Request.ItemID)
	}
	item, err := sc.LoadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sc.Request.ItemID = item.ID
	return item, nil
}

func moveItemScan(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	p := payloadAs[ItemScanPayload](sc)
	item, err := scanItem(ctx, sc, p.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable() {
		return nil, fmt.Errorf("%w: item %s is %s", domain.ErrItemUnavailable, item.ID, item.Stage)
	}

	sc.Request.Metadata.Move.FromLocation = item.Location
	return &StepOutcome{Changes: map[string]string{"itemId": item.ID, "fromLocation": item.Location}}, nil
}

func validateDestination(ctx context.Context, sc *StepContext) error {
	dest := payloadAs[DestinationScanPayload](sc).Destination
	if !destinationRe.MatchString(dest) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDestination, dest)
	}
	if expected := sc.Request.Metadata.Move.ExpectedDestination; expected != "" && expected != dest {
		return fmt.Errorf("%w: scanned %s, expected %s", domain.ErrDestinationMismatch, dest, expected)
	}
	_, err := moveDestinationBin(ctx, sc, dest)
	return err
}

// moveDestinationBin returns the bin named by dest, or nil for a plain location.
func moveDestinationBin(ctx context.Context, sc *StepContext, dest string) (*domain.Bin, error) {
	bin, err := sc.Store.Bins().FindByCode(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bin %s: %w", dest, err)
	}
	if bin != nil && !moveBinTypes[bin.Type] {
		return nil, fmt.Errorf("%w: bin %s is %s, a move can only target STORAGE or FINISHING bins",
			domain.ErrBinTypeMismatch, bin.Code, bin.Type)
	}
	return bin, nil
}

func moveDestinationScan(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	dest := payloadAs[DestinationScanPayload](sc).Destination
	sc.Request.Metadata.Move.Destination = dest
	return &StepOutcome{Changes: map[string]string{"destination": dest}}, nil
}

// moveComplete relocates the item. A destination naming a bin places the
// item in that bin.
func moveComplete(ctx context.Context, sc *StepContext) (*StepOutcome, error) {
	item, err := sc.Item(ctx)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable() {
		return nil, fmt.Errorf("%w: item %s is %s", domain.ErrItemUnavailable, item.ID, item.Stage)
	}

	dest := sc.Request.Metadata.Move.Destination
	bin, err := moveDestinationBin(ctx, sc, dest)
	if err != nil {
		return nil, err
	}
	from := item.Location
	if bin != nil {
		if _, err := assignItemToBin(ctx, sc, item, bin.ID, bin.Type); err != nil {
			return nil, err
		}
		sc.Request.BinID = bin.ID
	} else if err := removeFromBin(ctx, sc.Allocator, item, dest, sc.Now); err != nil {
		return nil, err
	}
	if err := sc.SaveItem(ctx, item); err != nil {
		return nil, err
	}

	return &StepOutcome{
		Complete: true,
		Changes:  map[string]string{"location": from + " -> " + item.Location},
	}, nil
}
