package domain

import (
	"fmt"
	"time"
)

// ItemStage is the coarse lifecycle position of a physical item.
type ItemStage string

const (
	StageProduction ItemStage = "PRODUCTION"
	StageStock      ItemStage = "STOCK"
	StageAvailable  ItemStage = "AVAILABLE"
	StageWash       ItemStage = "WASH"
	StageQC         ItemStage = "QC"
	StageFinishing  ItemStage = "FINISHING"
	StagePacking    ItemStage = "PACKING"
	StageShipped    ItemStage = "SHIPPED"
	StageDefective  ItemStage = "DEFECTIVE"
	StageScrapped   ItemStage = "SCRAPPED"
)

// ItemCommitment tracks whether an item is spoken for.
type ItemCommitment string

const (
	CommitmentUncommitted     ItemCommitment = "UNCOMMITTED"
	CommitmentCommitted       ItemCommitment = "COMMITTED"
	CommitmentAssigned        ItemCommitment = "ASSIGNED"
	CommitmentInProcess       ItemCommitment = "IN_PROCESS"
	CommitmentReadyForPacking ItemCommitment = "READY_FOR_PACKING"
	CommitmentPacked          ItemCommitment = "PACKED"
	CommitmentOnHold          ItemCommitment = "ON_HOLD"
)

// allowedCommitments lists the commitments valid for each stage.
var allowedCommitments = map[ItemStage][]ItemCommitment{
	StageProduction: {CommitmentUncommitted, CommitmentCommitted, CommitmentAssigned},
	StageStock:      {CommitmentUncommitted, CommitmentCommitted, CommitmentAssigned},
	StageAvailable:  {CommitmentUncommitted, CommitmentCommitted, CommitmentAssigned, CommitmentReadyForPacking},
	StageWash:       {CommitmentUncommitted, CommitmentCommitted, CommitmentAssigned, CommitmentInProcess},
	StageQC:         {CommitmentUncommitted, CommitmentCommitted, CommitmentAssigned, CommitmentInProcess},
	StageFinishing:  {CommitmentCommitted, CommitmentAssigned, CommitmentInProcess},
	StagePacking:    {CommitmentAssigned, CommitmentPacked},
	StageShipped:    {CommitmentPacked},
	StageDefective:  {CommitmentUncommitted, CommitmentCommitted, CommitmentOnHold},
	StageScrapped:   {CommitmentUncommitted},
}

// stageTransitions lists the stages reachable from each stage.
var stageTransitions = map[ItemStage][]ItemStage{
	StageProduction: {StageStock, StageAvailable, StageWash, StageQC, StageDefective, StageScrapped},
	StageStock:      {StageAvailable, StageWash, StageQC, StageFinishing, StagePacking, StageDefective, StageScrapped},
	StageAvailable:  {StageStock, StageWash, StageQC, StageFinishing, StagePacking, StageDefective, StageScrapped},
	StageWash:       {StageStock, StageAvailable, StageQC, StageDefective, StageScrapped},
	StageQC:         {StageStock, StageAvailable, StageWash, StageFinishing, StageDefective},
	StageFinishing:  {StageAvailable, StageQC, StageDefective},
	StagePacking:    {StageAvailable, StageShipped, StageDefective},
	StageDefective:  {StageStock, StageAvailable, StageWash, StageQC, StageScrapped},
	StageShipped:    {},
	StageScrapped:   {},
}

// IsValid reports whether the stage is known.
func (s ItemStage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// IsTerminal reports whether the stage ends the item lifecycle.
func (s ItemStage) IsTerminal() bool {
	return s == StageShipped || s == StageScrapped
}

// CanTransitionTo reports whether moving to next is allowed. Staying in the
// same stage is always allowed for non-terminal stages.
func (s ItemStage) CanTransitionTo(next ItemStage) bool {
	if s == next {
		return !s.IsTerminal()
	}
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidStatusPair reports whether the stage and commitment may coexist.
func ValidStatusPair(stage ItemStage, commitment ItemCommitment) bool {
	for _, allowed := range allowedCommitments[stage] {
		if allowed == commitment {
			return true
		}
	}
	return false
}

// InventoryItem is one physical garment.
type InventoryItem struct {
	ID          string         `bson:"_id" json:"id"`
	SKU         string         `bson:"sku" json:"sku"`
	SKUPrefix   string         `bson:"skuPrefix" json:"-"`
	Stage       ItemStage      `bson:"stage" json:"stage"`
	Commitment  ItemCommitment `bson:"commitment" json:"commitment"`
	Location    string         `bson:"location" json:"location"`
	BinID       string         `bson:"binId,omitempty" json:"binId,omitempty"`
	OrderID     string         `bson:"orderId,omitempty" json:"orderId,omitempty"`
	OrderItemID string         `bson:"orderItemId,omitempty" json:"orderItemId,omitempty"`
	TargetSKU   string         `bson:"targetSku,omitempty" json:"targetSku,omitempty"`
	BatchID     string         `bson:"batchId,omitempty" json:"batchId,omitempty"`
	Version     int64          `bson:"version" json:"version"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// NewInventoryItem creates an uncommitted item at the given stage.
func NewInventoryItem(id string, sku SKU, stage ItemStage, location string, now time.Time) *InventoryItem {
	return &InventoryItem{
		ID:         id,
		SKU:        sku.String(),
		SKUPrefix:  sku.Prefix(),
		Stage:      stage,
		Commitment: CommitmentUncommitted,
		Location:   location,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ParsedSKU parses the stored SKU code.
func (i *InventoryItem) ParsedSKU() (SKU, error) {
	return ParseSKU(i.SKU)
}

// IsAvailable reports whether the item is on hand and free to handle.
func (i *InventoryItem) IsAvailable() bool {
	return i.Stage == StageStock || i.Stage == StageAvailable
}

// IsUncommitted reports whether no order holds the item.
func (i *InventoryItem) IsUncommitted() bool {
	return i.Commitment == CommitmentUncommitted
}

// Transition moves the item to a new stage and commitment, enforcing both
// the stage transition table and the allowed-pairs table.
func (i *InventoryItem) Transition(stage ItemStage, commitment ItemCommitment, now time.Time) error {
	if !i.Stage.CanTransitionTo(stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidItemTransition, i.Stage, stage)
	}
	if !ValidStatusPair(stage, commitment) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidStatusPair, stage, commitment)
	}
	i.Stage = stage
	i.Commitment = commitment
	i.UpdatedAt = now
	return nil
}

// CommitTo reserves the item for an order item.
func (i *InventoryItem) CommitTo(orderID, orderItemID, targetSKU string, now time.Time) error {
	if !i.IsUncommitted() {
		return fmt.Errorf("%w: item %s is %s", ErrItemUnavailable, i.ID, i.Commitment)
	}
	if err := i.Transition(i.Stage, CommitmentCommitted, now); err != nil {
		return err
	}
	i.OrderID = orderID
	i.OrderItemID = orderItemID
	i.TargetSKU = targetSKU
	return nil
}

// Release clears the order link and returns the item to uncommitted stock.
func (i *InventoryItem) Release(stage ItemStage, now time.Time) error {
	if err := i.Transition(stage, CommitmentUncommitted, now); err != nil {
		return err
	}
	i.OrderID = ""
	i.OrderItemID = ""
	i.TargetSKU = ""
	return nil
}

// PlaceInBin records the bin the item now sits in.
func (i *InventoryItem) PlaceInBin(bin *Bin, now time.Time) {
	i.BinID = bin.ID
	i.Location = bin.Code
	i.UpdatedAt = now
}

// MoveTo records a new location outside any bin.
func (i *InventoryItem) MoveTo(location string, now time.Time) {
	i.BinID = ""
	i.Location = location
	i.UpdatedAt = now
}

// Rewrite replaces the item SKU, keeping the derived prefix in sync.
func (i *InventoryItem) Rewrite(sku SKU, now time.Time) {
	i.SKU = sku.String()
	i.SKUPrefix = sku.Prefix()
	i.UpdatedAt = now
}

// Clone returns a deep copy.
func (i *InventoryItem) Clone() *InventoryItem {
	c := *i
	return &c
}
