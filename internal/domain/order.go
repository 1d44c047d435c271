package domain

import (
	"fmt"
	"time"
)

// OrderStatus represents the status of a customer order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
	OrderStatusReadyForPacking OrderStatus = "READY_FOR_PACKING"
	OrderStatusPacked          OrderStatus = "PACKED"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:             {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:      {OrderStatusReadyForPacking, OrderStatusCancelled},
	OrderStatusReadyForPacking: {OrderStatusPacked, OrderStatusCancelled},
	OrderStatusPacked:          {OrderStatusShipped},
}

// CanTransitionTo reports whether the order may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a customer order for one or more garments.
type Order struct {
	ID          string        `bson:"_id" json:"id"`
	OrderNumber string        `bson:"orderNumber" json:"orderNumber"`
	CustomerID  string        `bson:"customerId,omitempty" json:"customerId,omitempty"`
	Status      OrderStatus   `bson:"status" json:"status"`
	Items       []OrderItem   `bson:"items" json:"items"`
	Shipment    *ShipmentPrep `bson:"shipment,omitempty" json:"shipment,omitempty"`
	Version     int64         `bson:"version" json:"version"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
	Events      []DomainEvent `bson:"-" json:"-"`
}

// OrderItem requests Quantity units of one SKU. Each unit is fulfilled by
// exactly one inventory item.
type OrderItem struct {
	ID          string       `bson:"id" json:"id"`
	SKU         string       `bson:"sku" json:"sku"`
	Quantity    int          `bson:"quantity" json:"quantity"`
	Assignments []Assignment `bson:"assignments,omitempty" json:"assignments,omitempty"`
}

// Assignment links one unit of an order item to an inventory item.
type Assignment struct {
	InventoryItemID string            `bson:"inventoryItemId" json:"inventoryItemId"`
	MatchedSKU      string            `bson:"matchedSku" json:"matchedSku"`
	Tier            Tier              `bson:"tier" json:"tier"`
	Substitutions   []Substitution    `bson:"substitutions,omitempty" json:"substitutions,omitempty"`
	Adjustment      *LengthAdjustment `bson:"adjustment,omitempty" json:"adjustment,omitempty"`
	BinID           string            `bson:"binId,omitempty" json:"binId,omitempty"`
}

// ShipmentPrep records what processing reserved for the shipment.
type ShipmentPrep struct {
	PreparedAt time.Time `bson:"preparedAt" json:"preparedAt"`
	PreparedBy string    `bson:"preparedBy" json:"preparedBy"`
	ItemCount  int       `bson:"itemCount" json:"itemCount"`
	BinIDs     []string  `bson:"binIds" json:"binIds"`
}

// TransitionTo moves the order to next.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderTransition, o.Status, next)
	}
	from := o.Status
	o.Status = next
	o.UpdatedAt = now
	o.Events = append(o.Events, &OrderStatusChangedEvent{
		OrderID: o.ID, From: string(from), To: string(next), ChangedAt: now,
	})
	return nil
}

// Assign records an assignment against an order item.
func (o *Order) Assign(orderItemID string, a Assignment) error {
	for i := range o.Items {
		if o.Items[i].ID != orderItemID {
			continue
		}
		if len(o.Items[i].Assignments) >= o.Items[i].Quantity {
			return fmt.Errorf("%w: order item %s is fully assigned", ErrInvalidQuantity, orderItemID)
		}
		o.Items[i].Assignments = append(o.Items[i].Assignments, a)
		return nil
	}
	return fmt.Errorf("%w: order item %s", ErrItemNotInOrder, orderItemID)
}

// Unassign removes the assignment of an inventory item, if any.
func (o *Order) Unassign(inventoryItemID string) bool {
	for i := range o.Items {
		kept := o.Items[i].Assignments[:0]
		removed := false
		for _, a := range o.Items[i].Assignments {
			if a.InventoryItemID == inventoryItemID {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		o.Items[i].Assignments = kept
		if removed {
			return true
		}
	}
	return false
}

// AssignedItemIDs returns every inventory item assigned to the order.
func (o *Order) AssignedItemIDs() []string {
	var ids []string
	for _, item := range o.Items {
		for _, a := range item.Assignments {
			ids = append(ids, a.InventoryItemID)
		}
	}
	return ids
}

// UnitCount returns the total quantity ordered.
func (o *Order) UnitCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// IsFullyAssigned reports whether every ordered unit has an item.
func (o *Order) IsFullyAssigned() bool {
	return len(o.AssignedItemIDs()) >= o.UnitCount()
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.Assignments = append([]Assignment(nil), item.Assignments...)
		c.Items[i] = item
	}
	if o.Shipment != nil {
		s := *o.Shipment
		s.BinIDs = append([]string(nil), o.Shipment.BinIDs...)
		c.Shipment = &s
	}
	c.Events = nil
	return &c
}

// PullEvents returns and clears pending domain events.
func (o *Order) PullEvents() []DomainEvent {
	events := o.Events
	o.Events = nil
	return events
}
