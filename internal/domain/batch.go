package domain

import (
	"fmt"
	"time"
)

// BatchStatus represents the status of a production batch
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusReady      BatchStatus = "READY"
	BatchStatusInProgress BatchStatus = "IN_PROGRESS"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:    {BatchStatusReady},
	BatchStatusReady:      {BatchStatusInProgress},
	BatchStatusInProgress: {BatchStatusCompleted},
}

// ProductionBatch groups garments produced together from one pattern.
type ProductionBatch struct {
	ID        string      `bson:"_id" json:"id"`
	Code      string      `bson:"code" json:"code"`
	SKU       string      `bson:"sku" json:"sku"`
	Quantity  int         `bson:"quantity" json:"quantity"`
	Status    BatchStatus `bson:"status" json:"status"`
	Version   int64       `bson:"version" json:"version"`
	CreatedAt time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// TransitionTo moves the batch to next.
func (b *ProductionBatch) TransitionTo(next BatchStatus, now time.Time) error {
	for _, allowed := range batchTransitions[b.Status] {
		if allowed == next {
			b.Status = next
			b.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidBatchTransition, b.Status, next)
}

// Clone returns a copy.
func (b *ProductionBatch) Clone() *ProductionBatch {
	c := *b
	return &c
}
