package outbox

import "context"

// Repository persists outbox events. Save and SaveAll are called inside the
// same transaction as the aggregate write.
type Repository interface {
	Save(ctx context.Context, event *Event) error
	SaveAll(ctx context.Context, events []*Event) error
	FindUnpublished(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, eventID string) error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
	DeletePublishedBefore(ctx context.Context, olderThanSeconds int) (int64, error)
}
