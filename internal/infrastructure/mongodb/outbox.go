package mongodb

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/production-service/pkg/outbox/mongodb"
)

// eventWriter turns pending domain events into outbox documents.
type eventWriter struct {
	repo    *outboxMongo.Repository
	factory *cloudevents.EventFactory
}

func (w *eventWriter) write(ctx context.Context, aggregateType, topic string, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	out := make([]*outbox.Event, 0, len(events))
	for _, e := range events {
		subject := fmt.Sprintf("%s/%s", aggregateType, e.AggregateID())
		ce := w.factory.CreateEvent(ctx, e.EventType(), subject, e)
		switch aggregateType {
		case "request":
			ce.RequestID = e.AggregateID()
		case "order":
			ce.OrderID = e.AggregateID()
		}
		if adv, ok := e.(*domain.RequestStepAdvancedEvent); ok {
			ce.OperatorID = adv.OperatorID
		}

		event, err := outbox.NewEvent(e.AggregateID(), aggregateType, topic, ce)
		if err != nil {
			return err
		}
		out = append(out, event)
	}
	return w.repo.SaveAll(ctx, out)
}

func (w *eventWriter) requestEvents(ctx context.Context, r *domain.Request) error {
	return w.write(ctx, "request", kafka.Topics.RequestEvents, r.PullEvents())
}

func (w *eventWriter) orderEvents(ctx context.Context, o *domain.Order) error {
	return w.write(ctx, "order", kafka.Topics.OrderEvents, o.PullEvents())
}
