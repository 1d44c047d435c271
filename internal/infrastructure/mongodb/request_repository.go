package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-service/internal/domain"
)

type requestRepository struct {
	collection *mongo.Collection
	outbox     *eventWriter
}

var openStatuses = bson.A{domain.RequestStatusPending, domain.RequestStatusInProgress}

func (r *requestRepository) Create(ctx context.Context, request *domain.Request) error {
	request.Version = 1
	if err := insert(ctx, r.collection, "request", request.ID, request); err != nil {
		return err
	}
	return r.outbox.requestEvents(ctx, request)
}

func (r *requestRepository) FindByID(ctx context.Context, id string) (*domain.Request, error) {
	req, err := findOne[domain.Request](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find request %s: %w", id, err)
	}
	return req, nil
}

func (r *requestRepository) find(ctx context.Context, filter bson.M) ([]*domain.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	reqs, err := findAll[domain.Request](ctx, r.collection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find requests: %w", err)
	}
	return reqs, nil
}

func (r *requestRepository) FindOpenByItem(ctx context.Context, itemID string, requestType domain.RequestType) ([]*domain.Request, error) {
	filter := bson.M{"itemId": itemID, "status": bson.M{"$in": openStatuses}}
	if requestType != "" {
		filter["type"] = requestType
	}
	return r.find(ctx, filter)
}

func (r *requestRepository) FindByParent(ctx context.Context, parentID string) ([]*domain.Request, error) {
	return r.find(ctx, bson.M{"parentRequestId": parentID})
}

func (r *requestRepository) Update(ctx context.Context, request *domain.Request) error {
	version := request.Version
	request.Version++
	if err := replaceVersioned(ctx, r.collection, "request", request.ID, version, request); err != nil {
		request.Version = version
		return err
	}
	return r.outbox.requestEvents(ctx, request)
}
