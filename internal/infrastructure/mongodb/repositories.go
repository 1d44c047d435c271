package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-service/internal/domain"
)

type orderRepository struct {
	collection *mongo.Collection
	outbox     *eventWriter
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.Version = 1
	if err := insert(ctx, r.collection, "order", order.ID, order); err != nil {
		return err
	}
	return r.outbox.orderEvents(ctx, order)
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := findOne[domain.Order](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", id, err)
	}
	return order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	version := order.Version
	order.Version++
	if err := replaceVersioned(ctx, r.collection, "order", order.ID, version, order); err != nil {
		order.Version = version
		return err
	}
	return r.outbox.orderEvents(ctx, order)
}

type materialRepository struct {
	collection *mongo.Collection
}

func (r *materialRepository) Create(ctx context.Context, material *domain.Material) error {
	material.Version = 1
	return insert(ctx, r.collection, "material", material.ID, material)
}

func (r *materialRepository) FindByID(ctx context.Context, id string) (*domain.Material, error) {
	material, err := findOne[domain.Material](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find material %s: %w", id, err)
	}
	return material, nil
}

func (r *materialRepository) Update(ctx context.Context, material *domain.Material) error {
	version := material.Version
	material.Version++
	if err := replaceVersioned(ctx, r.collection, "material", material.ID, version, material); err != nil {
		material.Version = version
		return err
	}
	return nil
}

type batchRepository struct {
	collection *mongo.Collection
}

func (r *batchRepository) Create(ctx context.Context, batch *domain.ProductionBatch) error {
	batch.Version = 1
	return insert(ctx, r.collection, "batch", batch.ID, batch)
}

func (r *batchRepository) FindByID(ctx context.Context, id string) (*domain.ProductionBatch, error) {
	batch, err := findOne[domain.ProductionBatch](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find batch %s: %w", id, err)
	}
	return batch, nil
}

func (r *batchRepository) Update(ctx context.Context, batch *domain.ProductionBatch) error {
	version := batch.Version
	batch.Version++
	if err := replaceVersioned(ctx, r.collection, "batch", batch.ID, version, batch); err != nil {
		batch.Version = version
		return err
	}
	return nil
}

type problemRepository struct {
	collection *mongo.Collection
}

func (r *problemRepository) Create(ctx context.Context, problem *domain.Problem) error {
	return insert(ctx, r.collection, "problem", problem.ID, problem)
}

func (r *problemRepository) FindByID(ctx context.Context, id string) (*domain.Problem, error) {
	problem, err := findOne[domain.Problem](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find problem %s: %w", id, err)
	}
	return problem, nil
}

func (r *problemRepository) FindByItem(ctx context.Context, itemID string) ([]*domain.Problem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "reportedAt", Value: 1}})
	problems, err := findAll[domain.Problem](ctx, r.collection, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find problems of item %s: %w", itemID, err)
	}
	return problems, nil
}

func (r *problemRepository) Update(ctx context.Context, problem *domain.Problem) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": problem.ID}, problem)
	if err != nil {
		return fmt.Errorf("failed to update problem %s: %w", problem.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: problem %s vanished", domain.ErrConcurrentModification, problem.ID)
	}
	return nil
}

type sizeChartRepository struct {
	collection *mongo.Collection
}

// Save upserts by key.
func (r *sizeChartRepository) Save(ctx context.Context, chart *domain.SizeChart) error {
	if chart.ID == "" {
		chart.ID = chart.Key
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"key": chart.Key}, chart, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save size chart %s: %w", chart.Key, err)
	}
	return nil
}

func (r *sizeChartRepository) FindByKey(ctx context.Context, key string) (*domain.SizeChart, error) {
	chart, err := findOne[domain.SizeChart](ctx, r.collection, bson.M{"key": key})
	if err != nil {
		return nil, fmt.Errorf("failed to find size chart %s: %w", key, err)
	}
	return chart, nil
}
