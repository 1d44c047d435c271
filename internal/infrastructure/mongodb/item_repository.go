package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-service/internal/domain"
)

type itemRepository struct {
	collection *mongo.Collection
}

func (r *itemRepository) Create(ctx context.Context, items ...*domain.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, len(items))
	for i, item := range items {
		item.Version = 1
		docs[i] = item
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create inventory items: %w", err)
	}
	return nil
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := findOne[domain.InventoryItem](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find inventory item %s: %w", id, err)
	}
	return item, nil
}

// oldestFirst keeps ties stable so the matcher sees the same order as the
// in-memory store.
var oldestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

func withFilter(filter bson.M, f domain.ItemFilter) bson.M {
	if len(f.Stages) > 0 {
		filter["stage"] = bson.M{"$in": f.Stages}
	}
	if f.UncommittedOnly {
		filter["commitment"] = domain.CommitmentUncommitted
	}
	if len(f.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": f.ExcludeIDs}
	}
	return filter
}

func (r *itemRepository) find(ctx context.Context, filter bson.M) ([]*domain.InventoryItem, error) {
	items, err := findAll[domain.InventoryItem](ctx, r.collection, filter, oldestFirst)
	if err != nil {
		return nil, fmt.Errorf("failed to find inventory items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) FindBySKU(ctx context.Context, sku string, filter domain.ItemFilter) ([]*domain.InventoryItem, error) {
	return r.find(ctx, withFilter(bson.M{"sku": sku}, filter))
}

func (r *itemRepository) FindByPrefix(ctx context.Context, prefix string, filter domain.ItemFilter) ([]*domain.InventoryItem, error) {
	return r.find(ctx, withFilter(bson.M{"skuPrefix": prefix}, filter))
}

func (r *itemRepository) FindByBin(ctx context.Context, binID string) ([]*domain.InventoryItem, error) {
	return r.find(ctx, bson.M{"binId": binID})
}

func (r *itemRepository) FindByOrder(ctx context.Context, orderID string) ([]*domain.InventoryItem, error) {
	return r.find(ctx, bson.M{"orderId": orderID})
}

func (r *itemRepository) Update(ctx context.Context, item *domain.InventoryItem) error {
	version := item.Version
	item.Version++
	if err := replaceVersioned(ctx, r.collection, "inventory item", item.ID, version, item); err != nil {
		item.Version = version
		return err
	}
	return nil
}
