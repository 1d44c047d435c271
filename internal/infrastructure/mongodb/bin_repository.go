package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-service/internal/domain"
)

type binRepository struct {
	collection *mongo.Collection
}

func (r *binRepository) Create(ctx context.Context, bins ...*domain.Bin) error {
	for _, bin := range bins {
		if err := insert(ctx, r.collection, "bin", bin.ID, bin); err != nil {
			return err
		}
	}
	return nil
}

func (r *binRepository) FindByID(ctx context.Context, id string) (*domain.Bin, error) {
	bin, err := findOne[domain.Bin](ctx, r.collection, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to find bin %s: %w", id, err)
	}
	return bin, nil
}

func (r *binRepository) FindByCode(ctx context.Context, code string) (*domain.Bin, error) {
	bin, err := findOne[domain.Bin](ctx, r.collection, bson.M{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to find bin %s: %w", code, err)
	}
	return bin, nil
}

func (r *binRepository) Find(ctx context.Context, q domain.BinQuery) ([]*domain.Bin, error) {
	filter := bson.M{}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	switch {
	case q.Unassigned:
		filter["affinitySku"] = bson.M{"$in": bson.A{nil, ""}}
	case q.AffinitySKU != "":
		filter["affinitySku"] = q.AffinitySKU
	}
	if q.ActiveOnly {
		filter["active"] = true
	}
	if q.MinFree > 0 {
		filter["$expr"] = bson.M{"$gte": bson.A{
			bson.M{"$subtract": bson.A{"$capacity", "$currentCount"}},
			q.MinFree,
		}}
	}

	bins, err := findAll[domain.Bin](ctx, r.collection, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find bins: %w", err)
	}
	return bins, nil
}

// IncrementIfRoom adds n in a single conditional update so two allocators can
// never push a bin past its capacity.
func (r *binRepository) IncrementIfRoom(ctx context.Context, id string, n int) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"active": true,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$currentCount", n}},
			"$capacity",
		}},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentCount": n}})
	if err != nil {
		return false, fmt.Errorf("failed to increment bin %s: %w", id, err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *binRepository) DecrementIfAtLeast(ctx context.Context, id string, n int) (bool, error) {
	filter := bson.M{"_id": id, "currentCount": bson.M{"$gte": n}}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentCount": -n}})
	if err != nil {
		return false, fmt.Errorf("failed to decrement bin %s: %w", id, err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *binRepository) ResetCount(ctx context.Context, id string) error {
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"currentCount": 0}}); err != nil {
		return fmt.Errorf("failed to reset bin %s: %w", id, err)
	}
	return nil
}
