package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	mongopkg "github.com/wms-platform/production-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/production-service/pkg/outbox/mongodb"
)

// Collection names
const (
	ItemsCollection      = "inventory_items"
	BinsCollection       = "bins"
	OrdersCollection     = "orders"
	RequestsCollection   = "production_requests"
	MaterialsCollection  = "materials"
	BatchesCollection    = "production_batches"
	ProblemsCollection   = "problems"
	SizeChartsCollection = "size_charts"
)

// Store is the MongoDB domain.Store. Request and order events are written to
// the outbox in the same transaction as the aggregate.
type Store struct {
	client *mongopkg.Client
	db     *mongo.Database
	outbox *eventWriter
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a Store over client's database.
func NewStore(client *mongopkg.Client, eventFactory *cloudevents.EventFactory) *Store {
	db := client.Database()
	return &Store{
		client: client,
		db:     db,
		outbox: &eventWriter{repo: outboxMongo.NewRepository(db), factory: eventFactory},
	}
}

// Outbox returns the outbox repository the relay reads from.
func (s *Store) Outbox() *outboxMongo.Repository {
	return s.outbox.repo
}

// WithTransaction implements domain.Transactor
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.client.WithTransaction(ctx, fn)
	if err != nil && errors.Is(err, mongopkg.ErrTransient) {
		return fmt.Errorf("%w: %w", domain.ErrTransientTransaction, err)
	}
	return err
}

func (s *Store) Items() domain.InventoryRepository {
	return &itemRepository{collection: s.db.Collection(ItemsCollection)}
}

func (s *Store) Bins() domain.BinRepository {
	return &binRepository{collection: s.db.Collection(BinsCollection)}
}

func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{collection: s.db.Collection(OrdersCollection), outbox: s.outbox}
}

func (s *Store) Requests() domain.RequestRepository {
	return &requestRepository{collection: s.db.Collection(RequestsCollection), outbox: s.outbox}
}

func (s *Store) Materials() domain.MaterialRepository {
	return &materialRepository{collection: s.db.Collection(MaterialsCollection)}
}

func (s *Store) Batches() domain.BatchRepository {
	return &batchRepository{collection: s.db.Collection(BatchesCollection)}
}

func (s *Store) Problems() domain.ProblemRepository {
	return &problemRepository{collection: s.db.Collection(ProblemsCollection)}
}

func (s *Store) SizeCharts() domain.SizeChartRepository {
	return &sizeChartRepository{collection: s.db.Collection(SizeChartsCollection)}
}

// EnsureIndexes creates the indexes behind the repository queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ItemsCollection: {
			{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "stage", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "skuPrefix", Value: 1}, {Key: "stage", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "binId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		BinsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "affinitySku", Value: 1}, {Key: "active", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		RequestsCollection: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "status", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "parentRequestId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		ProblemsCollection: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "reportedAt", Value: 1}}},
		},
		SizeChartsCollection: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return s.outbox.repo.EnsureIndexes(ctx)
}

// replaceVersioned writes doc when the stored version still equals version.
func replaceVersioned(ctx context.Context, c *mongo.Collection, kind, id string, version int64, doc any) error {
	result, err := c.ReplaceOne(ctx, mongopkg.VersionFilter(id, version), doc)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", kind, id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %s at version %d", domain.ErrConcurrentModification, kind, id, version)
	}
	return nil
}

// findOne decodes the single match of filter, returning nil when none exists.
func findOne[T any](ctx context.Context, c *mongo.Collection, filter any) (*T, error) {
	var doc T
	err := c.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func insert(ctx context.Context, c *mongo.Collection, kind, id string, doc any) error {
	if _, err := c.InsertOne(ctx, doc); err != nil {
		if mongopkg.IsDuplicateKey(err) {
			return fmt.Errorf("%s %s already exists: %w", kind, id, err)
		}
		return fmt.Errorf("failed to create %s %s: %w", kind, id, err)
	}
	return nil
}
