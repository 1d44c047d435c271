package mongodb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wms-platform/production-service/internal/application"
	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/cloudevents"
	apperrors "github.com/wms-platform/production-service/pkg/errors"
	"github.com/wms-platform/production-service/pkg/logging"
	mongopkg "github.com/wms-platform/production-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/production-service/pkg/outbox/mongodb"
	testutil "github.com/wms-platform/production-service/pkg/testing"
)

type StoreIntegrationTestSuite struct {
	suite.Suite
	container *testutil.MongoDBContainer
	client    *mongopkg.Client
	store     *Store
	ctx       context.Context
	now       time.Time
}

func TestStoreIntegration(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Run(t, new(StoreIntegrationTestSuite))
}

func (s *StoreIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.now = mongopkg.Now()

	container, err := testutil.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.Client(s.ctx, "production_test")
	s.Require().NoError(err)
	s.client = client

	s.store = NewStore(client, cloudevents.NewEventFactory(cloudevents.SourceProduction))
}

func (s *StoreIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.store.EnsureIndexes(s.ctx))
}

func (s *StoreIntegrationTestSuite) TearDownTest() {
	s.Require().NoError(s.client.Database().Drop(s.ctx))
}

func (s *StoreIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *StoreIntegrationTestSuite) addBin(id string, binType domain.BinType, capacity, count int) {
	s.Require().NoError(s.store.Bins().Create(s.ctx, &domain.Bin{
		ID: id, Code: "BIN-" + id, Type: binType, Capacity: capacity, CurrentCount: count, Active: true,
	}))
}

func (s *StoreIntegrationTestSuite) addItem(id, sku string, stage domain.ItemStage, created time.Time) {
	item := domain.NewInventoryItem(id, domain.MustParseSKU(sku), stage, "RACK-1", created)
	s.Require().NoError(s.store.Items().Create(s.ctx, item))
}

func (s *StoreIntegrationTestSuite) outboxCount(filter bson.M) int64 {
	n, err := s.client.Collection(outboxMongo.CollectionName).CountDocuments(s.ctx, filter)
	s.Require().NoError(err)
	return n
}

func (s *StoreIntegrationTestSuite) TestIncrementIfRoomNeverExceedsCapacity() {
	s.addBin("S1", domain.BinTypeStorage, 5, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.Bins().IncrementIfRoom(s.ctx, "S1", 1)
			s.NoError(err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	bin, err := s.store.Bins().FindByID(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal(5, granted)
	s.Equal(5, bin.CurrentCount)

	ok, err := s.store.Bins().DecrementIfAtLeast(s.ctx, "S1", 6)
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.store.Bins().DecrementIfAtLeast(s.ctx, "S1", 5)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreIntegrationTestSuite) TestIncrementRejectsInactiveBin() {
	s.Require().NoError(s.store.Bins().Create(s.ctx, &domain.Bin{
		ID: "S1", Code: "BIN-S1", Type: domain.BinTypeStorage, Capacity: 5,
	}))
	ok, err := s.store.Bins().IncrementIfRoom(s.ctx, "S1", 1)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreIntegrationTestSuite) TestFindBins() {
	s.addBin("S1", domain.BinTypeStorage, 10, 9)
	s.addBin("S2", domain.BinTypeStorage, 10, 2)
	s.addBin("W1", domain.BinTypeWash, 10, 0)
	s.Require().NoError(s.store.Bins().Create(s.ctx, &domain.Bin{
		ID: "S3", Code: "BIN-S3", Type: domain.BinTypeStorage, AffinitySKU: "ST-32-R-32-RAW", Capacity: 10, Active: true,
	}))

	bins, err := s.store.Bins().Find(s.ctx, domain.BinQuery{Type: domain.BinTypeStorage, Unassigned: true, ActiveOnly: true, MinFree: 2})
	s.Require().NoError(err)
	s.Require().Len(bins, 1)
	s.Equal("S2", bins[0].ID)

	bins, err = s.store.Bins().Find(s.ctx, domain.BinQuery{Type: domain.BinTypeStorage, AffinitySKU: "ST-32-R-32-RAW"})
	s.Require().NoError(err)
	s.Require().Len(bins, 1)
	s.Equal("S3", bins[0].ID)
}

func (s *StoreIntegrationTestSuite) TestVersionedUpdateDetectsConflict() {
	s.addItem("ITEM-1", "ST-32-R-32-RAW", domain.StageStock, s.now)

	first, err := s.store.Items().FindByID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	second, err := s.store.Items().FindByID(s.ctx, "ITEM-1")
	s.Require().NoError(err)

	s.Require().NoError(first.CommitTo("ORDER-1", "L1", "ST-32-R-32-RAW", s.now))
	s.Require().NoError(s.store.Items().Update(s.ctx, first))
	s.Equal(int64(2), first.Version)

	s.Require().NoError(second.CommitTo("ORDER-2", "L1", "ST-32-R-32-RAW", s.now))
	err = s.store.Items().Update(s.ctx, second)
	s.ErrorIs(err, domain.ErrConcurrentModification)
	s.Equal(int64(1), second.Version)

	stored, err := s.store.Items().FindByID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal("ORDER-1", stored.OrderID)
}

func (s *StoreIntegrationTestSuite) TestItemQueriesAreOldestFirst() {
	s.addItem("NEW", "ST-32-R-32-RAW", domain.StageStock, s.now)
	s.addItem("OLD", "ST-32-R-32-RAW", domain.StageAvailable, s.now.Add(-time.Hour))
	s.addItem("WIP", "ST-32-R-32-RAW", domain.StageProduction, s.now.Add(-2*time.Hour))
	s.addItem("OTHER", "ST-32-U-30-IND", domain.StageStock, s.now.Add(-3*time.Hour))

	filter := domain.ItemFilter{Stages: []domain.ItemStage{domain.StageStock, domain.StageAvailable}, UncommittedOnly: true}
	items, err := s.store.Items().FindBySKU(s.ctx, "ST-32-R-32-RAW", filter)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("OLD", items[0].ID)
	s.Equal("NEW", items[1].ID)

	items, err = s.store.Items().FindByPrefix(s.ctx, "ST-32", filter)
	s.Require().NoError(err)
	s.Len(items, 3)
}

func (s *StoreIntegrationTestSuite) TestTransactionRollsBack() {
	s.addBin("S1", domain.BinTypeStorage, 5, 0)
	boom := errors.New("boom")

	err := s.store.WithTransaction(s.ctx, func(ctx context.Context) error {
		ok, err := s.store.Bins().IncrementIfRoom(ctx, "S1", 3)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.addItemIn(ctx, "ITEM-1")
		return boom
	})
	s.ErrorIs(err, boom)

	bin, err := s.store.Bins().FindByID(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal(0, bin.CurrentCount)
	item, err := s.store.Items().FindByID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Nil(item)
}

func (s *StoreIntegrationTestSuite) addItemIn(ctx context.Context, id string) {
	item := domain.NewInventoryItem(id, domain.MustParseSKU("ST-32-R-32-RAW"), domain.StageStock, "RACK-1", s.now)
	s.Require().NoError(s.store.Items().Create(ctx, item))
}

func (s *StoreIntegrationTestSuite) TestSizeChartKeepsDecimals() {
	chart := &domain.SizeChart{
		Key: "ST-32",
		Dimensions: map[string]domain.Tolerance{
			"waist": {Min: decimal.RequireFromString("31.5"), Target: decimal.RequireFromString("32"), Max: decimal.RequireFromString("32.75")},
		},
	}
	s.Require().NoError(s.store.SizeCharts().Save(s.ctx, chart))
	s.Require().NoError(s.store.SizeCharts().Save(s.ctx, chart))

	found, err := s.store.SizeCharts().FindByKey(s.ctx, "ST-32")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("32.75", found.Dimensions["waist"].Max.String())
	s.True(found.Dimensions["waist"].Accepts(decimal.RequireFromString("31.5")))

	missing, err := s.store.SizeCharts().FindByKey(s.ctx, "ST-40")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *StoreIntegrationTestSuite) TestProcessOrderEndToEnd() {
	logger := logging.Discard()
	rules := domain.DefaultSKURules()
	alloc := application.NewAllocator(s.store.Bins(), logger, nil)
	engine := application.NewEngine(s.store, alloc, logger, nil, application.EngineConfig{Rules: rules})
	coord := application.NewCoordinator(engine, application.NewMatcher(s.store.Items(), domain.NewScorer(rules), logger, nil), logger, nil)

	s.addBin("S1", domain.BinTypeStorage, 10, 0)
	s.addItem("ITEM-1", "ST-32-R-32-IND", domain.StageStock, s.now)
	order := &domain.Order{
		ID:          "ORDER-1",
		OrderNumber: "SO-1",
		Status:      domain.OrderStatusNew,
		Items:       []domain.OrderItem{{ID: "L1", SKU: "ST-32-R-32-RAW", Quantity: 1}},
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Require().NoError(s.store.Orders().Create(s.ctx, order))

	res, err := coord.ProcessOrder(s.ctx, application.ProcessOrderCommand{OrderID: "ORDER-1", OperatorID: "op-1"})
	s.Require().NoError(err)
	s.Equal(string(domain.OrderStatusProcessing), res.Order.Status)
	s.Require().Len(res.Requests, 1)
	s.Equal(string(domain.RequestTypeWash), res.Requests[0].Type)

	bin, err := s.store.Bins().FindByID(s.ctx, "S1")
	s.Require().NoError(err)
	s.Equal(1, bin.CurrentCount)

	s.Equal(int64(1), s.outboxCount(bson.M{"aggregateType": "order", "eventType": cloudevents.OrderStatusChanged}))
	s.Equal(int64(1), s.outboxCount(bson.M{"aggregateType": "request", "eventType": cloudevents.RequestCreated}))

	// A second order for the same SKU finds nothing and leaves no trace.
	order2 := &domain.Order{
		ID: "ORDER-2", OrderNumber: "SO-2", Status: domain.OrderStatusNew,
		Items:     []domain.OrderItem{{ID: "L1", SKU: "ST-32-R-32-RAW", Quantity: 1}},
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.Orders().Create(s.ctx, order2))
	_, err = coord.ProcessOrder(s.ctx, application.ProcessOrderCommand{OrderID: "ORDER-2", OperatorID: "op-1"})
	appErr, ok := apperrors.AsAppError(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeSKUNotFound, appErr.Code)

	stored, err := s.store.Orders().FindByID(s.ctx, "ORDER-2")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusNew, stored.Status)
	s.Equal(int64(1), stored.Version)
}
