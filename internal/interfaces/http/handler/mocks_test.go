package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/domain/store"
)

// MockShopRepository implements shop.Repository for testing
type MockShopRepository struct {
	mock.Mock
}

func (m *MockShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*shop.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shop.Shop), args.Error(1)
}

func (m *MockShopRepository) FindByDomain(ctx context.Context, domain string) (*shop.Shop, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shop.Shop), args.Error(1)
}

func (m *MockShopRepository) FindConnected(ctx context.Context) ([]*shop.Shop, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*shop.Shop), args.Error(1)
}

func (m *MockShopRepository) Save(ctx context.Context, sh *shop.Shop) error {
	args := m.Called(ctx, sh)
	return args.Error(0)
}

var _ shop.Repository = (*MockShopRepository)(nil)

// MockJobRepository implements export.JobRepository for testing
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *export.BulkExportJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*export.BulkExportJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*export.BulkExportJob), args.Error(1)
}

func (m *MockJobRepository) FindDue(ctx context.Context, interval time.Duration, limit int) ([]*export.BulkExportJob, error) {
	args := m.Called(ctx, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*export.BulkExportJob), args.Error(1)
}

func (m *MockJobRepository) FindActive(ctx context.Context, shopID uuid.UUID, kind export.EntityKind) (*export.BulkExportJob, error) {
	args := m.Called(ctx, shopID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*export.BulkExportJob), args.Error(1)
}

func (m *MockJobRepository) FindAll(ctx context.Context, filter export.JobFilter, page, pageSize int) (*shared.Paginated[*export.BulkExportJob], error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*export.BulkExportJob]), args.Error(1)
}

func (m *MockJobRepository) Claim(ctx context.Context, job *export.BulkExportJob, until time.Time) error {
	args := m.Called(ctx, job, until)
	return args.Error(0)
}

func (m *MockJobRepository) Save(ctx context.Context, job *export.BulkExportJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) AbandonActiveForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

var _ export.JobRepository = (*MockJobRepository)(nil)

// MockBulkExporter implements platform.BulkExporter for testing
type MockBulkExporter struct {
	mock.Mock
}

func (m *MockBulkExporter) SubmitExport(ctx context.Context, sh *shop.Shop, kind export.EntityKind) (string, error) {
	args := m.Called(ctx, sh, kind)
	return args.String(0), args.Error(1)
}

func (m *MockBulkExporter) PollOperation(ctx context.Context, sh *shop.Shop, operationID string) (*platform.OperationStatus, error) {
	args := m.Called(ctx, sh, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.OperationStatus), args.Error(1)
}

var _ platform.BulkExporter = (*MockBulkExporter)(nil)

// MockJobAbandoner implements shopapp.JobAbandoner for testing
type MockJobAbandoner struct {
	mock.Mock
}

func (m *MockJobAbandoner) AbandonShopJobs(ctx context.Context, shopID uuid.UUID) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

// MockExportEnqueuer implements ExportEnqueuer for testing
type MockExportEnqueuer struct {
	mock.Mock
}

func (m *MockExportEnqueuer) EnqueueExports(shopID uuid.UUID) error {
	args := m.Called(shopID)
	return args.Error(0)
}

var _ ExportEnqueuer = (*MockExportEnqueuer)(nil)

// MockCustomerStore implements store.CustomerRepository for testing
type MockCustomerStore struct {
	mock.Mock
}

func (m *MockCustomerStore) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Customer, error) {
	args := m.Called(ctx, shopID, platformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Customer), args.Error(1)
}

func (m *MockCustomerStore) FindByOrderPlatformID(ctx context.Context, shopID uuid.UUID, orderPlatformID string) (*store.Customer, error) {
	args := m.Called(ctx, shopID, orderPlatformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Customer), args.Error(1)
}

func (m *MockCustomerStore) Save(ctx context.Context, c *store.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerStore) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

var _ store.CustomerRepository = (*MockCustomerStore)(nil)

// MockOrderStore implements store.OrderRepository for testing
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Order, error) {
	args := m.Called(ctx, shopID, platformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Order), args.Error(1)
}

func (m *MockOrderStore) Save(ctx context.Context, o *store.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderStore) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

var _ store.OrderRepository = (*MockOrderStore)(nil)

// MockProductStore implements store.ProductRepository for testing
type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*store.Product, error) {
	args := m.Called(ctx, shopID, platformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Product), args.Error(1)
}

func (m *MockProductStore) Save(ctx context.Context, p *store.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductStore) CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

var _ store.ProductRepository = (*MockProductStore)(nil)
