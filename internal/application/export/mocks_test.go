package export

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/shopsight/backend/internal/application/ingest"
	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
)

// MockShopRepository is a mock implementation of shop.Repository
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

// MockJobRepository is a mock implementation of export.JobRepository
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

// MockBulkExporter is a mock implementation of platform.BulkExporter
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

// MockResultFetcher is a mock implementation of platform.ResultFetcher
type MockResultFetcher struct {
	mock.Mock
}

func (m *MockResultFetcher) Fetch(ctx context.Context, url string) (platform.RecordStream, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(platform.RecordStream), args.Error(1)
}

// MockIngestor is a mock implementation of Ingestor
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, job *export.BulkExportJob, stream platform.RecordStream) (*ingest.Summary, error) {
	args := m.Called(ctx, job, stream)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Summary), args.Error(1)
}

// MockBackoffStore is a mock implementation of BackoffStore
type MockBackoffStore struct {
	mock.Mock
}

func (m *MockBackoffStore) Delay(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockBackoffStore) Bump(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockBackoffStore) Reset(ctx context.Context, shopID uuid.UUID) error {
	args := m.Called(ctx, shopID)
	return args.Error(0)
}

// emptyStream satisfies platform.RecordStream for poller tests
type emptyStream struct {
	skipped int
}

func (s *emptyStream) Next() (*platform.Record, error) { return nil, io.EOF }
func (s *emptyStream) Skipped() int                    { return s.skipped }
func (s *emptyStream) Close() error                    { return nil }
