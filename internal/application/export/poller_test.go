package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/application/ingest"
	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
)

type pollerFixture struct {
	poller   *Poller
	shops    *MockShopRepository
	jobs     *MockJobRepository
	exporter *MockBulkExporter
	fetcher  *MockResultFetcher
	ingestor *MockIngestor
	backoff  *MockBackoffStore
}

func newPollerFixture() *pollerFixture {
	f := &pollerFixture{
		shops:    new(MockShopRepository),
		jobs:     new(MockJobRepository),
		exporter: new(MockBulkExporter),
		fetcher:  new(MockResultFetcher),
		ingestor: new(MockIngestor),
		backoff:  new(MockBackoffStore),
	}
	f.poller = NewPoller(
		PollerConfig{MaxPollAttempts: 100, MaxJobAge: 24 * time.Hour},
		f.shops, f.jobs, f.exporter, f.fetcher, f.ingestor, f.backoff,
		zap.NewNop(),
	)
	return f
}

func (f *pollerFixture) newJob(t *testing.T) *export.BulkExportJob {
	t.Helper()
	sh := newTestShop(t)
	f.shops.On("FindByID", mock.Anything, sh.ID).Return(sh, nil)
	job, err := export.NewBulkExportJob(sh.ID, export.KindOrder, "gid://commerce/BulkOperation/9")
	require.NoError(t, err)
	return job
}

func TestPoller_Process(t *testing.T) {
	t.Run("running operation stays pending", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateRunning}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusPending, job.Status)
		assert.Equal(t, 1, job.PollAttempts)
	})

	t.Run("completed operation is fetched and ingested", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)
		url := "https://files.example.com/result.jsonl"
		stream := &emptyStream{skipped: 1}

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateCompleted, URL: url, ObjectCount: 3}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.fetcher.On("Fetch", mock.Anything, url).Return(stream, nil)
		f.ingestor.On("Ingest", mock.Anything, job, stream).
			Return(&ingest.Summary{RecordsProcessed: 3, RecordsSkipped: 1}, nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusCompleted, job.Status)
		require.NotNil(t, job.ResultURL)
		assert.Equal(t, url, *job.ResultURL)
		assert.Equal(t, 3, job.RecordsIngested)
		assert.Equal(t, 1, job.RecordsSkipped)
	})

	t.Run("completed operation without result file completes empty", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateCompleted}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusCompleted, job.Status)
		assert.Nil(t, job.ResultURL)
		assert.Equal(t, 0, job.RecordsIngested)
		f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("auth error fails job immediately", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(nil, platform.ErrAuth)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeAuth, job.ErrorCode)
	})

	t.Run("rate limit bumps shop backoff and keeps job pending", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(nil, platform.ErrRateLimited)
		f.backoff.On("Bump", mock.Anything, job.ShopID).Return(30*time.Second, nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusPending, job.Status)
		f.backoff.AssertExpectations(t)
	})

	t.Run("failed operation maps platform error code", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateFailed, ErrorCode: "ACCESS_DENIED"}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeAuth, job.ErrorCode)
	})

	t.Run("failed operation retains an unrecognized platform code", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateFailed, ErrorCode: "INTERNAL_SERVER_ERROR"}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", job.ErrorCode)
	})

	t.Run("failed operation without a code falls back to query rejection", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateFailed}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeQuery, job.ErrorCode)
	})

	t.Run("exhausted poll budget fails with timeout", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)
		job.PollAttempts = 200

		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeTimeout, job.ErrorCode)
		f.exporter.AssertNotCalled(t, "PollOperation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("disconnected shop abandons job and discards result", func(t *testing.T) {
		f := newPollerFixture()
		sh := newTestShop(t)
		require.NoError(t, sh.Disconnect())
		f.shops.On("FindByID", mock.Anything, sh.ID).Return(sh, nil)
		job, err := export.NewBulkExportJob(sh.ID, export.KindOrder, "gid://commerce/BulkOperation/9")
		require.NoError(t, err)

		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusAbandoned, job.Status)
		f.exporter.AssertNotCalled(t, "PollOperation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("data integrity abort fails job", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)
		url := "https://files.example.com/result.jsonl"
		stream := &emptyStream{}

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateCompleted, URL: url}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.fetcher.On("Fetch", mock.Anything, url).Return(stream, nil)
		f.ingestor.On("Ingest", mock.Anything, job, stream).Return(nil, platform.ErrDataIntegrity)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeDataIntegrity, job.ErrorCode)
	})

	t.Run("download failure after retries fails with fetch code", func(t *testing.T) {
		f := newPollerFixture()
		job := f.newJob(t)
		url := "https://files.example.com/result.jsonl"

		f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
			Return(&platform.OperationStatus{State: platform.OperationStateCompleted, URL: url}, nil)
		f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
		f.fetcher.On("Fetch", mock.Anything, url).Return(nil, platform.ErrFetch).Times(fetchAttempts)
		f.jobs.On("Save", mock.Anything, job).Return(nil)

		require.NoError(t, f.poller.Process(context.Background(), job))

		assert.Equal(t, export.JobStatusFailed, job.Status)
		assert.Equal(t, export.ErrCodeFetch, job.ErrorCode)
		f.fetcher.AssertExpectations(t)
	})
}

func TestPoller_Process_EmitsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	}()

	f := newPollerFixture()
	job := f.newJob(t)
	url := "https://files.example.com/result.jsonl"
	stream := &emptyStream{}

	f.exporter.On("PollOperation", mock.Anything, mock.Anything, job.OperationID).
		Return(&platform.OperationStatus{State: platform.OperationStateCompleted, URL: url, ObjectCount: 2}, nil)
	f.backoff.On("Reset", mock.Anything, job.ShopID).Return(nil)
	f.fetcher.On("Fetch", mock.Anything, url).Return(stream, nil)
	f.ingestor.On("Ingest", mock.Anything, job, stream).
		Return(&ingest.Summary{RecordsProcessed: 2}, nil)
	f.jobs.On("Save", mock.Anything, job).Return(nil)

	require.NoError(t, f.poller.Process(context.Background(), job))

	names := make([]string, 0)
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "export_job.poll")
	assert.Contains(t, names, "export_job.fetch_result")
	assert.Contains(t, names, "export_job.ingest")
}
