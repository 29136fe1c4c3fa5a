package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appexport "github.com/shopsight/backend/internal/application/export"
	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/infrastructure/config"
)

// Submitter starts a new bulk export for one shop and entity kind
type Submitter interface {
	Submit(ctx context.Context, shopID uuid.UUID, kind export.EntityKind) (*export.BulkExportJob, error)
}

// Processor runs one poll cycle for a claimed job
type Processor interface {
	Process(ctx context.Context, job *export.BulkExportJob) error
}

// PollScheduler drives the bulk-export lifecycle: a fixed-interval tick
// claims due jobs and fans them out to a bounded worker pool, and install
// handlers enqueue submission tasks through the same queue. Claims are
// version-guarded leases in the job registry, so several scheduler processes
// can run side by side without double-polling.
type PollScheduler struct {
	cfg       config.SchedulerConfig
	jobs      export.JobRepository
	submitter Submitter
	processor Processor
	backoff   appexport.BackoffStore
	logger    *zap.Logger

	tasks     chan task
	cancel    context.CancelFunc
	tickWG    sync.WaitGroup
	workerWG  sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPollScheduler creates a poll scheduler
func NewPollScheduler(
	cfg config.SchedulerConfig,
	jobs export.JobRepository,
	submitter Submitter,
	processor Processor,
	backoff appexport.BackoffStore,
	logger *zap.Logger,
) (*PollScheduler, error) {
	if cfg.Workers <= 0 || cfg.BatchSize <= 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.PollInterval <= 0 || cfg.LeaseDuration < cfg.PollInterval {
		return nil, ErrInvalidConfig
	}

	return &PollScheduler{
		cfg:       cfg,
		jobs:      jobs,
		submitter: submitter,
		processor: processor,
		backoff:   backoff,
		logger:    logger,
		tasks:     make(chan task, cfg.Workers*4),
	}, nil
}

// Start starts the worker pool and the tick loop
func (s *PollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go s.worker(ctx, i)
	}

	s.tickWG.Add(1)
	go s.tickLoop(ctx)

	s.logger.Info("poll scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("lease_duration", s.cfg.LeaseDuration))

	return nil
}

// Stop gracefully stops the scheduler
func (s *PollScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	s.tickWG.Wait()
	close(s.tasks)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("poll scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("poll scheduler stop timed out")
		return ctx.Err()
	}
}

// EnqueueExports queues one submission task per entity kind for a freshly
// connected shop. This is the explicit hand-off from the install flow into
// the scheduler's work queue.
func (s *PollScheduler) EnqueueExports(shopID uuid.UUID) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	for _, kind := range export.AllKinds() {
		select {
		case s.tasks <- submitTask{shopID: shopID, kind: kind}:
		default:
			return ErrJobQueueFull
		}
	}
	return nil
}

// tickLoop claims due jobs on a fixed interval and hands them to the pool
func (s *PollScheduler) tickLoop(ctx context.Context) {
	defer s.tickWG.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fetches one batch of due jobs, applies per-shop backoff, claims each
// and enqueues the claimed ones
func (s *PollScheduler) tick(ctx context.Context) {
	due, err := s.jobs.FindDue(ctx, s.cfg.PollInterval, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to fetch due jobs", zap.Error(err))
		return
	}

	for _, job := range due {
		delay, err := s.backoff.Delay(ctx, job.ShopID)
		if err != nil {
			s.logger.Warn("failed to read shop backoff, polling anyway",
				zap.String("shop_id", job.ShopID.String()),
				zap.Error(err))
		} else if delay > 0 {
			continue
		}

		if err := s.jobs.Claim(ctx, job, time.Now().Add(s.cfg.LeaseDuration)); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				// Another scheduler got there first
				continue
			}
			s.logger.Error("failed to claim due job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			continue
		}

		select {
		case s.tasks <- pollTask{job: job}:
		default:
			// The lease expires on its own and the job becomes due again
			s.logger.Warn("task queue full, dropping claimed job",
				zap.String("job_id", job.ID.String()))
		}
	}
}

// worker executes tasks from the queue
func (s *PollScheduler) worker(ctx context.Context, workerID int) {
	defer s.workerWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-s.tasks:
			if !ok {
				return
			}
			t.run(ctx, s, workerID)
		}
	}
}

// task is one unit of scheduler work
type task interface {
	run(ctx context.Context, s *PollScheduler, workerID int)
}

// pollTask runs one poll cycle for a claimed job
type pollTask struct {
	job *export.BulkExportJob
}

func (t pollTask) run(ctx context.Context, s *PollScheduler, workerID int) {
	if err := s.processor.Process(ctx, t.job); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.logger.Error("poll cycle failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", t.job.ID.String()),
			zap.Error(err))
	}
}

// submitTask starts one bulk export for a shop
type submitTask struct {
	shopID uuid.UUID
	kind   export.EntityKind
}

func (t submitTask) run(ctx context.Context, s *PollScheduler, workerID int) {
	job, err := s.submitter.Submit(ctx, t.shopID, t.kind)
	if err != nil {
		if errors.Is(err, export.ErrDuplicateJob) {
			return
		}
		s.logger.Error("export submission failed",
			zap.Int("worker_id", workerID),
			zap.String("shop_id", t.shopID.String()),
			zap.String("kind", string(t.kind)),
			zap.Error(err))
		return
	}

	s.logger.Info("export submitted",
		zap.Int("worker_id", workerID),
		zap.String("shop_id", t.shopID.String()),
		zap.String("kind", string(t.kind)),
		zap.String("job_id", job.ID.String()))
}
