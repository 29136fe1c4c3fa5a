package export

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MetricsRecorder receives export lifecycle counters. Implementations must be
// cheap and must never block the caller.
type MetricsRecorder interface {
	RecordJobSubmitted(ctx context.Context, shopID uuid.UUID, kind string)
	RecordJobCompleted(ctx context.Context, shopID uuid.UUID, kind string)
	RecordJobFailed(ctx context.Context, shopID uuid.UUID, kind, failureCode string)
	RecordIngestedRecords(ctx context.Context, shopID uuid.UUID, kind string, count int64)
	RecordSkippedRecords(ctx context.Context, shopID uuid.UUID, kind string, count int64)
	RecordPollDuration(ctx context.Context, kind string, d time.Duration)
}
