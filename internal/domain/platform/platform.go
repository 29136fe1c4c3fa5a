// Package platform contains the port for the external commerce platform.
//
// Key concepts:
//   - BulkExporter: submits bulk export requests and polls their status
//   - ResultFetcher: streams a completed export's JSONL result as records
//   - Record: one decoded JSONL line, classified once into a top-level or
//     child variant so ingestion never inspects raw id strings
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - The HTTP adapter lives in the infrastructure layer
package platform

import (
	"context"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
)

// Platform error taxonomy. Fatal errors end at the job record; retryable
// ones leave the job pending for the next tick.
var (
	// ErrAuth means the shop credential is invalid or expired. Fatal.
	ErrAuth = shared.NewDomainError("AUTH_FAILED", "Platform rejected the shop credential")
	// ErrRateLimited means the platform throttled the request. Retryable with backoff.
	ErrRateLimited = shared.NewDomainError("RATE_LIMITED", "Platform rate limit hit")
	// ErrQueryRejected means the export query was malformed. Fatal, indicates a defect.
	ErrQueryRejected = shared.NewDomainError("QUERY_REJECTED", "Platform rejected the export query")
	// ErrOperationNotFound means the platform no longer knows the operation handle
	ErrOperationNotFound = shared.NewDomainError("OPERATION_NOT_FOUND", "Platform operation not found")
	// ErrFetch means the result payload could not be downloaded
	ErrFetch = shared.NewDomainError("FETCH_FAILED", "Export result could not be fetched")
	// ErrRecordParse means one JSONL line was not valid JSON
	ErrRecordParse = shared.NewDomainError("RECORD_PARSE", "Export line is not valid JSON")
	// ErrDataIntegrity means too many lines failed to parse and the export is suspect
	ErrDataIntegrity = shared.NewDomainError("DATA_INTEGRITY", "Export parse-error rate exceeded the threshold")
)

// OperationState is the platform-side state of a bulk operation
type OperationState string

const (
	OperationStateCreated   OperationState = "created"
	OperationStateRunning   OperationState = "running"
	OperationStateCompleted OperationState = "completed"
	OperationStateFailed    OperationState = "failed"
)

// IsTerminal returns true when the platform finished computing the export
func (s OperationState) IsTerminal() bool {
	return s == OperationStateCompleted || s == OperationStateFailed
}

// OperationStatus is a bulk operation's state as reported by a poll
type OperationStatus struct {
	State OperationState
	// ErrorCode is set when State is failed
	ErrorCode string
	// URL is the downloadable JSONL result, set when State is completed
	URL string
	// ObjectCount and FileSize are progress counters reported by the platform
	ObjectCount int64
	FileSize    int64
}

// BulkExporter submits bulk export requests and polls their status.
// Submission starts asynchronous computation on the platform; no local heavy
// work happens here.
type BulkExporter interface {
	// SubmitExport requests an export of one entity kind for one shop and
	// returns the platform's operation handle.
	// Fails with ErrAuth, ErrQueryRejected or ErrRateLimited.
	SubmitExport(ctx context.Context, s *shop.Shop, kind export.EntityKind) (string, error)

	// PollOperation queries the current status of an operation by handle
	PollOperation(ctx context.Context, s *shop.Shop, operationID string) (*OperationStatus, error)
}

// RecordStream yields decoded records lazily, in stream order.
type RecordStream interface {
	// Next returns the next record, or io.EOF when the stream is exhausted.
	// Malformed lines are skipped and counted; Next fails with
	// ErrDataIntegrity if the skip rate crosses the fetcher's threshold.
	Next() (*Record, error)

	// Skipped returns the number of malformed lines skipped so far
	Skipped() int

	Close() error
}

// ResultFetcher downloads a completed export's JSONL payload
type ResultFetcher interface {
	// Fetch opens the result URL and returns a lazy record stream.
	// Fails with ErrFetch when the payload is unreachable or not JSONL.
	Fetch(ctx context.Context, url string) (RecordStream, error)
}
