// Package storage provides object storage implementations for export archival.
package storage

import (
	"context"
	"errors"
	"io"

	platforminfra "github.com/shopsight/backend/internal/infrastructure/platform"
)

// NoopArchive is the archive used when storage is disabled in configuration.
// Payloads passed to Store are drained and discarded so the result download
// sharing the tee is never blocked.
type NoopArchive struct{}

// NewNoopArchive creates a new NoopArchive
func NewNoopArchive() *NoopArchive {
	return &NoopArchive{}
}

// Ensure NoopArchive implements the fetcher's archive sink
var _ platforminfra.ArchiveSink = (*NoopArchive)(nil)

// Store drains the reader and discards the payload
func (n *NoopArchive) Store(ctx context.Context, storageKey string, r io.Reader) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	_, err := io.Copy(io.Discard, r)
	return err
}
