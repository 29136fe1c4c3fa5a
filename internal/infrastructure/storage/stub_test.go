package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopArchive_Store(t *testing.T) {
	a := NewNoopArchive()
	ctx := context.Background()

	t.Run("drains the reader fully", func(t *testing.T) {
		payload := strings.NewReader(`{"id":"gid://commerce/Order/1"}` + "\n")
		err := a.Store(ctx, "exports/op1/result.jsonl", payload)
		require.NoError(t, err)
		assert.Equal(t, 0, payload.Len())
	})

	t.Run("empty storage key", func(t *testing.T) {
		err := a.Store(ctx, "", strings.NewReader("{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})

	t.Run("propagates reader error", func(t *testing.T) {
		err := a.Store(ctx, "exports/op1/result.jsonl", failingReader{})
		require.Error(t, err)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}
