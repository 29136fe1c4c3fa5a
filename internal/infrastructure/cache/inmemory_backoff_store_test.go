package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedBackoffStore(base, cap time.Duration) (*InMemoryBackoffStore, *time.Time) {
	store := NewInMemoryBackoffStore(base, cap)
	now := time.Now()
	store.now = func() time.Time { return now }
	return store, &now
}

func TestInMemoryBackoffStore_Delay(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown shop has no delay", func(t *testing.T) {
		store := NewInMemoryBackoffStore(5*time.Second, 5*time.Minute)

		delay, err := store.Delay(ctx, uuid.New())

		require.NoError(t, err)
		assert.Zero(t, delay)
	})

	t.Run("bumped shop must wait", func(t *testing.T) {
		store, _ := newClockedBackoffStore(5*time.Second, 5*time.Minute)
		shopID := uuid.New()

		_, err := store.Bump(ctx, shopID)
		require.NoError(t, err)

		delay, err := store.Delay(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, delay)
	})

	t.Run("delay lapses with time", func(t *testing.T) {
		store, now := newClockedBackoffStore(5*time.Second, 5*time.Minute)
		shopID := uuid.New()

		_, err := store.Bump(ctx, shopID)
		require.NoError(t, err)

		*now = now.Add(6 * time.Second)

		delay, err := store.Delay(ctx, shopID)
		require.NoError(t, err)
		assert.Zero(t, delay)
	})
}

func TestInMemoryBackoffStore_Bump(t *testing.T) {
	ctx := context.Background()

	t.Run("doubles the window up to the cap", func(t *testing.T) {
		store, _ := newClockedBackoffStore(5*time.Second, 15*time.Second)
		shopID := uuid.New()

		first, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, first)

		second, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, second)

		third, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Second, third, "window is capped")
	})

	t.Run("starts over after the window lapsed", func(t *testing.T) {
		store, now := newClockedBackoffStore(5*time.Second, 5*time.Minute)
		shopID := uuid.New()

		_, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		_, err = store.Bump(ctx, shopID)
		require.NoError(t, err)

		*now = now.Add(time.Hour)

		window, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, window)
	})

	t.Run("shops back off independently", func(t *testing.T) {
		store, _ := newClockedBackoffStore(5*time.Second, 5*time.Minute)
		throttled := uuid.New()
		healthy := uuid.New()

		_, err := store.Bump(ctx, throttled)
		require.NoError(t, err)

		delay, err := store.Delay(ctx, healthy)
		require.NoError(t, err)
		assert.Zero(t, delay)
	})
}

func TestInMemoryBackoffStore_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the backoff and the escalation", func(t *testing.T) {
		store, _ := newClockedBackoffStore(5*time.Second, 5*time.Minute)
		shopID := uuid.New()

		_, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		_, err = store.Bump(ctx, shopID)
		require.NoError(t, err)

		require.NoError(t, store.Reset(ctx, shopID))

		delay, err := store.Delay(ctx, shopID)
		require.NoError(t, err)
		assert.Zero(t, delay)

		window, err := store.Bump(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, window, "escalation restarts at the base")
	})
}
