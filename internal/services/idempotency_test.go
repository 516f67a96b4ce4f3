package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryIdempotencyStore()
	ctx := context.Background()

	// Unknown key: nothing to look up, claim succeeds.
	_, found, err := store.Lookup(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	claimed, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed)

	// While pending the key is claimed but resolves to nothing.
	claimed, err = store.Begin(ctx, "k")
	require.NoError(t, err)
	require.False(t, claimed)

	_, found, err = store.Lookup(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	orderID := uuid.New()
	require.NoError(t, store.Complete(ctx, "k", orderID))

	got, found, err := store.Lookup(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, orderID, got)

	// A completed key stays claimed.
	claimed, err = store.Begin(ctx, "k")
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestMemoryIdempotencyStoreFailFreesKey(t *testing.T) {
	t.Parallel()

	store := NewMemoryIdempotencyStore()
	ctx := context.Background()

	claimed, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Fail(ctx, "k"))

	claimed, err = store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed, "a failed checkout must not poison the key")
}
