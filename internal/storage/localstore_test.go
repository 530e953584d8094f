package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDeleteExists(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	hash := Hash([]byte("blob contents"))

	exists, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, hash, []byte("blob contents")))

	exists, err = store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob contents"), got)

	require.NoError(t, store.Delete(ctx, hash))
	_, err = store.Get(ctx, hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Get_NotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "0123456789abcdef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Delete_MissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "does-not-exist"))
}
