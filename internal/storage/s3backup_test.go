package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlobStore test double; S3Backup itself needs a
// live bucket, so MirroringStore is exercised against this instead.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, hash string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[hash] = blob
	return nil
}

func (m *memStore) Get(_ context.Context, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.data[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

func (m *memStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, hash)
	return nil
}

func (m *memStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[hash]
	return ok, nil
}

func (m *memStore) has(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[hash]
	return ok
}

func TestMirroringStore_Put_WritesPrimarySynchronously(t *testing.T) {
	primary, backup := newMemStore(), newMemStore()
	m := &MirroringStore{Primary: primary, Backup: backup}

	require.NoError(t, m.Put(context.Background(), "h1", []byte("data")))
	assert.True(t, primary.has("h1"))
}

func TestMirroringStore_Put_MirrorsToBackupAsynchronously(t *testing.T) {
	primary, backup := newMemStore(), newMemStore()
	m := &MirroringStore{Primary: primary, Backup: backup}

	require.NoError(t, m.Put(context.Background(), "h1", []byte("data")))

	assert.Eventually(t, func() bool { return backup.has("h1") }, time.Second, 5*time.Millisecond)
}

func TestMirroringStore_Put_BackupFailureDoesNotFailCaller(t *testing.T) {
	primary, backup := newMemStore(), newMemStore()
	backup.fail = errors.New("bucket unreachable")

	var mu sync.Mutex
	var gotErr error
	m := &MirroringStore{Primary: primary, Backup: backup, OnError: func(hash string, err error) {
		mu.Lock()
		defer mu.Unlock()
		gotErr = err
	}}

	require.NoError(t, m.Put(context.Background(), "h1", []byte("data")))
	assert.True(t, primary.has("h1"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotErr != nil
	}, time.Second, 5*time.Millisecond)
}

func TestMirroringStore_Put_PrimaryFailurePropagates(t *testing.T) {
	primary, backup := newMemStore(), newMemStore()
	primary.fail = errors.New("disk full")
	m := &MirroringStore{Primary: primary, Backup: backup}

	err := m.Put(context.Background(), "h1", []byte("data"))
	assert.Error(t, err)
}

func TestMirroringStore_GetDeleteExists_DelegateToPrimary(t *testing.T) {
	primary, backup := newMemStore(), newMemStore()
	require.NoError(t, primary.Put(context.Background(), "h1", []byte("data")))
	m := &MirroringStore{Primary: primary, Backup: backup}

	got, err := m.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	exists, err := m.Exists(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, m.Delete(context.Background(), "h1"))
	assert.False(t, primary.has("h1"))
}
