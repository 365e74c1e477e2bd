package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyDeleter struct {
	*memoryStore
	failures atomic.Int32
}

func (f *flakyDeleter) Delete(ctx context.Context, rawURL string) (bool, error) {
	if f.failures.Add(-1) >= 0 {
		return false, errors.New("temporary outage")
	}
	return f.memoryStore.Delete(ctx, rawURL)
}

func TestBlobJanitorDeletesScheduledURLs(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first, err := store.Put(ctx, "media_library/abc/1.jpg", []byte{1}, "image/jpeg")
	require.NoError(t, err)
	second, err := store.Put(ctx, "media_library/abc/2.jpg", []byte{2}, "image/jpeg")
	require.NoError(t, err)

	janitor := NewBlobJanitor(store, BlobJanitorConfig{Enabled: true, Workers: 2}, NewMetricsService(), nil)
	janitor.Start(ctx)
	defer janitor.Stop()

	janitor.Schedule([]string{first, "https://elsewhere.example.com/x.jpg", second})

	require.Eventually(t, func() bool {
		return janitor.Stats().Processed == 3
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.ElementsMatch(t, []string{first, second}, store.deleted)
	assert.Empty(t, store.objects)
}

func TestBlobJanitorRetriesFailures(t *testing.T) {
	store := &flakyDeleter{memoryStore: newMemoryStore()}
	store.failures.Store(2)
	url, err := store.Put(context.Background(), "media_library/abc/1.jpg", []byte{1}, "image/jpeg")
	require.NoError(t, err)

	janitor := NewBlobJanitor(store, BlobJanitorConfig{Enabled: true, Workers: 1, Retries: 3, RetryDelay: time.Millisecond}, nil, nil)
	janitor.Start(context.Background())
	defer janitor.Stop()

	janitor.Schedule([]string{url})

	require.Eventually(t, func() bool {
		return janitor.Stats().Processed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), janitor.Stats().Retried)
}

func TestBlobJanitorDisabledIgnoresURLs(t *testing.T) {
	store := newMemoryStore()
	janitor := NewBlobJanitor(store, BlobJanitorConfig{}, nil, nil)
	janitor.Start(context.Background())
	defer janitor.Stop()

	janitor.Schedule([]string{"https://cdn.example.com/media_library/abc/1.jpg"})

	assert.Zero(t, janitor.Stats().Pending)
	assert.Empty(t, store.deleted)
}
