package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), NewURLBuilder("http", "localhost:8080/media-files"))
	require.NoError(t, err)
	return store
}

func TestLocalStoragePutGetDelete(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	url, err := store.Put(ctx, "media_library/abc/one.jpg", []byte("hello"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media-files/media_library/abc/one.jpg", url)

	data, err := store.Get(ctx, "media_library/abc/one.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	deleted, err := store.Delete(ctx, url)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.Get(ctx, "media_library/abc/one.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	deleted, err = store.Delete(ctx, url)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestLocalStorageDeleteForeignURL(t *testing.T) {
	store := newLocal(t)
	deleted, err := store.Delete(context.Background(), "https://cdn.example.com/media_library/abc/one.jpg")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store := newLocal(t)
	_, err := store.Put(context.Background(), "../outside.jpg", []byte("x"), "image/jpeg")
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "../outside.jpg", upErr.Key)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(store.Dir()), "outside.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStoragePutHonoursCancellation(t *testing.T) {
	store := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Put(ctx, "media_library/a.jpg", []byte("x"), "image/jpeg")
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStorageList(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()
	for _, key := range []string{"media_library/a/1.jpg", "media_library/b/2.jpg", "exports/report.pdf"} {
		_, err := store.Put(ctx, key, []byte(key), "application/octet-stream")
		require.NoError(t, err)
	}

	objects, err := store.List(ctx, "media_library/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
		assert.Equal(t, int64(len(obj.Key)), obj.Size)
		assert.False(t, obj.LastModified.IsZero())
	}
	assert.ElementsMatch(t, []string{"media_library/a/1.jpg", "media_library/b/2.jpg"}, keys)
}
