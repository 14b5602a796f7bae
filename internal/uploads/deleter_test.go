package uploads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalFile(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestDeleter_DeleteAll_LocalMode(t *testing.T) {
	dir := t.TempDir()
	path := writeLocalFile(t, dir, "old-photo.jpg")

	deleter := NewDeleter(&Config{UploadDir: dir}, NewCredentials(&Config{}))
	deleter.DeleteAll(context.Background(), []string{"/uploads/old-photo.jpg"})

	assert.NoFileExists(t, path, "expected the local file to be unlinked")
}

func TestDeleter_DeleteAll_MissingLocalFileIsSuccess(t *testing.T) {
	deleter := NewDeleter(&Config{UploadDir: t.TempDir()}, NewCredentials(&Config{}))

	// Already-gone files are idempotent deletes; this must simply complete.
	deleter.DeleteAll(context.Background(), []string{"missing-local-file.jpg", "/uploads/also-missing.png"})
}

func TestDeleter_DeleteAll_SkipsEmptyReferences(t *testing.T) {
	deleter := NewDeleter(&Config{UploadDir: t.TempDir()}, NewCredentials(&Config{}))
	deleter.DeleteAll(context.Background(), []string{"", "", ""})
	deleter.DeleteAll(context.Background(), nil)
}

func TestDeleter_DeleteAll_Remote(t *testing.T) {
	metadata := newMetadataServer(t)
	defer metadata.Close()

	var mu sync.Mutex
	var deleted []string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		mu.Lock()
		deleted = append(deleted, r.URL.EscapedPath())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer storage.Close()

	cfg := &Config{
		Bucket:           "family-photos",
		MetadataEndpoint: metadata.URL,
		StorageEndpoint:  storage.URL,
	}
	deleter := NewDeleter(cfg, NewCredentials(cfg))

	deleter.DeleteAll(context.Background(), []string{
		"1700000000-abc.jpg",
		"gs://family-photos/1700000000-def.jpg",
		"https://storage.googleapis.com/family-photos/nested/key with space.jpg",
	})

	assert.Equal(t, []string{
		"/storage/v1/b/family-photos/o/1700000000-abc.jpg",
		"/storage/v1/b/family-photos/o/1700000000-def.jpg",
		"/storage/v1/b/family-photos/o/nested%2Fkey%20with%20space.jpg",
	}, deleted, "expected one JSON API delete per reference")
}

func TestDeleter_DeleteAll_PartialFailureIsolation(t *testing.T) {
	metadata := newMetadataServer(t)
	defer metadata.Close()

	var attempts []string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts = append(attempts, r.URL.EscapedPath())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer storage.Close()

	dir := t.TempDir()
	localPath := writeLocalFile(t, dir, "local-photo.jpg")

	cfg := &Config{
		Bucket:           "family-photos",
		MetadataEndpoint: metadata.URL,
		StorageEndpoint:  storage.URL,
		UploadDir:        dir,
	}
	deleter := NewDeleter(cfg, NewCredentials(cfg))

	// The remote 500 must not stop the local reference from being handled.
	deleter.DeleteAll(context.Background(), []string{
		"gs://family-photos/remote-a.jpg",
		"/uploads/local-photo.jpg",
	})

	assert.Len(t, attempts, 1, "expected exactly one remote attempt")
	assert.NoFileExists(t, localPath, "expected the local file removed despite the remote failure")
}

func TestDeleter_DeleteAll_TokenFailureFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	localPath := writeLocalFile(t, dir, "fallback-photo.jpg")

	cfg := &Config{
		Bucket:           "family-photos",
		MetadataEndpoint: "http://127.0.0.1:1",
		UploadDir:        dir,
	}
	deleter := NewDeleter(cfg, NewCredentials(cfg))

	// With the metadata server down, files may well have been written locally
	// as an upload fallback, so local deletion is attempted for everything.
	deleter.DeleteAll(context.Background(), []string{
		"fallback-photo.jpg",
		"gs://family-photos/unreachable.jpg",
	})

	assert.NoFileExists(t, localPath, "expected local deletion in degraded mode")
}
