package uploads

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a FileSource with a declared size that may disagree with the
// actual bytes, and a flag recording whether the bytes were ever requested.
type fakeSource struct {
	name        string
	contentType string
	size        int64
	data        []byte
	opened      bool
}

func (f *fakeSource) Name() string        { return f.name }
func (f *fakeSource) ContentType() string { return f.contentType }
func (f *fakeSource) Size() int64         { return f.size }

func (f *fakeSource) Open() (io.ReadCloser, error) {
	f.opened = true
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func TestUploader_Save_Validation(t *testing.T) {
	tests := []struct {
		name    string
		src     *fakeSource
		wantErr error
	}{
		{
			name:    "should reject a pdf",
			src:     &fakeSource{name: "doc.pdf", contentType: "application/pdf", size: 100},
			wantErr: ErrUnsupportedFileType,
		},
		{
			name:    "should reject an empty content type",
			src:     &fakeSource{name: "mystery", contentType: "", size: 100},
			wantErr: ErrUnsupportedFileType,
		},
		{
			name:    "should reject a 9 MiB file",
			src:     &fakeSource{name: "huge.jpg", contentType: "image/jpeg", size: 9 << 20},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Remote endpoints are unroutable and UploadDir points at nothing:
			// rejection must happen before any I/O.
			cfg := &Config{
				Bucket:          "family-photos",
				StorageEndpoint: "http://127.0.0.1:1",
				UploadDir:       filepath.Join(t.TempDir(), "never-created"),
			}
			uploader := NewUploader(cfg, nil)

			_, err := uploader.Save(context.Background(), tt.src)
			assert.ErrorIs(t, err, tt.wantErr, "expected validation error")
			assert.False(t, tt.src.opened, "expected no bytes to be read")
			assert.NoDirExists(t, cfg.UploadDir, "expected no disk I/O")
		})
	}
}

func TestUploader_Save_ActualSizeRecheck(t *testing.T) {
	// Declared size lies; the real bytes exceed the ceiling.
	src := &fakeSource{
		name:        "liar.jpg",
		contentType: "image/jpeg",
		size:        100,
		data:        bytes.Repeat([]byte("x"), MaxFileSize+1),
	}
	uploader := NewUploader(&Config{UploadDir: t.TempDir()}, nil)

	_, err := uploader.Save(context.Background(), src)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUploader_Save_LocalMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	cfg := &Config{UploadDir: dir}
	uploader := NewUploader(cfg, nil)

	src := &fakeSource{name: "dinner.png", contentType: "image/png", size: 4, data: []byte("data")}
	res, err := uploader.Save(context.Background(), src)
	require.NoError(t, err, "expected local save to succeed")

	assert.Equal(t, BackendLocal, res.Backend)
	assert.True(t, strings.HasSuffix(res.StorageKey, ".png"), "expected extension from filename")
	assert.Equal(t, "/uploads/"+res.StorageKey, res.URL)
	assert.Equal(t, filepath.Join(dir, res.StorageKey), res.FilePath)

	written, err := os.ReadFile(res.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), written)
}

func TestUploader_Save_ExtensionInference(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantExt     string
	}{
		{name: "should keep the filename extension", filename: "soup.webp", contentType: "image/jpeg", wantExt: ".webp"},
		{name: "should infer png from the mime type", filename: "", contentType: "image/png", wantExt: ".png"},
		{name: "should infer gif from the mime type", filename: "", contentType: "image/gif", wantExt: ".gif"},
		{name: "should default to jpg", filename: "", contentType: "image/jpeg", wantExt: ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasSuffix(newStorageKey(tt.filename, tt.contentType), tt.wantExt))
		})
	}
}

func TestUploader_Save_RemoteMode(t *testing.T) {
	key := newTestKey(t)

	var putKey, putBody string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method, "expected a signed PUT")
		putKey = strings.TrimPrefix(r.URL.Path, "/family-photos/")
		body, _ := io.ReadAll(r.Body)
		putBody = string(body)
		assert.NotEmpty(t, r.URL.Query().Get("X-Goog-Signature"), "expected the PUT to carry a signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	cfg := &Config{
		Bucket:            "family-photos",
		SignerEmail:       "signer@test.iam.gserviceaccount.com",
		SigningPrivateKey: pemEncodePKCS8(t, key),
		StorageEndpoint:   storage.URL,
		UploadDir:         filepath.Join(t.TempDir(), "uploads"),
	}
	signer, err := NewSigner(cfg, nil)
	require.NoError(t, err)
	uploader := NewUploader(cfg, signer)

	src := &fakeSource{name: "soup.jpg", contentType: "image/jpeg", size: 5, data: []byte("bytes")}
	res, err := uploader.Save(context.Background(), src)
	require.NoError(t, err, "expected remote save to succeed")

	assert.Equal(t, BackendRemote, res.Backend)
	assert.Equal(t, res.StorageKey, putKey, "expected the PUT to target the derived key")
	assert.Equal(t, "bytes", putBody)
	assert.Equal(t, "gs://family-photos/"+res.StorageKey, res.FilePath)
	assert.Contains(t, res.URL, "X-Goog-Signature=", "expected a signed GET URL for display")
	assert.NoDirExists(t, cfg.UploadDir, "expected no local fallback on success")
}

func TestUploader_Save_RemoteFailureFallsBackToLocal(t *testing.T) {
	key := newTestKey(t)

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer storage.Close()

	dir := filepath.Join(t.TempDir(), "uploads")
	cfg := &Config{
		Bucket:            "family-photos",
		SignerEmail:       "signer@test.iam.gserviceaccount.com",
		SigningPrivateKey: pemEncodePKCS8(t, key),
		StorageEndpoint:   storage.URL,
		UploadDir:         dir,
	}
	signer, err := NewSigner(cfg, nil)
	require.NoError(t, err)
	uploader := NewUploader(cfg, signer)

	src := &fakeSource{name: "soup.jpg", contentType: "image/jpeg", size: 5, data: []byte("bytes")}
	res, err := uploader.Save(context.Background(), src)
	require.NoError(t, err, "expected fallback, not an error")

	assert.Equal(t, BackendLocal, res.Backend, "expected local backend after a 500")
	assert.FileExists(t, filepath.Join(dir, res.StorageKey), "expected the bytes on disk")
	assert.Equal(t, "/uploads/"+res.StorageKey, res.URL)
}

func TestUploader_Save_SigningFailureFallsBackToLocal(t *testing.T) {
	// IAM mode with an unreachable metadata server: the remote attempt dies
	// at credential fetch, the upload still succeeds locally.
	dir := filepath.Join(t.TempDir(), "uploads")
	cfg := &Config{
		Bucket:           "family-photos",
		MetadataEndpoint: "http://127.0.0.1:1",
		UploadDir:        dir,
	}
	signer, err := NewSigner(cfg, NewCredentials(cfg))
	require.NoError(t, err)
	uploader := NewUploader(cfg, signer)

	src := &fakeSource{name: "soup.jpg", contentType: "image/jpeg", size: 5, data: []byte("bytes")}
	res, err := uploader.Save(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, res.Backend)
}
