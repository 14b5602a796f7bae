package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// putURLTTL bounds the signed PUT URL used for the remote write. The PUT
// happens immediately after signing, so a short window is enough.
const putURLTTL = 15 * time.Minute

const putTimeout = 10 * time.Second

// Backend identifies where an upload ended up.
type Backend string

const (
	// BackendRemote means the bytes live in the configured bucket.
	BackendRemote Backend = "remote"
	// BackendLocal means the bytes were written to the local upload directory.
	BackendLocal Backend = "local"
)

// Result describes a stored upload. Callers persist StorageKey; URL is the
// immediately displayable address (signed GET for remote, relative path for
// local) and FilePath is a provenance marker for diagnostics.
type Result struct {
	URL        string  `json:"url"`
	StorageKey string  `json:"storageKey"`
	FilePath   string  `json:"filePath"`
	Backend    Backend `json:"backend"`
}

// Uploader stores photo files, preferring the remote bucket and falling back
// to local disk. A storage hiccup never fails the caller's write: the remote
// path gets exactly one attempt, then the same bytes go to disk.
type Uploader struct {
	cfg    *Config
	signer *Signer
}

// NewUploader creates an Uploader using signer for the remote write path.
func NewUploader(cfg *Config, signer *Signer) *Uploader {
	return &Uploader{cfg: cfg, signer: signer}
}

// Save validates and stores one file. Validation uses the declared type and
// size, so an oversized or non-image file is rejected before any byte is
// read and before any network or disk I/O.
func (u *Uploader) Save(ctx context.Context, src FileSource) (*Result, error) {
	contentType := src.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !allowedMIMETypes[contentType] {
		return nil, ErrUnsupportedFileType
	}
	if src.Size() > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	// The declared size is caller-controlled; re-check the actual bytes.
	if int64(len(buf)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	key := newStorageKey(src.Name(), contentType)

	if u.cfg.remote() {
		res, err := u.saveRemote(ctx, key, buf, contentType)
		if err == nil {
			return res, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("remote upload failed, falling back to local disk")
	}

	return u.saveLocal(key, buf)
}

// saveRemote writes the bytes to the bucket through a signed PUT URL, then
// signs a GET URL for immediate display.
func (u *Uploader) saveRemote(ctx context.Context, key string, buf []byte, contentType string) (*Result, error) {
	putURL, err := u.signer.SignedURL(ctx, http.MethodPut, key, putURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign put url: %w", err)
	}

	putCtx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(putCtx, http.MethodPut, putURL, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build put request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.cfg.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("put object %q: unexpected status %d", key, resp.StatusCode)
	}

	getURL, err := u.signer.SignedURL(ctx, http.MethodGet, key, u.cfg.ttl())
	if err != nil {
		return nil, fmt.Errorf("sign get url: %w", err)
	}

	return &Result{
		URL:        getURL,
		StorageKey: key,
		FilePath:   "gs://" + u.cfg.Bucket + "/" + key,
		Backend:    BackendRemote,
	}, nil
}

func (u *Uploader) saveLocal(key string, buf []byte) (*Result, error) {
	dir := u.cfg.uploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	dest := filepath.Join(dir, key)
	if err := os.WriteFile(dest, buf, 0o644); err != nil {
		return nil, fmt.Errorf("write upload %q: %w", key, err)
	}

	return &Result{
		URL:        u.cfg.publicPath(key),
		StorageKey: key,
		FilePath:   dest,
		Backend:    BackendLocal,
	}, nil
}

// newStorageKey derives a unique key for a fresh upload. The extension comes
// from the original filename when present, else from the MIME type, else
// defaults to .jpg.
func newStorageKey(filename, contentType string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		switch contentType {
		case "image/png":
			ext = ".png"
		case "image/webp":
			ext = ".webp"
		case "image/gif":
			ext = ".gif"
		default:
			ext = ".jpg"
		}
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}
