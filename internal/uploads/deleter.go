package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const deleteTimeout = 5 * time.Second

// Deleter removes stored media references best-effort. One failing reference
// never prevents attempts on the rest, and nothing here ever returns an
// error to the caller: this is garbage collection, not a transaction.
type Deleter struct {
	cfg   *Config
	creds *Credentials
}

// NewDeleter creates a Deleter using creds for remote authorization.
func NewDeleter(cfg *Config, creds *Credentials) *Deleter {
	return &Deleter{cfg: cfg, creds: creds}
}

// DeleteAll attempts removal of every reference. References may be bare
// storage keys, gs:// paths, full signed URLs, or local /uploads/ paths.
// Remote deletion needs a bearer token; if fetching one fails the Deleter
// logs a single warning and tries local deletion for everything, since in
// degraded connectivity the files were likely written locally anyway.
func (d *Deleter) DeleteAll(ctx context.Context, refs []string) {
	var filtered []string
	for _, ref := range refs {
		if ref != "" {
			filtered = append(filtered, ref)
		}
	}
	if len(filtered) == 0 {
		return
	}

	var token string
	if d.cfg.remote() {
		var err error
		token, err = d.creds.AccessToken(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("token fetch failed, attempting local deletion for all references")
			for _, ref := range filtered {
				d.deleteLocal(ref)
			}
			return
		}
	}

	for _, ref := range filtered {
		if key, remote := d.classify(ref); remote {
			d.deleteRemote(ctx, key, token)
		} else {
			d.deleteLocal(ref)
		}
	}
}

// classify decides which backend a reference belongs to and extracts the
// bucket-relative object key for remote ones.
func (d *Deleter) classify(ref string) (objectKey string, remote bool) {
	if !d.cfg.remote() {
		return "", false
	}

	if after, ok := strings.CutPrefix(ref, "gs://"); ok {
		if key, ok := strings.CutPrefix(after, d.cfg.Bucket+"/"); ok {
			return key, true
		}
		return after, true
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		parsed, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		// Path-style URLs carry the bucket as the first segment.
		if len(parts) > 1 && parts[0] == d.cfg.Bucket {
			parts = parts[1:]
		}
		return strings.Join(parts, "/"), true
	}

	if strings.HasPrefix(ref, "/") {
		// Relative local serving path, e.g. /uploads/171...-id.jpg.
		return "", false
	}

	// A bare storage key: lives in the bucket whenever one is configured.
	return ref, true
}

// deleteRemote issues an authenticated DELETE against the JSON API. 204 is
// success; anything else is logged and skipped.
func (d *Deleter) deleteRemote(ctx context.Context, objectKey, token string) {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	endpoint := d.cfg.storageEndpoint() + d.objectPath(objectKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		log.Warn().Err(err).Str("key", objectKey).Msg("build delete request failed")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.cfg.httpClient().Do(req)
	if err != nil {
		log.Warn().Err(err).Str("key", objectKey).Msg("remote delete failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		log.Warn().Str("key", objectKey).Int("status", resp.StatusCode).Msg("remote delete returned unexpected status")
	}
}

// deleteLocal unlinks the file under the upload directory. A file that is
// already gone counts as success.
func (d *Deleter) deleteLocal(ref string) {
	name := ref
	if after, ok := strings.CutPrefix(ref, d.cfg.basePath()+"/"); ok {
		name = after
	}
	// Base confines deletion to the upload directory itself.
	path := filepath.Join(d.cfg.uploadDir(), filepath.Base(name))

	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Str("error", err.Error()).Msg("local delete failed")
	}
}

// objectPath builds the JSON API object path for a key.
func (d *Deleter) objectPath(objectKey string) string {
	return fmt.Sprintf("/storage/v1/b/%s/o/%s", percentEncode(d.cfg.Bucket), percentEncode(objectKey))
}
