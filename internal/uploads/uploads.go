// Package uploads implements the media storage layer: validated photo
// uploads with local-disk fallback, best-effort deletion across both
// backends, and V4 query-signed URL generation for the remote bucket.
//
// Write paths call Uploader.Save, read paths resolve stored keys through
// a per-response Resolver, and deletion flows call Deleter.DeleteAll.
// Database records persist the StorageKey only — signed URLs embed an
// expiry and are regenerated on every read.
package uploads

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// MaxFileSize is the upload size ceiling in bytes.
const MaxFileSize = 8 << 20 // 8 MiB

// MaxPhotoCount is the maximum number of photos per post.
const MaxPhotoCount = 10

const (
	defaultStorageEndpoint  = "https://storage.googleapis.com"
	defaultMetadataEndpoint = "http://metadata.google.internal"
	defaultIAMEndpoint      = "https://iamcredentials.googleapis.com"
	defaultUploadDir        = "public/uploads"
	defaultBasePath         = "/uploads"
	defaultSignedURLTTL     = time.Hour
)

// ErrUnsupportedFileType is returned when the declared MIME type is not an
// allowed image type.
var ErrUnsupportedFileType = errors.New("uploads: unsupported file type")

// ErrFileTooLarge is returned when the declared size exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("uploads: file too large")

// allowedMIMETypes is the image allow-list. Empty or unknown declared types
// are normalized to application/octet-stream and rejected.
var allowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Config holds the storage layer configuration. It is built once at startup
// and shared by pointer between the Uploader, Deleter, Signer and every
// per-response Resolver.
type Config struct {
	// Bucket is the remote bucket name. Empty means local-only mode.
	Bucket string

	// SignedURLTTL bounds the validity of signed GET URLs handed to clients.
	SignedURLTTL time.Duration

	// SignerEmail identifies the service account whose credential scope the
	// signed URLs are bound to. Required in local-key mode; in IAM mode it is
	// discovered from the metadata server when left empty.
	SignerEmail string

	// SigningPrivateKey is an optional PEM-encoded RSA private key. When set,
	// URLs are signed locally and no metadata or IAM call is ever made.
	SigningPrivateKey string

	// UploadDir is the local fallback directory.
	UploadDir string

	// BasePath is the public URL prefix under which UploadDir is served.
	BasePath string

	// StorageEndpoint, MetadataEndpoint and IAMEndpoint default to the real
	// Google endpoints and exist so tests can point at local fakes.
	StorageEndpoint  string
	MetadataEndpoint string
	IAMEndpoint      string

	// HTTPClient is used for every network call. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) remote() bool { return c.Bucket != "" }

func (c *Config) ttl() time.Duration {
	if c.SignedURLTTL > 0 {
		return c.SignedURLTTL
	}
	return defaultSignedURLTTL
}

func (c *Config) uploadDir() string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return defaultUploadDir
}

func (c *Config) basePath() string {
	if c.BasePath != "" {
		return strings.TrimRight(c.BasePath, "/")
	}
	return defaultBasePath
}

// publicPath builds the local serving URL for a storage key.
func (c *Config) publicPath(key string) string {
	return c.basePath() + "/" + key
}

func (c *Config) storageEndpoint() string {
	if c.StorageEndpoint != "" {
		return strings.TrimRight(c.StorageEndpoint, "/")
	}
	return defaultStorageEndpoint
}

func (c *Config) metadataEndpoint() string {
	if c.MetadataEndpoint != "" {
		return strings.TrimRight(c.MetadataEndpoint, "/")
	}
	return defaultMetadataEndpoint
}

func (c *Config) iamEndpoint() string {
	if c.IAMEndpoint != "" {
		return strings.TrimRight(c.IAMEndpoint, "/")
	}
	return defaultIAMEndpoint
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// FileSource is the capability an upload caller must provide: a declared
// name, MIME type and byte length, plus a way to surrender the bytes. HTTP
// handlers adapt their multipart file headers to it so the storage layer
// does not depend on any request type.
type FileSource interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type multipartSource struct {
	fh *multipart.FileHeader
}

// MultipartSource adapts a parsed multipart file header to FileSource.
func MultipartSource(fh *multipart.FileHeader) FileSource {
	return &multipartSource{fh: fh}
}

func (s *multipartSource) Name() string { return s.fh.Filename }

func (s *multipartSource) ContentType() string {
	return s.fh.Header.Get("Content-Type")
}

func (s *multipartSource) Size() int64 { return s.fh.Size }

func (s *multipartSource) Open() (io.ReadCloser, error) { return s.fh.Open() }
