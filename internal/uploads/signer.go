package uploads

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	signingAlgorithm = "GOOG4-RSA-SHA256"
	unsignedPayload  = "UNSIGNED-PAYLOAD"
	signBlobTimeout  = 5 * time.Second
)

// ErrMissingSignedBlob is returned when the IAM signBlob response carries no
// signature.
var ErrMissingSignedBlob = errors.New("uploads: signBlob response missing signature")

// ErrMissingSignerEmail is returned when local-key signing is configured
// without a signer identity.
var ErrMissingSignerEmail = errors.New("uploads: signer email required with a local signing key")

// Signer produces V4 query-signed URLs for objects in the configured bucket.
// The algorithm matches GCS query-signing bit for bit: canonical request,
// string-to-sign, then an RSA-SHA256 signature computed either locally with
// the configured PEM key or remotely via the IAM signBlob endpoint.
//
// URLs are always path-style (host/bucket/key), so behavior does not depend
// on bucket naming.
type Signer struct {
	cfg   *Config
	creds *Credentials
	key   *rsa.PrivateKey // nil in IAM mode
	now   func() time.Time
}

// NewSigner creates a Signer. When cfg carries a PEM signing key it is parsed
// here (PKCS#8, falling back to PKCS#1) and all signing happens locally
// without any network call; otherwise signatures are delegated to IAM
// signBlob using creds.
func NewSigner(cfg *Config, creds *Credentials) (*Signer, error) {
	s := &Signer{cfg: cfg, creds: creds, now: time.Now}

	if cfg.SigningPrivateKey == "" {
		return s, nil
	}

	if cfg.SignerEmail == "" {
		return nil, ErrMissingSignerEmail
	}

	block, _ := pem.Decode([]byte(cfg.SigningPrivateKey))
	if block == nil {
		return nil, errors.New("uploads: signing key is not valid PEM")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, fmt.Errorf("parse signing key: %w", err)
		}
		parsed = pkcs1
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("uploads: signing key is %T, want RSA", parsed)
	}
	s.key = key
	return s, nil
}

// SignedURL returns a capability URL granting method access to objectKey
// until expires elapses. The object key must be bucket-relative; keys with
// reserved or non-ASCII characters round-trip through the URL unchanged.
func (s *Signer) SignedURL(ctx context.Context, method, objectKey string, expires time.Duration) (string, error) {
	email := s.cfg.SignerEmail
	var token string
	if s.key == nil {
		var err error
		token, err = s.creds.AccessToken(ctx)
		if err != nil {
			return "", err
		}
		if email == "" {
			email, err = s.creds.SignerEmail(ctx)
			if err != nil {
				return "", err
			}
		}
	}

	now := s.now().UTC()
	datestamp := now.Format("20060102")
	timestamp := now.Format("20060102T150405Z")
	scope := datestamp + "/auto/storage/goog4_request"
	credential := email + "/" + scope

	canonicalQuery := strings.Join([]string{
		"X-Goog-Algorithm=" + signingAlgorithm,
		"X-Goog-Credential=" + percentEncode(credential),
		"X-Goog-Date=" + timestamp,
		"X-Goog-Expires=" + strconv.FormatInt(int64(expires/time.Second), 10),
		"X-Goog-SignedHeaders=host",
	}, "&")

	canonicalURI := "/" + s.cfg.Bucket + "/" + encodePath(objectKey)
	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		canonicalQuery,
		"host:" + s.host(),
		"",
		"host",
		unsignedPayload,
	}, "\n")

	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		timestamp,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	var signature string
	var err error
	if s.key != nil {
		signature, err = s.signLocal(stringToSign)
	} else {
		signature, err = s.signBlob(ctx, stringToSign, token, email)
	}
	if err != nil {
		return "", err
	}

	return s.cfg.storageEndpoint() + canonicalURI + "?" + canonicalQuery + "&X-Goog-Signature=" + signature, nil
}

// host returns the storage host used in the canonical headers. It must match
// the host of the final URL or the verifier rejects the signature.
func (s *Signer) host() string {
	u, err := url.Parse(s.cfg.storageEndpoint())
	if err != nil || u.Host == "" {
		return "storage.googleapis.com"
	}
	return u.Host
}

func (s *Signer) signLocal(stringToSign string) (string, error) {
	digest := sha256.Sum256([]byte(stringToSign))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("rsa sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// signBlob delegates the signature to the IAM credentials API, which signs on
// behalf of the service account without exposing its private key.
func (s *Signer) signBlob(ctx context.Context, stringToSign, token, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, signBlobTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"payload": base64.StdEncoding.EncodeToString([]byte(stringToSign)),
	})
	if err != nil {
		return "", fmt.Errorf("encode signBlob payload: %w", err)
	}

	endpoint := s.cfg.iamEndpoint() + "/v1/projects/-/serviceAccounts/" + percentEncode(email) + ":signBlob"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build signBlob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("call signBlob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signBlob: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		SignedBlob string `json:"signedBlob"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode signBlob response: %w", err)
	}
	if body.SignedBlob == "" {
		return "", ErrMissingSignedBlob
	}

	raw, err := base64.StdEncoding.DecodeString(body.SignedBlob)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// percentEncode applies strict RFC 3986 escaping: every byte outside the
// unreserved set becomes %XX with uppercase hex. Stricter than
// url.QueryEscape, which leaves sub-delimiters alone and would change the
// canonical request.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// encodePath percent-encodes an object key per path segment, preserving the
// slashes that separate segments.
func encodePath(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = percentEncode(seg)
	}
	return strings.Join(segments, "/")
}
