package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// metadataTimeout bounds each instance-metadata call. These gate user-facing
// requests, so a hung metadata server must fail fast and let the caller fall
// back to local storage.
const metadataTimeout = 3 * time.Second

// ErrMissingToken is returned when the metadata server answers without an
// access token in its payload.
var ErrMissingToken = errors.New("uploads: metadata response missing access token")

// Credentials obtains the bearer token and service-account identity used to
// authorize remote storage operations, from the ambient instance-metadata
// endpoints. It performs a single GET per call with no retries; failure
// handling (fallback to local storage) belongs to the caller.
//
// When a local signing key is configured the Signer never consults
// Credentials at all.
type Credentials struct {
	cfg *Config
}

// NewCredentials creates a Credentials bound to cfg's metadata endpoint.
func NewCredentials(cfg *Config) *Credentials {
	return &Credentials{cfg: cfg}
}

// AccessToken fetches a short-lived bearer token for the default service
// account. Tokens are not cached across calls.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	body, err := c.fetch(ctx, "instance/service-accounts/default/token")
	if err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrMissingToken
	}
	return payload.AccessToken, nil
}

// SignerEmail fetches the default service account's email, used as the
// signing identity in credential scopes and signBlob calls.
func (c *Credentials) SignerEmail(ctx context.Context) (string, error) {
	body, err := c.fetch(ctx, "instance/service-accounts/default/email")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Credentials) fetch(ctx context.Context, pathname string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	url := c.cfg.metadataEndpoint() + "/computeMetadata/v1/" + pathname
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := c.cfg.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", pathname, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata %s: unexpected status %d", pathname, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read metadata response: %w", err)
	}
	return body, nil
}
