package uploads

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Resolver turns stored storage keys into displayable URLs. Handlers
// construct one Resolver per response and reuse it for every key in that
// response: a page render resolves dozens of keys (avatars, post photos)
// with repeats, and each distinct key must cost at most one signing round
// trip.
//
// The memoization is deliberately scoped to the Resolver instance, never the
// process — signed URLs embed a fixed expiry and must not outlive the
// response they were generated for.
type Resolver struct {
	cfg    *Config
	signer *Signer

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]string
}

// NewResolver creates a Resolver for a single response's lifetime.
func NewResolver(cfg *Config, signer *Signer) *Resolver {
	return &Resolver{
		cfg:    cfg,
		signer: signer,
		done:   make(map[string]string),
	}
}

// Resolve returns a URL for key, or the empty string when key is empty or
// signing fails. Signing failure degrades the page to a missing image; it is
// never an error the handler has to deal with.
//
// Concurrent calls for the same key share one signing computation; calls for
// distinct keys proceed independently.
func (r *Resolver) Resolve(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}

	// Legacy references that are already paths or URLs pass through as-is.
	if strings.HasPrefix(key, "/") || strings.Contains(key, "://") {
		return key
	}

	if !r.cfg.remote() {
		return r.cfg.publicPath(key)
	}

	r.mu.Lock()
	if url, ok := r.done[key]; ok {
		r.mu.Unlock()
		return url
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolveFlight(ctx, key)
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("signed url resolution failed")
		return ""
	}
	return v.(string)
}

// resolveFlight runs inside the single-flight group. It re-checks and
// populates the memo itself: a caller that missed the memo in Resolve but
// entered Do only after the winning flight completed must not start a second
// signing round trip.
func (r *Resolver) resolveFlight(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	if url, ok := r.done[key]; ok {
		r.mu.Unlock()
		return url, nil
	}
	r.mu.Unlock()

	url, err := r.signer.SignedURL(ctx, http.MethodGet, key, r.cfg.ttl())
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.done[key] = url
	r.mu.Unlock()
	return url, nil
}

// ResolveAll resolves a batch of keys concurrently, preserving order.
// Duplicate keys collapse onto one signing call through the single-flight
// group.
func (r *Resolver) ResolveAll(ctx context.Context, keys []string) []string {
	urls := make([]string, len(keys))
	g, ctx := errgroup.WithContext(ctx)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			urls[i] = r.Resolve(ctx, key)
			return nil
		})
	}

	// Resolve never returns an error; Wait only joins the goroutines.
	_ = g.Wait()
	return urls
}
