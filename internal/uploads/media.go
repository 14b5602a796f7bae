package uploads

import (
	"context"
	"fmt"
)

// Media bundles the storage components the HTTP layer consumes: one Uploader
// and Deleter for the process, plus a fresh Resolver per response.
type Media struct {
	cfg      *Config
	signer   *Signer
	uploader *Uploader
	deleter  *Deleter
}

// NewMedia wires credentials, signer, uploader and deleter from cfg.
func NewMedia(cfg *Config) (*Media, error) {
	creds := NewCredentials(cfg)
	signer, err := NewSigner(cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}
	return &Media{
		cfg:      cfg,
		signer:   signer,
		uploader: NewUploader(cfg, signer),
		deleter:  NewDeleter(cfg, creds),
	}, nil
}

// Save stores one file, preferring the remote bucket.
func (m *Media) Save(ctx context.Context, src FileSource) (*Result, error) {
	return m.uploader.Save(ctx, src)
}

// DeleteAll removes stored references best-effort.
func (m *Media) DeleteAll(ctx context.Context, refs []string) {
	m.deleter.DeleteAll(ctx, refs)
}

// NewResolver returns a Resolver scoped to one response's lifetime. Handlers
// must construct one per response and reuse it for every key they render.
func (m *Media) NewResolver() *Resolver {
	return NewResolver(m.cfg, m.signer)
}
