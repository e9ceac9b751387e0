// Package media turns inbound chat photos into durable references and opens them again for sending.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tlcclub/tlcbot/core/logger"
)

// DefaultMaxBytes matches the Bot API download limit.
const DefaultMaxBytes = 20 << 20

var (
	// ErrNoImage is returned for a photo event without a downloadable file.
	ErrNoImage = errors.New("media: no image in event")
	// ErrTooLarge is returned when the downloaded file exceeds the configured limit.
	ErrTooLarge = errors.New("media: file too large")
)

// PhotoSource identifies a photo as the chat transport delivered it.
type PhotoSource struct {
	FileID   string
	UniqueID string
	Size     int64
	Width    int
	Height   int
}

// Empty reports whether the source carries nothing to download.
func (p *PhotoSource) Empty() bool {
	return p == nil || p.FileID == ""
}

// Fetcher downloads the raw bytes behind a transport file id.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Store persists blobs under a key and hands back a reference that Open understands.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Options configures a Resolver.
type Options struct {
	CacheSize int
	MaxBytes  int64
}

// Resolver downloads photos, checks they decode as images and stores them per user.
type Resolver struct {
	fetcher  Fetcher
	store    Store
	cache    *lru.Cache[string, string]
	maxBytes int64
}

// NewResolver wires a Resolver. A zero CacheSize disables the cache.
func NewResolver(fetcher Fetcher, store Store, opts Options) (*Resolver, error) {
	if fetcher == nil || store == nil {
		return nil, errors.New("media: fetcher and store are required")
	}
	r := &Resolver{fetcher: fetcher, store: store, maxBytes: opts.MaxBytes}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxBytes
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("media: cache init: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve downloads src and stores it under the user's prefix, returning the stored reference.
// The same photo forwarded twice by one user resolves from the cache.
func (r *Resolver) Resolve(ctx context.Context, userID int64, src *PhotoSource) (string, error) {
	if src.Empty() {
		return "", ErrNoImage
	}
	if src.Size > r.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, src.Size)
	}

	uid := src.UniqueID
	if uid == "" {
		uid = src.FileID
	}
	cacheKey := strconv.FormatInt(userID, 10) + "/" + uid
	if r.cache != nil {
		if ref, ok := r.cache.Get(cacheKey); ok {
			logger.Debug(ctx, "media", "resolve.cache_hit", slog.String("ref", ref))
			return ref, nil
		}
	}

	start := time.Now()
	rc, err := r.fetcher.Fetch(ctx, src.FileID)
	if err != nil {
		return "", fmt.Errorf("media: fetch: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	_ = rc.Close()
	if err != nil {
		return "", fmt.Errorf("media: read: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return "", fmt.Errorf("%w: over %d bytes", ErrTooLarge, r.maxBytes)
	}

	kind, err := Sniff(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	ref, err := r.store.Put(ctx, cacheKey+"."+kind.Ext, data, kind.ContentType)
	if err != nil {
		return "", fmt.Errorf("media: store: %w", err)
	}
	if r.cache != nil {
		r.cache.Add(cacheKey, ref)
	}

	logger.Debug(ctx, "media", "resolve.stored",
		slog.String("ref", ref),
		slog.String("format", kind.Format),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", logger.Took(start)),
	)
	return ref, nil
}

// Open re-reads a stored reference.
func (r *Resolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return r.store.Open(ctx, ref)
}
