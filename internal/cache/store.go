// Package cache is the durable local fallback store.
//
// A Store is a plain key -> bytes map that survives restarts. Collection and Value layer JSON
// encoding, schema versioning and per-key write serialization on top of it.
package cache

import (
	"context"
	"errors"
)

var (
	// ErrMissingKey indicates an empty cache key.
	ErrMissingKey = errors.New("cache: key is required")
)

// Store persists opaque values by key. Get returns (nil, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
