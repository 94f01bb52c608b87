package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SchemaVersion is the envelope version written by this build.
const SchemaVersion = 1

type envelope[T any] struct {
	SchemaVersion int `json:"schema_version"`
	Items         []T `json:"items"`
}

// Collection is a whole-list JSON blob stored under one key.
type Collection[T any] struct {
	cache *Cache
	key   string
}

// NewCollection binds a collection to the namespaced key for name.
func NewCollection[T any](c *Cache, name string) *Collection[T] {
	return &Collection[T]{cache: c, key: c.Key(name)}
}

// Key returns the namespaced storage key.
func (c *Collection[T]) Key() string {
	return c.key
}

// Read returns the cached items. Missing, unreadable or malformed blobs read as empty.
func (c *Collection[T]) Read(ctx context.Context) []T {
	items, _ := c.read(ctx)
	return items
}

func (c *Collection[T]) read(ctx context.Context) ([]T, bool) {
	raw, err := c.cache.store.Get(ctx, c.key)
	if err != nil {
		c.cache.logger.Warn("cache read failed", zap.String("key", c.key), zap.Error(err))
		return []T{}, false
	}
	if raw == nil {
		return []T{}, false
	}
	items, err := decodeItems[T](raw)
	if err != nil {
		c.cache.logger.Debug("cache blob ignored", zap.String("key", c.key), zap.Error(err))
		return []T{}, false
	}
	return items, true
}

// Update runs a read-modify-write cycle while holding the key's lock.
func (c *Collection[T]) Update(ctx context.Context, mutate func(items []T) ([]T, error)) error {
	unlock := c.cache.lock(c.key)
	defer unlock()

	items, _ := c.read(ctx)
	next, err := mutate(items)
	if err != nil {
		return err
	}
	return c.write(ctx, next)
}

// Replace overwrites the collection.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	unlock := c.cache.lock(c.key)
	defer unlock()
	return c.write(ctx, items)
}

func (c *Collection[T]) write(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(envelope[T]{SchemaVersion: SchemaVersion, Items: items})
	if err != nil {
		return fmt.Errorf("failed to encode cache[%s]: %w", c.key, err)
	}
	return c.cache.store.Set(ctx, c.key, payload)
}

// decodeItems accepts the versioned envelope and the legacy bare array layout.
func decodeItems[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	if trimmed[0] == '[' {
		var legacy []T
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, err
		}
		if legacy == nil {
			legacy = []T{}
		}
		return legacy, nil
	}
	var stored envelope[T]
	if err := json.Unmarshal(trimmed, &stored); err != nil {
		return nil, err
	}
	if stored.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", stored.SchemaVersion)
	}
	if stored.Items == nil {
		stored.Items = []T{}
	}
	return stored.Items, nil
}
