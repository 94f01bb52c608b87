package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Value is a single JSON object stored under one key.
type Value[T any] struct {
	cache *Cache
	key   string
}

// NewValue binds a value to the namespaced key for name.
func NewValue[T any](c *Cache, name string) *Value[T] {
	return &Value[T]{cache: c, key: c.Key(name)}
}

// Read returns the stored value and whether one was present and well formed.
func (v *Value[T]) Read(ctx context.Context) (T, bool) {
	var zero T
	raw, err := v.cache.store.Get(ctx, v.key)
	if err != nil {
		v.cache.logger.Warn("cache read failed", zap.String("key", v.key), zap.Error(err))
		return zero, false
	}
	if raw == nil {
		return zero, false
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		v.cache.logger.Debug("cache value ignored", zap.String("key", v.key), zap.Error(err))
		return zero, false
	}
	return decoded, true
}

// Write overwrites the stored value.
func (v *Value[T]) Write(ctx context.Context, value T) error {
	unlock := v.cache.lock(v.key)
	defer unlock()
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache[%s]: %w", v.key, err)
	}
	return v.cache.store.Set(ctx, v.key, payload)
}

// Update modifies the stored value while holding the key's lock. mutate receives found=false
// when nothing usable is stored; returning write=false leaves the key untouched.
func (v *Value[T]) Update(ctx context.Context, mutate func(current T, found bool) (next T, write bool)) error {
	unlock := v.cache.lock(v.key)
	defer unlock()
	current, found := v.Read(ctx)
	next, write := mutate(current, found)
	if !write {
		return nil
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cache[%s]: %w", v.key, err)
	}
	return v.cache.store.Set(ctx, v.key, payload)
}

// Clear removes the stored value.
func (v *Value[T]) Clear(ctx context.Context) error {
	unlock := v.cache.lock(v.key)
	defer unlock()
	return v.cache.store.Delete(ctx, v.key)
}
