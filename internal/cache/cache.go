package cache

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultPrefix = "dashboard"

// Cache binds a Store to a key prefix and serializes writers per key.
type Cache struct {
	store  Store
	prefix string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config describes a Cache.
type Config struct {
	Store  Store
	Prefix string
	Logger *zap.Logger
}

// New builds a Cache. An empty prefix falls back to "dashboard".
func New(cfg Config) *Cache {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{
		store:  store,
		prefix: prefix,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Key returns the namespaced key for name, e.g. "dashboard_users".
func (c *Cache) Key(name string) string {
	return c.prefix + "_" + name
}

// Store exposes the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

func (c *Cache) lock(key string) func() {
	c.mu.Lock()
	keyLock, ok := c.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		c.locks[key] = keyLock
	}
	c.mu.Unlock()
	keyLock.Lock()
	return keyLock.Unlock
}
