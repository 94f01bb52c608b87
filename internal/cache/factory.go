package cache

import "fmt"

const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
)

// NewStoreFromConfig creates a Store for the configured backend type.
func NewStoreFromConfig(storeType, path string) (Store, error) {
	switch storeType {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite cache requires cache.path to be set")
		}
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", storeType)
	}
}
