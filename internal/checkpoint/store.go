package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Package checkpoint provides durable per-source checkpoint persistence: the
// identifier of the newest post fully accounted for. Values only move forward
// during normal operation; rewinding is an explicit operator action.

// Store is the checkpoint persistence contract. Last writer wins; the
// pipeline guarantees a single logical writer per source key within a run.
type Store interface {
	Get(ctx context.Context, sourceKey string) (postID string, found bool, err error)
	Put(ctx context.Context, sourceKey, postID string) error
	Close() error
}

// Options carries backend-specific settings for NewStore.
type Options struct {
	// Path is the database file for the bbolt backend.
	Path string
}

// NewStore creates the configured local checkpoint backend. The dynamodb
// backend has its own constructor since it needs a configured client.
func NewStore(typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bbolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt checkpoint store requires a path")
		}
		return openBolt(opts.Path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint store type %q", typ)
	}
}

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, sourceKey string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[sourceKey]
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, sourceKey, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sourceKey] = postID
	return nil
}

func (m *MemoryStore) Close() error { return nil }
