package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

const checkpointBucket = "checkpoints"

// boltStore implements a Store backed by BoltDB, for single-node runs.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Get returns the checkpoint for the source key, if any.
func (b *boltStore) Get(_ context.Context, sourceKey string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket missing")
		}
		if raw := bucket.Get([]byte(sourceKey)); raw != nil {
			value = string(raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", pipeline.ErrStateStoreUnavailable, err)
	}
	return value, found, nil
}

// Put records the checkpoint for the source key. Last writer wins.
func (b *boltStore) Put(_ context.Context, sourceKey, postID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket missing")
		}
		return bucket.Put([]byte(sourceKey), []byte(postID))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrStateStoreUnavailable, err)
	}
	return nil
}
