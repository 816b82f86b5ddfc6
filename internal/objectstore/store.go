package objectstore

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic key derivation
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Package objectstore provides durable, idempotent binary storage for
// downloaded media, keyed deterministically so re-runs write nothing new.

// Store is the object storage contract. Writes to an existing key with
// identical content are successful no-ops.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// ErrNotFound is returned by Get for keys with no stored object.
var ErrNotFound = errors.New("object not found")

// Options carries backend-specific settings for NewStore.
type Options struct {
	// Path is the root directory for the fs backend.
	Path string
}

// NewStore creates the configured local storage backend. The s3 backend has
// its own constructor since it needs a configured client.
func NewStore(typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "memory":
		return NewMemoryStore(), nil
	case "fs":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("fs object store requires a path")
		}
		return newFSStore(opts.Path)
	default:
		return nil, fmt.Errorf("unsupported object store type %q", typ)
	}
}

// extByContentType maps the allowed image content types to file extensions.
var extByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ObjectKey derives the storage key for an asset. It is a pure function of
// (post ID, source URL, content type): the same triple always yields the same
// key, across processes and runs.
func ObjectKey(postID, url, contentType string) string {
	ext, ok := extByContentType[normalizeContentType(contentType)]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("%s.%s", KeyPrefix(postID, url), ext)
}

// KeyPrefix is the content-type-independent part of ObjectKey, used to find
// an already-stored asset before its content type is known.
func KeyPrefix(postID, url string) string {
	sum := sha1.Sum([]byte(url)) //nolint:gosec
	return fmt.Sprintf("%s/%s", postID, hex.EncodeToString(sum[:]))
}

// normalizeContentType strips parameters such as "; charset=..." and lowercases.
func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
