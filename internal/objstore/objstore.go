// Package objstore is the backing medium for per-tenant blobs: a flat
// key/value object store with S3, DynamoDB, Redis and in-memory backends.
//
// Every backend writes a whole object per Put, so a concurrent Get for the
// same key observes either the previous or the new payload, never a mix.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("objstore: object not found")

// Store is the object store contract used by the tenant config store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// Delete succeeds when the key does not exist.
	Delete(ctx context.Context, key string) error
}
