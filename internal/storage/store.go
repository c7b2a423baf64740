// Package storage defines the interface and implementations for
// mediacache's object store layer.
package storage

import (
	"context"
)

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore persists transformed media under content-derived keys.
// Implementations must be safe for concurrent use; a single instance is
// shared across all requests.
//
// Objects are written once per distinct key and never mutated. Put must
// nevertheless tolerate redundant calls for the same key (concurrent
// cache misses race to write identical content; the last write wins).
type ObjectStore interface {
	// Exists reports whether an object is already stored under key. A
	// missing object returns (false, nil); any other failure returns a
	// non-nil error and must NOT be treated as a miss, since recomputing
	// on an ambiguous failure risks overwriting an object the check
	// could not see.
	Exists(ctx context.Context, key string) (bool, error)

	// Put writes the payload under key with the given content type.
	// Idempotent with respect to key collisions.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// URLFor deterministically builds the public URL for key.
	URLFor(key string) string

	// List returns all objects whose key starts with prefix. Used by the
	// monitor for usage aggregation; never mutates state.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Name identifies the provider ("s3", "local", "gcs").
	Name() string
}
