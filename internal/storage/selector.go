package storage

import (
	mcerr "github.com/musefactory/mediacache/internal/errors"
)

// selectionOrder is the fixed priority when a request does not name a
// provider: the remote bucket is assumed durable and externally
// servable, the local filesystem is the single-node fallback, and GCS
// comes last, picked only when it is the sole configured store.
var selectionOrder = []string{"s3", "local", "gcs"}

// Selector chooses the ObjectStore serving a request. It is an ordered
// capability lookup over the configured providers, not polymorphic
// dispatch: a decision table, nothing more.
type Selector struct {
	stores map[string]ObjectStore
}

// NewSelector builds a Selector over the configured stores. Nil entries
// are permitted and skipped.
func NewSelector(stores ...ObjectStore) *Selector {
	m := make(map[string]ObjectStore)
	for _, s := range stores {
		if s != nil {
			m[s.Name()] = s
		}
	}
	return &Selector{stores: m}
}

// Pick returns the store for a request. An explicit override always wins;
// naming an unconfigured provider is a validation error. Without an
// override the fixed priority order applies.
func (s *Selector) Pick(override string) (ObjectStore, error) {
	if override != "" {
		store, ok := s.stores[override]
		if !ok {
			return nil, mcerr.Validation("storage provider %q is not configured", override)
		}
		return store, nil
	}
	for _, name := range selectionOrder {
		if store, ok := s.stores[name]; ok {
			return store, nil
		}
	}
	return nil, mcerr.Storage("no storage provider configured", nil)
}

// Default returns the store that priority selection would pick, or nil.
func (s *Selector) Default() ObjectStore {
	store, err := s.Pick("")
	if err != nil {
		return nil
	}
	return store
}

// Configured reports whether any provider is available.
func (s *Selector) Configured() bool {
	return len(s.stores) > 0
}
