package storage

import (
	"context"
	"strings"
)

// MultiStore writes every object to each of its stores in order. The first
// failure stops the write.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

// Name implements Store.
func (m *MultiStore) Name() string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Prepare implements Store.
func (m *MultiStore) Prepare(ctx context.Context, prefixes []string) error {
	for _, s := range m.stores {
		if err := s.Prepare(ctx, prefixes); err != nil {
			return err
		}
	}
	return nil
}

// Put implements Store.
func (m *MultiStore) Put(ctx context.Context, key string, data []byte) error {
	for _, s := range m.stores {
		if err := s.Put(ctx, key, data); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every store and returns the first error.
func (m *MultiStore) Close() error {
	var first error
	for _, s := range m.stores {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
