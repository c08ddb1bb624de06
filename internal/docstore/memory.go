package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryStore returns an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string][]byte)}
}

// GetDocument returns the document for (collection, id), or nil if absent.
func (s *MemoryStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	raw, ok := s.m[collection+"/"+id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetDocument creates or overwrites the document at (collection, id).
func (s *MemoryStore) SetDocument(ctx context.Context, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.m[collection+"/"+id] = raw
	s.mu.Unlock()
	return nil
}
