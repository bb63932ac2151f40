// Package memory provides an in-memory implementation of storage.CallStore
// for tests and single-process runs. Records are lost when the process
// exits. Optional LRU eviction bounds memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/modelapi/pkg/storage"
)

// entry holds a stored record and its metadata.
type entry struct {
	rec      *storage.CallRecord
	tenantID string
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory CallStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements storage.CallStore at compile time.
var _ storage.CallStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used record is
// evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// SaveCall stores a record. Saving an id twice fails with
// storage.ErrConflict.
func (s *Store) SaveCall(ctx context.Context, rec *storage.CallRecord) error {
	id := rec.ID()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return storage.ErrConflict
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(id)
	s.entries[id] = &entry{
		rec:      rec,
		tenantID: storage.TenantFrom(ctx),
		lruElem:  elem,
	}
	return nil
}

// GetCall retrieves a record by id and marks it recently used.
func (s *Store) GetCall(ctx context.Context, id string) (*storage.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !storage.Visible(ctx, e.tenantID) {
		return nil, storage.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.rec, nil
}

// ListCalls returns matching records, newest first.
func (s *Store) ListCalls(ctx context.Context, opts storage.ListOptions) ([]*storage.CallRecord, error) {
	s.mu.Lock()
	var matches []*storage.CallRecord
	for _, e := range s.entries {
		if !storage.Visible(ctx, e.tenantID) || !matchesFilter(e.rec, opts) {
			continue
		}
		matches = append(matches, e.rec)
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		ti, tj := matches[i].Call.CreatedAt(), matches[j].Call.CreatedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matches[i].ID() > matches[j].ID()
	})

	// Apply cursor-based pagination.
	if opts.After != "" {
		idx := -1
		for i, r := range matches {
			if r.ID() == opts.After {
				idx = i
				break
			}
		}
		if idx < 0 {
			return []*storage.CallRecord{}, nil
		}
		matches = matches[idx+1:]
	}

	if limit := opts.EffectiveLimit(); len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []*storage.CallRecord{}
	}
	return matches, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func matchesFilter(rec *storage.CallRecord, opts storage.ListOptions) bool {
	if opts.Provider != "" && rec.Provider != opts.Provider {
		return false
	}
	if opts.Model != "" && rec.Model != opts.Model {
		return false
	}
	if opts.Status != "" && rec.Status != opts.Status {
		return false
	}
	if !opts.Since.IsZero() && rec.Call.CreatedAt().Before(opts.Since) {
		return false
	}
	return true
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
