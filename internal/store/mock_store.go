// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	metas   map[string]*MetaRecord    // keyed by meta ID
	entries map[string][]*EntryRecord // keyed by meta ID
	closed  bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		metas:   make(map[string]*MetaRecord),
		entries: make(map[string][]*EntryRecord),
	}
}

// SaveMeta stores a new meta-discussion record.
func (m *MockStore) SaveMeta(ctx context.Context, rec *MetaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.metas[rec.ID]; ok {
		return ErrDuplicate
	}

	// Make a copy to avoid external modification
	r := *rec
	m.metas[r.ID] = &r
	return nil
}

// GetMeta retrieves a meta-discussion by ID.
func (m *MockStore) GetMeta(ctx context.Context, id string) (*MetaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.metas[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *r
	return &result, nil
}

// ListMetas returns the owner's meta-discussions, oldest first.
func (m *MockStore) ListMetas(ctx context.Context, ownerID string) ([]*MetaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*MetaRecord
	for _, r := range m.metas {
		if r.OwnerID == ownerID {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// AppendEntry stores a new entry.
func (m *MockStore) AppendEntry(ctx context.Context, rec *EntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.metas[rec.MetaID]; !ok {
		return fmt.Errorf("meta discussion %s: %w", rec.MetaID, ErrNotFound)
	}
	for _, e := range m.entries[rec.MetaID] {
		if e.DiscussionID == rec.DiscussionID {
			return ErrDuplicate
		}
	}

	m.entries[rec.MetaID] = append(m.entries[rec.MetaID], copyEntry(rec))
	return nil
}

// MarkEntryRemoved tombstones the active entry for discussionID.
func (m *MockStore) MarkEntryRemoved(ctx context.Context, metaID, discussionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries[metaID] {
		if e.DiscussionID == discussionID && e.RemovedAt == nil {
			removedAt := at
			e.RemovedAt = &removedAt
			return nil
		}
	}
	return ErrNotFound
}

// ListEntries returns copies of the entries of metaID in position order.
func (m *MockStore) ListEntries(ctx context.Context, metaID string) ([]*EntryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*EntryRecord, 0, len(m.entries[metaID]))
	for _, e := range m.entries[metaID] {
		result = append(result, copyEntry(e))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// DeleteMeta removes a meta-discussion and its entries.
func (m *MockStore) DeleteMeta(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.metas[id]; !ok {
		return ErrNotFound
	}
	delete(m.metas, id)
	delete(m.entries, id)
	return nil
}

// Close marks the store closed. It never fails.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func copyEntry(e *EntryRecord) *EntryRecord {
	cp := *e
	if e.RemovedAt != nil {
		removedAt := *e.RemovedAt
		cp.RemovedAt = &removedAt
	}
	return &cp
}

var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
