// ABOUTME: Store interface and record types for coven-meta persistence
// ABOUTME: Records meta-discussions and their dated sub-discussion entries

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a record with the same key already exists
var ErrDuplicate = errors.New("already exists")

// MetaRecord is a persisted meta-discussion
type MetaRecord struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// EntryRecord is one dated sub-discussion of a meta-discussion.
// DiscussionID, DriverName and AccountID are enough to find the discussion
// again through the owning user's account.
type EntryRecord struct {
	MetaID       string
	Position     int
	DiscussionID string
	DriverName   string
	AccountID    string
	AddedAt      time.Time
	RemovedAt    *time.Time // nil while the entry is active
}

// Active reports whether the entry has not been removed.
func (e *EntryRecord) Active() bool {
	return e.RemovedAt == nil
}

// Store persists meta-discussion registries.
type Store interface {
	// SaveMeta creates a meta-discussion record. Returns ErrDuplicate if the
	// id is taken.
	SaveMeta(ctx context.Context, rec *MetaRecord) error

	// GetMeta returns ErrNotFound for unknown ids.
	GetMeta(ctx context.Context, id string) (*MetaRecord, error)

	// ListMetas returns the owner's meta-discussions, oldest first.
	ListMetas(ctx context.Context, ownerID string) ([]*MetaRecord, error)

	// AppendEntry adds an entry. Returns ErrNotFound if the meta-discussion is
	// unknown and ErrDuplicate if the discussion is already registered.
	AppendEntry(ctx context.Context, rec *EntryRecord) error

	// MarkEntryRemoved tombstones the active entry for discussionID.
	MarkEntryRemoved(ctx context.Context, metaID, discussionID string, at time.Time) error

	// ListEntries returns every entry of a meta-discussion in position order,
	// removed ones included.
	ListEntries(ctx context.Context, metaID string) ([]*EntryRecord, error)

	// DeleteMeta removes a meta-discussion and its entries. Returns
	// ErrNotFound for unknown ids.
	DeleteMeta(ctx context.Context, id string) error

	Close() error
}
