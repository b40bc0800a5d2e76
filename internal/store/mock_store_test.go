// ABOUTME: Unit tests for MockStore specifics
// ABOUTME: Covers copy semantics and Close tracking

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	rec := &MetaRecord{ID: "meta:1", OwnerID: "alice", Name: "before", CreatedAt: t0}
	require.NoError(t, store.SaveMeta(ctx, rec))
	rec.Name = "after"

	got, err := store.GetMeta(ctx, "meta:1")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Name)

	require.NoError(t, store.AppendEntry(ctx, &EntryRecord{MetaID: "meta:1", DiscussionID: "x:room-1", AddedAt: t0}))
	require.NoError(t, store.MarkEntryRemoved(ctx, "meta:1", "x:room-1", t0.Add(time.Minute)))

	entries, err := store.ListEntries(ctx, "meta:1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	*entries[0].RemovedAt = t0.Add(time.Hour)

	again, err := store.ListEntries(ctx, "meta:1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), *again[0].RemovedAt)
}

func TestMockStore_Close(t *testing.T) {
	store := NewMockStore()
	assert.False(t, store.Closed())
	require.NoError(t, store.Close())
	assert.True(t, store.Closed())
}
