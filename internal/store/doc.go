// Package store persists meta-discussion registries.
//
// # Data Model
//
//   - MetaRecord: one meta-discussion with its owner, name and creation time
//   - EntryRecord: one sub-discussion of a meta-discussion, with the date it
//     was added and, once removed, the date it was removed
//
// Entries are never deleted. Removing a sub-discussion sets RemovedAt so the
// merged history can still show what the discussion carried while it was part
// of the meta-discussion.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite with WAL mode and foreign keys. The
//     schema is created on open. Timestamps are stored as RFC3339Nano text in
//     UTC.
//   - MockStore: in-memory store for tests
//
// Usage:
//
//	s, err := store.NewSQLiteStore(cfg.Database.Path)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	metas, err := s.ListMetas(ctx, "alice")
package store
