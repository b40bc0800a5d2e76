// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists meta-discussions and dated entries with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// PRAGMAs apply per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS meta_discussions (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_meta_discussions_owner
			ON meta_discussions(owner_id, created_at);

		CREATE TABLE IF NOT EXISTS meta_entries (
			meta_id       TEXT NOT NULL,
			position      INTEGER NOT NULL,
			discussion_id TEXT NOT NULL,
			driver_name   TEXT NOT NULL,
			account_id    TEXT NOT NULL,
			added_at      TEXT NOT NULL,
			removed_at    TEXT,

			PRIMARY KEY (meta_id, discussion_id),
			FOREIGN KEY (meta_id) REFERENCES meta_discussions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_meta_entries_position
			ON meta_entries(meta_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveMeta inserts a meta-discussion record.
// Returns ErrDuplicate if a record with the same id exists.
func (s *SQLiteStore) SaveMeta(ctx context.Context, rec *MetaRecord) error {
	query := `
		INSERT INTO meta_discussions (id, owner_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.Name,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting meta discussion: %w", err)
	}

	s.logger.Debug("saved meta discussion", "meta_id", rec.ID, "owner_id", rec.OwnerID)
	return nil
}

// GetMeta retrieves a meta-discussion by id.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetMeta(ctx context.Context, id string) (*MetaRecord, error) {
	query := `
		SELECT id, owner_id, name, created_at
		FROM meta_discussions
		WHERE id = ?
	`

	rec, err := scanMeta(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying meta discussion: %w", err)
	}
	return rec, nil
}

// ListMetas returns the meta-discussions of ownerID, oldest first.
func (s *SQLiteStore) ListMetas(ctx context.Context, ownerID string) ([]*MetaRecord, error) {
	query := `
		SELECT id, owner_id, name, created_at
		FROM meta_discussions
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying meta discussions: %w", err)
	}
	defer rows.Close()

	var metas []*MetaRecord
	for rows.Next() {
		rec, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning meta discussion: %w", err)
		}
		metas = append(metas, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating meta discussions: %w", err)
	}

	return metas, nil
}

// AppendEntry inserts an entry.
// Returns ErrNotFound for an unknown meta-discussion and ErrDuplicate when the
// discussion is already registered.
func (s *SQLiteStore) AppendEntry(ctx context.Context, rec *EntryRecord) error {
	query := `
		INSERT INTO meta_entries (meta_id, position, discussion_id, driver_name, account_id, added_at, removed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var removedAt sql.NullString
	if rec.RemovedAt != nil {
		removedAt = sql.NullString{String: formatTime(*rec.RemovedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.MetaID,
		rec.Position,
		rec.DiscussionID,
		rec.DriverName,
		rec.AccountID,
		formatTime(rec.AddedAt),
		removedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("meta discussion %s: %w", rec.MetaID, ErrNotFound)
		}
		return fmt.Errorf("inserting entry: %w", err)
	}

	s.logger.Debug("appended entry", "meta_id", rec.MetaID, "discussion_id", rec.DiscussionID)
	return nil
}

// MarkEntryRemoved sets removed_at on the active entry for discussionID.
// Returns ErrNotFound when there is no such active entry.
func (s *SQLiteStore) MarkEntryRemoved(ctx context.Context, metaID, discussionID string, at time.Time) error {
	query := `
		UPDATE meta_entries
		SET removed_at = ?
		WHERE meta_id = ? AND discussion_id = ? AND removed_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, formatTime(at), metaID, discussionID)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("marked entry removed", "meta_id", metaID, "discussion_id", discussionID)
	return nil
}

// DeleteMeta removes a meta-discussion; its entries go with it through the
// foreign key cascade. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteMeta(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meta_discussions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting meta discussion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted meta discussion", "meta_id", id)
	return nil
}

// ListEntries returns every entry of metaID in position order.
func (s *SQLiteStore) ListEntries(ctx context.Context, metaID string) ([]*EntryRecord, error) {
	query := `
		SELECT meta_id, position, discussion_id, driver_name, account_id, added_at, removed_at
		FROM meta_entries
		WHERE meta_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, metaID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []*EntryRecord
	for rows.Next() {
		var rec EntryRecord
		var addedAtStr string
		var removedAtStr sql.NullString

		if err := rows.Scan(
			&rec.MetaID,
			&rec.Position,
			&rec.DiscussionID,
			&rec.DriverName,
			&rec.AccountID,
			&addedAtStr,
			&removedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		rec.AddedAt, err = parseTime(addedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing added_at: %w", err)
		}
		if removedAtStr.Valid {
			removedAt, err := parseTime(removedAtStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing removed_at: %w", err)
			}
			rec.RemovedAt = &removedAt
		}

		entries = append(entries, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeta(row rowScanner) (*MetaRecord, error) {
	var rec MetaRecord
	var createdAtStr string

	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Name, &createdAtStr); err != nil {
		return nil, err
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = createdAt
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// isUniqueViolation checks if the error is a SQLite UNIQUE or PRIMARY KEY constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
