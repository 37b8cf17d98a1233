// Package sqlite implements storage.RecordStore on SQLite via the pure-Go
// modernc.org/sqlite driver. It is the default backend for single-node
// deployments and for tests (":memory:" DSN).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/engram/internal/storage"
)

// Schema creates the record tables. Tags live in a junction table so that
// tag-scoped retrieval stays in SQL instead of post-filtering in Go.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS record_tags (
	key TEXT NOT NULL REFERENCES records(key) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (key, tag)
);

CREATE INDEX IF NOT EXISTS idx_record_tags_tag ON record_tags(tag);
`

// RecordStore implements storage.RecordStore using SQLite.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens a SQLite database, configures WAL mode, and creates
// the schema.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent
	// load; WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Get retrieves a record by key.
func (s *RecordStore) Get(ctx context.Context, key string) (*storage.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}

	record := &storage.Record{Key: key}
	var valueJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT value, created_at, updated_at FROM records WHERE key = ?", key,
	).Scan(&valueJSON, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if err := json.Unmarshal([]byte(valueJSON), &record.Value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record value: %w", err)
	}

	record.Tags, err = s.tagsForKey(ctx, key)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Set creates or replaces the record at key. When opts.Tags is non-nil the
// tag set is replaced atomically with the value.
func (s *RecordStore) Set(ctx context.Context, key string, value map[string]interface{}, opts storage.SetOptions) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}
	if value == nil {
		return fmt.Errorf("%w: value is required", storage.ErrInvalidInput)
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO records (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(valueJSON), now, now); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	if opts.Tags != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_tags WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to clear tags: %w", err)
		}
		for _, tag := range opts.Tags {
			if tag == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO record_tags (key, tag) VALUES (?, ?)", key, tag); err != nil {
				return fmt.Errorf("failed to store tag %q: %w", tag, err)
			}
		}
	}

	return tx.Commit()
}

// GetMany retrieves records matching the query scope, newest first.
func (s *RecordStore) GetMany(ctx context.Context, query storage.Query) ([]*storage.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if len(query.Tags) == 0 {
		q := "SELECT key, value, created_at, updated_at FROM records ORDER BY updated_at DESC"
		if query.Limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", query.Limit)
		}
		rows, err = s.db.QueryContext(ctx, q)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(query.Tags)), ",")
		q := fmt.Sprintf(`
			SELECT r.key, r.value, r.created_at, r.updated_at
			FROM records r
			JOIN record_tags t ON t.key = r.key
			WHERE t.tag IN (%s)
			GROUP BY r.key
			HAVING COUNT(DISTINCT t.tag) = ?
			ORDER BY r.updated_at DESC`, placeholders)
		if query.Limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", query.Limit)
		}

		args := make([]interface{}, 0, len(query.Tags)+1)
		for _, tag := range query.Tags {
			args = append(args, tag)
		}
		args = append(args, len(query.Tags))
		rows, err = s.db.QueryContext(ctx, q, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		record := &storage.Record{}
		var valueJSON string
		if err := rows.Scan(&record.Key, &valueJSON, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(valueJSON), &record.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", record.Key, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	for _, record := range records {
		if record.Tags, err = s.tagsForKey(ctx, record.Key); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// Delete removes a record and its tags.
func (s *RecordStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close releases the underlying database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) tagsForKey(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM record_tags WHERE key = ? ORDER BY tag", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Compile-time assertion that RecordStore satisfies the storage interface.
var _ storage.RecordStore = (*RecordStore)(nil)
