// Package postgres implements storage.RecordStore on PostgreSQL via lib/pq.
// Tags are stored in a native text[] column so tag scoping uses the @>
// containment operator; when the pgvector extension is present the store
// also implements storage.VectorScope for embedding-scoped candidate
// retrieval.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/engram/internal/storage"
)

// schema creates the record table. The embedding column is added separately
// because it requires the pgvector extension.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_tags ON records USING GIN (tags);
`

const vectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
ALTER TABLE records ADD COLUMN IF NOT EXISTS embedding vector(768);
`

// RecordStore implements storage.RecordStore using PostgreSQL.
type RecordStore struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewRecordStore connects to PostgreSQL and creates the schema. The
// pgvector extension is attempted but optional; without it the store still
// works, it just cannot narrow retrieval by embedding similarity.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := &RecordStore{db: db}
	if _, err := db.Exec(vectorSchema); err != nil {
		log.Printf("postgres: pgvector unavailable, embedding scope disabled: %v", err)
	} else {
		store.pgvectorAvailable = true
	}

	return store, nil
}

// Get retrieves a record by key.
func (s *RecordStore) Get(ctx context.Context, key string) (*storage.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}

	record := &storage.Record{Key: key}
	var valueJSON []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value, tags, created_at, updated_at FROM records WHERE key = $1", key,
	).Scan(&valueJSON, pq.Array(&record.Tags), &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if err := json.Unmarshal(valueJSON, &record.Value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record value: %w", err)
	}
	return record, nil
}

// Set creates or replaces the record at key. A nil opts.Tags keeps the
// existing tag set on update.
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

	now := time.Now()
	if opts.Tags != nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO records (key, value, tags, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value,
				tags = excluded.tags,
				updated_at = excluded.updated_at
		`, key, valueJSON, pq.Array(opts.Tags), now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO records (key, value, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, valueJSON, now)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// GetMany retrieves records matching the query scope, newest first.
func (s *RecordStore) GetMany(ctx context.Context, query storage.Query) ([]*storage.Record, error) {
	q := "SELECT key, value, tags, created_at, updated_at FROM records"
	args := []interface{}{}
	if len(query.Tags) > 0 {
		q += " WHERE tags @> $1"
		args = append(args, pq.Array(query.Tags))
	}
	q += " ORDER BY updated_at DESC"
	if query.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		record := &storage.Record{}
		var valueJSON []byte
		if err := rows.Scan(&record.Key, &valueJSON, pq.Array(&record.Tags), &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal(valueJSON, &record.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", record.Key, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Delete removes a record by key.
func (s *RecordStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = $1", key)
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

// SetEmbedding stores an embedding vector for a record key. Requires the
// pgvector extension.
func (s *RecordStore) SetEmbedding(ctx context.Context, key string, embedding []float32) error {
	if !s.pgvectorAvailable {
		return fmt.Errorf("postgres: pgvector extension not available")
	}
	if key == "" {
		return fmt.Errorf("%w: key is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding cannot be empty", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE records SET embedding = $1 WHERE key = $2",
		pgvector.NewVector(embedding), key)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// NearestKeys returns up to limit record keys ordered by cosine distance
// to the query vector.
func (s *RecordStore) NearestKeys(ctx context.Context, embedding []float32, limit int) ([]string, error) {
	if !s.pgvectorAvailable {
		return nil, fmt.Errorf("postgres: pgvector extension not available")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM records
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest records: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the underlying database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// Compile-time assertions for the storage interfaces.
var (
	_ storage.RecordStore = (*RecordStore)(nil)
	_ storage.VectorScope = (*RecordStore)(nil)
)
