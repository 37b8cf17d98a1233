// Package storage defines the record store consumed by the recognition and
// enrichment engines.
//
// The engines never assume transactional isolation across their own
// read-modify-write sequences; callers needing strict consistency must use
// a backend that provides per-key locking or optimistic concurrency. The
// interfaces here are deliberately narrow so that backends can be swapped
// without touching engine code.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/engram/pkg/types"
)

// ErrNotFound is returned when a record key does not exist. It matches
// types.ErrNotFound so callers can check either sentinel.
var ErrNotFound = types.ErrNotFound

// ErrInvalidInput is returned for nil records or empty keys.
var ErrInvalidInput = errors.New("storage: invalid input")

// Record is a stored value with its retrieval scope tags.
type Record struct {
	// Key is the unique record key.
	Key string `json:"key"`

	// Value is the nested record payload.
	Value map[string]interface{} `json:"value"`

	// Tags scope the record for candidate retrieval (entity type tags,
	// tenant tags, caller-supplied tags).
	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetOptions carries per-write options for RecordStore.Set.
type SetOptions struct {
	// Tags replace the record's tag set. Nil keeps existing tags on
	// update and stores no tags on insert.
	Tags []string
}

// Query scopes a GetMany call.
type Query struct {
	// Tags restricts results to records carrying every listed tag.
	Tags []string

	// Limit caps the number of records returned; zero means no cap.
	Limit int
}

// RecordStore provides keyed CRUD plus tag-scoped retrieval. All
// implementations must be safe for concurrent use.
type RecordStore interface {
	// Get retrieves a record by key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Set creates or replaces the record at key (upsert semantics).
	Set(ctx context.Context, key string, value map[string]interface{}, opts SetOptions) error

	// GetMany retrieves records matching the query scope.
	GetMany(ctx context.Context, query Query) ([]*Record, error)

	// Delete removes a record by key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// VectorScope narrows candidate retrieval with embedding similarity. It is
// optional: backends without a vector index simply do not implement it,
// and retrieval falls back to tag scoping alone.
type VectorScope interface {
	// SetEmbedding stores an embedding vector for a record key.
	SetEmbedding(ctx context.Context, key string, embedding []float32) error

	// NearestKeys returns up to limit record keys ordered by cosine
	// distance to the query vector.
	NearestKeys(ctx context.Context, embedding []float32, limit int) ([]string, error)
}
