// Package engine implements the recognition and enrichment engines: the
// deterministic-first, LLM-assisted-second matching and consolidation core.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/pkg/types"
)

// DefaultCandidateLimit caps retrieval when the caller sets no limit.
const DefaultCandidateLimit = 50

// Retriever fetches stored records that could plausibly match a candidate.
// Scoping keeps the comparison set small: caller tags first, entity type
// tags as a fallback, and optionally a vector index to pre-narrow keys.
type Retriever struct {
	store   storage.RecordStore
	vectors storage.VectorScope
}

// NewRetriever creates a retriever over the given store. vectors may be nil
// when the backend has no vector index.
func NewRetriever(store storage.RecordStore, vectors storage.VectorScope) *Retriever {
	return &Retriever{store: store, vectors: vectors}
}

// Retrieve fetches candidates scoped by the recognition options. When the
// caller supplies tags, those scope the query; otherwise the distinct
// entity types from the field map are used as tags.
func (r *Retriever) Retrieve(ctx context.Context, opts types.RecognitionOptions) ([]*storage.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	tags := opts.Tags
	if len(tags) == 0 {
		tags = entityTypeTags(opts.Entities)
	}

	records, err := r.store.GetMany(ctx, storage.Query{Tags: tags, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval failed: %w", err)
	}
	return records, nil
}

// RetrieveNear fetches candidates by embedding similarity when a vector
// scope is available, falling back to tag scoping otherwise.
func (r *Retriever) RetrieveNear(ctx context.Context, embedding []float32, opts types.RecognitionOptions) ([]*storage.Record, error) {
	if r.vectors == nil || len(embedding) == 0 {
		return r.Retrieve(ctx, opts)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	keys, err := r.vectors.NearestKeys(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector candidate retrieval failed: %w", err)
	}

	records := make([]*storage.Record, 0, len(keys))
	for _, key := range keys {
		record, err := r.store.Get(ctx, key)
		if err != nil {
			// Index entries can outlive their record; skip stale keys.
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func entityTypeTags(entities types.EntityTypeMap) []string {
	seen := make(map[string]bool)
	for _, entityType := range entities {
		if entityType != "" {
			seen[entityType] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
