// Package types defines the shared data model for the Engram recognition
// and enrichment engine: memory items, recognition and enrichment options
// and results, field-level diff records, and the audit changelog.
package types

import "time"

// MemoryItem is the unit of information flowing through the stage pipeline.
// Items are created at acquisition time, pass once through the pipeline per
// write, and are either persisted, merged into an existing record, or
// dropped by a filtering stage. Only pipeline stages mutate an item; each
// stage appends to Metadata.ProcessingHistory and may replace Data.
type MemoryItem struct {
	// ID is the unique item identifier (UUID, minted at acquisition).
	ID string `json:"id"`

	// Data is the arbitrary nested payload (JSON object, array, or scalar).
	Data interface{} `json:"data"`

	// DataType describes the payload shape (e.g. "event", "contact", "note").
	DataType string `json:"data_type"`

	// Intent records why the item entered the pipeline (e.g. "store", "query").
	Intent string `json:"intent,omitempty"`

	// Metadata carries tenancy, provenance, and processing history.
	Metadata ItemMetadata `json:"metadata"`
}

// ItemMetadata carries per-item tenancy and provenance information.
type ItemMetadata struct {
	TenantID  string    `json:"tenant_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// ProcessingHistory is the ordered list of "stage:component" strings
	// appended by each pipeline stage the item passed through.
	ProcessingHistory []string `json:"processing_history,omitempty"`

	// Tags scope the item for storage and candidate retrieval; derivation
	// stage processors may append to them.
	Tags []string `json:"tags,omitempty"`

	// Merge provenance, set when this item absorbed others (consolidation)
	// or was merged into an existing record (enrichment).
	MergedFrom  []string   `json:"merged_from,omitempty"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	MergedCount int        `json:"merged_count,omitempty"`
}

// RecordProcessing appends a "stage:component" entry to the item's
// processing history.
func (m *MemoryItem) RecordProcessing(stage, component string) {
	m.Metadata.ProcessingHistory = append(m.Metadata.ProcessingHistory, stage+":"+component)
}

// Clone returns a shallow copy of the item with an independent copy of the
// metadata slices. Data is shared; processors that rewrite Data must
// replace it, not mutate it in place.
func (m *MemoryItem) Clone() *MemoryItem {
	out := *m
	out.Metadata.ProcessingHistory = append([]string(nil), m.Metadata.ProcessingHistory...)
	out.Metadata.Tags = append([]string(nil), m.Metadata.Tags...)
	out.Metadata.MergedFrom = append([]string(nil), m.Metadata.MergedFrom...)
	return &out
}
