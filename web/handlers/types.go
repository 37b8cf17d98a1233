package handlers

import (
	"github.com/scrypster/engram/pkg/types"
)

// ErrorResponse is the JSON error envelope for all API errors.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RecognizeRequest is the body of POST /api/recognize.
type RecognizeRequest struct {
	Data     map[string]interface{}   `json:"data"`
	TenantID string                   `json:"tenant_id,omitempty"`
	Options  types.RecognitionOptions `json:"options"`
}

// EnrichRequest is the body of POST /api/enrich.
type EnrichRequest struct {
	Key      string                   `json:"key"`
	Sources  []map[string]interface{} `json:"sources"`
	TenantID string                   `json:"tenant_id,omitempty"`
	Options  types.EnrichmentOptions  `json:"options"`
}

// IngestRequest is the body of POST /api/items: a payload submitted to the
// stage pipeline.
type IngestRequest struct {
	Data     interface{} `json:"data"`
	DataType string      `json:"data_type"`
	Intent   string      `json:"intent,omitempty"`
	TenantID string      `json:"tenant_id,omitempty"`
}

// IngestResponse reports what survived the pipeline.
type IngestResponse struct {
	Items   []*types.MemoryItem `json:"items"`
	Dropped bool                `json:"dropped"`
}

// ItemResponse is the body for GET /api/items/{key}.
type ItemResponse struct {
	Key   string                 `json:"key"`
	Value map[string]interface{} `json:"value"`
	Tags  []string               `json:"tags,omitempty"`
}

// PutItemRequest is the body of PUT /api/items/{key}.
type PutItemRequest struct {
	Value map[string]interface{} `json:"value"`
	Tags  []string               `json:"tags,omitempty"`
}
