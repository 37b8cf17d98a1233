// Package handlers provides the REST API and WebSocket event hub for the
// Engram daemon.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/metrics"
	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/pkg/types"
)

// API holds the HTTP handlers for recognition, enrichment, item CRUD, and
// metrics.
type API struct {
	store       storage.RecordStore
	recognition *engine.RecognitionEngine
	enrichment  *engine.EnrichmentEngine
	pipe        *pipeline.Pipeline
	registry    *metrics.Registry
	hub         *EventHub
}

// NewAPI creates the API handler set. hub may be nil to disable event
// broadcasting.
func NewAPI(store storage.RecordStore, recognition *engine.RecognitionEngine, enrichment *engine.EnrichmentEngine, pipe *pipeline.Pipeline, registry *metrics.Registry, hub *EventHub) *API {
	return &API{
		store:       store,
		recognition: recognition,
		enrichment:  enrichment,
		pipe:        pipe,
		registry:    registry,
		hub:         hub,
	}
}

// Routes registers all API routes on the mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/recognize", a.HandleRecognize)
	mux.HandleFunc("POST /api/enrich", a.HandleEnrich)
	mux.HandleFunc("POST /api/items", a.HandleIngest)
	mux.HandleFunc("GET /api/items/{key}", a.HandleGetItem)
	mux.HandleFunc("PUT /api/items/{key}", a.HandlePutItem)
	mux.HandleFunc("DELETE /api/items/{key}", a.HandleDeleteItem)
	mux.HandleFunc("GET /api/metrics", a.HandleMetrics)
	mux.HandleFunc("GET /api/health", a.HandleHealth)
}

// HandleRecognize handles POST /api/recognize.
func (a *API) HandleRecognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Data) == 0 {
		respondError(w, http.StatusBadRequest, "data is required", nil)
		return
	}

	tenantID := tenantOrDefault(req.TenantID)
	result, err := metrics.WithMetrics(a.registry, tenantID, "recognize", func() (*types.RecognitionResult, error) {
		return a.recognition.Recognize(r.Context(), req.Data, req.Options)
	})
	if err != nil {
		if errors.Is(err, types.ErrConfiguration) {
			respondError(w, http.StatusBadRequest, "invalid recognition options", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "recognition failed", err)
		return
	}

	a.broadcast(EventRecognitionComplete, result.MatchingKey, map[string]interface{}{
		"is_match":   result.IsMatch,
		"confidence": result.Confidence,
		"used_llm":   result.UsedLLM,
	})
	respondJSON(w, http.StatusOK, result)
}

// HandleEnrich handles POST /api/enrich.
func (a *API) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Key == "" {
		respondError(w, http.StatusBadRequest, "key is required", nil)
		return
	}

	tenantID := tenantOrDefault(req.TenantID)
	result, err := metrics.WithMetrics(a.registry, tenantID, "enrich", func() (*types.EnrichmentResult, error) {
		return a.enrichment.Enrich(r.Context(), req.Key, req.Sources, req.Options)
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			respondError(w, http.StatusNotFound, "record not found", err)
		case errors.Is(err, types.ErrLLMUnavailable):
			respondError(w, http.StatusServiceUnavailable, "llm unavailable", err)
		case errors.Is(err, types.ErrConfiguration):
			respondError(w, http.StatusBadRequest, "invalid enrichment options", err)
		default:
			respondError(w, http.StatusInternalServerError, "enrichment failed", err)
		}
		return
	}

	a.broadcast(EventEnrichmentComplete, req.Key, map[string]interface{}{
		"changes":  len(result.Changes),
		"used_llm": result.UsedLLM,
		"saved":    result.Saved,
	})
	respondJSON(w, http.StatusOK, result)
}

// HandleIngest handles POST /api/items: the write path routing an item
// through the stage pipeline.
func (a *API) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Data == nil {
		respondError(w, http.StatusBadRequest, "data is required", nil)
		return
	}
	if req.DataType == "" {
		respondError(w, http.StatusBadRequest, "data_type is required", nil)
		return
	}

	item := &types.MemoryItem{
		ID:       uuid.New().String(),
		Data:     req.Data,
		DataType: req.DataType,
		Intent:   req.Intent,
		Metadata: types.ItemMetadata{
			TenantID:  tenantOrDefault(req.TenantID),
			Timestamp: time.Now().UTC(),
		},
	}

	tenantID := item.Metadata.TenantID
	items, err := metrics.WithMetrics(a.registry, tenantID, "ingest", func() ([]*types.MemoryItem, error) {
		return a.pipe.Run(r.Context(), item)
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "pipeline processing failed", err)
		return
	}

	if len(items) == 0 {
		a.broadcast(EventItemDropped, item.ID, nil)
	} else {
		for _, stored := range items {
			a.broadcast(EventItemStored, stored.ID, map[string]interface{}{"data_type": stored.DataType})
		}
	}
	respondJSON(w, http.StatusAccepted, IngestResponse{Items: items, Dropped: len(items) == 0})
}

// HandleGetItem handles GET /api/items/{key}.
func (a *API) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	record, err := a.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "record not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read record", err)
		return
	}
	respondJSON(w, http.StatusOK, ItemResponse{Key: record.Key, Value: record.Value, Tags: record.Tags})
}

// HandlePutItem handles PUT /api/items/{key} with upsert semantics.
func (a *API) HandlePutItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req PutItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Value) == 0 {
		respondError(w, http.StatusBadRequest, "value is required", nil)
		return
	}

	if err := a.store.Set(r.Context(), key, req.Value, storage.SetOptions{Tags: req.Tags}); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store record", err)
		return
	}
	a.broadcast(EventItemStored, key, nil)
	respondJSON(w, http.StatusOK, ItemResponse{Key: key, Value: req.Value, Tags: req.Tags})
}

// HandleDeleteItem handles DELETE /api/items/{key}.
func (a *API) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := a.store.Delete(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "record not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMetrics handles GET /api/metrics: per-tenant operation counters
// plus pipeline stage counters.
func (a *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"operations": a.registry.Snapshot(),
	}
	if a.pipe != nil {
		payload["pipeline"] = a.pipe.Metrics()
	}
	respondJSON(w, http.StatusOK, payload)
}

// HandleHealth handles GET /api/health.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) broadcast(eventType EventType, key string, payload map[string]interface{}) {
	if a.hub == nil {
		return
	}
	a.hub.Broadcast(Event{
		Type:      eventType,
		Key:       key,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

func tenantOrDefault(tenantID string) string {
	if tenantID == "" {
		return "default"
	}
	return tenantID
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; log and move on.
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{"error": err.Error()}
	}
	respondJSON(w, statusCode, errResp)
}
