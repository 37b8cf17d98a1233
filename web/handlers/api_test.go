package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/metrics"
	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/internal/storage/sqlite"
	"github.com/scrypster/engram/pkg/types"
)

func newTestAPI(t *testing.T) (*API, storage.RecordStore) {
	t.Helper()

	store, err := sqlite.NewRecordStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	retriever := engine.NewRetriever(store, nil)
	recognition := engine.NewRecognitionEngine(retriever, nil, nil)
	enrichment := engine.NewEnrichmentEngine(store, nil)

	registry := pipeline.NewRegistry()
	require.NoError(t, pipeline.RegisterBuiltins(registry, pipeline.Deps{
		Recognition: recognition,
		Store:       store,
	}))
	profile := &pipeline.Profile{Stages: map[string]pipeline.StageSpec{
		"acquisition": {Enabled: true, Components: []pipeline.ComponentSpec{
			{Role: "identity", Processor: pipeline.ProcessorAcquirer},
			{Role: "filter", Processor: pipeline.ProcessorContentFilter},
		}},
		"derivation": {Enabled: true, Components: []pipeline.ComponentSpec{
			{Role: "tagger", Processor: pipeline.ProcessorTagDeriver},
		}},
		"utilization": {Enabled: true, Components: []pipeline.ComponentSpec{
			{Role: "sink", Processor: pipeline.ProcessorPersister},
		}},
	}}
	pipe, err := pipeline.New(profile, registry)
	require.NoError(t, err)

	return NewAPI(store, recognition, enrichment, pipe, metrics.NewRegistry(), nil), store
}

func newTestServer(t *testing.T) (*httptest.Server, storage.RecordStore) {
	t.Helper()
	api, store := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleRecognize(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Set(context.Background(), "evt-1",
		map[string]interface{}{"title": "AI Summit 2024"}, storage.SetOptions{Tags: []string{"event"}}))

	resp := postJSON(t, server.URL+"/api/recognize", RecognizeRequest{
		Data: map[string]interface{}{"title": "AI Summit 2024"},
		Options: types.RecognitionOptions{
			Entities:      types.EntityTypeMap{"title": "event"},
			Tags:          []string{"event"},
			Threshold:     0.75,
			LLMLowerBound: 0.60,
			LLMUpperBound: 0.75,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[types.RecognitionResult](t, resp)
	assert.True(t, result.IsMatch)
	assert.Equal(t, "evt-1", result.MatchingKey)
}

func TestHandleRecognizeInvalidOptions(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/recognize", RecognizeRequest{
		Data: map[string]interface{}{"title": "x"},
		Options: types.RecognitionOptions{
			Entities:      types.EntityTypeMap{"title": "event"},
			Threshold:     0.5,
			LLMLowerBound: 0.9,
			LLMUpperBound: 0.9,
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRecognizeMissingData(t *testing.T) {
	server, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/recognize", RecognizeRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleEnrich(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Set(context.Background(), "evt-1",
		map[string]interface{}{"name": "Positivus", "address": "iela 5"}, storage.SetOptions{}))

	resp := postJSON(t, server.URL+"/api/enrich", EnrichRequest{
		Key: "evt-1",
		Sources: []map[string]interface{}{
			{"address": "iela 5, full address with city"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[types.EnrichmentResult](t, resp)
	assert.True(t, result.Saved)
	require.Len(t, result.Changes, 1)

	stored, err := store.Get(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "iela 5, full address with city", stored.Value["address"])
}

func TestHandleEnrichNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/enrich", EnrichRequest{
		Key:     "missing",
		Sources: []map[string]interface{}{{"a": "b"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleEnrichForcedWithoutLLM(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Set(context.Background(), "evt-1",
		map[string]interface{}{"name": "Positivus"}, storage.SetOptions{}))

	resp := postJSON(t, server.URL+"/api/enrich", EnrichRequest{
		Key:     "evt-1",
		Options: types.EnrichmentOptions{ForceLLMEnrichment: true},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleIngest(t *testing.T) {
	server, store := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/items", IngestRequest{
		Data:     map[string]interface{}{"title": "AI Summit 2024"},
		DataType: "event",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	result := decodeBody[IngestResponse](t, resp)
	assert.False(t, result.Dropped)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.NotEmpty(t, item.ID)
	assert.Contains(t, item.Metadata.ProcessingHistory, "utilization:persister")

	stored, err := store.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI Summit 2024", stored.Value["title"])
	assert.Equal(t, []string{"event"}, stored.Tags)
}

func TestHandleIngestDropsEmptyPayload(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/items", IngestRequest{
		Data:     map[string]interface{}{},
		DataType: "note",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	result := decodeBody[IngestResponse](t, resp)
	assert.True(t, result.Dropped)
	assert.Empty(t, result.Items)
}

func TestItemCRUD(t *testing.T) {
	server, _ := newTestServer(t)
	client := server.Client()

	// PUT
	body, _ := json.Marshal(PutItemRequest{
		Value: map[string]interface{}{"name": "Splendid Palace"},
		Tags:  []string{"location"},
	})
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/items/loc-1", bytes.NewReader(body))
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// GET
	resp, err = client.Get(server.URL + "/api/items/loc-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := decodeBody[ItemResponse](t, resp)
	assert.Equal(t, "Splendid Palace", item.Value["name"])
	assert.Equal(t, []string{"location"}, item.Tags)

	// DELETE
	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/api/items/loc-1", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// GET after delete
	resp, err = client.Get(server.URL + "/api/items/loc-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/recognize", RecognizeRequest{
		Data: map[string]interface{}{"title": "x"},
		Options: types.RecognitionOptions{
			Entities:      types.EntityTypeMap{"title": "event"},
			Threshold:     0.75,
			LLMLowerBound: 0.60,
			LLMUpperBound: 0.75,
		},
	})
	resp.Body.Close()

	resp, err := http.Get(server.URL + "/api/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[map[string]interface{}](t, resp)
	operations := payload["operations"].(map[string]interface{})
	assert.Contains(t, operations, "default")
	assert.Contains(t, payload, "pipeline")
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
