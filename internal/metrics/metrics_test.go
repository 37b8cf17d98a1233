package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndSnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.Record("tenant-1", "recognize", 10*time.Millisecond, false)
	registry.Record("tenant-1", "recognize", 20*time.Millisecond, true)
	registry.Record("tenant-2", "enrich", 5*time.Millisecond, false)

	snapshot := registry.Snapshot()
	require.Contains(t, snapshot, "tenant-1")
	require.Contains(t, snapshot, "tenant-2")

	recognize := snapshot["tenant-1"]["recognize"]
	assert.Equal(t, uint64(2), recognize.Calls)
	assert.Equal(t, uint64(1), recognize.Failures)
	assert.Equal(t, 30*time.Millisecond, recognize.TotalTime)

	assert.Equal(t, uint64(0), snapshot["tenant-2"]["enrich"].Failures)
}

func TestWithMetrics(t *testing.T) {
	registry := NewRegistry()

	result, err := WithMetrics(registry, "tenant-1", "recognize", func() (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	_, err = WithMetrics(registry, "tenant-1", "recognize", func() (string, error) {
		return "", fmt.Errorf("boom")
	})
	require.Error(t, err)

	stats := registry.Snapshot()["tenant-1"]["recognize"]
	assert.Equal(t, uint64(2), stats.Calls)
	assert.Equal(t, uint64(1), stats.Failures)
}

func TestConcurrentRecording(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tenant := fmt.Sprintf("tenant-%d", n%2)
			for j := 0; j < 100; j++ {
				registry.Record(tenant, "recognize", time.Microsecond, false)
			}
		}(i)
	}
	wg.Wait()

	snapshot := registry.Snapshot()
	total := snapshot["tenant-0"]["recognize"].Calls + snapshot["tenant-1"]["recognize"].Calls
	assert.Equal(t, uint64(800), total)
}
