package pipeline

import (
	"context"
	"time"

	"github.com/scrypster/engram/pkg/types"
)

// Output is the result of one processor step. Exactly one shape applies:
// a dropped item carries no items; otherwise Items holds the item (possibly
// transformed), or several items on fan-out, or none while a fan-in
// processor buffers.
type Output struct {
	Items   []*types.MemoryItem
	Dropped bool
}

// Pass returns the item unchanged or transformed.
func Pass(item *types.MemoryItem) Output {
	return Output{Items: []*types.MemoryItem{item}}
}

// FanOut returns multiple items replacing the input.
func FanOut(items ...*types.MemoryItem) Output {
	return Output{Items: items}
}

// Drop filters the item out of the pipeline.
func Drop() Output {
	return Output{Dropped: true}
}

// Buffered absorbs the item into processor-internal state without dropping
// it; a later item or flush releases the buffered work as fan-out.
func Buffered() Output {
	return Output{}
}

// ProcessorMetrics is the per-processor counter snapshot.
type ProcessorMetrics struct {
	ItemsProcessed uint64        `json:"items_processed"`
	ItemsDropped   uint64        `json:"items_dropped"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Processor is the single capability interface every stage component
// implements. Configure is called once at pipeline construction with the
// processor's config blob from the profile; a config it cannot accept is a
// configuration error surfaced before any item flows.
type Processor interface {
	Process(ctx context.Context, item *types.MemoryItem) (Output, error)
	Configure(config map[string]interface{}) error
	Metrics() ProcessorMetrics
}

// Flusher is implemented by fan-in processors holding buffered items. The
// pipeline flushes at the end of a Run so no item is silently retained
// across calls unless the processor chooses to.
type Flusher interface {
	Flush(ctx context.Context) ([]*types.MemoryItem, error)
}
