package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrypster/engram/pkg/types"
)

// component is an instantiated, configured processor filling a role.
type component struct {
	role      string
	name      string
	processor Processor
}

// stageRuntime holds the instantiated components of one enabled stage plus
// its counters. Counters are atomic because Run may be called concurrently.
type stageRuntime struct {
	stage      Stage
	components []component

	itemsProcessed atomic.Uint64
	itemsDropped   atomic.Uint64
	processingNs   atomic.Int64
}

// StageMetrics is the per-stage counter snapshot.
type StageMetrics struct {
	ItemsProcessed uint64        `json:"items_processed"`
	ItemsDropped   uint64        `json:"items_dropped"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Metrics aggregates per-stage counters into a pipeline-wide view.
type Metrics struct {
	Stages         map[Stage]StageMetrics `json:"stages"`
	ItemsProcessed uint64                 `json:"items_processed"`
	ItemsDropped   uint64                 `json:"items_dropped"`
}

// Pipeline routes memory items through the enabled stages in fixed order.
// Construction validates the profile against the registry; a Pipeline that
// exists processes items without configuration surprises.
type Pipeline struct {
	stages []*stageRuntime

	// mu guards stages and serializes batch runs, so fan-in buffers flush
	// per batch and a reload never swaps stages mid-run.
	mu sync.Mutex
}

// New builds a pipeline from a validated profile and a processor registry.
// Every component is instantiated and configured here; any failure is a
// configuration error and no pipeline is returned.
func New(profile *Profile, registry *Registry) (*Pipeline, error) {
	if err := profile.Validate(registry); err != nil {
		return nil, err
	}

	p := &Pipeline{}
	for _, stage := range StageOrder {
		spec, ok := profile.Stages[string(stage)]
		if !ok || !spec.Enabled {
			continue
		}

		runtime := &stageRuntime{stage: stage}
		for _, componentSpec := range spec.Components {
			processor, err := registry.New(componentSpec.Processor)
			if err != nil {
				return nil, err
			}
			if err := processor.Configure(componentSpec.Config); err != nil {
				return nil, fmt.Errorf("%w: stage %s role %q processor %q: %v",
					types.ErrConfiguration, stage, componentSpec.Role, componentSpec.Processor, err)
			}
			runtime.components = append(runtime.components, component{
				role:      componentSpec.Role,
				name:      componentSpec.Processor,
				processor: processor,
			})
		}
		p.stages = append(p.stages, runtime)
	}
	return p, nil
}

// Reload rebuilds the stages from a new profile. A validation or
// configuration failure leaves the running pipeline untouched. Stage
// counters restart from zero after a successful reload.
func (p *Pipeline) Reload(profile *Profile, registry *Registry) error {
	next, err := New(profile, registry)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.stages = next.stages
	p.mu.Unlock()
	return nil
}

// Run routes a single item through the pipeline. The returned slice holds
// the surviving items: usually one, several after fan-out, none when a
// stage dropped or buffered the item.
func (p *Pipeline) Run(ctx context.Context, item *types.MemoryItem) ([]*types.MemoryItem, error) {
	return p.RunBatch(ctx, []*types.MemoryItem{item})
}

// RunBatch routes a batch of items through the pipeline. Fan-in processors
// buffer across the batch and are flushed after the batch's last item, so
// consolidation happens within a batch, never silently across calls.
func (p *Pipeline) RunBatch(ctx context.Context, items []*types.MemoryItem) ([]*types.MemoryItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := items
	for _, runtime := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		next, err := p.runStage(ctx, runtime, current)
		runtime.processingNs.Add(time.Since(start).Nanoseconds())
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", runtime.stage, err)
		}
		current = next

		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

func (p *Pipeline) runStage(ctx context.Context, runtime *stageRuntime, items []*types.MemoryItem) ([]*types.MemoryItem, error) {
	current := items
	for _, comp := range runtime.components {
		var next []*types.MemoryItem
		for _, item := range current {
			runtime.itemsProcessed.Add(1)

			output, err := comp.processor.Process(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("role %q processor %q: %w", comp.role, comp.name, err)
			}
			if output.Dropped {
				runtime.itemsDropped.Add(1)
				continue
			}
			for _, produced := range output.Items {
				produced.RecordProcessing(string(runtime.stage), comp.name)
				next = append(next, produced)
			}
		}

		// Release fan-in buffers after the last item of the batch.
		if flusher, ok := comp.processor.(Flusher); ok {
			flushed, err := flusher.Flush(ctx)
			if err != nil {
				return nil, fmt.Errorf("role %q processor %q flush: %w", comp.role, comp.name, err)
			}
			for _, produced := range flushed {
				produced.RecordProcessing(string(runtime.stage), comp.name)
				next = append(next, produced)
			}
		}

		current = next
	}
	return current, nil
}

// Metrics snapshots the per-stage counters.
func (p *Pipeline) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := Metrics{Stages: make(map[Stage]StageMetrics, len(p.stages))}
	for _, runtime := range p.stages {
		snapshot := StageMetrics{
			ItemsProcessed: runtime.itemsProcessed.Load(),
			ItemsDropped:   runtime.itemsDropped.Load(),
			ProcessingTime: time.Duration(runtime.processingNs.Load()),
		}
		metrics.Stages[runtime.stage] = snapshot
		metrics.ItemsProcessed += snapshot.ItemsProcessed
		metrics.ItemsDropped += snapshot.ItemsDropped
	}
	return metrics
}
