package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/engram/internal/engine"
	"github.com/scrypster/engram/internal/fieldpath"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/internal/textmatch"
	"github.com/scrypster/engram/pkg/types"
)

// Built-in processor names.
const (
	ProcessorPassthrough   = "passthrough"
	ProcessorAcquirer      = "acquirer"
	ProcessorContentFilter = "content_filter"
	ProcessorNormalizer    = "normalizer"
	ProcessorTagDeriver    = "tag_deriver"
	ProcessorDeduplicator  = "deduplicator"
	ProcessorConsolidator  = "consolidator"
	ProcessorPersister     = "persister"
)

// Deps carries the collaborators built-in processors need.
type Deps struct {
	Recognition *engine.RecognitionEngine
	Store       storage.RecordStore
}

// RegisterBuiltins adds every built-in processor to the registry.
func RegisterBuiltins(registry *Registry, deps Deps) error {
	builtins := map[string]Constructor{
		ProcessorPassthrough:   func() Processor { return &Passthrough{} },
		ProcessorAcquirer:      func() Processor { return &Acquirer{} },
		ProcessorContentFilter: func() Processor { return &ContentFilter{} },
		ProcessorNormalizer:    func() Processor { return &Normalizer{} },
		ProcessorTagDeriver:    func() Processor { return &TagDeriver{} },
		ProcessorDeduplicator:  func() Processor { return &Deduplicator{engine: deps.Recognition} },
		ProcessorConsolidator:  func() Processor { return &Consolidator{} },
		ProcessorPersister:     func() Processor { return &Persister{store: deps.Store} },
	}
	for name, constructor := range builtins {
		if err := registry.Register(name, constructor); err != nil {
			return err
		}
	}
	return nil
}

// counters implements the Metrics half of Processor for embedding.
type counters struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
	ns        atomic.Int64
}

func (c *counters) Metrics() ProcessorMetrics {
	return ProcessorMetrics{
		ItemsProcessed: c.processed.Load(),
		ItemsDropped:   c.dropped.Load(),
		ProcessingTime: time.Duration(c.ns.Load()),
	}
}

func (c *counters) observe(start time.Time, dropped bool) {
	c.processed.Add(1)
	if dropped {
		c.dropped.Add(1)
	}
	c.ns.Add(time.Since(start).Nanoseconds())
}

// Passthrough forwards every item unchanged. It fills roles that a
// deployment profile leaves logically empty.
type Passthrough struct {
	counters
}

func (p *Passthrough) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	defer p.observe(time.Now(), false)
	return Pass(item), nil
}

func (p *Passthrough) Configure(config map[string]interface{}) error { return nil }

// Acquirer stamps identity onto incoming items: a UUID when the caller
// supplied none and the acquisition timestamp.
type Acquirer struct {
	counters
}

func (a *Acquirer) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	defer a.observe(time.Now(), false)
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Metadata.Timestamp.IsZero() {
		item.Metadata.Timestamp = time.Now().UTC()
	}
	return Pass(item), nil
}

func (a *Acquirer) Configure(config map[string]interface{}) error { return nil }

// ContentFilter drops items with empty payloads or payloads larger than a
// configured byte budget.
type ContentFilter struct {
	counters
	maxBytes  int
	keepEmpty bool
}

func (f *ContentFilter) Configure(config map[string]interface{}) error {
	maxBytes, err := configInt(config, "max_bytes", 0)
	if err != nil {
		return err
	}
	if maxBytes < 0 {
		return fmt.Errorf("max_bytes must be >= 0, got %d", maxBytes)
	}
	f.maxBytes = maxBytes
	f.keepEmpty, err = configBool(config, "keep_empty", false)
	return err
}

func (f *ContentFilter) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	start := time.Now()
	if !f.keepEmpty && fieldpath.IsEmpty(item.Data) {
		f.observe(start, true)
		return Drop(), nil
	}
	if f.maxBytes > 0 {
		encoded, err := json.Marshal(item.Data)
		if err != nil || len(encoded) > f.maxBytes {
			f.observe(start, true)
			return Drop(), nil
		}
	}
	f.observe(start, false)
	return Pass(item), nil
}

// Normalizer canonicalizes configured string fields of the payload for
// downstream comparison, leaving the original text under a "_raw" sibling.
type Normalizer struct {
	counters
	fields  []string
	keepRaw bool
}

func (n *Normalizer) Configure(config map[string]interface{}) error {
	fields, err := configStringSlice(config, "fields")
	if err != nil {
		return err
	}
	n.fields = fields
	n.keepRaw, err = configBool(config, "keep_raw", false)
	return err
}

func (n *Normalizer) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	defer n.observe(time.Now(), false)

	data, ok := item.Data.(map[string]interface{})
	if !ok {
		return Pass(item), nil
	}

	normalized := fieldpath.DeepClone(data).(map[string]interface{})
	for _, field := range n.fields {
		value, ok := fieldpath.Get(normalized, field)
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		if n.keepRaw {
			if err := fieldpath.Set(normalized, field+"_raw", text); err != nil {
				continue
			}
		}
		if err := fieldpath.Set(normalized, field, textmatch.Normalize(text)); err != nil {
			continue
		}
	}
	item.Data = normalized
	return Pass(item), nil
}

// TagDeriver appends retrieval tags to item metadata: the item's data type
// plus any statically configured tags.
type TagDeriver struct {
	counters
	static      []string
	useDataType bool
}

func (d *TagDeriver) Configure(config map[string]interface{}) error {
	static, err := configStringSlice(config, "tags")
	if err != nil {
		return err
	}
	d.static = static
	d.useDataType, err = configBool(config, "use_data_type", true)
	return err
}

func (d *TagDeriver) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	defer d.observe(time.Now(), false)

	if d.useDataType && item.DataType != "" {
		item.Metadata.Tags = appendUniqueTag(item.Metadata.Tags, item.DataType)
	}
	for _, tag := range d.static {
		item.Metadata.Tags = appendUniqueTag(item.Metadata.Tags, tag)
	}
	return Pass(item), nil
}

func appendUniqueTag(tags []string, tag string) []string {
	for _, existing := range tags {
		if existing == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// Deduplicator runs recognition against stored records and drops items that
// match an existing one, recording the matching key in merge provenance of
// the dropped item so callers inspecting it can find the original.
type Deduplicator struct {
	counters
	engine *engine.RecognitionEngine
	opts   types.RecognitionOptions
}

func (d *Deduplicator) Configure(config map[string]interface{}) error {
	if d.engine == nil {
		return fmt.Errorf("deduplicator requires a recognition engine")
	}

	entities, err := configStringMap(config, "entities")
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return fmt.Errorf("deduplicator requires a non-empty entities map")
	}

	tags, err := configStringSlice(config, "tags")
	if err != nil {
		return err
	}
	threshold, err := configFloat(config, "threshold", 0.75)
	if err != nil {
		return err
	}
	lower, err := configFloat(config, "llm_lower_bound", 0.60)
	if err != nil {
		return err
	}
	upper, err := configFloat(config, "llm_upper_bound", threshold)
	if err != nil {
		return err
	}
	limit, err := configInt(config, "limit", 0)
	if err != nil {
		return err
	}

	d.opts = types.RecognitionOptions{
		Entities:      entities,
		Tags:          tags,
		Threshold:     threshold,
		LLMLowerBound: lower,
		LLMUpperBound: upper,
		Limit:         limit,
	}
	return d.opts.Validate()
}

func (d *Deduplicator) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	start := time.Now()

	data, ok := item.Data.(map[string]interface{})
	if !ok {
		d.observe(start, false)
		return Pass(item), nil
	}

	result, err := d.engine.Recognize(ctx, data, d.opts)
	if err != nil {
		return Output{}, err
	}
	if result.IsMatch {
		item.Metadata.MergedFrom = append(item.Metadata.MergedFrom, result.MatchingKey)
		d.observe(start, true)
		return Drop(), nil
	}
	d.observe(start, false)
	return Pass(item), nil
}

// Consolidator is the fan-in processor: it buffers the batch's items per
// data type and flushes each group merged into a single item carrying merge
// provenance.
type Consolidator struct {
	counters
	mu       sync.Mutex
	buffered []*types.MemoryItem
	diff     *engine.DiffAnalyzer
	resolver *engine.AutoResolver
}

func (c *Consolidator) Configure(config map[string]interface{}) error {
	c.diff = engine.NewDiffAnalyzer()
	c.resolver = engine.NewAutoResolver()
	return nil
}

func (c *Consolidator) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	start := time.Now()

	if _, ok := item.Data.(map[string]interface{}); !ok {
		c.observe(start, false)
		return Pass(item), nil
	}

	c.mu.Lock()
	c.buffered = append(c.buffered, item)
	c.mu.Unlock()

	c.observe(start, false)
	return Buffered(), nil
}

// Flush merges the buffered items per data type. A group of one passes
// through untouched; larger groups fold into the first item.
func (c *Consolidator) Flush(ctx context.Context) ([]*types.MemoryItem, error) {
	c.mu.Lock()
	buffered := c.buffered
	c.buffered = nil
	c.mu.Unlock()

	groups := make(map[string][]*types.MemoryItem)
	var order []string
	for _, item := range buffered {
		if _, seen := groups[item.DataType]; !seen {
			order = append(order, item.DataType)
		}
		groups[item.DataType] = append(groups[item.DataType], item)
	}

	var out []*types.MemoryItem
	for _, dataType := range order {
		group := groups[dataType]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, c.merge(group))
	}
	return out, nil
}

func (c *Consolidator) merge(group []*types.MemoryItem) *types.MemoryItem {
	merged := group[0].Clone()
	base := merged.Data.(map[string]interface{})

	var sources []map[string]interface{}
	for _, item := range group[1:] {
		sources = append(sources, item.Data.(map[string]interface{}))
	}

	report := c.diff.Analyze(base, sources)
	resolved, _ := c.resolver.Resolve(base, report)
	merged.Data = resolved

	now := time.Now().UTC()
	merged.Metadata.MergedAt = &now
	merged.Metadata.MergedCount = len(group)
	for _, item := range group[1:] {
		merged.Metadata.MergedFrom = append(merged.Metadata.MergedFrom, item.ID)
	}
	return merged
}

// Persister writes map payloads to the record store under the item's ID,
// tagged with the item's derived tags.
type Persister struct {
	counters
	store storage.RecordStore
}

func (p *Persister) Configure(config map[string]interface{}) error {
	if p.store == nil {
		return fmt.Errorf("persister requires a record store")
	}
	return nil
}

func (p *Persister) Process(ctx context.Context, item *types.MemoryItem) (Output, error) {
	start := time.Now()

	data, ok := item.Data.(map[string]interface{})
	if !ok {
		p.observe(start, false)
		return Pass(item), nil
	}

	if err := p.store.Set(ctx, item.ID, data, storage.SetOptions{Tags: item.Metadata.Tags}); err != nil {
		return Output{}, fmt.Errorf("failed to persist item %s: %w", item.ID, err)
	}
	p.observe(start, false)
	return Pass(item), nil
}
