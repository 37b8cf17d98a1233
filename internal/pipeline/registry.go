package pipeline

import (
	"fmt"
	"sort"

	"github.com/scrypster/engram/pkg/types"
)

// Constructor builds a fresh processor instance. Each pipeline component
// gets its own instance so processor-internal state is never shared between
// stages or deployments.
type Constructor func() Processor

// Registry maps processor names to constructors. It is explicitly
// constructed and passed to the pipeline at startup; there is no
// process-wide catalog.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Re-registering a name is a
// configuration error.
func (r *Registry) Register(name string, constructor Constructor) error {
	if name == "" || constructor == nil {
		return fmt.Errorf("%w: processor registration requires a name and constructor", types.ErrConfiguration)
	}
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("%w: processor %q already registered", types.ErrConfiguration, name)
	}
	r.constructors[name] = constructor
	return nil
}

// New instantiates the named processor.
func (r *Registry) New(name string) (Processor, error) {
	constructor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (known: %v)", types.ErrConfiguration, name, r.Names())
	}
	return constructor(), nil
}

// Has reports whether a processor name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.constructors[name]
	return ok
}

// Names lists registered processor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
