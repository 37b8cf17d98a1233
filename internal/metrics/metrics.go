// Package metrics tracks per-tenant operation counters. Tracking is
// explicit wrapper composition around engine calls rather than decorators,
// so every recorded operation is visible at the call site.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// OperationStats is a snapshot of one tenant's counters for one operation.
type OperationStats struct {
	Calls     uint64        `json:"calls"`
	Failures  uint64        `json:"failures"`
	TotalTime time.Duration `json:"total_time"`
}

type operationCounters struct {
	calls    atomic.Uint64
	failures atomic.Uint64
	ns       atomic.Int64
}

// Registry holds per-tenant, per-operation counters. It is safe for
// concurrent use; counter updates are atomic.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*operationCounters
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string]map[string]*operationCounters)}
}

func (r *Registry) counters(tenantID, operation string) *operationCounters {
	r.mu.RLock()
	ops, ok := r.tenants[tenantID]
	if ok {
		if c, ok := ops[operation]; ok {
			r.mu.RUnlock()
			return c
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	ops, ok = r.tenants[tenantID]
	if !ok {
		ops = make(map[string]*operationCounters)
		r.tenants[tenantID] = ops
	}
	c, ok := ops[operation]
	if !ok {
		c = &operationCounters{}
		ops[operation] = c
	}
	return c
}

// Record adds one observation for a tenant operation.
func (r *Registry) Record(tenantID, operation string, took time.Duration, failed bool) {
	c := r.counters(tenantID, operation)
	c.calls.Add(1)
	if failed {
		c.failures.Add(1)
	}
	c.ns.Add(took.Nanoseconds())
}

// Snapshot returns all counters grouped by tenant and operation.
func (r *Registry) Snapshot() map[string]map[string]OperationStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]OperationStats, len(r.tenants))
	for tenantID, ops := range r.tenants {
		snapshot := make(map[string]OperationStats, len(ops))
		for operation, c := range ops {
			snapshot[operation] = OperationStats{
				Calls:     c.calls.Load(),
				Failures:  c.failures.Load(),
				TotalTime: time.Duration(c.ns.Load()),
			}
		}
		out[tenantID] = snapshot
	}
	return out
}

// WithMetrics runs fn and records its outcome under the tenant's operation
// counters.
func WithMetrics[T any](registry *Registry, tenantID, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	registry.Record(tenantID, operation, time.Since(start), err != nil)
	return result, err
}
