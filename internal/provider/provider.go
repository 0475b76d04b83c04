// Package provider defines the adapter boundary between the enrichment
// pipeline and external data providers. Adapters translate provider-native
// shapes into canonical raw records; nothing provider-native leaks past
// them.
package provider

import (
	"context"
	"sync"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Query is the provider-agnostic unit of work an adapter executes.
type Query struct {
	Operation   string
	TenantID    string
	RequestID   string
	CompanyName string
	CompanyID   string
	Domain      string
	Titles      []string
	Role        model.RoleCategory
	// Candidate is set for per-candidate operations (contact lookup,
	// person enrichment, deep research).
	Candidate *model.FusedCandidate
}

// Adapter executes provider calls. Fetch returns the canonical records
// plus the cost the provider actually charged, which the runner records
// in the ledger whether or not the call succeeded.
type Adapter interface {
	Name() string
	Operations() []string
	CostEstimate(op string) float64
	Fetch(ctx context.Context, q Query) ([]model.RawRecord, float64, error)
}

// Registry manages the wired adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not registered.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
