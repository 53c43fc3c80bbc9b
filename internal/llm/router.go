package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Router maps model names to provider adapters. It is built once at startup
// and read-mostly thereafter; Register remains safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// ModelEntry pairs a registered name with its capability record.
type ModelEntry struct {
	Name string    `json:"name"`
	Info ModelInfo `json:"info"`
}

// NewRouter creates an empty model router.
func NewRouter() *Router {
	return &Router{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under the given name. Re-registering a name
// replaces the previous adapter (last write wins).
func (r *Router) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
}

// Get returns the adapter registered under name, or nil if none exists.
func (r *Router) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// ListModels returns all registered models sorted by name.
func (r *Router) ListModels() []ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]ModelEntry, 0, len(r.adapters))
	for name, adapter := range r.adapters {
		entries = append(entries, ModelEntry{Name: name, Info: adapter.Describe()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// GetModelInfo returns the capability record for a registered model.
func (r *Router) GetModelInfo(name string) (ModelInfo, error) {
	adapter := r.Get(name)
	if adapter == nil {
		return ModelInfo{}, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	return adapter.Describe(), nil
}

// EstimateCost estimates the USD cost of sending messages to a model.
func (r *Router) EstimateCost(name string, messages []Message) (float64, error) {
	adapter := r.Get(name)
	if adapter == nil {
		return 0, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	return adapter.EstimateCost(messages), nil
}

// EstimateCarbon estimates the grams CO2 of sending messages to a model.
func (r *Router) EstimateCarbon(name string, messages []Message) (float64, error) {
	adapter := r.Get(name)
	if adapter == nil {
		return 0, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	return adapter.EstimateCarbon(messages), nil
}

// Generate dispatches a generation request to the named model. There is no
// fallback: an unregistered name is an explicit failure.
func (r *Router) Generate(ctx context.Context, name string, messages []Message, opts GenerateOptions) (*Response, error) {
	adapter := r.Get(name)
	if adapter == nil {
		return nil, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}
	return adapter.Generate(ctx, messages, opts)
}
