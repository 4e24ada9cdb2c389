package registry

import (
	"context"
	"sync"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// MemoryRegistry is an in-memory implementation of the Registry interface
type MemoryRegistry struct {
	entries map[string]core.ResourceEntry
	mu      sync.RWMutex
}

// NewMemoryRegistry creates a new in-memory registry
func NewMemoryRegistry() ports.Registry {
	return &MemoryRegistry{
		entries: make(map[string]core.ResourceEntry),
	}
}

func entryKey(domain, resource string) string {
	return domain + "|" + core.NormalizeResource(resource)
}

// Lookup returns the entry registered under the (domain, resource) pair
func (r *MemoryRegistry) Lookup(ctx context.Context, domain, resource string) (*core.ResourceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[entryKey(domain, resource)]
	if !ok {
		return nil, ports.ErrEntryNotFound
	}
	return &entry, nil
}

// Put registers or replaces an entry
func (r *MemoryRegistry) Put(ctx context.Context, entry *core.ResourceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	stored.Resource = core.NormalizeResource(stored.Resource)
	r.entries[entryKey(stored.Domain, stored.Resource)] = stored
	return nil
}

// List returns every entry registered under the domain
func (r *MemoryRegistry) List(ctx context.Context, domain string) ([]core.ResourceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []core.ResourceEntry
	for _, entry := range r.entries {
		if entry.Domain == domain {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
