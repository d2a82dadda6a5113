package platforms

import (
	"fmt"
	"strings"
	"sync"
)

// adapterRegistry implements AdapterRegistry.
type adapterRegistry struct {
	adaptersByID   map[string]Adapter
	adaptersByType map[string]Adapter
	mu             sync.RWMutex
}

// NewAdapterRegistry builds a registry for the provided adapter
// implementations keyed by platform id.
func NewAdapterRegistry(adapters ...Adapter) AdapterRegistry {
	return NewTypeAdapterRegistry(nil, adapters...)
}

// NewTypeAdapterRegistry builds a registry with optional type-based adapters
// and platform-specific adapters. Id matches win over type matches.
func NewTypeAdapterRegistry(typeAdapters map[string]Adapter, adapters ...Adapter) AdapterRegistry {
	reg := &adapterRegistry{
		adaptersByID:   make(map[string]Adapter),
		adaptersByType: make(map[string]Adapter),
	}

	for _, a := range adapters {
		reg.registerIDAdapter(a)
	}
	for typ, a := range typeAdapters {
		reg.registerTypeAdapter(typ, a)
	}

	return reg
}

func (r *adapterRegistry) registerIDAdapter(a Adapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(a.ID()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.adaptersByID[key] = a
	r.mu.Unlock()
}

func (r *adapterRegistry) registerTypeAdapter(typ string, a Adapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.adaptersByType[key] = a
	r.mu.Unlock()
}

// AdapterFor selects the adapter for the given platform based on its id or type.
func (r *adapterRegistry) AdapterFor(cfg Platform) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("adapter registry is nil")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("platform id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idKey := strings.ToLower(strings.TrimSpace(cfg.ID))
	if a, ok := r.adaptersByID[idKey]; ok {
		return a, nil
	}

	typeKey := strings.ToLower(strings.TrimSpace(cfg.Type))
	if typeKey != "" {
		if a, ok := r.adaptersByType[typeKey]; ok {
			return a, nil
		}
	}

	return nil, fmt.Errorf("no adapter registered for platform %q (type %q)", cfg.ID, cfg.Type)
}
