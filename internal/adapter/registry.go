package adapter

import (
	"sync"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// Registry holds the configured adapters. It is built at program start and
// injected into the manager, merger, and decomposer; there is no package
// level default instance.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[string]Adapter
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name. The first registered adapter
// becomes the default until SetDefault overrides it.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
	if r.defaultName == "" {
		r.defaultName = a.Name()
	}
}

// SetDefault marks the named adapter as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return errkind.Errorf(errkind.InvalidInput, "unknown adapter %q", name)
	}
	r.defaultName = name
	return nil
}

// Get returns the named adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, errkind.Errorf(errkind.InvalidInput, "unknown adapter %q", name)
	}
	return a, nil
}

// Default returns the default adapter.
func (r *Registry) Default() (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, errkind.Errorf(errkind.AdapterConnectionError, "no adapters registered")
	}
	return r.adapters[r.defaultName], nil
}

// Names returns the registered adapter names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
