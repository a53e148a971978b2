package llm

import (
	"sync"

	"inkwell-ai/internal/domain"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.Provider),
	}
}

// Register adds a provider under its name. Registering the same name again
// replaces the previous provider. A nil provider or an empty name is a
// configuration error.
func (r *Registry) Register(provider domain.Provider) error {
	if provider == nil {
		return &domain.DomainError{Op: "registry.register", Err: domain.ErrConfiguration, Detail: "nil provider"}
	}
	name := provider.Name()
	if name == "" {
		return &domain.DomainError{Op: "registry.register", Err: domain.ErrConfiguration, Detail: "empty provider name"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
	return nil
}

// Lookup retrieves a provider by name. The second return reports whether
// the name is registered.
func (r *Registry) Lookup(name string) (domain.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
