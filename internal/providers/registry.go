package providers

import (
	"sync"

	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/strings"
)

// Sentinel errors for registry lookups.
var (
	ErrProviderNotFound  = dErrors.New(dErrors.CodeNotFound, "provider not found")
	ErrUnknownCapability = dErrors.New(dErrors.CodeConfiguration, "no provider supports the requested capability")
)

// Registry maintains all registered providers in insertion order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds or updates a provider. Re-registering an existing ID replaces
// its capabilities and limits but keeps its position in the ordering.
// It reports whether the provider was new.
func (r *Registry) Register(p Provider) (bool, error) {
	p = normalize(p)
	if err := p.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.providers[p.ID]
	if !exists {
		r.order = append(r.order, p.ID)
	}
	r.providers[p.ID] = p.clone()
	return !exists, nil
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// GetLimits returns the limits registered for a provider.
func (r *Registry) GetLimits(id string) (Limits, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return Limits{}, ErrProviderNotFound
	}
	return p.Limits, nil
}

// ListProviders returns the providers supporting c in registration order.
// An unsupported capability is a configuration error, not a degradation.
func (r *Registry) ListProviders(c Capability) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Provider
	for _, id := range r.order {
		p := r.providers[id]
		if p.Supports(c) {
			result = append(result, p.clone())
		}
	}
	if len(result) == 0 {
		return nil, dErrors.Wrap(ErrUnknownCapability, dErrors.CodeConfiguration, "capability "+string(c))
	}
	return result, nil
}

// All returns all registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.providers[id].clone())
	}
	return result
}

func normalize(p Provider) Provider {
	tags := make([]string, len(p.Capabilities))
	for i, c := range p.Capabilities {
		tags[i] = string(c)
	}
	tags = strings.NormalizeTags(tags)
	p.Capabilities = make([]Capability, len(tags))
	for i, t := range tags {
		p.Capabilities[i] = Capability(t)
	}
	return p
}
