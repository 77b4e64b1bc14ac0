package provider

import (
	"fmt"
	"sync"
)

// Config holds the settings needed to construct one provider instance.
type Config struct {
	// Type selects the provider implementation ("sendgrid", "resend").
	Type string
	// APIKey authenticates against the provider API.
	APIKey string
	// Endpoint overrides the provider's default API base URL; used in tests.
	Endpoint string
}

// Validate checks that the config is complete for its provider type.
func (c Config) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("provider type is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s: api key is required", c.Type)
	}
	return nil
}

// Registry manages provider instances and allows lookup by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or an error if not found.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// Has reports whether a provider with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// List returns the names of all registered providers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// NewProvider creates a provider instance from the given config and HTTP client.
func NewProvider(cfg Config, client HTTPClient) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	switch cfg.Type {
	case "sendgrid":
		return NewSendGrid(cfg, client), nil
	case "resend":
		return NewResend(cfg, client), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}
