package sites

import "github.com/rotisserie/eris"

// Registry maps site names to their implementations.
type Registry struct {
	sites map[string]Site
	order []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]Site)}
}

// DefaultRegistry returns a registry with every supported site registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTruePeopleSearch())
	r.Register(NewSearchPeopleFree())
	r.Register(NewAnywho())
	r.Register(NewLinkedIn())
	return r
}

// Register adds a site to the registry.
func (r *Registry) Register(s Site) {
	name := s.Name()
	r.sites[name] = s
	r.order = append(r.order, name)
}

// Get returns a site by name.
func (r *Registry) Get(name string) (Site, error) {
	s, ok := r.sites[name]
	if !ok {
		return nil, eris.Errorf("sites: unknown site %q (valid: %v)", name, r.order)
	}
	return s, nil
}

// Names returns the registered site names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
