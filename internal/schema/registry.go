package schema

import "sync"

// Registry indexes metamodel packages by namespace URI.
//
// A Registry is an explicit dependency: resource sets and codecs receive one
// at construction rather than reaching for a process-wide default. Multiple
// independent registries can coexist in one process.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pkgs  map[string]*Package
	order []string // registration order of namespace URIs
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pkgs: make(map[string]*Package)}
}

// Register indexes pkg under its namespace URI. Registering a second package
// under the same URI replaces the earlier one in place, keeping its
// registration-order slot.
func (r *Registry) Register(pkg *Package) {
	if pkg == nil || pkg.NsURI == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pkgs[pkg.NsURI]; !ok {
		r.order = append(r.order, pkg.NsURI)
	}
	r.pkgs[pkg.NsURI] = pkg
}

// Unregister removes the package registered under nsURI.
// Returns false when no package was registered there.
func (r *Registry) Unregister(nsURI string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pkgs[nsURI]; !ok {
		return false
	}
	delete(r.pkgs, nsURI)
	for i, u := range r.order {
		if u == nsURI {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the package registered under nsURI, or nil.
func (r *Registry) Lookup(nsURI string) *Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pkgs[nsURI]
}

// Packages returns the registered packages in registration order.
func (r *Registry) Packages() []*Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Package, 0, len(r.order))
	for _, u := range r.order {
		out = append(out, r.pkgs[u])
	}
	return out
}

// FeatureByID scans all registered packages for the feature with the given
// identifier. Returns nil when no registered class declares it.
func (r *Registry) FeatureByID(id FeatureID) *Feature {
	if id.IsNil() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.order {
		for _, c := range r.pkgs[u].Classes() {
			if f := c.FeatureByID(id); f != nil {
				return f
			}
		}
	}
	return nil
}

// ResolveOpposite returns the descriptor named by f.Opposite, searching all
// registered packages. Nil when f has no opposite or the opposite is not
// declared by any registered class.
func (r *Registry) ResolveOpposite(f *Feature) *Feature {
	if f == nil || f.Opposite.IsNil() {
		return nil
	}
	// Self-referential opposites resolve without consulting the index.
	if f.Opposite == f.ID {
		return f
	}
	return r.FeatureByID(f.Opposite)
}
