package resource

import "github.com/modelkit/modelkit/internal/model"

// Proxy is an unresolved reference: a target identifier, a resource URI,
// or both, with an optional navigation path. Reference values never store
// pointers, because the target may be unloaded or live in a resource that
// does not exist yet; resolution is an explicit, repeatable query.
type Proxy struct {
	// URI of the resource expected to hold the target. Empty means
	// "search all registered resources".
	URI string

	// ID of the target object. Nil means "select by Path instead".
	ID model.ID

	// Path is a fragment path (the ResolveByPath grammar) evaluated when
	// no ID is given.
	Path string
}

// IsProxy reports whether p carries anything resolvable.
func (p Proxy) IsProxy() bool {
	return !p.ID.IsNil() || p.URI != ""
}

// ResolveProxy resolves p against the set's current state:
//
//   - idempotent: the same proxy yields the same object while the target's
//     resource stays registered
//   - non-mutating: nothing is loaded, created or cached
//   - total: garbage input yields nil, never an error
//   - invalidated by removal: once a resource leaves the set, proxies
//     reachable only through it resolve to nil
func (s *Set) ResolveProxy(p Proxy) *model.Object {
	if !p.ID.IsNil() {
		if p.URI == "" {
			o, _ := s.Resolve(p.ID)
			return o
		}
		r := s.lookupConverted(p.URI)
		if r == nil {
			return nil
		}
		return r.Resolve(p.ID)
	}
	if p.URI == "" {
		return nil
	}
	uri := p.URI
	if p.Path != "" {
		uri += "#" + p.Path
	}
	return s.ResolveByURI(uri)
}

// lookupConverted finds a resource by URI after mapping and normalisation.
func (s *Set) lookupConverted(uri string) *Resource {
	converted, err := s.ConvertURI(uri)
	if err != nil {
		return nil
	}
	return s.GetResource(NormalizeURI(converted))
}
