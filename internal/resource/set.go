package resource

import (
	"strconv"
	"strings"
	"sync"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/schema"
)

// Factory produces a Resource for a URI. Sets pick a factory by URI
// suffix, falling back to NewResource.
type Factory func(uri string) *Resource

// Set aggregates resources and provides the services that cross document
// boundaries: identifier resolution over all resources, URI mapping and
// normalisation, the metamodel registry, and proxy resolution.
//
// Resources are keyed by exact URI string; CreateResource is idempotent.
// Identifier resolution scans resources in registration order, first match
// wins. Safe for concurrent use; each table has its own mutex domain.
type Set struct {
	mu        sync.RWMutex
	resources []*Resource
	byURI     map[string]*Resource

	registry *schema.Registry
	uriMap   *URIMap

	fmu       sync.RWMutex
	factories map[string]Factory
}

// NewSet creates an empty resource set around the given metamodel
// registry. A nil registry gets a fresh private one; registries are
// explicit dependencies, never process-wide defaults.
func NewSet(registry *schema.Registry) *Set {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	return &Set{
		byURI:     make(map[string]*Resource),
		registry:  registry,
		uriMap:    NewURIMap(),
		factories: make(map[string]Factory),
	}
}

// CreateResource returns the resource registered under uri, creating and
// registering one when absent. Idempotent by exact string match; callers
// that want canonical identity normalise first.
func (s *Set) CreateResource(uri string) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byURI[uri]; ok {
		return r
	}
	r := s.newResourceLocked(uri)
	r.attach(s)
	s.resources = append(s.resources, r)
	s.byURI[uri] = r
	return r
}

func (s *Set) newResourceLocked(uri string) *Resource {
	if f := s.factoryFor(uri); f != nil {
		if r := f(uri); r != nil {
			return r
		}
	}
	return NewResource(uri)
}

// GetResource returns the resource registered under uri, or nil.
func (s *Set) GetResource(uri string) *Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byURI[uri]
}

// RemoveResource unregisters r. Identifiers reachable only through r stop
// resolving immediately; nothing is cached across removal. Returns false
// when r was not registered here.
func (s *Set) RemoveResource(r *Resource) bool {
	if r == nil {
		return false
	}
	s.mu.Lock()
	if s.byURI[r.URI()] != r {
		s.mu.Unlock()
		return false
	}
	delete(s.byURI, r.URI())
	for i, x := range s.resources {
		if x == r {
			s.resources = append(s.resources[:i], s.resources[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	r.detach()
	return true
}

// Resources returns the registered resources in registration order.
func (s *Set) Resources() []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

// Count returns the number of registered resources.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

// Resolve scans resources in registration order for the identifier and
// returns the object with its owning resource. First registered wins when
// duplicates exist. (nil, nil) when nothing matches.
func (s *Set) Resolve(id model.ID) (*model.Object, *Resource) {
	if id.IsNil() {
		return nil, nil
	}
	for _, r := range s.Resources() {
		if o := r.Resolve(id); o != nil {
			return o, r
		}
	}
	return nil, nil
}

// ResolveByURI resolves "base#fragment": the base is converted through the
// mapping table, normalised and looked up; the fragment selects an object.
// Accepted fragment forms: empty (first root), N / /N / //N (Nth root),
// and the /N/feature/M path grammar. Anything unresolvable yields nil.
func (s *Set) ResolveByURI(uri string) *model.Object {
	base, frag, _ := strings.Cut(uri, "#")

	converted, err := s.ConvertURI(base)
	if err != nil {
		return nil
	}
	r := s.GetResource(NormalizeURI(converted))
	if r == nil {
		return nil
	}
	return resolveFragment(r, frag)
}

func resolveFragment(r *Resource, frag string) *model.Object {
	trimmed := strings.TrimLeft(frag, "/")
	if trimmed == "" {
		roots := r.RootObjects()
		if len(roots) == 0 {
			return nil
		}
		return roots[0]
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		roots := r.RootObjects()
		if n < 0 || n >= len(roots) {
			return nil
		}
		return roots[n]
	}
	return r.ResolveByPath("/" + trimmed)
}

// AllInstancesOf returns objects whose schema reference equals c across
// all resources, in registration then insertion order.
func (s *Set) AllInstancesOf(c *schema.Class) []*model.Object {
	var out []*model.Object
	for _, r := range s.Resources() {
		out = append(out, r.AllInstancesOf(c)...)
	}
	return out
}

// Registry returns the set's metamodel registry.
func (s *Set) Registry() *schema.Registry { return s.registry }

// RegisterMetamodel indexes pkg by its namespace URI; decoders consult it
// before inventing ad hoc types.
func (s *Set) RegisterMetamodel(pkg *schema.Package) {
	s.registry.Register(pkg)
}

// UnregisterMetamodel removes the package registered under nsURI.
func (s *Set) UnregisterMetamodel(nsURI string) bool {
	return s.registry.Unregister(nsURI)
}

// Metamodel returns the package registered under nsURI, or nil.
func (s *Set) Metamodel(nsURI string) *schema.Package {
	return s.registry.Lookup(nsURI)
}

// ResolveOpposite looks up f's opposite descriptor across all registered
// packages. Nil when f declares none or it is not registered.
func (s *Set) ResolveOpposite(f *schema.Feature) *schema.Feature {
	return s.registry.ResolveOpposite(f)
}

// MapURI records the rewrite rule from -> to, applied by ConvertURI and
// ResolveByURI before normalisation.
func (s *Set) MapURI(from, to string) {
	s.uriMap.Map(from, to)
}

// ConvertURI applies the mapping table: longest prefix wins, chained until
// no rule applies, bounded by MaxRewriteDepth. Unmapped URIs pass through.
func (s *Set) ConvertURI(uri string) (string, error) {
	return s.uriMap.Convert(uri)
}

// URIMap exposes the mapping table, e.g. for diagnostics.
func (s *Set) URIMap() *URIMap { return s.uriMap }

// RegisterResourceFactory associates a URI suffix (typically an extension
// like ".xmi") with a factory. CreateResource consults factories by
// longest matching suffix.
func (s *Set) RegisterResourceFactory(suffix string, f Factory) {
	if suffix == "" || f == nil {
		return
	}
	s.fmu.Lock()
	defer s.fmu.Unlock()
	s.factories[suffix] = f
}

// ResourceFactory returns the factory whose suffix matches uri, longest
// suffix first, or nil.
func (s *Set) ResourceFactory(uri string) Factory {
	return s.factoryFor(uri)
}

func (s *Set) factoryFor(uri string) Factory {
	s.fmu.RLock()
	defer s.fmu.RUnlock()
	var best string
	var f Factory
	for suffix, fac := range s.factories {
		if strings.HasSuffix(uri, suffix) && len(suffix) > len(best) {
			best = suffix
			f = fac
		}
	}
	return f
}
