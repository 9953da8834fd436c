package resource

import (
	"sync"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/schema"
)

// Resource is one addressable document: an ordered, deduplicated
// collection of model objects. The subset of objects not held by a
// containment feature of another object in the same resource are its
// roots; the root set is derived on demand, never stored.
//
// An object belongs to at most one resource at a time; re-adding a present
// identifier is reported as false, not a duplicate insert. All methods are
// safe for concurrent use.
type Resource struct {
	uri string

	mu      sync.RWMutex
	objects []*model.Object
	index   map[model.ID]*model.Object

	set *Set // owning resource set, nil while detached
}

// NewResource creates an empty resource identified by uri. Resources are
// usually created through Set.CreateResource, which also registers them.
func NewResource(uri string) *Resource {
	return &Resource{uri: uri, index: make(map[model.ID]*model.Object)}
}

// URI returns the resource's identifying URI.
func (r *Resource) URI() string { return r.uri }

// ResourceSet returns the owning set, or nil while the resource is
// detached.
func (r *Resource) ResourceSet() *Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

func (r *Resource) attach(s *Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set != nil && r.set != s {
		// An object graph owned by two sets would make first-registered-wins
		// resolution ambiguous; this is a bug in the caller's wiring.
		panic("resource: resource attached to two resource sets")
	}
	r.set = s
}

func (r *Resource) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = nil
}

// Add inserts o if no object with the same identifier is present.
// Returns false, leaving the resource untouched, when the identifier is
// already there.
func (r *Resource) Add(o *model.Object) bool {
	if o == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[o.ID()]; ok {
		return false
	}
	r.objects = append(r.objects, o)
	r.index[o.ID()] = o
	return true
}

// Remove deletes o from the resource. The removal is shallow: contained
// children stay; cascading is the caller's policy. Returns false when o
// was not present.
func (r *Resource) Remove(o *model.Object) bool {
	if o == nil {
		return false
	}
	return r.RemoveID(o.ID())
}

// RemoveID deletes the object with the given identifier, shallowly.
func (r *Resource) RemoveID(id model.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; !ok {
		return false
	}
	delete(r.index, id)
	for i, o := range r.objects {
		if o.ID() == id {
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether the identifier is present.
func (r *Resource) Contains(id model.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// Resolve returns the object with the given identifier, or nil. O(1).
func (r *Resource) Resolve(id model.ID) *model.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[id]
}

// Len returns the number of objects in the resource.
func (r *Resource) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// AllObjects returns every object in insertion order.
func (r *Resource) AllObjects() []*model.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Object, len(r.objects))
	copy(out, r.objects)
	return out
}

// RootObjects returns, in insertion order, the objects not reachable as a
// containment target from another object in this resource.
func (r *Resource) RootObjects() []*model.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	contained := r.containedLocked()
	var roots []*model.Object
	for _, o := range r.objects {
		if !contained[o.ID()] {
			roots = append(roots, o)
		}
	}
	return roots
}

// AllInstancesOf returns, in insertion order, the objects whose schema
// reference equals c. A linear scan; "all instances" queries depend on it.
func (r *Resource) AllInstancesOf(c *schema.Class) []*model.Object {
	if c == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Object
	for _, o := range r.objects {
		if o.Class() == c {
			out = append(out, o)
		}
	}
	return out
}

// Clear empties the resource. It stays registered and usable.
func (r *Resource) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = nil
	r.index = make(map[model.ID]*model.Object)
}

// Mutator returns an opposite-synchronising mutator scoped to this
// resource: counterpart objects are resolved here first, then across the
// owning set. Without a set the registry is nil and synchronisation for
// foreign descriptors degrades to plain writes.
func (r *Resource) Mutator() *model.Mutator {
	var reg *schema.Registry
	if s := r.ResourceSet(); s != nil {
		reg = s.Registry()
	}
	return model.NewMutator(reg, func(id model.ID) *model.Object {
		if o := r.Resolve(id); o != nil {
			return o
		}
		if s := r.ResourceSet(); s != nil {
			o, _ := s.Resolve(id)
			return o
		}
		return nil
	})
}

// containedLocked collects the identifiers held by containment features of
// objects in this resource. Owned values are intrinsically containing;
// Ref values count when their declared descriptor has the containment
// flag. Targets outside the resource are ignored.
func (r *Resource) containedLocked() map[model.ID]bool {
	contained := make(map[model.ID]bool)
	for _, o := range r.objects {
		for _, key := range o.Features().SetKeys() {
			v := o.Features().Get(key)
			switch v.(type) {
			case model.Owned, model.OwnedList:
				for _, id := range model.RefIDs(v) {
					if _, ok := r.index[id]; ok {
						contained[id] = true
					}
				}
			case model.Ref, model.RefList:
				f := r.descriptorLocked(o, key)
				if f == nil || !f.Containment {
					continue
				}
				for _, id := range model.RefIDs(v) {
					if _, ok := r.index[id]; ok {
						contained[id] = true
					}
				}
			}
		}
	}
	return contained
}

// descriptorLocked finds the schema descriptor behind a feature key, first
// through the object's own class, then through the set's registry for
// identifier keys minted elsewhere.
func (r *Resource) descriptorLocked(o *model.Object, key model.FeatureKey) *schema.Feature {
	if id, ok := key.FeatureID(); ok {
		if c := o.Class(); c != nil {
			if f := c.FeatureByID(id); f != nil {
				return f
			}
		}
		if r.set != nil {
			return r.set.Registry().FeatureByID(id)
		}
		return nil
	}
	name, _ := key.Name()
	if c := o.Class(); c != nil {
		return c.Feature(name)
	}
	return nil
}
