package model

import "github.com/modelkit/modelkit/internal/schema"

// Resolver turns an identifier into a live object, or nil. Resources and
// resource sets provide one; tests can supply a map lookup.
type Resolver func(ID) *Object

// Mutator is the single mutation path that keeps mutually-inverse features
// consistent. Setting feature F on A to B also enters A into F's opposite
// on B; removing symmetrically removes it. FeatureStore itself stays
// opposite-agnostic, so decoders that write raw stores never trigger
// synchronisation.
//
// Guarantees:
//   - repeated identical sets are idempotent; multi-valued opposite slots
//     never accumulate duplicates
//   - clearing a value whose mirror is absent is a no-op, not an error
//   - self-referential opposites (F paired with itself) are handled
//   - targets the resolver cannot find are skipped; the forward write
//     still happens (dangling references are tolerated at runtime)
type Mutator struct {
	registry *schema.Registry
	resolve  Resolver
}

// NewMutator creates a mutator. The registry locates opposite descriptors;
// the resolver locates counterpart objects. Either may be nil, in which
// case the affected synchronisation is skipped.
func NewMutator(registry *schema.Registry, resolve Resolver) *Mutator {
	return &Mutator{registry: registry, resolve: resolve}
}

// Set stores v under f on o, synchronising f's opposite on every target
// that enters or leaves the slot. A nil v behaves like Unset.
func (m *Mutator) Set(o *Object, f *schema.Feature, v Value) {
	key := KeyOf(f)
	opp := m.opposite(f)
	if opp == nil {
		o.Features().Set(key, v)
		return
	}
	old := RefIDs(o.Features().Get(key))
	next := RefIDs(v)
	for _, id := range old {
		if !containsID(next, id) {
			m.unhook(id, opp, o.ID())
		}
	}
	o.Features().Set(key, v)
	for _, id := range next {
		if !containsID(old, id) {
			m.hook(id, f, opp, o)
		}
	}
}

// Add appends target to the multi-valued feature f on o, mirroring into
// the opposite slot. Adding a target already present is a no-op, and a
// scalar Ref already in the slot is promoted to a one-element list before
// the append. For single-valued features Add behaves like Set.
func (m *Mutator) Add(o *Object, f *schema.Feature, target ID) {
	if !f.Many() {
		m.Set(o, f, Ref(target))
		return
	}
	key := KeyOf(f)
	list := promoteRefs(o.Features().Get(key))
	if containsID(list, target) {
		return
	}
	o.Features().Set(key, append(list, target))
	if opp := m.opposite(f); opp != nil {
		m.hook(target, f, opp, o)
	}
}

// Remove takes target out of feature f on o, mirroring the removal into
// the opposite slot. Returns false when the slot did not hold target.
func (m *Mutator) Remove(o *Object, f *schema.Feature, target ID) bool {
	if !m.drop(o, f, target) {
		return false
	}
	if opp := m.opposite(f); opp != nil {
		m.unhook(target, opp, o.ID())
	}
	return true
}

// Unset clears feature f on o, removing o from the opposite slot of every
// current target first.
func (m *Mutator) Unset(o *Object, f *schema.Feature) {
	key := KeyOf(f)
	if opp := m.opposite(f); opp != nil {
		for _, id := range RefIDs(o.Features().Get(key)) {
			m.unhook(id, opp, o.ID())
		}
	}
	o.Features().Unset(key)
}

// opposite resolves f's opposite descriptor, or nil when f declares none
// or no registry can locate it.
func (m *Mutator) opposite(f *schema.Feature) *schema.Feature {
	if f == nil || f.Opposite.IsNil() {
		return nil
	}
	if f.Opposite == f.ID {
		return f
	}
	if m.registry == nil {
		return nil
	}
	return m.registry.ResolveOpposite(f)
}

// hook enters owner into opp's slot on the target object. Single-valued
// opposite slots are overwritten; the displaced partner loses its forward
// entry so the pair stays consistent.
func (m *Mutator) hook(target ID, f, opp *schema.Feature, owner *Object) {
	t := m.find(target, owner)
	if t == nil {
		return
	}
	key := KeyOf(opp)
	slot := t.Features().Get(key)
	if opp.Many() {
		list := promoteRefs(slot)
		if containsID(list, owner.ID()) {
			return
		}
		t.Features().Set(key, append(list, owner.ID()))
		return
	}
	if r, ok := slot.(Ref); ok {
		if ID(r) == owner.ID() {
			return
		}
		if prev := m.find(ID(r), owner); prev != nil {
			m.drop(prev, f, target)
		}
	}
	t.Features().Set(key, Ref(owner.ID()))
}

// unhook removes ownerID from opp's slot on the target object. A missing
// target or an un-mirrored slot is tolerated silently.
func (m *Mutator) unhook(target ID, opp *schema.Feature, ownerID ID) {
	t := m.resolveID(target)
	if t == nil {
		return
	}
	m.dropRaw(t, KeyOf(opp), ownerID)
}

// drop removes target from f's slot on o without touching the opposite.
func (m *Mutator) drop(o *Object, f *schema.Feature, target ID) bool {
	return m.dropRaw(o, KeyOf(f), target)
}

func (m *Mutator) dropRaw(o *Object, key FeatureKey, target ID) bool {
	switch slot := o.Features().Get(key).(type) {
	case Ref:
		if ID(slot) != target {
			return false
		}
		o.Features().Unset(key)
		return true
	case RefList:
		for i, id := range slot {
			if id != target {
				continue
			}
			next := make(RefList, 0, len(slot)-1)
			next = append(next, slot[:i]...)
			next = append(next, slot[i+1:]...)
			if len(next) == 0 {
				o.Features().Unset(key)
			} else {
				o.Features().Set(key, next)
			}
			return true
		}
		return false
	case Owned:
		if slot.Object == nil || slot.Object.ID() != target {
			return false
		}
		o.Features().Unset(key)
		return true
	case OwnedList:
		for i, obj := range slot {
			if obj == nil || obj.ID() != target {
				continue
			}
			next := make(OwnedList, 0, len(slot)-1)
			next = append(next, slot[:i]...)
			next = append(next, slot[i+1:]...)
			if len(next) == 0 {
				o.Features().Unset(key)
			} else {
				o.Features().Set(key, next)
			}
			return true
		}
		return false
	default:
		return false
	}
}

// find locates the object for id, checking the mutating owner first so
// self-references work without a resolver.
func (m *Mutator) find(id ID, owner *Object) *Object {
	if owner != nil && owner.ID() == id {
		return owner
	}
	return m.resolveID(id)
}

func (m *Mutator) resolveID(id ID) *Object {
	if m.resolve == nil {
		return nil
	}
	return m.resolve(id)
}

// promoteRefs normalises a reference slot to list form. A scalar Ref left
// in a many-valued slot by a single-style write becomes a one-element
// list, so appends extend it instead of overwriting the entry. The
// returned list is always a fresh copy, safe to append to.
func promoteRefs(v Value) RefList {
	switch val := v.(type) {
	case Ref:
		return RefList{ID(val)}
	case RefList:
		out := make(RefList, len(val), len(val)+1)
		copy(out, val)
		return out
	default:
		return nil
	}
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
