package model

import "github.com/modelkit/modelkit/internal/schema"

// Object is a model entity: a stable identifier, a reference to the schema
// class describing it, and a feature store holding its slot values.
// Identity and equality derive solely from the identifier.
//
// The class may be nil for fully dynamic objects decoded without a
// registered metamodel; such objects keep every feature name-keyed.
type Object struct {
	id    ID
	class *schema.Class
	store *FeatureStore
}

// NewObject creates an object of the given class with a fresh identifier.
func NewObject(class *schema.Class) *Object {
	return NewObjectWithID(NewID(), class)
}

// NewObjectWithID creates an object with an explicit identifier, used by
// decoders to round-trip documents carrying native ids. A nil id is
// replaced with a fresh one.
func NewObjectWithID(id ID, class *schema.Class) *Object {
	if id.IsNil() {
		id = NewID()
	}
	return &Object{id: id, class: class, store: NewFeatureStore()}
}

// ID returns the object's identifier.
func (o *Object) ID() ID { return o.id }

// Class returns the schema class describing the object, or nil.
func (o *Object) Class() *schema.Class { return o.class }

// Features returns the object's feature store.
func (o *Object) Features() *FeatureStore { return o.store }

// Same reports identifier equality.
func (o *Object) Same(other *Object) bool {
	return other != nil && o.id == other.id
}

// Key resolves a feature name against the object's class: names of
// declared features yield identifier keys, so later schema-aware access
// sees the same value; unknown names stay name-keyed for round-trip
// fidelity.
func (o *Object) Key(name string) FeatureKey {
	if o.class != nil {
		if f := o.class.Feature(name); f != nil {
			return KeyOf(f)
		}
	}
	return KeyByName(name)
}

// Feature returns the declared feature descriptor for name, or nil.
func (o *Object) Feature(name string) *schema.Feature {
	if o.class == nil {
		return nil
	}
	return o.class.Feature(name)
}

// Get returns the value stored under name, or nil.
func (o *Object) Get(name string) Value {
	return o.store.Get(o.Key(name))
}

// Set stores v under name. Opposite references are not synchronised here;
// use a Mutator when the feature declares one.
func (o *Object) Set(name string, v Value) {
	o.store.Set(o.Key(name), v)
}

// IsSet reports whether name holds a value.
func (o *Object) IsSet(name string) bool {
	return o.store.IsSet(o.Key(name))
}

// Unset removes the value stored under name.
func (o *Object) Unset(name string) {
	o.store.Unset(o.Key(name))
}
