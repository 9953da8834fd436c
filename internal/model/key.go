package model

import "github.com/modelkit/modelkit/internal/schema"

// FeatureKey is the tagged union a feature store is keyed by: either a
// schema feature's identifier (the fast path for declared features) or a
// plain name (dynamic features decoded from documents that carry fields
// the active schema does not declare). Exactly one of the two tags is set.
//
// FeatureKey is comparable and usable as a map key, but the store keeps
// two backing maps rather than one so the two keying schemes cannot
// collide.
type FeatureKey struct {
	id   schema.FeatureID
	name string
}

// KeyOf returns the identifier key for a declared feature.
func KeyOf(f *schema.Feature) FeatureKey {
	return FeatureKey{id: f.ID}
}

// KeyByID returns an identifier key.
func KeyByID(id schema.FeatureID) FeatureKey {
	return FeatureKey{id: id}
}

// KeyByName returns a name key for a dynamic feature.
func KeyByName(name string) FeatureKey {
	return FeatureKey{name: name}
}

// ByID reports whether the key is identifier-tagged.
func (k FeatureKey) ByID() bool {
	return !k.id.IsNil()
}

// FeatureID returns the identifier tag; the bool is false for name keys.
func (k FeatureKey) FeatureID() (schema.FeatureID, bool) {
	return k.id, !k.id.IsNil()
}

// Name returns the name tag; the bool is false for identifier keys.
func (k FeatureKey) Name() (string, bool) {
	if !k.id.IsNil() {
		return "", false
	}
	return k.name, true
}

// String renders the key for diagnostics.
func (k FeatureKey) String() string {
	if k.ByID() {
		return "feature:" + k.id.String()
	}
	return "name:" + k.name
}
