package model

import "github.com/modelkit/modelkit/internal/schema"

// FeatureStore owns the feature values of exactly one object. It maps
// FeatureKeys to Values and remembers first-set order so encoders can
// reproduce stable field order.
//
// All operations are total: reading an absent key yields nil, never an
// error. The store knows nothing about opposites or containment; that
// policy lives in Mutator and the resource layer.
//
// A FeatureStore is not safe for concurrent use on its own; the owning
// resource serialises access (one mutex domain per resource).
type FeatureStore struct {
	byID   map[schema.FeatureID]Value
	byName map[string]Value
	order  []FeatureKey
}

// NewFeatureStore creates an empty store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{}
}

// Get returns the value stored under k, or nil when unset.
func (s *FeatureStore) Get(k FeatureKey) Value {
	if id, ok := k.FeatureID(); ok {
		return s.byID[id]
	}
	name, _ := k.Name()
	return s.byName[name]
}

// IsSet reports whether k holds a value.
func (s *FeatureStore) IsSet(k FeatureKey) bool {
	if id, ok := k.FeatureID(); ok {
		_, set := s.byID[id]
		return set
	}
	name, _ := k.Name()
	_, set := s.byName[name]
	return set
}

// Set stores v under k. A nil v unsets the key. Re-setting a key keeps its
// original position in SetKeys order.
func (s *FeatureStore) Set(k FeatureKey, v Value) {
	if v == nil {
		s.Unset(k)
		return
	}
	if !s.IsSet(k) {
		s.order = append(s.order, k)
	}
	if id, ok := k.FeatureID(); ok {
		if s.byID == nil {
			s.byID = make(map[schema.FeatureID]Value)
		}
		s.byID[id] = v
		return
	}
	name, _ := k.Name()
	if s.byName == nil {
		s.byName = make(map[string]Value)
	}
	s.byName[name] = v
}

// Unset removes the value stored under k. Unsetting an absent key is a
// no-op.
func (s *FeatureStore) Unset(k FeatureKey) {
	if !s.IsSet(k) {
		return
	}
	if id, ok := k.FeatureID(); ok {
		delete(s.byID, id)
	} else {
		name, _ := k.Name()
		delete(s.byName, name)
	}
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetKeys returns the keys currently holding a value, in first-set order.
func (s *FeatureStore) SetKeys() []FeatureKey {
	out := make([]FeatureKey, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of set keys.
func (s *FeatureStore) Len() int {
	return len(s.order)
}
