package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is a sealed interface over the kinds a feature slot can hold:
// scalar primitives, reference values (IDs, never pointers), nested owned
// objects, and an explicit Opaque escape hatch for kinds the core does not
// recognise. Only the types in this file implement it.
type Value interface {
	value() // sealed
}

// String is a string scalar.
type String string

func (String) value() {}

// Int is an integer scalar. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) value() {}

// Float is a floating-point scalar. Always float64; narrower encodings
// widen on decode.
type Float float64

func (Float) value() {}

// Time is a date/time scalar.
type Time time.Time

func (Time) value() {}

// Ref is a single-valued reference: the ID of the target object. The
// target may be unloaded or live in another resource; resolution is an
// explicit query against a resource or resource set.
type Ref ID

func (Ref) value() {}

// RefList is an ordered multi-valued reference.
type RefList []ID

func (RefList) value() {}

// Owned is a nested object held by containment.
type Owned struct {
	Object *Object
}

func (Owned) value() {}

// OwnedList is an ordered multi-valued containment slot.
type OwnedList []*Object

func (OwnedList) value() {}

// Opaque carries a value of a kind the core does not model. Equality is
// description-based: two opaques are equal when Kind and Repr match.
// New scalar kinds degrade to Opaque rather than being rejected.
type Opaque struct {
	Kind string // e.g. "bytes", "bigdecimal"
	Repr string // stable string representation
}

func (Opaque) value() {}

// Equal compares two values with type-tagged rules per kind, falling back
// to string-representation comparison for Opaque and any future kinds the
// switch does not recognise. Values of different dynamic types are never
// equal; two nils are.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Time:
		bv, ok := b.(Time)
		return ok && time.Time(av).Equal(time.Time(bv))
	case Ref:
		bv, ok := b.(Ref)
		return ok && av == bv
	case RefList:
		bv, ok := b.(RefList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Owned:
		bv, ok := b.(Owned)
		if !ok {
			return false
		}
		return sameObject(av.Object, bv.Object)
	case OwnedList:
		bv, ok := b.(OwnedList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameObject(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) {
			return false
		}
		return Describe(a) == Describe(b)
	}
}

func sameObject(a, b *Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// Describe returns a stable string representation of a value, used for the
// fallback equality path and for diagnostics. It is not a serialisation
// format; codecs have their own.
func Describe(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<unset>"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Time:
		return time.Time(val).UTC().Format(time.RFC3339Nano)
	case Ref:
		return ID(val).String()
	case RefList:
		parts := make([]string, len(val))
		for i, id := range val {
			parts[i] = id.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case Owned:
		if val.Object == nil {
			return "<unset>"
		}
		return val.Object.ID().String()
	case OwnedList:
		parts := make([]string, len(val))
		for i, o := range val {
			if o == nil {
				parts[i] = "<unset>"
				continue
			}
			parts[i] = o.ID().String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case Opaque:
		return val.Kind + ":" + val.Repr
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RefIDs extracts the target IDs of a reference or containment value.
// Scalars yield nil. Owned objects contribute their IDs, so callers can
// treat reference and containment slots uniformly.
func RefIDs(v Value) []ID {
	switch val := v.(type) {
	case Ref:
		return []ID{ID(val)}
	case RefList:
		out := make([]ID, len(val))
		copy(out, val)
		return out
	case Owned:
		if val.Object == nil {
			return nil
		}
		return []ID{val.Object.ID()}
	case OwnedList:
		out := make([]ID, 0, len(val))
		for _, o := range val {
			if o != nil {
				out = append(out, o.ID())
			}
		}
		return out
	default:
		return nil
	}
}
