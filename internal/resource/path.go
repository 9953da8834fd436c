package resource

import (
	"strconv"
	"strings"

	"github.com/modelkit/modelkit/internal/model"
)

// ResolveByPath interprets the fragment-path grammar against this
// resource:
//
//	/@contents.N          Nth root object
//	/N                    Nth root object
//	/N/feature/M/...      recursive navigation through containment
//	                      features; the index after a feature name is
//	                      optional for single-valued slots
//
// Malformed or out-of-range paths return nil, never an error.
func (r *Resource) ResolveByPath(path string) *model.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveByPathLocked(path)
}

func (r *Resource) resolveByPathLocked(path string) *model.Object {
	p := strings.TrimPrefix(path, "/")
	if p == "" {
		return nil
	}
	segs := strings.Split(p, "/")

	cur := r.rootLocked(parseRootIndex(segs[0]))
	if cur == nil {
		return nil
	}

	for i := 1; i < len(segs); {
		feature := segs[i]
		if feature == "" {
			return nil
		}
		i++

		idx, indexed := -1, false
		if i < len(segs) {
			if n, err := strconv.Atoi(segs[i]); err == nil {
				idx, indexed = n, true
				i++
			}
		}

		targets := r.childrenLocked(cur, feature)
		switch {
		case indexed:
			if idx < 0 || idx >= len(targets) {
				return nil
			}
			cur = targets[idx]
		case len(targets) > 0:
			cur = targets[0]
		default:
			return nil
		}
	}
	return cur
}

// parseRootIndex accepts "N" and "@contents.N"; anything else yields -1.
func parseRootIndex(seg string) int {
	if rest, ok := strings.CutPrefix(seg, "@contents."); ok {
		seg = rest
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// rootLocked returns the nth root object, or nil when out of range.
func (r *Resource) rootLocked(n int) *model.Object {
	if n < 0 {
		return nil
	}
	contained := r.containedLocked()
	i := 0
	for _, o := range r.objects {
		if contained[o.ID()] {
			continue
		}
		if i == n {
			return o
		}
		i++
	}
	return nil
}

// childrenLocked lists the objects a named feature of o leads to. Owned
// values are followed directly. Ref values navigate only when the declared
// feature is a containment, and resolve within this resource only, so
// paths stay inside the containment tree and never cross document
// boundaries.
func (r *Resource) childrenLocked(o *model.Object, feature string) []*model.Object {
	v := o.Features().Get(o.Key(feature))
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case model.Owned:
		if val.Object == nil {
			return nil
		}
		return []*model.Object{val.Object}
	case model.OwnedList:
		out := make([]*model.Object, 0, len(val))
		for _, c := range val {
			if c != nil {
				out = append(out, c)
			}
		}
		return out
	case model.Ref, model.RefList:
		f := o.Feature(feature)
		if f == nil || !f.Containment {
			return nil
		}
		var out []*model.Object
		for _, id := range model.RefIDs(v) {
			if t, ok := r.index[id]; ok {
				out = append(out, t)
			}
		}
		return out
	default:
		return nil
	}
}
