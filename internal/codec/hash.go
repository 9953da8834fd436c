package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
)

// DomainDocument prefixes document hashes. The version suffix allows the
// tree shape or algorithm to change without colliding with old hashes.
const DomainDocument = "modelkit/document/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash computes the content-addressed identity of a resource's
// current state. The resource URI is deliberately excluded: the hash
// names what the document says, not where it lives, so a moved document
// keeps its identity. Cross-document references hash by target id alone
// for the same reason.
func DocumentHash(r *resource.Resource) (string, error) {
	objects := make([]any, 0, r.Len())
	for _, o := range r.AllObjects() {
		t, err := hashTreeObject(r, o)
		if err != nil {
			return "", err
		}
		objects = append(objects, t)
	}
	canonical, err := MarshalCanonical(map[string]any{"objects": objects})
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

func hashTreeObject(r *resource.Resource, o *model.Object) (any, error) {
	tree := map[string]any{"id": o.ID().String()}
	if c := o.Class(); c != nil {
		tree["class"] = c.Name
		if c.Package != nil {
			tree["ns"] = c.Package.NsURI
		}
	}
	store := o.Features()
	keys := store.SetKeys()
	if len(keys) > 0 {
		features := make(map[string]any, len(keys))
		for _, k := range keys {
			name, err := featureName(r, o, k)
			if err != nil {
				return nil, err
			}
			hv, err := hashTreeValue(r, store.Get(k))
			if err != nil {
				return nil, err
			}
			features[name] = hv
		}
		tree["features"] = features
	}
	return tree, nil
}

func hashTreeValue(r *resource.Resource, v model.Value) (any, error) {
	switch val := v.(type) {
	case model.String:
		return string(val), nil
	case model.Int:
		return int64(val), nil
	case model.Bool:
		return bool(val), nil
	case model.Float:
		return map[string]any{tagFloat: float64(val)}, nil
	case model.Time:
		// UTC so equal instants in different zones hash equal, matching
		// model.Equal on Time values.
		return map[string]any{tagTime: time.Time(val).UTC().Format(time.RFC3339Nano)}, nil
	case model.Ref:
		return map[string]any{tagRef: model.ID(val).String()}, nil
	case model.RefList:
		ids := make([]any, len(val))
		for i, id := range val {
			ids[i] = id.String()
		}
		return map[string]any{tagRefs: ids}, nil
	case model.Owned:
		if val.Object == nil {
			return nil, fmt.Errorf("owned slot holds no object")
		}
		nested, err := hashTreeObject(r, val.Object)
		if err != nil {
			return nil, err
		}
		return map[string]any{tagObject: nested}, nil
	case model.OwnedList:
		nested := make([]any, 0, len(val))
		for _, o := range val {
			// Nil entries are skipped, matching RefIDs.
			if o == nil {
				continue
			}
			t, err := hashTreeObject(r, o)
			if err != nil {
				return nil, err
			}
			nested = append(nested, t)
		}
		return map[string]any{tagObjects: nested}, nil
	case model.Opaque:
		return map[string]any{tagOpaque: map[string]string{
			"kind": val.Kind,
			"repr": val.Repr,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %T", v)
	}
}
