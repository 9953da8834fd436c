package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
	"github.com/modelkit/modelkit/internal/schema"
)

// jsonVersion is the document format version written under "modelkit".
const jsonVersion = 1

// Value tags. Scalars that JSON cannot represent unambiguously, and every
// reference kind, are wrapped in a single-key object so decode restores
// the exact value kind without guessing.
const (
	tagFloat   = "$float"
	tagTime    = "$time"
	tagRef     = "$ref"
	tagRefs    = "$refs"
	tagProxy   = "$proxy"
	tagObject  = "$object"
	tagObjects = "$objects"
	tagOpaque  = "$opaque"
)

// EncodeJSON serialises a resource to a JSON document. Feature order
// follows each object's first-set order, object order follows insertion
// order, and references to objects living in other resources of the same
// set are written as proxies carrying the owning resource's URI.
func EncodeJSON(r *resource.Resource) ([]byte, error) {
	doc := struct {
		Version int           `json:"modelkit"`
		URI     string        `json:"uri,omitempty"`
		Objects []*jsonObject `json:"objects"`
	}{Version: jsonVersion, URI: r.URI()}

	for _, o := range r.AllObjects() {
		jo, err := encodeObject(r, o)
		if err != nil {
			return nil, err
		}
		doc.Objects = append(doc.Objects, jo)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSON populates a resource from a JSON document. Decoded objects
// keep the document's native ids; feature writes go straight to the
// stores, so opposite references are taken as the document states them.
func DecodeJSON(r *resource.Resource, data []byte) error {
	var doc struct {
		Version int               `json:"modelkit"`
		URI     string            `json:"uri"`
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if doc.Version != jsonVersion {
		return fmt.Errorf("unsupported document version %d", doc.Version)
	}

	ctx := newDecodeContext(r.ResourceSet())
	for i, raw := range doc.Objects {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		o, err := decodeObjectStream(dec, ctx)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		if !r.Add(o) {
			return fmt.Errorf("object %d: duplicate id %s", i, o.ID())
		}
	}
	return nil
}

// jsonObject is an encoded object with stable feature order. It marshals
// by hand because encoding/json offers no ordered map.
type jsonObject struct {
	id       string
	class    string
	ns       string
	features orderedFields
}

func (o *jsonObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	writeJSON(&buf, o.id)
	if o.class != "" {
		buf.WriteString(`,"class":`)
		writeJSON(&buf, o.class)
	}
	if o.ns != "" {
		buf.WriteString(`,"ns":`)
		writeJSON(&buf, o.ns)
	}
	if len(o.features.keys) > 0 {
		buf.WriteString(`,"features":`)
		fb, err := o.features.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(fb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, _ := json.Marshal(v)
	buf.Write(b)
}

// orderedFields is a JSON object whose keys marshal in insertion order.
type orderedFields struct {
	keys []string
	vals map[string]any
}

func (f *orderedFields) add(key string, v any) {
	if f.vals == nil {
		f.vals = make(map[string]any)
	}
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = v
}

func (f orderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(&buf, k)
		buf.WriteByte(':')
		vb, err := json.Marshal(f.vals[k])
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeObject(r *resource.Resource, o *model.Object) (*jsonObject, error) {
	jo := &jsonObject{id: o.ID().String()}
	if c := o.Class(); c != nil {
		jo.class = c.Name
		if c.Package != nil {
			jo.ns = c.Package.NsURI
		}
	}
	store := o.Features()
	for _, k := range store.SetKeys() {
		name, err := featureName(r, o, k)
		if err != nil {
			return nil, err
		}
		ev, err := encodeValue(r, store.Get(k))
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", name, err)
		}
		jo.features.add(name, ev)
	}
	return jo, nil
}

// featureName resolves a store key back to a feature name, consulting the
// object's class and then the resource set's metamodel registry.
func featureName(r *resource.Resource, o *model.Object, k model.FeatureKey) (string, error) {
	if name, ok := k.Name(); ok {
		return name, nil
	}
	id, _ := k.FeatureID()
	if c := o.Class(); c != nil {
		if f := c.FeatureByID(id); f != nil {
			return f.Name, nil
		}
	}
	if set := r.ResourceSet(); set != nil {
		if f := set.Registry().FeatureByID(id); f != nil {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no declared name for feature %s", id)
}

func encodeValue(r *resource.Resource, v model.Value) (any, error) {
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
		return map[string]any{tagTime: time.Time(val).Format(time.RFC3339Nano)}, nil
	case model.Ref:
		entry := refEntry(r, model.ID(val))
		if s, ok := entry.(string); ok {
			return map[string]any{tagRef: s}, nil
		}
		return entry, nil
	case model.RefList:
		entries := make([]any, len(val))
		for i, id := range val {
			entries[i] = refEntry(r, id)
		}
		return map[string]any{tagRefs: entries}, nil
	case model.Owned:
		if val.Object == nil {
			return nil, fmt.Errorf("owned slot holds no object")
		}
		nested, err := encodeObject(r, val.Object)
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
			jo, err := encodeObject(r, o)
			if err != nil {
				return nil, err
			}
			nested = append(nested, jo)
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

// refEntry encodes one reference target: a bare id string when the target
// lives in this resource (or cannot be located), a proxy object when it
// lives in a sibling resource of the same set.
func refEntry(r *resource.Resource, id model.ID) any {
	if set := r.ResourceSet(); set != nil && !r.Contains(id) {
		if _, owner := set.Resolve(id); owner != nil && owner != r {
			return map[string]any{tagProxy: map[string]string{
				"uri": owner.URI(),
				"id":  id.String(),
			}}
		}
	}
	return id.String()
}

// proxyRef is the wire form of a cross-document reference.
type proxyRef struct {
	URI  string `json:"uri,omitempty"`
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

type decodeContext struct {
	set     *resource.Set
	classes map[string]*schema.Class
}

func newDecodeContext(set *resource.Set) *decodeContext {
	return &decodeContext{set: set, classes: make(map[string]*schema.Class)}
}

// class resolves ns+name against registered metamodels, falling back to
// an ad hoc class so undeclared documents still decode. Ad hoc classes
// are cached per decode so instances share a descriptor.
func (c *decodeContext) class(ns, name string) *schema.Class {
	if name == "" {
		return nil
	}
	if c.set != nil && ns != "" {
		if pkg := c.set.Metamodel(ns); pkg != nil {
			if cl := pkg.Class(name); cl != nil {
				return cl
			}
		}
	}
	key := ns + "#" + name
	if cl, ok := c.classes[key]; ok {
		return cl
	}
	cl := schema.NewClass(name)
	c.classes[key] = cl
	return cl
}

// decodeObjectStream consumes one encoded object from the token stream.
// The features payload is buffered raw so field order survives regardless
// of where "class" and "ns" appear in the document.
func decodeObjectStream(dec *json.Decoder, ctx *decodeContext) (*model.Object, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var idStr, class, ns string
	var features json.RawMessage
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "id":
			if err := dec.Decode(&idStr); err != nil {
				return nil, fmt.Errorf("id: %w", err)
			}
		case "class":
			if err := dec.Decode(&class); err != nil {
				return nil, fmt.Errorf("class: %w", err)
			}
		case "ns":
			if err := dec.Decode(&ns); err != nil {
				return nil, fmt.Errorf("ns: %w", err)
			}
		case "features":
			if err := dec.Decode(&features); err != nil {
				return nil, fmt.Errorf("features: %w", err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	var id model.ID
	if idStr != "" {
		parsed, ok := model.ParseID(idStr)
		if !ok {
			return nil, fmt.Errorf("invalid object id %q", idStr)
		}
		id = parsed
	}
	o := model.NewObjectWithID(id, ctx.class(ns, class))
	if features != nil {
		if err := decodeFeatures(o, features, ctx); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func decodeFeatures(o *model.Object, raw json.RawMessage, ctx *decodeContext) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return err
		}
		v, err := decodeValue(dec, ctx)
		if err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
		o.Set(name, v)
	}
	return expectDelim(dec, '}')
}

func decodeValue(dec *json.Decoder, ctx *decodeContext) (model.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case string:
		return model.String(t), nil
	case bool:
		return model.Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return model.Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.String())
		}
		return model.Float(f), nil
	case json.Delim:
		if t != '{' {
			return nil, fmt.Errorf("unexpected %v", t)
		}
		return decodeTagged(dec, ctx)
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// decodeTagged decodes a single-key tagged value object; the opening '{'
// has already been consumed.
func decodeTagged(dec *json.Decoder, ctx *decodeContext) (model.Value, error) {
	if !dec.More() {
		return nil, fmt.Errorf("empty value object")
	}
	tag, err := stringToken(dec)
	if err != nil {
		return nil, err
	}

	var v model.Value
	switch tag {
	case tagFloat:
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		v = model.Float(f)
	case tagTime:
		var s string
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", s, err)
		}
		v = model.Time(ts)
	case tagRef:
		var s string
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		id, ok := model.ParseID(s)
		if !ok {
			return nil, fmt.Errorf("bad reference id %q", s)
		}
		v = model.Ref(id)
	case tagRefs:
		var entries []json.RawMessage
		if err := dec.Decode(&entries); err != nil {
			return nil, err
		}
		list := make(model.RefList, 0, len(entries))
		for i, e := range entries {
			id, err := decodeRefEntry(e, ctx)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			list = append(list, id)
		}
		v = list
	case tagProxy:
		var p proxyRef
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		v = resolveProxyRef(p, ctx)
	case tagObject:
		o, err := decodeObjectStream(dec, ctx)
		if err != nil {
			return nil, err
		}
		v = model.Owned{Object: o}
	case tagObjects:
		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		var list model.OwnedList
		for dec.More() {
			o, err := decodeObjectStream(dec, ctx)
			if err != nil {
				return nil, err
			}
			list = append(list, o)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
		v = list
	case tagOpaque:
		var op struct {
			Kind string `json:"kind"`
			Repr string `json:"repr"`
		}
		if err := dec.Decode(&op); err != nil {
			return nil, err
		}
		v = model.Opaque{Kind: op.Kind, Repr: op.Repr}
	default:
		return nil, fmt.Errorf("unknown value tag %q", tag)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeRefEntry turns one list entry, a bare id string or a proxy
// object, into a target id.
func decodeRefEntry(raw json.RawMessage, ctx *decodeContext) (model.ID, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.NilID, err
		}
		id, ok := model.ParseID(s)
		if !ok {
			return model.NilID, fmt.Errorf("bad reference id %q", s)
		}
		return id, nil
	}
	var wrapper struct {
		Proxy *proxyRef `json:"$proxy"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Proxy == nil {
		return model.NilID, fmt.Errorf("reference entry is neither id nor proxy")
	}
	ref := resolveProxyRef(*wrapper.Proxy, ctx)
	if id, ok := ref.(model.Ref); ok {
		return model.ID(id), nil
	}
	return model.NilID, fmt.Errorf("unresolvable proxy %q", wrapper.Proxy.URI)
}

// resolveProxyRef turns a wire proxy into a reference. A proxy carrying
// an id stays a plain Ref even when the target is not loaded; an id-less
// proxy resolves through the set, degrading to Opaque when no target is
// found so the document round-trips without data loss.
func resolveProxyRef(p proxyRef, ctx *decodeContext) model.Value {
	if p.ID != "" {
		if id, ok := model.ParseID(p.ID); ok {
			return model.Ref(id)
		}
	}
	if ctx.set != nil {
		if o := ctx.set.ResolveProxy(resource.Proxy{URI: p.URI, Path: p.Path}); o != nil {
			return model.Ref(o.ID())
		}
	}
	repr, _ := json.Marshal(p)
	return model.Opaque{Kind: "proxy", Repr: string(repr)}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string key, got %v", tok)
	}
	return s, nil
}
