package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
	"github.com/modelkit/modelkit/internal/schema"
)

const (
	xmiNamespace = "http://www.omg.org/XMI"
	xmiVersion   = "2.0"
)

// EncodeXMI serialises a resource as an XMI-style XML document. Root
// objects become children of the xmi:XMI element; scalar features become
// attributes, references become href elements, and contained objects nest
// inside their containment feature's element.
func EncodeXMI(r *resource.Resource) ([]byte, error) {
	enc := &xmiEncoder{r: r, prefixes: make(map[*schema.Package]string)}
	roots := r.RootObjects()
	for _, o := range roots {
		enc.collectPackages(o)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<xmi:XMI xmi:version="` + xmiVersion + `" xmlns:xmi="` + xmiNamespace + `"`)
	for _, pkg := range enc.packages {
		buf.WriteString(` xmlns:` + enc.prefixes[pkg] + `="`)
		escapeAttr(&buf, pkg.NsURI)
		buf.WriteString(`"`)
	}
	buf.WriteString(">\n")
	for _, o := range roots {
		if err := enc.writeObject(&buf, o, enc.elementName(o), true, 1); err != nil {
			return nil, err
		}
	}
	buf.WriteString("</xmi:XMI>\n")
	return buf.Bytes(), nil
}

type xmiEncoder struct {
	r        *resource.Resource
	packages []*schema.Package
	prefixes map[*schema.Package]string
}

// collectPackages walks the containment tree registering a namespace
// prefix for every package in use. Prefixes derive from package names,
// deduplicated with a counter when two packages share a name.
func (e *xmiEncoder) collectPackages(o *model.Object) {
	if c := o.Class(); c != nil && c.Package != nil {
		if _, ok := e.prefixes[c.Package]; !ok {
			base := c.Package.Name
			if base == "" {
				base = "ns"
			}
			prefix := base
			for n := 2; e.prefixTaken(prefix); n++ {
				prefix = fmt.Sprintf("%s_%d", base, n)
			}
			e.prefixes[c.Package] = prefix
			e.packages = append(e.packages, c.Package)
		}
	}
	store := o.Features()
	for _, k := range store.SetKeys() {
		switch val := store.Get(k).(type) {
		case model.Owned:
			if val.Object != nil {
				e.collectPackages(val.Object)
			}
		case model.OwnedList:
			for _, child := range val {
				if child != nil {
					e.collectPackages(child)
				}
			}
		case model.Ref, model.RefList:
			for _, id := range model.RefIDs(val) {
				if e.isContained(o, k, id) {
					if child := e.r.Resolve(id); child != nil {
						e.collectPackages(child)
					}
				}
			}
		}
	}
}

func (e *xmiEncoder) prefixTaken(prefix string) bool {
	if prefix == "xmi" || prefix == "xmlns" {
		return true
	}
	for _, p := range e.prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

func (e *xmiEncoder) elementName(o *model.Object) string {
	c := o.Class()
	if c == nil || c.Package == nil {
		return "object"
	}
	return e.prefixes[c.Package] + ":" + c.Name
}

// isContained reports whether the slot's descriptor declares containment
// and the target lives in this resource, i.e. the target nests inline.
func (e *xmiEncoder) isContained(o *model.Object, k model.FeatureKey, id model.ID) bool {
	f := descriptor(e.r, o, k)
	return f != nil && f.Containment && e.r.Contains(id)
}

func descriptor(r *resource.Resource, o *model.Object, k model.FeatureKey) *schema.Feature {
	id, ok := k.FeatureID()
	if !ok {
		return nil
	}
	if c := o.Class(); c != nil {
		if f := c.FeatureByID(id); f != nil {
			return f
		}
	}
	if set := r.ResourceSet(); set != nil {
		return set.Registry().FeatureByID(id)
	}
	return nil
}

func (e *xmiEncoder) writeObject(buf *bytes.Buffer, o *model.Object, elem string, root bool, depth int) error {
	pad := strings.Repeat("  ", depth)
	buf.WriteString(pad + "<" + elem)
	if !root {
		if c := o.Class(); c != nil && c.Package != nil {
			buf.WriteString(` xmi:type="` + e.prefixes[c.Package] + ":" + c.Name + `"`)
		}
	}
	buf.WriteString(` xmi:id="` + o.ID().String() + `"`)

	store := o.Features()
	keys := store.SetKeys()

	// Scalars first, as attributes.
	type childSlot struct {
		name string
		k    model.FeatureKey
		v    model.Value
	}
	var children []childSlot
	for _, k := range keys {
		name, err := featureName(e.r, o, k)
		if err != nil {
			return err
		}
		v := store.Get(k)
		if s, ok := scalarText(v); ok {
			buf.WriteString(" " + name + `="`)
			escapeAttr(buf, s)
			buf.WriteString(`"`)
			continue
		}
		children = append(children, childSlot{name: name, k: k, v: v})
	}
	if len(children) == 0 {
		buf.WriteString("/>\n")
		return nil
	}
	buf.WriteString(">\n")
	for _, c := range children {
		if err := e.writeSlot(buf, o, c.name, c.k, c.v, depth+1); err != nil {
			return fmt.Errorf("feature %q: %w", c.name, err)
		}
	}
	buf.WriteString(pad + "</" + elem + ">\n")
	return nil
}

func (e *xmiEncoder) writeSlot(buf *bytes.Buffer, o *model.Object, name string, k model.FeatureKey, v model.Value, depth int) error {
	pad := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case model.Ref:
		return e.writeRef(buf, o, name, k, model.ID(val), depth)
	case model.RefList:
		for _, id := range val {
			if err := e.writeRef(buf, o, name, k, id, depth); err != nil {
				return err
			}
		}
		return nil
	case model.Owned:
		if val.Object == nil {
			return fmt.Errorf("owned slot holds no object")
		}
		return e.writeObject(buf, val.Object, name, false, depth)
	case model.OwnedList:
		for _, child := range val {
			// Nil entries are skipped, matching RefIDs.
			if child == nil {
				continue
			}
			if err := e.writeObject(buf, child, name, false, depth); err != nil {
				return err
			}
		}
		return nil
	case model.Opaque:
		buf.WriteString(pad + "<" + name + ` kind="`)
		escapeAttr(buf, val.Kind)
		buf.WriteString(`">`)
		escapeText(buf, val.Repr)
		buf.WriteString("</" + name + ">\n")
		return nil
	default:
		return fmt.Errorf("unsupported value kind %T", v)
	}
}

func (e *xmiEncoder) writeRef(buf *bytes.Buffer, o *model.Object, name string, k model.FeatureKey, id model.ID, depth int) error {
	if e.isContained(o, k, id) {
		if target := e.r.Resolve(id); target != nil {
			return e.writeObject(buf, target, name, false, depth)
		}
	}
	href := "#" + id.String()
	if set := e.r.ResourceSet(); set != nil && !e.r.Contains(id) {
		if _, owner := set.Resolve(id); owner != nil && owner != e.r {
			href = owner.URI() + href
		}
	}
	buf.WriteString(strings.Repeat("  ", depth) + "<" + name + ` href="`)
	escapeAttr(buf, href)
	buf.WriteString("\"/>\n")
	return nil
}

// scalarText renders a scalar value as attribute text. Non-scalars report
// false and are written as child elements.
func scalarText(v model.Value) (string, bool) {
	switch val := v.(type) {
	case model.String:
		return string(val), true
	case model.Int:
		return strconv.FormatInt(int64(val), 10), true
	case model.Bool:
		return strconv.FormatBool(bool(val)), true
	case model.Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), true
	case model.Time:
		return time.Time(val).Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

func escapeAttr(buf *bytes.Buffer, s string) {
	xml.EscapeText(buf, []byte(s))
}

func escapeText(buf *bytes.Buffer, s string) {
	xml.EscapeText(buf, []byte(s))
}

// DecodeXMI populates a resource from an XMI document. Undeclared
// attributes decode as name-keyed string features; declared attribute
// types drive scalar conversion. Nested elements under a declared
// containment feature are added to the resource and referenced by id;
// nested elements under undeclared features stay intrinsically owned.
func DecodeXMI(r *resource.Resource, data []byte) error {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	root := findXMIRoot(doc)
	if root == nil {
		return fmt.Errorf("no xmi:XMI root element")
	}

	d := &xmiDecoder{
		r:   r,
		ctx: newDecodeContext(r.ResourceSet()),
		ns:  make(map[string]string),
	}
	for _, a := range root.Attr {
		if a.Name.Space == "xmlns" {
			d.ns[a.Name.Local] = a.Value
		}
	}

	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		o, err := d.decodeObject(n, d.classForElement(n))
		if err != nil {
			return err
		}
		if !r.Add(o) {
			return fmt.Errorf("duplicate id %s", o.ID())
		}
	}
	return nil
}

func findXMIRoot(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == "XMI" {
			return n
		}
	}
	return nil
}

type xmiDecoder struct {
	r   *resource.Resource
	ctx *decodeContext
	ns  map[string]string
}

// classForElement resolves a root element's name to a class; the literal
// element name "object" marks a classless object.
func (d *xmiDecoder) classForElement(n *xmlquery.Node) *schema.Class {
	if n.Prefix == "" && n.Data == "object" {
		return nil
	}
	ns := n.NamespaceURI
	if ns == "" {
		ns = d.ns[n.Prefix]
	}
	return d.ctx.class(ns, n.Data)
}

// classForType resolves an xmi:type attribute value of the form
// "prefix:Class".
func (d *xmiDecoder) classForType(typeAttr string) *schema.Class {
	prefix, name, found := strings.Cut(typeAttr, ":")
	if !found {
		return d.ctx.class("", typeAttr)
	}
	return d.ctx.class(d.ns[prefix], name)
}

func (d *xmiDecoder) decodeObject(n *xmlquery.Node, class *schema.Class) (*model.Object, error) {
	var id model.ID
	if idAttr := xmiAttr(n, "id"); idAttr != "" {
		parsed, ok := model.ParseID(idAttr)
		if !ok {
			return nil, fmt.Errorf("invalid xmi:id %q", idAttr)
		}
		id = parsed
	}
	o := model.NewObjectWithID(id, class)

	for _, a := range n.Attr {
		if isXMIAttr(a) || isNamespaceDecl(a) {
			continue
		}
		v, err := d.attrValue(class, a.Name.Local, a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name.Local, err)
		}
		o.Set(a.Name.Local, v)
	}

	slots, order, err := d.collectSlots(n)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		v, err := d.finishSlot(o, name, slots[name])
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", name, err)
		}
		o.Set(name, v)
	}
	return o, nil
}

// attrValue converts attribute text using the declared attribute type;
// undeclared attributes stay strings.
func (d *xmiDecoder) attrValue(class *schema.Class, name, text string) (model.Value, error) {
	var typeName string
	if class != nil {
		if f := class.Feature(name); f != nil {
			typeName = f.Type
		}
	}
	switch typeName {
	case "int":
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return model.Int(i), nil
	case "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, err
		}
		return model.Bool(b), nil
	case "float", "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return model.Float(f), nil
	case "date":
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, err
		}
		return model.Time(t), nil
	default:
		return model.String(text), nil
	}
}

// xmiSlot accumulates repeated child elements of one feature.
type xmiSlot struct {
	refs    []model.ID
	objects []*model.Object
	opaque  *model.Opaque
	hadRef  bool
}

func (d *xmiDecoder) collectSlots(n *xmlquery.Node) (map[string]*xmiSlot, []string, error) {
	slots := make(map[string]*xmiSlot)
	var order []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		name := c.Data
		slot, ok := slots[name]
		if !ok {
			slot = &xmiSlot{}
			slots[name] = slot
			order = append(order, name)
		}
		if err := d.decodeSlotEntry(c, slot); err != nil {
			return nil, nil, fmt.Errorf("feature %q: %w", name, err)
		}
	}
	return slots, order, nil
}

func (d *xmiDecoder) decodeSlotEntry(c *xmlquery.Node, slot *xmiSlot) error {
	if href := c.SelectAttr("href"); href != "" {
		slot.hadRef = true
		if id, ok := d.resolveHref(href); ok {
			slot.refs = append(slot.refs, id)
		} else {
			slot.opaque = &model.Opaque{Kind: "href", Repr: href}
		}
		return nil
	}
	if xmiAttr(c, "id") != "" || xmiAttr(c, "type") != "" {
		var class *schema.Class
		if t := xmiAttr(c, "type"); t != "" {
			class = d.classForType(t)
		}
		o, err := d.decodeObject(c, class)
		if err != nil {
			return err
		}
		slot.objects = append(slot.objects, o)
		return nil
	}
	slot.opaque = &model.Opaque{Kind: c.SelectAttr("kind"), Repr: c.InnerText()}
	return nil
}

// resolveHref turns an href into a target id. Same-document and
// id-fragment hrefs resolve locally; path fragments go through the set's
// proxy machinery.
func (d *xmiDecoder) resolveHref(href string) (model.ID, bool) {
	uri, frag, _ := strings.Cut(href, "#")
	if id, ok := model.ParseID(frag); ok {
		return id, true
	}
	if d.ctx.set != nil && uri != "" {
		if o := d.ctx.set.ResolveProxy(resource.Proxy{URI: uri, Path: frag}); o != nil {
			return o.ID(), true
		}
	}
	return model.NilID, false
}

func (d *xmiDecoder) finishSlot(owner *model.Object, name string, slot *xmiSlot) (model.Value, error) {
	f := owner.Feature(name)
	many := f != nil && f.Many()

	switch {
	case len(slot.objects) > 0:
		if f != nil && f.Containment {
			ids := make(model.RefList, 0, len(slot.objects))
			for _, o := range slot.objects {
				if !d.r.Add(o) {
					return nil, fmt.Errorf("duplicate id %s", o.ID())
				}
				ids = append(ids, o.ID())
			}
			if !many && len(ids) == 1 {
				return model.Ref(ids[0]), nil
			}
			return ids, nil
		}
		if !many && len(slot.objects) == 1 {
			return model.Owned{Object: slot.objects[0]}, nil
		}
		return model.OwnedList(slot.objects), nil
	case slot.hadRef:
		if slot.opaque != nil && len(slot.refs) == 0 {
			return *slot.opaque, nil
		}
		if !many && len(slot.refs) == 1 {
			return model.Ref(slot.refs[0]), nil
		}
		return model.RefList(slot.refs), nil
	case slot.opaque != nil:
		return *slot.opaque, nil
	default:
		return nil, fmt.Errorf("empty slot")
	}
}

// xmiAttr reads an attribute in the xmi namespace. The parser may report
// the attribute's space as the prefix or as the resolved namespace URI
// depending on whether the declaration was in scope.
func xmiAttr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if isXMIAttr(a) && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func isXMIAttr(a xmlquery.Attr) bool {
	return a.Name.Space == "xmi" || a.Name.Space == xmiNamespace || a.NamespaceURI == xmiNamespace
}

func isNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == "xmlns" || a.Name.Local == "xmlns"
}
