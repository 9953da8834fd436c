package schema

import (
	"github.com/google/uuid"
)

// FeatureID identifies a structural feature across the lifetime of a
// metamodel. It is assigned when the feature is built and never changes;
// feature stores use it as the fast-path key for schema-declared features.
type FeatureID uuid.UUID

// NilFeatureID is the zero FeatureID, meaning "no feature".
var NilFeatureID FeatureID

// NewFeatureID returns a fresh feature identifier.
func NewFeatureID() FeatureID {
	return FeatureID(uuid.Must(uuid.NewV7()))
}

// String returns the canonical uuid text form.
func (id FeatureID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero identifier.
func (id FeatureID) IsNil() bool {
	return id == NilFeatureID
}

// Unbounded is the upper-bound value meaning "no limit".
const Unbounded = -1

// Feature describes one structural feature of a class: an attribute or a
// reference. The descriptor carries everything the store and the opposite
// synchroniser need; value typing beyond the Type name is not enforced here.
type Feature struct {
	ID          FeatureID
	Name        string
	Type        string // attribute type name or referenced class name
	Lower       int
	Upper       int // Unbounded (-1) means no limit
	Containment bool
	Opposite    FeatureID // NilFeatureID when the feature has no opposite

	// Owner is the class that declares this feature. Set by the class
	// builder; nil only for free-standing descriptors in tests.
	Owner *Class
}

// Many reports whether the feature can hold more than one value.
func (f *Feature) Many() bool {
	return f.Upper == Unbounded || f.Upper > 1
}

// Classifier is a named element of a package: a Class or an Enum.
type Classifier interface {
	ClassifierName() string
}

// Class describes an entity type: a named set of structural features.
type Class struct {
	Name    string
	Package *Package
	Supers  []*Class

	features []*Feature
	byName   map[string]*Feature
	byID     map[FeatureID]*Feature
}

// NewClass creates an empty class. Features are attached with AddFeature.
func NewClass(name string) *Class {
	return &Class{
		Name:   name,
		byName: make(map[string]*Feature),
		byID:   make(map[FeatureID]*Feature),
	}
}

// ClassifierName implements Classifier.
func (c *Class) ClassifierName() string { return c.Name }

// AddFeature attaches a feature descriptor to the class. A feature with no
// ID is assigned a fresh one. Re-adding a name replaces the earlier entry.
func (c *Class) AddFeature(f *Feature) *Feature {
	if f.ID.IsNil() {
		f.ID = NewFeatureID()
	}
	f.Owner = c
	if old, ok := c.byName[f.Name]; ok {
		delete(c.byID, old.ID)
		for i, g := range c.features {
			if g == old {
				c.features[i] = f
				break
			}
		}
	} else {
		c.features = append(c.features, f)
	}
	c.byName[f.Name] = f
	c.byID[f.ID] = f
	return f
}

// Feature returns the feature declared under name, searching supertypes
// after the class itself. Nil when no such feature exists.
func (c *Class) Feature(name string) *Feature {
	if f, ok := c.byName[name]; ok {
		return f
	}
	for _, s := range c.Supers {
		if f := s.Feature(name); f != nil {
			return f
		}
	}
	return nil
}

// FeatureByID returns the feature with the given identifier, searching
// supertypes after the class itself. Nil when no such feature exists.
func (c *Class) FeatureByID(id FeatureID) *Feature {
	if f, ok := c.byID[id]; ok {
		return f
	}
	for _, s := range c.Supers {
		if f := s.FeatureByID(id); f != nil {
			return f
		}
	}
	return nil
}

// Features returns the features declared directly on the class, in
// declaration order. Supertype features are not included.
func (c *Class) Features() []*Feature {
	out := make([]*Feature, len(c.features))
	copy(out, c.features)
	return out
}

// AllFeatures returns declared features of the class and its supertypes,
// supertypes first, in declaration order.
func (c *Class) AllFeatures() []*Feature {
	var out []*Feature
	for _, s := range c.Supers {
		out = append(out, s.AllFeatures()...)
	}
	return append(out, c.Features()...)
}

// IsKind reports whether c is other or has other among its supertypes.
func (c *Class) IsKind(other *Class) bool {
	if c == other {
		return true
	}
	for _, s := range c.Supers {
		if s.IsKind(other) {
			return true
		}
	}
	return false
}

// Enum describes a named enumeration with ordered literals.
type Enum struct {
	Name     string
	Package  *Package
	Literals []string
}

// ClassifierName implements Classifier.
func (e *Enum) ClassifierName() string { return e.Name }

// Literal reports whether lit is one of the enum's literals.
func (e *Enum) Literal(lit string) bool {
	for _, l := range e.Literals {
		if l == lit {
			return true
		}
	}
	return false
}

// Package is a namespace of classifiers, identified by its namespace URI.
type Package struct {
	Name  string
	NsURI string

	classifiers []Classifier
	byName      map[string]Classifier
}

// NewPackage creates an empty package.
func NewPackage(name, nsURI string) *Package {
	return &Package{
		Name:   name,
		NsURI:  nsURI,
		byName: make(map[string]Classifier),
	}
}

// AddClass attaches a class to the package.
func (p *Package) AddClass(c *Class) *Class {
	c.Package = p
	p.add(c)
	return c
}

// AddEnum attaches an enum to the package.
func (p *Package) AddEnum(e *Enum) *Enum {
	e.Package = p
	p.add(e)
	return e
}

func (p *Package) add(c Classifier) {
	name := c.ClassifierName()
	if _, ok := p.byName[name]; !ok {
		p.classifiers = append(p.classifiers, c)
	}
	p.byName[name] = c
}

// Classifier returns the classifier declared under name, or nil.
func (p *Package) Classifier(name string) Classifier {
	return p.byName[name]
}

// Class returns the class declared under name, or nil when the name is
// absent or names an enum.
func (p *Package) Class(name string) *Class {
	c, _ := p.byName[name].(*Class)
	return c
}

// Enum returns the enum declared under name, or nil.
func (p *Package) Enum(name string) *Enum {
	e, _ := p.byName[name].(*Enum)
	return e
}

// Classifiers returns the package's classifiers in declaration order.
func (p *Package) Classifiers() []Classifier {
	out := make([]Classifier, len(p.classifiers))
	copy(out, p.classifiers)
	return out
}

// Classes returns the package's classes in declaration order.
func (p *Package) Classes() []*Class {
	var out []*Class
	for _, c := range p.classifiers {
		if cl, ok := c.(*Class); ok {
			out = append(out, cl)
		}
	}
	return out
}
