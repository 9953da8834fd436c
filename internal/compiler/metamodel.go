// Package compiler turns CUE metamodel definitions into schema packages.
// It uses the CUE SDK's Go API directly (not a CLI subprocess) and reports
// positioned errors so editors can jump to the offending field.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/modelkit/modelkit/internal/schema"
)

// CompileMetamodel parses a CUE value into a schema package.
//
// The CUE value should be the metamodel struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`metamodel: { name: "library", ... }`)
//	pkg, err := CompileMetamodel(v.LookupPath(cue.ParsePath("metamodel")))
//
// Expected shape:
//
//	metamodel: {
//		name:  "library"
//		nsURI: "http://example.org/library"
//		classes: {
//			Writer: {
//				supers?: [...string]
//				attributes?: {name: "string"}
//				references?: {
//					books: {type: "Book", upper: -1, opposite: "authors", ...}
//				}
//			}
//		}
//		enums?: {Genre: ["novel", "essay"]}
//	}
//
// Reference opposites are named by the feature name on the referenced
// class and linked after all classes are parsed. Compilation checks shape
// only; semantic checks (unknown types, unpaired opposites, inheritance
// cycles) are the Validate pass.
func CompileMetamodel(v cue.Value) (*schema.Package, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	nsURI, err := requiredString(v, "nsURI")
	if err != nil {
		return nil, err
	}
	pkg := schema.NewPackage(name, nsURI)

	if err := parseEnums(v, pkg); err != nil {
		return nil, err
	}

	classesVal := v.LookupPath(cue.ParsePath("classes"))
	if !classesVal.Exists() {
		return nil, &CompileError{
			Field:   "classes",
			Message: "classes is required",
			Pos:     v.Pos(),
		}
	}

	// First pass: declare every class so references and supers can link by
	// name regardless of declaration order.
	type pendingRef struct {
		class *schema.Class
		val   cue.Value
	}
	type pendingSupers struct {
		class *schema.Class
		names []string
		pos   token.Pos
	}
	var refs []pendingRef
	var supers []pendingSupers

	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		className := iter.Label()
		classVal := iter.Value()
		class := pkg.AddClass(schema.NewClass(className))

		if names, pos, err := parseSupers(classVal); err != nil {
			return nil, err
		} else if len(names) > 0 {
			supers = append(supers, pendingSupers{class: class, names: names, pos: pos})
		}

		if err := parseAttributes(classVal, class); err != nil {
			return nil, err
		}
		if rv := classVal.LookupPath(cue.ParsePath("references")); rv.Exists() {
			refs = append(refs, pendingRef{class: class, val: rv})
		}
	}

	// Second pass: supertypes, then references with opposite linking.
	for _, p := range supers {
		for _, superName := range p.names {
			super := pkg.Class(superName)
			if super == nil {
				return nil, &CompileError{
					Field:   p.class.Name + ".supers",
					Message: fmt.Sprintf("unknown supertype %q", superName),
					Pos:     p.pos,
				}
			}
			p.class.Supers = append(p.class.Supers, super)
		}
	}
	opposites := make(map[*schema.Feature]string)
	for _, p := range refs {
		if err := parseReferences(p.val, p.class, opposites); err != nil {
			return nil, err
		}
	}
	linkOpposites(pkg, opposites)

	return pkg, nil
}

// linkOpposites resolves opposite names recorded during reference parsing
// into feature identifiers. Unresolvable names are left nil here and
// reported by Validate, so a partially-built metamodel still loads.
func linkOpposites(pkg *schema.Package, opposites map[*schema.Feature]string) {
	for f, oppName := range opposites {
		target := pkg.Class(f.Type)
		if target == nil {
			continue
		}
		opp := target.Feature(oppName)
		if opp == nil {
			continue
		}
		f.Opposite = opp.ID
	}
}

func parseSupers(v cue.Value) ([]string, token.Pos, error) {
	sv := v.LookupPath(cue.ParsePath("supers"))
	if !sv.Exists() {
		return nil, token.NoPos, nil
	}
	iter, err := sv.List()
	if err != nil {
		return nil, token.NoPos, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, token.NoPos, formatCUEError(err)
		}
		names = append(names, name)
	}
	return names, sv.Pos(), nil
}

// parseAttributes reads `attributes: {fieldName: "typeName"}`.
// Attributes are always single-valued.
func parseAttributes(v cue.Value, class *schema.Class) error {
	av := v.LookupPath(cue.ParsePath("attributes"))
	if !av.Exists() {
		return nil
	}
	iter, err := av.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		attrName := iter.Label()
		typeName, err := iter.Value().String()
		if err != nil {
			return &CompileError{
				Field:   class.Name + "." + attrName,
				Message: "attribute type must be a string type name",
				Pos:     iter.Value().Pos(),
			}
		}
		class.AddFeature(&schema.Feature{
			Name:  attrName,
			Type:  typeName,
			Upper: 1,
		})
	}
	return nil
}

// parseReferences reads the references struct of one class and records
// declared opposite names for the linking pass.
func parseReferences(v cue.Value, class *schema.Class, opposites map[*schema.Feature]string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		refName := iter.Label()
		refVal := iter.Value()
		field := class.Name + "." + refName

		typeName, err := requiredString(refVal, "type")
		if err != nil {
			return &CompileError{
				Field:   field,
				Message: "reference requires a 'type' field naming a class",
				Pos:     refVal.Pos(),
			}
		}

		f := &schema.Feature{Name: refName, Type: typeName, Upper: 1}

		if f.Lower, err = optionalInt(refVal, "lower", 0); err != nil {
			return &CompileError{Field: field + ".lower", Message: err.Error(), Pos: refVal.Pos()}
		}
		if f.Upper, err = optionalInt(refVal, "upper", 1); err != nil {
			return &CompileError{Field: field + ".upper", Message: err.Error(), Pos: refVal.Pos()}
		}
		if f.Containment, err = optionalBool(refVal, "containment", false); err != nil {
			return &CompileError{Field: field + ".containment", Message: err.Error(), Pos: refVal.Pos()}
		}

		oppVal := refVal.LookupPath(cue.ParsePath("opposite"))
		if oppVal.Exists() {
			oppName, err := oppVal.String()
			if err != nil {
				return &CompileError{
					Field:   field + ".opposite",
					Message: "opposite must be a feature name on the referenced class",
					Pos:     oppVal.Pos(),
				}
			}
			opposites[f] = oppName
		}

		class.AddFeature(f)
	}
	return nil
}

func parseEnums(v cue.Value, pkg *schema.Package) error {
	ev := v.LookupPath(cue.ParsePath("enums"))
	if !ev.Exists() {
		return nil
	}
	iter, err := ev.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		enumName := iter.Label()
		litIter, err := iter.Value().List()
		if err != nil {
			return &CompileError{
				Field:   enumName,
				Message: "enum must be a list of literal strings",
				Pos:     iter.Value().Pos(),
			}
		}
		enum := &schema.Enum{Name: enumName}
		for litIter.Next() {
			lit, err := litIter.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			enum.Literals = append(enum.Literals, lit)
		}
		pkg.AddEnum(enum)
	}
	return nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string, def int) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	return int(n), nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
