package compiler

import (
	"fmt"

	"github.com/modelkit/modelkit/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrPackageNameEmpty    = "E101" // package name is required
	ErrPackageNsURIEmpty   = "E102" // namespace URI is required
	ErrUnknownAttrType     = "E103" // attribute type is not a builtin or declared enum
	ErrUnknownRefType      = "E104" // reference type is not a declared class
	ErrInvalidBounds       = "E105" // lower/upper bounds are inconsistent
	ErrOppositeUnresolved  = "E106" // declared opposite does not exist
	ErrOppositeMismatch    = "E107" // opposite pair does not point back
	ErrOppositeContainment = "E108" // both sides of an opposite are containment
	ErrInheritanceCycle    = "E109" // class inherits from itself
)

// builtinTypes are the attribute type names the codecs understand without
// an enum declaration.
var builtinTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"float":  true,
	"double": true,
	"date":   true,
}

// ValidationError represents a metamodel validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled metamodel for semantic problems the shape
// parser cannot see. Returns all findings (does not fail fast); an empty
// slice means the metamodel is usable.
//
// This is the opt-in validation pass: the runtime stores and resolves
// whatever it is given, so a metamodel with findings still loads.
func Validate(pkg *schema.Package) []ValidationError {
	var errs []ValidationError

	if pkg.Name == "" {
		errs = append(errs, ValidationError{
			Field: "name", Message: "package name is required", Code: ErrPackageNameEmpty,
		})
	}
	if pkg.NsURI == "" {
		errs = append(errs, ValidationError{
			Field: "nsURI", Message: "namespace URI is required", Code: ErrPackageNsURIEmpty,
		})
	}

	for _, class := range pkg.Classes() {
		if cycles(class, nil) {
			errs = append(errs, ValidationError{
				Field:   class.Name,
				Message: "inheritance cycle through " + class.Name,
				Code:    ErrInheritanceCycle,
			})
			// Feature lookups recurse through supers; skip the rest for
			// this class rather than looping.
			continue
		}
		for _, f := range class.Features() {
			errs = append(errs, validateFeature(pkg, class, f)...)
		}
	}
	return errs
}

func validateFeature(pkg *schema.Package, class *schema.Class, f *schema.Feature) []ValidationError {
	var errs []ValidationError
	field := class.Name + "." + f.Name

	target := pkg.Class(f.Type)
	isRef := target != nil || f.Containment || !f.Opposite.IsNil()

	if isRef {
		if target == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("reference type %q is not a declared class", f.Type),
				Code:    ErrUnknownRefType,
			})
		}
	} else if !builtinTypes[f.Type] && pkg.Enum(f.Type) == nil {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("attribute type %q is not a builtin type or declared enum", f.Type),
			Code:    ErrUnknownAttrType,
		})
	}

	if f.Lower < 0 || (f.Upper != schema.Unbounded && f.Upper < f.Lower) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid bounds %d..%d", f.Lower, f.Upper),
			Code:    ErrInvalidBounds,
		})
	}

	if !f.Opposite.IsNil() && target != nil {
		opp := target.FeatureByID(f.Opposite)
		switch {
		case opp == nil:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "declared opposite does not exist on " + f.Type,
				Code:    ErrOppositeUnresolved,
			})
		case opp.Opposite != f.ID:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("opposite %s.%s does not point back", f.Type, opp.Name),
				Code:    ErrOppositeMismatch,
			})
		case f.Containment && opp.Containment:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "both sides of an opposite pair are containment",
				Code:    ErrOppositeContainment,
			})
		}
	}
	return errs
}

// cycles reports whether class appears in its own supertype closure.
func cycles(class *schema.Class, seen []*schema.Class) bool {
	for _, s := range seen {
		if s == class {
			return true
		}
	}
	seen = append(seen, class)
	for _, s := range class.Supers {
		if cycles(s, seen) {
			return true
		}
	}
	return false
}
