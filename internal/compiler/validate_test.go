package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelkit/internal/schema"
)

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_CleanMetamodel(t *testing.T) {
	pkg, err := compile(t, librarySrc)
	require.NoError(t, err)
	assert.Empty(t, Validate(pkg))
}

func TestValidate_PackageIdentity(t *testing.T) {
	errs := Validate(schema.NewPackage("", ""))
	assert.ElementsMatch(t, []string{ErrPackageNameEmpty, ErrPackageNsURIEmpty}, codes(errs))
}

func TestValidate_UnknownAttributeType(t *testing.T) {
	pkg := schema.NewPackage("m", "test://m")
	a := pkg.AddClass(schema.NewClass("A"))
	a.AddFeature(&schema.Feature{Name: "x", Type: "quaternion", Upper: 1})

	errs := Validate(pkg)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownAttrType, errs[0].Code)
	assert.Equal(t, "A.x", errs[0].Field)
}

func TestValidate_EnumTypedAttributeIsKnown(t *testing.T) {
	pkg := schema.NewPackage("m", "test://m")
	pkg.AddEnum(&schema.Enum{Name: "Genre", Literals: []string{"novel"}})
	a := pkg.AddClass(schema.NewClass("A"))
	a.AddFeature(&schema.Feature{Name: "genre", Type: "Genre", Upper: 1})

	assert.Empty(t, Validate(pkg))
}

func TestValidate_ContainmentOfUndeclaredClass(t *testing.T) {
	pkg := schema.NewPackage("m", "test://m")
	a := pkg.AddClass(schema.NewClass("A"))
	a.AddFeature(&schema.Feature{Name: "kids", Type: "Missing", Upper: schema.Unbounded, Containment: true})

	errs := Validate(pkg)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownRefType, errs[0].Code)
}

func TestValidate_Bounds(t *testing.T) {
	pkg := schema.NewPackage("m", "test://m")
	a := pkg.AddClass(schema.NewClass("A"))
	a.AddFeature(&schema.Feature{Name: "neg", Type: "string", Lower: -1, Upper: 1})
	a.AddFeature(&schema.Feature{Name: "flip", Type: "string", Lower: 3, Upper: 2})
	a.AddFeature(&schema.Feature{Name: "many", Type: "string", Lower: 2, Upper: schema.Unbounded})

	errs := Validate(pkg)
	assert.ElementsMatch(t, []string{ErrInvalidBounds, ErrInvalidBounds}, codes(errs))
}

func TestValidate_OppositePairing(t *testing.T) {
	t.Run("unresolved", func(t *testing.T) {
		pkg := schema.NewPackage("m", "test://m")
		a := pkg.AddClass(schema.NewClass("A"))
		a.AddFeature(&schema.Feature{Name: "r", Type: "A", Upper: 1, Opposite: schema.NewFeatureID()})

		errs := Validate(pkg)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrOppositeUnresolved, errs[0].Code)
	})

	t.Run("does not point back", func(t *testing.T) {
		pkg := schema.NewPackage("m", "test://m")
		a := pkg.AddClass(schema.NewClass("A"))
		b := pkg.AddClass(schema.NewClass("B"))
		other := b.AddFeature(&schema.Feature{Name: "other", Type: "A", Upper: 1})
		a.AddFeature(&schema.Feature{Name: "r", Type: "B", Upper: 1, Opposite: other.ID})

		errs := Validate(pkg)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrOppositeMismatch, errs[0].Code)
		assert.Equal(t, "A.r", errs[0].Field)
	})

	t.Run("both containment", func(t *testing.T) {
		pkg := schema.NewPackage("m", "test://m")
		a := pkg.AddClass(schema.NewClass("A"))
		b := pkg.AddClass(schema.NewClass("B"))
		r := &schema.Feature{Name: "r", Type: "B", Upper: 1, Containment: true}
		s := &schema.Feature{Name: "s", Type: "A", Upper: 1, Containment: true}
		a.AddFeature(r)
		b.AddFeature(s)
		r.Opposite = s.ID
		s.Opposite = r.ID

		errs := Validate(pkg)
		assert.ElementsMatch(t, []string{ErrOppositeContainment, ErrOppositeContainment}, codes(errs))
	})

	t.Run("self-opposite is legal", func(t *testing.T) {
		pkg := schema.NewPackage("m", "test://m")
		n := pkg.AddClass(schema.NewClass("Node"))
		linked := n.AddFeature(&schema.Feature{Name: "linked", Type: "Node", Upper: schema.Unbounded})
		linked.Opposite = linked.ID

		assert.Empty(t, Validate(pkg))
	})
}

func TestValidate_InheritanceCycle(t *testing.T) {
	pkg := schema.NewPackage("m", "test://m")
	a := pkg.AddClass(schema.NewClass("A"))
	b := pkg.AddClass(schema.NewClass("B"))
	a.Supers = append(a.Supers, b)
	b.Supers = append(b.Supers, a)

	errs := Validate(pkg)
	assert.ElementsMatch(t, []string{ErrInheritanceCycle, ErrInheritanceCycle}, codes(errs))
}

func TestValidate_CompiledMetamodelWithDanglingOpposite(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
metamodel: {
	name: "m", nsURI: "test://m"
	classes: {
		A: {references: {r: {type: "A", opposite: "missing"}}}
	}
}
`)
	require.NoError(t, v.Err())
	pkg, err := CompileMetamodel(v.LookupPath(cue.ParsePath("metamodel")))
	require.NoError(t, err)

	// The compiler leaves the opposite nil, so validation sees an
	// ordinary reference with no pairing problem.
	assert.Empty(t, Validate(pkg))
}
