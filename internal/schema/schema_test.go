package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelkit/internal/schema"
)

func buildLibrary() *schema.Package {
	pkg := schema.NewPackage("library", "http://example.org/library")

	named := pkg.AddClass(schema.NewClass("Named"))
	named.AddFeature(&schema.Feature{Name: "name", Type: "string", Upper: 1})

	writer := pkg.AddClass(schema.NewClass("Writer"))
	writer.Supers = []*schema.Class{named}
	books := writer.AddFeature(&schema.Feature{Name: "books", Type: "Book", Upper: schema.Unbounded})

	book := pkg.AddClass(schema.NewClass("Book"))
	authors := book.AddFeature(&schema.Feature{Name: "authors", Type: "Writer", Upper: schema.Unbounded})

	books.Opposite = authors.ID
	authors.Opposite = books.ID

	pkg.AddEnum(&schema.Enum{Name: "Genre", Literals: []string{"novel", "essay"}})
	return pkg
}

func TestClass_FeatureLookupThroughSupers(t *testing.T) {
	pkg := buildLibrary()
	writer := pkg.Class("Writer")

	require.NotNil(t, writer.Feature("books"))
	require.NotNil(t, writer.Feature("name"), "supertype feature should resolve")
	assert.Nil(t, writer.Feature("authors"))

	name := writer.Feature("name")
	assert.Equal(t, name, writer.FeatureByID(name.ID))

	// Declared-only vs closure.
	assert.Len(t, writer.Features(), 1)
	assert.Len(t, writer.AllFeatures(), 2)
}

func TestClass_AddFeatureReplacesByName(t *testing.T) {
	c := schema.NewClass("Thing")
	old := c.AddFeature(&schema.Feature{Name: "size", Type: "int", Upper: 1})
	repl := c.AddFeature(&schema.Feature{Name: "size", Type: "float", Upper: 1})

	assert.Len(t, c.Features(), 1)
	assert.Equal(t, repl, c.Feature("size"))
	assert.Nil(t, c.FeatureByID(old.ID), "replaced feature's id should be dropped")
}

func TestClass_IsKind(t *testing.T) {
	pkg := buildLibrary()
	writer := pkg.Class("Writer")
	named := pkg.Class("Named")
	book := pkg.Class("Book")

	assert.True(t, writer.IsKind(writer))
	assert.True(t, writer.IsKind(named))
	assert.False(t, named.IsKind(writer))
	assert.False(t, writer.IsKind(book))
}

func TestFeature_Many(t *testing.T) {
	single := &schema.Feature{Name: "a", Upper: 1}
	bounded := &schema.Feature{Name: "b", Upper: 3}
	unbounded := &schema.Feature{Name: "c", Upper: schema.Unbounded}

	assert.False(t, single.Many())
	assert.True(t, bounded.Many())
	assert.True(t, unbounded.Many())
}

func TestPackage_ClassifierKinds(t *testing.T) {
	pkg := buildLibrary()

	assert.NotNil(t, pkg.Class("Book"))
	assert.Nil(t, pkg.Class("Genre"), "enum name should not resolve as class")
	require.NotNil(t, pkg.Enum("Genre"))
	assert.True(t, pkg.Enum("Genre").Literal("novel"))
	assert.False(t, pkg.Enum("Genre").Literal("haiku"))

	assert.Len(t, pkg.Classes(), 3)
	assert.Len(t, pkg.Classifiers(), 4)
}

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	reg := schema.NewRegistry()
	pkg := buildLibrary()

	reg.Register(pkg)
	assert.Equal(t, pkg, reg.Lookup(pkg.NsURI))
	assert.Nil(t, reg.Lookup("http://example.org/other"))

	// Re-registering the same URI replaces in place.
	repl := schema.NewPackage("library2", pkg.NsURI)
	reg.Register(repl)
	assert.Equal(t, repl, reg.Lookup(pkg.NsURI))
	assert.Len(t, reg.Packages(), 1)

	assert.True(t, reg.Unregister(pkg.NsURI))
	assert.False(t, reg.Unregister(pkg.NsURI))
	assert.Nil(t, reg.Lookup(pkg.NsURI))
}

func TestRegistry_IgnoresUnidentifiedPackages(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(nil)
	reg.Register(schema.NewPackage("anon", ""))
	assert.Empty(t, reg.Packages())
}

func TestRegistry_ResolveOpposite(t *testing.T) {
	reg := schema.NewRegistry()
	pkg := buildLibrary()
	reg.Register(pkg)

	books := pkg.Class("Writer").Feature("books")
	authors := pkg.Class("Book").Feature("authors")

	assert.Equal(t, authors, reg.ResolveOpposite(books))
	assert.Equal(t, books, reg.ResolveOpposite(authors))
	assert.Nil(t, reg.ResolveOpposite(pkg.Class("Named").Feature("name")))

	// Self-paired feature resolves to itself without consulting the index.
	self := &schema.Feature{Name: "linked", Type: "Node", Upper: schema.Unbounded}
	self.ID = schema.NewFeatureID()
	self.Opposite = self.ID
	assert.Equal(t, self, schema.NewRegistry().ResolveOpposite(self))
}
