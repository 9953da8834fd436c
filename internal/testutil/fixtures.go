package testutil

import "github.com/modelkit/modelkit/internal/schema"

// LibraryNsURI is the namespace URI of the fixture metamodel.
const LibraryNsURI = "http://modelkit.example/library"

// LibraryPackage builds the fixture metamodel used throughout the tests:
//
//	Writer: name (string), books (Book 0..*, containment=false, opposite authors)
//	Book:   title (string), pages (int), authors (Writer 0..*, opposite books)
//	Library: name (string), items (Book 0..*, containment)
//
// Feature identifiers are freshly assigned per call, so two calls produce
// independent metamodels.
func LibraryPackage() *schema.Package {
	pkg := schema.NewPackage("library", LibraryNsURI)

	writer := pkg.AddClass(schema.NewClass("Writer"))
	book := pkg.AddClass(schema.NewClass("Book"))
	library := pkg.AddClass(schema.NewClass("Library"))

	writer.AddFeature(&schema.Feature{Name: "name", Type: "string", Upper: 1})
	books := writer.AddFeature(&schema.Feature{
		Name:  "books",
		Type:  "Book",
		Upper: schema.Unbounded,
	})

	book.AddFeature(&schema.Feature{Name: "title", Type: "string", Upper: 1})
	book.AddFeature(&schema.Feature{Name: "pages", Type: "int", Upper: 1})
	authors := book.AddFeature(&schema.Feature{
		Name:  "authors",
		Type:  "Writer",
		Upper: schema.Unbounded,
	})

	books.Opposite = authors.ID
	authors.Opposite = books.ID

	library.AddFeature(&schema.Feature{Name: "name", Type: "string", Upper: 1})
	library.AddFeature(&schema.Feature{
		Name:        "items",
		Type:        "Book",
		Upper:       schema.Unbounded,
		Containment: true,
	})

	return pkg
}

// LibraryRegistry returns a registry with the fixture metamodel registered.
func LibraryRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Register(LibraryPackage())
	return reg
}
