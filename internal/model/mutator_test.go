package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/schema"
	"github.com/modelkit/modelkit/internal/testutil"
)

// mutatorFixture wires a library metamodel, a map-backed resolver, and a
// mutator around a writer and two books.
type mutatorFixture struct {
	mut     *model.Mutator
	writer  *model.Object
	book    *model.Object
	book2   *model.Object
	books   *schema.Feature
	authors *schema.Feature
}

func newMutatorFixture(t *testing.T) *mutatorFixture {
	t.Helper()
	reg := testutil.LibraryRegistry()
	pkg := reg.Lookup(testutil.LibraryNsURI)
	require.NotNil(t, pkg)

	writer := model.NewObject(pkg.Class("Writer"))
	book := model.NewObject(pkg.Class("Book"))
	book2 := model.NewObject(pkg.Class("Book"))

	objects := map[model.ID]*model.Object{
		writer.ID(): writer,
		book.ID():   book,
		book2.ID():  book2,
	}
	mut := model.NewMutator(reg, func(id model.ID) *model.Object {
		return objects[id]
	})

	return &mutatorFixture{
		mut:     mut,
		writer:  writer,
		book:    book,
		book2:   book2,
		books:   pkg.Class("Writer").Feature("books"),
		authors: pkg.Class("Book").Feature("authors"),
	}
}

func refs(v model.Value) []model.ID {
	return model.RefIDs(v)
}

func TestMutator_SetMirrorsIntoOpposite(t *testing.T) {
	fx := newMutatorFixture(t)

	fx.mut.Set(fx.writer, fx.books, model.RefList{fx.book.ID()})

	assert.Equal(t, []model.ID{fx.book.ID()}, refs(fx.writer.Get("books")))
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book.Get("authors")))
}

func TestMutator_RemoveMirrorsRemoval(t *testing.T) {
	fx := newMutatorFixture(t)
	fx.mut.Set(fx.writer, fx.books, model.RefList{fx.book.ID(), fx.book2.ID()})

	removed := fx.mut.Remove(fx.writer, fx.books, fx.book.ID())

	assert.True(t, removed)
	assert.Equal(t, []model.ID{fx.book2.ID()}, refs(fx.writer.Get("books")))
	assert.Nil(t, fx.book.Get("authors"))
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book2.Get("authors")))
}

func TestMutator_RemoveAbsentTarget(t *testing.T) {
	fx := newMutatorFixture(t)

	assert.False(t, fx.mut.Remove(fx.writer, fx.books, fx.book.ID()))
}

func TestMutator_AddIsIdempotent(t *testing.T) {
	fx := newMutatorFixture(t)

	fx.mut.Add(fx.writer, fx.books, fx.book.ID())
	fx.mut.Add(fx.writer, fx.books, fx.book.ID())

	assert.Equal(t, []model.ID{fx.book.ID()}, refs(fx.writer.Get("books")))
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book.Get("authors")))
}

func TestMutator_AddPromotesScalarSlot(t *testing.T) {
	fx := newMutatorFixture(t)
	// A scalar write into the many-valued slot, mirrored as Set does it.
	fx.mut.Set(fx.writer, fx.books, model.Ref(fx.book.ID()))
	require.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book.Get("authors")))

	fx.mut.Add(fx.writer, fx.books, fx.book2.ID())

	assert.Equal(t, []model.ID{fx.book.ID(), fx.book2.ID()}, refs(fx.writer.Get("books")),
		"existing scalar entry must survive the append")
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book.Get("authors")),
		"retained target keeps its mirror")
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book2.Get("authors")))
}

func TestMutator_RemoveScalarSlot(t *testing.T) {
	fx := newMutatorFixture(t)
	fx.mut.Set(fx.writer, fx.books, model.Ref(fx.book.ID()))

	removed := fx.mut.Remove(fx.writer, fx.books, fx.book.ID())

	assert.True(t, removed)
	assert.False(t, fx.writer.IsSet("books"))
	assert.Nil(t, fx.book.Get("authors"))
}

func TestMutator_HookPromotesScalarOppositeSlot(t *testing.T) {
	fx := newMutatorFixture(t)
	// The book's many-valued authors slot holds a scalar mirror.
	fx.mut.Set(fx.book, fx.authors, model.Ref(fx.writer.ID()))

	writer2 := model.NewObject(fx.writer.Class())
	fx.mut.Add(writer2, fx.books, fx.book.ID())

	assert.Equal(t, []model.ID{fx.writer.ID(), writer2.ID()}, refs(fx.book.Get("authors")),
		"scalar mirror must be promoted, not replaced")
}

func TestMutator_RepeatedSetNoDuplicates(t *testing.T) {
	fx := newMutatorFixture(t)
	v := model.RefList{fx.book.ID()}

	fx.mut.Set(fx.writer, fx.books, v)
	fx.mut.Set(fx.writer, fx.books, v)

	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book.Get("authors")))
}

func TestMutator_SetReplacementUnhooksLeavers(t *testing.T) {
	fx := newMutatorFixture(t)
	fx.mut.Set(fx.writer, fx.books, model.RefList{fx.book.ID()})

	fx.mut.Set(fx.writer, fx.books, model.RefList{fx.book2.ID()})

	assert.Nil(t, fx.book.Get("authors"))
	assert.Equal(t, []model.ID{fx.writer.ID()}, refs(fx.book2.Get("authors")))
}

func TestMutator_UnsetClearsAllMirrors(t *testing.T) {
	fx := newMutatorFixture(t)
	fx.mut.Set(fx.writer, fx.books, model.RefList{fx.book.ID(), fx.book2.ID()})

	fx.mut.Unset(fx.writer, fx.books)

	assert.False(t, fx.writer.IsSet("books"))
	assert.Nil(t, fx.book.Get("authors"))
	assert.Nil(t, fx.book2.Get("authors"))
}

func TestMutator_ClearingUnmirroredValueIsNoOp(t *testing.T) {
	fx := newMutatorFixture(t)
	// Forward entry written raw, mirror never established.
	fx.writer.Set("books", model.RefList{fx.book.ID()})

	fx.mut.Unset(fx.writer, fx.books)

	assert.False(t, fx.writer.IsSet("books"))
	assert.Nil(t, fx.book.Get("authors"))
}

func TestMutator_DanglingTargetStillWritesForward(t *testing.T) {
	fx := newMutatorFixture(t)
	ghost := testutil.SequenceID(99)

	fx.mut.Set(fx.writer, fx.books, model.RefList{ghost})

	assert.Equal(t, []model.ID{ghost}, refs(fx.writer.Get("books")))
}

func TestMutator_SelfReferentialOpposite(t *testing.T) {
	pkg := schema.NewPackage("graph", "http://modelkit.example/graph")
	node := pkg.AddClass(schema.NewClass("Node"))
	linked := node.AddFeature(&schema.Feature{
		Name:  "linked",
		Type:  "Node",
		Upper: schema.Unbounded,
	})
	linked.Opposite = linked.ID

	reg := schema.NewRegistry()
	reg.Register(pkg)

	a := model.NewObject(node)
	b := model.NewObject(node)
	objects := map[model.ID]*model.Object{a.ID(): a, b.ID(): b}
	mut := model.NewMutator(reg, func(id model.ID) *model.Object {
		return objects[id]
	})

	mut.Add(a, linked, b.ID())
	assert.Equal(t, []model.ID{b.ID()}, refs(a.Get("linked")))
	assert.Equal(t, []model.ID{a.ID()}, refs(b.Get("linked")))

	// A node linking itself must not duplicate its own entry.
	mut.Add(a, linked, a.ID())
	assert.Equal(t, []model.ID{b.ID(), a.ID()}, refs(a.Get("linked")))
}

func TestMutator_SingleValuedOppositeSteal(t *testing.T) {
	pkg := schema.NewPackage("org", "http://modelkit.example/org")
	dept := pkg.AddClass(schema.NewClass("Department"))
	emp := pkg.AddClass(schema.NewClass("Employee"))
	head := dept.AddFeature(&schema.Feature{Name: "head", Type: "Employee", Upper: 1})
	leads := emp.AddFeature(&schema.Feature{Name: "leads", Type: "Department", Upper: 1})
	head.Opposite = leads.ID
	leads.Opposite = head.ID

	reg := schema.NewRegistry()
	reg.Register(pkg)

	d1 := model.NewObject(dept)
	d2 := model.NewObject(dept)
	e := model.NewObject(emp)
	objects := map[model.ID]*model.Object{d1.ID(): d1, d2.ID(): d2, e.ID(): e}
	mut := model.NewMutator(reg, func(id model.ID) *model.Object {
		return objects[id]
	})

	mut.Set(d1, head, model.Ref(e.ID()))
	require.Equal(t, []model.ID{d1.ID()}, refs(e.Get("leads")))

	// d2 takes the same head; d1 loses its forward entry.
	mut.Set(d2, head, model.Ref(e.ID()))
	assert.Equal(t, []model.ID{d2.ID()}, refs(e.Get("leads")))
	assert.Nil(t, d1.Get("head"))
}
