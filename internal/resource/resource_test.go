package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
	"github.com/modelkit/modelkit/internal/testutil"
)

func TestResource_AddRemoveLifecycle(t *testing.T) {
	r := resource.NewResource("test://lib.json")
	o := model.NewObject(nil)

	before := r.Len()
	assert.True(t, r.Add(o))
	assert.False(t, r.Add(o), "re-adding a present identifier is a no-op failure")
	assert.True(t, r.Remove(o))
	assert.False(t, r.Remove(o))
	assert.Equal(t, before, r.Len())
}

func TestResource_AddDuplicateIdentifier(t *testing.T) {
	r := resource.NewResource("test://lib.json")
	id := testutil.SequenceID(1)

	assert.True(t, r.Add(model.NewObjectWithID(id, nil)))
	assert.False(t, r.Add(model.NewObjectWithID(id, nil)))
	assert.Equal(t, 1, r.Len())
}

func TestResource_ContainsAndResolve(t *testing.T) {
	r := resource.NewResource("test://lib.json")
	o := model.NewObject(nil)
	r.Add(o)

	assert.True(t, r.Contains(o.ID()))
	assert.Same(t, o, r.Resolve(o.ID()))
	assert.Nil(t, r.Resolve(testutil.SequenceID(99)))
	assert.False(t, r.Contains(testutil.SequenceID(99)))
}

func TestResource_RemoveIsShallow(t *testing.T) {
	pkg := testutil.LibraryPackage()
	r := resource.NewResource("test://lib.json")

	lib := model.NewObject(pkg.Class("Library"))
	book := model.NewObject(pkg.Class("Book"))
	r.Add(lib)
	r.Add(book)
	lib.Set("items", model.RefList{book.ID()})

	require.True(t, r.Remove(lib))
	// Contained child stays; cascading is the caller's policy.
	assert.True(t, r.Contains(book.ID()))
}

func TestResource_RootObjectsExcludeContained(t *testing.T) {
	pkg := testutil.LibraryPackage()
	r := resource.NewResource("test://lib.json")

	lib := model.NewObject(pkg.Class("Library"))
	book := model.NewObject(pkg.Class("Book"))
	writer := model.NewObject(pkg.Class("Writer"))
	r.Add(lib)
	r.Add(book)
	r.Add(writer)

	// items is a containment feature; books is a plain reference.
	lib.Set("items", model.RefList{book.ID()})
	writer.Set("books", model.RefList{book.ID()})

	roots := r.RootObjects()
	assert.Equal(t, []*model.Object{lib, writer}, roots)
	assert.Len(t, r.AllObjects(), 3, "contained objects stay in getAllObjects")
}

func TestResource_RootObjectsOwnedValues(t *testing.T) {
	r := resource.NewResource("test://lib.json")

	parent := model.NewObject(nil)
	child := model.NewObject(nil)
	r.Add(parent)
	r.Add(child)

	// Owned values are intrinsically containing, schema or not.
	parent.Set("parts", model.OwnedList{child})

	assert.Equal(t, []*model.Object{parent}, r.RootObjects())
}

func TestResource_ContainmentTargetOutsideResourceIgnored(t *testing.T) {
	pkg := testutil.LibraryPackage()
	r := resource.NewResource("test://lib.json")

	lib := model.NewObject(pkg.Class("Library"))
	r.Add(lib)
	lib.Set("items", model.RefList{testutil.SequenceID(42)})

	assert.Equal(t, []*model.Object{lib}, r.RootObjects())
}

func TestResource_AllInstancesOf(t *testing.T) {
	pkg := testutil.LibraryPackage()
	r := resource.NewResource("test://lib.json")

	b1 := model.NewObject(pkg.Class("Book"))
	w := model.NewObject(pkg.Class("Writer"))
	b2 := model.NewObject(pkg.Class("Book"))
	r.Add(b1)
	r.Add(w)
	r.Add(b2)

	assert.Equal(t, []*model.Object{b1, b2}, r.AllInstancesOf(pkg.Class("Book")))
	assert.Empty(t, r.AllInstancesOf(pkg.Class("Library")))
	assert.Nil(t, r.AllInstancesOf(nil))
}

func TestResource_ClearKeepsResourceUsable(t *testing.T) {
	r := resource.NewResource("test://lib.json")
	r.Add(model.NewObject(nil))

	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Add(model.NewObject(nil)))
	assert.Equal(t, 1, r.Len())
}

func TestResource_InsertionOrderPreserved(t *testing.T) {
	r := resource.NewResource("test://lib.json")
	var want []*model.Object
	for i := 0; i < 5; i++ {
		o := model.NewObjectWithID(testutil.SequenceID(uint64(i+1)), nil)
		r.Add(o)
		want = append(want, o)
	}
	assert.Equal(t, want, r.AllObjects())
}

func TestResource_MutatorSynchronisesOpposites(t *testing.T) {
	reg := testutil.LibraryRegistry()
	pkg := reg.Lookup(testutil.LibraryNsURI)
	s := resource.NewSet(reg)
	r := s.CreateResource("test://lib.json")

	writer := model.NewObject(pkg.Class("Writer"))
	book := model.NewObject(pkg.Class("Book"))
	r.Add(writer)
	r.Add(book)

	mut := r.Mutator()
	mut.Set(writer, pkg.Class("Writer").Feature("books"), model.RefList{book.ID()})

	assert.Equal(t, []model.ID{writer.ID()}, model.RefIDs(book.Get("authors")))

	mut.Remove(writer, pkg.Class("Writer").Feature("books"), book.ID())
	assert.Nil(t, book.Get("authors"))
	assert.Nil(t, writer.Get("books"))
}
