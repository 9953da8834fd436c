package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/testutil"
)

func TestEqual_Scalars(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		a, b model.Value
		want bool
	}{
		{"string equal", model.String("x"), model.String("x"), true},
		{"string differs", model.String("x"), model.String("y"), false},
		{"int equal", model.Int(42), model.Int(42), true},
		{"bool differs", model.Bool(true), model.Bool(false), false},
		{"float equal", model.Float(2.5), model.Float(2.5), true},
		{"time equal across zones", model.Time(now), model.Time(now.In(time.FixedZone("E", 3600))), true},
		{"cross kind never equal", model.Int(1), model.String("1"), false},
		{"both nil", nil, nil, true},
		{"nil vs value", nil, model.Int(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.Equal(tt.a, tt.b))
		})
	}
}

func TestEqual_References(t *testing.T) {
	a := testutil.SequenceID(1)
	b := testutil.SequenceID(2)

	assert.True(t, model.Equal(model.Ref(a), model.Ref(a)))
	assert.False(t, model.Equal(model.Ref(a), model.Ref(b)))
	assert.True(t, model.Equal(model.RefList{a, b}, model.RefList{a, b}))
	assert.False(t, model.Equal(model.RefList{a, b}, model.RefList{b, a}))
	assert.False(t, model.Equal(model.RefList{a}, model.RefList{a, b}))
	assert.False(t, model.Equal(model.Ref(a), model.RefList{a}))
}

func TestEqual_OwnedByIdentity(t *testing.T) {
	id := testutil.SequenceID(3)
	x := model.NewObjectWithID(id, nil)
	y := model.NewObjectWithID(id, nil)
	z := model.NewObject(nil)

	assert.True(t, model.Equal(model.Owned{Object: x}, model.Owned{Object: y}))
	assert.False(t, model.Equal(model.Owned{Object: x}, model.Owned{Object: z}))
	assert.True(t, model.Equal(model.OwnedList{x}, model.OwnedList{y}))
}

func TestEqual_OpaqueFallsBackToDescription(t *testing.T) {
	a := model.Opaque{Kind: "bytes", Repr: "deadbeef"}
	b := model.Opaque{Kind: "bytes", Repr: "deadbeef"}
	c := model.Opaque{Kind: "bytes", Repr: "cafe"}
	d := model.Opaque{Kind: "bigdecimal", Repr: "deadbeef"}

	assert.True(t, model.Equal(a, b))
	assert.False(t, model.Equal(a, c))
	assert.False(t, model.Equal(a, d))
}

func TestRefIDs(t *testing.T) {
	a := testutil.SequenceID(1)
	b := testutil.SequenceID(2)
	obj := model.NewObjectWithID(a, nil)

	assert.Equal(t, []model.ID{a}, model.RefIDs(model.Ref(a)))
	assert.Equal(t, []model.ID{a, b}, model.RefIDs(model.RefList{a, b}))
	assert.Equal(t, []model.ID{a}, model.RefIDs(model.Owned{Object: obj}))
	assert.Equal(t, []model.ID{a}, model.RefIDs(model.OwnedList{obj}))
	assert.Nil(t, model.RefIDs(model.String("not a ref")))
	assert.Nil(t, model.RefIDs(nil))
}
