package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_Display(t *testing.T) {
	i32 := NewIntType(32)
	assert.Equal(t, "int<32>", i32.Display())
	assert.Equal(t, "ref<int<32>>", NewRefType(i32).Display())
	assert.Equal(t, "array<int<32> 4>", NewArrayType(i32, 4).Display())
	assert.Equal(t, "void", NewVoidType().Display())
	assert.Equal(t, "struct<list.node>", NewStructType("list.node").Display())
}

func TestTagTable_DeclareThenFill(t *testing.T) {
	tbl := NewTagTable[StructBody]()

	body := tbl.Declare("t1")
	require.NotNil(t, body)
	assert.False(t, tbl.Filled("t1"))

	// Declaring again returns the same pointer rather than allocating anew,
	// which is what lets a cyclic reference close over the tag before the
	// fields referencing it are known.
	again := tbl.Declare("t1")
	assert.Same(t, body, again)

	err := tbl.Fill("t1", StructBody{Fields: []StructField{{Type: NewIntType(64)}}})
	require.NoError(t, err)
	assert.True(t, tbl.Filled("t1"))

	got, err := tbl.Lookup("t1")
	require.NoError(t, err)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, uint32(64), got.Fields[0].Type.IntWidth)
}

func TestTagTable_FillWithoutDeclare(t *testing.T) {
	tbl := NewTagTable[StructBody]()
	err := tbl.Fill("t2", StructBody{Fields: nil})
	require.NoError(t, err)
	assert.True(t, tbl.Filled("t2"))
}

func TestTagTable_DoubleFillIsRejected(t *testing.T) {
	tbl := NewTagTable[StructBody]()
	require.NoError(t, tbl.Fill("t3", StructBody{}))

	err := tbl.Fill("t3", StructBody{})
	require.Error(t, err)
	var redefined *ErrTagRedefined
	require.ErrorAs(t, err, &redefined)
	assert.Equal(t, "t3", redefined.Tag)
}

func TestTagTable_LookupUnknownTag(t *testing.T) {
	tbl := NewTagTable[HybridBody]()
	_, err := tbl.Lookup("nope")
	require.Error(t, err)
	var unknown *ErrUnknownTag
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Tag)
}

func TestHybridBody_FixedAndVarParts(t *testing.T) {
	tbl := NewTagTable[HybridBody]()
	tbl.Declare("hybrid.buf")
	err := tbl.Fill("hybrid.buf", HybridBody{
		Fixed: []StructField{{Type: NewIntType(64)}},
		Var:   NewIntType(8),
	})
	require.NoError(t, err)

	got, err := tbl.Lookup("hybrid.buf")
	require.NoError(t, err)
	assert.Len(t, got.Fixed, 1)
	assert.Equal(t, uint32(8), got.Var.IntWidth)
}
