package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/ir"
)

func TestGetBackendTypeInfo_Scalars(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		name  string
		typ   *ir.Type
		size  uint64
		align uint64
	}{
		{"int8", ir.NewIntType(8), 1, 1},
		{"int32", ir.NewIntType(32), 4, 4},
		{"int64", ir.NewIntType(64), 8, 8},
		{"float", ir.NewFloatType(), 4, 4},
		{"double", ir.NewDoubleType(), 8, 8},
		{"ref", ir.NewRefType(ir.NewIntType(32)), 8, 8},
		{"void", ir.NewVoidType(), 0, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id := r.NextID()
			require.NoError(t, r.DeclareType(id, c.typ))
			info := r.GetBackendTypeInfo(id)
			assert.Equal(t, c.size, info.Size, "size")
			assert.Equal(t, c.align, info.Align, "align")
		})
	}
}

func TestGetBackendTypeInfo_Array(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewArrayType(ir.NewIntType(32), 4)))

	info := r.GetBackendTypeInfo(id)
	assert.Equal(t, uint64(16), info.Size)
	assert.Equal(t, uint64(4), info.Align)
}

func TestGetBackendTypeInfo_StructPadsToAlignment(t *testing.T) {
	r := NewRegistry()
	tag := "test.struct.pad"
	ir.StructTagMap.Declare(tag)
	require.NoError(t, ir.StructTagMap.Fill(tag, ir.StructBody{
		Fields: []ir.StructField{
			{Type: ir.NewIntType(8)},
			{Type: ir.NewIntType(64)},
		},
	}))

	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewStructType(tag)))
	info := r.GetBackendTypeInfo(id)

	// field 0 at offset 0 (size 1), field 1 aligned up to 8.
	require.Len(t, info.FieldOffsets, 2)
	assert.Equal(t, uint64(0), info.FieldOffsets[0])
	assert.Equal(t, uint64(8), info.FieldOffsets[1])
	assert.Equal(t, uint64(16), info.Size) // 8 + 8, padded to align 8
	assert.Equal(t, uint64(8), info.Align)
}

func TestGetBackendTypeInfo_HybridVarTailAffectsAlignmentNotSize(t *testing.T) {
	r := NewRegistry()
	tag := "test.hybrid.tail"
	ir.HybridTagMap.Declare(tag)
	require.NoError(t, ir.HybridTagMap.Fill(tag, ir.HybridBody{
		Fixed: []ir.StructField{{Type: ir.NewIntType(8)}},
		Var:   ir.NewIntType(64),
	}))

	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewHybridType(tag)))
	info := r.GetBackendTypeInfo(id)

	assert.Equal(t, uint64(8), info.Align) // driven by the tail's alignment
	assert.Equal(t, uint64(8), info.Size)  // fixed part alone, padded to align
}

func TestGetBackendTypeInfo_Memoized(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewIntType(32)))

	first := r.GetBackendTypeInfo(id)
	second := r.GetBackendTypeInfo(id)
	assert.Same(t, first, second)
}
