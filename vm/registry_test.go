package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/ir"
)

func TestRegistry_NextIDStartsAtUserRange(t *testing.T) {
	r := NewRegistry()
	first := r.NextID()
	assert.Equal(t, ir.UserIDMin, first)
	second := r.NextID()
	assert.Equal(t, first+1, second)
}

func TestRegistry_DeclareTypeRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewIntType(32)))

	err := r.DeclareType(id, ir.NewIntType(64))
	require.Error(t, err)
	var dup *ErrDuplicateID
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "types", dup.Registry)
}

func TestRegistry_GetTypePanicsOnMiss(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.GetType(ir.ID(99999)) })
}

func TestRegistry_TryGetTypeDoesNotPanic(t *testing.T) {
	r := NewRegistry()
	_, ok := r.TryGetType(ir.ID(99999))
	assert.False(t, ok)

	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewVoidType()))
	got, ok := r.TryGetType(id)
	require.True(t, ok)
	assert.Equal(t, ir.TypeKindVoid, got.Kind)
}

func TestRegistry_SetNameBimap(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	r.SetName(id, "@widget", nil)

	name, ok := r.NameOf(id)
	require.True(t, ok)
	assert.Equal(t, "widget", name)

	back, ok := r.IDByName("widget")
	require.True(t, ok)
	assert.Equal(t, id, back)
}

func TestRegistry_CommitInsertsTypeAndName(t *testing.T) {
	r := NewRegistry()
	typeID := r.NextID()
	constID := r.NextID()

	data := &BundleData{
		Names:  map[ir.ID]string{typeID: "i32"},
		Types:  map[ir.ID]*ir.Type{typeID: ir.NewIntType(32)},
		Consts: map[ir.ID]*ir.ConstantDef{},
	}
	_ = constID
	require.NoError(t, r.Commit(data))

	got := r.GetType(typeID)
	assert.Equal(t, ir.TypeKindInt, got.Kind)
	name, ok := r.NameOf(typeID)
	require.True(t, ok)
	assert.Equal(t, "i32", name)
}

func TestRegistry_FuncVerIDsEnumeratesCommitted(t *testing.T) {
	r := NewRegistry()
	id1 := r.NextID()
	id2 := r.NextID()
	fv1 := &ir.FunctionVersion{}
	fv2 := &ir.FunctionVersion{}
	require.NoError(t, r.DeclareFuncVer(id1, fv1))
	require.NoError(t, r.DeclareFuncVer(id2, fv2))

	ids := r.FuncVerIDs()
	assert.ElementsMatch(t, []ir.ID{id1, id2}, ids)
}

func TestRegistry_CommonInstsIsSharedTable(t *testing.T) {
	r := NewRegistry()
	d, err := r.CommonInsts().Lookup(ir.CommInstThreadExit)
	require.NoError(t, err)
	assert.Equal(t, "uvm.thread_exit", d.Name)
}
