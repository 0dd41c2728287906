package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// buildAddFunc stages a function add(i32, i32) -> i32 { return %p0 + %p1 }
// and returns the ids a test needs to look the result up after Load.
func buildAddFunc(t *testing.T, reg *vm.Registry) (b *Builder, i32ID, sigID, funcID, funcVerID, entryBBID, p0ID, p1ID, resultID ir.ID) {
	t.Helper()
	b = New(reg)

	i32ID = b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)

	sigID = b.GenSym("add.sig")
	b.NewFuncSig(sigID, []ir.ID{i32ID, i32ID}, []ir.ID{i32ID})

	funcID = b.GenSym("add")
	b.NewFunc(funcID, sigID)

	funcVerID = b.GenSym("")
	b.NewFuncVer(funcVerID, funcID)

	p0ID = b.GenSym("p0")
	b.NewSSA(p0ID, funcVerID, i32ID)
	p1ID = b.GenSym("p1")
	b.NewSSA(p1ID, funcVerID, i32ID)
	resultID = b.GenSym("sum")
	b.NewSSA(resultID, funcVerID, i32ID)

	entryBBID = b.GenSym("entry")
	b.NewBB(entryBBID, funcVerID, []ir.ID{p0ID, p1ID}, 0, false)

	addInstID := b.GenSym("")
	b.NewBinOp(addInstID, entryBBID, resultID, Add, b.SSAVal(p0ID), b.SSAVal(p1ID))

	retInstID := b.GenSym("")
	b.NewReturn(retInstID, entryBBID, []OperandRef{b.SSAVal(resultID)})

	return
}

func TestBuilder_LoadCommitsSimpleFunction(t *testing.T) {
	reg := vm.NewRegistry()
	b, i32ID, sigID, funcID, funcVerID, entryBBID, p0ID, p1ID, resultID := buildAddFunc(t, reg)

	require.NoError(t, b.Load())

	typ := reg.GetType(i32ID)
	assert.Equal(t, ir.TypeKindInt, typ.Kind)
	assert.Equal(t, uint32(32), typ.IntWidth)

	sig := reg.GetFuncSig(sigID)
	require.Len(t, sig.Args, 2)
	require.Len(t, sig.Rets, 1)

	fn := reg.GetFunc(funcID)
	require.NotNil(t, fn.CurVer)
	assert.Equal(t, funcVerID, fn.CurVer.ID())

	fv := reg.GetFuncVer(funcVerID)
	require.True(t, fv.Defined())

	entry := fv.Content.Blocks[entryBBID]
	require.NotNil(t, entry)
	require.Len(t, entry.Params, 2)

	addInst := entry.Root()
	require.NotNil(t, addInst)
	assert.Equal(t, ir.OpcodeBinOp, addInst.Opcode())
	assert.Equal(t, Add, addInst.BinOp)
	require.Len(t, addInst.Results(), 1)

	retInst := entry.Tail()
	require.NotNil(t, retInst)
	assert.Equal(t, ir.OpcodeReturn, retInst.Opcode())
	require.Equal(t, 1, retInst.NumOps())

	_ = p0ID
	_ = p1ID
	_ = resultID
}

func TestBuilder_AbortLeavesRegistryUntouched(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)
	id := b.GenSym("dead")
	b.NewTypeInt(id, 64)

	b.Abort()

	_, ok := reg.TryGetType(id)
	assert.False(t, ok)
}

func TestBuilder_UsedAfterLoadPanics(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)
	id := b.GenSym("i8")
	b.NewTypeInt(id, 8)
	require.NoError(t, b.Load())

	assert.Panics(t, func() { b.GenSym("too-late") })
}

func TestBuilder_NewTypeStructSynthesizesTagWhenEmpty(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)

	i32ID := b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)
	structID := b.GenSym("")
	b.NewTypeStruct(structID, "", []ir.ID{i32ID})

	require.NoError(t, b.Load())
	typ := reg.GetType(structID)
	assert.NotEmpty(t, typ.Tag)

	body, err := ir.StructTagMap.Lookup(typ.Tag)
	require.NoError(t, err)
	require.Len(t, body.Fields, 1)
}

func TestBuilder_CyclicStructViaRefResolves(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)

	listTag := "builder_test.list.node"
	nodeID := b.GenSym("node")
	refToNodeID := b.GenSym("ref_node")
	b.NewTypeRef(refToNodeID, nodeID)
	b.NewTypeStruct(nodeID, listTag, []ir.ID{refToNodeID})

	require.NoError(t, b.Load())

	nodeType := reg.GetType(nodeID)
	require.Equal(t, ir.TypeKindStruct, nodeType.Kind)

	body, err := ir.StructTagMap.Lookup(listTag)
	require.NoError(t, err)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, ir.TypeKindRef, body.Fields[0].Type.Kind)
	assert.Same(t, nodeType, body.Fields[0].Type.Elem)
}

func TestBuilder_NewCommInstRejectsUnknownName(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)
	bbID := b.GenSym("bb")
	err := b.NewCommInst(b.GenSym(""), bbID, nil, "uvm.not_a_real_comminst", nil)
	assert.Error(t, err)
}

func TestBuilder_NewCommInstAcceptsKnownName(t *testing.T) {
	reg := vm.NewRegistry()
	b := New(reg)
	voidID := b.GenSym("void")
	b.NewTypeVoid(voidID)
	sigID := b.GenSym("noop.sig")
	b.NewFuncSig(sigID, nil, nil)
	funcID := b.GenSym("noop")
	b.NewFunc(funcID, sigID)
	funcVerID := b.GenSym("")
	b.NewFuncVer(funcVerID, funcID)
	bbID := b.GenSym("bb")
	b.NewBB(bbID, funcVerID, nil, 0, false)

	err := b.NewCommInst(b.GenSym(""), bbID, nil, "uvm.thread_exit", nil)
	assert.NoError(t, err)
}

func TestBuilder_Stats(t *testing.T) {
	reg := vm.NewRegistry()
	b, _, _, _, _, _, _, _, _ := buildAddFunc(t, reg)
	stats := b.Stats()
	assert.Equal(t, 1, stats.Types)
	assert.Equal(t, 1, stats.Sigs)
	assert.Equal(t, 1, stats.Funcs)
	assert.Equal(t, 1, stats.FuncVers)
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, 3, stats.SSAVars)
	assert.Equal(t, 2, stats.Insts)
}
