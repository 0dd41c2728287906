package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/builder"
	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// buildAddFuncVersion stages add(i32, i32) -> i32 { %sum = add %p0 %p1;
// return %sum }, loads it into a fresh registry, and returns the resulting
// FunctionVersion together with the SSA ids of its operands.
func buildAddFuncVersion(t *testing.T) (fv *ir.FunctionVersion, p0, p1, sum ir.ID) {
	t.Helper()
	reg := vm.NewRegistry()
	b := builder.New(reg)

	i32ID := b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)
	sigID := b.GenSym("add.sig")
	b.NewFuncSig(sigID, []ir.ID{i32ID, i32ID}, []ir.ID{i32ID})
	funcID := b.GenSym("add")
	b.NewFunc(funcID, sigID)
	funcVerID := b.GenSym("")
	b.NewFuncVer(funcVerID, funcID)

	p0 = b.GenSym("p0")
	b.NewSSA(p0, funcVerID, i32ID)
	p1 = b.GenSym("p1")
	b.NewSSA(p1, funcVerID, i32ID)
	sum = b.GenSym("sum")
	b.NewSSA(sum, funcVerID, i32ID)

	bbID := b.GenSym("entry")
	b.NewBB(bbID, funcVerID, []ir.ID{p0, p1}, 0, false)
	b.NewBinOp(b.GenSym(""), bbID, sum, builder.Add, b.SSAVal(p0), b.SSAVal(p1))
	b.NewReturn(b.GenSym(""), bbID, []builder.OperandRef{b.SSAVal(sum)})

	require.NoError(t, b.Load())
	fv = reg.GetFuncVer(funcVerID)
	return
}

func TestRunDefUse_CountsOperandUses(t *testing.T) {
	fv, _, _, _ := buildAddFuncVersion(t)

	RunDefUse(fv)

	// Load() allocates ValueIDs in ascending staging-id order, so p0, p1,
	// sum land at 0, 1, 2 respectively for this fixture.
	entry := fv.EntryBlock()
	p0Val, p1Val := entry.Params[0], entry.Params[1]
	sumVal := entry.Root().Return()

	assert.Equal(t, int64(1), fv.Context.Entry(p0Val.SSA).UseCount())
	assert.Equal(t, int64(1), fv.Context.Entry(p1Val.SSA).UseCount())
	assert.Equal(t, int64(1), fv.Context.Entry(sumVal.SSA).UseCount())
}
