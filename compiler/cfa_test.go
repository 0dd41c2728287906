package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/builder"
	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// buildLoopFuncVersion stages a three-block function: entry branches
// unconditionally into a loop header, the header's Branch2 either loops
// back on itself (a back edge CFA must classify as Backward) or exits to a
// tail block that returns.
func buildLoopFuncVersion(t *testing.T) (fv *ir.FunctionVersion, entryID, headerID, tailID ir.ID) {
	t.Helper()
	reg := vm.NewRegistry()
	b := builder.New(reg)

	i32ID := b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)
	boolID := b.GenSym("i1")
	b.NewTypeInt(boolID, 1)
	sigID := b.GenSym("loop.sig")
	b.NewFuncSig(sigID, nil, nil)
	funcID := b.GenSym("loop")
	b.NewFunc(funcID, sigID)
	funcVerID := b.GenSym("")
	b.NewFuncVer(funcVerID, funcID)

	condID := b.GenSym("cond")
	b.NewSSA(condID, funcVerID, boolID)
	constID := b.GenSym("true")
	b.NewConstInt(constID, boolID, 1)

	entryID = b.GenSym("entry")
	headerID = b.GenSym("header")
	tailID = b.GenSym("tail")
	b.NewBB(entryID, funcVerID, nil, 0, false)
	b.NewBB(headerID, funcVerID, nil, 0, false)
	b.NewBB(tailID, funcVerID, nil, 0, false)

	entryDest := b.GenSym("")
	b.NewDestClause(entryDest, headerID, nil)
	b.NewBranch1(b.GenSym(""), entryID, entryDest)

	b.NewCmp(b.GenSym(""), headerID, condID, builder.EQ, b.ConstVal(constID), b.ConstVal(constID))
	b.NewBranch2(b.GenSym(""), headerID, b.SSAVal(condID), headerLoopDest(b, headerID), headerTailDest(b, tailID), 0.75)

	b.NewReturn(b.GenSym(""), tailID, nil)

	require.NoError(t, b.Load())
	fv = reg.GetFuncVer(funcVerID)
	return
}

func headerLoopDest(b *builder.Builder, headerID ir.ID) ir.ID {
	id := b.GenSym("")
	b.NewDestClause(id, headerID, nil)
	return id
}

func headerTailDest(b *builder.Builder, tailID ir.ID) ir.ID {
	id := b.GenSym("")
	b.NewDestClause(id, tailID, nil)
	return id
}

func TestRunCFA_ClassifiesBackAndForwardEdges(t *testing.T) {
	fv, entryID, headerID, tailID := buildLoopFuncVersion(t)

	RunCFA(fv)

	entry := fv.Content.Blocks[entryID]
	header := fv.Content.Blocks[headerID]
	tail := fv.Content.Blocks[tailID]

	require.Len(t, entry.CFG.Succs, 1)
	assert.Equal(t, ir.EdgeForward, entry.CFG.Succs[0].Kind)
	assert.Same(t, header, entry.CFG.Succs[0].Target)

	require.Len(t, header.CFG.Succs, 2)
	var sawBackward, sawForward bool
	for _, e := range header.CFG.Succs {
		if e.Target == header {
			assert.Equal(t, ir.EdgeBackward, e.Kind)
			sawBackward = true
		}
		if e.Target == tail {
			assert.Equal(t, ir.EdgeForward, e.Kind)
			sawForward = true
		}
	}
	assert.True(t, sawBackward, "loop header's self edge must be classified backward")
	assert.True(t, sawForward, "loop header's exit edge must be classified forward")

	assert.ElementsMatch(t, []*ir.Block{entry, header}, header.CFG.Preds)
}
