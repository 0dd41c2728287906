package isel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/backend/isa/amd64"
	"github.com/jstnlef/zebu-vm-sub001/builder"
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// buildTernaryFuncVersion stages ternary(i32, i32, i1) -> i32:
//
//	entry(p0, p1, cond):
//	  pinned = COMMINST uvm.native_pin(p0)
//	  sel = SELECT cond p0 pinned
//	  RETURN sel
//
// p0 is read twice (once as a CommInst argument, once as a Select operand)
// and cond is read once as the Select condition, so every entry parameter
// must have been unloaded from its ABI register before Select runs.
func buildTernaryFuncVersion(t *testing.T, reg *vm.Registry) (fv *ir.FunctionVersion, entryID ir.ID) {
	t.Helper()
	b := builder.New(reg)

	i32ID := b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)
	i1ID := b.GenSym("i1")
	b.NewTypeInt(i1ID, 1)

	sigID := b.GenSym("ternary.sig")
	b.NewFuncSig(sigID, []ir.ID{i32ID, i32ID, i1ID}, []ir.ID{i32ID})
	funcID := b.GenSym("ternary")
	b.NewFunc(funcID, sigID)
	funcVerID := b.GenSym("")
	b.NewFuncVer(funcVerID, funcID)

	p0 := b.GenSym("p0")
	b.NewSSA(p0, funcVerID, i32ID)
	p1 := b.GenSym("p1")
	b.NewSSA(p1, funcVerID, i32ID)
	cond := b.GenSym("cond")
	b.NewSSA(cond, funcVerID, i1ID)
	pinned := b.GenSym("pinned")
	b.NewSSA(pinned, funcVerID, i32ID)
	sel := b.GenSym("sel")
	b.NewSSA(sel, funcVerID, i32ID)

	entryID = b.GenSym("entry")
	b.NewBB(entryID, funcVerID, []ir.ID{p0, p1, cond}, 0, false)

	require.NoError(t, b.NewCommInst(b.GenSym(""), entryID, []ir.ID{pinned}, "uvm.native_pin", []builder.OperandRef{b.SSAVal(p0)}))
	b.NewSelect(b.GenSym(""), entryID, sel, b.SSAVal(cond), b.SSAVal(p0), b.SSAVal(pinned))
	b.NewReturn(b.GenSym(""), entryID, []builder.OperandRef{b.SSAVal(sel)})

	require.NoError(t, b.Load())
	fv = reg.GetFuncVer(funcVerID)
	return
}

func TestSelect_SeedsValuesFromEntryParams(t *testing.T) {
	reg := vm.NewRegistry()
	fv, _ := buildTernaryFuncVersion(t, reg)

	mcd, err := Select(fv, amd64.NewMachine(), reg.CommonInsts())
	require.NoError(t, err, "reading an entry parameter must not hit \"use of value before definition\"")
	assert.NotNil(t, mcd)
}

func TestSelect_CommonInstLowersThroughRuntimeSym(t *testing.T) {
	reg := vm.NewRegistry()
	fv, _ := buildTernaryFuncVersion(t, reg)

	mcd, err := Select(fv, amd64.NewMachine(), reg.CommonInsts())
	require.NoError(t, err)

	d, err := reg.CommonInsts().LookupByName("uvm.native_pin")
	require.NoError(t, err)

	var sawCall bool
	for _, r := range mcd.Records {
		if r.Kind == mc.RecordBranch && r.Target == d.RuntimeSym {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "COMMINST must lower to a call targeting its descriptor's RuntimeSym, not func#0")
}

func TestSelect_CommonInstWithoutTableErrors(t *testing.T) {
	reg := vm.NewRegistry()
	fv, _ := buildTernaryFuncVersion(t, reg)

	_, err := Select(fv, amd64.NewMachine(), nil)
	assert.Error(t, err)
}

// buildCallWithExcFuncVersion stages caller(i32) -> i32 { %r = CALL
// callee(p0) normal landing EXC exc; RETURN %r } so a real exceptional
// call-site can be captured into the frame's exception-callsite table.
func buildCallWithExcFuncVersion(t *testing.T, reg *vm.Registry) (fv *ir.FunctionVersion, landingName string) {
	t.Helper()
	b := builder.New(reg)

	i32ID := b.GenSym("i32")
	b.NewTypeInt(i32ID, 32)
	sigID := b.GenSym("callee.sig")
	b.NewFuncSig(sigID, []ir.ID{i32ID}, []ir.ID{i32ID})
	calleeFuncID := b.GenSym("callee")
	b.NewFunc(calleeFuncID, sigID)

	callerSigID := b.GenSym("caller.sig")
	b.NewFuncSig(callerSigID, []ir.ID{i32ID}, []ir.ID{i32ID})
	callerFuncID := b.GenSym("caller")
	b.NewFunc(callerFuncID, callerSigID)
	funcVerID := b.GenSym("")
	b.NewFuncVer(funcVerID, callerFuncID)

	p0 := b.GenSym("p0")
	b.NewSSA(p0, funcVerID, i32ID)
	result := b.GenSym("result")
	b.NewSSA(result, funcVerID, i32ID)

	entryID := b.GenSym("entry")
	normalID := b.GenSym("normal")
	excID := b.GenSym("exc")
	landingName = "exc"
	b.NewBB(entryID, funcVerID, []ir.ID{p0}, 0, false)
	b.NewBB(normalID, funcVerID, nil, 0, false)
	b.NewBB(excID, funcVerID, nil, 0, false)

	normalDestID := b.GenSym("")
	b.NewDestClause(normalDestID, normalID, nil)
	excClauseID := b.GenSym("")
	b.NewExcClause(excClauseID, excID)

	b.NewCall(b.GenSym(""), entryID, []ir.ID{result}, calleeFuncID, sigID, []builder.OperandRef{b.SSAVal(p0)}, normalDestID, excClauseID, true, 0, false)
	b.NewReturn(b.GenSym(""), normalID, []builder.OperandRef{b.SSAVal(result)})
	b.NewThreadExit(b.GenSym(""), excID)

	require.NoError(t, b.Load())
	fv = reg.GetFuncVer(funcVerID)
	return
}

func TestSelect_PopulatesExceptionCallsiteTable(t *testing.T) {
	reg := vm.NewRegistry()
	fv, landingName := buildCallWithExcFuncVersion(t, reg)

	mcd, err := Select(fv, amd64.NewMachine(), reg.CommonInsts())
	require.NoError(t, err)

	var found bool
	for i := range mcd.Records {
		if landing, ok := mcd.Frame.LandingFor(i); ok {
			found = true
			assert.Equal(t, landingName, landing)
		}
	}
	assert.True(t, found, "a call instruction with an exception destination must record a landing pad in Frame.Exceptions")
}
