package arm64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

func newMCD(m *Machine) *mc.MachineCode {
	return mc.New("test", m.RegisterInfo(), mc.NewFrame(16))
}

func TestSelectCall_UnloadsBothReturnValues(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	out := m.SelectCall(mcd, "callee", nil, nil, []*ir.Type{i32, i32})
	require.Len(t, out, 2)

	assert.True(t, usesReg(mcd, uint64(RegX1)), "a call returning two values must unload the second one out of X1")
}

func TestSelectReturn_MovesSecondValueIntoX1(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	v0 := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	v1 := mcd.AllocVReg(regalloc.RegClassGPR, 8)

	m.SelectReturn(mcd, []regalloc.VReg{v0, v1})

	assert.True(t, definesReg(mcd, uint64(RegX1)), "SelectReturn must move a second return value into X1, not drop it")
}

func TestSelectReturn_SingleValueNeverTouchesX1(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	v0 := mcd.AllocVReg(regalloc.RegClassGPR, 8)

	m.SelectReturn(mcd, []regalloc.VReg{v0})

	assert.False(t, definesReg(mcd, uint64(RegX1)), "a single-value return must not touch X1")
}

func TestSelectSelect_LowersToCmpAndCsel(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	cond := mcd.AllocVReg(regalloc.RegClassGPR, 4)
	ifTrue := mcd.AllocVReg(regalloc.RegClassGPR, 4)
	ifFalse := mcd.AllocVReg(regalloc.RegClassGPR, 4)

	dst := m.SelectSelect(mcd, cond, ifTrue, ifFalse, i32)
	assert.True(t, dst.Valid())

	var sawCmp, sawCsel bool
	for _, r := range mcd.Records {
		if r.Prog == nil {
			continue
		}
		switch r.Prog.As {
		case arm64.ACMP:
			sawCmp = true
		case arm64.ACSEL:
			sawCsel = true
		}
	}
	assert.True(t, sawCmp, "SELECT must compare the condition register against zero")
	assert.True(t, sawCsel, "SELECT must conditionally select between ifTrue and ifFalse")
}

func TestSelectEntryParams_NinthParamLoadsFromStack(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	// AAPCS64 passes the first eight integer args in X0-X7; a ninth spills
	// to the caller's outgoing-arg stack area.
	types := make([]*ir.Type, 9)
	for i := range types {
		types[i] = i32
	}
	out := m.SelectEntryParams(mcd, types)
	require.Len(t, out, len(types))

	for _, v := range out {
		assert.True(t, v.Valid())
	}

	var sawStackLoad bool
	for _, r := range mcd.Records {
		if r.Prog == nil {
			continue
		}
		if r.Prog.As == arm64.AMOVD && r.Prog.From.Reg == toObjReg(RegFP) {
			sawStackLoad = true
		}
	}
	assert.True(t, sawStackLoad, "a parameter past the register budget must be loaded relative to FP")
}

func TestSelectEntryParams_FirstParamUnloadsFromX0(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	out := m.SelectEntryParams(mcd, []*ir.Type{i32})
	require.Len(t, out, 1)

	assert.True(t, usesReg(mcd, uint64(RegX0)), "the first integer parameter must be unloaded out of X0 per AAPCS64")
}

// usesReg/definesReg inspect the pre-allocation VRegUses/VRegDefs lists
// directly: a precolored operand's obj.Addr.Reg field is only filled in once
// the register allocator's AssignUses/AssignDefs runs, so at selection time
// the real register identity lives in the VReg list instead.
func usesReg(mcd *mc.MachineCode, id uint64) bool {
	for _, r := range mcd.Records {
		for _, u := range r.VRegUses {
			if u == id {
				return true
			}
		}
	}
	return false
}

func definesReg(mcd *mc.MachineCode, id uint64) bool {
	for _, r := range mcd.Records {
		for _, d := range r.VRegDefs {
			if d == id {
				return true
			}
		}
	}
	return false
}
