package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

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

	assert.True(t, usesReg(mcd, uint64(RegDX)), "a call returning two values must unload the second one out of RDX")
}

func TestSelectReturn_MovesSecondValueIntoRDX(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)

	v0 := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	v1 := mcd.AllocVReg(regalloc.RegClassGPR, 8)

	m.SelectReturn(mcd, []regalloc.VReg{v0, v1})

	assert.True(t, definesReg(mcd, uint64(RegDX)), "SelectReturn must move a second return value into RDX, not drop it")
}

func TestSelectReturn_SingleValueNeverTouchesRDX(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	v0 := mcd.AllocVReg(regalloc.RegClassGPR, 8)

	m.SelectReturn(mcd, []regalloc.VReg{v0})

	assert.False(t, definesReg(mcd, uint64(RegDX)), "a single-value return must not touch RDX")
}

func TestSelectSelect_LowersToTestAndCmov(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	cond := mcd.AllocVReg(regalloc.RegClassGPR, 4)
	ifTrue := mcd.AllocVReg(regalloc.RegClassGPR, 4)
	ifFalse := mcd.AllocVReg(regalloc.RegClassGPR, 4)

	dst := m.SelectSelect(mcd, cond, ifTrue, ifFalse, i32)
	assert.True(t, dst.Valid())

	var sawTest, sawCmov, sawSeedMove bool
	for _, r := range mcd.Records {
		if r.Prog == nil {
			continue
		}
		switch r.Prog.As {
		case x86.ATESTQ:
			sawTest = true
		case x86.ACMOVQNE:
			sawCmov = true
		case x86.AMOVQ:
			sawSeedMove = true
		}
	}
	assert.True(t, sawSeedMove, "SELECT must seed the destination with ifFalse before the conditional move")
	assert.True(t, sawTest, "SELECT must test the condition register")
	assert.True(t, sawCmov, "SELECT must conditionally move ifTrue over the ifFalse-seeded destination")
}

func TestSelectEntryParams_SeventhParamLoadsFromStack(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	types := []*ir.Type{i32, i32, i32, i32, i32, i32, i32}
	out := m.SelectEntryParams(mcd, types)
	require.Len(t, out, len(types))

	for _, v := range out {
		assert.True(t, v.Valid())
	}

	// The 7th parameter spills past the six-register SysV integer budget,
	// so it must load from the caller's outgoing-arg stack area instead of
	// a move out of a precolored arg register.
	var sawStackLoad bool
	for _, r := range mcd.Records {
		if r.Prog == nil {
			continue
		}
		if r.Prog.As == x86.AMOVQ && r.Prog.From.Reg == toObjReg(RegBP) {
			sawStackLoad = true
		}
	}
	assert.True(t, sawStackLoad, "a parameter past the register budget must be loaded relative to RBP")
}

func TestSelectEntryParams_FirstParamUnloadsFromDI(t *testing.T) {
	m := NewMachine()
	mcd := newMCD(m)
	i32 := ir.NewIntType(32)

	out := m.SelectEntryParams(mcd, []*ir.Type{i32})
	require.Len(t, out, 1)

	assert.True(t, usesReg(mcd, uint64(RegDI)), "the first integer parameter must be unloaded out of RDI per the SysV ABI")
}

// usesReg/definesReg inspect the pre-allocation VRegUses/VRegDefs lists
// directly, since a precolored operand's obj.Addr.Reg field is only filled
// in once the register allocator's AssignUses/AssignDefs runs; at selection
// time the real register identity lives in the VReg list instead.
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
