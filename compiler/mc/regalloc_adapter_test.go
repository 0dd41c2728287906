package mc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
)

func TestRegallocAdapter_InstrsSkipsSymbolicRecords(t *testing.T) {
	mcd := New("f", nil, NewFrame(16))
	mcd.Records = []*Record{
		NewSymbolic("entry", ASMLocation{}),
		NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, nil, nil),
		NewBranch(&obj.Prog{As: x86.AJMP}, "entry", ASMLocation{}, nil),
	}
	b := &BlockRange{ID: 0, Start: 0, End: 3}
	mcd.BlockList = []*BlockRange{b}

	instrs := mcd.Blocks()[0].Instrs()
	assert.Len(t, instrs, 2, "the symbolic label record must not be treated as an instruction")
}

func TestRegallocAdapter_AssignDefsAndUsesUpdateProgRegs(t *testing.T) {
	ri := &regalloc.RegisterInfo{ToObjReg: func(r regalloc.RealReg) int16 { return x86.REG_AX + int16(r) }}
	mcd := New("f", ri, NewFrame(16))

	v := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: x86.AMOVQ, From: obj.Addr{Type: obj.TYPE_REG}, To: obj.Addr{Type: obj.TYPE_REG}}
	rec := NewInstruction(p, ASMLocation{}, []uint64{uint64(v.ID())}, []uint64{uint64(v.ID())})
	mcd.Records = []*Record{rec}
	mcd.BlockList = []*BlockRange{{ID: 0, Start: 0, End: 1}}

	instr := mcd.Blocks()[0].Instrs()[0]
	real := regalloc.FromRealReg(regalloc.RealReg(3), regalloc.RegClassGPR)

	instr.AssignDefs([]regalloc.VReg{real})
	instr.AssignUses([]regalloc.VReg{real})

	assert.Equal(t, x86.REG_AX+3, int(p.To.Reg))
	assert.Equal(t, x86.REG_AX+3, int(p.From.Reg))
}

func TestRegallocAdapter_IsCallUsesRegisteredTags(t *testing.T) {
	SetCallOpcodeTags(int16(x86.ACALL))
	defer SetCallOpcodeTags()

	mcd := New("f", nil, NewFrame(16))
	mcd.Records = []*Record{
		NewInstruction(&obj.Prog{As: x86.ACALL}, ASMLocation{}, nil, nil),
		NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, nil, nil),
	}
	mcd.BlockList = []*BlockRange{{ID: 0, Start: 0, End: 2}}

	instrs := mcd.Blocks()[0].Instrs()
	require.Len(t, instrs, 2)
	assert.True(t, instrs[0].IsCall())
	assert.False(t, instrs[1].IsCall())
}

func TestRegallocAdapter_SpillableReflectsUnspillableFlag(t *testing.T) {
	mcd := New("f", nil, NewFrame(16))
	mcd.Records = []*Record{
		NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, nil, nil),
	}
	mcd.BlockList = []*BlockRange{{ID: 0, Start: 0, End: 1}}

	instr := mcd.Blocks()[0].Instrs()[0]
	assert.True(t, instr.Spillable())

	mcd.Records[0].unspillable = true
	assert.False(t, instr.Spillable())
}

func TestRegallocAdapter_InsertLoadBeforeShiftsBlockRanges(t *testing.T) {
	mcd := New("f", nil, NewFrame(16))
	mcd.Records = []*Record{
		NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, nil, nil),
		NewInstruction(&obj.Prog{As: x86.AADDQ}, ASMLocation{}, nil, nil),
	}
	b0 := &BlockRange{ID: 0, Start: 0, End: 1}
	b1 := &BlockRange{ID: 1, Start: 1, End: 2}
	mcd.BlockList = []*BlockRange{b0, b1}

	target := mcd.Blocks()[1].Instrs()[0]
	into := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	mcd.InsertLoadBefore(target, regalloc.VRegInvalid, into, 0)

	assert.Len(t, mcd.Records, 3)
	assert.Equal(t, 0, b0.Start)
	assert.Equal(t, 1, b0.End, "a load inserted before block 1's first instruction must not grow block 0's range")
	assert.Equal(t, 1, b1.Start, "block 1 still starts at the same position, now occupied by the inserted load")
	assert.Equal(t, 3, b1.End, "the insertion must grow block 1's range to include the new load")
}
