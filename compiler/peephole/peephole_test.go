package peephole

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
)

func TestRun_NopsIdentityMoves(t *testing.T) {
	mc.SetMoveOpcodeTag(int16(x86.AMOVQ))
	defer mc.SetMoveOpcodeTag(0)

	mcd := mc.New("f", nil, mc.NewFrame(16))
	mcd.Records = []*mc.Record{
		mc.NewInstruction(&obj.Prog{As: x86.AMOVQ}, mc.ASMLocation{}, []uint64{5}, []uint64{5}),
		mc.NewInstruction(&obj.Prog{As: x86.AMOVQ}, mc.ASMLocation{}, []uint64{5}, []uint64{6}),
		mc.NewInstruction(&obj.Prog{As: x86.AADDQ}, mc.ASMLocation{}, []uint64{5}, []uint64{5}),
	}

	Run(mcd)

	assert.True(t, mcd.Records[0].IsNop(), "a move from vreg 5 to vreg 5 is an identity move and must be nopped")
	assert.False(t, mcd.Records[1].IsNop(), "a move between two distinct vregs must survive")
	assert.False(t, mcd.Records[2].IsNop(), "a non-move instruction must never be nopped, even with matching operands")
}

func TestRun_PreservesRecordCountAndOrder(t *testing.T) {
	mc.SetMoveOpcodeTag(int16(x86.AMOVQ))
	defer mc.SetMoveOpcodeTag(0)

	mcd := mc.New("f", nil, mc.NewFrame(16))
	mcd.Records = []*mc.Record{
		mc.NewInstruction(&obj.Prog{As: x86.AMOVQ}, mc.ASMLocation{}, []uint64{1}, []uint64{1}),
		mc.NewSymbolic("block1", mc.ASMLocation{}),
	}

	before := len(mcd.Records)
	Run(mcd)

	assert.Equal(t, before, len(mcd.Records), "nopping must never change the number of records, so instruction indices stay valid")
}
