package mc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

func TestRecord_SetNopPreservesSlotButClearsOperands(t *testing.T) {
	r := NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, []uint64{1}, []uint64{2})

	assert.False(t, r.IsNop())
	r.SetNop()

	assert.True(t, r.IsNop())
	assert.Nil(t, r.Prog)
	assert.Nil(t, r.VRegUses)
	assert.Nil(t, r.VRegDefs)
}

func TestRecord_StringVariantsByKind(t *testing.T) {
	sym := NewSymbolic("loop_head", ASMLocation{})
	assert.Equal(t, "loop_head:", sym.String())

	branch := NewBranch(&obj.Prog{As: x86.AJMP}, "loop_head", ASMLocation{}, nil)
	assert.Contains(t, branch.String(), "loop_head")

	branch.SetNop()
	assert.Equal(t, "; nop (was branch)", branch.String())

	inst := NewInstruction(&obj.Prog{As: x86.AMOVQ}, ASMLocation{}, nil, nil)
	inst.SetNop()
	assert.Equal(t, "; nop", inst.String())
}

func TestRecord_MarkFrameSizeSlot(t *testing.T) {
	r := NewInstruction(&obj.Prog{As: x86.ASUBQ}, ASMLocation{}, nil, nil)
	assert.False(t, r.frameSizeSlot)

	r.MarkFrameSizeSlot()
	assert.True(t, r.frameSizeSlot)
}
