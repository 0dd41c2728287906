// Package peephole implements spec.md §4.9's single mandated cleanup pass:
// nopping out identity moves register allocation leaves behind once
// coalescing has run its course, without deleting the record so that any
// table indexed by instruction position (the exception-callsite table,
// diagnostics line maps) stays valid.
package peephole

import (
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// Run walks mcd's records once and nops any move whose source and
// destination were assigned the same real register, a leftover of a
// conservative coalescing decision the allocator declined to make eagerly
// (spec.md §4.6 notes coalesce() can park a move rather than commit it).
func Run(mcd *mc.MachineCode) {
	for i := 0; i < mcd.NumInstructions(); i++ {
		if !mcd.IsMove(i) {
			continue
		}
		uses := mcd.GetInstRegUses(i)
		defs := mcd.GetInstRegDefines(i)
		if len(uses) != 1 || len(defs) != 1 {
			continue
		}
		// After allocation the vreg IDs differ whenever two vregs were
		// coalesced onto one color, so also compare the bound registers.
		p := mcd.EmitInst(i).Prog
		sameReg := p != nil && p.From.Type == obj.TYPE_REG && p.To.Type == obj.TYPE_REG &&
			p.From.Reg != obj.REG_NONE && p.From.Reg == p.To.Reg
		if uses[0] == defs[0] || sameReg {
			mcd.SetInstNop(i)
		}
	}
}
