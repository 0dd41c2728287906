package mc

import (
	"github.com/twitchyliquid64/golang-asm/obj"

	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
)

// This file adapts MachineCode/BlockRange/*Record onto the
// regalloc.Function/Block/Instr contract (compiler/regalloc/api.go), so
// Allocate(mc) can run directly over a freshly instruction-selected
// function without any intermediate copy, matching the teacher's own
// backend.Compiler-implements-regalloc.Function design.

func (mc *MachineCode) Blocks() []regalloc.Block {
	out := make([]regalloc.Block, len(mc.BlockList))
	for i, b := range mc.BlockList {
		out[i] = &blockAdapter{mc: mc, r: b}
	}
	return out
}

func (mc *MachineCode) LoopDepth(b regalloc.Block) int {
	return b.(*blockAdapter).r.loopDepth
}

func (mc *MachineCode) NumVRegs() int { return int(mc.nextVReg) }

func (mc *MachineCode) InsertLoadBefore(before regalloc.Instr, v, into regalloc.VReg, slot int) {
	idx := before.(*instrAdapter).idx
	mc.vregClass[uint64(into.ID())] = into.Class()
	rec := &Record{Kind: RecordInstruction, VRegUses: []uint64{}, VRegDefs: []uint64{uint64(into.ID())}, unspillable: true}
	mc.Records = append(mc.Records, nil)
	copy(mc.Records[idx+1:], mc.Records[idx:])
	mc.Records[idx] = rec
	mc.shiftBlockRanges(idx, 1)
}

func (mc *MachineCode) InsertStoreAfter(after regalloc.Instr, v, from regalloc.VReg, slot int) {
	idx := after.(*instrAdapter).idx
	mc.vregClass[uint64(from.ID())] = from.Class()
	rec := &Record{Kind: RecordInstruction, VRegUses: []uint64{uint64(from.ID())}, VRegDefs: []uint64{}, unspillable: true}
	pos := idx + 1
	mc.Records = append(mc.Records, nil)
	copy(mc.Records[pos+1:], mc.Records[pos:])
	mc.Records[pos] = rec
	mc.shiftBlockRanges(pos, 1)
}

func (mc *MachineCode) shiftBlockRanges(fromIdx, delta int) {
	for _, b := range mc.BlockList {
		if b.Start > fromIdx {
			b.Start += delta
		}
		if b.End > fromIdx {
			b.End += delta
		}
	}
}

func (mc *MachineCode) AllocateSpillSlot(v regalloc.VReg) int {
	size := mc.vregTypeSize[uint64(v.ID())]
	if size == 0 {
		size = 8
	}
	return mc.Frame.AllocateSlot(size)
}

func (mc *MachineCode) RegisterInfo() *regalloc.RegisterInfo { return mc.regInfo }

func (mc *MachineCode) toObjReg(r regalloc.RealReg) int16 {
	if mc.regInfo == nil || mc.regInfo.ToObjReg == nil {
		return 0
	}
	return mc.regInfo.ToObjReg(r)
}

type blockAdapter struct {
	mc *MachineCode
	r  *BlockRange
}

func (b *blockAdapter) ID() int    { return b.r.ID }
func (b *blockAdapter) Entry() bool { return b.r.entry }

func (b *blockAdapter) Instrs() []regalloc.Instr {
	out := make([]regalloc.Instr, 0, b.r.End-b.r.Start)
	for i := b.r.Start; i < b.r.End; i++ {
		if b.mc.Records[i].Kind == RecordInstruction || b.mc.Records[i].Kind == RecordBranch {
			out = append(out, &instrAdapter{mc: b.mc, idx: i})
		}
	}
	return out
}

func (b *blockAdapter) Preds() []regalloc.Block {
	out := make([]regalloc.Block, len(b.r.preds))
	for i, id := range b.r.preds {
		out[i] = findBlock(b.mc, id)
	}
	return out
}

func (b *blockAdapter) Succs() []regalloc.Block {
	out := make([]regalloc.Block, len(b.r.succs))
	for i, id := range b.r.succs {
		out[i] = findBlock(b.mc, id)
	}
	return out
}

func findBlock(mc *MachineCode, id int) regalloc.Block {
	for _, b := range mc.BlockList {
		if b.ID == id {
			return &blockAdapter{mc: mc, r: b}
		}
	}
	return nil
}

type instrAdapter struct {
	mc  *MachineCode
	idx int
}

func (i *instrAdapter) rec() *Record { return i.mc.Records[i.idx] }

func (i *instrAdapter) Defs() []regalloc.VReg {
	r := i.rec()
	out := make([]regalloc.VReg, len(r.VRegDefs))
	for k, id := range r.VRegDefs {
		out[k] = regalloc.NewVReg(regalloc.VRegID(id), i.mc.classOf(id))
	}
	return out
}

func (i *instrAdapter) Uses() []regalloc.VReg {
	r := i.rec()
	out := make([]regalloc.VReg, len(r.VRegUses))
	for k, id := range r.VRegUses {
		out[k] = regalloc.NewVReg(regalloc.VRegID(id), i.mc.classOf(id))
	}
	return out
}

func (i *instrAdapter) AssignDefs(vs []regalloc.VReg) {
	r := i.rec()
	r.VRegDefs = r.VRegDefs[:0]
	for k, v := range vs {
		r.VRegDefs = append(r.VRegDefs, uint64(v.ID()))
		if k == 0 && v.IsRealReg() && r.Prog != nil && r.Prog.To.Type == obj.TYPE_REG {
			r.Prog.To.Reg = i.mc.toObjReg(v.RealReg())
		}
	}
}

func (i *instrAdapter) AssignUses(vs []regalloc.VReg) {
	r := i.rec()
	r.VRegUses = r.VRegUses[:0]
	for k, v := range vs {
		r.VRegUses = append(r.VRegUses, uint64(v.ID()))
		if k == 0 && v.IsRealReg() && r.Prog != nil && r.Prog.From.Type == obj.TYPE_REG {
			r.Prog.From.Reg = i.mc.toObjReg(v.RealReg())
		}
	}
}

func (i *instrAdapter) IsMove() bool { return i.mc.IsMove(i.idx) }

func (i *instrAdapter) MoveSrcDst() (src, dst regalloc.VReg) {
	r := i.rec()
	return regalloc.NewVReg(regalloc.VRegID(r.VRegUses[0]), i.mc.classOf(r.VRegUses[0])),
		regalloc.NewVReg(regalloc.VRegID(r.VRegDefs[0]), i.mc.classOf(r.VRegDefs[0]))
}

func (i *instrAdapter) IsCall() bool {
	r := i.rec()
	return r.Kind == RecordInstruction && r.Prog != nil && isCallOpcode(r.Prog.As)
}

func (i *instrAdapter) Spillable() bool {
	return !i.rec().unspillable
}

// callOpcodeTags is populated once per compilation from the active ISA
// backend (SetCallOpcodeTags), mirroring SetMoveOpcodeTag.
var callOpcodeTags = map[int16]bool{}

func isCallOpcode(as int16) bool { return callOpcodeTags[as] }

// SetCallOpcodeTags registers which obj.As opcode values the active ISA
// backend uses for direct/indirect calls, so instrAdapter.IsCall stays
// ISA-agnostic.
func SetCallOpcodeTags(tags ...int16) {
	callOpcodeTags = make(map[int16]bool, len(tags))
	for _, t := range tags {
		callOpcodeTags[t] = true
	}
}
