// Package amd64 implements the isel.CodeGenerator contract for x86-64,
// grounded on the teacher's backend/isa/amd64/machine.go and
// instr_encoding.go, which drive golang-asm-equivalent opcode constants the
// same way: one obj.Prog per machine instruction, built through small
// per-shape helpers (instrReg, instrRegMem, instrBranch) rather than one
// giant switch repeated at every call site.
package amd64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/jstnlef/zebu-vm-sub001/backend"
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// Real register numbering follows golang-asm/obj/x86's REG_* constants
// directly rather than reinventing a private enumeration, so RealReg values
// can be handed straight to obj.Addr.Reg without a translation table.
const (
	RegAX = regalloc.RealReg(x86.REG_AX - x86.REG_AX)
	RegCX = regalloc.RealReg(x86.REG_CX - x86.REG_AX)
	RegDX = regalloc.RealReg(x86.REG_DX - x86.REG_AX)
	RegBX = regalloc.RealReg(x86.REG_BX - x86.REG_AX)
	RegSP = regalloc.RealReg(x86.REG_SP - x86.REG_AX)
	RegBP = regalloc.RealReg(x86.REG_BP - x86.REG_AX)
	RegSI = regalloc.RealReg(x86.REG_SI - x86.REG_AX)
	RegDI = regalloc.RealReg(x86.REG_DI - x86.REG_AX)
	RegR8 = regalloc.RealReg(x86.REG_R8 - x86.REG_AX)
	RegR9 = regalloc.RealReg(x86.REG_R9 - x86.REG_AX)
)

func toObjReg(r regalloc.RealReg) int16 { return x86.REG_AX + int16(r) }

// NewRegisterInfo returns the SysV-AMD64 register-class tables (spec.md
// §4.3): RAX, RCX, RDX, RBX, RSI, RDI, R8 and R9 are the allocatable GPRs.
// RBX is the only register marked callee-saved; the other seven are
// caller-saved. RSP, RBP and R10-R15 are never allocated, and no width
// aliases (EAX/AX/AL/AH) are recorded: Aliases is empty.
func NewRegisterInfo() *regalloc.RegisterInfo {
	gprs := []regalloc.RealReg{RegAX, RegCX, RegDX, RegBX, RegSI, RegDI, RegR8, RegR9}
	return &regalloc.RegisterInfo{
		AllocatableRegisters: [regalloc.NumRegClass][]regalloc.RealReg{
			regalloc.RegClassGPR: gprs,
		},
		CalleeSaved: map[regalloc.RealReg]bool{RegBX: true},
		CallerSaved: map[regalloc.RealReg]bool{RegAX: true, RegCX: true, RegDX: true, RegSI: true, RegDI: true, RegR8: true, RegR9: true},
		RealRegName: func(r regalloc.RealReg) string { return obj.Rconv(int(toObjReg(r))) },
		ToObjReg:    func(r regalloc.RealReg) int16 { return toObjReg(r) },
		Aliases:     map[regalloc.RealReg][]regalloc.RealReg{},
	}
}

// ArgsResultsRegs implements backend.ABIRegInfo for SysV-AMD64: the first
// six integer arguments in RDI, RSI, RDX, RCX, R8, R9 and the return value
// in RAX (spec.md §4.3 "ABI policies").
func (m *Machine) ArgsResultsRegs() (argInts, argFloats, resultInts, resultFloats []regalloc.RealReg) {
	return []regalloc.RealReg{RegDI, RegSI, RegDX, RegCX, RegR8, RegR9}, nil,
		[]regalloc.RealReg{RegAX}, nil
}

// Machine is the amd64 isel.CodeGenerator.
type Machine struct {
	ri  *regalloc.RegisterInfo
	abi *backend.FunctionABI[*Machine]
}

func NewMachine() *Machine {
	m := &Machine{ri: NewRegisterInfo()}
	m.abi = backend.NewFunctionABI[*Machine](m)
	mc.SetMoveOpcodeTag(int16(x86.AMOVQ))
	mc.SetCallOpcodeTags(int16(x86.ACALL))
	return m
}

func (m *Machine) RegisterInfo() *regalloc.RegisterInfo { return m.ri }

func (m *Machine) emit(mcd *mc.MachineCode, p *obj.Prog, uses, defs []regalloc.VReg) {
	mcd.Records = append(mcd.Records, mc.NewInstruction(p, mc.ASMLocation{}, vregIDs(uses), vregIDs(defs)))
}

func vregIDs(vs []regalloc.VReg) []uint64 {
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = uint64(v.ID())
	}
	return out
}

func (m *Machine) SelectLoad(mcd *mc.MachineCode, addr regalloc.VReg, offset int64, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(classOf(typ), sizeOf(typ))
	p := &obj.Prog{As: x86.AMOVQ}
	p.From = obj.Addr{Type: obj.TYPE_MEM, Offset: offset}
	p.To = obj.Addr{Type: obj.TYPE_REG}
	m.emit(mcd, p, []regalloc.VReg{addr}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectStore(mcd *mc.MachineCode, addr regalloc.VReg, offset int64, val regalloc.VReg, typ *ir.Type) {
	p := &obj.Prog{As: x86.AMOVQ}
	p.From = obj.Addr{Type: obj.TYPE_REG}
	p.To = obj.Addr{Type: obj.TYPE_MEM, Offset: offset}
	m.emit(mcd, p, []regalloc.VReg{val, addr}, nil)
}

func (m *Machine) SelectMoveImmediate(mcd *mc.MachineCode, dst regalloc.VReg, c *ir.Constant) {
	p := &obj.Prog{As: x86.AMOVQ}
	p.From = obj.Addr{Type: obj.TYPE_CONST, Offset: int64(c.Int)}
	p.To = obj.Addr{Type: obj.TYPE_REG}
	m.emit(mcd, p, nil, []regalloc.VReg{dst})
}

func (m *Machine) SelectBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, sizeOf(typ))
	m.InsertMove(mcd, dst, lhs)
	p := &obj.Prog{As: binOpcode(op)}
	p.From = obj.Addr{Type: obj.TYPE_REG}
	p.To = obj.Addr{Type: obj.TYPE_REG}
	m.emit(mcd, p, []regalloc.VReg{dst, rhs}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectFBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassFPR, sizeOf(typ))
	m.InsertMove(mcd, dst, lhs)
	p := &obj.Prog{As: fBinOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{dst, rhs}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectCmp(mcd *mc.MachineCode, op ir.CmpOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 1)
	p := &obj.Prog{As: x86.ACMPQ}
	m.emit(mcd, p, []regalloc.VReg{lhs, rhs}, nil)
	setp := &obj.Prog{As: setOpcode(op)}
	m.emit(mcd, setp, nil, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectConv(mcd *mc.MachineCode, op ir.ConvOp, src regalloc.VReg, from, to *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(classOf(to), sizeOf(to))
	p := &obj.Prog{As: convOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{src}, []regalloc.VReg{dst})
	return dst
}

// SelectSelect lowers a ternary into a TESTQ/CMOVQNE pair: dst starts as
// ifFalse, then is conditionally overwritten with ifTrue when cond is
// nonzero, matching SelectBranch's "nonzero is taken" convention.
func (m *Machine) SelectSelect(mcd *mc.MachineCode, cond, ifTrue, ifFalse regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(classOf(typ), sizeOf(typ))
	m.InsertMove(mcd, dst, ifFalse)
	t := &obj.Prog{As: x86.ATESTQ}
	m.emit(mcd, t, []regalloc.VReg{cond, cond}, nil)
	p := &obj.Prog{As: x86.ACMOVQNE}
	m.emit(mcd, p, []regalloc.VReg{ifTrue, dst}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectBranch(mcd *mc.MachineCode, cond regalloc.VReg, target, fallthru string) {
	p := &obj.Prog{As: x86.ATESTQ}
	m.emit(mcd, p, []regalloc.VReg{cond, cond}, nil)
	jp := &obj.Prog{As: x86.AJNE}
	mcd.Records = append(mcd.Records, mc.NewBranch(jp, target, mc.ASMLocation{}, nil))
	_ = fallthru
}

func (m *Machine) SelectJump(mcd *mc.MachineCode, target string) {
	p := &obj.Prog{As: obj.AJMP}
	mcd.Records = append(mcd.Records, mc.NewBranch(p, target, mc.ASMLocation{}, nil))
}

// SelectCall classifies argTypes/rets through the shared SysV FunctionABI
// so a call past the six-integer-register budget correctly spills the
// overflow to the outgoing stack area instead of silently dropping it.
func (m *Machine) SelectCall(mcd *mc.MachineCode, target string, argTypes []*ir.Type, args []regalloc.VReg, rets []*ir.Type) []regalloc.VReg {
	m.abi.Init(&ir.FuncSig{Args: argTypes, Rets: rets})
	for i, a := range m.abi.Args {
		switch a.Kind {
		case backend.ABIArgKindReg:
			m.InsertMove(mcd, a.Reg, args[i])
		case backend.ABIArgKindStack:
			p := &obj.Prog{As: x86.AMOVQ}
			p.To = obj.Addr{Type: obj.TYPE_MEM, Reg: toObjReg(RegSP), Offset: a.Offset}
			m.emit(mcd, p, []regalloc.VReg{args[i], regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}, nil)
		}
	}
	p := &obj.Prog{As: x86.ACALL}
	mcd.Records = append(mcd.Records, mc.NewBranch(p, target, mc.ASMLocation{}, nil))
	out := make([]regalloc.VReg, len(rets))
	for i, t := range rets {
		out[i] = mcd.AllocVReg(classOf(t), sizeOf(t))
		switch i {
		case 0:
			m.InsertMove(mcd, out[i], regalloc.FromRealReg(RegAX, classOf(t)))
		case 1:
			m.InsertMove(mcd, out[i], regalloc.FromRealReg(RegDX, classOf(t)))
		}
	}
	return out
}

func (m *Machine) SelectReturn(mcd *mc.MachineCode, vals []regalloc.VReg) {
	if len(vals) > 0 {
		m.InsertMove(mcd, regalloc.FromRealReg(RegAX, vals[0].Class()), vals[0])
	}
	if len(vals) > 1 {
		m.InsertMove(mcd, regalloc.FromRealReg(RegDX, vals[1].Class()), vals[1])
	}
	m.Epilogue(mcd)
	p := &obj.Prog{As: obj.ARET}
	m.emit(mcd, p, nil, nil)
}

func (m *Machine) SelectAllocA(mcd *mc.MachineCode, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	slot := mcd.Frame.AllocateSlot(sizeOf(typ))
	p := &obj.Prog{As: x86.ALEAQ, Offset: int64(mcd.Frame.SpillSlots[slot].Offset)}
	m.emit(mcd, p, nil, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectGetFieldIRef(mcd *mc.MachineCode, base regalloc.VReg, fieldOffset int64) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: x86.ALEAQ, Offset: fieldOffset}
	m.emit(mcd, p, []regalloc.VReg{base}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectGetElementIRef(mcd *mc.MachineCode, base, index regalloc.VReg, elemSize int64) regalloc.VReg {
	scaled := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	mulp := &obj.Prog{As: x86.AIMULQ, From: obj.Addr{Type: obj.TYPE_CONST, Offset: elemSize}}
	m.emit(mcd, mulp, []regalloc.VReg{index}, []regalloc.VReg{scaled})
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	addp := &obj.Prog{As: x86.AADDQ}
	m.InsertMove(mcd, dst, base)
	m.emit(mcd, addp, []regalloc.VReg{dst, scaled}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectCFIDirective(mcd *mc.MachineCode, kind string, value int64) {
	mcd.Records = append(mcd.Records, mc.NewSymbolic(fmt.Sprintf(".cfi_%s(%d)", kind, value), mc.ASMLocation{}))
}

func (m *Machine) SelectCmpXchg(mcd *mc.MachineCode, addr, expected, desired regalloc.VReg, order ir.MemoryOrder) (old, success regalloc.VReg) {
	m.InsertMove(mcd, regalloc.FromRealReg(RegAX, expected.Class()), expected)
	p := &obj.Prog{As: x86.ACMPXCHGQ}
	old = mcd.AllocVReg(regalloc.RegClassGPR, 8)
	m.emit(mcd, p, []regalloc.VReg{addr, desired}, []regalloc.VReg{old})
	success = mcd.AllocVReg(regalloc.RegClassGPR, 1)
	setp := &obj.Prog{As: x86.ASETEQ}
	m.emit(mcd, setp, nil, []regalloc.VReg{success})
	return old, success
}

func (m *Machine) SelectAtomicRMW(mcd *mc.MachineCode, op ir.AtomicRMWOp, addr, operand regalloc.VReg, order ir.MemoryOrder) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: x86.AXADDQ}
	m.emit(mcd, p, []regalloc.VReg{addr, operand}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) InsertMove(mcd *mc.MachineCode, dst, src regalloc.VReg) {
	as := int16(x86.AMOVQ)
	if dst.Class() == regalloc.RegClassFPR {
		as = int16(x86.AMOVSD)
	}
	p := &obj.Prog{As: obj.As(as)}
	m.emit(mcd, p, []regalloc.VReg{src}, []regalloc.VReg{dst})
}

func (m *Machine) Prologue(mcd *mc.MachineCode) {
	push := &obj.Prog{As: x86.APUSHQ}
	m.emit(mcd, push, []regalloc.VReg{regalloc.FromRealReg(RegBP, regalloc.RegClassGPR)}, nil)
	mov := &obj.Prog{As: x86.AMOVQ}
	m.emit(mcd, mov, []regalloc.VReg{regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)},
		[]regalloc.VReg{regalloc.FromRealReg(RegBP, regalloc.RegClassGPR)})
	sub := &obj.Prog{As: x86.ASUBQ, From: obj.Addr{Type: obj.TYPE_CONST}}
	rec := mc.NewInstruction(sub, mc.ASMLocation{}, nil, vregIDs([]regalloc.VReg{regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}))
	rec.MarkFrameSizeSlot()
	mcd.Records = append(mcd.Records, rec)
}

func (m *Machine) Epilogue(mcd *mc.MachineCode) {
	leave := &obj.Prog{As: x86.ALEAVEQ}
	m.emit(mcd, leave, nil, nil)
}

// SelectEntryParams unloads types through the same SysV classification
// SelectCall's outgoing side uses: register-class params are moved out of
// their precolored arg register, stack-class params are loaded from the
// caller's outgoing-arg area, which by the time Prologue has pushed RBP and
// copied RSP into it sits at [RBP+16+offset] (8 for the return address, 8
// for the saved RBP).
func (m *Machine) SelectEntryParams(mcd *mc.MachineCode, types []*ir.Type) []regalloc.VReg {
	m.abi.Init(&ir.FuncSig{Args: types})
	out := make([]regalloc.VReg, len(types))
	for i, a := range m.abi.Args {
		dst := mcd.AllocVReg(classOf(a.Type), sizeOf(a.Type))
		switch a.Kind {
		case backend.ABIArgKindReg:
			m.InsertMove(mcd, dst, a.Reg)
		case backend.ABIArgKindStack:
			p := &obj.Prog{As: x86.AMOVQ}
			p.From = obj.Addr{Type: obj.TYPE_MEM, Reg: toObjReg(RegBP), Offset: 16 + a.Offset}
			m.emit(mcd, p, nil, []regalloc.VReg{dst})
		}
		out[i] = dst
	}
	return out
}

func classOf(t *ir.Type) regalloc.RegClass {
	if t != nil && (t.Kind == ir.TypeKindFloat || t.Kind == ir.TypeKindDouble) {
		return regalloc.RegClassFPR
	}
	return regalloc.RegClassGPR
}

func sizeOf(t *ir.Type) int {
	if t == nil {
		return 8
	}
	switch t.Kind {
	case ir.TypeKindInt:
		return int((t.IntWidth + 7) / 8)
	case ir.TypeKindFloat:
		return 4
	default:
		return 8
	}
}

func binOpcode(op ir.BinOp) obj.As {
	switch op {
	case ir.BinOpSub:
		return x86.ASUBQ
	case ir.BinOpMul:
		return x86.AIMULQ
	case ir.BinOpAnd:
		return x86.AANDQ
	case ir.BinOpOr:
		return x86.AORQ
	case ir.BinOpXor:
		return x86.AXORQ
	case ir.BinOpShl:
		return x86.ASHLQ
	case ir.BinOpLShr, ir.BinOpAShr:
		return x86.ASHRQ
	default:
		return x86.AADDQ
	}
}

func fBinOpcode(op ir.BinOp) obj.As {
	switch op {
	case ir.FBinOpFSub:
		return x86.ASUBSD
	case ir.FBinOpFMul:
		return x86.AMULSD
	case ir.FBinOpFDiv:
		return x86.ADIVSD
	default:
		return x86.AADDSD
	}
}

func convOpcode(op ir.ConvOp) obj.As {
	switch op {
	case ir.ConvFPTrunc, ir.ConvFPExt:
		return x86.ACVTSD2SS
	case ir.ConvSIToFP, ir.ConvUIToFP:
		return x86.ACVTSQ2SD
	case ir.ConvFPToSI, ir.ConvFPToUI:
		return x86.ACVTTSD2SQ
	default:
		return x86.AMOVQ
	}
}

func setOpcode(op ir.CmpOp) obj.As {
	switch op {
	case ir.CmpEQ:
		return x86.ASETEQ
	case ir.CmpNE:
		return x86.ASETNE
	case ir.CmpSLT, ir.CmpULT:
		return x86.ASETLT
	case ir.CmpSLE, ir.CmpULE:
		return x86.ASETLE
	case ir.CmpSGT, ir.CmpUGT:
		return x86.ASETGT
	default:
		return x86.ASETGE
	}
}
