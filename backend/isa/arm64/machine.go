// Package arm64 implements the isel.CodeGenerator contract for AArch64,
// grounded on the teacher's backend/isa/arm64/machine.go, which structures
// its Machine the same way this one does: one small per-opcode-family
// helper building an obj.Prog, reusing the shared backend.FunctionABI for
// argument/return classification.
package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/jstnlef/zebu-vm-sub001/backend"
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

const (
	RegX0  = regalloc.RealReg(0)
	RegX1  = regalloc.RealReg(1)
	RegX2  = regalloc.RealReg(2)
	RegX8  = regalloc.RealReg(8)
	RegFP  = regalloc.RealReg(29)
	RegLR  = regalloc.RealReg(30)
	RegSP  = regalloc.RealReg(31)
)

func toObjReg(r regalloc.RealReg) int16 { return arm64.REG_R0 + int16(r) }

// NewRegisterInfo returns the AAPCS64 register-class tables (spec.md
// §4.3): X0-X15 allocatable GPRs, X19-X28 callee-saved (none of which is
// in the allocatable set), X0-X18 caller-saved.
func NewRegisterInfo() *regalloc.RegisterInfo {
	var gprs []regalloc.RealReg
	for r := regalloc.RealReg(0); r <= 15; r++ {
		gprs = append(gprs, r)
	}
	callerSaved := make(map[regalloc.RealReg]bool, 19)
	for r := regalloc.RealReg(0); r <= 18; r++ {
		callerSaved[r] = true
	}
	return &regalloc.RegisterInfo{
		AllocatableRegisters: [regalloc.NumRegClass][]regalloc.RealReg{
			regalloc.RegClassGPR: gprs,
		},
		CalleeSaved: map[regalloc.RealReg]bool{19: true, 20: true, 21: true, 22: true, 23: true, 24: true, 25: true, 26: true, 27: true, 28: true},
		CallerSaved: callerSaved,
		RealRegName: func(r regalloc.RealReg) string { return obj.Rconv(int(toObjReg(r))) },
		ToObjReg:    func(r regalloc.RealReg) int16 { return toObjReg(r) },
		Aliases:     map[regalloc.RealReg][]regalloc.RealReg{},
	}
}

type Machine struct {
	ri  *regalloc.RegisterInfo
	abi *backend.FunctionABI[*Machine]
}

func NewMachine() *Machine {
	m := &Machine{ri: NewRegisterInfo()}
	m.abi = backend.NewFunctionABI[*Machine](m)
	mc.SetMoveOpcodeTag(int16(arm64.AMOVD))
	mc.SetCallOpcodeTags(int16(arm64.ABL))
	return m
}

func (m *Machine) RegisterInfo() *regalloc.RegisterInfo { return m.ri }

// ArgsResultsRegs implements backend.ABIRegInfo for AAPCS64: the first
// eight integer arguments in X0-X7 and the return value in X0.
func (m *Machine) ArgsResultsRegs() (argInts, argFloats, resultInts, resultFloats []regalloc.RealReg) {
	var args []regalloc.RealReg
	for r := regalloc.RealReg(0); r <= 7; r++ {
		args = append(args, r)
	}
	return args, nil, []regalloc.RealReg{RegX0}, nil
}

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
	p := &obj.Prog{As: arm64.AMOVD, From: obj.Addr{Type: obj.TYPE_MEM, Offset: offset}}
	m.emit(mcd, p, []regalloc.VReg{addr}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectStore(mcd *mc.MachineCode, addr regalloc.VReg, offset int64, val regalloc.VReg, typ *ir.Type) {
	p := &obj.Prog{As: arm64.AMOVD, To: obj.Addr{Type: obj.TYPE_MEM, Offset: offset}}
	m.emit(mcd, p, []regalloc.VReg{val, addr}, nil)
}

func (m *Machine) SelectMoveImmediate(mcd *mc.MachineCode, dst regalloc.VReg, c *ir.Constant) {
	p := &obj.Prog{As: arm64.AMOVD, From: obj.Addr{Type: obj.TYPE_CONST, Offset: int64(c.Int)}}
	m.emit(mcd, p, nil, []regalloc.VReg{dst})
}

func (m *Machine) SelectBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, sizeOf(typ))
	p := &obj.Prog{As: binOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{lhs, rhs}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectFBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassFPR, sizeOf(typ))
	p := &obj.Prog{As: fBinOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{lhs, rhs}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectCmp(mcd *mc.MachineCode, op ir.CmpOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 1)
	p := &obj.Prog{As: arm64.ACMP}
	m.emit(mcd, p, []regalloc.VReg{lhs, rhs}, nil)
	setp := &obj.Prog{As: condSetOpcode(op)}
	m.emit(mcd, setp, nil, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectConv(mcd *mc.MachineCode, op ir.ConvOp, src regalloc.VReg, from, to *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(classOf(to), sizeOf(to))
	p := &obj.Prog{As: convOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{src}, []regalloc.VReg{dst})
	return dst
}

// SelectSelect lowers a ternary into a CMP-against-zero/CSEL pair, mirroring
// condSetOpcode's choice to not model arm64 condition-code operands
// explicitly: the comparison is always "not equal".
func (m *Machine) SelectSelect(mcd *mc.MachineCode, cond, ifTrue, ifFalse regalloc.VReg, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(classOf(typ), sizeOf(typ))
	cmp := &obj.Prog{As: arm64.ACMP, From: obj.Addr{Type: obj.TYPE_CONST, Offset: 0}}
	m.emit(mcd, cmp, []regalloc.VReg{cond}, nil)
	p := &obj.Prog{As: arm64.ACSEL}
	m.emit(mcd, p, []regalloc.VReg{ifTrue, ifFalse}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectBranch(mcd *mc.MachineCode, cond regalloc.VReg, target, fallthru string) {
	p := &obj.Prog{As: arm64.ACBNZ}
	mcd.Records = append(mcd.Records, mc.NewBranch(p, target, mc.ASMLocation{}, vregIDs([]regalloc.VReg{cond})))
	_ = fallthru
}

func (m *Machine) SelectJump(mcd *mc.MachineCode, target string) {
	p := &obj.Prog{As: arm64.AB}
	mcd.Records = append(mcd.Records, mc.NewBranch(p, target, mc.ASMLocation{}, nil))
}

// SelectCall classifies argTypes/rets through the shared AAPCS64
// FunctionABI so a call past the eight-integer-register budget correctly
// spills the overflow to the outgoing stack area instead of silently
// dropping it.
func (m *Machine) SelectCall(mcd *mc.MachineCode, target string, argTypes []*ir.Type, args []regalloc.VReg, rets []*ir.Type) []regalloc.VReg {
	m.abi.Init(&ir.FuncSig{Args: argTypes, Rets: rets})
	for i, a := range m.abi.Args {
		switch a.Kind {
		case backend.ABIArgKindReg:
			m.InsertMove(mcd, a.Reg, args[i])
		case backend.ABIArgKindStack:
			p := &obj.Prog{As: arm64.AMOVD, To: obj.Addr{Type: obj.TYPE_MEM, Reg: toObjReg(RegSP), Offset: a.Offset}}
			m.emit(mcd, p, []regalloc.VReg{args[i], regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}, nil)
		}
	}
	p := &obj.Prog{As: arm64.ABL}
	mcd.Records = append(mcd.Records, mc.NewBranch(p, target, mc.ASMLocation{}, nil))
	out := make([]regalloc.VReg, len(rets))
	for i, t := range rets {
		out[i] = mcd.AllocVReg(classOf(t), sizeOf(t))
		switch i {
		case 0:
			m.InsertMove(mcd, out[i], regalloc.FromRealReg(RegX0, classOf(t)))
		case 1:
			m.InsertMove(mcd, out[i], regalloc.FromRealReg(RegX1, classOf(t)))
		}
	}
	return out
}

func (m *Machine) SelectReturn(mcd *mc.MachineCode, vals []regalloc.VReg) {
	if len(vals) > 0 {
		m.InsertMove(mcd, regalloc.FromRealReg(RegX0, vals[0].Class()), vals[0])
	}
	if len(vals) > 1 {
		m.InsertMove(mcd, regalloc.FromRealReg(RegX1, vals[1].Class()), vals[1])
	}
	m.Epilogue(mcd)
	p := &obj.Prog{As: obj.ARET}
	m.emit(mcd, p, nil, nil)
}

func (m *Machine) SelectAllocA(mcd *mc.MachineCode, typ *ir.Type) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	slot := mcd.Frame.AllocateSlot(sizeOf(typ))
	p := &obj.Prog{As: arm64.AADD, From: obj.Addr{Type: obj.TYPE_CONST, Offset: int64(mcd.Frame.SpillSlots[slot].Offset)}}
	m.emit(mcd, p, nil, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectGetFieldIRef(mcd *mc.MachineCode, base regalloc.VReg, fieldOffset int64) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: arm64.AADD, From: obj.Addr{Type: obj.TYPE_CONST, Offset: fieldOffset}}
	m.emit(mcd, p, []regalloc.VReg{base}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectGetElementIRef(mcd *mc.MachineCode, base, index regalloc.VReg, elemSize int64) regalloc.VReg {
	scaled := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	mulp := &obj.Prog{As: arm64.AMUL, From: obj.Addr{Type: obj.TYPE_CONST, Offset: elemSize}}
	m.emit(mcd, mulp, []regalloc.VReg{index}, []regalloc.VReg{scaled})
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	addp := &obj.Prog{As: arm64.AADD}
	m.emit(mcd, addp, []regalloc.VReg{base, scaled}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) SelectCFIDirective(mcd *mc.MachineCode, kind string, value int64) {
	mcd.Records = append(mcd.Records, mc.NewSymbolic(fmt.Sprintf(".cfi_%s(%d)", kind, value), mc.ASMLocation{}))
}

func (m *Machine) SelectCmpXchg(mcd *mc.MachineCode, addr, expected, desired regalloc.VReg, order ir.MemoryOrder) (old, success regalloc.VReg) {
	old = mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: arm64.ACASAL}
	m.emit(mcd, p, []regalloc.VReg{addr, expected, desired}, []regalloc.VReg{old})
	success = mcd.AllocVReg(regalloc.RegClassGPR, 1)
	setp := &obj.Prog{As: arm64.ACSET}
	m.emit(mcd, setp, nil, []regalloc.VReg{success})
	return old, success
}

func (m *Machine) SelectAtomicRMW(mcd *mc.MachineCode, op ir.AtomicRMWOp, addr, operand regalloc.VReg, order ir.MemoryOrder) regalloc.VReg {
	dst := mcd.AllocVReg(regalloc.RegClassGPR, 8)
	p := &obj.Prog{As: rmwOpcode(op)}
	m.emit(mcd, p, []regalloc.VReg{addr, operand}, []regalloc.VReg{dst})
	return dst
}

func (m *Machine) InsertMove(mcd *mc.MachineCode, dst, src regalloc.VReg) {
	as := arm64.AMOVD
	if dst.Class() == regalloc.RegClassFPR {
		as = arm64.AFMOVD
	}
	p := &obj.Prog{As: as}
	m.emit(mcd, p, []regalloc.VReg{src}, []regalloc.VReg{dst})
}

func (m *Machine) Prologue(mcd *mc.MachineCode) {
	p := &obj.Prog{As: arm64.ASTP}
	m.emit(mcd, p, []regalloc.VReg{regalloc.FromRealReg(RegFP, regalloc.RegClassGPR), regalloc.FromRealReg(RegLR, regalloc.RegClassGPR)}, nil)
	mov := &obj.Prog{As: arm64.AMOVD}
	m.emit(mcd, mov, []regalloc.VReg{regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}, []regalloc.VReg{regalloc.FromRealReg(RegFP, regalloc.RegClassGPR)})
	sub := &obj.Prog{As: arm64.ASUB, From: obj.Addr{Type: obj.TYPE_CONST}}
	rec := mc.NewInstruction(sub, mc.ASMLocation{}, nil, vregIDs([]regalloc.VReg{regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}))
	rec.MarkFrameSizeSlot()
	mcd.Records = append(mcd.Records, rec)
}

// SelectEntryParams unloads types through the same AAPCS64 classification
// SelectCall's outgoing side uses: register-class params are moved out of
// their precolored arg register, stack-class params are loaded from
// [FP+16+offset] (8 for the saved link register, 8 for the saved frame
// pointer STP'd in Prologue).
func (m *Machine) SelectEntryParams(mcd *mc.MachineCode, types []*ir.Type) []regalloc.VReg {
	m.abi.Init(&ir.FuncSig{Args: types})
	out := make([]regalloc.VReg, len(types))
	for i, a := range m.abi.Args {
		dst := mcd.AllocVReg(classOf(a.Type), sizeOf(a.Type))
		switch a.Kind {
		case backend.ABIArgKindReg:
			m.InsertMove(mcd, dst, a.Reg)
		case backend.ABIArgKindStack:
			p := &obj.Prog{As: arm64.AMOVD, From: obj.Addr{Type: obj.TYPE_MEM, Reg: toObjReg(RegFP), Offset: 16 + a.Offset}}
			m.emit(mcd, p, nil, []regalloc.VReg{dst})
		}
		out[i] = dst
	}
	return out
}

func (m *Machine) Epilogue(mcd *mc.MachineCode) {
	add := &obj.Prog{As: arm64.AADD, From: obj.Addr{Type: obj.TYPE_CONST}}
	addRec := mc.NewInstruction(add, mc.ASMLocation{}, nil, vregIDs([]regalloc.VReg{regalloc.FromRealReg(RegSP, regalloc.RegClassGPR)}))
	addRec.MarkFrameSizeSlot()
	mcd.Records = append(mcd.Records, addRec)
	p := &obj.Prog{As: arm64.ALDP}
	m.emit(mcd, p, nil, []regalloc.VReg{regalloc.FromRealReg(RegFP, regalloc.RegClassGPR), regalloc.FromRealReg(RegLR, regalloc.RegClassGPR)})
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
		return arm64.ASUB
	case ir.BinOpMul:
		return arm64.AMUL
	case ir.BinOpAnd:
		return arm64.AAND
	case ir.BinOpOr:
		return arm64.AORR
	case ir.BinOpXor:
		return arm64.AEOR
	case ir.BinOpShl:
		return arm64.ALSL
	case ir.BinOpLShr:
		return arm64.ALSR
	case ir.BinOpAShr:
		return arm64.AASR
	default:
		return arm64.AADD
	}
}

func fBinOpcode(op ir.BinOp) obj.As {
	switch op {
	case ir.FBinOpFSub:
		return arm64.AFSUBD
	case ir.FBinOpFMul:
		return arm64.AFMULD
	case ir.FBinOpFDiv:
		return arm64.AFDIVD
	default:
		return arm64.AFADDD
	}
}

func convOpcode(op ir.ConvOp) obj.As {
	switch op {
	case ir.ConvFPTrunc, ir.ConvFPExt:
		return arm64.AFCVTSD
	case ir.ConvSIToFP, ir.ConvUIToFP:
		return arm64.ASCVTFD
	case ir.ConvFPToSI, ir.ConvFPToUI:
		return arm64.AFCVTZSD
	default:
		return arm64.AMOVD
	}
}

func condSetOpcode(op ir.CmpOp) obj.As {
	return arm64.ACSET
}

func rmwOpcode(op ir.AtomicRMWOp) obj.As {
	switch op {
	case ir.AtomicRMWAdd:
		return arm64.ALDADDAL
	case ir.AtomicRMWOr:
		return arm64.ALDORAL
	case ir.AtomicRMWXor:
		return arm64.ALDEORAL
	default:
		return arm64.ALDADDAL
	}
}
