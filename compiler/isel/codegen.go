// Package isel implements tree-pattern instruction selection over the
// trees compiler.TreeGenPass folds (spec.md §4.5 "Instruction selection").
// Grounded on the teacher's backend.Machine interface (backend/machine.go),
// which is similarly organized as one method family per opcode category
// that a concrete ISA backend implements; here the families are spelled out
// as a CodeGenerator interface instead, since this module's instruction
// selector walks an explicit IR tree rather than wazero's SSA builder
// callback sequence.
package isel

import (
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// CodeGenerator is the architecture-specific contract instruction selection
// lowers against, grouped into families matching spec.md §4.3's
// instruction-family breakdown so an ISA backend (amd64, arm64) can
// implement exactly the subset of the machine it differs on and inherit
// shared scaffolding from backend.FunctionABI for the rest.
type CodeGenerator interface {
	RegisterInfo() *regalloc.RegisterInfo

	// Loads/stores.
	SelectLoad(mcd *mc.MachineCode, addr regalloc.VReg, offset int64, typ *ir.Type) regalloc.VReg
	SelectStore(mcd *mc.MachineCode, addr regalloc.VReg, offset int64, val regalloc.VReg, typ *ir.Type)
	// SelectMoveImmediate materializes a compile-time constant into dst.
	SelectMoveImmediate(mcd *mc.MachineCode, dst regalloc.VReg, c *ir.Constant)

	// Integer and floating-point arithmetic.
	SelectBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg
	SelectFBinOp(mcd *mc.MachineCode, op ir.BinOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg
	SelectCmp(mcd *mc.MachineCode, op ir.CmpOp, lhs, rhs regalloc.VReg, typ *ir.Type) regalloc.VReg
	SelectConv(mcd *mc.MachineCode, op ir.ConvOp, src regalloc.VReg, from, to *ir.Type) regalloc.VReg

	// Branches and calls.
	SelectBranch(mcd *mc.MachineCode, cond regalloc.VReg, target, fallthru string)
	SelectJump(mcd *mc.MachineCode, target string)
	SelectCall(mcd *mc.MachineCode, target string, argTypes []*ir.Type, args []regalloc.VReg, rets []*ir.Type) []regalloc.VReg
	SelectReturn(mcd *mc.MachineCode, vals []regalloc.VReg)
	// SelectSelect lowers a ternary (cond ? ifTrue : ifFalse) into a
	// conditional-move sequence; cond is nonzero/zero, not a flags register.
	SelectSelect(mcd *mc.MachineCode, cond, ifTrue, ifFalse regalloc.VReg, typ *ir.Type) regalloc.VReg

	// SelectEntryParams unloads typ's incoming ABI locations (argument
	// registers, or caller-pushed stack slots past the register budget)
	// into fresh VRegs, one per parameter in order, classified through the
	// same backend.FunctionABI the outgoing side of SelectCall uses. Called
	// once per function version right after Prologue.
	SelectEntryParams(mcd *mc.MachineCode, types []*ir.Type) []regalloc.VReg

	// Stack and address computation.
	SelectAllocA(mcd *mc.MachineCode, typ *ir.Type) regalloc.VReg
	SelectGetFieldIRef(mcd *mc.MachineCode, base regalloc.VReg, fieldOffset int64) regalloc.VReg
	SelectGetElementIRef(mcd *mc.MachineCode, base, index regalloc.VReg, elemSize int64) regalloc.VReg

	// Call-frame information / exception unwinding.
	SelectCFIDirective(mcd *mc.MachineCode, kind string, value int64)

	// Atomics.
	SelectCmpXchg(mcd *mc.MachineCode, addr, expected, desired regalloc.VReg, order ir.MemoryOrder) (old regalloc.VReg, success regalloc.VReg)
	SelectAtomicRMW(mcd *mc.MachineCode, op ir.AtomicRMWOp, addr, operand regalloc.VReg, order ir.MemoryOrder) regalloc.VReg

	// InsertMove emits a register-to-register move; must tag its obj.As
	// opcode with mc.SetMoveOpcodeTag during backend setup so
	// MachineCode.IsMove can recognize it post-selection.
	InsertMove(mcd *mc.MachineCode, dst, src regalloc.VReg)

	// Prologue/Epilogue synthesize the frame setup/teardown sequences.
	// Selected before the frame size is final (spill slots aren't assigned
	// until register allocation runs), so any stack-adjustment immediate
	// they emit must be built through mc.NewInstruction + Record's
	// MarkFrameSizeSlot and left for MachineCode.PatchFrameSize to fill in
	// once Frame.Finalize has run.
	Prologue(mcd *mc.MachineCode)
	Epilogue(mcd *mc.MachineCode)
}
