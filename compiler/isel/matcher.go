package isel

import "github.com/jstnlef/zebu-vm-sub001/ir"

// These predicates classify a TreeNode leaf for the purposes of matching it
// against an addressing mode or immediate operand, mirroring the style of
// the teacher's lower_mem.go helpers (tryAddrModeFromAdd, and friends) that
// decide whether an SSA operand can fold directly into a machine addressing
// mode rather than materializing into a register first.

// matchIReg reports whether n is (or computes) an integer-register-sized
// value, the default fallback match for any operand.
func matchIReg(n *ir.TreeNode) bool {
	if n.Kind == ir.TreeNodeKindValue {
		t := n.LeafValue().Type()
		return t != nil && (t.Kind == ir.TypeKindInt || t.Kind == ir.TypeKindRef ||
			t.Kind == ir.TypeKindIRef || t.Kind == ir.TypeKindUPtr || t.Kind == ir.TypeKindWeakRef)
	}
	return true
}

// matchFPReg reports whether n produces a floating-point value.
func matchFPReg(n *ir.TreeNode) bool {
	if n.Kind == ir.TreeNodeKindValue {
		t := n.LeafValue().Type()
		return t != nil && (t.Kind == ir.TypeKindFloat || t.Kind == ir.TypeKindDouble)
	}
	if n.Kind == ir.TreeNodeKindInstruction {
		return n.Inst.Opcode() == ir.OpcodeFBinOp
	}
	return false
}

// matchIImm reports whether n is a foldable integer immediate, returning
// its value.
func matchIImm(n *ir.TreeNode) (uint64, bool) {
	if n.Kind != ir.TreeNodeKindValue {
		return 0, false
	}
	v := n.LeafValue()
	if v.Kind != ir.ValueKindConstant || v.Const == nil {
		return 0, false
	}
	if v.Const.Kind != ir.ConstantKindInt {
		return 0, false
	}
	return v.Const.Int, true
}

// matchMem reports whether n is a GetFieldIRef/GetElementIRef/ShiftIRef
// instruction tree that can fold into an addressing-mode operand rather
// than being materialized as a standalone address computation first.
func matchMem(n *ir.TreeNode) (*ir.Instruction, bool) {
	if n.Kind != ir.TreeNodeKindInstruction {
		return nil, false
	}
	switch n.Inst.Opcode() {
	case ir.OpcodeGetFieldIRef, ir.OpcodeGetElementIRef, ir.OpcodeShiftIRef:
		return n.Inst, true
	default:
		return nil, false
	}
}

// matchFuncrefConst reports whether n is a constant function reference
// usable directly as a direct-call target rather than loaded into a
// register first.
func matchFuncrefConst(n *ir.TreeNode) (ir.ID, bool) {
	if n.Kind != ir.TreeNodeKindValue {
		return 0, false
	}
	v := n.LeafValue()
	if v.Kind == ir.ValueKindConstant && v.Const != nil && v.Const.Kind == ir.ConstantKindFuncRef {
		return v.Const.FuncID, true
	}
	return 0, false
}

// matchCmpRes reports whether n is a Cmp/FCmp instruction whose boolean
// result can fold directly into a conditional branch's flags test instead
// of materializing a 0/1 value first.
func matchCmpRes(n *ir.TreeNode) (*ir.Instruction, bool) {
	if n.Kind != ir.TreeNodeKindInstruction {
		return nil, false
	}
	switch n.Inst.Opcode() {
	case ir.OpcodeCmp, ir.OpcodeFCmp:
		return n.Inst, true
	default:
		return nil, false
	}
}
