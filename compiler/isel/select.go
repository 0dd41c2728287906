package isel

import (
	"fmt"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// Select runs instruction selection over fv (spec.md §4.3), which must
// already have had tree generation and control-flow analysis run over it,
// and returns the resulting MachineCode with virtual (uncolored) registers.
// Grounded on the teacher's Machine.LowerInstr loop (backend/compiler.go),
// which walks each block's instructions in reverse emitting into a growing
// instruction list; here the walk is forward since this module folds
// operand subtrees explicitly instead of relying on emission order to
// express def-before-use implicitly.
func Select(fv *ir.FunctionVersion, cg CodeGenerator, insts *ir.CommonInstTable) (*mc.MachineCode, error) {
	s := &selector{
		fv:     fv,
		cg:     cg,
		insts:  insts,
		mcd:    mc.New(fv.Display(), cg.RegisterInfo(), mc.NewFrame(16)),
		values: make(map[ir.ValueID]regalloc.VReg),
	}

	order := blockOrder(fv)
	s.mcd.BlockList = make([]*mc.BlockRange, 0, len(order))
	depths := loopDepths(fv)

	cg.Prologue(s.mcd)
	if entry := fv.EntryBlock(); entry != nil && len(entry.Params) > 0 {
		types := make([]*ir.Type, len(entry.Params))
		for i, p := range entry.Params {
			types[i] = p.Type()
		}
		paramVRegs := cg.SelectEntryParams(s.mcd, types)
		for i, p := range entry.Params {
			if p.Kind == ir.ValueKindSSAVar {
				s.values[p.SSA] = paramVRegs[i]
			}
		}
	}
	for i, blk := range order {
		start := len(s.mcd.Records)
		s.mcd.Records = append(s.mcd.Records, mc.NewSymbolic(blk.Name(), mc.ASMLocation{}))
		for _, inst := range blk.Instructions() {
			if err := s.lower(inst); err != nil {
				return nil, fmt.Errorf("selecting %s: %w", inst.Display(), err)
			}
		}
		br := &mc.BlockRange{ID: int(blk.ID()), Start: start, End: len(s.mcd.Records)}
		br.SetEntry(i == 0)
		br.SetLoopDepth(depths[blk.ID()])
		if cfg := blk.CFG; cfg != nil {
			for _, e := range cfg.Succs {
				br.AddSucc(int(e.Target.ID()))
			}
		}
		s.mcd.BlockList = append(s.mcd.BlockList, br)
	}
	cg.Epilogue(s.mcd)
	linkPreds(s.mcd.BlockList)

	return s.mcd, nil
}

func blockOrder(fv *ir.FunctionVersion) []*ir.Block {
	blocks := fv.Blocks()
	if len(fv.BlockTrace) > 0 {
		out := make([]*ir.Block, 0, len(fv.BlockTrace))
		seen := make(map[ir.ID]bool)
		for _, id := range fv.BlockTrace {
			if b, ok := blocks[id]; ok {
				out = append(out, b)
				seen[id] = true
			}
		}
		for id, b := range blocks {
			if !seen[id] {
				out = append(out, b)
			}
		}
		return out
	}
	out := make([]*ir.Block, 0, len(blocks))
	if entry := fv.EntryBlock(); entry != nil {
		out = append(out, entry)
	}
	for id, b := range blocks {
		if id != fv.EntryBlock().ID() {
			out = append(out, b)
		}
	}
	return out
}

// loopDepths resolves spec.md §9's open question ("loop depth estimate
// used by the spill-cost heuristic is absent from this specification") by
// defining a block's loop depth as the number of Backward-classified edges
// (per compiler.RunCFA) traversed along the shallowest path from the entry
// block, found by a BFS where a Backward edge costs 1 extra and a Forward
// edge costs 0.
func loopDepths(fv *ir.FunctionVersion) map[ir.ID]int {
	depths := make(map[ir.ID]int)
	entry := fv.EntryBlock()
	if entry == nil {
		return depths
	}
	depths[entry.ID()] = 0
	queue := []*ir.Block{entry}
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]
		if blk.CFG == nil {
			continue
		}
		d := depths[blk.ID()]
		for _, e := range blk.CFG.Succs {
			nd := d
			if e.Kind == ir.EdgeBackward {
				nd++
			}
			if prev, ok := depths[e.Target.ID()]; !ok || nd < prev {
				depths[e.Target.ID()] = nd
				queue = append(queue, e.Target)
			}
		}
	}
	return depths
}

func linkPreds(blocks []*mc.BlockRange) {
	byID := make(map[int]*mc.BlockRange, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	for _, b := range blocks {
		for _, sid := range b.Succs() {
			if succ, ok := byID[sid]; ok {
				succ.AddPred(b.ID)
			}
		}
	}
}

type selector struct {
	fv     *ir.FunctionVersion
	cg     CodeGenerator
	insts  *ir.CommonInstTable
	mcd    *mc.MachineCode
	values map[ir.ValueID]regalloc.VReg
}

// materialize resolves a TreeNode operand to a concrete VReg, recursing
// into folded instruction subtrees bottom-up and caching SSA values already
// computed this block.
func (s *selector) materialize(n *ir.TreeNode) (regalloc.VReg, error) {
	if n.Kind == ir.TreeNodeKindValue {
		return s.materializeValue(n.Val)
	}
	return s.lowerExpr(n.Inst)
}

func (s *selector) materializeValue(v ir.Value) (regalloc.VReg, error) {
	switch v.Kind {
	case ir.ValueKindSSAVar:
		if vr, ok := s.values[v.SSA]; ok {
			return vr, nil
		}
		return regalloc.VRegInvalid, fmt.Errorf("use of %%v%d before definition", v.SSA)
	case ir.ValueKindConstant:
		size := typeSize(v.Typ)
		class := typeClass(v.Typ)
		dst := s.mcd.AllocVReg(class, size)
		s.cg.SelectMoveImmediate(s.mcd, dst, v.Const)
		return dst, nil
	default:
		size := typeSize(v.Typ)
		dst := s.mcd.AllocVReg(regalloc.RegClassGPR, size)
		return dst, nil
	}
}

// materializeAll resolves every operand in ops, in order, short-circuiting
// on the first error.
func (s *selector) materializeAll(ops []*ir.TreeNode) ([]regalloc.VReg, error) {
	out := make([]regalloc.VReg, len(ops))
	for i, op := range ops {
		v, err := s.materialize(op)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// lowerCommonInst resolves inst's wire opcode through the per-Registry
// CommonInstTable threaded into Select and lowers it as a call to the
// descriptor's RuntimeSym, since every common instruction dispatches to
// GC/runtime-provided code (spec.md §1).
func (s *selector) lowerCommonInst(inst *ir.Instruction) (regalloc.VReg, error) {
	if s.insts == nil {
		return regalloc.VRegInvalid, fmt.Errorf("common instruction %v: no CommonInstTable available", inst.CommonOp)
	}
	d, err := s.insts.Lookup(inst.CommonOp)
	if err != nil {
		return regalloc.VRegInvalid, err
	}
	ops := inst.Ops()
	args, err := s.materializeAll(ops)
	if err != nil {
		return regalloc.VRegInvalid, err
	}
	rets := s.cg.SelectCall(s.mcd, d.RuntimeSym, argTypesOf(ops), args, retTypes(inst))
	if len(rets) > 0 {
		return rets[0], nil
	}
	return regalloc.VRegInvalid, nil
}

// lower dispatches one top-level (non-folded) instruction, whether it
// produces a value, has a side effect, or is a block terminator.
func (s *selector) lower(inst *ir.Instruction) error {
	if inst.IsTerminalInst() {
		return s.lowerTerminal(inst)
	}
	vr, err := s.lowerExpr(inst)
	if err != nil {
		return err
	}
	if ret := inst.Return(); ret.Valid() && ret.Kind == ir.ValueKindSSAVar {
		s.values[ret.SSA] = vr
	}
	return nil
}

// lowerExpr emits code for a non-terminal instruction (folded or
// top-level) and returns the VReg holding its result.
func (s *selector) lowerExpr(inst *ir.Instruction) (regalloc.VReg, error) {
	ops := inst.Ops()
	switch inst.Opcode() {
	case ir.OpcodeBinOp:
		lhs, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		rhs, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectBinOp(s.mcd, inst.BinOp, lhs, rhs, inst.Return().Type()), nil

	case ir.OpcodeFBinOp:
		lhs, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		rhs, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectFBinOp(s.mcd, inst.BinOp, lhs, rhs, inst.Return().Type()), nil

	case ir.OpcodeCmp:
		lhs, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		rhs, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectCmp(s.mcd, inst.CmpOp, lhs, rhs, ops[0].LeafValue().Type()), nil

	case ir.OpcodeConv:
		src, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectConv(s.mcd, inst.ConvOp, src, ops[0].LeafValue().Type(), inst.Return().Type()), nil

	case ir.OpcodeLoad:
		addr, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectLoad(s.mcd, addr, 0, inst.Return().Type()), nil

	case ir.OpcodeStore:
		addr, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		val, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		s.cg.SelectStore(s.mcd, addr, 0, val, ops[1].LeafValue().Type())
		return regalloc.VRegInvalid, nil

	case ir.OpcodeAllocA, ir.OpcodeAllocAHybrid, ir.OpcodeNew, ir.OpcodeNewHybrid:
		return s.cg.SelectAllocA(s.mcd, inst.Return().Type()), nil

	case ir.OpcodeGetFieldIRef:
		base, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectGetFieldIRef(s.mcd, base, int64(inst.FieldIndex)*8), nil

	case ir.OpcodeGetElementIRef, ir.OpcodeShiftIRef:
		base, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		idx, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectGetElementIRef(s.mcd, base, idx, 8), nil

	case ir.OpcodeGetIRef, ir.OpcodeGetVarPartIRef:
		return s.materialize(ops[0])

	case ir.OpcodeMove:
		src, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		dst := s.mcd.AllocVReg(src.Class(), typeSize(inst.Return().Type()))
		s.cg.InsertMove(s.mcd, dst, src)
		return dst, nil

	case ir.OpcodeCmpXchg:
		addr, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		expected, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		desired, err := s.materialize(ops[2])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		old, _ := s.cg.SelectCmpXchg(s.mcd, addr, expected, desired, inst.Order)
		return old, nil

	case ir.OpcodeAtomicRMW:
		addr, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		operand, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectAtomicRMW(s.mcd, inst.RMWOp, addr, operand, inst.Order), nil

	case ir.OpcodeFence:
		s.cg.SelectCFIDirective(s.mcd, "fence", 0)
		return regalloc.VRegInvalid, nil

	case ir.OpcodeSelect:
		cond, err := s.materialize(ops[0])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		ifTrue, err := s.materialize(ops[1])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		ifFalse, err := s.materialize(ops[2])
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		return s.cg.SelectSelect(s.mcd, cond, ifTrue, ifFalse, inst.Return().Type()), nil

	case ir.OpcodeCommonInst:
		return s.lowerCommonInst(inst)

	case ir.OpcodePrintHex:
		args, err := s.materializeAll(ops)
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		rets := s.cg.SelectCall(s.mcd, "__mu_print_hex", argTypesOf(ops), args, nil)
		_ = rets
		return regalloc.VRegInvalid, nil

	case ir.OpcodeExprCall, ir.OpcodeExprCCall:
		args, err := s.materializeAll(ops)
		if err != nil {
			return regalloc.VRegInvalid, err
		}
		rets := s.cg.SelectCall(s.mcd, callTargetName(inst), argTypesOf(ops), args, retTypes(inst))
		if len(rets) > 0 {
			return rets[0], nil
		}
		return regalloc.VRegInvalid, nil

	default:
		return regalloc.VRegInvalid, fmt.Errorf("unsupported non-terminal opcode %v", inst.Opcode())
	}
}

// lowerTerminal emits the control-flow-transferring tail instruction of a
// block, per the opcode-to-edge mapping spec.md §4.2 CFA already computed.
func (s *selector) lowerTerminal(inst *ir.Instruction) error {
	ops := inst.Ops()
	switch inst.Opcode() {
	case ir.OpcodeReturn:
		vals := make([]regalloc.VReg, len(ops))
		for i, op := range ops {
			v, err := s.materialize(op)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		s.cg.SelectReturn(s.mcd, vals)
		return nil

	case ir.OpcodeBranch1:
		s.cg.SelectJump(s.mcd, inst.Dests()[0].Target.Name())
		return nil

	case ir.OpcodeBranch2:
		if cmp, ok := matchCmpRes(ops[0]); ok {
			lhs, err := s.materialize(cmp.Ops()[0])
			if err != nil {
				return err
			}
			rhs, err := s.materialize(cmp.Ops()[1])
			if err != nil {
				return err
			}
			cond := s.cg.SelectCmp(s.mcd, cmp.CmpOp, lhs, rhs, cmp.Ops()[0].LeafValue().Type())
			s.cg.SelectBranch(s.mcd, cond, inst.Dests()[0].Target.Name(), inst.Dests()[1].Target.Name())
			return nil
		}
		cond, err := s.materialize(ops[0])
		if err != nil {
			return err
		}
		s.cg.SelectBranch(s.mcd, cond, inst.Dests()[0].Target.Name(), inst.Dests()[1].Target.Name())
		return nil

	case ir.OpcodeCall, ir.OpcodeCCall, ir.OpcodeTailCall, ir.OpcodeSwapStack, ir.OpcodeExnInstruction:
		args, err := s.materializeAll(ops)
		if err != nil {
			return err
		}
		start := len(s.mcd.Records)
		rets := s.cg.SelectCall(s.mcd, callTargetName(inst), argTypesOf(ops), args, retTypes(inst))
		if exc := inst.ExcDest(); exc != nil {
			for i := start; i < len(s.mcd.Records); i++ {
				if s.mcd.Records[i].Kind == mc.RecordBranch {
					s.mcd.Frame.AddExceptionCallsite(i, exc.Target.Name())
					break
				}
			}
		}
		for _, d := range inst.Dests() {
			s.cg.SelectJump(s.mcd, d.Target.Name())
		}
		_ = rets
		return nil

	case ir.OpcodeSwitch, ir.OpcodeWatchpoint, ir.OpcodeWPBranch:
		if len(inst.Dests()) > 0 {
			s.cg.SelectJump(s.mcd, inst.Dests()[0].Target.Name())
		}
		return nil

	case ir.OpcodeThrow, ir.OpcodeThreadExit:
		s.cg.SelectCFIDirective(s.mcd, "abort", 0)
		return nil

	default:
		return fmt.Errorf("unsupported terminal opcode %v", inst.Opcode())
	}
}

func callTargetName(inst *ir.Instruction) string {
	return fmt.Sprintf("func#%d", inst.CalleeFunc)
}

func argTypesOf(ops []*ir.TreeNode) []*ir.Type {
	out := make([]*ir.Type, len(ops))
	for i, op := range ops {
		out[i] = op.LeafValue().Type()
	}
	return out
}

func retTypes(inst *ir.Instruction) []*ir.Type {
	res := inst.Results()
	out := make([]*ir.Type, len(res))
	for i, r := range res {
		out[i] = r.Type()
	}
	return out
}

func typeSize(t *ir.Type) int {
	if t == nil {
		return 8
	}
	switch t.Kind {
	case ir.TypeKindInt:
		return int((t.IntWidth + 7) / 8)
	case ir.TypeKindFloat:
		return 4
	case ir.TypeKindDouble:
		return 8
	default:
		return 8
	}
}

func typeClass(t *ir.Type) regalloc.RegClass {
	if t != nil && (t.Kind == ir.TypeKindFloat || t.Kind == ir.TypeKindDouble) {
		return regalloc.RegClassFPR
	}
	return regalloc.RegClassGPR
}
