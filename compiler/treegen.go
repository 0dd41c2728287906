package compiler

import "github.com/jstnlef/zebu-vm-sub001/ir"

// TreeGenPass builds the expression trees instruction selection consumes:
// for each block, instructions are walked bottom-up and a pure
// (!HasSideEffect), exactly-once-used instruction is absorbed as a folded
// TreeNode child of its unique user, provided the def and the use are in
// the same block (spec.md §4.2 "Tree generation"). TreeGenPass must run
// after DefUsePass, since it relies on SSAVarEntry.UseCount.
type TreeGenPass struct{ NoopHooks }

func (TreeGenPass) VisitBlock(fv *ir.FunctionVersion, blk *ir.Block) {
	// Bottom-up: start from the tail (the terminal) and walk backwards via
	// Prev(), so that a value's use is visited before its own definition is
	// considered for folding into some *other* earlier use — matching the
	// teacher's bottom-up tree-generation walk.
	for inst := blk.Tail(); inst != nil; inst = inst.Prev() {
		foldOperands(fv, blk, inst)
	}
}

func foldOperands(fv *ir.FunctionVersion, blk *ir.Block, inst *ir.Instruction) {
	ops := inst.Ops()
	for idx, op := range ops {
		if op == nil || op.Kind != ir.TreeNodeKindValue {
			continue
		}
		v := op.Val
		if v.Kind != ir.ValueKindSSAVar {
			continue
		}
		entry := fv.Context.Entry(v.SSA)
		if entry == nil || entry.FoldedInto != nil {
			continue
		}
		def := entry.Def
		// Only instruction-defined values (not block params, not already a
		// Global/Constant materialization) are foldable.
		if def.Kind != ir.ValueKindSSAVar {
			continue
		}
		defInst := findDefiningInstruction(blk, v.SSA)
		if defInst == nil || defInst.Block() != blk {
			continue // crosses a block boundary; spec.md §4.2 forbids folding across blocks.
		}
		if defInst.HasSideEffect() || entry.UseCount() != 1 {
			continue
		}
		entry.FoldedInto = defInst
		inst.ReplaceOp(idx, ir.NewInstTreeNode(defInst))
	}
}

// findDefiningInstruction locates the instruction within blk whose Return()
// equals the given ValueID. Blocks are typically small (a handful to a few
// dozen instructions), so a linear scan here is simpler and cache-friendlier
// than threading a ValueID->Instruction index through tree generation for a
// lookup that only fires once per candidate fold.
func findDefiningInstruction(blk *ir.Block, id ir.ValueID) *ir.Instruction {
	for inst := blk.Root(); inst != nil; inst = inst.Next() {
		for _, r := range inst.Results() {
			if r.Kind == ir.ValueKindSSAVar && r.SSA == id {
				return inst
			}
		}
	}
	return nil
}

// RunTreeGen runs tree generation over fv. Callers must have already run
// RunDefUse.
func RunTreeGen(fv *ir.FunctionVersion) { runPass(TreeGenPass{}, fv) }
