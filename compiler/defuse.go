package compiler

import "github.com/jstnlef/zebu-vm-sub001/ir"

// DefUsePass walks every instruction's operand tree and increments the
// use_count of every referenced SSA variable's SSAVarEntry (spec.md §4.2
// "Def–use").
type DefUsePass struct{ NoopHooks }

func (DefUsePass) VisitBlock(fv *ir.FunctionVersion, blk *ir.Block) {
	for inst := blk.Root(); inst != nil; inst = inst.Next() {
		countOperandUses(fv, inst)
	}
}

func countOperandUses(fv *ir.FunctionVersion, inst *ir.Instruction) {
	for _, op := range inst.Ops() {
		countTreeNodeUses(fv, op)
	}
}

// countTreeNodeUses recurses into folded instruction subtrees so that a use
// buried several levels deep in an already-folded tree (produced by a prior
// compilation of the same function version, or by a pass that runs
// def-use twice) is still counted once per occurrence.
func countTreeNodeUses(fv *ir.FunctionVersion, n *ir.TreeNode) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ir.TreeNodeKindValue:
		v := n.Val
		if v.Kind == ir.ValueKindSSAVar {
			if e := fv.Context.Entry(v.SSA); e != nil {
				e.IncUse()
			}
		}
	case ir.TreeNodeKindInstruction:
		countOperandUses(fv, n.Inst)
	}
}

// RunDefUse runs the def-use pass over fv.
func RunDefUse(fv *ir.FunctionVersion) { runPass(DefUsePass{}, fv) }
