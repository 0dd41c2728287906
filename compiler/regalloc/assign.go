package regalloc

// ApplyColors writes a completed (non-spilling) Result back into fn: every
// instruction's uncolored Defs/Uses are rewritten to the VReg the
// allocator chose via AssignDefs/AssignUses, leaving already-precolored
// operands (ABI-fixed registers) untouched. Grounded on spec.md §4.6's
// assign_colors step, split out from Allocate itself so a caller can
// inspect Result.Spilled and run RewriteSpills before ever touching the
// function when a round fails to color.
func ApplyColors(fn Function, result *Result) {
	for _, blk := range fn.Blocks() {
		for _, instr := range blk.Instrs() {
			instr.AssignDefs(resolve(instr.Defs(), result))
			instr.AssignUses(resolve(instr.Uses(), result))
		}
	}
}

func resolve(vs []VReg, result *Result) []VReg {
	out := make([]VReg, len(vs))
	for i, v := range vs {
		if v.IsRealReg() {
			out[i] = v
			continue
		}
		if r, ok := result.Colors[v.ID()]; ok {
			out[i] = v.SetRealReg(r)
			continue
		}
		out[i] = v
	}
	return out
}
