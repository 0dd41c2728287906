package compiler

import "github.com/jstnlef/zebu-vm-sub001/ir"

// RunTraceGen performs greedy hot-trace linearisation (spec.md §4.2 "Trace
// generation"): starting at the entry block, repeatedly extend the trace
// along the hottest not-yet-traced successor, pushing the colder successors
// onto a worklist; when a trace runs out (falls through to a terminal with
// no un-traced hot successor), pop the worklist. Requires RunCFA to have
// populated blk.CFG.Succs first.
func RunTraceGen(fv *ir.FunctionVersion) {
	if fv.Content == nil {
		return
	}
	entry := fv.EntryBlock()
	if entry == nil {
		return
	}

	traced := map[ir.ID]bool{}
	var trace []ir.ID
	var worklist []*ir.Block

	cur := entry
	for cur != nil {
		if traced[cur.ID()] {
			cur = popWorklist(&worklist, traced)
			continue
		}
		traced[cur.ID()] = true
		trace = append(trace, cur.ID())

		hottest, cold := pickHottestSuccessor(cur, traced)
		for _, c := range cold {
			worklist = append(worklist, c)
		}
		if hottest != nil {
			cur = hottest
		} else {
			cur = popWorklist(&worklist, traced)
		}
	}

	fv.BlockTrace = trace
}

// pickHottestSuccessor returns the highest-probability successor not
// already traced, plus the remaining (colder) successors to push onto the
// worklist.
func pickHottestSuccessor(blk *ir.Block, traced map[ir.ID]bool) (*ir.Block, []*ir.Block) {
	if blk.CFG == nil || len(blk.CFG.Succs) == 0 {
		return nil, nil
	}
	var hottest *ir.Block
	hottestProb := -1.0
	var cold []*ir.Block
	for _, e := range blk.CFG.Succs {
		if traced[e.Target.ID()] {
			continue
		}
		if e.Probability > hottestProb {
			if hottest != nil {
				cold = append(cold, hottest)
			}
			hottest = e.Target
			hottestProb = e.Probability
		} else {
			cold = append(cold, e.Target)
		}
	}
	return hottest, cold
}

// popWorklist returns the next untraced block from the worklist (LIFO,
// matching the teacher's block-layout worklist discipline), skipping blocks
// that became traced in the meantime via some other path.
func popWorklist(worklist *[]*ir.Block, traced map[ir.ID]bool) *ir.Block {
	w := *worklist
	for len(w) > 0 {
		blk := w[len(w)-1]
		w = w[:len(w)-1]
		if !traced[blk.ID()] {
			*worklist = w
			return blk
		}
	}
	*worklist = w
	return nil
}
