package compiler

import "github.com/jstnlef/zebu-vm-sub001/ir"

// Edge probability constants from spec.md §4.2.
const (
	NormalResumeChance      = 0.6
	WatchpointDisabledChance = 0.9
)

// RunCFA performs the control-flow analysis pass: a DFS from the entry
// block, pushing onto a path stack so that an edge back to a block still on
// the stack is classified Backward (spec.md §4.2 "Control-flow analysis").
// Each block's ControlFlow.Succs is populated with per-edge probabilities
// derived from its terminal instruction's opcode, and Preds is populated
// reciprocally on the target.
func RunCFA(fv *ir.FunctionVersion) {
	if fv.Content == nil {
		return
	}
	entry := fv.EntryBlock()
	if entry == nil {
		return
	}
	for _, blk := range fv.Content.Blocks {
		blk.CFG = &ir.ControlFlow{}
	}

	onPath := map[ir.ID]bool{}
	visited := map[ir.ID]bool{}
	var path []ir.ID

	var dfs func(blk *ir.Block)
	dfs = func(blk *ir.Block) {
		if visited[blk.ID()] {
			return
		}
		visited[blk.ID()] = true
		onPath[blk.ID()] = true
		path = append(path, blk.ID())

		succs := terminalSuccessors(blk)
		blk.CFG.Succs = succs
		for _, e := range succs {
			kind := ir.EdgeForward
			if onPath[e.Target.ID()] {
				kind = ir.EdgeBackward
			}
			// Re-find the slice element to set Kind, since succs was built
			// by value above.
			for i := range blk.CFG.Succs {
				if blk.CFG.Succs[i].Target == e.Target {
					blk.CFG.Succs[i].Kind = kind
				}
			}
			e.Target.CFG.Preds = append(e.Target.CFG.Preds, blk)
			if kind == ir.EdgeForward {
				dfs(e.Target)
			}
		}

		onPath[blk.ID()] = false
		path = path[:len(path)-1]
	}
	dfs(entry)
}

// terminalSuccessors derives the successor edges and their probabilities
// from blk's terminal instruction, per the table in spec.md §4.2.
func terminalSuccessors(blk *ir.Block) []ir.Edge {
	term := blk.Tail()
	if term == nil {
		return nil
	}
	switch term.Opcode() {
	case ir.OpcodeBranch1:
		return []ir.Edge{{Target: term.Dests()[0].Target, Probability: 1}}

	case ir.OpcodeBranch2:
		p := term.BranchProb()
		dests := term.Dests()
		return []ir.Edge{
			{Target: dests[0].Target, Probability: p},
			{Target: dests[1].Target, Probability: 1 - p},
		}

	case ir.OpcodeSwitch:
		dests := term.Dests()
		caseProbs := term.CaseProbs()
		n := len(dests) - 1 // dests[0] is the default; dests[1:] are the cases.
		edges := make([]ir.Edge, 0, len(dests))
		sum := 0.0
		if caseProbs != nil {
			for i := 0; i < n; i++ {
				edges = append(edges, ir.Edge{Target: dests[i+1].Target, Probability: caseProbs[i]})
				sum += caseProbs[i]
			}
		} else if n > 0 {
			uniform := 1.0 / float64(n+1)
			for i := 0; i < n; i++ {
				edges = append(edges, ir.Edge{Target: dests[i+1].Target, Probability: uniform})
				sum += uniform
			}
		}
		edges = append(edges, ir.Edge{Target: dests[0].Target, Probability: 1 - sum})
		return edges

	case ir.OpcodeCall, ir.OpcodeSwapStack, ir.OpcodeExnInstruction:
		dests := term.Dests()
		edges := []ir.Edge{{Target: dests[0].Target, Probability: NormalResumeChance}}
		if exc := term.ExcDest(); exc != nil {
			edges = append(edges, ir.Edge{Target: exc.Target, Probability: 1 - NormalResumeChance, IsException: true})
		}
		return edges

	case ir.OpcodeWatchpoint:
		dests := term.Dests()
		remainder := 1 - WatchpointDisabledChance
		edges := []ir.Edge{{Target: dests[0].Target, Probability: WatchpointDisabledChance}}
		if len(dests) > 1 {
			edges = append(edges, ir.Edge{Target: dests[1].Target, Probability: remainder * NormalResumeChance})
		}
		if exc := term.ExcDest(); exc != nil {
			edges = append(edges, ir.Edge{Target: exc.Target, Probability: remainder * (1 - NormalResumeChance), IsException: true})
		}
		return edges

	case ir.OpcodeWPBranch:
		dests := term.Dests()
		return []ir.Edge{
			{Target: dests[0].Target, Probability: WatchpointDisabledChance},
			{Target: dests[1].Target, Probability: 1 - WatchpointDisabledChance},
		}

	case ir.OpcodeReturn, ir.OpcodeThreadExit, ir.OpcodeThrow, ir.OpcodeTailCall:
		return nil

	default:
		return nil
	}
}
