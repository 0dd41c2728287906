// Package compiler implements the pass framework and the per-function-
// version analyses of spec.md §4.2: def-use counting, tree generation,
// control-flow analysis, and trace generation. Instruction selection,
// register allocation, peephole, and code emission are separate packages
// (compiler/isel, compiler/regalloc, compiler/peephole, compiler/emit)
// driven by the Compile function in driver.go, which calls each stage
// directly in a fixed order, grounded on the teacher's builder.RunPasses
// (ssa/pass.go). There is no reified pass list: the GoBackTo type is
// declared here, but no stage returns it and Compile does not check for it.
package compiler

import (
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// Stage names one step of the compiler pipeline described in spec.md §2.
type Stage int

const (
	StageDefUse Stage = iota
	StageTreeGen
	StageCFA
	StageTraceGen
	StageInstSelect
	StageRegAlloc
	StagePeephole
	StageEmit
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageDefUse:
		return "def-use"
	case StageTreeGen:
		return "tree-gen"
	case StageCFA:
		return "cfa"
	case StageTraceGen:
		return "trace-gen"
	case StageInstSelect:
		return "inst-select"
	case StageRegAlloc:
		return "reg-alloc"
	case StagePeephole:
		return "peephole"
	case StageEmit:
		return "emit"
	default:
		return "?"
	}
}

// Pass implements the three hooks spec.md §4.2 describes: start, visit, and
// finish. The visit hook is per block (VisitBlock); a pass that needs each
// instruction walks the block's instructions itself. Passes that only need
// VisitBlock rely on the default no-op Start/Finish by embedding NoopHooks.
type Pass interface {
	StartFunction(fv *ir.FunctionVersion)
	VisitBlock(fv *ir.FunctionVersion, blk *ir.Block)
	FinishFunction(fv *ir.FunctionVersion)
}

// NoopHooks supplies default no-op Start/Finish implementations; analyses
// that only care about VisitBlock embed it.
type NoopHooks struct{}

func (NoopHooks) StartFunction(*ir.FunctionVersion) {}
func (NoopHooks) FinishFunction(*ir.FunctionVersion) {}

// GoBackTo names an earlier Stage to resume the pipeline from instead of
// advancing. No stage in this module returns it: after spill rewriting,
// Compile runs register allocation again in its own loop.
type GoBackTo struct{ Target Stage }

func (g GoBackTo) Error() string { return "go back to " + g.Target.String() }

// runPass calls p.StartFunction, then p.VisitBlock once per block in map
// order, then p.FinishFunction. The teacher's default visit_function also
// iterates blocks in map order, but calls a separate visit_inst per
// instruction; here there is no per-instruction hook, and VisitBlock walks
// the block's instructions itself where a pass needs them.
func runPass(p Pass, fv *ir.FunctionVersion) {
	p.StartFunction(fv)
	if fv.Content != nil {
		for _, blk := range fv.Content.Blocks {
			p.VisitBlock(fv, blk)
		}
	}
	p.FinishFunction(fv)
}
