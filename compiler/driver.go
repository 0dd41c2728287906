package compiler

import (
	"fmt"

	"github.com/jstnlef/zebu-vm-sub001/compiler/isel"
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/compiler/peephole"
	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/internal/telemetry"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// maxRegAllocRounds bounds the spill-rewrite-and-retry loop of spec.md
// §4.6. Each round either finishes (Result.Spilled empty) or strictly
// grows the live set with at least one fresh, permanently unspillable
// temp per spilled VReg, so the loop provably terminates; this is a
// fail-fast backstop against a latent bug in spill-cost bookkeeping
// rather than a real limit the algorithm should ever approach.
const maxRegAllocRounds = 64

// Compile runs the full pipeline of spec.md §2 over fv: the four
// function-local analyses (def-use, tree generation, CFA, trace
// generation), instruction selection against cg, graph-coloring register
// allocation with a spill-rewrite-and-retry loop, the peephole cleanup
// pass, and frame finalization. Grounded on the teacher's
// Compiler.Compile (backend/compiler.go), which runs the same
// lower-then-allocate-then-finalize sequence over one ssa.Func at a time.
func Compile(fv *ir.FunctionVersion, cg isel.CodeGenerator, insts *ir.CommonInstTable) (*mc.MachineCode, error) {
	if !fv.Defined() {
		return nil, fmt.Errorf("compiling %s: function version has no body", fv.Display())
	}
	if err := fv.Validate(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", fv.Display(), err)
	}

	RunDefUse(fv)
	RunTreeGen(fv)
	RunCFA(fv)
	RunTraceGen(fv)

	mcd, err := isel.Select(fv, cg, insts)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", fv.Display(), err)
	}

	round := 0
	for {
		result := regalloc.Allocate(mcd)
		if len(result.Spilled) == 0 {
			regalloc.ApplyColors(mcd, result)
			break
		}
		round++
		if round > maxRegAllocRounds {
			panic(fmt.Sprintf("BUG: register allocation for %s did not converge after %d spill rounds", fv.Display(), maxRegAllocRounds))
		}
		telemetry.L().Sugar().Debugw("register allocation spilled, rewriting and retrying",
			"function", fv.Display(), "round", round, "spilled", len(result.Spilled))
		regalloc.RewriteSpills(mcd, result.Spilled)
	}

	mcd.Frame.Finalize()
	mcd.PatchFrameSize()
	peephole.Run(mcd)

	return mcd, nil
}
