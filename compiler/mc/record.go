// Package mc models machine code as a sequence of ASM records built on top
// of golang-asm's obj.Prog/obj.Addr representation (spec.md §4.4 "Machine
// code model"), the same foundation the Go compiler's own backends use for
// generating native assembly. Grounded on the teacher's backend/machine.go
// Compiler.Encode path, which hands finished instructions to an
// architecture-specific encoder; here that encoder is golang-asm's
// obj.Link/obj.Prog machinery instead of a hand-rolled byte emitter, since
// nothing in the example pack implements its own encoder from scratch and
// golang-asm is the one library in the retrieved corpus built exactly for
// this job.
package mc

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
)

// ASMLocation records where in the original textual or generated source an
// ASM record originated, for diagnostics and for the optional .s emission
// step to annotate output with originating line/column/length.
type ASMLocation struct {
	Line, Column, Length int
}

// RecordKind distinguishes the three shapes an ASM record can take.
type RecordKind uint8

const (
	RecordInvalid RecordKind = iota
	RecordSymbolic            // a label: the start of a basic block or function.
	RecordBranch              // a control-flow instruction targeting another RecordSymbolic.
	RecordInstruction         // any other machine instruction.
)

// Record is one emitted unit of machine code. Instruction/branch records
// wrap a golang-asm obj.Prog; symbolic records carry only a label name.
type Record struct {
	Kind RecordKind
	Loc  ASMLocation

	Label string   // valid when Kind == RecordSymbolic.
	Prog  *obj.Prog // valid when Kind == RecordBranch or RecordInstruction.
	// Target names the RecordSymbolic this branch targets; valid only when
	// Kind == RecordBranch. It stays a label name: Frame.Finalize does not
	// resolve it, and nothing in this package turns it into an obj.Prog
	// branch target.
	Target string

	// VRegUses/VRegDefs are the operand vregs this record reads/writes,
	// kept parallel to obj.Prog.{From,To} so that instruction selection can
	// hand the record straight to the register allocator without having to
	// re-derive operand lists by inspecting obj.Addr fields.
	VRegUses []uint64
	VRegDefs []uint64

	nop bool
	// unspillable is set on records synthesized by spill rewriting itself,
	// so the allocator's selectSpill can never choose one of them as a
	// further spill candidate, guaranteeing termination.
	unspillable bool
	// frameSizeSlot marks a record whose immediate operand encodes the
	// function's stack-frame size. The prologue is selected before
	// register allocation has finished assigning spill slots, so the true
	// frame size isn't known yet; MachineCode.PatchFrameSize fills it in
	// once Frame.Finalize has run.
	frameSizeSlot bool
}

// MarkFrameSizeSlot flags this record's immediate as a stack-frame size
// placeholder, to be resolved later by MachineCode.PatchFrameSize.
func (r *Record) MarkFrameSizeSlot() { r.frameSizeSlot = true }

func NewSymbolic(label string, loc ASMLocation) *Record {
	return &Record{Kind: RecordSymbolic, Label: label, Loc: loc}
}

func NewInstruction(p *obj.Prog, loc ASMLocation, uses, defs []uint64) *Record {
	return &Record{Kind: RecordInstruction, Prog: p, Loc: loc, VRegUses: uses, VRegDefs: defs}
}

func NewBranch(p *obj.Prog, target string, loc ASMLocation, uses []uint64) *Record {
	return &Record{Kind: RecordBranch, Prog: p, Target: target, Loc: loc, VRegUses: uses}
}

// IsNop reports whether this record has been nopped out by the peephole
// pass (spec.md §4.9 "Peephole: identity moves are nopped, not deleted, so
// per-instruction metadata tables stay indexed consistently").
func (r *Record) IsNop() bool { return r.nop }

// SetNop marks this record as a no-op, preserving its slot in the
// instruction stream so any index referencing it by position stays valid.
func (r *Record) SetNop() {
	r.nop = true
	r.Prog = nil
	r.VRegUses, r.VRegDefs = nil, nil
}

func (r *Record) String() string {
	switch r.Kind {
	case RecordSymbolic:
		return r.Label + ":"
	case RecordBranch:
		if r.nop {
			return "; nop (was branch)"
		}
		return fmt.Sprintf("%s -> %s", r.Prog, r.Target)
	case RecordInstruction:
		if r.nop {
			return "; nop"
		}
		return r.Prog.String()
	default:
		return "<invalid record>"
	}
}
