package ir

import "fmt"

// EdgeKind classifies a control-flow edge as forward or back relative to the
// DFS path stack active when control-flow analysis discovered it (spec.md
// §4.2).
type EdgeKind byte

const (
	EdgeForward EdgeKind = iota
	EdgeBackward
)

// Edge is one outgoing control-flow edge from a Block, computed by control-
// flow analysis (spec.md §3 "control_flow", §4.2).
type Edge struct {
	Target      *Block
	Kind        EdgeKind
	IsException bool
	Probability float64
}

// ControlFlow holds the predecessor/successor sets computed by CFA. It is
// nil until CFA has run.
type ControlFlow struct {
	Preds []*Block
	Succs []Edge
}

// Block is a Mu IR basic block (spec.md §3): an ordered list of block
// parameters ("args" in spec.md's terminology — this module spells them
// Params to avoid colliding with Instruction operand "args"), an optional
// exceptional-entry parameter, an ordered instruction list, and the
// control-flow info CFA fills in.
type Block struct {
	MuEntityHeader

	Params []Value
	// ExnArg is non-nil iff this block is reachable only via an exceptional
	// edge (spec.md §3 invariant (vi)).
	ExnArg *Value

	root, tail *Instruction

	CFG *ControlFlow

	fn *FunctionVersion
}

// Name renders the block's synthetic label the way the IR builder assigns
// one during load() step 1 ("Assign synthetic names to unnamed ... blocks").
func (b *Block) Name() string {
	if name, ok := b.MuEntityHeader.Name(); ok {
		return name
	}
	return fmt.Sprintf("blk%d", b.ID())
}

// Root returns the first instruction in the block, or nil if empty.
func (b *Block) Root() *Instruction { return b.root }

// Tail returns the last instruction in the block (the terminal, once the
// block is complete), or nil if empty.
func (b *Block) Tail() *Instruction { return b.tail }

// InsertInstruction appends inst to the tail of the block's instruction
// list.
func (b *Block) InsertInstruction(inst *Instruction) {
	inst.block = b
	if b.tail != nil {
		b.tail.next = inst
		inst.prev = b.tail
	} else {
		b.root = inst
	}
	b.tail = inst
}

// Instructions returns a slice snapshot of the instruction list in order;
// intended for passes and tests, not performance-sensitive inner loops
// (those should walk Root()/Next() directly, as the teacher's visit_block
// does).
func (b *Block) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.root; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// validate checks the invariants of spec.md §3 / §8 that are local to a
// single block: a terminal appears exactly once and only as the last
// instruction, and every GetFieldIRef index is in-bounds. Cross-block
// invariants (dangling destinations, SSA single-definition, block arg
// arity) are checked by the owning FunctionVersion's Validate.
func (b *Block) validate() error {
	for i := b.root; i != nil; i = i.next {
		if i.IsTerminalInst() && i != b.tail {
			return fmt.Errorf("block %s: terminal instruction %s is not the last instruction",
				b.Name(), i.Display())
		}
		if !i.IsTerminalInst() && i == b.tail {
			return fmt.Errorf("block %s: last instruction %s is not a terminal", b.Name(), i.Display())
		}
		if i.opcode == OpcodeGetFieldIRef {
			body, err := StructTagMap.Lookup(i.StructTag)
			if err != nil {
				if hb, herr := HybridTagMap.Lookup(i.StructTag); herr == nil {
					if i.FieldIndex < 0 || i.FieldIndex >= len(hb.Fixed) {
						return fmt.Errorf("block %s: %s field index %d out of range", b.Name(), i.Display(), i.FieldIndex)
					}
					continue
				}
				return err
			}
			if i.FieldIndex < 0 || i.FieldIndex >= len(body.Fields) {
				return fmt.Errorf("block %s: %s field index %d out of range", b.Name(), i.Display(), i.FieldIndex)
			}
		}
	}
	return nil
}

// FunctionContent is the body of a defined FunctionVersion: the entry block
// ID and the map of all blocks (spec.md §3).
type FunctionContent struct {
	Entry  ID
	Blocks map[ID]*Block
}
