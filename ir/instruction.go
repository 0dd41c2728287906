package ir

import (
	"sync"
)

// TreeNodeKind discriminates the two TreeNode payloads of spec.md §3.
type TreeNodeKind byte

const (
	TreeNodeKindValue TreeNodeKind = iota
	TreeNodeKindInstruction
)

// TreeNode is the expression-tree layer produced by tree generation
// (spec.md §4.2): a node is either a leaf Value or a folded-in Instruction
// subtree. Its op-code tag is derived from the payload so the instruction
// selector's pattern matcher (spec.md §4.3) can dispatch on it without a
// type switch on every visit.
type TreeNode struct {
	Kind TreeNodeKind
	Val  Value        // TreeNodeKindValue
	Inst *Instruction // TreeNodeKindInstruction
}

// Opcode returns the op-code tag used by the pattern matcher: the wrapped
// instruction's opcode for an instruction node, or OpcodeInvalid for a leaf
// value (leaves are matched structurally via Value.Kind instead).
func (n *TreeNode) Opcode() Opcode {
	if n.Kind == TreeNodeKindInstruction {
		return n.Inst.Opcode()
	}
	return OpcodeInvalid
}

// LeafValue returns the TreeNode's Value payload whether it is a literal
// leaf or the (single) result of a folded instruction, since instruction
// selection ultimately needs a Value's type and constantness regardless of
// which form the tree took.
func (n *TreeNode) LeafValue() Value {
	if n.Kind == TreeNodeKindValue {
		return n.Val
	}
	return n.Inst.Return()
}

func NewValueTreeNode(v Value) *TreeNode { return &TreeNode{Kind: TreeNodeKindValue, Val: v} }
func NewInstTreeNode(i *Instruction) *TreeNode {
	return &TreeNode{Kind: TreeNodeKindInstruction, Inst: i}
}

// Instruction is a single IR instruction: a header, zero or more result
// Values, an ordered list of operand TreeNode children, and a discriminated
// union of opcode-specific payload fields (spec.md §3). The operand list is
// guarded by a reader/writer lock because tree generation rewrites
// operands in place (folding a single-use child instruction into its
// user's operand) while def-use and other analyses may still be reading
// operands of sibling instructions concurrently on other function versions
// (spec.md §5, §9 "Shared mutable operand lists").
type Instruction struct {
	MuEntityHeader

	opcode Opcode

	opsMu sync.RWMutex
	ops   []*TreeNode

	results []Value

	// block linkage; instructions are a doubly linked list within their
	// owning Block (mirrors ssa.Instruction.prev/next in the teacher).
	prev, next *Instruction
	block      *Block

	// Opcode-specific scalar payload. Only the fields relevant to Opcode are
	// meaningful; this flattened layout matches the teacher's
	// ssa.Instruction (u1/u2/v/v2/v3/... fields) for the same reason: a Go
	// sum type would need one allocation + one interface per instruction,
	// and instruction counts dominate compile time.
	BinOp        BinOp
	CmpOp        CmpOp
	ConvOp       ConvOp
	Order        MemoryOrder
	RMWOp        AtomicRMWOp
	CommonOp     CommonInstOp
	FieldIndex   int
	StructTag    string // New/NewHybrid/AllocA*/GetFieldIRef/GetElementIRef: the struct/hybrid tag.
	HybridLength Value  // NewHybrid/AllocAHybrid: variable-part element count operand.
	SigID        SignatureID
	CalleeFunc   ID // Call/CCall/TailCall/ExprCall/ExprCCall: callee MuFunction ID (0 if indirect).
	IsAbort      bool

	// Terminal-only: branch/switch/call destinations.
	dests    []*DestClause
	excDest  *DestClause // exception-edge destination, if any.
	branchProb float64   // Branch2: true_prob. Watchpoint/WPBranch: enabled_prob.
	caseProbs  []float64 // Switch: per-case probability (nil = uniform).

	// keepAlive lists values a Call/CCall/SwapStack must keep reachable to a
	// conservative GC across the call, independent of whether the callee
	// itself uses them (spec.md §6 "new_keepalive_clause").
	keepAlive []Value

	hasSideEffect bool
}

// DestClause names a branching destination together with the argument
// values passed to the target block's parameters (spec.md §6 "new_dest_clause").
type DestClause struct {
	Target *Block
	Args   []Value
}

// Opcode returns this instruction's opcode.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// SetOpcode is used by the IR builder while constructing an instruction; it
// is not meant to be called once the instruction has been inserted into a
// block.
func (i *Instruction) SetOpcode(op Opcode) { i.opcode = op }

// IsTerminalInst reports whether this instruction occupies the terminal
// position of its block (spec.md §3 invariant (ii), §8 testable property).
func (i *Instruction) IsTerminalInst() bool { return i.opcode.IsTerminal() }

// HasSideEffect reports whether this instruction may not be folded into a
// parent's operand tree nor eliminated as dead code even if unused. Per
// spec.md §9 Open Questions, Fence is conservatively treated as
// side-effecting ("FIXME: need to check correctness" in the original),
// which this module keeps rather than resolves, since treating Fence as
// pure would let tree generation hoist memory operations across it.
func (i *Instruction) HasSideEffect() bool {
	switch i.opcode {
	case OpcodeStore, OpcodeCmpXchg, OpcodeAtomicRMW, OpcodeFence,
		OpcodeNew, OpcodeNewHybrid, OpcodeAllocA, OpcodeAllocAHybrid,
		OpcodeMove, OpcodePrintHex, OpcodeCommonInst,
		OpcodeExprCall, OpcodeExprCCall:
		return true
	default:
		return i.opcode.IsTerminal()
	}
}

// Results returns the values produced by this instruction.
func (i *Instruction) Results() []Value { return i.results }

// Return returns the first (or only) result value, or ValueInvalid if this
// instruction produces none.
func (i *Instruction) Return() Value {
	if len(i.results) == 0 {
		return ValueInvalid
	}
	return i.results[0]
}

// SetResults sets the instruction's result values; called once by the
// builder for instructions that produce a value.
func (i *Instruction) SetResults(vs ...Value) { i.results = vs }

// Ops returns a snapshot of the current operand list under the read lock.
// The returned slice must not be retained across a call that might mutate
// operands (ReplaceOp, SetOps).
func (i *Instruction) Ops() []*TreeNode {
	i.opsMu.RLock()
	defer i.opsMu.RUnlock()
	return i.ops
}

// Op returns the idx-th operand. Panics if idx is out of range, which is
// itself the enforcement of spec.md §3 invariant (i) ("every operand index
// ... lies in range").
func (i *Instruction) Op(idx int) *TreeNode {
	i.opsMu.RLock()
	defer i.opsMu.RUnlock()
	return i.ops[idx]
}

// NumOps returns the number of operands.
func (i *Instruction) NumOps() int {
	i.opsMu.RLock()
	defer i.opsMu.RUnlock()
	return len(i.ops)
}

// SetOps replaces the entire operand list; used by the builder when first
// constructing the instruction.
func (i *Instruction) SetOps(ops []*TreeNode) {
	i.opsMu.Lock()
	defer i.opsMu.Unlock()
	i.ops = ops
}

// ReplaceOp overwrites the idx-th operand in place. This is the mutation
// tree generation performs concurrently with
// readers on other function versions, hence the write lock.
func (i *Instruction) ReplaceOp(idx int, n *TreeNode) {
	i.opsMu.Lock()
	defer i.opsMu.Unlock()
	i.ops[idx] = n
}

// Dests returns the non-exceptional destination clauses (Branch1: one;
// Branch2: two; Switch: the default, then N cases; Call/CCall/SwapStack/
// ExnInstruction/Watchpoint/WPBranch: one normal resume destination).
func (i *Instruction) Dests() []*DestClause { return i.dests }

// SetDests sets the destination clause list.
func (i *Instruction) SetDests(d ...*DestClause) { i.dests = d }

// ExcDest returns the exceptional-edge destination, if any.
func (i *Instruction) ExcDest() *DestClause { return i.excDest }

// SetExcDest sets the exceptional-edge destination.
func (i *Instruction) SetExcDest(d *DestClause) { i.excDest = d }

// BranchProb returns the probability annotation attached at IR-build time:
// Branch2.true_prob, or Watchpoint/WPBranch's enabled probability.
func (i *Instruction) BranchProb() float64   { return i.branchProb }
func (i *Instruction) SetBranchProb(p float64) { i.branchProb = p }

// CaseProbs returns the per-case probabilities for a Switch, or nil if the
// cases are to be treated as uniform (spec.md §4.2).
func (i *Instruction) CaseProbs() []float64    { return i.caseProbs }
func (i *Instruction) SetCaseProbs(p []float64) { i.caseProbs = p }

// KeepAlive returns the values a keepalive clause attaches to this
// instruction, if any.
func (i *Instruction) KeepAlive() []Value       { return i.keepAlive }
func (i *Instruction) SetKeepAlive(vs []Value)  { i.keepAlive = vs }

// Next/Prev implement the block's instruction linked list.
func (i *Instruction) Next() *Instruction { return i.next }
func (i *Instruction) Prev() *Instruction { return i.prev }

// Block returns the owning block.
func (i *Instruction) Block() *Block { return i.block }

// reset restores the instruction to its pristine zero-state for pool reuse.
func (i *Instruction) reset() {
	*i = Instruction{}
}
