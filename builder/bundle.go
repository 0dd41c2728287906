// Package builder implements the client-facing Mu IR builder of spec.md
// §4.7: a staging area (the "transient bundle") that isolates everything a
// client constructs until a single atomic Load commits it into a
// vm.Registry. Grounded on the teacher's ssa.Builder (ssa/builder.go),
// which plays the analogous incremental-construction role for one
// function's SSA IR, generalized here to span an entire bundle of types,
// signatures, constants, globals, and functions the way the original Mu
// client API does.
package builder

import "github.com/jstnlef/zebu-vm-sub001/ir"

// refKind discriminates an OperandRef's payload.
type refKind byte

const (
	refSSA refKind = iota
	refConst
	refGlobal
)

// OperandRef names a previously staged or committed value by ID and kind.
// Builder methods that take instruction operands accept OperandRef instead
// of ir.Value directly because, while staging is in progress, the
// referenced entity's static type may not be resolved yet (spec.md §4.7
// step 2 "resolve all type references" runs before step 8 "build each
// function version"); resolution to a concrete ir.Value happens during
// Load.
type OperandRef struct {
	kind refKind
	id   ir.ID
}

// SSAVal references an SSA variable declared earlier in the same function
// version via NewSSA.
func (b *Builder) SSAVal(id ir.ID) OperandRef { return OperandRef{refSSA, id} }

// ConstVal references a constant staged (in this bundle) or already
// committed (in the registry) under id.
func (b *Builder) ConstVal(id ir.ID) OperandRef { return OperandRef{refConst, id} }

// GlobalVal references a global cell staged or committed under id.
func (b *Builder) GlobalVal(id ir.ID) OperandRef { return OperandRef{refGlobal, id} }

// typeStage is the pre-resolution payload for a new_type_* call: Elem/Sig
// references are kept as raw IDs until resolveTypes links them to their
// (possibly still-being-resolved) peers.
type typeStage struct {
	kind     ir.TypeKind
	intWidth uint32
	elemID   ir.ID
	hasElem  bool
	length   uint64
	tag      string
	sigID    ir.ID
	hasSig   bool
}

type structBodyStage struct {
	fieldTypeIDs []ir.ID
}

type hybridBodyStage struct {
	fixedTypeIDs []ir.ID
	varTypeID    ir.ID
}

type sigStage struct {
	argTypeIDs []ir.ID
	retTypeIDs []ir.ID
}

type constStage struct {
	typeID ir.ID
	value  ir.Constant
}

type globalStage struct {
	typeID ir.ID
}

type funcStage struct {
	sigID ir.ID
}

type funcVerStage struct {
	funcID ir.ID
	// blockOrder/instOrder record staging order per owning funcVerID/bbID,
	// since Go maps have no order and spec.md step 8 builds blocks and
	// instructions in the order the client declared them.
	blockOrder []ir.ID
}

type blockStage struct {
	funcVerID ir.ID
	// paramSSAIDs name SSA variables declared earlier via NewSSA on the same
	// function version; the block parameter's type is whatever that
	// variable was declared with, not a separately staged type.
	paramSSAIDs []ir.ID
	hasExnArg   bool
	exnArgSSAID ir.ID
	instOrder   []ir.ID
}

// ssaStage records a declared SSA variable's owning function version and
// static type, pending type resolution.
type ssaStage struct {
	funcVerID ir.ID
	typeID    ir.ID
}

// instStage mirrors ir.Instruction's flattened opcode-specific fields, with
// operands and destinations kept as refs/IDs until Load links them.
type instStage struct {
	bbID   ir.ID
	opcode ir.Opcode

	operands []OperandRef

	resultSSAIDs []ir.ID // SSA ids declared earlier via NewSSA, bound as this instruction's results

	binOp      ir.BinOp
	cmpOp      ir.CmpOp
	convOp     ir.ConvOp
	order      ir.MemoryOrder
	rmwOp      ir.AtomicRMWOp
	commonOp   ir.CommonInstOp
	fieldIndex int
	structTag  string
	sigID      ir.ID
	hasSig     bool
	calleeFunc ir.ID
	isAbort    bool

	destIDs     []ir.ID
	excDestID   ir.ID
	hasExcDest  bool
	branchProb  float64
	caseProbs   []float64
	kaClauseID  ir.ID
	hasKAClause bool
}

type destClauseStage struct {
	targetBBID ir.ID
	args       []OperandRef
}

type keepaliveStage struct {
	values []OperandRef
}

// transientBundle is the staging area of spec.md §4.7: every new_* call
// records into exactly one of these maps (plus an order slice, where
// ordering matters) and nothing is visible to the registry until Load
// commits.
type transientBundle struct {
	names map[ir.ID]string

	types     map[ir.ID]*typeStage
	typeOrder []ir.ID

	sigs     map[ir.ID]*sigStage
	sigOrder []ir.ID

	consts     map[ir.ID]*constStage
	constOrder []ir.ID

	globals     map[ir.ID]*globalStage
	globalOrder []ir.ID

	funcs     map[ir.ID]*funcStage
	funcOrder []ir.ID

	funcVers     map[ir.ID]*funcVerStage
	funcVerOrder []ir.ID

	bbs  map[ir.ID]*blockStage
	ssas map[ir.ID]*ssaStage
	insts map[ir.ID]*instStage

	destClauses map[ir.ID]*destClauseStage
	excClauses  map[ir.ID]*destClauseStage
	kaClauses   map[ir.ID]*keepaliveStage

	structBodies map[string]*structBodyStage
	hybridBodies map[string]*hybridBodyStage
}

func newTransientBundle() *transientBundle {
	return &transientBundle{
		names:       make(map[ir.ID]string),
		types:       make(map[ir.ID]*typeStage),
		sigs:        make(map[ir.ID]*sigStage),
		consts:      make(map[ir.ID]*constStage),
		globals:     make(map[ir.ID]*globalStage),
		funcs:       make(map[ir.ID]*funcStage),
		funcVers:    make(map[ir.ID]*funcVerStage),
		bbs:         make(map[ir.ID]*blockStage),
		ssas:        make(map[ir.ID]*ssaStage),
		insts:       make(map[ir.ID]*instStage),
		destClauses: make(map[ir.ID]*destClauseStage),
		excClauses:  make(map[ir.ID]*destClauseStage),
		kaClauses:   make(map[ir.ID]*keepaliveStage),

		structBodies: make(map[string]*structBodyStage),
		hybridBodies: make(map[string]*hybridBodyStage),
	}
}

// Stats summarizes how many nodes of each kind are currently staged,
// logged by Load on a successful commit (SPEC_FULL.md §3 "Builder.Stats()",
// grounded on the teacher's ssa.Builder.Format() debug affordance).
type Stats struct {
	Types, Sigs, Consts, Globals, Funcs, FuncVers, Blocks, SSAVars, Insts int
}

// Stats returns a snapshot of the bundle's current staged-node counts.
func (b *Builder) Stats() Stats {
	return Stats{
		Types:    len(b.bundle.types),
		Sigs:     len(b.bundle.sigs),
		Consts:   len(b.bundle.consts),
		Globals:  len(b.bundle.globals),
		Funcs:    len(b.bundle.funcs),
		FuncVers: len(b.bundle.funcVers),
		Blocks:   len(b.bundle.bbs),
		SSAVars:  len(b.bundle.ssas),
		Insts:    len(b.bundle.insts),
	}
}
