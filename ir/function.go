package ir

import "sync/atomic"

// SSAVarEntry is the per-variable bookkeeping a FunctionVersion's context
// keeps for every SSA value it defines: the defining Value, a monotonic use
// counter maintained by the def-use pass, and (during tree generation) the
// Instruction that was folded into a single user's operand tree, if any
// (spec.md §3).
type SSAVarEntry struct {
	Def       Value
	useCount  int64 // atomic; see spec.md §5 ("any monotonic atomic suffices").
	FoldedInto *Instruction
}

// UseCount returns the current use count.
func (e *SSAVarEntry) UseCount() int64 { return atomic.LoadInt64(&e.useCount) }

// IncUse atomically increments the use count by one and returns the new
// value; called by the def-use pass for every operand reference.
func (e *SSAVarEntry) IncUse() int64 { return atomic.AddInt64(&e.useCount, 1) }

// FunctionContext holds the per-function-version SSA bookkeeping that lives
// alongside (not inside) the block/instruction graph: the map from each
// defined SSA value to its SSAVarEntry (spec.md §3).
type FunctionContext struct {
	Values map[ValueID]*SSAVarEntry
}

// NewFunctionContext returns an empty context ready for a builder to
// populate via DeclareSSAVar.
func NewFunctionContext() *FunctionContext {
	return &FunctionContext{Values: make(map[ValueID]*SSAVarEntry)}
}

// DeclareSSAVar registers a new SSA value's defining Value. Per spec.md §3
// invariant (iii), this must be called exactly once per ValueID across the
// function version; callers (the builder, or a pass synthesizing a new
// temporary) are responsible for that uniqueness.
func (c *FunctionContext) DeclareSSAVar(id ValueID, def Value) *SSAVarEntry {
	e := &SSAVarEntry{Def: def}
	c.Values[id] = e
	return e
}

// Entry returns the SSAVarEntry for id, or nil if undeclared.
func (c *FunctionContext) Entry(id ValueID) *SSAVarEntry { return c.Values[id] }

// FunctionVersion is one compiled-or-compilable version of a MuFunction
// (spec.md §3). A version starts "undefined" (Content == nil) and becomes
// "defined" once the builder (or a pass) populates Content.
type FunctionVersion struct {
	MuEntityHeader

	FuncID  ID
	Sig     *FuncSig
	Content *FunctionContent
	Context *FunctionContext

	// BlockTrace is the hot-path linearisation produced by trace generation
	// (spec.md §4.2); nil until that pass has run.
	BlockTrace []ID

	nextValueID ValueID
}

// NewFunctionVersion constructs an undefined function version for funcID
// with signature sig.
func NewFunctionVersion(id, funcID ID, sig *FuncSig) *FunctionVersion {
	return &FunctionVersion{
		MuEntityHeader: NewMuEntityHeader(id),
		FuncID:         funcID,
		Sig:            sig,
		Context:        NewFunctionContext(),
	}
}

// Defined reports whether this version has a function body.
func (fv *FunctionVersion) Defined() bool { return fv.Content != nil }

// AllocateValueID mints the next local SSA value identifier for this
// function version.
func (fv *FunctionVersion) AllocateValueID() ValueID {
	id := fv.nextValueID
	fv.nextValueID++
	return id
}

// EntryBlock returns the function version's entry block.
func (fv *FunctionVersion) EntryBlock() *Block {
	if fv.Content == nil {
		return nil
	}
	return fv.Content.Blocks[fv.Content.Entry]
}

// Blocks returns all blocks keyed by ID.
func (fv *FunctionVersion) Blocks() map[ID]*Block {
	if fv.Content == nil {
		return nil
	}
	return fv.Content.Blocks
}

// Validate checks these cross-block invariants of spec.md §3/§8: every
// block passes its own per-block check, every normal and exceptional
// destination references a block that exists in this version, and every
// normal destination passes as many arguments as its target block has
// parameters. It does not check argument types, whether exn_arg is set
// exactly on exception-only reachable blocks, or that every SSA variable
// has exactly one definition.
func (fv *FunctionVersion) Validate() error {
	if fv.Content == nil {
		return nil
	}
	for _, blk := range fv.Content.Blocks {
		if err := blk.validate(); err != nil {
			return err
		}
		if term := blk.Tail(); term != nil {
			for _, d := range term.Dests() {
				if d.Target == nil {
					return errDanglingDest(blk)
				}
				if _, ok := fv.Content.Blocks[d.Target.ID()]; !ok {
					return errDanglingDest(blk)
				}
				if len(d.Args) != len(d.Target.Params) {
					return errArity(blk, d.Target)
				}
			}
			if exc := term.ExcDest(); exc != nil {
				if _, ok := fv.Content.Blocks[exc.Target.ID()]; !ok {
					return errDanglingDest(blk)
				}
			}
		}
	}
	return nil
}

func errDanglingDest(blk *Block) error {
	return &ValidationError{Msg: "dangling destination from block " + blk.Name()}
}

func errArity(from, to *Block) error {
	return &ValidationError{Msg: "block argument arity mismatch branching from " + from.Name() + " to " + to.Name()}
}

// ValidationError is a recoverable IR validation error (spec.md §7): fatal
// to the affected function version, but the VM as a whole recovers.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// MuFunction is a named, signature-typed function with a history of
// versions (spec.md §3). Redefining a function ("new_version") obsoletes
// the current version: it is appended to AllVers and the new one replaces
// CurVer.
type MuFunction struct {
	MuEntityHeader

	Sig     *FuncSig
	CurVer  *FunctionVersion
	AllVers []ID
}

// NewFunction constructs a MuFunction with the given signature and no
// versions yet.
func NewFunction(id ID, sig *FuncSig) *MuFunction {
	return &MuFunction{MuEntityHeader: NewMuEntityHeader(id), Sig: sig}
}

// NewVersion installs fv as the current version, appending the prior
// current version's ID (if any) to AllVers. Per spec.md §9 "Redefinition",
// implementers must not rely on "current version" identity surviving past
// the next call to NewVersion.
func (f *MuFunction) NewVersion(fv *FunctionVersion) {
	if f.CurVer != nil {
		f.AllVers = append(f.AllVers, f.CurVer.ID())
	}
	f.CurVer = fv
}
