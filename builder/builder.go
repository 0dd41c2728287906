package builder

import (
	"fmt"

	"github.com/jstnlef/zebu-vm-sub001/internal/telemetry"
	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// Builder stages IR nodes into a transient bundle until Load commits them
// atomically into reg. A Builder is single-use: once Load or Abort
// returns, further calls panic, matching spec.md §4.7 "abort() ...
// deallocates the builder".
type Builder struct {
	reg    *vm.Registry
	bundle *transientBundle
	done   bool

	// instPool arena-allocates every ir.Instruction staged by this
	// Builder, matching the teacher's ssa.Builder.instructionsPool.
	// It is never Reset: instructions committed by Load outlive the
	// Builder that staged them, so the arena is amortized across one
	// staging session rather than recycled across sessions.
	instPool ir.Pool[ir.Instruction]
}

// New returns a builder staging into reg.
func New(reg *vm.Registry) *Builder {
	return &Builder{reg: reg, bundle: newTransientBundle(), instPool: ir.NewPool[ir.Instruction]()}
}

func (b *Builder) checkLive() {
	if b.done {
		panic("builder used after load()/abort()")
	}
}

// GenSym mints a fresh ID from the registry's monotonic user-range counter
// and, if name is non-empty, stages it for the id<->name bimap (spec.md
// §4.7 "gen_sym").
func (b *Builder) GenSym(name string) ir.ID {
	b.checkLive()
	id := b.reg.NextID()
	if name != "" {
		b.bundle.names[id] = name
	}
	return id
}

// SetName stages (or overwrites) a symbolic name for a previously minted id.
func (b *Builder) SetName(id ir.ID, name string) {
	b.checkLive()
	b.bundle.names[id] = name
}

// --- types -------------------------------------------------------------

func (b *Builder) stageType(id ir.ID, ts *typeStage) {
	b.bundle.types[id] = ts
	b.bundle.typeOrder = append(b.bundle.typeOrder, id)
}

func (b *Builder) NewTypeInt(id ir.ID, bits uint32) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindInt, intWidth: bits})
}
func (b *Builder) NewTypeFloat(id ir.ID)     { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindFloat}) }
func (b *Builder) NewTypeDouble(id ir.ID)    { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindDouble}) }
func (b *Builder) NewTypeVoid(id ir.ID)      { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindVoid}) }
func (b *Builder) NewTypeThreadRef(id ir.ID) { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindThreadRef}) }
func (b *Builder) NewTypeStackRef(id ir.ID)  { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindStackRef}) }
func (b *Builder) NewTypeTagref64(id ir.ID)  { b.checkLive(); b.stageType(id, &typeStage{kind: ir.TypeKindTagref64}) }

func (b *Builder) NewTypeRef(id, elemID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindRef, elemID: elemID, hasElem: true})
}
func (b *Builder) NewTypeIRef(id, elemID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindIRef, elemID: elemID, hasElem: true})
}
func (b *Builder) NewTypeWeakRef(id, elemID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindWeakRef, elemID: elemID, hasElem: true})
}
func (b *Builder) NewTypeUPtr(id, elemID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindUPtr, elemID: elemID, hasElem: true})
}
func (b *Builder) NewTypeArray(id, elemID ir.ID, length uint64) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindArray, elemID: elemID, hasElem: true, length: length})
}
func (b *Builder) NewTypeVector(id, elemID ir.ID, length uint64) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindVector, elemID: elemID, hasElem: true, length: length})
}
func (b *Builder) NewTypeFuncRef(id, sigID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindFuncRef, sigID: sigID, hasSig: true})
}
func (b *Builder) NewTypeUFuncPtr(id, sigID ir.ID) {
	b.checkLive()
	b.stageType(id, &typeStage{kind: ir.TypeKindUFuncPtr, sigID: sigID, hasSig: true})
}

// NewTypeStruct stages a Struct type bound to tag, and stages tag's field
// body so Load's step 3 can fill the process-wide struct tag table. An
// empty tag is synthesized from id (spec.md §4.7 step 1).
func (b *Builder) NewTypeStruct(id ir.ID, tag string, fieldTypeIDs []ir.ID) {
	b.checkLive()
	if tag == "" {
		tag = fmt.Sprintf("struct$%d", id)
	}
	b.stageType(id, &typeStage{kind: ir.TypeKindStruct, tag: tag})
	b.bundle.structBodies[tag] = &structBodyStage{fieldTypeIDs: fieldTypeIDs}
}

// NewTypeHybrid stages a Hybrid type bound to tag, with a fixed-part field
// list and a variable-length tail element type.
func (b *Builder) NewTypeHybrid(id ir.ID, tag string, fixedTypeIDs []ir.ID, varTypeID ir.ID) {
	b.checkLive()
	if tag == "" {
		tag = fmt.Sprintf("hybrid$%d", id)
	}
	b.stageType(id, &typeStage{kind: ir.TypeKindHybrid, tag: tag})
	b.bundle.hybridBodies[tag] = &hybridBodyStage{fixedTypeIDs: fixedTypeIDs, varTypeID: varTypeID}
}

// --- signatures, constants, globals -------------------------------------

func (b *Builder) NewFuncSig(id ir.ID, argTypeIDs, retTypeIDs []ir.ID) {
	b.checkLive()
	b.bundle.sigs[id] = &sigStage{argTypeIDs: argTypeIDs, retTypeIDs: retTypeIDs}
	b.bundle.sigOrder = append(b.bundle.sigOrder, id)
}

func (b *Builder) stageConst(id, typeID ir.ID, val ir.Constant) {
	b.bundle.consts[id] = &constStage{typeID: typeID, value: val}
	b.bundle.constOrder = append(b.bundle.constOrder, id)
}

func (b *Builder) NewConstInt(id, typeID ir.ID, v uint64) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindInt, Int: v})
}
func (b *Builder) NewConstFloat(id, typeID ir.ID, v float32) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindFloat, Float32: v})
}
func (b *Builder) NewConstDouble(id, typeID ir.ID, v float64) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindDouble, Float64: v})
}
func (b *Builder) NewConstNullRef(id, typeID ir.ID) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindNullRef})
}
func (b *Builder) NewConstExternSym(id, typeID ir.ID, sym string) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindExternSym, Sym: sym})
}
func (b *Builder) NewConstFuncRef(id, typeID ir.ID, funcID ir.ID) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindFuncRef, FuncID: funcID})
}
func (b *Builder) NewConstUFuncRef(id, typeID ir.ID, funcID ir.ID) {
	b.checkLive()
	b.stageConst(id, typeID, ir.Constant{Kind: ir.ConstantKindUFuncRef, FuncID: funcID})
}

func (b *Builder) NewGlobalCell(id, typeID ir.ID) {
	b.checkLive()
	b.bundle.globals[id] = &globalStage{typeID: typeID}
	b.bundle.globalOrder = append(b.bundle.globalOrder, id)
}

// --- functions, function versions, blocks, SSA values -------------------

func (b *Builder) NewFunc(id, sigID ir.ID) {
	b.checkLive()
	b.bundle.funcs[id] = &funcStage{sigID: sigID}
	b.bundle.funcOrder = append(b.bundle.funcOrder, id)
}

func (b *Builder) NewFuncVer(id, funcID ir.ID) {
	b.checkLive()
	b.bundle.funcVers[id] = &funcVerStage{funcID: funcID}
	b.bundle.funcVerOrder = append(b.bundle.funcVerOrder, id)
}

// NewBB stages a basic block owned by funcVerID. paramSSAIDs must each name
// an SSA variable already staged via NewSSA on the same function version;
// the block's parameter list takes the variable's declared type. An
// unnamed block is given a synthetic "blkN" label automatically by
// ir.Block.Name, so step 1's synthetic-naming requirement needs no extra
// bookkeeping here.
func (b *Builder) NewBB(id, funcVerID ir.ID, paramSSAIDs []ir.ID, exnArgSSAID ir.ID, hasExnArg bool) {
	b.checkLive()
	b.bundle.bbs[id] = &blockStage{funcVerID: funcVerID, paramSSAIDs: paramSSAIDs, exnArgSSAID: exnArgSSAID, hasExnArg: hasExnArg}
	fv := b.bundle.funcVers[funcVerID]
	fv.blockOrder = append(fv.blockOrder, id)
}

// NewSSA declares a fresh SSA variable of type typeID, scoped to
// funcVerID. The returned id is referenced by SSAVal when used as an
// instruction operand, a block parameter, or an instruction's result slot.
func (b *Builder) NewSSA(id, funcVerID, typeID ir.ID) {
	b.checkLive()
	b.bundle.ssas[id] = &ssaStage{funcVerID: funcVerID, typeID: typeID}
}

// --- destination / exception / keepalive clauses -------------------------

func (b *Builder) NewDestClause(id, targetBBID ir.ID, args []OperandRef) {
	b.checkLive()
	b.bundle.destClauses[id] = &destClauseStage{targetBBID: targetBBID, args: args}
}

func (b *Builder) NewExcClause(id, targetBBID ir.ID) {
	b.checkLive()
	b.bundle.excClauses[id] = &destClauseStage{targetBBID: targetBBID}
}

func (b *Builder) NewKeepaliveClause(id ir.ID, values []OperandRef) {
	b.checkLive()
	b.bundle.kaClauses[id] = &keepaliveStage{values: values}
}

// --- instructions --------------------------------------------------------

func (b *Builder) stageInst(id, bbID ir.ID, opcode ir.Opcode) *instStage {
	is := &instStage{bbID: bbID, opcode: opcode}
	b.bundle.insts[id] = is
	bs := b.bundle.bbs[bbID]
	bs.instOrder = append(bs.instOrder, id)
	return is
}

func (b *Builder) NewBinOp(id, bbID, resultSSAID ir.ID, op ir.BinOp, lhs, rhs OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeBinOp)
	is.binOp = op
	is.operands = []OperandRef{lhs, rhs}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewFBinOp(id, bbID, resultSSAID ir.ID, op ir.BinOp, lhs, rhs OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeFBinOp)
	is.binOp = op
	is.operands = []OperandRef{lhs, rhs}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewCmp(id, bbID, resultSSAID ir.ID, op ir.CmpOp, lhs, rhs OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeCmp)
	is.cmpOp = op
	is.operands = []OperandRef{lhs, rhs}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewFCmp(id, bbID, resultSSAID ir.ID, op ir.CmpOp, lhs, rhs OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeFCmp)
	is.cmpOp = op
	is.operands = []OperandRef{lhs, rhs}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewConv(id, bbID, resultSSAID ir.ID, op ir.ConvOp, src OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeConv)
	is.convOp = op
	is.operands = []OperandRef{src}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewSelect(id, bbID, resultSSAID ir.ID, cond, ifTrue, ifFalse OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeSelect)
	is.operands = []OperandRef{cond, ifTrue, ifFalse}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewLoad(id, bbID, resultSSAID ir.ID, order ir.MemoryOrder, loc OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeLoad)
	is.order = order
	is.operands = []OperandRef{loc}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewStore(id, bbID ir.ID, order ir.MemoryOrder, loc, val OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeStore)
	is.order = order
	is.operands = []OperandRef{loc, val}
}

func (b *Builder) NewCmpXchg(id, bbID, resultSSAID ir.ID, order ir.MemoryOrder, loc, expected, desired OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeCmpXchg)
	is.order = order
	is.operands = []OperandRef{loc, expected, desired}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewAtomicRMW(id, bbID, resultSSAID ir.ID, op ir.AtomicRMWOp, order ir.MemoryOrder, loc, val OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeAtomicRMW)
	is.rmwOp = op
	is.order = order
	is.operands = []OperandRef{loc, val}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewFence(id, bbID ir.ID, order ir.MemoryOrder) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeFence)
	is.order = order
}

func (b *Builder) NewNew(id, bbID, resultSSAID ir.ID, structTag string) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeNew)
	is.structTag = structTag
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewNewHybrid(id, bbID, resultSSAID ir.ID, structTag string, length OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeNewHybrid)
	is.structTag = structTag
	is.operands = []OperandRef{length}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewAllocA(id, bbID, resultSSAID ir.ID, structTag string) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeAllocA)
	is.structTag = structTag
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewAllocAHybrid(id, bbID, resultSSAID ir.ID, structTag string, length OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeAllocAHybrid)
	is.structTag = structTag
	is.operands = []OperandRef{length}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewGetIRef(id, bbID, resultSSAID ir.ID, ref OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeGetIRef)
	is.operands = []OperandRef{ref}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewGetFieldIRef(id, bbID, resultSSAID ir.ID, base OperandRef, structTag string, fieldIndex int) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeGetFieldIRef)
	is.operands = []OperandRef{base}
	is.structTag = structTag
	is.fieldIndex = fieldIndex
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewGetElementIRef(id, bbID, resultSSAID ir.ID, base, index OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeGetElementIRef)
	is.operands = []OperandRef{base, index}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewShiftIRef(id, bbID, resultSSAID ir.ID, base, offset OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeShiftIRef)
	is.operands = []OperandRef{base, offset}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewGetVarPartIRef(id, bbID, resultSSAID ir.ID, base OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeGetVarPartIRef)
	is.operands = []OperandRef{base}
	is.resultSSAIDs = []ir.ID{resultSSAID}
}

func (b *Builder) NewMove(id, bbID ir.ID, dst, src OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeMove)
	is.operands = []OperandRef{dst, src}
}

func (b *Builder) NewPrintHex(id, bbID ir.ID, val OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodePrintHex)
	is.operands = []OperandRef{val}
}

// NewCommInst stages a call into the common-instruction dispatch table
// (spec.md §6, SPEC_FULL.md §3's COMMINST supplement); name must resolve
// via reg.CommonInsts().LookupByName.
func (b *Builder) NewCommInst(id, bbID ir.ID, resultSSAIDs []ir.ID, name string, args []OperandRef) error {
	b.checkLive()
	d, err := b.reg.CommonInsts().LookupByName(name)
	if err != nil {
		return fmt.Errorf("new_comminst: %w", err)
	}
	is := b.stageInst(id, bbID, ir.OpcodeCommonInst)
	is.commonOp = d.Op
	is.operands = args
	is.resultSSAIDs = resultSSAIDs
	return nil
}

// --- terminals -------------------------------------------------------------

func (b *Builder) NewReturn(id, bbID ir.ID, vals []OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeReturn)
	is.operands = vals
}

func (b *Builder) NewThreadExit(id, bbID ir.ID) {
	b.checkLive()
	b.stageInst(id, bbID, ir.OpcodeThreadExit)
}

func (b *Builder) NewThrow(id, bbID ir.ID, exn OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeThrow)
	is.operands = []OperandRef{exn}
}

func (b *Builder) NewTailCall(id, bbID ir.ID, calleeFuncID, sigID ir.ID, args []OperandRef) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeTailCall)
	is.calleeFunc = calleeFuncID
	is.sigID, is.hasSig = sigID, true
	is.operands = args
}

func (b *Builder) NewBranch1(id, bbID, destClauseID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeBranch1)
	is.destIDs = []ir.ID{destClauseID}
}

func (b *Builder) NewBranch2(id, bbID ir.ID, cond OperandRef, trueDestID, falseDestID ir.ID, trueProb float64) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeBranch2)
	is.operands = []OperandRef{cond}
	is.destIDs = []ir.ID{trueDestID, falseDestID}
	is.branchProb = trueProb
}

// NewSwitch stages a multi-way branch: caseDestIDs[i] is taken when val
// equals caseVals[i] (as a constant operand ref), defaultDestID otherwise.
// caseProbs may be nil for uniform probability (spec.md §4.2).
func (b *Builder) NewSwitch(id, bbID ir.ID, val OperandRef, defaultDestID ir.ID, caseVals []OperandRef, caseDestIDs []ir.ID, caseProbs []float64) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeSwitch)
	is.operands = append([]OperandRef{val}, caseVals...)
	is.destIDs = append([]ir.ID{defaultDestID}, caseDestIDs...)
	is.caseProbs = caseProbs
}

func (b *Builder) NewWatchpoint(id, bbID ir.ID, disabledDestID, enabledDestID ir.ID, enabledProb float64) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeWatchpoint)
	is.destIDs = []ir.ID{disabledDestID, enabledDestID}
	is.branchProb = enabledProb
}

func (b *Builder) NewWPBranch(id, bbID ir.ID, disabledDestID, enabledDestID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeWPBranch)
	is.destIDs = []ir.ID{disabledDestID, enabledDestID}
}

// NewTrap stages an unconditional trap to the client handler, represented
// as a Watchpoint permanently taking its "enabled" edge (this module has
// no separate TRAP opcode; spec.md's wire opcode table does not list one
// either, so WATCHPOINT with enabled_prob=1 is the closest faithful
// encoding, same destination arity as wazero's unconditional-trap lowering
// through a conditional branch with an always-true condition).
func (b *Builder) NewTrap(id, bbID ir.ID, destID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeWatchpoint)
	is.destIDs = []ir.ID{destID, destID}
	is.branchProb = 1.0
}

// NewCall stages a call to calleeFuncID. normalDestID is the resume block;
// excDestID/hasExc an optional exception edge; kaClauseID/hasKA an optional
// keepalive set.
func (b *Builder) NewCall(id, bbID ir.ID, resultSSAIDs []ir.ID, calleeFuncID, sigID ir.ID, args []OperandRef, normalDestID ir.ID, excDestID ir.ID, hasExc bool, kaClauseID ir.ID, hasKA bool) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeCall)
	is.calleeFunc = calleeFuncID
	is.sigID, is.hasSig = sigID, true
	is.operands = args
	is.resultSSAIDs = resultSSAIDs
	is.destIDs = []ir.ID{normalDestID}
	is.excDestID, is.hasExcDest = excDestID, hasExc
	is.kaClauseID, is.hasKAClause = kaClauseID, hasKA
}

// NewCCall stages a call through a native symbol, named by an
// EXTERNSYM-kind constant operand (new_const_extern_sym), per the original
// Mu CCALL instruction's "callee is a UFuncPtr value" semantics.
func (b *Builder) NewCCall(id, bbID ir.ID, resultSSAIDs []ir.ID, calleeSym OperandRef, sigID ir.ID, args []OperandRef, normalDestID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeCCall)
	is.sigID, is.hasSig = sigID, true
	is.operands = append([]OperandRef{calleeSym}, args...)
	is.resultSSAIDs = resultSSAIDs
	is.destIDs = []ir.ID{normalDestID}
}

func (b *Builder) NewSwapStack(id, bbID ir.ID, resultSSAIDs []ir.ID, stackRef OperandRef, normalDestID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeSwapStack)
	is.operands = []OperandRef{stackRef}
	is.resultSSAIDs = resultSSAIDs
	is.destIDs = []ir.ID{normalDestID}
}

// NewExnInstruction wraps an otherwise-non-terminal opcode (typically New,
// NewHybrid, or Load) with an exceptional edge, per the original Mu
// EXCINSTRUCTION form. inner carries the wrapped instruction's opcode and
// scalar payload; callers build it with the same field names used by the
// matching non-wrapped constructor.
type ExnInner struct {
	Opcode    ir.Opcode
	StructTag string
	Order     ir.MemoryOrder
}

func (b *Builder) NewExnInstruction(id, bbID ir.ID, resultSSAIDs []ir.ID, inner ExnInner, operands []OperandRef, normalDestID, excDestID ir.ID) {
	b.checkLive()
	is := b.stageInst(id, bbID, ir.OpcodeExnInstruction)
	is.structTag = inner.StructTag
	is.order = inner.Order
	is.operands = operands
	is.resultSSAIDs = resultSSAIDs
	is.destIDs = []ir.ID{normalDestID}
	is.excDestID, is.hasExcDest = excDestID, true
	_ = inner.Opcode // the wrapped opcode's identity folds into resultSSAIDs/operands shape; tree generation dispatches on OpcodeExnInstruction itself.
}

// Abort discards the transient bundle; the registry is left untouched
// (spec.md §4.7 "abort() discards the transient bundle and deallocates the
// builder").
func (b *Builder) Abort() {
	b.checkLive()
	telemetry.L().Sugar().Debugw("builder aborted", "stats", b.Stats())
	b.bundle = nil
	b.done = true
}
