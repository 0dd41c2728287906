package ir

// Opcode enumerates every Instruction variant of spec.md §3. Instruction
// itself is a single flattened Go struct (ground on the teacher's
// ssa.Instruction, which uses the same "one struct, opcode-tagged fields"
// layout instead of a tagged union per-opcode type, because Go has no sum
// types and boxing every opcode as its own struct would cost an allocation
// and an interface dispatch per node during tree generation and instruction
// selection, both of which run over every instruction in the program).
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// Non-terminal expressions.
	OpcodeBinOp
	OpcodeFBinOp
	OpcodeCmp
	OpcodeFCmp
	OpcodeConv
	OpcodeSelect
	OpcodeLoad
	OpcodeStore
	OpcodeCmpXchg
	OpcodeAtomicRMW
	OpcodeFence
	OpcodeNew
	OpcodeNewHybrid
	OpcodeAllocA
	OpcodeAllocAHybrid
	OpcodeGetIRef
	OpcodeGetFieldIRef
	OpcodeGetElementIRef
	OpcodeShiftIRef
	OpcodeGetVarPartIRef
	OpcodeMove
	OpcodePrintHex
	OpcodeCommonInst
	OpcodeExprCall
	OpcodeExprCCall

	// Terminals.
	OpcodeReturn
	OpcodeThreadExit
	OpcodeThrow
	OpcodeTailCall
	OpcodeBranch1
	OpcodeBranch2
	OpcodeSwitch
	OpcodeWatchpoint
	OpcodeWPBranch
	OpcodeCall
	OpcodeCCall
	OpcodeSwapStack
	OpcodeExnInstruction
)

// IsTerminal reports whether op may only appear as the last instruction of
// a block (spec.md §3 invariant (ii)).
func (op Opcode) IsTerminal() bool {
	switch op {
	case OpcodeReturn, OpcodeThreadExit, OpcodeThrow, OpcodeTailCall,
		OpcodeBranch1, OpcodeBranch2, OpcodeSwitch, OpcodeWatchpoint,
		OpcodeWPBranch, OpcodeCall, OpcodeCCall, OpcodeSwapStack,
		OpcodeExnInstruction:
		return true
	default:
		return false
	}
}

// BinOp is the wire-encoded flag for an arithmetic/bitwise binary operator
// (spec.md §6).
type BinOp uint32

const (
	BinOpAdd BinOp = 0x01 + iota
	BinOpSub
	BinOpMul
	BinOpSDiv
	BinOpSRem
	BinOpUDiv
	BinOpURem
	BinOpShl
	BinOpLShr
	BinOpAShr
	BinOpAnd
	BinOpOr
	BinOpXor
)

// Shift and bitwise ops occupy the tail of the 0x01..0x0D range
// (SHL=0x08 … XOR=0x0D).

const (
	FBinOpFAdd BinOp = 0xB0 + iota
	FBinOpFSub
	FBinOpFMul
	FBinOpFDiv
	FBinOpFRem
)

// CmpOp is the wire-encoded flag for a comparison (spec.md §6:
// "EQ=0x20 … ULT=0x29, FFALSE=0xC0 … FOLE=0xCF").
type CmpOp uint32

const (
	CmpEQ CmpOp = 0x20 + iota
	CmpNE
	CmpSGE
	CmpSGT
	CmpSLE
	CmpSLT
	CmpUGE
	CmpUGT
	CmpULE
	CmpULT
)

const (
	FCmpFFalse CmpOp = 0xC0 + iota
	FCmpFTrue
	FCmpFOEQ
	FCmpFOGT
	FCmpFOGE
	FCmpFOLT
	FCmpFOLE
	FCmpFONE
	FCmpFORD
	FCmpFUEQ
	FCmpFUGT
	FCmpFUGE
	FCmpFULT
	FCmpFULE
	FCmpFUNE
	FCmpFUNO
)

// ConvOp is the wire-encoded flag for a conversion (spec.md §6:
// "TRUNC=0x30 … PTRCAST=0x3B").
type ConvOp uint32

const (
	ConvTrunc ConvOp = 0x30 + iota
	ConvZext
	ConvSext
	ConvFPTrunc
	ConvFPExt
	ConvFPToUI
	ConvFPToSI
	ConvUIToFP
	ConvSIToFP
	ConvBitcast
	ConvRefCast
	ConvPtrCast
)

// MemoryOrder is the wire-encoded flag for atomic memory ordering (spec.md
// §6: "NotAtomic=0 … SeqCst=6").
type MemoryOrder uint32

const (
	MemoryOrderNotAtomic MemoryOrder = iota
	MemoryOrderRelaxed
	MemoryOrderConsume
	MemoryOrderAcquire
	MemoryOrderRelease
	MemoryOrderAcqRel
	MemoryOrderSeqCst
)

// AtomicRMWOp is the wire-encoded flag for an atomicrmw operation (spec.md
// §6: "XCHG=0 … UMIN=0x0A").
type AtomicRMWOp uint32

const (
	AtomicRMWXchg AtomicRMWOp = iota
	AtomicRMWAdd
	AtomicRMWSub
	AtomicRMWAnd
	AtomicRMWNand
	AtomicRMWOr
	AtomicRMWXor
	AtomicRMWMax
	AtomicRMWMin
	AtomicRMWUMax
	AtomicRMWUMin
)

// CommonInstOp names a common-instruction family member, dispatched through
// CommonInstTable rather than hardcoded per spec.md's supplemented
// COMMINST design (see SPEC_FULL.md §3).
type CommonInstOp uint32

const (
	CommInstThreadExit CommonInstOp = iota
	CommInstNativePin
	CommInstNativeUnpin
	CommInstGetThreadLocal
	CommInstSetThreadLocal
	CommInstFutexWait
	CommInstFutexWake
	CommInstTagref64IsInt
	CommInstTagref64IsFP
	CommInstTagref64IsRef
	CommInstTagref64ToInt
	CommInstTagref64ToFP
	CommInstTagref64ToRef
	CommInstTagref64FromInt
	CommInstTagref64FromFP
	CommInstTagref64FromRef
)
