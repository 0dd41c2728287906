package builder

import "github.com/jstnlef/zebu-vm-sub001/ir"

// Re-exported opcode-family constants (spec.md §6's wire encodings), so
// client code that only imports builder for IR construction does not also
// need to import ir just to name a BinOp/CmpOp/ConvOp/MemoryOrder/
// AtomicRMWOp value.
type (
	BinOp       = ir.BinOp
	CmpOp       = ir.CmpOp
	ConvOp      = ir.ConvOp
	MemoryOrder = ir.MemoryOrder
	AtomicRMWOp = ir.AtomicRMWOp
)

const (
	Add  = ir.BinOpAdd
	Sub  = ir.BinOpSub
	Mul  = ir.BinOpMul
	SDiv = ir.BinOpSDiv
	SRem = ir.BinOpSRem
	UDiv = ir.BinOpUDiv
	URem = ir.BinOpURem
	And  = ir.BinOpAnd
	Or   = ir.BinOpOr
	Xor  = ir.BinOpXor
	Shl  = ir.BinOpShl
	LShr = ir.BinOpLShr
	AShr = ir.BinOpAShr

	FAdd = ir.FBinOpFAdd
	FSub = ir.FBinOpFSub
	FMul = ir.FBinOpFMul
	FDiv = ir.FBinOpFDiv
	FRem = ir.FBinOpFRem
)

const (
	EQ  = ir.CmpEQ
	NE  = ir.CmpNE
	SGE = ir.CmpSGE
	SGT = ir.CmpSGT
	SLE = ir.CmpSLE
	SLT = ir.CmpSLT
	UGE = ir.CmpUGE
	UGT = ir.CmpUGT
	ULE = ir.CmpULE
	ULT = ir.CmpULT
)

const (
	Trunc   = ir.ConvTrunc
	Zext    = ir.ConvZext
	Sext    = ir.ConvSext
	FPTrunc = ir.ConvFPTrunc
	FPExt   = ir.ConvFPExt
	FPToUI  = ir.ConvFPToUI
	FPToSI  = ir.ConvFPToSI
	UIToFP  = ir.ConvUIToFP
	SIToFP  = ir.ConvSIToFP
	Bitcast = ir.ConvBitcast
	RefCast = ir.ConvRefCast
	PtrCast = ir.ConvPtrCast
)

const (
	NotAtomic = ir.MemoryOrderNotAtomic
	Relaxed   = ir.MemoryOrderRelaxed
	Consume   = ir.MemoryOrderConsume
	Acquire   = ir.MemoryOrderAcquire
	Release   = ir.MemoryOrderRelease
	AcqRel    = ir.MemoryOrderAcqRel
	SeqCst    = ir.MemoryOrderSeqCst
)

const (
	RMWXchg = ir.AtomicRMWXchg
	RMWAdd  = ir.AtomicRMWAdd
	RMWSub  = ir.AtomicRMWSub
	RMWAnd  = ir.AtomicRMWAnd
	RMWNand = ir.AtomicRMWNand
	RMWOr   = ir.AtomicRMWOr
	RMWXor  = ir.AtomicRMWXor
	RMWMax  = ir.AtomicRMWMax
	RMWMin  = ir.AtomicRMWMin
	RMWUMax = ir.AtomicRMWUMax
	RMWUMin = ir.AtomicRMWUMin
)
