package ir

import "fmt"

// ValueKind discriminates the Value variants of spec.md §3.
type ValueKind byte

const (
	ValueKindInvalid ValueKind = iota
	ValueKindSSAVar
	ValueKindConstant
	ValueKindGlobal
	ValueKindMemory
)

// ValueID identifies an SSAVar value within a FunctionVersion's context.
type ValueID uint32

// Value is a typed value carrier. Exactly one of the payload fields is
// meaningful depending on Kind.
type Value struct {
	Kind ValueKind
	Typ  *Type

	SSA      ValueID         // ValueKindSSAVar
	Const    *Constant       // ValueKindConstant
	GlobalID ID              // ValueKindGlobal: the Global entity's ID.
	Mem      *MemoryLocation // ValueKindMemory: post-instruction-selection addressing mode.
}

// ValueInvalid is the zero Value, used as a sentinel the way the teacher
// uses ssa.ValueInvalid.
var ValueInvalid = Value{Kind: ValueKindInvalid}

// Valid reports whether this Value carries a real payload.
func (v Value) Valid() bool { return v.Kind != ValueKindInvalid }

// Type returns the static type of this value. For ValueKindGlobal, spec.md
// §3 states "the value itself has iref<inner_type>" — Global's MuType
// payload stores the inner type, and Type() wraps it accordingly.
func (v Value) Type() *Type {
	if v.Kind == ValueKindGlobal {
		return NewIRefType(v.Typ)
	}
	return v.Typ
}

func (v Value) String() string {
	switch v.Kind {
	case ValueKindSSAVar:
		return fmt.Sprintf("%%v%d", v.SSA)
	case ValueKindConstant:
		return v.Const.String()
	case ValueKindGlobal:
		return fmt.Sprintf("GLOBAL#%d", v.GlobalID)
	case ValueKindMemory:
		return v.Mem.String()
	default:
		return "<invalid value>"
	}
}

// ConstantKind discriminates the Constant variants of spec.md §3.
type ConstantKind byte

const (
	ConstantKindInt ConstantKind = iota
	ConstantKindFloat
	ConstantKindDouble
	ConstantKindFuncRef
	ConstantKindUFuncRef
	ConstantKindVector
	ConstantKindNullRef
	ConstantKindExternSym
)

// Constant is a compile-time literal.
type Constant struct {
	Kind ConstantKind

	Int      uint64
	Float32  float32
	Float64  float64
	FuncID   ID // FuncRef/UFuncRef: referenced MuFunction's ID.
	Elements []Constant
	Sym      string // ExternSym
}

func (c *Constant) String() string {
	switch c.Kind {
	case ConstantKindInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstantKindFloat:
		return fmt.Sprintf("%gf", c.Float32)
	case ConstantKindDouble:
		return fmt.Sprintf("%gd", c.Float64)
	case ConstantKindFuncRef:
		return fmt.Sprintf("FUNCREF(#%d)", c.FuncID)
	case ConstantKindUFuncRef:
		return fmt.Sprintf("UFUNCREF(#%d)", c.FuncID)
	case ConstantKindVector:
		return "VECTOR(...)"
	case ConstantKindNullRef:
		return "NULLREF"
	case ConstantKindExternSym:
		return fmt.Sprintf("EXTERNSYM(%s)", c.Sym)
	default:
		return "<invalid constant>"
	}
}

// MemoryLocationKind discriminates the two MemoryLocation variants of
// spec.md §3.
type MemoryLocationKind byte

const (
	MemoryLocationAddress MemoryLocationKind = iota
	MemoryLocationSymbolic
)

// MemoryLocation is produced by instruction selection when a Load/Store/etc
// operand is folded into an addressing mode instead of a register.
type MemoryLocation struct {
	Kind MemoryLocationKind

	// MemoryLocationAddress.
	Base  RegOrValue
	Offset int64
	HasOffset bool
	Index RegOrValue
	HasIndex bool
	Scale uint8

	// MemoryLocationSymbolic.
	SymBase  RegOrValue
	HasSymBase bool
	Label    string
}

// RegOrValue names either a virtual/physical register ID (post-selection)
// or a pre-selection SSA Value; the machine-code model only ever sees the
// former, but the same struct shape is reused while instruction selection is
// still constructing candidate addressing modes from tree operands.
type RegOrValue struct {
	IsReg bool
	Reg   uint64 // opaque regalloc.VReg, stored as uint64 to avoid an import cycle.
	Value Value
}

func (m *MemoryLocation) String() string {
	switch m.Kind {
	case MemoryLocationAddress:
		s := fmt.Sprintf("[base=%v", m.Base)
		if m.HasOffset {
			s += fmt.Sprintf("+%d", m.Offset)
		}
		if m.HasIndex {
			s += fmt.Sprintf("+%v*%d", m.Index, m.Scale)
		}
		return s + "]"
	case MemoryLocationSymbolic:
		if m.HasSymBase {
			return fmt.Sprintf("[%v+%s]", m.SymBase, m.Label)
		}
		return fmt.Sprintf("[%s]", m.Label)
	default:
		return "<invalid memloc>"
	}
}
