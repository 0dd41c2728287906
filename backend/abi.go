// Package backend holds the architecture-shared scaffolding concrete ISA
// backends (backend/isa/amd64, backend/isa/arm64) plug into: the
// FunctionABI argument/return classification generic and a shared Machine
// contract. Grounded on the teacher's backend/abi.go FunctionABI[R] and
// backend/machine.go Machine interface.
package backend

import (
	"fmt"

	"github.com/jstnlef/zebu-vm-sub001/compiler/regalloc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// ABIRegInfo supplies the per-ISA argument/return register sequences a
// FunctionABI classifies parameters against.
type ABIRegInfo interface {
	ArgsResultsRegs() (argInts, argFloats, resultInts, resultFloats []regalloc.RealReg)
}

// FunctionABI classifies a Mu function signature's parameters and results
// into register or stack-slot locations (spec.md §4.3 "ABI policies"),
// generic over the ISA's register-info table the same way the teacher's
// FunctionABI[R FunctionABIRegInfo] is.
type FunctionABI[R ABIRegInfo] struct {
	r           R
	Initialized bool

	Args, Rets                 []ABIArg
	ArgStackSize, RetStackSize int64

	ArgRealRegs []regalloc.VReg
	RetRealRegs []regalloc.VReg
}

// NewFunctionABI constructs an uninitialized FunctionABI bound to r; call
// Init per signature before use.
func NewFunctionABI[R ABIRegInfo](r R) *FunctionABI[R] { return &FunctionABI[R]{r: r} }

// ABIArgKind is the kind of ABI argument: register or stack slot.
type ABIArgKind byte

const (
	ABIArgKindReg ABIArgKind = iota
	ABIArgKindStack
)

func (k ABIArgKind) String() string {
	if k == ABIArgKindReg {
		return "reg"
	}
	return "stack"
}

// ABIArg is one parameter or result's classified location.
type ABIArg struct {
	Index  int
	Kind   ABIArgKind
	Reg    regalloc.VReg // valid iff Kind == ABIArgKindReg; always a precolored VReg.
	Offset int64         // valid iff Kind == ABIArgKindStack.
	Type   *ir.Type
}

func (a *ABIArg) String() string { return fmt.Sprintf("args[%d]: %s", a.Index, a.Kind) }

// Init classifies sig's parameters and results into Args/Rets, following
// the Mu ABI rule that a GPREX-eligible integer argument still occupies a
// GPR argument slot (spec.md §4.3: GPREX is a constraint on specific
// instructions, not a distinct calling-convention class).
func (a *FunctionABI[R]) Init(sig *ir.FuncSig) {
	argInts, argFloats, resultInts, resultFloats := a.r.ArgsResultsRegs()

	if cap(a.Rets) < len(sig.Rets) {
		a.Rets = make([]ABIArg, len(sig.Rets))
	}
	a.Rets = a.Rets[:len(sig.Rets)]
	a.RetStackSize = a.classify(a.Rets, sig.Rets, resultInts, resultFloats)

	if cap(a.Args) < len(sig.Args) {
		a.Args = make([]ABIArg, len(sig.Args))
	}
	a.Args = a.Args[:len(sig.Args)]
	a.ArgStackSize = a.classify(a.Args, sig.Args, argInts, argFloats)

	a.RetRealRegs = a.RetRealRegs[:0]
	for i := range a.Rets {
		if a.Rets[i].Kind == ABIArgKindReg {
			a.RetRealRegs = append(a.RetRealRegs, a.Rets[i].Reg)
		}
	}
	a.ArgRealRegs = a.ArgRealRegs[:0]
	for i := range a.Args {
		if a.Args[i].Kind == ABIArgKindReg {
			a.ArgRealRegs = append(a.ArgRealRegs, a.Args[i].Reg)
		}
	}
	a.Initialized = true
}

func (a *FunctionABI[R]) classify(s []ABIArg, types []*ir.Type, ints, floats []regalloc.RealReg) (stackSize int64) {
	il, fl := len(ints), len(floats)
	var stackOffset int64
	intIdx, floatIdx := 0, 0
	for i, typ := range types {
		arg := &s[i]
		arg.Index = i
		arg.Type = typ
		if isFloatType(typ) {
			if floatIdx >= fl {
				arg.Kind = ABIArgKindStack
				slot := int64(8)
				arg.Offset = stackOffset
				stackOffset += slot
			} else {
				arg.Kind = ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(floats[floatIdx], regalloc.RegClassFPR)
				floatIdx++
			}
		} else {
			if intIdx >= il {
				arg.Kind = ABIArgKindStack
				arg.Offset = stackOffset
				stackOffset += 8
			} else {
				arg.Kind = ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(ints[intIdx], regalloc.RegClassGPR)
				intIdx++
			}
		}
	}
	return stackOffset
}

func isFloatType(t *ir.Type) bool {
	return t != nil && (t.Kind == ir.TypeKindFloat || t.Kind == ir.TypeKindDouble)
}

// AlignedArgResultStackSlotSize returns the combined arg/result outgoing
// stack area, rounded up to 16-byte alignment (both amd64 SysV and arm64
// AAPCS64 require a 16-byte aligned stack at a call boundary).
func (a *FunctionABI[R]) AlignedArgResultStackSlotSize() int64 {
	size := a.ArgStackSize + a.RetStackSize
	return (size + 15) &^ 15
}
