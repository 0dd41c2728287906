package ir

// GlobalCell is a client-declared global memory cell (spec.md §3
// "new_global_cell"). Its static type is the pointee type; any Value that
// references it observes type iref<Typ> (see Value.Type()).
type GlobalCell struct {
	MuEntityHeader
	Typ *Type
}

// NewGlobalCell constructs a GlobalCell for a freshly minted registry ID.
func NewGlobalCell(id ID, typ *Type) *GlobalCell {
	return &GlobalCell{MuEntityHeader: NewMuEntityHeader(id), Typ: typ}
}

// ConstantDef is a client-declared named constant (spec.md §3 "new_const_*"):
// an ID/name pair bound to a Constant literal of a given static type. The
// Constant payload itself (value.go) stays header-less since a Value can
// also carry an anonymous Constant inline; ConstantDef is only the
// registry-visible wrapper minted by new_const_*.
type ConstantDef struct {
	MuEntityHeader
	Typ   *Type
	Value Constant
}

// NewConstantDef constructs a ConstantDef for a freshly minted registry ID.
func NewConstantDef(id ID, typ *Type, val Constant) *ConstantDef {
	return &ConstantDef{MuEntityHeader: NewMuEntityHeader(id), Typ: typ, Value: val}
}
