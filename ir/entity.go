package ir

import (
	"fmt"
	"sync"
)

// ID is the numeric identifier shared by every MuEntity. Equality between
// entities is ID-based (spec.md §3).
type ID uint64

// ID ranges partition the ID space so that a bare integer's provenance is
// recoverable without a side table: machine registers, compiler-synthesized
// temporaries, and client-declared entities never collide.
const (
	// MachineRegIDMin/Max bound the IDs reserved for physical machine
	// registers (spec.md §3: "[0, 100)").
	MachineRegIDMin ID = 0
	MachineRegIDMax ID = 100

	// InternalIDMin/Max bound IDs minted by the compiler itself (prologue
	// temporaries, spill-rewrite temps, synthetic block names): "[101, 200)".
	InternalIDMin ID = 100
	InternalIDMax ID = 200

	// UserIDMin is the first ID available to client-minted entities:
	// "[201, ∞)".
	UserIDMin ID = 201
)

// IDClass classifies an ID by the range it falls in.
type IDClass int

const (
	IDClassMachineReg IDClass = iota
	IDClassInternal
	IDClassUser
)

// ClassOf returns which range id belongs to.
func (id ID) ClassOf() IDClass {
	switch {
	case id < InternalIDMin:
		return IDClassMachineReg
	case id < UserIDMin:
		return IDClassInternal
	default:
		return IDClassUser
	}
}

// MuEntityHeader is embedded by every top-level MuEntity (types, constants,
// globals, signatures, functions, function versions, blocks, SSA values). It
// carries the entity's immutable ID and its late-bound, mutable symbolic
// name, guarded by a reader/writer lock per spec.md §5 ("MuEntityHeader.name
// is guarded by a reader/writer lock").
type MuEntityHeader struct {
	id ID

	mu   sync.RWMutex
	name string
}

// NewMuEntityHeader constructs a header for a freshly minted ID. The name is
// unset; it may be attached later via SetName.
func NewMuEntityHeader(id ID) MuEntityHeader {
	return MuEntityHeader{id: id}
}

// ID returns the entity's unique numeric identifier.
func (h *MuEntityHeader) ID() ID { return h.id }

// Name returns the entity's symbolic name and whether one has been set.
func (h *MuEntityHeader) Name() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name, h.name != ""
}

// SetName attaches (or replaces) the symbolic name for this entity. A
// leading '@' or '%' sigil, as used by the client-facing IR text form, is
// stripped so that internal comparisons never have to account for it.
func (h *MuEntityHeader) SetName(name string) {
	if len(name) > 0 && (name[0] == '@' || name[0] == '%') {
		name = name[1:]
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name = name
}

// Display renders the entity the way spec.md §4.1 requires: "name #id" or
// "UNNAMED #id".
func (h *MuEntityHeader) Display() string {
	name, ok := h.Name()
	if !ok {
		return fmt.Sprintf("UNNAMED #%d", h.id)
	}
	return fmt.Sprintf("%s #%d", name, h.id)
}

// Equal implements ID-based equality for MuEntity (spec.md §3: "Equality is
// ID-based").
func (h *MuEntityHeader) Equal(o *MuEntityHeader) bool {
	return h.id == o.id
}

// MuEntity is implemented by every header-carrying IR node.
type MuEntity interface {
	ID() ID
	Display() string
}
