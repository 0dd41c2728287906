// Package vm implements the process-wide Mu VM registry of spec.md §4.8: the
// single store of record for every declared type, constant, global,
// function signature, function, function version, and compiled function,
// plus the id<->name bimap late naming relies on. Grounded on the teacher's
// wazevo.Engine / moduleEngine, which play the analogous "one shared,
// lock-protected store per process" role for compiled Wasm modules.
package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/internal/telemetry"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// CompilerBug is the panic payload for spec.md §7's "compiler internal
// invariants" class: unknown opcode, type lookup miss, and similarly
// unreachable-unless-broken conditions. Carrying the entity ID and the
// pass/registry name in a struct (rather than a bare string) lets a crash
// handler log structured fields instead of parsing a message.
type CompilerBug struct {
	Where  string
	Entity ir.ID
	Msg    string
}

func (b *CompilerBug) Error() string {
	return fmt.Sprintf("%s: %s (entity #%d)", b.Where, b.Msg, b.Entity)
}

func bug(where string, entity ir.ID, msg string) {
	panic(&CompilerBug{Where: where, Entity: entity, Msg: msg})
}

// ErrDuplicateID is returned by a declare_* call when id already names an
// entry in that registry (spec.md §7 "duplicate ID insertion").
type ErrDuplicateID struct {
	Registry string
	ID       ir.ID
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("%s: id #%d already declared", e.Registry, e.ID)
}

// Registry is the VM's single process-wide entity store. The zero value is
// not usable; construct with NewRegistry.
type Registry struct {
	idNameMu sync.RWMutex
	idToName map[ir.ID]string
	nameToID map[string]ir.ID

	typesMu sync.RWMutex
	types   map[ir.ID]*ir.Type

	constantsMu sync.RWMutex
	constants   map[ir.ID]*ir.ConstantDef

	globalsMu sync.RWMutex
	globals   map[ir.ID]*ir.GlobalCell

	funcSigsMu sync.RWMutex
	funcSigs   map[ir.ID]*ir.FuncSig

	funcsMu sync.RWMutex
	funcs   map[ir.ID]*ir.MuFunction

	funcVersMu sync.RWMutex
	funcVers   map[ir.ID]*ir.FunctionVersion

	compiledFuncsMu sync.RWMutex
	compiledFuncs   map[ir.ID]*mc.MachineCode

	typeInfoMu    sync.Mutex
	typeInfoCache map[ir.ID]*BackendTypeInfo

	commonInsts *ir.CommonInstTable

	nextID uint64 // atomic; Relaxed suffices, correctness needs only uniqueness.
}

// NewRegistry returns an empty registry with ID minting starting at
// ir.UserIDMin, the first ID available to client-declared entities.
func NewRegistry() *Registry {
	return &Registry{
		idToName:      make(map[ir.ID]string),
		nameToID:      make(map[string]ir.ID),
		types:         make(map[ir.ID]*ir.Type),
		constants:     make(map[ir.ID]*ir.ConstantDef),
		globals:       make(map[ir.ID]*ir.GlobalCell),
		funcSigs:      make(map[ir.ID]*ir.FuncSig),
		funcs:         make(map[ir.ID]*ir.MuFunction),
		funcVers:      make(map[ir.ID]*ir.FunctionVersion),
		compiledFuncs: make(map[ir.ID]*mc.MachineCode),
		typeInfoCache: make(map[ir.ID]*BackendTypeInfo),
		commonInsts:   ir.NewCommonInstTable(),
		nextID:        uint64(ir.UserIDMin),
	}
}

// NextID mints a fresh monotonic ID from the user range.
func (r *Registry) NextID() ir.ID {
	return ir.ID(atomic.AddUint64(&r.nextID, 1) - 1)
}

// armIDCounter re-arms the monotonic counter past the highest ID seen,
// called by Resume after rehydrating a snapshot so subsequently minted IDs
// never collide with persisted ones.
func (r *Registry) armIDCounter(seen ir.ID) {
	for {
		cur := atomic.LoadUint64(&r.nextID)
		if seen < ir.ID(cur) {
			return
		}
		if atomic.CompareAndSwapUint64(&r.nextID, cur, uint64(seen)+1) {
			return
		}
	}
}

// CommonInsts returns the process-wide common-instruction dispatch table
// (spec.md §6, SPEC_FULL.md §3's COMMINST supplement).
func (r *Registry) CommonInsts() *ir.CommonInstTable { return r.commonInsts }

// --- id<->name bimap -------------------------------------------------------

// SetName updates the bimap for entity, stripping a leading '@' or '%' sigil
// the way ir.MuEntityHeader.SetName does, and mirrors the name onto the
// header itself when header is non-nil.
func (r *Registry) SetName(entity ir.ID, name string, header *ir.MuEntityHeader) {
	if len(name) > 0 && (name[0] == '@' || name[0] == '%') {
		name = name[1:]
	}
	r.idNameMu.Lock()
	if old, ok := r.idToName[entity]; ok {
		delete(r.nameToID, old)
	}
	r.idToName[entity] = name
	r.nameToID[name] = entity
	r.idNameMu.Unlock()
	if header != nil {
		header.SetName(name)
	}
}

// NameOf returns the registered name for entity, if any.
func (r *Registry) NameOf(entity ir.ID) (string, bool) {
	r.idNameMu.RLock()
	defer r.idNameMu.RUnlock()
	n, ok := r.idToName[entity]
	return n, ok
}

// IDByName resolves a registered name back to its entity ID.
func (r *Registry) IDByName(name string) (ir.ID, bool) {
	r.idNameMu.RLock()
	defer r.idNameMu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// --- declare_* (write-once insertion) ---------------------------------------

func (r *Registry) DeclareType(id ir.ID, t *ir.Type) error {
	r.typesMu.Lock()
	defer r.typesMu.Unlock()
	if _, ok := r.types[id]; ok {
		return &ErrDuplicateID{Registry: "types", ID: id}
	}
	r.types[id] = t
	return nil
}

func (r *Registry) DeclareConst(id ir.ID, c *ir.ConstantDef) error {
	r.constantsMu.Lock()
	defer r.constantsMu.Unlock()
	if _, ok := r.constants[id]; ok {
		return &ErrDuplicateID{Registry: "constants", ID: id}
	}
	r.constants[id] = c
	return nil
}

func (r *Registry) DeclareGlobal(id ir.ID, g *ir.GlobalCell) error {
	r.globalsMu.Lock()
	defer r.globalsMu.Unlock()
	if _, ok := r.globals[id]; ok {
		return &ErrDuplicateID{Registry: "globals", ID: id}
	}
	r.globals[id] = g
	return nil
}

func (r *Registry) DeclareFuncSig(id ir.ID, s *ir.FuncSig) error {
	r.funcSigsMu.Lock()
	defer r.funcSigsMu.Unlock()
	if _, ok := r.funcSigs[id]; ok {
		return &ErrDuplicateID{Registry: "func_sigs", ID: id}
	}
	r.funcSigs[id] = s
	return nil
}

func (r *Registry) DeclareFunc(id ir.ID, f *ir.MuFunction) error {
	r.funcsMu.Lock()
	defer r.funcsMu.Unlock()
	if _, ok := r.funcs[id]; ok {
		return &ErrDuplicateID{Registry: "funcs", ID: id}
	}
	r.funcs[id] = f
	return nil
}

func (r *Registry) DeclareFuncVer(id ir.ID, fv *ir.FunctionVersion) error {
	r.funcVersMu.Lock()
	defer r.funcVersMu.Unlock()
	if _, ok := r.funcVers[id]; ok {
		return &ErrDuplicateID{Registry: "func_vers", ID: id}
	}
	r.funcVers[id] = fv
	return nil
}

// DeclareCompiledFunc records the machine code produced for a function
// version. Unlike bundle commit, this happens one function version at a
// time as the driver finishes each compile, so it is not part of load()'s
// fixed seven-registry commit order; it is still covered by the lock-order
// rule of spec.md §5 by always being acquired last.
func (r *Registry) DeclareCompiledFunc(id ir.ID, mcd *mc.MachineCode) error {
	r.compiledFuncsMu.Lock()
	defer r.compiledFuncsMu.Unlock()
	if _, ok := r.compiledFuncs[id]; ok {
		return &ErrDuplicateID{Registry: "compiled_funcs", ID: id}
	}
	r.compiledFuncs[id] = mcd
	return nil
}

// --- get_* (deterministic panic on missing) ---------------------------------

func (r *Registry) GetType(id ir.ID) *ir.Type {
	r.typesMu.RLock()
	defer r.typesMu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		bug("GetType", id, "no such type")
	}
	return t
}

func (r *Registry) GetFuncSig(id ir.ID) *ir.FuncSig {
	r.funcSigsMu.RLock()
	defer r.funcSigsMu.RUnlock()
	s, ok := r.funcSigs[id]
	if !ok {
		bug("GetFuncSig", id, "no such function signature")
	}
	return s
}

func (r *Registry) GetConst(id ir.ID) *ir.ConstantDef {
	r.constantsMu.RLock()
	defer r.constantsMu.RUnlock()
	c, ok := r.constants[id]
	if !ok {
		bug("GetConst", id, "no such constant")
	}
	return c
}

func (r *Registry) GetGlobal(id ir.ID) *ir.GlobalCell {
	r.globalsMu.RLock()
	defer r.globalsMu.RUnlock()
	g, ok := r.globals[id]
	if !ok {
		bug("GetGlobal", id, "no such global")
	}
	return g
}

func (r *Registry) GetFunc(id ir.ID) *ir.MuFunction {
	r.funcsMu.RLock()
	defer r.funcsMu.RUnlock()
	f, ok := r.funcs[id]
	if !ok {
		bug("GetFunc", id, "no such function")
	}
	return f
}

func (r *Registry) GetFuncVer(id ir.ID) *ir.FunctionVersion {
	r.funcVersMu.RLock()
	defer r.funcVersMu.RUnlock()
	fv, ok := r.funcVers[id]
	if !ok {
		bug("GetFuncVer", id, "no such function version")
	}
	return fv
}

func (r *Registry) GetCompiledFunc(id ir.ID) *mc.MachineCode {
	r.compiledFuncsMu.RLock()
	defer r.compiledFuncsMu.RUnlock()
	mcd, ok := r.compiledFuncs[id]
	if !ok {
		bug("GetCompiledFunc", id, "no compiled code for this function version")
	}
	return mcd
}

// --- Try* (non-panicking lookups for builder-layer reference validation) ---

func (r *Registry) TryGetType(id ir.ID) (*ir.Type, bool) {
	r.typesMu.RLock()
	defer r.typesMu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

func (r *Registry) TryGetFuncSig(id ir.ID) (*ir.FuncSig, bool) {
	r.funcSigsMu.RLock()
	defer r.funcSigsMu.RUnlock()
	s, ok := r.funcSigs[id]
	return s, ok
}

func (r *Registry) TryGetConst(id ir.ID) (*ir.ConstantDef, bool) {
	r.constantsMu.RLock()
	defer r.constantsMu.RUnlock()
	c, ok := r.constants[id]
	return c, ok
}

func (r *Registry) TryGetGlobal(id ir.ID) (*ir.GlobalCell, bool) {
	r.globalsMu.RLock()
	defer r.globalsMu.RUnlock()
	g, ok := r.globals[id]
	return g, ok
}

func (r *Registry) TryGetFunc(id ir.ID) (*ir.MuFunction, bool) {
	r.funcsMu.RLock()
	defer r.funcsMu.RUnlock()
	f, ok := r.funcs[id]
	return f, ok
}

// FuncVerIDs returns every function version ID currently committed, for a
// driver that wants to compile an entire registry (SPEC_FULL.md's
// cmd/muc), the way wazero's engine walks every function in a module.
func (r *Registry) FuncVerIDs() []ir.ID {
	r.funcVersMu.RLock()
	defer r.funcVersMu.RUnlock()
	ids := make([]ir.ID, 0, len(r.funcVers))
	for id := range r.funcVers {
		ids = append(ids, id)
	}
	return ids
}

// --- commit ------------------------------------------------------------

// BundleData is the set of staged entries a builder hands to Commit. Its
// field names track the seven registries of spec.md §4.7 step 9; a
// builder.Bundle populates one of these once every reference in it has been
// validated, since Commit itself never fails partway (spec.md's "commit is
// the only mutating step" contract is upheld by the builder validating
// everything beforehand, not by transactional rollback here).
type BundleData struct {
	Names    map[ir.ID]string
	Types    map[ir.ID]*ir.Type
	Consts   map[ir.ID]*ir.ConstantDef
	Globals  map[ir.ID]*ir.GlobalCell
	Sigs     map[ir.ID]*ir.FuncSig
	Funcs    map[ir.ID]*ir.MuFunction
	FuncVers map[ir.ID]*ir.FunctionVersion
}

// Commit inserts every staged entry of b into the registry under the fixed
// lock order of spec.md §5 (id_name_map -> name_id_map -> types ->
// constants -> globals -> func_sigs -> funcs -> func_vers).
func (r *Registry) Commit(b *BundleData) error {
	r.idNameMu.Lock()
	for id, name := range b.Names {
		if old, ok := r.idToName[id]; ok {
			delete(r.nameToID, old)
		}
		r.idToName[id] = name
		r.nameToID[name] = id
	}
	r.idNameMu.Unlock()

	r.typesMu.Lock()
	for id, t := range b.Types {
		r.types[id] = t
	}
	r.typesMu.Unlock()

	r.constantsMu.Lock()
	for id, c := range b.Consts {
		r.constants[id] = c
	}
	r.constantsMu.Unlock()

	r.globalsMu.Lock()
	for id, g := range b.Globals {
		r.globals[id] = g
	}
	r.globalsMu.Unlock()

	r.funcSigsMu.Lock()
	for id, s := range b.Sigs {
		r.funcSigs[id] = s
	}
	r.funcSigsMu.Unlock()

	r.funcsMu.Lock()
	for id, f := range b.Funcs {
		r.funcs[id] = f
	}
	r.funcsMu.Unlock()

	r.funcVersMu.Lock()
	for id, fv := range b.FuncVers {
		r.funcVers[id] = fv
	}
	r.funcVersMu.Unlock()

	telemetry.L().Sugar().Infow("bundle committed",
		"types", len(b.Types), "consts", len(b.Consts), "globals", len(b.Globals),
		"sigs", len(b.Sigs), "funcs", len(b.Funcs), "func_vers", len(b.FuncVers))
	return nil
}
