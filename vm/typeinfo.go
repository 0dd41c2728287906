package vm

import "github.com/jstnlef/zebu-vm-sub001/ir"

// BackendTypeInfo is the size/alignment/layout a MuType lowers to, computed
// once per type and memoized (spec.md §4.8 "get_backend_type_info").
type BackendTypeInfo struct {
	Size      uint64
	Align     uint64
	// FieldOffsets mirrors Struct/Hybrid's fixed field order; empty for
	// every other kind.
	FieldOffsets []uint64
}

func ceilDiv(n, d uint64) uint64 { return (n + d - 1) / d }

func alignUp(n, a uint64) uint64 {
	if a == 0 {
		return n
	}
	return ceilDiv(n, a) * a
}

// GetBackendTypeInfo returns (computing and caching on first use) the
// layout for the type declared under id, following the rules of spec.md
// §4.8 exactly.
func (r *Registry) GetBackendTypeInfo(id ir.ID) *BackendTypeInfo {
	r.typeInfoMu.Lock()
	defer r.typeInfoMu.Unlock()
	if info, ok := r.typeInfoCache[id]; ok {
		return info
	}
	info := r.computeTypeInfo(r.GetType(id))
	r.typeInfoCache[id] = info
	return info
}

// computeTypeInfo recurses structurally (not by ID) since Array/Vector
// element types and Struct/Hybrid field types are rarely themselves
// registry-declared entities — only the outermost MuType a client declares
// via new_type_* is required to carry an ID.
func (r *Registry) computeTypeInfo(t *ir.Type) *BackendTypeInfo {
	switch t.Kind {
	case ir.TypeKindInt:
		size := ceilDiv(uint64(t.IntWidth), 8)
		align := size
		if align > 8 {
			align = 8
		}
		return &BackendTypeInfo{Size: size, Align: align}
	case ir.TypeKindRef, ir.TypeKindIRef, ir.TypeKindWeakRef, ir.TypeKindUPtr,
		ir.TypeKindThreadRef, ir.TypeKindStackRef, ir.TypeKindTagref64,
		ir.TypeKindFuncRef, ir.TypeKindUFuncPtr:
		return &BackendTypeInfo{Size: 8, Align: 8}
	case ir.TypeKindFloat:
		return &BackendTypeInfo{Size: 4, Align: 4}
	case ir.TypeKindDouble:
		return &BackendTypeInfo{Size: 8, Align: 8}
	case ir.TypeKindVoid:
		return &BackendTypeInfo{Size: 0, Align: 8}
	case ir.TypeKindArray, ir.TypeKindVector:
		elem := r.computeTypeInfo(t.Elem)
		return &BackendTypeInfo{Size: t.Length * elem.Size, Align: elem.Align}
	case ir.TypeKindStruct:
		body, err := ir.StructTagMap.Lookup(t.Tag)
		if err != nil {
			bug("GetBackendTypeInfo", 0, err.Error())
		}
		return r.layoutFields(body.Fields, nil)
	case ir.TypeKindHybrid:
		body, err := ir.HybridTagMap.Lookup(t.Tag)
		if err != nil {
			bug("GetBackendTypeInfo", 0, err.Error())
		}
		return r.layoutFields(body.Fixed, body.Var)
	default:
		bug("GetBackendTypeInfo", 0, "type has no backend representation")
		return nil
	}
}

// layoutFields implements the shared Struct/Hybrid rule: each field's
// offset is rounded up to its own alignment, the whole fixed part is then
// padded to the struct's alignment (max field alignment, min 1), and for a
// Hybrid the variable tail's alignment also contributes to that max without
// contributing to the fixed size (spec.md §4.8).
func (r *Registry) layoutFields(fields []ir.StructField, tail *ir.Type) *BackendTypeInfo {
	var offset uint64
	align := uint64(1)
	offsets := make([]uint64, len(fields))
	for i, f := range fields {
		fi := r.computeTypeInfo(f.Type)
		offset = alignUp(offset, fi.Align)
		offsets[i] = offset
		offset += fi.Size
		if fi.Align > align {
			align = fi.Align
		}
	}
	if tail != nil {
		ti := r.computeTypeInfo(tail)
		if ti.Align > align {
			align = ti.Align
		}
	}
	size := alignUp(offset, align)
	return &BackendTypeInfo{Size: size, Align: align, FieldOffsets: offsets}
}
