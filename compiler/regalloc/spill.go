package regalloc

import "sync/atomic"

// RewriteSpills implements spec.md §4.6 "Spill rewriting": for each spilled
// VReg, allocate a stack slot sized for its type, then for every use insert
// a load immediately before and for every def insert a store immediately
// after. The newly-generated temporaries are the Function implementation's
// responsibility to mark Spillable()==false (per spec.md: "Each inserted
// temp is marked spillable = false to guarantee termination"); this
// function only drives the insertion, it does not and cannot itself force
// that property on Instr values it doesn't own.
//
// The compiler driver runs Allocate again after RewriteSpills, since the
// newly inserted loads and stores are themselves subject to allocation;
// instruction selection is not rerun.
func RewriteSpills(fn Function, spilled []VRegID) {
	slots := make(map[VRegID]int, len(spilled))
	spillSet := make(map[VRegID]bool, len(spilled))
	for _, id := range spilled {
		spillSet[id] = true
	}

	for _, blk := range fn.Blocks() {
		for _, in := range blk.Instrs() {
			for _, u := range in.Uses() {
				if spillSet[u.ID()] {
					slot, ok := slots[u.ID()]
					if !ok {
						slot = fn.AllocateSpillSlot(u)
						slots[u.ID()] = slot
					}
					tmp := NewVReg(freshSpillTempID(fn), u.Class())
					fn.InsertLoadBefore(in, u, tmp, slot)
				}
			}
			for _, d := range in.Defs() {
				if spillSet[d.ID()] {
					slot, ok := slots[d.ID()]
					if !ok {
						slot = fn.AllocateSpillSlot(d)
						slots[d.ID()] = slot
					}
					tmp := NewVReg(freshSpillTempID(fn), d.Class())
					fn.InsertStoreAfter(in, d, tmp, slot)
				}
			}
		}
	}
}

// freshSpillTempID mints a new virtual-register identifier for a
// spill-load/store temporary, taken past the end of the function's existing
// VReg numbering so it can never collide with a live program value.
func freshSpillTempID(fn Function) VRegID {
	n := spillTempCounter.Add(1)
	return VRegID(fn.NumVRegs()) + VRegID(n)
}

// spillTempCounter is process-global rather than per-Function because a
// single compiler process may have several Allocate calls interleaved
// across function versions compiled on different goroutines (spec.md §5
// "different function versions may be compiled in parallel"); monotonicity
// across all of them, not just within one Function, is what correctness
// requires, so the counter is advanced with a single atomic add rather
// than a plain increment.
var spillTempCounter atomic.Uint32
