package regalloc

// node is one interference-graph node: either a virtueal register or a
// precolored machine register (spec.md §4.6 "Nodes are SSA variables and
// machine registers (precoloured)").
type node struct {
	vreg       VReg
	precolored bool
	color      RealReg // valid only once colored or precolored.

	degree   int
	adj      map[VRegID]bool
	moves    map[int]bool // indices into Graph.moves this node participates in.
	alias    VRegID       // union-find parent once coalesced; equal to vreg.ID() if not coalesced.

	spillCost float64
	spillable bool
	class     RegClass
}

// move is one candidate coalescing move: a pair of VRegs connected by a
// register-to-register copy instruction.
type move struct {
	src, dst                                  VRegID
	coalesced, activeFlag, frozen, constrained bool
}

// Graph is the interference graph plus all of the IRC algorithm's worklists
// (spec.md §4.6 "build(); make_work_list()" and the main loop).
type Graph struct {
	ri *RegisterInfo
	fn Function

	nodes map[VRegID]*node
	moves []move

	// worklists, keyed by VRegID.
	simplifyWL map[VRegID]bool
	freezeWL   map[VRegID]bool
	spillWL    map[VRegID]bool
	selectStack []VRegID

	worklistMoves map[int]bool
}

// buildInterferenceGraph runs liveness analysis and constructs the
// interference graph for fn, per spec.md §4.6 "Interference graph": at
// every program point all simultaneously live values interfere pairwise,
// and a def interferes with every value live-out minus the move's own
// source.
func buildInterferenceGraph(fn Function, ri *RegisterInfo) *Graph {
	g := &Graph{
		ri:            ri,
		fn:            fn,
		nodes:         make(map[VRegID]*node),
		simplifyWL:    make(map[VRegID]bool),
		freezeWL:      make(map[VRegID]bool),
		spillWL:       make(map[VRegID]bool),
		worklistMoves: make(map[int]bool),
	}

	blocks := fn.Blocks()
	liveOut := computeLiveOut(blocks)

	for _, blk := range blocks {
		live := cloneSet(liveOut[blk.ID()])
		instrs := blk.Instrs()
		for i := len(instrs) - 1; i >= 0; i-- {
			in := instrs[i]
			defs := in.Defs()
			uses := in.Uses()

			var moveIdx = -1
			if in.IsMove() {
				src, dst := in.MoveSrcDst()
				moveIdx = len(g.moves)
				g.moves = append(g.moves, move{src: src.ID(), dst: dst.ID()})
				g.worklistMoves[moveIdx] = true
				g.nodeFor(src, ri).moves[moveIdx] = true
				g.nodeFor(dst, ri).moves[moveIdx] = true
			}

			excludeFromInterference := VRegID(vRegIDInvalid)
			if moveIdx >= 0 {
				src, _ := in.MoveSrcDst()
				excludeFromInterference = src.ID()
			}

			for _, d := range defs {
				dn := g.nodeFor(d, ri)
				dn.spillable = dn.spillable && in.Spillable()
				for liveID := range live {
					if liveID == d.ID() || liveID == excludeFromInterference {
						continue
					}
					g.addEdge(d.ID(), liveID, ri)
				}
				for _, d2 := range defs {
					if d2.ID() != d.ID() {
						g.addEdge(d.ID(), d2.ID(), ri)
					}
				}
			}

			if in.IsCall() {
				for _, rr := range allRealRegs(ri) {
					if ri.CallerSaved[rr] {
						crv := FromRealReg(rr, classOfReal(ri, rr))
						cn := g.nodeFor(crv, ri)
						for liveID := range live {
							g.addEdge(cn.vreg.ID(), liveID, ri)
						}
					}
				}
			}

			// live = (live - defs) U uses
			for _, d := range defs {
				delete(live, d.ID())
			}
			for _, u := range uses {
				g.nodeFor(u, ri)
				live[u.ID()] = true
			}

			depth := fn.LoopDepth(blk)
			weight := 1.0
			for k := 0; k < depth; k++ {
				weight *= 10
			}
			for _, d := range defs {
				g.nodeFor(d, ri).spillCost += weight
			}
			for _, u := range uses {
				g.nodeFor(u, ri).spillCost += weight
			}
		}
	}
	return g
}

func (g *Graph) nodeFor(v VReg, ri *RegisterInfo) *node {
	id := v.ID()
	n, ok := g.nodes[id]
	if !ok {
		n = &node{
			vreg:       v,
			precolored: v.IsRealReg(),
			adj:        make(map[VRegID]bool),
			moves:      make(map[int]bool),
			alias:      id,
			spillable:  true,
			class:      v.Class(),
		}
		if n.precolored {
			n.color = v.RealReg()
			n.degree = 1 << 30 // infinite degree, per Appel's IRC treatment of precolored nodes.
		}
		g.nodes[id] = n
	}
	return n
}

func (g *Graph) addEdge(a, b VRegID, ri *RegisterInfo) {
	if a == b {
		return
	}
	na, nb := g.nodes[a], g.nodes[b]
	if na == nil || nb == nil || na.class != nb.class {
		return
	}
	if na.adj[b] {
		return
	}
	na.adj[b] = true
	nb.adj[a] = true
	if !na.precolored {
		na.degree++
	}
	if !nb.precolored {
		nb.degree++
	}
}

func allRealRegs(ri *RegisterInfo) []RealReg {
	var out []RealReg
	for c := RegClass(1); c < NumRegClass; c++ {
		out = append(out, ri.AllocatableRegisters[c]...)
	}
	return out
}

func classOfReal(ri *RegisterInfo, r RealReg) RegClass {
	for c := RegClass(1); c < NumRegClass; c++ {
		for _, rr := range ri.AllocatableRegisters[c] {
			if rr == r {
				return c
			}
		}
	}
	return RegClassInvalid
}

func cloneSet(s map[VRegID]bool) map[VRegID]bool {
	out := make(map[VRegID]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// computeLiveOut runs the standard backward dataflow fixpoint
// live_in[b] = uses[b] U (live_out[b] - defs[b]); live_out[b] = U live_in[s]
// over all successors s, iterating until no set changes.
func computeLiveOut(blocks []Block) map[int]map[VRegID]bool {
	uses := make(map[int]map[VRegID]bool, len(blocks))
	defs := make(map[int]map[VRegID]bool, len(blocks))
	liveIn := make(map[int]map[VRegID]bool, len(blocks))
	liveOut := make(map[int]map[VRegID]bool, len(blocks))

	for _, blk := range blocks {
		u := map[VRegID]bool{}
		d := map[VRegID]bool{}
		for _, in := range blk.Instrs() {
			for _, use := range in.Uses() {
				if !d[use.ID()] {
					u[use.ID()] = true
				}
			}
			for _, def := range in.Defs() {
				d[def.ID()] = true
			}
		}
		uses[blk.ID()] = u
		defs[blk.ID()] = d
		liveIn[blk.ID()] = map[VRegID]bool{}
		liveOut[blk.ID()] = map[VRegID]bool{}
	}

	changed := true
	for changed {
		changed = false
		for _, blk := range blocks {
			id := blk.ID()
			out := map[VRegID]bool{}
			for _, s := range blk.Succs() {
				for v := range liveIn[s.ID()] {
					out[v] = true
				}
			}
			in := map[VRegID]bool{}
			for v := range uses[id] {
				in[v] = true
			}
			for v := range out {
				if !defs[id][v] {
					in[v] = true
				}
			}
			if !setEqual(in, liveIn[id]) || !setEqual(out, liveOut[id]) {
				liveIn[id] = in
				liveOut[id] = out
				changed = true
			}
		}
	}
	return liveOut
}

func setEqual(a, b map[VRegID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
