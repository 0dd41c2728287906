package regalloc

import "sort"

// Result is the outcome of one Allocate call: either every node received a
// color (Spilled is empty) or a set of VRegs must be spilled and the
// machine code rewritten before allocation is retried (spec.md §4.6).
type Result struct {
	Colors  map[VRegID]RealReg
	Spilled []VRegID
}

// Allocate runs the iterated Chaitin-Briggs / Briggs-coalescing main loop
// of spec.md §4.6 over fn:
//
//	build(); make_work_list();
//	repeat
//	  simplify | coalesce | freeze | select_spill
//	until all worklists empty
//	assign_colors()
//	if spilled_nodes non-empty: rewrite_program(); // caller restarts
func Allocate(fn Function) *Result {
	ri := fn.RegisterInfo()
	g := buildInterferenceGraph(fn, ri)
	g.makeWorkList()

	for {
		switch {
		case len(g.simplifyWL) > 0:
			g.simplify()
		case len(g.worklistMoves) > 0:
			g.coalesce()
		case len(g.freezeWL) > 0:
			g.freeze()
		case len(g.spillWL) > 0:
			g.selectSpill()
		default:
			return g.finish()
		}
	}
}

func (g *Graph) makeWorkList() {
	for id, n := range g.nodes {
		if n.precolored {
			continue
		}
		k := g.ri.K(n.class)
		if n.degree >= k {
			g.spillWL[id] = true
		} else if len(n.moves) > 0 {
			g.freezeWL[id] = true
		} else {
			g.simplifyWL[id] = true
		}
	}
}

// simplify removes one low-degree, non-move-related node from the graph,
// pushing it on the select stack for later coloring.
func (g *Graph) simplify() {
	var pick VRegID
	for id := range g.simplifyWL {
		pick = id
		break
	}
	delete(g.simplifyWL, pick)
	g.selectStack = append(g.selectStack, pick)
	g.decrementDegree(pick)
}

func (g *Graph) decrementDegree(id VRegID) {
	n := g.nodes[id]
	k := g.ri.K(n.class)
	wasHigh := n.degree >= k
	n.degree--
	if wasHigh && n.degree < k {
		adj := g.adjacentEnabled(id)
		adj = append(adj, id)
		for _, m := range adj {
			g.enableMoves(m)
		}
		delete(g.spillWL, id)
		if g.moveRelated(id) {
			g.freezeWL[id] = true
		} else {
			g.simplifyWL[id] = true
		}
	}
}

// adjacentEnabled returns id's neighbors that are still "on the graph"
// (not already pushed to the select stack or coalesced into another node).
func (g *Graph) adjacentEnabled(id VRegID) []VRegID {
	n := g.nodes[id]
	var out []VRegID
	onStack := map[VRegID]bool{}
	for _, s := range g.selectStack {
		onStack[s] = true
	}
	for nb := range n.adj {
		if onStack[nb] {
			continue
		}
		if g.getAlias(nb) != nb {
			continue // coalesced away; its alias target already carries this edge.
		}
		out = append(out, nb)
	}
	return out
}

func (g *Graph) enableMoves(id VRegID) {
	n := g.nodes[id]
	for mi := range n.moves {
		m := &g.moves[mi]
		if m.active() {
			m.setActive(false)
			g.worklistMoves[mi] = true
		}
	}
}

func (m *move) active() bool      { return m.activeFlag }
func (m *move) setActive(v bool)  { m.activeFlag = v }

func (g *Graph) moveRelated(id VRegID) bool {
	n := g.nodes[id]
	for mi := range n.moves {
		m := &g.moves[mi]
		if !m.coalesced && !m.constrained && !m.frozen {
			return true
		}
	}
	return false
}

// coalesce attempts to merge the source and destination of one candidate
// move using the George test for a precolored endpoint, or the Briggs
// conservative test otherwise (spec.md §4.6 "coalesce()").
func (g *Graph) coalesce() {
	var mi int
	for idx := range g.worklistMoves {
		mi = idx
		break
	}
	delete(g.worklistMoves, mi)
	m := &g.moves[mi]

	x := g.getAlias(m.src)
	y := g.getAlias(m.dst)
	u, v := x, y
	if g.nodes[y].precolored {
		u, v = y, x
	}

	if u == v {
		m.coalesced = true
		g.addWorkList(u)
		return
	}
	if g.nodes[v].precolored || g.nodes[u].adj[v] {
		m.constrained = true
		g.addWorkList(u)
		g.addWorkList(v)
		return
	}

	ok := false
	if g.nodes[u].precolored {
		ok = g.george(u, v)
	} else {
		ok = g.conservative(u, v)
	}
	if ok {
		m.coalesced = true
		g.combine(u, v, mi)
		g.addWorkList(u)
	} else {
		// Not coalescable with the graph in its current state; park it in
		// the active set until a later decrementDegree re-enables it,
		// rather than re-queuing it for an immediate (and identical) retry.
		m.activeFlag = true
	}
}

func (g *Graph) getAlias(id VRegID) VRegID {
	n, ok := g.nodes[id]
	if !ok {
		return id
	}
	for n.alias != id {
		id = n.alias
		n = g.nodes[id]
	}
	return id
}

func (g *Graph) addWorkList(id VRegID) {
	n := g.nodes[id]
	if !n.precolored && !g.moveRelated(id) && n.degree < g.ri.K(n.class) {
		delete(g.freezeWL, id)
		g.simplifyWL[id] = true
	}
}

// george implements the George test: every neighbour t of v has degree<K,
// interferes with u, or is precoloured (spec.md §4.6 "ok(u,v)").
func (g *Graph) george(u, v VRegID) bool {
	vn := g.nodes[v]
	un := g.nodes[u]
	for t := range vn.adj {
		tn := g.nodes[t]
		if tn == nil {
			continue
		}
		if tn.degree < g.ri.K(tn.class) || tn.precolored || un.adj[t] {
			continue
		}
		return false
	}
	return true
}

// conservative implements the Briggs test: the combined neighbourhood has
// fewer than K nodes of degree>=K (spec.md §4.6 "conservative(u,v)").
func (g *Graph) conservative(u, v VRegID) bool {
	un, vn := g.nodes[u], g.nodes[v]
	seen := map[VRegID]bool{}
	k := 0
	class := un.class
	count := func(id VRegID) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := g.nodes[id]
		if n != nil && n.degree >= g.ri.K(class) {
			k++
		}
	}
	for t := range un.adj {
		count(t)
	}
	for t := range vn.adj {
		count(t)
	}
	return k < g.ri.K(class)
}

func (g *Graph) combine(u, v VRegID, moveIdx int) {
	delete(g.freezeWL, v)
	delete(g.spillWL, v)
	vn := g.nodes[v]
	vn.alias = u
	un := g.nodes[u]
	for mi := range vn.moves {
		un.moves[mi] = true
	}
	for t := range vn.adj {
		if t == u {
			continue
		}
		g.addEdge(t, u, g.ri)
		g.decrementDegree(t)
	}
	if un.degree >= g.ri.K(un.class) {
		delete(g.freezeWL, u)
		g.spillWL[u] = true
	}
}

// freeze gives up on all moves of one low-degree node so it can be
// simplified (spec.md §4.6 "freeze()"). Frozen moves are never
// reconsidered.
func (g *Graph) freeze() {
	var pick VRegID
	for id := range g.freezeWL {
		pick = id
		break
	}
	delete(g.freezeWL, pick)
	g.simplifyWL[pick] = true
	g.freezeMoves(pick)
}

func (g *Graph) freezeMoves(id VRegID) {
	n := g.nodes[id]
	for mi := range n.moves {
		m := &g.moves[mi]
		if m.coalesced || m.frozen || m.constrained {
			continue
		}
		if !g.worklistMoves[mi] && !m.active() {
			continue
		}
		delete(g.worklistMoves, mi)
		m.frozen = true
		var other VRegID
		if g.getAlias(m.src) == id {
			other = g.getAlias(m.dst)
		} else {
			other = g.getAlias(m.src)
		}
		on := g.nodes[other]
		if !g.moveRelated(other) && on.degree < g.ri.K(on.class) && !on.precolored {
			delete(g.freezeWL, other)
			g.simplifyWL[other] = true
		}
	}
}

// selectSpill picks a potential-spill node, preferring high degree and low
// cost/degree, but never a node marked unspillable (spec.md §4.6 "Spill
// selection prefers nodes with high degree and low cost/degree, but never a
// node marked spillable = false").
func (g *Graph) selectSpill() {
	type cand struct {
		id    VRegID
		score float64
	}
	var cands []cand
	for id := range g.spillWL {
		n := g.nodes[id]
		if !n.spillable {
			continue
		}
		score := n.spillCost / float64(n.degree+1)
		cands = append(cands, cand{id, score})
	}
	if len(cands) == 0 {
		// Every candidate is unspillable: compiler bug per spec.md §7
		// ("Register allocation infeasibility ... fail-fast").
		panic("BUG: spill required but all candidates are marked spillable=false")
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score < cands[j].score })
	pick := cands[0].id
	delete(g.spillWL, pick)
	g.simplifyWL[pick] = true
	g.freezeMoves(pick)
}

// finish pops the select stack assigning colors (assign_colors), then
// reports any nodes that could not be colored as Spilled.
func (g *Graph) finish() *Result {
	colors := make(map[VRegID]RealReg)
	var spilled []VRegID

	for i := len(g.selectStack) - 1; i >= 0; i-- {
		id := g.selectStack[i]
		n := g.nodes[id]
		used := map[RealReg]bool{}
		for nb := range n.adj {
			alias := g.getAlias(nb)
			nbn := g.nodes[alias]
			if nbn == nil {
				continue
			}
			if nbn.precolored {
				used[nbn.color] = true
				for _, a := range g.ri.Aliases[nbn.color] {
					used[a] = true
				}
			} else if c, ok := colors[alias]; ok {
				used[c] = true
				for _, a := range g.ri.Aliases[c] {
					used[a] = true
				}
			}
		}
		var assigned RealReg
		found := false
		for _, r := range g.ri.AllocatableRegisters[n.class] {
			if !used[r] {
				assigned = r
				found = true
				break
			}
		}
		if found {
			colors[id] = assigned
		} else {
			spilled = append(spilled, id)
		}
	}

	// Coalesced nodes inherit their alias's color.
	for id, n := range g.nodes {
		if n.precolored {
			continue
		}
		alias := g.getAlias(id)
		if alias == id {
			continue
		}
		if an := g.nodes[alias]; an.precolored {
			colors[id] = an.color
		} else if c, ok := colors[alias]; ok {
			colors[id] = c
		}
	}

	return &Result{Colors: colors, Spilled: spilled}
}
