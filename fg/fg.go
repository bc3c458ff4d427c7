// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package fg implements message passing over a bipartite graph of
// factor nodes and variable group nodes.  Messages are BDDs; passing
// them to a fixpoint yields, for every variable group, an
// over-approximation of the projection of the factor conjunction onto
// that group.
package fg

import (
	log "github.com/sirupsen/logrus"

	"github.com/mfkiwl/FactorGraph/bdd"
)

type factorNode struct {
	f       bdd.Node // owned
	support bdd.Node // owned
	edges   []int    // adjacent group indices
}

type groupNode struct {
	cube  bdd.Node // owned
	edges []int    // adjacent factor indices
}

// Graph is a factor graph under construction or convergence.  Variable
// groups start out singleton and may be fused with GroupVariables
// before converging.
type Graph struct {
	m       *bdd.Manager
	factors []*factorNode
	groups  []*groupNode
	allVars bdd.Node // owned cube over every variable in any support
	// messages per factor edge, parallel to factors[i].edges
	toGroup  [][]bdd.Node // owned, factor → group
	toFactor [][]bdd.Node // owned, group → factor
}

// New builds a factor graph over the given factor functions with one
// variable group per support variable.  The factors stay owned by the
// caller.
func New(m *bdd.Manager, factors []bdd.Node) *Graph {
	g := &Graph{m: m}
	all := m.One()
	for _, f := range factors {
		n := &factorNode{f: m.Dup(f), support: m.Support(f)}
		g.factors = append(g.factors, n)
		next := m.CubeUnion(all, n.support)
		m.Free(all)
		all = next
	}
	g.allVars = all
	for _, v := range m.CubeVars(all) {
		g.groups = append(g.groups, &groupNode{cube: m.Ithvar(v)})
	}
	return g
}

// GroupVariables fuses every group covered by cube into a single group.
// Groups partially overlapping the cube are fused as well; grouping is
// driven by merged variable cubes, which never split an earlier group.
func (g *Graph) GroupVariables(cube bdd.Node) {
	var kept []*groupNode
	fused := g.m.One()
	found := false
	for _, gr := range g.groups {
		common := g.m.CubeIntersect(gr.cube, cube)
		overlap := !g.m.IsOne(common)
		g.m.Free(common)
		if !overlap {
			kept = append(kept, gr)
			continue
		}
		found = true
		next := g.m.CubeUnion(fused, gr.cube)
		g.m.Free(fused)
		g.m.Free(gr.cube)
		fused = next
	}
	if !found {
		g.m.Free(fused)
		return
	}
	kept = append(kept, &groupNode{cube: fused})
	g.groups = kept
}

// wire recomputes adjacency and resets every message to one.
func (g *Graph) wire() {
	g.releaseMessages()
	g.toGroup = make([][]bdd.Node, len(g.factors))
	g.toFactor = make([][]bdd.Node, len(g.factors))
	for _, gr := range g.groups {
		gr.edges = gr.edges[:0]
	}
	for i, fn := range g.factors {
		fn.edges = fn.edges[:0]
		for j, gr := range g.groups {
			common := g.m.CubeIntersect(fn.support, gr.cube)
			overlap := !g.m.IsOne(common)
			g.m.Free(common)
			if !overlap {
				continue
			}
			fn.edges = append(fn.edges, j)
			gr.edges = append(gr.edges, i)
			g.toGroup[i] = append(g.toGroup[i], g.m.One())
			g.toFactor[i] = append(g.toFactor[i], g.m.One())
		}
	}
}

// Converge passes messages until a fixpoint and returns the number of
// iterations.  Messages start at one and only shrink, so the fixpoint
// exists.
func (g *Graph) Converge() int {
	g.wire()
	iters := 0
	for {
		iters++
		changed := false
		for i, fn := range g.factors {
			for ei, j := range fn.edges {
				msg := g.m.Dup(fn.f)
				for ek, k := range fn.edges {
					if k == j {
						continue
					}
					next := g.m.And(msg, g.toFactor[i][ek])
					g.m.Free(msg)
					msg = next
				}
				rest := g.m.CubeDiff(g.allVars, g.groups[j].cube)
				out := g.m.Exist(msg, rest)
				g.m.Free(rest)
				g.m.Free(msg)
				if g.m.Equal(out, g.toGroup[i][ei]) {
					g.m.Free(out)
					continue
				}
				g.m.Free(g.toGroup[i][ei])
				g.toGroup[i][ei] = out
				changed = true
			}
		}
		for j, gr := range g.groups {
			for _, i := range gr.edges {
				ei := edgeIndex(g.factors[i].edges, j)
				msg := g.m.One()
				for _, k := range gr.edges {
					if k == i {
						continue
					}
					ek := edgeIndex(g.factors[k].edges, j)
					next := g.m.And(msg, g.toGroup[k][ek])
					g.m.Free(msg)
					msg = next
				}
				if g.m.Equal(msg, g.toFactor[i][ei]) {
					g.m.Free(msg)
					continue
				}
				g.m.Free(g.toFactor[i][ei])
				g.toFactor[i][ei] = msg
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	log.Debugf("fg: converged after %d iterations", iters)
	return iters
}

// IncomingMessages returns, for every group covered by cube, the
// conjunction of its incoming messages.  The handles are owned by the
// caller.
func (g *Graph) IncomingMessages(cube bdd.Node) []bdd.Node {
	var out []bdd.Node
	for j, gr := range g.groups {
		common := g.m.CubeIntersect(gr.cube, cube)
		overlap := !g.m.IsOne(common)
		g.m.Free(common)
		if !overlap {
			continue
		}
		msg := g.m.One()
		for _, i := range gr.edges {
			ei := edgeIndex(g.factors[i].edges, j)
			next := g.m.And(msg, g.toGroup[i][ei])
			g.m.Free(msg)
			msg = next
		}
		out = append(out, msg)
	}
	return out
}

// Release gives back every handle owned by the graph.
func (g *Graph) Release() {
	g.releaseMessages()
	for _, fn := range g.factors {
		g.m.Free(fn.f)
		g.m.Free(fn.support)
	}
	g.factors = nil
	for _, gr := range g.groups {
		g.m.Free(gr.cube)
	}
	g.groups = nil
	g.m.Free(g.allVars)
}

func (g *Graph) releaseMessages() {
	for i := range g.toGroup {
		for _, msg := range g.toGroup[i] {
			g.m.Free(msg)
		}
		for _, msg := range g.toFactor[i] {
			g.m.Free(msg)
		}
	}
	g.toGroup, g.toFactor = nil, nil
}

func edgeIndex(edges []int, j int) int {
	for ei, e := range edges {
		if e == j {
			return ei
		}
	}
	panic("fg: edge index not found")
}
