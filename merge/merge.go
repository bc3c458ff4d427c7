// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package merge implements approximate clustering of factor and
// variable nodes under a bounded support size.  Factors (and,
// separately, variables) are greedily contracted in order of a
// compatibility score until no contraction can stay within the bound.
// A Hints relation learned from counterexamples biases the order.
package merge

import (
	"container/heap"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/mfkiwl/FactorGraph/bdd"
)

type nodeKind uint8

const (
	kindFunc nodeKind = iota
	kindVar
)

func (k nodeKind) String() string {
	if k == kindFunc {
		return "func"
	}
	return "var"
}

// mnode is a node of the merge graph, held in the engine's arena and
// addressed by dense index.  Neighbours are cross-kind support overlaps;
// mergers are incident same-kind candidates.  Contracted nodes stay in
// the arena, with empty merger sets, until teardown so that indices
// remain valid for the whole run.
type mnode struct {
	kind       nodeKind
	f          bdd.Node // owned
	support    bdd.Node // owned for func nodes, aliases f for var nodes
	neighbours map[int]bool
	mergers    map[int]bool
}

// merger is a candidate contraction between two same-kind nodes.
type merger struct {
	n1, n2 int // arena indices, n1 < n2
	score  float64
	seq    int
	slot   int // heap slot, -1 while unqueued
}

// Results holds the surviving clustered factors and variables.  Every
// handle is owned by the Results until Release.
type Results struct {
	M         *bdd.Manager
	Factors   []bdd.Node
	Variables []bdd.Node
}

// Release gives back every handle owned by r.
func (r *Results) Release() {
	for _, f := range r.Factors {
		r.M.Free(f)
	}
	for _, v := range r.Variables {
		r.M.Free(v)
	}
	r.Factors, r.Variables = nil, nil
}

type engine struct {
	m          *bdd.Manager
	maxSupport int
	hints      *Hints
	nodes      []*mnode
	mergers    []*merger
	heap       mergerHeap
	qf         map[int]bdd.Node // quantified function bdds, id → owned handle
	qv         map[int]bdd.Node // quantified variable cubes, id → owned handle
	funcsAlive map[int]bdd.Node
	varsAlive  map[int]bdd.Node
}

// Run clusters the given factors and variables so that no surviving
// node's prospective support exceeds largestSupportSet variables.  The
// inputs stay owned by the caller; every handle in the Results is owned
// by the caller.  The hints relation is not modified: the engine works
// on its own copy.
func Run(m *bdd.Manager, factors, variables []bdd.Node, largestSupportSet int, hints *Hints, quantified []bdd.Node) *Results {
	e := &engine{
		m:          m,
		maxSupport: largestSupportSet,
		hints:      hints.Clone(),
		qf:         make(map[int]bdd.Node),
		qv:         make(map[int]bdd.Node),
		funcsAlive: make(map[int]bdd.Node),
		varsAlive:  make(map[int]bdd.Node),
	}
	defer e.teardown()

	for _, f := range factors {
		i := e.addNode(kindFunc, f)
		e.funcsAlive[m.ID(f)] = e.nodes[i].f
	}
	nf := len(e.nodes)
	for _, v := range variables {
		i := e.addNode(kindVar, v)
		e.varsAlive[m.ID(v)] = e.nodes[i].f
	}
	for _, q := range quantified {
		id := m.ID(q)
		if _, ok := e.qv[id]; !ok {
			e.qv[id] = m.Dup(q)
		}
	}

	// cross edges between factors and the variables they depend on
	for fi := 0; fi < nf; fi++ {
		for vi := nf; vi < len(e.nodes); vi++ {
			if e.connected(fi, vi) {
				e.nodes[fi].neighbours[vi] = true
				e.nodes[vi].neighbours[fi] = true
			}
		}
	}

	// factor-factor candidates need a support overlap
	for i := 0; i < nf; i++ {
		for j := i + 1; j < nf; j++ {
			if !e.connected(i, j) {
				continue
			}
			if score, ok := e.compatibility(i, j, e.qf); ok {
				e.addMerger(i, j, score)
			}
		}
	}
	// variable-variable candidates are unrestricted: the support bound
	// and the quantification class do the filtering
	for i := nf; i < len(e.nodes); i++ {
		for j := i + 1; j < len(e.nodes); j++ {
			if score, ok := e.compatibility(i, j, e.qv); ok {
				e.addMerger(i, j, score)
			}
		}
	}

	for e.heap.Len() > 0 {
		e.contract(heap.Pop(&e.heap).(*merger))
	}

	res := &Results{M: m}
	for _, id := range sortedKeys(e.funcsAlive) {
		res.Factors = append(res.Factors, m.Dup(e.funcsAlive[id]))
	}
	for _, id := range sortedKeys(e.varsAlive) {
		res.Variables = append(res.Variables, m.Dup(e.varsAlive[id]))
	}
	return res
}

// addNode allocates an arena node wrapping f and returns its index.
func (e *engine) addNode(kind nodeKind, f bdd.Node) int {
	n := &mnode{
		kind:       kind,
		f:          e.m.Dup(f),
		neighbours: make(map[int]bool),
		mergers:    make(map[int]bool),
	}
	if kind == kindFunc {
		n.support = e.m.Support(n.f)
	} else {
		n.support = n.f
	}
	e.nodes = append(e.nodes, n)
	return len(e.nodes) - 1
}

// connected reports whether the supports of two nodes share a variable.
func (e *engine) connected(i, j int) bool {
	common := e.m.CubeIntersect(e.nodes[i].support, e.nodes[j].support)
	shared := !e.m.IsOne(common)
	e.m.Free(common)
	return shared
}

// addMerger queues a candidate contraction of nodes i and j.
func (e *engine) addMerger(i, j int, score float64) {
	if j < i {
		i, j = j, i
	}
	mg := &merger{n1: i, n2: j, score: score, seq: len(e.mergers), slot: -1}
	e.mergers = append(e.mergers, mg)
	idx := len(e.mergers) - 1
	e.nodes[i].mergers[idx] = true
	e.nodes[j].mergers[idx] = true
	heap.Push(&e.heap, mg)
}

// compatibility scores the contraction of nodes i1 and i2, or reports
// it ineligible.  Both nodes must belong to the same quantification
// class, and the union of their supports with all of their neighbours'
// supports (the prospective support after the neighbourhood itself
// contracts) must fit the bound.
func (e *engine) compatibility(i1, i2 int, quantified map[int]bdd.Node) (float64, bool) {
	n1, n2 := e.nodes[i1], e.nodes[i2]
	_, q1 := quantified[e.m.ID(n1.support)]
	_, q2 := quantified[e.m.ID(n2.support)]
	if q1 != q2 {
		return 0, false
	}
	combined := e.m.CubeUnion(n1.support, n2.support)
	for _, ni := range []int{i1, i2} {
		for _, neigh := range sortedKeysBool(e.nodes[ni].neighbours) {
			next := e.m.CubeUnion(combined, e.nodes[neigh].support)
			e.m.Free(combined)
			combined = next
		}
	}
	u := e.m.Size(combined)
	e.m.Free(combined)
	if u > e.maxSupport {
		log.Debugf("merge: skip %s pair (%d, %d): union %d exceeds bound %d", n1.kind, i1, i2, u, e.maxSupport)
		return 0, false
	}
	common := e.m.CubeIntersect(n1.support, n2.support)
	c := float64(e.m.Size(common))
	e.m.Free(common)
	a := float64(e.m.Size(n1.support))
	b := float64(e.m.Size(n2.support))
	h := e.hints.GetWeight(n1.f, n2.f)
	den := a
	if b < a {
		den = b
	}
	if den == 0 {
		// constant functions have no support to overlap
		return h, true
	}
	return c/den + h, true
}

// contract executes the popped merger: builds the merged node, keeps the
// quantification class, retargets hints, fuses neighbourhoods and
// reconciles the incident candidates of both endpoints.
func (e *engine) contract(mg *merger) {
	n1, n2 := e.nodes[mg.n1], e.nodes[mg.n2]
	if n1.kind != n2.kind {
		panic(fmt.Sprintf("merge: merger (%d, %d) endpoints have kinds %s and %s", mg.n1, mg.n2, n1.kind, n2.kind))
	}
	quantified := e.qf
	alive := e.funcsAlive
	if n1.kind == kindVar {
		quantified = e.qv
		alive = e.varsAlive
	}
	_, isQuantified := quantified[e.m.ID(n1.support)]

	mergedBdd := e.m.And(n1.f, n2.f)
	if isQuantified {
		if _, ok := quantified[e.m.ID(mergedBdd)]; !ok {
			quantified[e.m.ID(mergedBdd)] = e.m.Dup(mergedBdd)
		}
	}
	e.hints.Merge(n1.f, n2.f, mergedBdd)

	idx := e.addNode(n1.kind, mergedBdd)
	merged := e.nodes[idx]
	delete(alive, e.m.ID(n1.f))
	delete(alive, e.m.ID(n2.f))
	alive[e.m.ID(merged.f)] = merged.f
	e.m.Free(mergedBdd)

	// fuse the neighbourhoods, keeping edges symmetric
	for _, neigh := range sortedKeysBool(n1.neighbours) {
		merged.neighbours[neigh] = true
	}
	for _, neigh := range sortedKeysBool(n2.neighbours) {
		merged.neighbours[neigh] = true
	}
	for neigh := range merged.neighbours {
		delete(e.nodes[neigh].neighbours, mg.n1)
		delete(e.nodes[neigh].neighbours, mg.n2)
		e.nodes[neigh].neighbours[idx] = true
	}
	n1.neighbours, n2.neighbours = nil, nil

	// reconcile candidates incident to either endpoint
	old := make([]int, 0, len(n1.mergers)+len(n2.mergers))
	old = append(old, sortedKeysBool(n1.mergers)...)
	for _, i := range sortedKeysBool(n2.mergers) {
		if !n1.mergers[i] {
			old = append(old, i)
		}
	}
	sort.Ints(old)
	n1.mergers = make(map[int]bool)
	n2.mergers = make(map[int]bool)

	seen := map[int]bool{}
	for _, omIdx := range old {
		om := e.mergers[omIdx]
		other := -1
		switch {
		case om.n1 != mg.n1 && om.n1 != mg.n2:
			other = om.n1
		case om.n2 != mg.n1 && om.n2 != mg.n2:
			other = om.n2
		default:
			// the executed merger itself
			continue
		}
		delete(e.nodes[other].mergers, omIdx)
		if om.slot >= 0 {
			heap.Remove(&e.heap, om.slot)
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		if score, ok := e.compatibility(idx, other, quantified); ok {
			e.addMerger(idx, other, score)
		}
	}
	log.Debugf("merge: contracted %s pair (%d, %d) into %d", n1.kind, mg.n1, mg.n2, idx)
}

// teardown releases the arena, the quantification sets and the engine's
// hints copy.
func (e *engine) teardown() {
	for _, n := range e.nodes {
		e.m.Free(n.f)
		if n.kind == kindFunc {
			e.m.Free(n.support)
		}
	}
	e.nodes = nil
	for _, id := range sortedKeys(e.qf) {
		e.m.Free(e.qf[id])
	}
	for _, id := range sortedKeys(e.qv) {
		e.m.Free(e.qv[id])
	}
	e.qf, e.qv = nil, nil
	e.hints.Release()
}

func sortedKeys(m map[int]bdd.Node) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedKeysBool(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
