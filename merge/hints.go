// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package merge

import (
	"sort"

	"github.com/mfkiwl/FactorGraph/bdd"
)

// pairKey identifies an unordered pair of BDD handles by canonical id,
// smaller id first.
type pairKey struct {
	a, b int
}

type hintPair struct {
	f1, f2 bdd.Node // owned by the Hints
	w      float64
}

// Hints is a symmetric weighted relation over unordered pairs of BDD
// handles.  Pairs that were never written weigh 0.  The relation
// survives merge runs: when two functions are contracted the weights
// touching them are retargeted onto the contraction result.
type Hints struct {
	m       *bdd.Manager
	weights map[pairKey]hintPair
}

// NewHints creates an empty relation.
func NewHints(m *bdd.Manager) *Hints {
	return &Hints{m: m, weights: make(map[pairKey]hintPair)}
}

// Len returns the number of weighted pairs.
func (h *Hints) Len() int { return len(h.weights) }

// AddWeight records weight w for the pair {f1, f2}.  Writing the pair
// {f, f} is a no-op.  The first weight written for a pair wins: later
// adds are silently ignored.
func (h *Hints) AddWeight(f1, f2 bdd.Node, w float64) {
	id1, id2 := h.m.ID(f1), h.m.ID(f2)
	if id1 == id2 {
		return
	}
	if id2 < id1 {
		f1, f2 = f2, f1
		id1, id2 = id2, id1
	}
	key := pairKey{id1, id2}
	if _, ok := h.weights[key]; ok {
		return
	}
	h.weights[key] = hintPair{f1: h.m.Dup(f1), f2: h.m.Dup(f2), w: w}
}

// GetWeight returns the weight of the pair {f1, f2}, or 0 when the pair
// was never written.
func (h *Hints) GetWeight(f1, f2 bdd.Node) float64 {
	id1, id2 := h.m.ID(f1), h.m.ID(f2)
	if id1 == id2 {
		return 0
	}
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	if p, ok := h.weights[pairKey{id1, id2}]; ok {
		return p.w
	}
	return 0
}

// Merge retargets the relation after old1 and old2 were contracted into
// next: every pair {old1, x} or {old2, x} becomes {next, x}, combining
// colliding weights by max, and the pair {old1, old2} itself is dropped
// without contributing a self loop.
func (h *Hints) Merge(old1, old2, next bdd.Node) {
	id1, id2 := h.m.ID(old1), h.m.ID(old2)
	if id1 == id2 {
		return
	}
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	idNew := h.m.ID(next)

	type retarget struct {
		g bdd.Node
		w float64
	}
	var del []pairKey
	moved := map[int]retarget{}
	mark := func(g bdd.Node, w float64) {
		gid := h.m.ID(g)
		if gid == idNew {
			return
		}
		if prev, ok := moved[gid]; !ok || w > prev.w {
			moved[gid] = retarget{g: g, w: w}
		}
	}
	for key, p := range h.weights {
		touch1 := key.a == id1 || key.b == id1
		touch2 := key.a == id2 || key.b == id2
		if !touch1 && !touch2 {
			continue
		}
		del = append(del, key)
		if touch1 && touch2 {
			continue // the contracted pair itself
		}
		if key.a == id1 || key.a == id2 {
			mark(p.f2, p.w)
		} else {
			mark(p.f1, p.w)
		}
	}
	for _, key := range del {
		p := h.weights[key]
		h.m.Free(p.f1)
		h.m.Free(p.f2)
		delete(h.weights, key)
	}
	for gid, rt := range moved {
		key := pairKey{gid, idNew}
		if idNew < gid {
			key = pairKey{idNew, gid}
		}
		if prev, ok := h.weights[key]; ok {
			if rt.w > prev.w {
				prev.w = rt.w
				h.weights[key] = prev
			}
			continue
		}
		a, b := rt.g, next
		if idNew < gid {
			a, b = next, rt.g
		}
		h.weights[key] = hintPair{f1: h.m.Dup(a), f2: h.m.Dup(b), w: rt.w}
	}
}

// Clone returns an independent copy of the relation holding its own
// references.
func (h *Hints) Clone() *Hints {
	c := NewHints(h.m)
	for key, p := range h.weights {
		c.weights[key] = hintPair{f1: h.m.Dup(p.f1), f2: h.m.Dup(p.f2), w: p.w}
	}
	return c
}

// Release gives back every handle held by the relation.
func (h *Hints) Release() {
	keys := make([]pairKey, 0, len(h.weights))
	for key := range h.weights {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	for _, key := range keys {
		p := h.weights[key]
		h.m.Free(p.f1)
		h.m.Free(p.f2)
		delete(h.weights, key)
	}
}
