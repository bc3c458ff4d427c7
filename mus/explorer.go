// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package mus

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// Explorer is the map solver of the enumeration: a SAT instance over
// one selector variable per clause whose models are the unexplored
// subsets of the clause set.
type Explorer struct {
	g *gini.Gini
	n int
}

func newExplorer(n int) *Explorer {
	return &Explorer{g: gini.New(), n: n}
}

func (e *Explorer) selector(i int) z.Lit {
	return z.Var(i + 1).Pos()
}

// Unexplored proposes a subset not yet blocked, or reports exhaustion.
func (e *Explorer) Unexplored() ([]int, bool) {
	if e.g.Solve() != 1 {
		return nil, false
	}
	var seed []int
	for i := 0; i < e.n; i++ {
		// selectors the map solver has not seen yet count as false
		if e.selector(i).Var() > e.g.MaxVar() {
			continue
		}
		if e.g.Value(e.selector(i)) {
			seed = append(seed, i)
		}
	}
	return seed, true
}

// BlockUp removes every superset of the given unsatisfiable subset from
// the search space.
func (e *Explorer) BlockUp(subset []int) {
	for _, i := range subset {
		e.g.Add(e.selector(i).Not())
	}
	e.g.Add(z.LitNull)
}

// BlockDown removes every subset of the given satisfiable subset from
// the search space.
func (e *Explorer) BlockDown(subset []int) {
	in := make(map[int]bool, len(subset))
	for _, i := range subset {
		in[i] = true
	}
	for i := 0; i < e.n; i++ {
		if !in[i] {
			e.g.Add(e.selector(i))
		}
	}
	e.g.Add(z.LitNull)
}

// MarkInconsistentPair excludes every subset containing both clauses i
// and j.  Used for clause pairs known to be jointly contradictory for
// reasons the enumeration should not rediscover.
func (e *Explorer) MarkInconsistentPair(i, j int) {
	e.g.Add(e.selector(i).Not())
	e.g.Add(e.selector(j).Not())
	e.g.Add(z.LitNull)
}
