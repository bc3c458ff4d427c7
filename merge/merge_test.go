// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/FactorGraph/bdd"
)

// clause builds the disjunction of the given variables.
func clause(m *bdd.Manager, vars ...int) bdd.Node {
	f := m.Zero()
	for _, v := range vars {
		lit := m.Ithvar(v)
		or := m.Or(f, lit)
		m.Free(f)
		m.Free(lit)
		f = or
	}
	return f
}

func singletons(m *bdd.Manager, vars ...int) []bdd.Node {
	out := make([]bdd.Node, 0, len(vars))
	for _, v := range vars {
		out = append(out, m.Ithvar(v))
	}
	return out
}

// conj conjoins a list of owned handles into a fresh owned handle.
func conj(m *bdd.Manager, ns []bdd.Node) bdd.Node {
	f := m.One()
	for _, n := range ns {
		g := m.And(f, n)
		m.Free(f)
		f = g
	}
	return f
}

func freeAll(m *bdd.Manager, ns []bdd.Node) {
	for _, n := range ns {
		m.Free(n)
	}
}

// cubeUnion unions a list of cubes into a fresh owned handle.
func cubeUnion(m *bdd.Manager, ns []bdd.Node) bdd.Node {
	c := m.One()
	for _, n := range ns {
		d := m.CubeUnion(c, n)
		m.Free(c)
		c = d
	}
	return c
}

func TestMergeChainAndIsland(t *testing.T) {
	m := newTestManager(t, 5)
	a, b, c, d, e := 1, 2, 3, 4, 5
	factors := []bdd.Node{clause(m, a, b), clause(m, b, c), clause(m, d, e)}
	vars := singletons(m, a, b, c, d, e)
	hints := NewHints(m)

	res := Run(m, factors, vars, 3, hints, nil)

	// (a∨b) and (b∨c) fuse, (d∨e) stays an island
	require.Len(t, res.Factors, 2)
	want := m.And(factors[0], factors[1])
	found := false
	for _, f := range res.Factors {
		if m.Equal(f, want) {
			found = true
		}
	}
	require.True(t, found, "expected a cluster equal to (a∨b)∧(b∨c)")
	m.Free(want)

	// clustering never changes the factor conjunction
	in, out := conj(m, factors), conj(m, res.Factors)
	require.True(t, m.Equal(in, out))
	m.Free(in)
	m.Free(out)

	// nor the variable set
	inU, outU := cubeUnion(m, vars), cubeUnion(m, res.Variables)
	require.True(t, m.Equal(inU, outU))
	m.Free(inU)
	m.Free(outU)

	// every cluster respects the bound
	for _, f := range res.Factors {
		s := m.Support(f)
		require.LessOrEqual(t, m.Size(s), 3)
		m.Free(s)
	}
	for _, v := range res.Variables {
		require.LessOrEqual(t, m.Size(v), 3)
	}

	res.Release()
	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	require.Equal(t, 0, m.Live())
}

func TestMergeBoundBlocksEverything(t *testing.T) {
	m := newTestManager(t, 4)
	factors := []bdd.Node{clause(m, 1, 2), clause(m, 3, 4)}
	vars := singletons(m, 1, 2, 3, 4)
	hints := NewHints(m)

	res := Run(m, factors, vars, 1, hints, nil)
	require.Len(t, res.Factors, 2)
	require.Len(t, res.Variables, 4)

	res.Release()
	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	require.Equal(t, 0, m.Live())
}

func TestMergeDuplicateFactors(t *testing.T) {
	m := newTestManager(t, 2)
	a := m.Ithvar(1)
	factors := []bdd.Node{m.Dup(a), m.Dup(a), m.Dup(a)}
	vars := singletons(m, 1)
	hints := NewHints(m)

	res := Run(m, factors, vars, 5, hints, nil)
	require.Len(t, res.Factors, 1)
	require.True(t, m.Equal(res.Factors[0], a))
	require.Len(t, res.Variables, 1)

	res.Release()
	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	m.Free(a)
	require.Equal(t, 0, m.Live())
}

func TestMergeQuantificationClasses(t *testing.T) {
	m := newTestManager(t, 3)
	vars := singletons(m, 1, 2, 3)
	quantified := []bdd.Node{m.Ithvar(1), m.Ithvar(2)}
	hints := NewHints(m)

	res := Run(m, nil, vars, 3, hints, quantified)

	// the two quantified variables fuse, the free one is untouchable
	require.Len(t, res.Variables, 2)
	want := m.And(vars[0], vars[1])
	var gotFused, gotFree bool
	for _, v := range res.Variables {
		if m.Equal(v, want) {
			gotFused = true
		}
		if m.Equal(v, vars[2]) {
			gotFree = true
		}
	}
	require.True(t, gotFused, "expected the quantified variables to fuse")
	require.True(t, gotFree, "expected the free variable alone")
	m.Free(want)

	res.Release()
	hints.Release()
	freeAll(m, vars)
	freeAll(m, quantified)
	require.Equal(t, 0, m.Live())
}

func TestMergeHintBiasesOrder(t *testing.T) {
	m := newTestManager(t, 4)
	x, a, b, c := 1, 2, 3, 4
	build := func() []bdd.Node {
		nx := m.NIthvar(x)
		vc := m.Ithvar(c)
		f3 := m.Or(nx, vc)
		m.Free(nx)
		m.Free(vc)
		return []bdd.Node{clause(m, x, a), clause(m, x, b), f3}
	}

	// the three factors pairwise fit the bound but any contraction
	// blocks the others; without hints the first pair in insertion
	// order wins
	factors := build()
	vars := singletons(m, x, a, b, c)
	hints := NewHints(m)
	res := Run(m, factors, vars, 3, hints, nil)
	require.Len(t, res.Factors, 2)
	want12 := m.And(factors[0], factors[1])
	found := false
	for _, f := range res.Factors {
		if m.Equal(f, want12) {
			found = true
		}
	}
	require.True(t, found, "expected (x∨a)∧(x∨b) without hints")
	m.Free(want12)
	res.Release()

	// a heavy hint on the second and third factor flips the order
	hints.AddWeight(factors[1], factors[2], 100)
	res = Run(m, factors, vars, 3, hints, nil)
	require.Len(t, res.Factors, 2)
	want23 := m.And(factors[1], factors[2])
	found = false
	for _, f := range res.Factors {
		if m.Equal(f, want23) {
			found = true
		}
	}
	require.True(t, found, "expected (x∨b)∧(¬x∨c) with hints")
	m.Free(want23)
	res.Release()

	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	require.Equal(t, 0, m.Live())
}

func TestMergeHintRetargetsAcrossContractions(t *testing.T) {
	m := newTestManager(t, 4)
	a, b, c, d := 1, 2, 3, 4
	factors := []bdd.Node{clause(m, a, b), clause(m, b, c), clause(m, c, d)}
	vars := singletons(m, a, b, c, d)
	hints := NewHints(m)
	// a hint between the chain ends only matters after the middle
	// contraction brings them together
	hints.AddWeight(factors[0], factors[2], 100)

	res := Run(m, factors, vars, 4, hints, nil)
	require.Len(t, res.Factors, 1)
	in, out := conj(m, factors), conj(m, res.Factors)
	require.True(t, m.Equal(in, out))
	m.Free(in)
	m.Free(out)

	res.Release()
	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	require.Equal(t, 0, m.Live())
}

func TestMergeDeterminism(t *testing.T) {
	m := newTestManager(t, 5)
	factors := []bdd.Node{clause(m, 1, 2), clause(m, 2, 3), clause(m, 3, 4), clause(m, 4, 5)}
	vars := singletons(m, 1, 2, 3, 4, 5)
	hints := NewHints(m)

	ids := func(res *Results) []int {
		var out []int
		for _, f := range res.Factors {
			out = append(out, m.ID(f))
		}
		for _, v := range res.Variables {
			out = append(out, m.ID(v))
		}
		return out
	}
	r1 := Run(m, factors, vars, 3, hints, nil)
	r2 := Run(m, factors, vars, 3, hints, nil)
	require.Equal(t, ids(r1), ids(r2))

	r1.Release()
	r2.Release()
	hints.Release()
	freeAll(m, factors)
	freeAll(m, vars)
	require.Equal(t, 0, m.Live())
}

func TestMergeEmptyInputs(t *testing.T) {
	m := newTestManager(t, 2)
	hints := NewHints(m)
	res := Run(m, nil, nil, 3, hints, nil)
	require.Empty(t, res.Factors)
	require.Empty(t, res.Variables)
	res.Release()
	hints.Release()
	require.Equal(t, 0, m.Live())
}

func TestMergeKindPanic(t *testing.T) {
	// contract panics when a merger crosses kinds; exercised through
	// the internal arena since Run can never build such a merger
	m := newTestManager(t, 2)
	e := &engine{m: m, hints: NewHints(m), qf: map[int]bdd.Node{}, qv: map[int]bdd.Node{}, funcsAlive: map[int]bdd.Node{}, varsAlive: map[int]bdd.Node{}}
	f := m.Ithvar(1)
	v := m.Ithvar(2)
	fi := e.addNode(kindFunc, f)
	vi := e.addNode(kindVar, v)
	require.Panics(t, func() {
		e.contract(&merger{n1: fi, n2: vi, slot: -1})
	})
	m.Free(f)
	m.Free(v)
}
