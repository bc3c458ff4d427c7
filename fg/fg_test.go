// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package fg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/FactorGraph/bdd"
)

func newTestManager(t *testing.T, nvar int) *bdd.Manager {
	t.Helper()
	m, err := bdd.New(nvar)
	require.NoError(t, err)
	return m
}

func orOf(m *bdd.Manager, lits ...int) bdd.Node {
	f := m.Zero()
	for _, lit := range lits {
		var l bdd.Node
		if lit > 0 {
			l = m.Ithvar(lit)
		} else {
			l = m.NIthvar(-lit)
		}
		or := m.Or(f, l)
		m.Free(f)
		m.Free(l)
		f = or
	}
	return f
}

// incoming conjoins the messages flowing into cube.
func incoming(m *bdd.Manager, g *Graph, cube bdd.Node) bdd.Node {
	msgs := g.IncomingMessages(cube)
	out := m.One()
	for _, msg := range msgs {
		next := m.And(out, msg)
		m.Free(out)
		m.Free(msg)
		out = next
	}
	return out
}

func TestSingletonGroupsOverApproximate(t *testing.T) {
	m := newTestManager(t, 2)
	f := orOf(m, 1, 2)
	g := New(m, []bdd.Node{f})
	iters := g.Converge()
	require.Greater(t, iters, 0)

	// per-variable projections of (1∨2) are vacuous
	all := m.Cube([]int{1, 2})
	got := incoming(m, g, all)
	require.True(t, m.IsOne(got))

	m.Free(all)
	m.Free(got)
	g.Release()
	m.Free(f)
	require.Equal(t, 0, m.Live())
}

func TestGroupedGraphIsExactForOneFactor(t *testing.T) {
	m := newTestManager(t, 2)
	f := orOf(m, 1, 2)
	g := New(m, []bdd.Node{f})
	all := m.Cube([]int{1, 2})
	g.GroupVariables(all)
	g.Converge()

	got := incoming(m, g, all)
	require.True(t, m.Equal(got, f))

	m.Free(all)
	m.Free(got)
	g.Release()
	m.Free(f)
	require.Equal(t, 0, m.Live())
}

func TestConvergeSoundness(t *testing.T) {
	// the message product into the free variables always contains the
	// exact projection
	m := newTestManager(t, 4)
	factors := []bdd.Node{orOf(m, 1, 2), orOf(m, -1, 3), orOf(m, 2, 4)}
	g := New(m, []bdd.Node{factors[0], factors[1], factors[2]})
	g.Converge()

	free := m.Cube([]int{2, 3, 4})
	got := incoming(m, g, free)

	all := m.One()
	for _, f := range factors {
		next := m.And(all, f)
		m.Free(all)
		all = next
	}
	qcube := m.Cube([]int{1})
	exact := m.Exist(all, qcube)
	notGot := m.Not(got)
	escape := m.And(exact, notGot)
	require.True(t, m.IsZero(escape), "exact projection escapes the over-approximation")

	for _, n := range []bdd.Node{free, got, all, qcube, exact, notGot, escape} {
		m.Free(n)
	}
	g.Release()
	for _, f := range factors {
		m.Free(f)
	}
	require.Equal(t, 0, m.Live())
}

func TestGroupVariablesFusesOverlaps(t *testing.T) {
	m := newTestManager(t, 3)
	f := orOf(m, 1, 2, 3)
	g := New(m, []bdd.Node{f})
	require.Len(t, g.groups, 3)

	c12 := m.Cube([]int{1, 2})
	g.GroupVariables(c12)
	require.Len(t, g.groups, 2)

	// grouping with a cube overlapping an existing group swallows it
	c23 := m.Cube([]int{2, 3})
	g.GroupVariables(c23)
	require.Len(t, g.groups, 1)
	require.Equal(t, []int{1, 2, 3}, m.CubeVars(g.groups[0].cube))

	m.Free(c12)
	m.Free(c23)
	g.Release()
	m.Free(f)
	require.Equal(t, 0, m.Live())
}
