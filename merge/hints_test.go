// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package merge

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

func TestHintsSymmetry(t *testing.T) {
	m := newTestManager(t, 4)
	a, b := m.Ithvar(1), m.Ithvar(2)
	h := NewHints(m)

	h.AddWeight(a, b, 2.5)
	require.Equal(t, 2.5, h.GetWeight(a, b))
	require.Equal(t, 2.5, h.GetWeight(b, a))
	require.Equal(t, 0.0, h.GetWeight(a, a))

	h.Release()
	m.Free(a)
	m.Free(b)
	require.Equal(t, 0, m.Live())
}

func TestHintsInsertDominates(t *testing.T) {
	m := newTestManager(t, 4)
	a, b := m.Ithvar(1), m.Ithvar(2)
	h := NewHints(m)

	h.AddWeight(a, b, 1)
	h.AddWeight(b, a, 7)
	require.Equal(t, 1.0, h.GetWeight(a, b))
	require.Equal(t, 1, h.Len())

	h.Release()
	m.Free(a)
	m.Free(b)
	require.Equal(t, 0, m.Live())
}

func TestHintsMerge(t *testing.T) {
	m := newTestManager(t, 6)
	a, b, x, y := m.Ithvar(1), m.Ithvar(2), m.Ithvar(3), m.Ithvar(4)
	c := m.And(a, b)
	h := NewHints(m)

	h.AddWeight(a, b, 9)
	h.AddWeight(a, x, 1)
	h.AddWeight(b, x, 5)
	h.AddWeight(b, y, 2)
	h.AddWeight(c, y, 7)

	h.Merge(a, b, c)

	// every pair touching a or b is gone
	for _, g := range []bdd.Node{b, c, x, y} {
		require.Equal(t, 0.0, h.GetWeight(a, g))
	}
	for _, g := range []bdd.Node{a, c, x, y} {
		require.Equal(t, 0.0, h.GetWeight(b, g))
	}
	// retargeted pairs combine by max
	require.Equal(t, 5.0, h.GetWeight(c, x))
	require.Equal(t, 7.0, h.GetWeight(c, y))
	require.Equal(t, 0.0, h.GetWeight(c, c))

	h.Release()
	for _, n := range []bdd.Node{a, b, x, y, c} {
		m.Free(n)
	}
	require.Equal(t, 0, m.Live())
}

func TestHintsClone(t *testing.T) {
	m := newTestManager(t, 4)
	a, b, c := m.Ithvar(1), m.Ithvar(2), m.Ithvar(3)
	h := NewHints(m)
	h.AddWeight(a, b, 3)

	cl := h.Clone()
	ab := m.And(a, b)
	cl.Merge(a, b, ab)
	require.Equal(t, 3.0, h.GetWeight(a, b))
	require.Equal(t, 0.0, cl.GetWeight(a, b))

	cl.AddWeight(a, c, 4)
	require.Equal(t, 0.0, h.GetWeight(a, c))

	cl.Release()
	h.Release()
	for _, n := range []bdd.Node{a, b, c, ab} {
		m.Free(n)
	}
	require.Equal(t, 0, m.Live())
}
