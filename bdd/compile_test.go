// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package bdd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/FactorGraph/qdimacs"
)

func parseQdimacs(t *testing.T, src string) *qdimacs.File {
	t.Helper()
	f, err := qdimacs.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return f
}

func TestCompileBasic(t *testing.T) {
	f := parseQdimacs(t, `p cnf 3 2
e 1 0
1 2 0
-1 3 0
`)
	m := newTestManager(t, 3)
	c, err := Compile(m, f)
	require.NoError(t, err)

	require.Len(t, c.Clauses, 2)
	require.Equal(t, []int{1}, m.CubeVars(c.Quantified))
	require.True(t, c.IsQuantified(1))
	require.False(t, c.IsQuantified(2))

	// (1 ∨ 2) restricted to 1=0, 2=0 is false
	g := c.ClauseBdd([]int{1, 2})
	require.NotNil(t, g)
	sub := m.Assign(g, 1, false)
	sub2 := m.Assign(sub, 2, false)
	require.True(t, m.IsZero(sub2))
	m.Free(g)
	m.Free(sub)
	m.Free(sub2)

	require.Nil(t, c.ClauseBdd([]int{1, 3}))

	c.Release()
	require.Equal(t, 0, m.Live())
}

func TestCompileDeduplicates(t *testing.T) {
	f := parseQdimacs(t, `p cnf 2 3
e 1 0
1 2 0
2 1 0
-2 0
`)
	m := newTestManager(t, 2)
	c, err := Compile(m, f)
	require.NoError(t, err)
	require.Len(t, c.Clauses, 2)
	c.Release()
	require.Equal(t, 0, m.Live())
}

func TestCompileExact(t *testing.T) {
	f := parseQdimacs(t, `p cnf 3 2
e 1 0
1 2 0
-1 3 0
`)
	m := newTestManager(t, 3)
	c, err := Compile(m, f)
	require.NoError(t, err)

	// ∃x.(x∨a)(¬x∨b) == a∨b
	exact := c.Exact()
	v2, v3 := m.Ithvar(2), m.Ithvar(3)
	want := m.Or(v2, v3)
	require.True(t, m.Equal(exact, want))

	for _, n := range []Node{exact, v2, v3, want} {
		m.Free(n)
	}
	c.Release()
	require.Equal(t, 0, m.Live())
}

func TestCompileRejectsBadPrefix(t *testing.T) {
	m := newTestManager(t, 2)

	_, err := Compile(m, parseQdimacs(t, "p cnf 2 1\na 1 0\n1 2 0\n"))
	require.Error(t, err)

	_, err = Compile(m, parseQdimacs(t, "p cnf 2 1\ne 1 0\na 2 0\n1 2 0\n"))
	require.Error(t, err)
}
