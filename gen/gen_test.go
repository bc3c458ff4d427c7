// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package gen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/FactorGraph/qdimacs"
)

func TestRand3QbfRoundTrips(t *testing.T) {
	Seed(1)
	f := Rand3Qbf(10, 20, 4)
	require.Equal(t, 10, f.NumVariables)
	require.Len(t, f.Clauses, 20)
	require.Equal(t, []int{1, 2, 3, 4}, f.Quantifiers[0].Variables)
	for _, clause := range f.Clauses {
		require.Len(t, clause, 3)
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	back, err := qdimacs.Parse(&buf)
	require.NoError(t, err)
	require.Equal(t, f.NumVariables, back.NumVariables)
	require.Equal(t, f.Clauses, back.Clauses)
	require.Equal(t, f.Quantifiers, back.Quantifiers)
}

func TestRand3QbfSeeded(t *testing.T) {
	Seed(42)
	a := Rand3Qbf(8, 10, 3)
	Seed(42)
	b := Rand3Qbf(8, 10, 3)
	require.Equal(t, a, b)
}

func TestChain(t *testing.T) {
	f := Chain(5)
	require.Equal(t, [][]int{{1, 2}, {-2, 3}, {-3, 4}, {-4, 5}}, f.Clauses)
	require.Equal(t, []int{2, 4}, f.Quantifiers[0].Variables)
}
