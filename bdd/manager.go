// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package bdd adapts the rudd ROBDD engine to the reference counted,
// CUDD style handle discipline the rest of this module is written
// against.  Every Node returned by a Manager operation is owned by the
// caller and must be given back with Free; long lived structures that
// retain a Node take their own reference with Dup.
//
// rudd itself manages node lifetime with finalizers, so Dup and Free
// maintain the Manager's ownership ledger rather than actual memory.
// The ledger keeps the ownership discipline observable: a balanced
// sequence of operations leaves Live() unchanged.
package bdd

import (
	"fmt"
	"sort"

	"github.com/dalzilio/rudd"
	"github.com/pkg/errors"
)

// Node is a handle to a node in the ROBDD manager.  Two handles denote
// the same Boolean function exactly when they have the same ID.
type Node = rudd.Node

// Manager wraps a rudd BDD with an ownership ledger.  Variables are
// indexed 1..NumVars, matching the DIMACS convention; index 0 is unused.
type Manager struct {
	rdd  *rudd.BDD
	nvar int
	one  Node
	zero Node
	refs map[int]int
}

// New creates a manager for variables 1..nvar.
func New(nvar int) (*Manager, error) {
	rdd, err := rudd.New(nvar+1, rudd.Nodesize(10007), rudd.Cachesize(10007), rudd.Cacheratio(25))
	if err != nil {
		return nil, errors.Wrap(err, "bdd: init")
	}
	m := &Manager{
		rdd:  rdd,
		nvar: nvar,
		refs: make(map[int]int),
	}
	m.one = rdd.True()
	m.zero = rdd.False()
	return m, nil
}

// NumVars returns the number of usable variables.
func (m *Manager) NumVars() int { return m.nvar }

// ID returns the canonical identity of n.  IDs give the total order used
// to canonicalize pairs throughout the module.
func (m *Manager) ID(n Node) int { return *n }

// Dup takes a reference on n and returns it.
func (m *Manager) Dup(n Node) Node {
	m.refs[*n]++
	return n
}

// Free releases a reference on n.
func (m *Manager) Free(n Node) {
	id := *n
	m.refs[id]--
	if m.refs[id] < 0 {
		panic(fmt.Sprintf("bdd: negative refcount on node %d", id))
	}
	if m.refs[id] == 0 {
		delete(m.refs, id)
	}
}

// Refs returns the number of ledger references held on n.
func (m *Manager) Refs(n Node) int { return m.refs[*n] }

// Live returns the total number of ledger references outstanding.
func (m *Manager) Live() int {
	t := 0
	for _, c := range m.refs {
		t += c
	}
	return t
}

// own records a fresh caller owned reference on an operation result.
func (m *Manager) own(n Node) Node {
	if n == nil {
		panic("bdd: " + m.rdd.Error())
	}
	m.refs[*n]++
	return n
}

// One returns an owned handle to the constant true function.
func (m *Manager) One() Node { return m.own(m.one) }

// Zero returns an owned handle to the constant false function.
func (m *Manager) Zero() Node { return m.own(m.zero) }

// IsOne reports whether n denotes the constant true function.
func (m *Manager) IsOne(n Node) bool { return *n == *m.one }

// IsZero reports whether n denotes the constant false function.
func (m *Manager) IsZero(n Node) bool { return *n == *m.zero }

// Equal reports whether a and b denote the same function.
func (m *Manager) Equal(a, b Node) bool { return *a == *b }

// Ithvar returns an owned handle to variable v.
func (m *Manager) Ithvar(v int) Node {
	if v < 1 || v > m.nvar {
		panic(fmt.Sprintf("bdd: variable %d out of range 1..%d", v, m.nvar))
	}
	return m.own(m.rdd.Ithvar(v))
}

// NIthvar returns an owned handle to the negation of variable v.
func (m *Manager) NIthvar(v int) Node {
	if v < 1 || v > m.nvar {
		panic(fmt.Sprintf("bdd: variable %d out of range 1..%d", v, m.nvar))
	}
	return m.own(m.rdd.NIthvar(v))
}

// And returns an owned handle to a ∧ b.
func (m *Manager) And(a, b Node) Node {
	return m.own(m.rdd.And(a, b))
}

// Or returns an owned handle to a ∨ b.
func (m *Manager) Or(a, b Node) Node {
	return m.own(m.rdd.Or(a, b))
}

// Not returns an owned handle to ¬a.
func (m *Manager) Not(a Node) Node {
	return m.own(m.rdd.Not(a))
}

// Exist returns an owned handle to ∃ vars(cube). n.
func (m *Manager) Exist(n, cube Node) Node {
	if m.IsOne(cube) {
		// the empty cube quantifies nothing
		return m.Dup(n)
	}
	return m.own(m.rdd.Exist(n, cube))
}

// Support returns an owned cube of the variables n depends on.
func (m *Manager) Support(n Node) Node {
	seen := map[int]bool{}
	// for a fixed order manager the level of a node is its variable
	err := m.rdd.Allnodes(func(id, level, low, high int) error {
		if id > 1 {
			seen[level] = true
		}
		return nil
	}, n)
	if err != nil {
		panic("bdd: support: " + err.Error())
	}
	vars := make([]int, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return m.own(m.rdd.Makeset(vars))
}

// Cube returns an owned cube over the given variables.
func (m *Manager) Cube(vars []int) Node {
	return m.own(m.rdd.Makeset(vars))
}

// CubeVars returns the variables of a cube in increasing order.
func (m *Manager) CubeVars(cube Node) []int {
	return m.rdd.Scanset(cube)
}

// Size returns the number of variables in a cube.
func (m *Manager) Size(cube Node) int {
	return len(m.rdd.Scanset(cube))
}

// CubeIntersect returns an owned cube of the variables common to c1 and
// c2.
func (m *Manager) CubeIntersect(c1, c2 Node) Node {
	v1 := m.rdd.Scanset(c1)
	v2 := map[int]bool{}
	for _, v := range m.rdd.Scanset(c2) {
		v2[v] = true
	}
	common := make([]int, 0, len(v1))
	for _, v := range v1 {
		if v2[v] {
			common = append(common, v)
		}
	}
	return m.own(m.rdd.Makeset(common))
}

// CubeUnion returns an owned cube joining c1 and c2.
func (m *Manager) CubeUnion(c1, c2 Node) Node {
	return m.And(c1, c2)
}

// CubeDiff returns an owned cube of c's variables not in d.
func (m *Manager) CubeDiff(c, d Node) Node {
	return m.Exist(c, d)
}

// VarLowest returns the lowest indexed variable of a non trivial cube.
func (m *Manager) VarLowest(cube Node) int {
	vars := m.rdd.Scanset(cube)
	if len(vars) == 0 {
		panic("bdd: VarLowest on trivial cube")
	}
	return vars[0]
}

// Assign returns an owned handle to the cofactor of f with variable v
// fixed to val.
func (m *Manager) Assign(f Node, v int, val bool) Node {
	lit := m.rdd.Ithvar(v)
	if !val {
		lit = m.rdd.NIthvar(v)
	}
	fAndLit := m.rdd.And(f, lit)
	if fAndLit == nil {
		panic("bdd: " + m.rdd.Error())
	}
	return m.own(m.rdd.Exist(fAndLit, m.rdd.Ithvar(v)))
}

// Satcount returns the number of satisfying assignments of n as a
// string, for logging.
func (m *Manager) Satcount(n Node) string {
	return m.rdd.Satcount(n).String()
}

// Stats reports the underlying engine statistics.
func (m *Manager) Stats() string { return m.rdd.Stats() }
