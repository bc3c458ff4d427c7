// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package bdd

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mfkiwl/FactorGraph/qdimacs"
)

// Clause is one compiled clause: its literals and the disjunction they
// denote.
type Clause struct {
	Lits []int
	F    Node
}

// Compiled is the BDD form of a QDIMACS problem: one function per
// distinct clause plus the cube of quantified variables.  All handles
// are owned by the Compiled value until Release.
type Compiled struct {
	M              *Manager
	NumVariables   int
	Quantified     Node // cube of the existentially quantified variables
	Clauses        []Clause
	byLits         map[string]int
	quantifiedVars map[int]bool
}

// Compile lowers a parsed QDIMACS file.  The problem must carry exactly
// one quantifier block and it must be existential.
func Compile(m *Manager, f *qdimacs.File) (*Compiled, error) {
	if len(f.Quantifiers) != 1 {
		return nil, errors.Errorf("bdd: expected exactly one quantifier block, found %d", len(f.Quantifiers))
	}
	if f.Quantifiers[0].Type != qdimacs.Exists {
		return nil, errors.New("bdd: expected the quantifier block to be existential")
	}
	c := &Compiled{
		M:              m,
		NumVariables:   f.NumVariables,
		byLits:         make(map[string]int),
		quantifiedVars: make(map[int]bool),
	}
	for _, v := range f.Quantifiers[0].Variables {
		c.quantifiedVars[v] = true
	}
	c.Quantified = m.Cube(f.Quantifiers[0].Variables)
	for _, lits := range f.Clauses {
		key := litsKey(lits)
		if _, ok := c.byLits[key]; ok {
			continue
		}
		g := m.Zero()
		for _, lit := range lits {
			var l Node
			if lit > 0 {
				l = m.Ithvar(lit)
			} else {
				l = m.NIthvar(-lit)
			}
			or := m.Or(g, l)
			m.Free(g)
			m.Free(l)
			g = or
		}
		c.byLits[key] = len(c.Clauses)
		c.Clauses = append(c.Clauses, Clause{Lits: append([]int(nil), lits...), F: g})
	}
	return c, nil
}

// IsQuantified reports whether variable v is existentially bound.
func (c *Compiled) IsQuantified(v int) bool { return c.quantifiedVars[v] }

// ClauseBdd returns an owned handle to the function of the clause with
// the given literal set, or nil if the clause is unknown.
func (c *Compiled) ClauseBdd(lits []int) Node {
	i, ok := c.byLits[litsKey(lits)]
	if !ok {
		return nil
	}
	return c.M.Dup(c.Clauses[i].F)
}

// Conjunction returns an owned handle to the conjunction of all clause
// functions.
func (c *Compiled) Conjunction() Node {
	f := c.M.One()
	for _, cl := range c.Clauses {
		g := c.M.And(f, cl.F)
		c.M.Free(f)
		f = g
	}
	return f
}

// Exact computes the exact projection ∃X.F by monolithic conjunction
// and quantification.  The result is owned by the caller.
func (c *Compiled) Exact() Node {
	f := c.Conjunction()
	r := c.M.Exist(f, c.Quantified)
	c.M.Free(f)
	return r
}

// Release gives back every handle owned by c.
func (c *Compiled) Release() {
	for _, cl := range c.Clauses {
		c.M.Free(cl.F)
	}
	c.Clauses = nil
	c.M.Free(c.Quantified)
}

// litsKey canonicalizes a literal set into a map key.
func litsKey(lits []int) string {
	s := append([]int(nil), lits...)
	sort.Ints(s)
	var b strings.Builder
	for i, l := range s {
		if i > 0 && s[i-1] == l {
			continue
		}
		b.WriteString(strconv.Itoa(l))
		b.WriteByte(' ')
	}
	return b.String()
}
