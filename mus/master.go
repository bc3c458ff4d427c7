// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package mus enumerates minimal unsatisfiable subsets (MUSes) of a
// clause set.  The enumeration is seed based: a map solver proposes an
// unexplored subset, satisfiable seeds are grown to a maximal
// satisfiable set and blocked down, unsatisfiable seeds are shrunk to a
// MUS, reported, and blocked up.
package mus

import (
	"sort"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	log "github.com/sirupsen/logrus"
)

// Callback receives each MUS as a list of clauses in the DIMACS sign
// convention.  It must not modify the enumeration.
type Callback interface {
	ProcessMuc(clauses [][]int)
}

// Master drives the enumeration over a fixed clause set.
type Master struct {
	nvars   int
	clauses [][]int
	sat     *gini.Gini
	expl    *Explorer
	cb      Callback

	// MaxMucSize suppresses reporting of MUSes with more clauses, 0
	// meaning no bound.  Suppressed MUSes are still blocked.
	MaxMucSize int
	// MaxMuses stops the enumeration after that many MUSes, 0 meaning
	// no bound.
	MaxMuses int
}

// NewMaster builds an enumerator for the given clauses over variables
// 1..numVars.
func NewMaster(numVars int, clauses [][]int) *Master {
	t := &Master{
		nvars:   numVars,
		clauses: clauses,
		sat:     gini.New(),
		expl:    newExplorer(len(clauses)),
	}
	for i, clause := range clauses {
		t.sat.Add(t.selector(i).Not())
		for _, lit := range clause {
			t.sat.Add(z.Dimacs2Lit(lit))
		}
		t.sat.Add(z.LitNull)
	}
	return t
}

// Explorer exposes the map solver for pre-enumeration constraints.
func (t *Master) Explorer() *Explorer { return t.expl }

// SetCallback registers the MUS consumer.
func (t *Master) SetCallback(cb Callback) { t.cb = cb }

func (t *Master) selector(i int) z.Lit {
	return z.Var(t.nvars + i + 1).Pos()
}

// Enumerate runs the search to exhaustion (or MaxMuses) and returns the
// number of MUSes found.
func (t *Master) Enumerate() int {
	found := 0
	for {
		seed, ok := t.expl.Unexplored()
		if !ok {
			break
		}
		if sat, _ := t.check(seed); sat {
			mss := t.grow(seed)
			t.expl.BlockDown(mss)
			continue
		}
		mus := t.shrink(seed)
		t.expl.BlockUp(mus)
		found++
		if t.cb != nil && (t.MaxMucSize == 0 || len(mus) <= t.MaxMucSize) {
			t.cb.ProcessMuc(t.subset(mus))
		}
		log.Debugf("mus: found MUS #%d with %d clauses", found, len(mus))
		if t.MaxMuses > 0 && found >= t.MaxMuses {
			break
		}
	}
	return found
}

// check solves the subset under selector assumptions.  On unsat it also
// returns the core, as clause indices, from the failed assumptions.
func (t *Master) check(subset []int) (bool, []int) {
	for _, i := range subset {
		t.sat.Assume(t.selector(i))
	}
	if t.sat.Solve() == 1 {
		return true, nil
	}
	why := t.sat.Why(nil)
	core := make([]int, 0, len(why))
	for _, m := range why {
		core = append(core, int(m.Var())-t.nvars-1)
	}
	sort.Ints(core)
	return false, core
}

// shrink reduces an unsatisfiable subset to a MUS by deletion, using
// unsat cores to skip clauses already known unnecessary.
func (t *Master) shrink(seed []int) []int {
	_, cur := t.check(seed)
	if cur == nil {
		cur = append([]int(nil), seed...)
	}
	for k := 0; k < len(cur); {
		cand := make([]int, 0, len(cur)-1)
		cand = append(cand, cur[:k]...)
		cand = append(cand, cur[k+1:]...)
		sat, core := t.check(cand)
		if sat {
			k++
			continue
		}
		if core != nil {
			cur = core
			k = 0
			continue
		}
		cur = cand
	}
	return cur
}

// grow extends a satisfiable subset to a maximal satisfiable set.
func (t *Master) grow(seed []int) []int {
	in := make(map[int]bool, len(seed))
	for _, i := range seed {
		in[i] = true
	}
	cur := append([]int(nil), seed...)
	for j := range t.clauses {
		if in[j] {
			continue
		}
		if sat, _ := t.check(append(cur, j)); sat {
			cur = append(cur, j)
			in[j] = true
		}
	}
	sort.Ints(cur)
	return cur
}

func (t *Master) subset(idxs []int) [][]int {
	out := make([][]int, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, t.clauses[i])
	}
	return out
}
