// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package gen generates QDIMACS instances for tests and benchmarking.
package gen

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/mfkiwl/FactorGraph/qdimacs"
)

// make the rng seedable
var rng = rand.New(rand.NewSource(33))
var mu sync.Mutex

// Seed reseeds the package level rng.
func Seed(s int64) {
	mu.Lock()
	defer mu.Unlock()
	rng = rand.New(rand.NewSource(s))
}

// Rand3Qbf generates a random 3cnf QBF with n variables, m clauses and
// the first q variables existentially quantified.
func Rand3Qbf(n, m, q int) *qdimacs.File {
	mu.Lock() // for package rng
	defer mu.Unlock()
	if q > n {
		q = n
	}
	f := &qdimacs.File{NumVariables: n}
	quant := make([]int, q)
	for i := range quant {
		quant[i] = i + 1
	}
	f.Quantifiers = []qdimacs.Quantifier{{Type: qdimacs.Exists, Variables: quant}}
	for i := 0; i < m; i++ {
		clause := make([]int, 0, 3)
		used := map[int]bool{}
		for len(clause) < 3 {
			v := rng.Intn(n) + 1
			if used[v] {
				continue
			}
			used[v] = true
			if rng.Intn(2) == 0 {
				v = -v
			}
			clause = append(clause, v)
		}
		f.Clauses = append(f.Clauses, clause)
	}
	return f
}

// Chain generates the implication chain (1∨2) (¬2∨3) (¬3∨4) ... over n
// variables with the even variables existentially quantified.
func Chain(n int) *qdimacs.File {
	f := &qdimacs.File{NumVariables: n}
	var quant []int
	for v := 2; v <= n; v += 2 {
		quant = append(quant, v)
	}
	f.Quantifiers = []qdimacs.Quantifier{{Type: qdimacs.Exists, Variables: quant}}
	for v := 1; v < n; v++ {
		a := v
		if v > 1 {
			a = -v
		}
		f.Clauses = append(f.Clauses, []int{a, v + 1})
	}
	return f
}

// Write emits f in QDIMACS format.
func Write(w io.Writer, f *qdimacs.File) error {
	if _, err := fmt.Fprintf(w, "p cnf %d %d\n", f.NumVariables, len(f.Clauses)); err != nil {
		return err
	}
	for _, q := range f.Quantifiers {
		if _, err := fmt.Fprintf(w, "%s", q.Type); err != nil {
			return err
		}
		for _, v := range q.Variables {
			if _, err := fmt.Fprintf(w, " %d", v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, " 0"); err != nil {
			return err
		}
	}
	for _, clause := range f.Clauses {
		for _, lit := range clause {
			if _, err := fmt.Fprintf(w, "%d ", lit); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "0"); err != nil {
			return err
		}
	}
	return nil
}
