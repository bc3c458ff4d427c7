// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package qdimacs implements reading of QDIMACS formatted quantified
// Boolean formulas.  A QDIMACS file is a DIMACS cnf file whose problem
// line is followed by quantifier lines ("e" or "a" prefixed, zero
// terminated) binding variables ahead of the clause body.
package qdimacs

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// QuantifierType tells whether a quantifier block binds its variables
// existentially or universally.
type QuantifierType int

const (
	Exists QuantifierType = iota
	ForAll
)

func (q QuantifierType) String() string {
	if q == Exists {
		return "e"
	}
	return "a"
}

// Quantifier is one quantifier block in prefix order.
type Quantifier struct {
	Type      QuantifierType
	Variables []int
}

// File is a parsed QDIMACS problem.  Clauses hold literals in the DIMACS
// sign convention, without the terminating zero.
type File struct {
	NumVariables int
	Quantifiers  []Quantifier
	Clauses      [][]int
}

// NumClauses returns the number of clauses in the body.
func (f *File) NumClauses() int {
	return len(f.Clauses)
}

// Parse reads a QDIMACS problem from r.
func Parse(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)

	f := &File{NumVariables: -1}
	var clause []int
	inPrefix := true
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] == "c" {
			continue
		}
		switch fields[0] {
		case "p":
			if f.NumVariables >= 0 {
				return nil, errors.New("qdimacs: duplicate problem line")
			}
			if err := parseProblemLine(fields, f); err != nil {
				return nil, err
			}
			continue
		case "e", "a":
			if f.NumVariables < 0 {
				return nil, errors.New("qdimacs: quantifier before problem line")
			}
			if !inPrefix {
				return nil, errors.Errorf("qdimacs: quantifier %q after clause body", fields[0])
			}
			q, err := parseQuantifier(fields)
			if err != nil {
				return nil, err
			}
			f.Quantifiers = append(f.Quantifiers, q)
			continue
		}
		if f.NumVariables < 0 {
			return nil, errors.New("qdimacs: clause before problem line")
		}
		inPrefix = false
		for _, w := range fields {
			n, err := strconv.Atoi(w)
			if err != nil {
				return nil, errors.Wrapf(err, "qdimacs: bad literal %q", w)
			}
			if n == 0 {
				f.Clauses = append(f.Clauses, clause)
				clause = nil
				continue
			}
			if v := abs(n); v > f.NumVariables {
				return nil, errors.Errorf("qdimacs: literal %d exceeds declared %d variables", n, f.NumVariables)
			}
			clause = append(clause, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "qdimacs: read")
	}
	if len(clause) != 0 {
		return nil, errors.New("qdimacs: unterminated clause at end of input")
	}
	if f.NumVariables < 0 {
		return nil, errors.New("qdimacs: missing problem line")
	}
	return f, nil
}

func parseProblemLine(fields []string, f *File) error {
	if len(fields) != 4 || fields[1] != "cnf" {
		return errors.Errorf("qdimacs: malformed problem line %q", strings.Join(fields, " "))
	}
	nv, err := strconv.Atoi(fields[2])
	if err != nil {
		return errors.Wrap(err, "qdimacs: header variable count")
	}
	nc, err := strconv.Atoi(fields[3])
	if err != nil {
		return errors.Wrap(err, "qdimacs: header clause count")
	}
	if nv < 0 || nc < 0 {
		return errors.New("qdimacs: negative header counts")
	}
	f.NumVariables = nv
	return nil
}

func parseQuantifier(fields []string) (Quantifier, error) {
	q := Quantifier{Type: Exists}
	if fields[0] == "a" {
		q.Type = ForAll
	}
	if fields[len(fields)-1] != "0" {
		return q, errors.New("qdimacs: unterminated quantifier block")
	}
	for _, w := range fields[1 : len(fields)-1] {
		n, err := strconv.Atoi(w)
		if err != nil {
			return q, errors.Wrapf(err, "qdimacs: bad quantified variable %q", w)
		}
		if n <= 0 {
			return q, errors.Errorf("qdimacs: bad variable %d in quantifier block", n)
		}
		q.Variables = append(q.Variables, n)
	}
	if len(q.Variables) == 0 {
		return q, errors.New("qdimacs: empty quantifier block")
	}
	return q, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
