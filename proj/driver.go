// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Package proj wires the pipeline together: it lowers a QDIMACS problem
// to BDD factors, clusters them with the merge engine, converges a
// factor graph to obtain an over-approximate projection, and drives a
// MUS enumeration whose counterexamples feed merge hints back into the
// next clustering.
package proj

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mfkiwl/FactorGraph/bdd"
	"github.com/mfkiwl/FactorGraph/fg"
	"github.com/mfkiwl/FactorGraph/merge"
	"github.com/mfkiwl/FactorGraph/mus"
	"github.com/mfkiwl/FactorGraph/qdimacs"
)

// Options configure a projection run.
type Options struct {
	// LargestSupportSet bounds the support size of clustered nodes.
	LargestSupportSet int
	// MaxMucSize suppresses hint feedback from larger MUSes, 0 meaning
	// no bound.
	MaxMucSize int
	// MucMergeWeight is the hint weight given to every pair drawn from
	// a MUS that the current candidate fails to rule out.
	MucMergeWeight float64
	// MaxMuses bounds the enumeration, 0 meaning no bound.
	MaxMuses int
	// ComputeExact additionally computes the exact projection for
	// comparison.
	ComputeExact bool
}

// DefaultOptions mirror the command line defaults.
func DefaultOptions() Options {
	return Options{
		LargestSupportSet: 50,
		MaxMucSize:        10,
		MucMergeWeight:    0.5,
	}
}

type assignment struct {
	v   int
	val bool
}

// clauseData ties a MUS-level clause back to its BDD artifacts: the
// factor it came from, the free variables it mentions and the
// assignment falsifying its free part.
type clauseData struct {
	varNodes []bdd.Node // owned
	funcNode bdd.Node   // owned
	assigns  []assignment
}

// Projector owns the projection state across the feedback loop.
type Projector struct {
	m    *bdd.Manager
	comp *bdd.Compiled
	file *qdimacs.File
	opts Options

	factors    []bdd.Node // owned, original clause functions
	variables  []bdd.Node // owned, single variable cubes
	quantified []bdd.Node // owned, quantified single variable cubes
	freeCube   bdd.Node   // owned, cube of the non-quantified variables

	hints      *merge.Hints
	candidate  bdd.Node // owned, current factor graph projection
	clauseData map[string]*clauseData
	master     *mus.Master

	// Muses counts callbacks, Remerges the ones that re-clustered.
	Muses    int
	Remerges int
}

// New compiles the problem and prepares the initial factor and variable
// sets.  The file must carry exactly one existential quantifier block.
func New(m *bdd.Manager, file *qdimacs.File, opts Options) (*Projector, error) {
	comp, err := bdd.Compile(m, file)
	if err != nil {
		return nil, errors.Wrap(err, "proj")
	}
	p := &Projector{
		m:          m,
		comp:       comp,
		file:       file,
		opts:       opts,
		hints:      merge.NewHints(m),
		clauseData: make(map[string]*clauseData),
	}
	for _, cl := range comp.Clauses {
		p.factors = append(p.factors, m.Dup(cl.F))
	}
	all := m.One()
	for _, f := range p.factors {
		s := m.Support(f)
		next := m.CubeUnion(all, s)
		m.Free(all)
		m.Free(s)
		all = next
	}
	for _, v := range m.CubeVars(all) {
		p.variables = append(p.variables, m.Ithvar(v))
	}
	m.Free(all)
	for _, v := range m.CubeVars(comp.Quantified) {
		p.quantified = append(p.quantified, m.Ithvar(v))
	}
	declared := make([]int, 0, file.NumVariables)
	for v := 1; v <= file.NumVariables; v++ {
		declared = append(declared, v)
	}
	allDeclared := m.Cube(declared)
	p.freeCube = m.CubeDiff(allDeclared, comp.Quantified)
	m.Free(allDeclared)
	return p, nil
}

// Run performs the initial clustering and convergence, then enumerates
// MUSes with hint feedback.  The resulting candidate is available from
// Candidate.
func (p *Projector) Run() error {
	res := merge.Run(p.m, p.factors, p.variables, p.opts.LargestSupportSet, p.hints, p.quantified)
	p.candidate = p.projectionFrom(res)
	res.Release()
	log.Infof("proj: initial candidate has %s satisfying assignments", p.m.Satcount(p.candidate))

	p.master = p.buildMaster()
	found := p.master.Enumerate()
	log.Infof("proj: enumerated %d muses, re-merged %d times", found, p.Remerges)
	return nil
}

// Candidate returns an owned handle to the current projection
// candidate.
func (p *Projector) Candidate() bdd.Node {
	return p.m.Dup(p.candidate)
}

// Exact returns an owned handle to the exact projection.
func (p *Projector) Exact() bdd.Node {
	return p.comp.Exact()
}

// projectionFrom builds a factor graph from clustered factors, groups
// variables by the clustered cubes, converges, and conjoins the
// messages flowing into the free variables.
func (p *Projector) projectionFrom(res *merge.Results) bdd.Node {
	graph := fg.New(p.m, res.Factors)
	for _, cube := range res.Variables {
		graph.GroupVariables(cube)
	}
	iters := graph.Converge()
	log.Infof("proj: factor graph with %d factors converged after %d iterations", len(res.Factors), iters)
	msgs := graph.IncomingMessages(p.freeCube)
	result := p.m.One()
	for _, msg := range msgs {
		next := p.m.And(result, msg)
		p.m.Free(result)
		p.m.Free(msg)
		result = next
	}
	graph.Release()
	return result
}

// buildMaster constructs the MUS enumeration over the quantified parts
// of the input clauses.  Clauses without quantified literals are
// dropped; duplicated quantified parts are made distinct with a fresh
// variable forced false by a companion unit clause.  Pairs of output
// clauses pulling a free variable in opposite directions are marked
// inconsistent so the enumeration skips them.
func (p *Projector) buildMaster() *mus.Master {
	numMustVariables := p.file.NumVariables
	var outputClauses [][]int
	outputClauseSet := make(map[string]bool)
	freeLitToPos := make(map[int][]int)

	for _, clause := range p.file.Clauses {
		var quantLits, freeLits []int
		for _, lit := range clause {
			v := lit
			if v < 0 {
				v = -v
			}
			if p.comp.IsQuantified(v) {
				quantLits = append(quantLits, lit)
			} else {
				freeLits = append(freeLits, lit)
			}
		}
		if len(quantLits) == 0 {
			continue
		}
		sort.Ints(quantLits)
		sort.Ints(freeLits)

		next := quantLits
		pos := len(outputClauses)
		if !outputClauseSet[clauseKey(quantLits)] {
			outputClauseSet[clauseKey(quantLits)] = true
			outputClauses = append(outputClauses, quantLits)
		} else {
			// duplicate quantified part: disambiguate with a fresh
			// variable and force it false
			numMustVariables++
			next = append(append([]int(nil), quantLits...), numMustVariables)
			sort.Ints(next)
			outputClauses = append(outputClauses, next)
			outputClauses = append(outputClauses, []int{-numMustVariables})
		}
		for _, lit := range freeLits {
			freeLitToPos[lit] = append(freeLitToPos[lit], pos)
		}

		cd := &clauseData{funcNode: p.comp.ClauseBdd(clause)}
		for _, lit := range freeLits {
			v := lit
			if v < 0 {
				v = -v
			}
			cd.varNodes = append(cd.varNodes, p.m.Ithvar(v))
			cd.assigns = append(cd.assigns, assignment{v: v, val: lit < 0})
		}
		p.clauseData[clauseKey(next)] = cd
	}

	t := mus.NewMaster(numMustVariables, outputClauses)
	t.MaxMucSize = p.opts.MaxMucSize
	t.MaxMuses = p.opts.MaxMuses
	t.SetCallback(p)

	marked := make(map[[2]int]bool)
	vars := make([]int, 0, len(freeLitToPos))
	for lit := range freeLitToPos {
		if lit > 0 {
			vars = append(vars, lit)
		}
	}
	sort.Ints(vars)
	for _, qv := range vars {
		opp, ok := freeLitToPos[-qv]
		if !ok {
			continue
		}
		for _, cid := range freeLitToPos[qv] {
			for _, oppCid := range opp {
				lo, hi := cid, oppCid
				if hi < lo {
					lo, hi = hi, lo
				}
				if lo == hi || marked[[2]int{lo, hi}] {
					continue
				}
				marked[[2]int{lo, hi}] = true
				t.Explorer().MarkInconsistentPair(lo, hi)
				log.Debugf("proj: marked output clauses %d and %d inconsistent on variable %d", lo, hi, qv)
			}
		}
	}
	return t
}

// ProcessMuc implements mus.Callback.  The MUS is a counterexample
// candidate: if the current projection already rules out the assignment
// falsifying its free part, nothing happens; otherwise every pair of
// factors and every pair of free variables drawn from the MUS gets a
// hint bump and the clustering is redone with the accumulated hints.
func (p *Projector) ProcessMuc(muc [][]int) {
	p.Muses++
	varNodes := make(map[int]bdd.Node)
	var funcNodes []bdd.Node
	assigns := make(map[int]bool)
	for _, clause := range muc {
		sorted := append([]int(nil), clause...)
		sort.Ints(sorted)
		cd, ok := p.clauseData[clauseKey(sorted)]
		if !ok {
			continue
		}
		for _, vn := range cd.varNodes {
			varNodes[p.m.ID(vn)] = vn
		}
		funcNodes = append(funcNodes, cd.funcNode)
		for _, a := range cd.assigns {
			assigns[a.v] = a.val
		}
	}

	sub := p.m.Dup(p.candidate)
	for _, v := range sortedIntKeys(assigns) {
		next := p.m.Assign(sub, v, assigns[v])
		p.m.Free(sub)
		sub = next
	}
	tight := p.m.IsZero(sub)
	p.m.Free(sub)
	if tight {
		log.Infof("proj: counterexample already ruled out by the candidate")
		return
	}
	log.Infof("proj: counterexample satisfies the candidate, bumping %d factors and %d variables", len(funcNodes), len(varNodes))

	for i := range funcNodes {
		for j := range funcNodes {
			if i != j {
				p.hints.AddWeight(funcNodes[i], funcNodes[j], p.opts.MucMergeWeight)
			}
		}
	}
	varList := make([]bdd.Node, 0, len(varNodes))
	for _, id := range sortedNodeKeys(varNodes) {
		varList = append(varList, varNodes[id])
	}
	for i := range varList {
		for j := range varList {
			if i != j {
				p.hints.AddWeight(varList[i], varList[j], p.opts.MucMergeWeight)
			}
		}
	}

	res := merge.Run(p.m, p.factors, p.variables, p.opts.LargestSupportSet, p.hints, p.quantified)
	old := p.candidate
	p.candidate = p.projectionFrom(res)
	res.Release()
	p.m.Free(old)
	p.Remerges++
}

// Release gives back every handle owned by the projector.
func (p *Projector) Release() {
	for _, f := range p.factors {
		p.m.Free(f)
	}
	for _, v := range p.variables {
		p.m.Free(v)
	}
	for _, q := range p.quantified {
		p.m.Free(q)
	}
	p.factors, p.variables, p.quantified = nil, nil, nil
	p.m.Free(p.freeCube)
	if p.candidate != nil {
		p.m.Free(p.candidate)
		p.candidate = nil
	}
	keys := make([]string, 0, len(p.clauseData))
	for k := range p.clauseData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cd := p.clauseData[k]
		for _, vn := range cd.varNodes {
			p.m.Free(vn)
		}
		p.m.Free(cd.funcNode)
	}
	p.clauseData = nil
	p.hints.Release()
	p.comp.Release()
}

func clauseKey(lits []int) string {
	var b strings.Builder
	for _, l := range lits {
		b.WriteString(strconv.Itoa(l))
		b.WriteByte(' ')
	}
	return b.String()
}

func sortedIntKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedNodeKeys(m map[int]bdd.Node) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
