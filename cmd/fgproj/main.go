// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

// Command fgproj projects an existentially quantified QDIMACS problem
// onto its free variables, computing an over-approximation with factor
// graph message passing, refined by merge hints learned from MUS
// counterexamples.
package main

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mfkiwl/FactorGraph/bdd"
	"github.com/mfkiwl/FactorGraph/gen"
	"github.com/mfkiwl/FactorGraph/proj"
	"github.com/mfkiwl/FactorGraph/qdimacs"
)

// defaults are read from the environment (FGPROJ_*) before flag
// parsing, so flags win.
type defaults struct {
	LargestSupportSet int     `envconfig:"LARGEST_SUPPORT_SET" default:"50"`
	MaxMucSize        int     `envconfig:"MAX_MUC_SIZE" default:"10"`
	MucMergeWeight    float64 `envconfig:"MUC_MERGE_WEIGHT" default:"0.5"`
	MaxMuses          int     `envconfig:"MAX_MUSES" default:"0"`
	Verbosity         string  `envconfig:"VERBOSITY" default:"ERROR"`
}

func main() {
	_ = godotenv.Load()
	var env defaults
	if err := envconfig.Process("fgproj", &env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := proj.Options{}
	var inputFile, verbosity string

	root := &cobra.Command{
		Use:           "fgproj",
		Short:         "existential projection of QDIMACS problems over ROBDDs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "project an input file onto its free variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setVerbosity(verbosity); err != nil {
				return err
			}
			return runProjection(inputFile, opts)
		},
	}
	run.Flags().IntVar(&opts.LargestSupportSet, "largest-support-set", env.LargestSupportSet, "largest allowed support set size while clumping cnf factors")
	run.Flags().IntVar(&opts.MaxMucSize, "max-muc-size", env.MaxMucSize, "max clauses allowed in an MUC")
	run.Flags().Float64Var(&opts.MucMergeWeight, "muc-merge-weight", env.MucMergeWeight, "weightage given to merge MUC findings")
	run.Flags().IntVar(&opts.MaxMuses, "max-muses", env.MaxMuses, "stop after this many MUCs (0 for no limit)")
	run.Flags().BoolVar(&opts.ComputeExact, "compute-exact", false, "compute the exact projection for comparison")
	run.Flags().StringVar(&inputFile, "input-file", "", "input qdimacs file with exactly one quantifier which is existential")
	run.Flags().StringVar(&verbosity, "verbosity", env.Verbosity, "log verbosity (QUIET/ERROR/WARNING/INFO/DEBUG)")
	_ = run.MarkFlagRequired("input-file")

	genCmd := &cobra.Command{
		Use:   "gen [chain|rand]",
		Short: "generate a QDIMACS instance on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args[0], genVars, genClauses, genQuant, genSeed)
		},
	}
	genCmd.Flags().IntVar(&genVars, "vars", 20, "number of variables")
	genCmd.Flags().IntVar(&genClauses, "clauses", 60, "number of clauses (rand only)")
	genCmd.Flags().IntVar(&genQuant, "quantified", 10, "number of quantified variables (rand only)")
	genCmd.Flags().Int64Var(&genSeed, "seed", 33, "rng seed")

	root.AddCommand(run, genCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	genVars    int
	genClauses int
	genQuant   int
	genSeed    int64
)

func runGen(kind string, vars, clauses, quant int, seed int64) error {
	gen.Seed(seed)
	var f *qdimacs.File
	switch kind {
	case "chain":
		f = gen.Chain(vars)
	case "rand":
		f = gen.Rand3Qbf(vars, clauses, quant)
	default:
		return fmt.Errorf("unknown instance kind %q", kind)
	}
	return gen.Write(os.Stdout, f)
}

func runProjection(path string, opts proj.Options) error {
	start := time.Now()
	r, err := path2Reader(path)
	if err != nil {
		return err
	}
	file, err := qdimacs.Parse(r)
	if err != nil {
		return err
	}
	m, err := bdd.New(file.NumVariables)
	if err != nil {
		return err
	}
	p, err := proj.New(m, file, opts)
	if err != nil {
		return err
	}
	defer p.Release()
	log.Infof("parsed qdimacs file with %d variables and %d clauses in %s",
		file.NumVariables, file.NumClauses(), time.Since(start))

	if err := p.Run(); err != nil {
		return err
	}
	candidate := p.Candidate()
	defer m.Free(candidate)
	fmt.Printf("s projection with %s satisfying assignments\n", m.Satcount(candidate))

	if opts.ComputeExact {
		exact := p.Exact()
		defer m.Free(exact)
		if m.Equal(candidate, exact) {
			fmt.Println("c candidate is exact")
		} else {
			fmt.Println("c candidate is strictly over-approximate")
		}
	}
	log.Infof("done in %s", time.Since(start))
	return nil
}

// path2Reader opens p, transparently decompressing .gz and .bz2 files.
// "-" reads stdin.
func path2Reader(p string) (io.Reader, error) {
	if p == "-" {
		return os.Stdin, nil
	}
	st, stErr := os.Stat(p)
	if stErr != nil {
		return nil, stErr
	}
	if st.Mode()&os.ModeSymlink != 0 {
		q, e := os.Readlink(p)
		if e != nil {
			return nil, e
		}
		p = q
	}
	f, e := os.Open(p)
	if e != nil {
		return nil, e
	}
	if strings.HasSuffix(p, ".gz") {
		r, e := gzip.NewReader(f)
		if e != nil {
			return nil, e
		}
		return r, nil
	}
	if strings.HasSuffix(p, ".bz2") {
		return bzip2.NewReader(f), nil
	}
	return f, nil
}

func setVerbosity(v string) error {
	switch strings.ToUpper(v) {
	case "QUIET":
		log.SetLevel(log.PanicLevel)
	case "ERROR":
		log.SetLevel(log.ErrorLevel)
	case "WARNING":
		log.SetLevel(log.WarnLevel)
	case "INFO":
		log.SetLevel(log.InfoLevel)
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	default:
		return fmt.Errorf("unknown verbosity %q", v)
	}
	return nil
}
