package chem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
)

// Settings is the per-run configuration surface of the pipeline.
// Zero fields take the documented defaults.
type Settings struct {
	Fmax         float64
	MaxSteps     int
	Separation   float64
	Method       string
	Basis        string
	Charge       int
	Multiplicity int
}

func (s Settings) withDefaults() Settings {
	if s.Fmax == 0 {
		s.Fmax = 0.05
	}
	if s.MaxSteps == 0 {
		s.MaxSteps = 200
	}
	if s.Separation == 0 {
		s.Separation = 3.0
	}
	if s.Method == "" {
		s.Method = "B3LYP"
	}
	if s.Basis == "" {
		s.Basis = "6-31G(d)"
	}
	if s.Multiplicity == 0 {
		s.Multiplicity = 1
	}
	return s
}

// ProgressFunc receives stage-by-stage progress. Percent is
// monotonically non-decreasing over a run.
type ProgressFunc func(percent int, message string)

// Sink persists result artifacts. A sink failure aborts the run.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) error
}

// Result summarizes one completed analysis run.
type Result struct {
	AbsorbentAtoms int        `json:"absorbent_atoms"`
	AnalyteAtoms   int        `json:"analyte_atoms"`
	ComplexAtoms   int        `json:"complex_atoms"`
	Complex        *Structure `json:"-"`
	Properties     Properties `json:"properties"`
	StructureFile  string     `json:"structure_file"`
	ResultsFile    string     `json:"results_file"`
	Degraded       bool       `json:"degraded"`
}

// Bundle renders the result in the shape served to API clients and
// written to the results file.
func (r *Result) Bundle(jobID string) map[string]any {
	return map[string]any{
		"status": "success",
		"structures": map[string]any{
			"absorbent_atoms": r.AbsorbentAtoms,
			"analyte_atoms":   r.AnalyteAtoms,
			"complex_atoms":   r.ComplexAtoms,
		},
		"properties": r.Properties,
		"degraded":   r.Degraded,
		"files": map[string]any{
			"optimized_structure": r.StructureFile,
			"job_id":              jobID,
		},
	}
}

// Pipeline sequences one analysis run: parse both fragments, optimize
// each, combine them into a complex, re-optimize, estimate
// properties, persist. It is strictly linear and single-pass with no
// internal retries; create one Pipeline per run (the random source is
// not safe for concurrent use).
type Pipeline struct {
	port Port
	rng  *rand.Rand
}

// NewPipeline builds a pipeline over the given calculator port. The
// rng seeds the stochastic property heuristics; nil means time-seeded.
func NewPipeline(port Port, rng *rand.Rand) *Pipeline {
	return &Pipeline{port: port, rng: rng}
}

// Run executes the full analysis. Only parse failures, persistence
// failures and cancellation abort the run; chemistry-stage failures
// degrade (see Optimize and Estimator.Estimate). Cancellation is
// cooperative and checked between stages only, since the stages
// themselves are not interruptible.
func (p *Pipeline) Run(ctx context.Context, absorbent, analyte io.Reader, sink Sink, prefix string, set Settings, progress ProgressFunc) (*Result, error) {
	set = set.withDefaults()
	if progress == nil {
		progress = func(int, string) {}
	}

	progress(20, "Parsing structures...")
	abs, err := Parse(absorbent)
	if err != nil {
		return nil, fmt.Errorf("parse absorbent: %w", err)
	}
	ana, err := Parse(analyte)
	if err != nil {
		return nil, fmt.Errorf("parse analyte: %w", err)
	}
	slog.Info("structures parsed", "absorbent_atoms", abs.Len(), "analyte_atoms", ana.Len())

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(40, "Optimizing absorbent...")
	optAbs := Optimize(ctx, p.port, abs, set.Fmax, set.MaxSteps)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(60, "Optimizing analyte...")
	optAna := Optimize(ctx, p.port, ana, set.Fmax, set.MaxSteps)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(70, "Creating complex...")
	initial := BuildComplex(optAbs.Structure, optAna.Structure, set.Separation)
	slog.Info("complex built", "atoms", initial.Len(), "separation", set.Separation)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(85, "Optimizing complex...")
	optComplex := Optimize(ctx, p.port, initial, set.Fmax, set.MaxSteps)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(95, "Calculating properties...")
	props := NewEstimator(p.port, p.rng).Estimate(ctx, optComplex.Structure)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	progress(98, "Saving results...")
	result := &Result{
		AbsorbentAtoms: abs.Len(),
		AnalyteAtoms:   ana.Len(),
		ComplexAtoms:   optComplex.Structure.Len(),
		Complex:        optComplex.Structure,
		Properties:     props,
		StructureFile:  prefix + "_optimized.gjf",
		ResultsFile:    prefix + "_results.json",
		Degraded:       optAbs.Degraded || optAna.Degraded || optComplex.Degraded,
	}

	if err := p.persist(ctx, sink, prefix, result, set); err != nil {
		return nil, err
	}

	progress(100, "Complete!")
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, sink Sink, prefix string, result *Result, set Settings) error {
	gjf := Marshal(result.Complex, WriteOptions{
		Method:       set.Method,
		Basis:        set.Basis,
		Charge:       set.Charge,
		Multiplicity: set.Multiplicity,
	})
	if err := sink.Save(ctx, result.StructureFile, gjf); err != nil {
		return fmt.Errorf("save optimized structure: %w", err)
	}

	bundle, err := json.MarshalIndent(result.Bundle(lastSegment(prefix)), "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := sink.Save(ctx, result.ResultsFile, bundle); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	if err := sink.Save(ctx, prefix+"_properties.txt", RenderText(result.Properties)); err != nil {
		return fmt.Errorf("save properties report: %w", err)
	}
	return nil
}

// lastSegment extracts the job identifier from a slash-separated
// result prefix.
func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis cancelled: %w", err)
	}
	return nil
}
