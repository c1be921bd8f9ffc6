package chem

import (
	"context"
	"errors"
	"testing"
)

// stubCalculator returns a scripted sequence of force evaluations.
type stubCalculator struct {
	forces [][][3]float64
	errAt  int
	calls  int
}

func (c *stubCalculator) Evaluate(ctx context.Context, s *Structure) (float64, [][3]float64, error) {
	call := c.calls
	c.calls++
	if c.errAt > 0 && call >= c.errAt-1 {
		return 0, nil, errors.New("backend exploded")
	}
	if call >= len(c.forces) {
		call = len(c.forces) - 1
	}
	return -1.0, c.forces[call], nil
}

func twoAtoms() *Structure {
	return &Structure{
		Symbols:   []string{"H", "H"},
		Positions: [][3]float64{{0, 0, 0}, {1, 0, 0}},
	}
}

func TestOptimizeUnavailablePort(t *testing.T) {
	s := twoAtoms()
	res := Optimize(context.Background(), UnavailablePort(), s, 0.05, 200)

	if !res.Degraded {
		t.Error("expected degraded result without a calculator")
	}
	if res.Converged {
		t.Error("degraded result must not claim convergence")
	}
	if res.Structure == s {
		t.Error("result must be a copy, not the input")
	}
	if res.Structure.Positions[1] != s.Positions[1] {
		t.Error("degraded result should keep the input geometry")
	}
}

func TestOptimizeConverges(t *testing.T) {
	calc := &stubCalculator{forces: [][][3]float64{
		{{0.5, 0, 0}, {-0.5, 0, 0}},
		{{0.1, 0, 0}, {-0.1, 0, 0}},
		{{0.01, 0, 0}, {-0.01, 0, 0}},
	}}
	s := twoAtoms()
	res := Optimize(context.Background(), AvailablePort(calc), s, 0.05, 200)

	if !res.Converged {
		t.Fatal("expected convergence")
	}
	if res.Degraded {
		t.Error("converged run must not be degraded")
	}
	if res.Steps != 2 {
		t.Errorf("expected convergence after 2 descent steps, got %d", res.Steps)
	}
	// Input stays untouched.
	if s.Positions[0] != [3]float64{0, 0, 0} {
		t.Error("input structure was mutated")
	}
}

func TestOptimizeStepCap(t *testing.T) {
	// Forces never drop below fmax.
	calc := &stubCalculator{forces: [][][3]float64{
		{{1, 0, 0}, {-1, 0, 0}},
	}}
	res := Optimize(context.Background(), AvailablePort(calc), twoAtoms(), 0.05, 7)

	if res.Converged {
		t.Error("should not converge")
	}
	if res.Degraded {
		t.Error("exhausting the step budget is not degradation")
	}
	if res.Steps != 7 {
		t.Errorf("expected 7 steps, got %d", res.Steps)
	}
	if calc.calls != 7 {
		t.Errorf("expected 7 evaluations, got %d", calc.calls)
	}
}

func TestOptimizeEvaluatorFailure(t *testing.T) {
	calc := &stubCalculator{
		forces: [][][3]float64{{{1, 0, 0}, {-1, 0, 0}}},
		errAt:  3,
	}
	s := twoAtoms()
	res := Optimize(context.Background(), AvailablePort(calc), s, 0.05, 200)

	if !res.Degraded {
		t.Error("expected degraded result after evaluator failure")
	}
	if res.Steps != 2 {
		t.Errorf("expected failure at step 2, got %d", res.Steps)
	}
	// The result falls back to the unoptimized input, not the partially
	// descended geometry.
	if res.Structure.Positions[0] != [3]float64{0, 0, 0} {
		t.Errorf("expected original geometry, got %v", res.Structure.Positions[0])
	}
}

func TestDescendClipsDisplacement(t *testing.T) {
	s := &Structure{
		Symbols:   []string{"H"},
		Positions: [][3]float64{{0, 0, 0}},
	}
	// A huge force: raw step would be 50 Å, must clip to 0.2 Å.
	descend(s, [][3]float64{{1000, 0, 0}})

	if got := s.Positions[0][0]; got != maxDisplacement {
		t.Errorf("expected displacement clipped to %v, got %v", maxDisplacement, got)
	}
}

func TestMaxForceNorm(t *testing.T) {
	forces := [][3]float64{{0.1, 0, 0}, {0, 3, 4}, {0, 0, 0.5}}
	if got := maxForceNorm(forces); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
	if got := maxForceNorm(nil); got != 0 {
		t.Errorf("expected 0 for no forces, got %v", got)
	}
}
