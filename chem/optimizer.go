package chem

import (
	"context"
	"log/slog"
	"math"
)

// Per-iteration descent step (Å per eV/Å) and the cap on how far any
// single atom may move in one step (Å).
const (
	descentStep     = 0.05
	maxDisplacement = 0.2
)

// OptimizeResult carries the relaxed structure together with how the
// run ended. Non-convergence is not an error: the best structure found
// is returned and callers can inspect Steps and Converged. Degraded
// means no relaxation happened, either because no calculator is
// available or because the evaluator failed mid-run.
type OptimizeResult struct {
	Structure *Structure
	Steps     int
	Converged bool
	Degraded  bool
}

// Optimize drives a copy of s toward a force minimum until the maximum
// per-atom force norm drops below fmax or maxSteps is reached. The
// caller's structure is never mutated. Evaluator failures are logged
// and downgrade the result to the unoptimized input rather than
// propagate: a partially completed pipeline is worth more to the
// caller than an aborted one.
func Optimize(ctx context.Context, port Port, s *Structure, fmax float64, maxSteps int) OptimizeResult {
	if !port.Available() {
		slog.Warn("no calculator available, returning unoptimized structure", "atoms", s.Len())
		return OptimizeResult{Structure: s.Copy(), Degraded: true}
	}

	work := s.Copy()
	for step := 0; step < maxSteps; step++ {
		_, forces, err := port.Evaluate(ctx, work)
		if err != nil {
			slog.Warn("optimization failed", "step", step, "error", err)
			return OptimizeResult{Structure: s.Copy(), Steps: step, Degraded: true}
		}
		if maxForceNorm(forces) < fmax {
			return OptimizeResult{Structure: work, Steps: step, Converged: true}
		}
		descend(work, forces)
	}
	return OptimizeResult{Structure: work, Steps: maxSteps}
}

// descend moves each atom along its force vector, clipped to
// maxDisplacement.
func descend(s *Structure, forces [][3]float64) {
	for i := range s.Positions {
		d := [3]float64{
			descentStep * forces[i][0],
			descentStep * forces[i][1],
			descentStep * forces[i][2],
		}
		if n := vecNorm(d); n > maxDisplacement {
			scale := maxDisplacement / n
			d[0] *= scale
			d[1] *= scale
			d[2] *= scale
		}
		s.Positions[i][0] += d[0]
		s.Positions[i][1] += d[1]
		s.Positions[i][2] += d[2]
	}
}

func maxForceNorm(forces [][3]float64) float64 {
	maxNorm := 0.0
	for _, f := range forces {
		if n := vecNorm(f); n > maxNorm {
			maxNorm = n
		}
	}
	return maxNorm
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
