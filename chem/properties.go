package chem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Properties maps property names to computed values. Properties are
// independent: failure of one never blocks the others, and a partial
// map with an "error" entry is preferred over no result at all.
type Properties map[string]any

// PropertyKeys is the canonical rendering order for property reports.
var PropertyKeys = []string{
	"total_atoms",
	"molecular_volume",
	"center_of_mass",
	"total_energy",
	"forces_rms",
	"energy_provenance",
	"homo_lumo_gap",
	"dipole_moment",
	"polarizability",
	"binding_energy",
	"binding_sites",
	"ir_frequencies",
	"uv_vis_absorption",
}

// BindingSite marks an atom reported as a likely non-covalent
// interaction site.
type BindingSite struct {
	AtomIndex int        `json:"atom_index"`
	Element   string     `json:"element"`
	Position  [3]float64 `json:"position"`
}

// Energy provenance values. Placeholder energetics are substituted
// when no calculator backend exists; the flag makes that observable
// downstream instead of leaving consumers to guess.
const (
	ProvenanceCalculator  = "calculator"
	ProvenancePlaceholder = "placeholder"
)

// Placeholder energetics used in degraded mode.
const (
	placeholderEnergy    = -2847.32
	placeholderForcesRMS = 0.02
)

var vdwRadii = map[string]float64{
	"H": 1.2, "C": 1.7, "N": 1.55, "O": 1.52, "S": 1.8, "P": 1.8,
}

const defaultVDWRadius = 1.5

// Estimator computes the property battery for a structure. The random
// source drives the stochastic heuristics (HOMO-LUMO gap, dipole,
// binding energy); inject a seeded one for reproducible runs.
type Estimator struct {
	port Port
	rng  *rand.Rand
}

// NewEstimator builds an estimator. A nil rng falls back to a
// time-seeded source.
func NewEstimator(port Port, rng *rand.Rand) *Estimator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Estimator{port: port, rng: rng}
}

// Estimate computes the full property set. It never fails: any panic
// is recorded under the "error" key and properties computed up to that
// point are kept.
func (e *Estimator) Estimate(ctx context.Context, s *Structure) (props Properties) {
	props = Properties{}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("property estimation failed", "error", r)
			props["error"] = fmt.Sprint(r)
		}
	}()

	// Geometric.
	props["total_atoms"] = s.Len()
	volume := MolecularVolume(s)
	props["molecular_volume"] = volume
	com := s.CenterOfMass()
	props["center_of_mass"] = []float64{com[0], com[1], com[2]}

	// Energetic.
	e.estimateEnergetics(ctx, s, props)

	// Electronic.
	props["homo_lumo_gap"] = e.homoLumoGap(s)
	props["dipole_moment"] = e.dipoleMoment(s)
	props["polarizability"] = 0.1 * volume

	// Binding.
	props["binding_energy"] = e.bindingEnergy(s)
	props["binding_sites"] = BindingSites(s)

	// Spectroscopic.
	props["ir_frequencies"] = IRFrequencies(s)
	props["uv_vis_absorption"] = UVVisAbsorption(s)

	return props
}

func (e *Estimator) estimateEnergetics(ctx context.Context, s *Structure, props Properties) {
	if e.port.Available() {
		energy, forces, err := e.port.Evaluate(ctx, s)
		if err == nil {
			props["total_energy"] = energy
			props["forces_rms"] = forcesRMS(forces)
			props["energy_provenance"] = ProvenanceCalculator
			return
		}
		slog.Warn("energy evaluation failed, substituting placeholders", "error", err)
	}
	props["total_energy"] = placeholderEnergy
	props["forces_rms"] = placeholderForcesRMS
	props["energy_provenance"] = ProvenancePlaceholder
}

// MolecularVolume sums per-atom van-der-Waals sphere volumes.
func MolecularVolume(s *Structure) float64 {
	total := 0.0
	for _, sym := range s.Symbols {
		r, ok := vdwRadii[sym]
		if !ok {
			r = defaultVDWRadius
		}
		total += (4.0 / 3.0) * math.Pi * r * r * r
	}
	return total
}

// homoLumoGap is a step function of the total electron count with
// Gaussian noise per band. A heuristic, not a quantum result.
func (e *Estimator) homoLumoGap(s *Structure) float64 {
	n := s.ElectronCount()
	switch {
	case n < 10:
		return 8.0 + e.rng.NormFloat64()*0.5
	case n < 50:
		return 4.0 + e.rng.NormFloat64()*1.0
	default:
		return 2.0 + e.rng.NormFloat64()*0.5
	}
}

// dipoleMoment assigns each atom a Gaussian pseudo-charge and returns
// the magnitude of the charge-weighted position sum. A placeholder,
// not a physical dipole.
func (e *Estimator) dipoleMoment(s *Structure) float64 {
	var dipole [3]float64
	for i := range s.Positions {
		q := e.rng.NormFloat64() * 0.1
		dipole[0] += q * s.Positions[i][0]
		dipole[1] += q * s.Positions[i][1]
		dipole[2] += q * s.Positions[i][2]
	}
	return vecNorm(dipole)
}

func (e *Estimator) bindingEnergy(s *Structure) float64 {
	return -5.0 - 0.1*float64(s.Len()) + e.rng.NormFloat64()
}

// BindingSites reports every O, N and S atom: a simple Lewis-basicity
// heuristic.
func BindingSites(s *Structure) []BindingSite {
	sites := []BindingSite{}
	for i, sym := range s.Symbols {
		switch sym {
		case "O", "N", "S":
			sites = append(sites, BindingSite{
				AtomIndex: i,
				Element:   sym,
				Position:  s.Positions[i],
			})
		}
	}
	return sites
}

// IRFrequencies applies a presence-based rule table over element
// pairs and returns the matched bands (cm⁻¹) sorted ascending, or a
// lone default band when nothing matches.
func IRFrequencies(s *Structure) []float64 {
	var freqs []float64
	if s.contains("O") && s.contains("H") {
		freqs = append(freqs, 3200, 3400)
	}
	if s.contains("C") && s.contains("O") {
		freqs = append(freqs, 1700)
	}
	if s.contains("C") && s.contains("H") {
		freqs = append(freqs, 2900, 3000)
	}
	if len(freqs) == 0 {
		return []float64{1650}
	}
	sort.Float64s(freqs)
	return freqs
}

// UVVisAbsorption estimates the absorption maximum (nm) from the
// count of π-capable atoms, capped at 800.
func UVVisAbsorption(s *Structure) float64 {
	n := 0
	for _, sym := range s.Symbols {
		switch sym {
		case "C", "N", "O":
			n++
		}
	}
	lambda := 200 + 30*math.Sqrt(float64(n))
	return math.Min(lambda, 800)
}

func forcesRMS(forces [][3]float64) float64 {
	if len(forces) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range forces {
		sum += f[0]*f[0] + f[1]*f[1] + f[2]*f[2]
	}
	return math.Sqrt(sum / float64(len(forces)*3))
}

// RenderText writes the property report as a banner plus one
// "key: value" line per property in canonical order.
func RenderText(props Properties) []byte {
	var b bytes.Buffer
	b.WriteString("Molecular Complex Properties\n")
	b.WriteString(bannerRule)
	b.WriteString("\n\n")
	for _, key := range PropertyKeys {
		v, ok := props[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", key, renderValue(v))
	}
	if errVal, ok := props["error"]; ok {
		fmt.Fprintf(&b, "error: %s\n", renderValue(errVal))
	}
	return b.Bytes()
}

const bannerRule = "========================================"

func renderValue(v any) string {
	switch v.(type) {
	case int, float64, string:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
