// Package chem implements the molecular analysis core: structure
// parsing, geometry optimization, complex building and property
// estimation.
package chem

import "fmt"

// Structure holds an atomic configuration: one element symbol and one
// 3D position (Å) per atom, index-aligned. Atom order is significant
// and preserved through every transformation.
type Structure struct {
	Symbols   []string     `json:"symbols"`
	Positions [][3]float64 `json:"positions"`
}

// NewStructure builds a Structure and enforces the symbol/position
// alignment invariant.
func NewStructure(symbols []string, positions [][3]float64) (*Structure, error) {
	if len(symbols) != len(positions) {
		return nil, fmt.Errorf("chem: %d symbols but %d positions", len(symbols), len(positions))
	}
	return &Structure{Symbols: symbols, Positions: positions}, nil
}

// Len returns the number of atoms.
func (s *Structure) Len() int {
	return len(s.Symbols)
}

// Copy returns a deep copy. Pipeline stages operate on copies so that
// intermediate structures from earlier stages stay valid.
func (s *Structure) Copy() *Structure {
	c := &Structure{
		Symbols:   make([]string, len(s.Symbols)),
		Positions: make([][3]float64, len(s.Positions)),
	}
	copy(c.Symbols, s.Symbols)
	copy(c.Positions, s.Positions)
	return c
}

// Translate shifts every atom by delta, in place.
func (s *Structure) Translate(delta [3]float64) {
	for i := range s.Positions {
		s.Positions[i][0] += delta[0]
		s.Positions[i][1] += delta[1]
		s.Positions[i][2] += delta[2]
	}
}

// CenterOfMass returns the mass-weighted mean position. Unknown
// symbols are weighted with the carbon mass so the center stays
// defined for exotic inputs.
func (s *Structure) CenterOfMass() [3]float64 {
	var com [3]float64
	var total float64
	for i, sym := range s.Symbols {
		m := atomicMass(sym)
		total += m
		com[0] += m * s.Positions[i][0]
		com[1] += m * s.Positions[i][1]
		com[2] += m * s.Positions[i][2]
	}
	if total == 0 {
		return [3]float64{}
	}
	com[0] /= total
	com[1] /= total
	com[2] /= total
	return com
}

// AtomicNumbers returns the per-atom atomic numbers; unknown symbols
// map to zero.
func (s *Structure) AtomicNumbers() []int {
	nums := make([]int, len(s.Symbols))
	for i, sym := range s.Symbols {
		nums[i] = atomicNumbers[sym]
	}
	return nums
}

// ElectronCount is the total electron count of the neutral molecule.
func (s *Structure) ElectronCount() int {
	total := 0
	for _, sym := range s.Symbols {
		total += atomicNumbers[sym]
	}
	return total
}

// Formula returns the chemical composition as counts per element, e.g.
// {"C": 6, "H": 6}.
func (s *Structure) Formula() map[string]int {
	formula := make(map[string]int)
	for _, sym := range s.Symbols {
		formula[sym]++
	}
	return formula
}

// contains reports whether any atom has the given element symbol.
func (s *Structure) contains(symbol string) bool {
	for _, sym := range s.Symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

var atomicNumbers = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8,
	"F": 9, "Ne": 10, "Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15,
	"S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20, "Fe": 26, "Cu": 29,
	"Zn": 30, "Br": 35, "I": 53,
}

var atomicMasses = map[string]float64{
	"H": 1.008, "He": 4.003, "Li": 6.94, "Be": 9.012, "B": 10.81,
	"C": 12.011, "N": 14.007, "O": 15.999, "F": 18.998, "Ne": 20.180,
	"Na": 22.990, "Mg": 24.305, "Al": 26.982, "Si": 28.085, "P": 30.974,
	"S": 32.06, "Cl": 35.45, "Ar": 39.948, "K": 39.098, "Ca": 40.078,
	"Fe": 55.845, "Cu": 63.546, "Zn": 65.38, "Br": 79.904, "I": 126.904,
}

func atomicMass(symbol string) float64 {
	if m, ok := atomicMasses[symbol]; ok {
		return m
	}
	return atomicMasses["C"]
}
