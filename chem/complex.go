package chem

// BuildComplex combines two optimized fragments into one non-covalent
// complex. A copy of the analyte is translated so its center of mass
// sits `separation` Å above the absorbent's center of mass along z,
// then the atoms are concatenated absorbent-first. Neither input is
// mutated and each fragment keeps its internal atom order.
func BuildComplex(absorbent, analyte *Structure, separation float64) *Structure {
	absCOM := absorbent.CenterOfMass()
	anaCOM := analyte.CenterOfMass()

	shifted := analyte.Copy()
	shifted.Translate([3]float64{
		absCOM[0] - anaCOM[0],
		absCOM[1] - anaCOM[1],
		absCOM[2] - anaCOM[2] + separation,
	})

	combined := &Structure{
		Symbols:   make([]string, 0, absorbent.Len()+shifted.Len()),
		Positions: make([][3]float64, 0, absorbent.Len()+shifted.Len()),
	}
	combined.Symbols = append(combined.Symbols, absorbent.Symbols...)
	combined.Symbols = append(combined.Symbols, shifted.Symbols...)
	combined.Positions = append(combined.Positions, absorbent.Positions...)
	combined.Positions = append(combined.Positions, shifted.Positions...)
	return combined
}
