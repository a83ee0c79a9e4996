package qubo

// Energy computes Σ coeff(u,v)·x_u·x_v over every stored entry.
// Diagonal entries contribute coeff·x_v since x² = x for binary x.
// Variables missing from the assignment count as 0.
func Energy(m *Model, a Assignment) float64 {
	var energy float64
	for p, coeff := range m.Coefficients() {
		if a.Value(p.U) == 0 {
			continue
		}
		if p.IsLinear() || a.Value(p.V) == 1 {
			energy += coeff
		}
	}
	return energy
}
