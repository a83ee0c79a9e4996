package qubo

import (
	"gonum.org/v1/gonum/mat"
)

// Entry is one materialised coefficient of the table
type Entry struct {
	U           Variable `json:"u" msgpack:"u"`
	V           Variable `json:"v" msgpack:"v"`
	Coefficient float64  `json:"coefficient" msgpack:"c"`
}

// Table returns a snapshot of all entries in insertion order
func (m *Model) Table() []Entry {
	entries := make([]Entry, 0, m.Len())
	for p, coeff := range m.Coefficients() {
		entries = append(entries, Entry{U: p.U, V: p.V, Coefficient: coeff})
	}
	return entries
}

// FromTable rebuilds a model from entries, accumulating duplicates
func FromTable(entries []Entry) *Model {
	m := NewModel()
	for _, e := range entries {
		m.AddQuadratic(e.U, e.V, e.Coefficient)
	}
	return m
}

// Dense exports the model as a symmetric matrix Q over Variables() such that
// xᵀQx equals Energy for every binary x. Off-diagonal coefficients are split
// evenly across (i,j) and (j,i).
func (m *Model) Dense() (*mat.SymDense, []Variable) {
	vars := m.Variables()
	n := len(vars)
	if n == 0 {
		return nil, vars
	}

	q := mat.NewSymDense(n, nil)
	for p, coeff := range m.Coefficients() {
		i := m.varIndex[p.U]
		j := m.varIndex[p.V]
		if i == j {
			q.SetSym(i, i, q.At(i, i)+coeff)
			continue
		}
		q.SetSym(i, j, q.At(i, j)+coeff/2)
	}
	return q, vars
}
