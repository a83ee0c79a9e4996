// Package qubo provides the sparse QUBO coefficient model and its energy evaluation.
package qubo

import (
	"iter"
	"math"
)

// Variable identifies one binary decision variable
type Variable string

// Pair is the canonical key of an unordered variable pair.
// U <= V always holds; U == V denotes a linear (diagonal) term.
type Pair struct {
	U Variable
	V Variable
}

// NewPair returns the canonical pair for u and v (lexicographically ordered)
func NewPair(u, v Variable) Pair {
	if u > v {
		u, v = v, u
	}
	return Pair{U: u, V: v}
}

// IsLinear reports whether the pair is a diagonal entry
func (p Pair) IsLinear() bool {
	return p.U == p.V
}

// Assignment maps variables to binary values. Absent variables read as 0.
type Assignment map[Variable]uint8

// Value returns the binary value of v (0 when absent)
func (a Assignment) Value(v Variable) uint8 {
	if a[v] != 0 {
		return 1
	}
	return 0
}

// Model is a sparse QUBO coefficient table.
//
// Construction accumulates: targeting an existing pair adds to its coefficient.
// Entries keep their first-insertion order so iteration (and therefore floating
// point summation) is deterministic. Model is not safe for concurrent writers;
// concurrent readers are fine once construction is complete.
type Model struct {
	coeffs   map[Pair]float64
	order    []Pair
	varIndex map[Variable]int
	vars     []Variable
}

// NewModel creates an empty model
func NewModel() *Model {
	return &Model{
		coeffs:   make(map[Pair]float64),
		varIndex: make(map[Variable]int),
	}
}

// AddLinear accumulates delta into the diagonal coefficient of v
func (m *Model) AddLinear(v Variable, delta float64) {
	m.add(Pair{U: v, V: v}, delta)
}

// AddQuadratic accumulates delta into the coefficient of the unordered pair (u, v).
// When u == v it behaves as AddLinear.
func (m *Model) AddQuadratic(u, v Variable, delta float64) {
	m.add(NewPair(u, v), delta)
}

func (m *Model) add(p Pair, delta float64) {
	if _, ok := m.coeffs[p]; !ok {
		m.order = append(m.order, p)
		m.track(p.U)
		m.track(p.V)
	}
	m.coeffs[p] += delta
}

func (m *Model) track(v Variable) {
	if _, ok := m.varIndex[v]; ok {
		return
	}
	m.varIndex[v] = len(m.vars)
	m.vars = append(m.vars, v)
}

// Coefficient returns the coefficient stored for (u, v), or 0 if absent
func (m *Model) Coefficient(u, v Variable) float64 {
	return m.coeffs[NewPair(u, v)]
}

// Linear returns the diagonal coefficient of v
func (m *Model) Linear(v Variable) float64 {
	return m.coeffs[Pair{U: v, V: v}]
}

// Coefficients returns a restartable sequence over all stored entries in insertion order.
// Zero coefficients are retained.
func (m *Model) Coefficients() iter.Seq2[Pair, float64] {
	return func(yield func(Pair, float64) bool) {
		for _, p := range m.order {
			if !yield(p, m.coeffs[p]) {
				return
			}
		}
	}
}

// Variables returns every variable referenced by the model, in first-seen order
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.vars))
	copy(out, m.vars)
	return out
}

// Index returns the position of v in Variables()
func (m *Model) Index(v Variable) (int, bool) {
	i, ok := m.varIndex[v]
	return i, ok
}

// Len returns the number of stored coefficient entries
func (m *Model) Len() int {
	return len(m.order)
}

// NumVariables returns the number of distinct variables
func (m *Model) NumVariables() int {
	return len(m.vars)
}

// Equal reports whether both models store exactly the same coefficient table.
// Comparison is bit-for-bit on coefficients and ignores insertion order.
func (m *Model) Equal(other *Model) bool {
	if other == nil || len(m.coeffs) != len(other.coeffs) {
		return false
	}
	for p, coeff := range m.coeffs {
		oc, ok := other.coeffs[p]
		if !ok || math.Float64bits(oc) != math.Float64bits(coeff) {
			return false
		}
	}
	return true
}
