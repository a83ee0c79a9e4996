package annealing

import (
	"math"
	"math/rand/v2"

	"github.com/aristath/valuation/internal/modules/qubo"
)

// Sample is the outcome of one annealing read
type Sample struct {
	Read       int             `json:"read"`
	Assignment qubo.Assignment `json:"assignment"`
	Energy     float64         `json:"energy"`
}

type neighbor struct {
	index  int
	weight float64
}

// Annealer runs single simulated-annealing reads over a compiled model.
//
// The model is compiled into index form once: linear biases per variable and
// adjacency lists holding both directions of every off-diagonal pair. The
// Annealer is read-only afterwards, so concurrent Run calls are safe as long
// as the source model is not mutated.
type Annealer struct {
	model  *qubo.Model
	vars   []qubo.Variable
	linear []float64
	adj    [][]neighbor
}

// NewAnnealer compiles m for annealing
func NewAnnealer(m *qubo.Model) *Annealer {
	vars := m.Variables()
	a := &Annealer{
		model:  m,
		vars:   vars,
		linear: make([]float64, len(vars)),
		adj:    make([][]neighbor, len(vars)),
	}

	for p, coeff := range m.Coefficients() {
		i, _ := m.Index(p.U)
		if p.IsLinear() {
			a.linear[i] += coeff
			continue
		}
		j, _ := m.Index(p.V)
		a.adj[i] = append(a.adj[i], neighbor{index: j, weight: coeff})
		a.adj[j] = append(a.adj[j], neighbor{index: i, weight: coeff})
	}

	return a
}

// Variables returns the sweep order (the model's first-seen order)
func (a *Annealer) Variables() []qubo.Variable {
	return a.vars
}

// Run performs one read: a uniformly random initial state followed by sweeps
// over every variable in fixed order, cooling by sched. It returns the final
// state and its exact energy. Run never fails; an empty model yields an empty
// assignment with energy 0.
func (a *Annealer) Run(rng *rand.Rand, sweeps int, sched Schedule) Sample {
	n := len(a.vars)
	state := make([]uint8, n)
	for i := range state {
		state[i] = uint8(rng.IntN(2))
	}

	for s := 0; s < sweeps; s++ {
		temperature := sched.Temperature(s, sweeps)
		for i := 0; i < n; i++ {
			if Accept(a.flipDelta(state, i), temperature, rng) {
				state[i] ^= 1
			}
		}
	}

	assignment := make(qubo.Assignment, n)
	for i, v := range a.vars {
		assignment[v] = state[i]
	}

	return Sample{
		Assignment: assignment,
		Energy:     qubo.Energy(a.model, assignment),
	}
}

// flipDelta is the energy change of flipping variable i, computed from its local field
func (a *Annealer) flipDelta(state []uint8, i int) float64 {
	field := a.linear[i]
	for _, nb := range a.adj[i] {
		if state[nb.index] == 1 {
			field += nb.weight
		}
	}
	if state[i] == 1 {
		return -field
	}
	return field
}

// DefaultTemperatureRange derives annealing bounds from the model.
// The hot bound accepts the largest possible uphill flip with probability 1/2;
// the cold bound accepts the smallest non-zero one with probability 1/100.
func (a *Annealer) DefaultTemperatureRange() (tMax, tMin float64) {
	hottest := 0.0
	coldest := math.Inf(1)

	for i := range a.vars {
		maxDelta := math.Abs(a.linear[i])
		minDelta := math.Inf(1)
		if a.linear[i] != 0 {
			minDelta = math.Abs(a.linear[i])
		}
		for _, nb := range a.adj[i] {
			w := math.Abs(nb.weight)
			maxDelta += w
			if w != 0 && w < minDelta {
				minDelta = w
			}
		}
		hottest = math.Max(hottest, maxDelta)
		coldest = math.Min(coldest, minDelta)
	}

	if hottest == 0 || math.IsInf(coldest, 1) {
		return 1.0, 1e-3
	}

	return hottest / math.Ln2, coldest / math.Log(100)
}
