// Package annealing implements a simulated-annealing sampler for QUBO models.
package annealing

import (
	"math"
	"math/rand/v2"
)

// minTemperature is used when a schedule is configured with non-positive bounds
const minTemperature = 1e-9

// Schedule provides the temperature for a given sweep of a finite run.
// total is the number of sweeps in the run.
type Schedule interface {
	Temperature(sweep, total int) float64
}

// GeometricSchedule cools geometrically from Start to End across the run
type GeometricSchedule struct {
	Start float64
	End   float64
}

// Temperature returns Start·(End/Start)^(sweep/(total-1)).
// The final sweep always runs at End.
func (g GeometricSchedule) Temperature(sweep, total int) float64 {
	if g.Start <= 0 || g.End <= 0 {
		return minTemperature
	}
	if total <= 1 || sweep >= total-1 {
		return g.End
	}
	if sweep <= 0 {
		return g.Start
	}
	frac := float64(sweep) / float64(total-1)
	return g.Start * math.Pow(g.End/g.Start, frac)
}

// Accept decides whether a proposed flip with energy change delta is taken.
// Downhill and neutral moves are always accepted without consuming randomness.
func Accept(delta, temperature float64, rng *rand.Rand) bool {
	if delta <= 0 {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-delta/temperature)
}
