// Package valuation encodes the defensible-valuation selection problem as a QUBO
// and solves it with the annealing sampler.
package valuation

import (
	"fmt"

	"github.com/aristath/valuation/internal/modules/qubo"
)

// Family is one of the three bit families of the valuation encoding
type Family int

const (
	// Revenue bits add α·2^i·scaled_revenue to the valuation
	Revenue Family = iota
	// Assets bits add β·2^i·scaled_assets to the valuation
	Assets
	// Liabilities bits subtract γ·2^i·scaled_liabilities from the valuation
	Liabilities
)

// Families lists every family in encoding order
var Families = []Family{Revenue, Assets, Liabilities}

// Prefix returns the variable prefix of the family
func (f Family) Prefix() string {
	switch f {
	case Revenue:
		return "r"
	case Assets:
		return "a"
	case Liabilities:
		return "l"
	}
	return "?"
}

func (f Family) String() string {
	switch f {
	case Revenue:
		return "revenue"
	case Assets:
		return "assets"
	case Liabilities:
		return "liabilities"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Variable returns the identifier of bit i, e.g. "r_3"
func (f Family) Variable(i int) qubo.Variable {
	return qubo.Variable(fmt.Sprintf("%s_%d", f.Prefix(), i))
}

// Variables returns the identifiers of bits [0, bits)
func (f Family) Variables(bits int) []qubo.Variable {
	vars := make([]qubo.Variable, bits)
	for i := range vars {
		vars[i] = f.Variable(i)
	}
	return vars
}

// forcesSelection reports whether the family receives the selection-forcing penalty
func (f Family) forcesSelection() bool {
	return f == Revenue || f == Assets
}
