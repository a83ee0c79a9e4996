package valuation

import (
	"fmt"
	"math"

	"github.com/aristath/valuation/internal/modules/qubo"
)

// Encode applies the three penalty passes onto m, in order:
//
//  1. objective: ±weight·2^i·scaled on every bit (minus for liabilities)
//  2. selection forcing: −LargePenalty on every revenue and asset bit
//  3. threshold: +P·max(0, threshold − scaled) on every bit of each family
//
// All passes accumulate onto the existing diagonal entries. The individual
// passes cannot be separated from m afterwards.
func Encode(m *qubo.Model, cfg EncoderConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid encoder config: %w", err)
	}

	encodeObjective(m, cfg)
	applySelectionForcing(m, cfg)
	applyThresholdPenalty(m, cfg)

	return nil
}

// BuildModel encodes cfg into a fresh model
func BuildModel(cfg EncoderConfig) (*qubo.Model, error) {
	m := qubo.NewModel()
	if err := Encode(m, cfg); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeObjective(m *qubo.Model, cfg EncoderConfig) {
	// Interleave families per bit so variables appear as r_0, a_0, l_0, r_1, ...
	for i := 0; i < cfg.Bits; i++ {
		place := math.Exp2(float64(i))
		for _, f := range Families {
			m.AddLinear(f.Variable(i), cfg.sign(f)*cfg.weight(f)*place*cfg.scaled(f))
		}
	}
}

// applySelectionForcing subtracts LargePenalty from each revenue and asset bit.
// The diagonal term only counts when the bit is 1, so this lowers the energy of
// selecting the bit and steers the search away from the all-zero outcome.
func applySelectionForcing(m *qubo.Model, cfg EncoderConfig) {
	for _, f := range Families {
		if !f.forcesSelection() {
			continue
		}
		for _, v := range f.Variables(cfg.Bits) {
			m.AddLinear(v, -cfg.LargePenalty)
		}
	}
}

// applyThresholdPenalty adds the same shortfall penalty to every bit of a family.
// It is zero when the scaled value already meets the threshold.
func applyThresholdPenalty(m *qubo.Model, cfg EncoderConfig) {
	for i := 0; i < cfg.Bits; i++ {
		for _, f := range Families {
			m.AddLinear(f.Variable(i), cfg.ThresholdPenalty*math.Max(0, cfg.Threshold-cfg.scaled(f)))
		}
	}
}
