package valuation

import (
	"math"

	"github.com/aristath/valuation/internal/modules/qubo"
)

// Decoded is the caller-side reading of a solved assignment
type Decoded struct {
	RevenueUnits    int     `json:"revenue_units"`    // Σ 2^i·r_i
	AssetUnits      int     `json:"asset_units"`      // Σ 2^i·a_i
	LiabilityUnits  int     `json:"liability_units"`  // Σ 2^i·l_i
	Valuation       float64 `json:"valuation"`        // in millions
	SelectedForcing int     `json:"selected_forcing"` // selected revenue and asset bits
	Degenerate      bool    `json:"degenerate"`
}

// Decode reads the family magnitudes and the valuation out of an assignment.
// Degenerate is set when no revenue or asset bit was selected; the encoding only
// biases against that outcome, so it is reported rather than treated as an error.
func Decode(a qubo.Assignment, cfg EncoderConfig) Decoded {
	var d Decoded
	for i := 0; i < cfg.Bits; i++ {
		place := math.Exp2(float64(i))
		r := a.Value(Revenue.Variable(i))
		as := a.Value(Assets.Variable(i))
		l := a.Value(Liabilities.Variable(i))

		d.RevenueUnits += int(r) << i
		d.AssetUnits += int(as) << i
		d.LiabilityUnits += int(l) << i
		d.SelectedForcing += int(r) + int(as)

		d.Valuation += cfg.Alpha*place*cfg.ScaledRevenue*float64(r) +
			cfg.Beta*place*cfg.ScaledAssets*float64(as) -
			cfg.Gamma*place*cfg.ScaledLiabilities*float64(l)
	}
	d.Degenerate = d.SelectedForcing == 0
	return d
}
