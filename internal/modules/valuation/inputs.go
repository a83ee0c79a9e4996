package valuation

import (
	"errors"
	"fmt"
	"math"
)

// maxBits keeps 2^i exactly representable in a float64 mantissa
const maxBits = 52

// Financials holds the raw figures, in millions
type Financials struct {
	Revenue     float64 `json:"revenue"`
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
}

// Scaled holds the figures after division by the scale divisor
type Scaled struct {
	Revenue     float64 `json:"revenue"`
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
}

// Scale floor-divides every figure by divisor
func (f Financials) Scale(divisor float64) Scaled {
	return Scaled{
		Revenue:     math.Floor(f.Revenue / divisor),
		Assets:      math.Floor(f.Assets / divisor),
		Liabilities: math.Floor(f.Liabilities / divisor),
	}
}

// Inputs is the full caller-side configuration of one valuation problem
type Inputs struct {
	Financials       Financials `json:"financials"`
	ScaleDivisor     float64    `json:"scale_divisor"`
	Bits             int        `json:"bits"`
	Alpha            float64    `json:"alpha"`
	Beta             float64    `json:"beta"`
	Gamma            float64    `json:"gamma"`
	Threshold        float64    `json:"threshold"`
	LargePenalty     float64    `json:"large_penalty"`
	ThresholdPenalty float64    `json:"threshold_penalty"`
}

// DefaultInputs returns the 2023 example figures and weights
func DefaultInputs() Inputs {
	return Inputs{
		Financials: Financials{
			Revenue:     500,
			Assets:      1200,
			Liabilities: 800,
		},
		ScaleDivisor:     50,
		Bits:             6,
		Alpha:            1.0,
		Beta:             0.8,
		Gamma:            0.6,
		Threshold:        200,
		LargePenalty:     100000,
		ThresholdPenalty: 500,
	}
}

// Validate checks the inputs
func (in Inputs) Validate() error {
	if in.ScaleDivisor <= 0 {
		return fmt.Errorf("scale divisor must be positive, got %g", in.ScaleDivisor)
	}
	return in.EncoderConfig().Validate()
}

// EncoderConfig scales the financials and returns the encoder configuration
func (in Inputs) EncoderConfig() EncoderConfig {
	scaled := in.Financials.Scale(in.ScaleDivisor)
	return EncoderConfig{
		Bits:              in.Bits,
		ScaledRevenue:     scaled.Revenue,
		ScaledAssets:      scaled.Assets,
		ScaledLiabilities: scaled.Liabilities,
		Alpha:             in.Alpha,
		Beta:              in.Beta,
		Gamma:             in.Gamma,
		Threshold:         in.Threshold,
		LargePenalty:      in.LargePenalty,
		ThresholdPenalty:  in.ThresholdPenalty,
	}
}

// EncoderConfig holds every coefficient input of the penalty encoder
type EncoderConfig struct {
	Bits              int     `json:"bits"`
	ScaledRevenue     float64 `json:"scaled_revenue"`
	ScaledAssets      float64 `json:"scaled_assets"`
	ScaledLiabilities float64 `json:"scaled_liabilities"`
	Alpha             float64 `json:"alpha"`
	Beta              float64 `json:"beta"`
	Gamma             float64 `json:"gamma"`
	Threshold         float64 `json:"threshold"`
	LargePenalty      float64 `json:"large_penalty"`
	ThresholdPenalty  float64 `json:"threshold_penalty"`
}

// DefaultEncoderConfig returns the encoder configuration of DefaultInputs
func DefaultEncoderConfig() EncoderConfig {
	return DefaultInputs().EncoderConfig()
}

// Validate checks the encoder configuration
func (c EncoderConfig) Validate() error {
	if c.Bits < 1 || c.Bits > maxBits {
		return fmt.Errorf("bits must be within [1, %d], got %d", maxBits, c.Bits)
	}
	if c.LargePenalty < 0 || c.ThresholdPenalty < 0 {
		return errors.New("penalties must be non-negative")
	}
	return nil
}

// weight returns the family weight (α, β or γ)
func (c EncoderConfig) weight(f Family) float64 {
	switch f {
	case Revenue:
		return c.Alpha
	case Assets:
		return c.Beta
	default:
		return c.Gamma
	}
}

// scaled returns the scaled magnitude of the family
func (c EncoderConfig) scaled(f Family) float64 {
	switch f {
	case Revenue:
		return c.ScaledRevenue
	case Assets:
		return c.ScaledAssets
	default:
		return c.ScaledLiabilities
	}
}

// sign is +1 for families that raise the valuation and -1 for liabilities
func (c EncoderConfig) sign(f Family) float64 {
	if f == Liabilities {
		return -1
	}
	return 1
}
