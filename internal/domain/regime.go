package domain

// Liquidity classifies how deep the synthetic market is. Generated
// order sizes scale inversely with the class.
type Liquidity string

const (
	LiquidityLow    Liquidity = "low"
	LiquidityMedium Liquidity = "medium"
	LiquidityHigh   Liquidity = "high"
)

// Factor is the divisor applied to generated order sizes.
func (l Liquidity) Factor() float64 {
	switch l {
	case LiquidityLow:
		return 1
	case LiquidityHigh:
		return 4
	default:
		return 2
	}
}

// RegimeSnapshot is a read-only macro parameter snapshot at one point
// in simulation time.
type RegimeSnapshot struct {
	Timestamp  int64     `json:"timestamp"`
	Volatility float64   `json:"volatility"` // [0, 1]
	Liquidity  Liquidity `json:"liquidity"`
	Drift      float64   `json:"drift"` // [-1, 1]
}
