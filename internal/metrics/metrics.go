// Package metrics turns a run's trade log and benchmark prices into
// final cost and PnL figures. Every metric is a deterministic pure
// function of its inputs.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/jialuechen/genmarket/internal/domain"
)

// Fill is one execution attributed to the strategy, with the mid-price
// that prevailed when it happened. Mid is zero when the book had no mid
// at that instant.
type Fill struct {
	Price    int64
	Quantity int64
	Mid      int64
}

// Input collects the benchmark series and strategy fills for one run.
type Input struct {
	Side             domain.Side
	Fills            []Fill
	ArrivalPrice     int64 // mid at strategy start
	TerminalPrice    int64 // mark-to-market reference at run end
	TargetVolume     int64
	MarketVolume     int64 // total generated-flow volume, for context
	UnfilledNotional int64
}

// Evaluate computes the metrics for one run.
//
// Sign conventions: adverse slippage is positive on both sides. Impact
// cost is the volume-weighted signed difference between each fill price
// and the prevailing mid at its timestamp, adverse positive. PnL marks
// the filled quantity to the terminal reference price.
func Evaluate(in Input) domain.Metrics {
	m := domain.Metrics{
		ArrivalPrice:     decimal.NewFromInt(in.ArrivalPrice),
		MarketVolume:     in.MarketVolume,
		StrategyTrades:   len(in.Fills),
		UnfilledNotional: in.UnfilledNotional,
	}

	var filled int64
	notional := decimal.Zero
	impactNum := decimal.Zero
	for _, f := range in.Fills {
		filled += f.Quantity
		qty := decimal.NewFromInt(f.Quantity)
		notional = notional.Add(decimal.NewFromInt(f.Price).Mul(qty))
		if f.Mid > 0 {
			diff := decimal.NewFromInt(f.Price - f.Mid)
			impactNum = impactNum.Add(signed(in.Side, diff).Mul(qty))
		}
	}
	m.FilledQuantity = filled
	m.UnfilledTarget = in.TargetVolume - filled
	if filled == 0 {
		return m
	}

	qty := decimal.NewFromInt(filled)
	m.ExecutionPrice = notional.Div(qty)
	m.Slippage = signed(in.Side, m.ExecutionPrice.Sub(m.ArrivalPrice))
	m.ImpactCost = impactNum.Div(qty)

	// Mark to market: a buyer gains when the terminal reference sits
	// above the achieved execution price, a seller when below.
	terminal := decimal.NewFromInt(in.TerminalPrice)
	perUnit := terminal.Sub(m.ExecutionPrice)
	if in.Side == domain.SideSell {
		perUnit = perUnit.Neg()
	}
	m.PnL = perUnit.Mul(qty)

	return m
}

// signed orients a price difference so that adverse cost is positive:
// buying above the benchmark costs, selling below it costs.
func signed(side domain.Side, diff decimal.Decimal) decimal.Decimal {
	if side == domain.SideSell {
		return diff.Neg()
	}
	return diff
}
