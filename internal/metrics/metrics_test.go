package metrics

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jialuechen/genmarket/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEvaluate_BuySide(t *testing.T) {
	m := Evaluate(Input{
		Side: domain.SideBuy,
		Fills: []Fill{
			{Price: 101, Quantity: 60, Mid: 100},
			{Price: 103, Quantity: 40, Mid: 101},
		},
		ArrivalPrice:  100,
		TerminalPrice: 105,
		TargetVolume:  100,
	})

	// VWAP = (101*60 + 103*40) / 100 = 101.8
	if !m.ExecutionPrice.Equal(dec("101.8")) {
		t.Errorf("execution price: got %s, want 101.8", m.ExecutionPrice)
	}
	// Buy slippage = exec − arrival = 1.8 (adverse positive).
	if !m.Slippage.Equal(dec("1.8")) {
		t.Errorf("slippage: got %s, want 1.8", m.Slippage)
	}
	// Impact = (1*60 + 2*40) / 100 = 1.4
	if !m.ImpactCost.Equal(dec("1.4")) {
		t.Errorf("impact: got %s, want 1.4", m.ImpactCost)
	}
	// PnL = (105 − 101.8) * 100 = 320
	if !m.PnL.Equal(dec("320")) {
		t.Errorf("pnl: got %s, want 320", m.PnL)
	}
	if m.FilledQuantity != 100 || m.UnfilledTarget != 0 {
		t.Errorf("fill accounting: filled=%d unfilled=%d", m.FilledQuantity, m.UnfilledTarget)
	}
}

func TestEvaluate_SellSideSignConvention(t *testing.T) {
	m := Evaluate(Input{
		Side: domain.SideSell,
		Fills: []Fill{
			{Price: 98, Quantity: 50, Mid: 100},
		},
		ArrivalPrice:  100,
		TerminalPrice: 95,
		TargetVolume:  50,
	})

	// Selling 2 below arrival is adverse: slippage = +2.
	if !m.Slippage.Equal(dec("2")) {
		t.Errorf("sell slippage: got %s, want 2", m.Slippage)
	}
	// Selling 2 below mid is adverse impact: +2.
	if !m.ImpactCost.Equal(dec("2")) {
		t.Errorf("sell impact: got %s, want 2", m.ImpactCost)
	}
	// Seller PnL = (exec − terminal) * qty = (98 − 95) * 50 = 150.
	if !m.PnL.Equal(dec("150")) {
		t.Errorf("sell pnl: got %s, want 150", m.PnL)
	}
}

func TestEvaluate_PartialFill(t *testing.T) {
	m := Evaluate(Input{
		Side:          domain.SideBuy,
		Fills:         []Fill{{Price: 100, Quantity: 30, Mid: 100}},
		ArrivalPrice:  100,
		TerminalPrice: 100,
		TargetVolume:  100,
	})
	if m.FilledQuantity != 30 || m.UnfilledTarget != 70 {
		t.Errorf("partial fill accounting wrong: %+v", m)
	}
	if !m.Slippage.Equal(decimal.Zero) {
		t.Errorf("at-arrival execution has zero slippage, got %s", m.Slippage)
	}
}

func TestEvaluate_NoFills(t *testing.T) {
	m := Evaluate(Input{
		Side:         domain.SideBuy,
		ArrivalPrice: 100,
		TargetVolume: 50,
	})
	if m.FilledQuantity != 0 || m.UnfilledTarget != 50 {
		t.Errorf("no-fill accounting wrong: %+v", m)
	}
	if !m.ExecutionPrice.Equal(decimal.Zero) || !m.PnL.Equal(decimal.Zero) {
		t.Errorf("no fills means zero-valued metrics, got %+v", m)
	}
}

func TestEvaluate_FillsWithoutMidSkipImpact(t *testing.T) {
	m := Evaluate(Input{
		Side: domain.SideBuy,
		Fills: []Fill{
			{Price: 100, Quantity: 10, Mid: 0}, // one-sided book at fill time
			{Price: 102, Quantity: 10, Mid: 100},
		},
		ArrivalPrice:  100,
		TerminalPrice: 100,
		TargetVolume:  20,
	})
	// Only the second fill contributes: 2*10/20 = 1.
	if !m.ImpactCost.Equal(dec("1")) {
		t.Errorf("impact: got %s, want 1", m.ImpactCost)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	in := Input{
		Side: domain.SideSell,
		Fills: []Fill{
			{Price: 997, Quantity: 13, Mid: 1000},
			{Price: 995, Quantity: 29, Mid: 999},
			{Price: 1001, Quantity: 7, Mid: 1001},
		},
		ArrivalPrice:  1000,
		TerminalPrice: 990,
		TargetVolume:  49,
	}
	a := Evaluate(in)
	b := Evaluate(in)
	if !a.ExecutionPrice.Equal(b.ExecutionPrice) || !a.Slippage.Equal(b.Slippage) ||
		!a.ImpactCost.Equal(b.ImpactCost) || !a.PnL.Equal(b.PnL) {
		t.Errorf("metrics must be pure: %+v vs %+v", a, b)
	}
}
