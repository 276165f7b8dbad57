// Package strategy implements the execution strategies that trade
// against the simulated book. Strategies form a small closed set behind
// one capability interface; new variants are added by implementing it.
package strategy

import (
	"fmt"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
)

// Tick is everything a strategy observes on one decision tick: the
// book, the regime, logical time, its own state, and the market volume
// accumulated from generated flow.
type Tick struct {
	Now            int64
	Depth          domain.DepthSnapshot
	Regime         domain.RegimeSnapshot
	State          *domain.StrategyState
	ObservedVolume int64 // cumulative market volume this run
	SliceVolume    int64 // market volume since the previous tick
	TotalSlices    int
}

// Strategy decides, on each tick, which orders to submit. Returning no
// orders is a valid decision. Implementations must be deterministic
// functions of the tick.
type Strategy interface {
	OnTick(tick Tick) []domain.OrderRequest
}

// New builds the configured strategy variant. Parameters were already
// range-checked by config validation; variant-specific rules are
// enforced here.
func New(cfg config.StrategyConfig) (Strategy, error) {
	side := domain.Side(cfg.Params.Side)
	switch cfg.Type {
	case "vwap":
		return &VWAP{
			side:          side,
			target:        cfg.Params.TargetVolume,
			slices:        *cfg.Params.Slices,
			participation: cfg.Params.ParticipationRate,
		}, nil
	case "twap":
		return &TWAP{
			side:   side,
			target: cfg.Params.TargetVolume,
			slices: *cfg.Params.Slices,
		}, nil
	case "trailing_stop":
		return &TrailingStop{
			side:     side,
			trailing: cfg.Params.TrailingDistance,
			stop:     cfg.Params.StopPrice,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, cfg.Type)
	}
}

// childPrice returns a marketable limit price for a child order: the
// best opposite price when one exists, otherwise the strategy's own
// best. Returns false when the book gives no reference at all.
func childPrice(side domain.Side, depth domain.DepthSnapshot) (int64, bool) {
	if side == domain.SideBuy {
		if ask, ok := depth.BestAsk(); ok {
			return ask, true
		}
		return depth.BestBid()
	}
	if bid, ok := depth.BestBid(); ok {
		return bid, true
	}
	return depth.BestAsk()
}
