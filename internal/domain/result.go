package domain

import "github.com/shopspring/decimal"

// StrategyState is the per-run mutable state owned by the strategy
// engine. It is mutated only on strategy ticks and destroyed at run end.
type StrategyState struct {
	RemainingTarget   int64 `json:"remaining_target"`
	ElapsedSlices     int   `json:"elapsed_slices"`
	Watermark         int64 `json:"watermark"`
	Triggered         bool  `json:"triggered"`
	ForcedLiquidation bool  `json:"forced_liquidation"`
	Submissions       int   `json:"submissions"`
	Rejections        int   `json:"rejections"`
}

// Metrics are the final cost and PnL figures for one run. All values
// are pure functions of the trade log and benchmark inputs.
type Metrics struct {
	ExecutionPrice   decimal.Decimal `json:"execution_price"`
	ArrivalPrice     decimal.Decimal `json:"arrival_price"`
	Slippage         decimal.Decimal `json:"slippage"`
	ImpactCost       decimal.Decimal `json:"impact_cost"`
	PnL              decimal.Decimal `json:"pnl"`
	FilledQuantity   int64           `json:"filled_quantity"`
	UnfilledTarget   int64           `json:"unfilled_target"`
	StrategyTrades   int             `json:"strategy_trades"`
	MarketVolume     int64           `json:"market_volume"`
	UnfilledNotional int64           `json:"unfilled_notional"`
}

// RunStatus is the run coordinator's state machine position.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunEvaluated RunStatus = "evaluated"
	RunDone      RunStatus = "done"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// SimulationResult aggregates everything produced by one run. It is
// written once by the run coordinator and read-only thereafter.
type SimulationResult struct {
	RunIndex   int           `json:"run_index"`
	Seed       int64         `json:"seed"`
	Status     RunStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	Trades     []Trade       `json:"trades"`
	FinalState StrategyState `json:"final_state"`
	Metrics    Metrics       `json:"metrics"`
	Depth      DepthSnapshot `json:"depth"`
	EventsSeen int           `json:"events_seen"`
}
