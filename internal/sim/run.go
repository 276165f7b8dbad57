// Package sim coordinates simulation runs: it interleaves generated
// order flow with strategy decisions against one book, and fans
// independent runs out across a worker pool for parameter sweeps.
package sim

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
	"github.com/jialuechen/genmarket/internal/engine"
	"github.com/jialuechen/genmarket/internal/gen"
	"github.com/jialuechen/genmarket/internal/metrics"
	"github.com/jialuechen/genmarket/internal/strategy"
)

// RunSpec identifies one run within a batch: its index, its explicit
// random seed, and the shared configuration document.
type RunSpec struct {
	Index int
	Seed  int64
	Doc   *config.Document
}

// runner holds everything one run owns exclusively: the book, the
// generator state, and the strategy state. Nothing here crosses
// goroutines.
type runner struct {
	spec    RunSpec
	logger  *zap.Logger
	eng     *engine.Engine
	flow    *gen.Generator
	regimes *gen.RegimeSource
	strat   strategy.Strategy
	state   *domain.StrategyState

	side      domain.Side
	levels    int
	latencyUS int64
	tickTimes []int64
	nextID    uint64

	strategyOrders   map[uint64]*domain.Order
	fills            []metrics.Fill
	marketVolume     int64
	sliceVolume      int64
	arrivalPrice     int64
	unfilledNotional int64
	eventsSeen       int
	lastGenTime      int64
}

// Execute runs one simulation to completion. Per-run errors are
// captured in the result rather than returned: a failed run never
// crashes its batch. Cancellation is honoured between events, never
// mid-match.
func Execute(ctx context.Context, spec RunSpec) domain.SimulationResult {
	return ExecuteWithLogger(ctx, spec, zap.NewNop())
}

// ExecuteWithLogger is Execute with run-scoped logging.
func ExecuteWithLogger(ctx context.Context, spec RunSpec, logger *zap.Logger) domain.SimulationResult {
	result := domain.SimulationResult{
		RunIndex: spec.Index,
		Seed:     spec.Seed,
		Status:   domain.RunPending,
	}

	r, err := newRunner(spec, logger)
	if err != nil {
		result.Status = domain.RunFailed
		result.Error = err.Error()
		return result
	}

	result.Status = domain.RunRunning
	aborted, err := r.loop(ctx)
	if err != nil {
		result.Status = domain.RunFailed
		result.Error = err.Error()
		result.Trades = r.eng.Trades()
		return result
	}

	result.Trades = r.eng.Trades()
	result.FinalState = *r.state
	result.Depth = r.eng.Depth(r.levels)
	result.EventsSeen = r.eventsSeen
	result.Metrics = metrics.Evaluate(metrics.Input{
		Side:             r.side,
		Fills:            r.fills,
		ArrivalPrice:     r.arrivalPrice,
		TerminalPrice:    r.terminalPrice(),
		TargetVolume:     spec.Doc.Strategy.Params.TargetVolume,
		MarketVolume:     r.marketVolume,
		UnfilledNotional: r.unfilledNotional,
	})
	result.Status = domain.RunEvaluated

	if aborted {
		result.Status = domain.RunAborted
	} else {
		result.Status = domain.RunDone
	}
	logger.Debug("run complete",
		zap.String("status", string(result.Status)),
		zap.Int("events", r.eventsSeen),
		zap.Int("trades", len(result.Trades)),
	)
	return result
}

func newRunner(spec RunSpec, logger *zap.Logger) (*runner, error) {
	doc := spec.Doc

	strat, err := strategy.New(doc.Strategy)
	if err != nil {
		return nil, err
	}

	params := doc.Strategy.Params
	horizonUS := params.TimeHorizonMS * 1000
	slices := *params.Slices
	tickTimes := make([]int64, slices)
	for i := range tickTimes {
		tickTimes[i] = horizonUS * int64(i+1) / int64(slices)
	}

	return &runner{
		spec:   spec,
		logger: logger,
		eng:    engine.New(),
		flow: gen.NewGenerator(gen.FlowParams{
			Steps:          doc.Flow.Steps,
			StartPrice:     doc.Flow.StartPrice,
			MeanIntervalUS: int64(*doc.Flow.MeanIntervalMS * 1000),
			Window:         *doc.Flow.Window,
			BaseSize:       *doc.Flow.BaseSize,
			MarketRatio:    *doc.Flow.MarketRatio,
			CancelRatio:    *doc.Flow.CancelRatio,
		}, spec.Seed),
		regimes:        buildRegimes(doc),
		strat:          strat,
		state:          &domain.StrategyState{RemainingTarget: params.TargetVolume},
		side:           domain.Side(params.Side),
		levels:         *doc.LOB.Levels,
		latencyUS:      doc.LOB.LatencyMS * 1000,
		tickTimes:      tickTimes,
		strategyOrders: make(map[uint64]*domain.Order),
		arrivalPrice:   doc.Flow.StartPrice,
	}, nil
}

// buildRegimes maps the document's regime section onto a schedule. With
// no segments the top-level parameters hold for the whole run; segment
// fields default to the top-level values when omitted.
func buildRegimes(doc *config.Document) *gen.RegimeSource {
	base := gen.Segment{
		Volatility: doc.Volatility,
		Liquidity:  config.LiquidityClass(doc.Liquidity),
		Drift:      doc.Drift,
	}
	if len(doc.Regime.Segments) == 0 {
		return gen.NewRegimeSource([]gen.Segment{base})
	}
	segments := make([]gen.Segment, 0, len(doc.Regime.Segments))
	for _, sc := range doc.Regime.Segments {
		seg := gen.Segment{
			Start:      sc.AtMS * 1000,
			Volatility: sc.Volatility,
			Liquidity:  base.Liquidity,
			Drift:      sc.Drift,
		}
		if sc.Liquidity != "" {
			seg.Liquidity = config.LiquidityClass(sc.Liquidity)
		}
		segments = append(segments, seg)
	}
	return gen.NewRegimeSource(segments)
}

// loop is the per-run event loop: a time-ordered interleaving of
// generator output and strategy ticks. At equal timestamps the
// generator event applies first, so strategies always react to the book
// as of the previous tick.
func (r *runner) loop(ctx context.Context) (aborted bool, err error) {
	var held *domain.Order
	tickIdx := 0

	for {
		// Cancellation is checked only at event boundaries.
		if ctx.Err() != nil {
			return true, nil
		}

		if held == nil && !r.flow.Done() {
			ev, genErr := r.flow.NextEvent(r.regimes.At(r.lastGenTime))
			if genErr != nil {
				return false, genErr
			}
			held = ev
		}

		switch {
		case held != nil && (tickIdx >= len(r.tickTimes) || held.Timestamp <= r.tickTimes[tickIdx]):
			if err := r.applyGeneratorEvent(held); err != nil {
				return false, err
			}
			held = nil
		case tickIdx < len(r.tickTimes):
			if err := r.strategyTick(r.tickTimes[tickIdx]); err != nil {
				return false, err
			}
			tickIdx++
			if tickIdx == len(r.tickTimes) {
				if err := r.expireHorizon(); err != nil {
					return false, err
				}
			}
		default:
			return false, nil
		}
	}
}

// applyGeneratorEvent submits one generated event to the book, adding
// the configured processing latency to its timestamp first.
func (r *runner) applyGeneratorEvent(ev *domain.Order) error {
	r.eventsSeen++
	r.lastGenTime = ev.Timestamp
	ev.Timestamp += r.latencyUS

	if ev.Type == domain.OrderTypeCancel {
		if err := r.eng.Cancel(ev.CancelID); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}
		return nil
	}

	r.nextID++
	ev.ID = r.nextID

	mid, _ := r.eng.Mid()
	res, err := r.eng.Submit(ev)
	if err != nil {
		if errors.Is(err, domain.ErrRejectedOrder) {
			// The generator emitted an event violating its contract;
			// report its own step numbering, not the applied count.
			return &domain.GenerationError{Step: r.flow.LastStep(), Reason: err.Error()}
		}
		return err
	}
	if res.Rested && ev.Type == domain.OrderTypeLimit {
		r.flow.ObserveRested(ev.ID)
	}
	r.recordTrades(res.Trades, mid)
	if res.UnfilledQuantity > 0 && mid > 0 {
		r.unfilledNotional += res.UnfilledQuantity * mid
	}
	return nil
}

// strategyTick snapshots the book and regime, asks the strategy for
// orders, and submits them. Malformed strategy orders are rejected at
// the engine boundary and the run continues without them.
func (r *runner) strategyTick(now int64) error {
	if r.state.ElapsedSlices == 0 {
		if mid, ok := r.eng.Mid(); ok {
			r.arrivalPrice = mid
		}
	}

	tick := strategy.Tick{
		Now:            now,
		Depth:          r.eng.Depth(r.levels),
		Regime:         r.regimes.At(now),
		State:          r.state,
		ObservedVolume: r.marketVolume,
		SliceVolume:    r.sliceVolume,
		TotalSlices:    len(r.tickTimes),
	}
	reqs := r.strat.OnTick(tick)
	r.sliceVolume = 0
	r.state.ElapsedSlices++

	for _, req := range reqs {
		if err := r.submitStrategyOrder(req, now); err != nil {
			return err
		}
	}
	return nil
}

// submitStrategyOrder pushes one strategy order through the same path
// as generated flow. Rejections are counted, logged, and swallowed;
// invariant violations propagate.
func (r *runner) submitStrategyOrder(req domain.OrderRequest, now int64) error {
	r.nextID++
	order := &domain.Order{
		ID:        r.nextID,
		Side:      req.Side,
		Type:      req.Type,
		Origin:    domain.OriginStrategy,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Timestamp: now + r.latencyUS,
	}

	mid, _ := r.eng.Mid()
	res, err := r.eng.Submit(order)
	if err != nil {
		if errors.Is(err, domain.ErrRejectedOrder) {
			r.state.Rejections++
			r.logger.Warn("strategy order rejected", zap.Uint64("order_id", order.ID), zap.Error(err))
			return nil
		}
		return err
	}
	r.state.Submissions++
	r.strategyOrders[order.ID] = order

	r.recordTrades(res.Trades, mid)
	if res.UnfilledQuantity > 0 && mid > 0 {
		r.unfilledNotional += res.UnfilledQuantity * mid
	}
	return nil
}

// recordTrades accumulates generated-flow volume and attributes fills
// that touch a strategy order, using the mid that prevailed before the
// incoming event was applied.
func (r *runner) recordTrades(trades []domain.Trade, midBefore int64) {
	for _, tr := range trades {
		_, makerOurs := r.strategyOrders[tr.MakerOrderID]
		_, takerOurs := r.strategyOrders[tr.TakerOrderID]
		if makerOurs || takerOurs {
			r.fills = append(r.fills, metrics.Fill{
				Price:    tr.Price,
				Quantity: tr.Quantity,
				Mid:      midBefore,
			})
			r.state.RemainingTarget -= tr.Quantity
			continue
		}
		// Only generated flow counts as observed market volume; the
		// strategy's own fills would otherwise inflate its
		// participation schedule.
		r.marketVolume += tr.Quantity
		r.sliceVolume += tr.Quantity
	}
}

// expireHorizon runs when the strategy's time horizon elapses: any
// resting child orders are withdrawn and the unexecuted remainder is
// force-liquidated with a single market order.
func (r *runner) expireHorizon() error {
	// Withdraw children in ID order; map order would be nondeterministic.
	ids := make([]uint64, 0, len(r.strategyOrders))
	for id := range r.strategyOrders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if r.strategyOrders[id].Quantity > 0 {
			if err := r.eng.Cancel(id); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
				return err
			}
		}
	}
	if r.state.RemainingTarget <= 0 {
		return nil
	}

	r.state.ForcedLiquidation = true
	return r.submitStrategyOrder(domain.OrderRequest{
		Side:     r.side,
		Type:     domain.OrderTypeMarket,
		Quantity: r.state.RemainingTarget,
	}, r.tickTimes[len(r.tickTimes)-1])
}

// terminalPrice is the mark-to-market reference at run end: the final
// mid when both sides rest, else the last trade price, else the
// configured start price.
func (r *runner) terminalPrice() int64 {
	if mid, ok := r.eng.Mid(); ok {
		return mid
	}
	trades := r.eng.Trades()
	if len(trades) > 0 {
		return trades[len(trades)-1].Price
	}
	return r.spec.Doc.Flow.StartPrice
}
