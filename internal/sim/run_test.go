package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
)

const baseDoc = `
regime:
  name: calm
volatility: 0.3
liquidity: medium
drift: 0.0
lob:
  levels: 10
flow:
  steps: 4000
  start_price: 10000
  mean_interval_ms: 1
strategy:
  type: vwap
  params:
    side: buy
    target_volume: 100
    time_horizon_ms: 2000
    slices: 10
`

func parseDoc(t *testing.T, body string) *config.Document {
	t.Helper()
	doc, err := config.Parse([]byte(body))
	if err != nil {
		t.Fatalf("config must parse: %v", err)
	}
	return doc
}

func TestExecute_VWAPRunCompletes(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	res := Execute(context.Background(), RunSpec{Index: 0, Seed: 42, Doc: doc})

	if res.Status != domain.RunDone {
		t.Fatalf("expected done, got %s (%s)", res.Status, res.Error)
	}
	if len(res.Trades) == 0 {
		t.Error("expected generated flow to trade")
	}
	if res.FinalState.RemainingTarget != 0 {
		t.Errorf("target must be fully executed or force-liquidated, remaining %d", res.FinalState.RemainingTarget)
	}
	if res.Metrics.FilledQuantity == 0 {
		t.Error("expected strategy fills")
	}
	if res.Metrics.ExecutionPrice.IsZero() {
		t.Error("expected a volume-weighted execution price")
	}
}

// Determinism is a correctness requirement: identical configuration and
// seed must produce byte-identical trade logs and metrics.
func TestExecute_DeterministicForSeed(t *testing.T) {
	doc := parseDoc(t, baseDoc)

	a := Execute(context.Background(), RunSpec{Index: 0, Seed: 7, Doc: doc})
	b := Execute(context.Background(), RunSpec{Index: 0, Seed: 7, Doc: doc})

	ja, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	jb, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(ja, jb) {
		t.Error("identical seed produced different results")
	}
}

func TestExecute_DistinctSeedsDiverge(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	a := Execute(context.Background(), RunSpec{Index: 0, Seed: 1, Doc: doc})
	b := Execute(context.Background(), RunSpec{Index: 0, Seed: 2, Doc: doc})
	if len(a.Trades) == len(b.Trades) && len(a.Trades) > 0 {
		if a.Trades[len(a.Trades)-1] == b.Trades[len(b.Trades)-1] {
			t.Error("distinct seeds produced identical trade logs")
		}
	}
}

func TestExecute_HorizonExpiryForcesLiquidation(t *testing.T) {
	// A trailing stop that can never trigger leaves the whole target
	// unexecuted until the horizon.
	body := `
volatility: 0.2
liquidity: high
lob:
  levels: 5
flow:
  steps: 3000
  start_price: 10000
strategy:
  type: trailing_stop
  params:
    side: sell
    target_volume: 50
    time_horizon_ms: 1000
    slices: 5
    trailing_distance: 1000000
`
	doc := parseDoc(t, body)
	res := Execute(context.Background(), RunSpec{Index: 0, Seed: 5, Doc: doc})

	if res.Status != domain.RunDone {
		t.Fatalf("expected done, got %s (%s)", res.Status, res.Error)
	}
	if !res.FinalState.ForcedLiquidation {
		t.Error("horizon expiry must force-liquidate the remainder")
	}
	if res.FinalState.Triggered {
		t.Error("the stop itself must not have triggered")
	}
}

func TestExecute_LatencyShiftsEventTimestamps(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	doc.LOB.LatencyMS = 3

	res := Execute(context.Background(), RunSpec{Index: 0, Seed: 42, Doc: doc})
	if res.Status != domain.RunDone {
		t.Fatalf("expected done, got %s (%s)", res.Status, res.Error)
	}
	for _, tr := range res.Trades {
		if tr.Timestamp < 3000 {
			t.Fatalf("trade at %dus predates the 3ms processing delay", tr.Timestamp)
		}
	}
}

func TestApplyGeneratorEvent_RejectionReportsGeneratorStep(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	r, err := newRunner(RunSpec{Index: 0, Seed: 3, Doc: doc}, zap.NewNop())
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}

	regime := r.regimes.At(0)
	for i := 0; i < 2; i++ {
		ev, err := r.flow.NextEvent(regime)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if err := r.applyGeneratorEvent(ev); err != nil {
			t.Fatalf("apply event %d: %v", i, err)
		}
	}

	ev, err := r.flow.NextEvent(regime)
	if err != nil {
		t.Fatalf("third event: %v", err)
	}
	ev.Type = domain.OrderTypeLimit
	ev.Price = 100
	ev.Quantity = 0 // contract violation, rejected by the engine

	var ge *domain.GenerationError
	if err := r.applyGeneratorEvent(ev); !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	// Third emitted event, zero-based: the generator's own numbering,
	// not the applied-event count (which is 3 by now).
	if ge.Step != 2 {
		t.Errorf("Step = %d, want 2", ge.Step)
	}
}

func TestRecordTrades_OwnFillsExcludedFromObservedVolume(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	r, err := newRunner(RunSpec{Index: 0, Seed: 1, Doc: doc}, zap.NewNop())
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}
	r.strategyOrders[7] = &domain.Order{ID: 7, Origin: domain.OriginStrategy}

	r.recordTrades([]domain.Trade{
		{MakerOrderID: 1, TakerOrderID: 2, Price: 100, Quantity: 40},
		{MakerOrderID: 1, TakerOrderID: 7, Price: 100, Quantity: 25},
	}, 100)

	if r.marketVolume != 40 || r.sliceVolume != 40 {
		t.Errorf("own fills must not count as observed volume: market=%d slice=%d",
			r.marketVolume, r.sliceVolume)
	}
	if len(r.fills) != 1 || r.fills[0].Quantity != 25 {
		t.Errorf("strategy fill attribution wrong: %+v", r.fills)
	}
	if r.state.RemainingTarget != doc.Strategy.Params.TargetVolume-25 {
		t.Errorf("RemainingTarget = %d", r.state.RemainingTarget)
	}
}

func TestSubmitStrategyOrder_RejectionDoesNotFailRun(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	r, err := newRunner(RunSpec{Index: 0, Seed: 1, Doc: doc}, zap.NewNop())
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}

	// Zero quantity is rejected by the engine; the run keeps going.
	req := domain.OrderRequest{Side: domain.SideBuy, Type: domain.OrderTypeLimit, Price: 100, Quantity: 0}
	if err := r.submitStrategyOrder(req, 0); err != nil {
		t.Fatalf("rejection must be swallowed, got %v", err)
	}
	if r.state.Rejections != 1 {
		t.Fatalf("Rejections = %d, want 1", r.state.Rejections)
	}
	if r.state.Submissions != 0 {
		t.Fatalf("Submissions = %d, want 0", r.state.Submissions)
	}
}

func TestExecute_CancelledContextAborts(t *testing.T) {
	doc := parseDoc(t, baseDoc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Execute(ctx, RunSpec{Index: 0, Seed: 42, Doc: doc})
	if res.Status != domain.RunAborted {
		t.Errorf("expected aborted, got %s", res.Status)
	}
}

func TestExecute_RegimeSegmentsShiftFlow(t *testing.T) {
	doc := parseDoc(t, `
regime:
  name: shifting
  segments:
    - at_ms: 0
      volatility: 0.1
      drift: 0.9
    - at_ms: 1000
      volatility: 0.9
      drift: -0.9
volatility: 0.3
liquidity: medium
flow:
  steps: 2000
  start_price: 10000
strategy:
  type: twap
  params:
    side: buy
    target_volume: 60
    time_horizon_ms: 1500
    slices: 6
`)
	res := Execute(context.Background(), RunSpec{Index: 0, Seed: 3, Doc: doc})
	if res.Status != domain.RunDone {
		t.Fatalf("expected done, got %s (%s)", res.Status, res.Error)
	}
}
