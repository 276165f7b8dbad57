package gen

import (
	"math"
	"math/rand"

	"github.com/jialuechen/genmarket/internal/domain"
)

// restingCap bounds how many of its own resting orders the generator
// remembers as cancel candidates.
const restingCap = 64

// FlowParams configures the synthetic order flow for one run.
type FlowParams struct {
	Steps          int   // total events to emit
	StartPrice     int64 // ticks; reference before any history exists
	MeanIntervalUS int64 // mean inter-arrival time, microseconds
	Window         int   // autoregressive history length K
	BaseSize       float64
	MarketRatio    float64 // fraction of events that are market orders
	CancelRatio    float64 // probability of cancelling a resting order
}

// Generator is the autoregressive order flow generator. Given the
// current regime and its rolling window of recently emitted prices, it
// produces the next synthetic order event. It is deterministic for an
// explicit seed and is not restartable mid-stream: reproducing a run
// requires a fresh generator with the same seed.
type Generator struct {
	params  FlowParams
	rng     *rand.Rand
	step    int
	now     int64
	window  []int64 // ring of recent event prices
	wpos    int
	wcount  int
	resting []uint64 // own resting order IDs, cancel candidates
}

// NewGenerator creates a generator with explicit seed state. No global
// randomness is consulted anywhere.
func NewGenerator(params FlowParams, seed int64) *Generator {
	window := params.Window
	if window <= 0 {
		window = 1
	}
	return &Generator{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		window: make([]int64, window),
	}
}

// Done reports whether the configured step count is exhausted.
func (g *Generator) Done() bool {
	return g.step >= g.params.Steps
}

// LastStep is the zero-based step number of the most recently emitted
// event, matching the numbering used in GenerationError.
func (g *Generator) LastStep() int {
	return g.step - 1
}

// NextEvent produces the next order event. Arrival times are strictly
// increasing. The regime biases side selection by drift, scales price
// offsets by volatility, and scales sizes inversely with liquidity.
func (g *Generator) NextEvent(regime domain.RegimeSnapshot) (*domain.Order, error) {
	step := g.step
	g.step++

	g.now += 1 + int64(g.rng.ExpFloat64()*float64(g.params.MeanIntervalUS))

	// Occasionally cancel one of our own resting orders.
	if len(g.resting) > 0 && g.rng.Float64() < g.params.CancelRatio {
		i := g.rng.Intn(len(g.resting))
		id := g.resting[i]
		g.resting = append(g.resting[:i], g.resting[i+1:]...)
		return &domain.Order{
			Type:      domain.OrderTypeCancel,
			Origin:    domain.OriginGenerator,
			Timestamp: g.now,
			CancelID:  id,
		}, nil
	}

	side := domain.SideSell
	if g.rng.Float64() < buyProbability(regime.Drift) {
		side = domain.SideBuy
	}

	ref := g.referencePrice()
	offsetScale := math.Max(1, float64(g.params.StartPrice)*0.01)
	offset := int64(g.rng.NormFloat64() * regime.Volatility * offsetScale)
	price := ref + offset
	if price < 1 {
		price = 1
	}

	size := 1 + int64(g.rng.ExpFloat64()*g.params.BaseSize/regime.Liquidity.Factor())
	if size <= 0 {
		return nil, &domain.GenerationError{Step: step, Reason: "non-positive size"}
	}

	typ := domain.OrderTypeLimit
	if g.rng.Float64() < g.params.MarketRatio {
		typ = domain.OrderTypeMarket
		price = 0
	} else {
		g.observePrice(price)
	}

	return &domain.Order{
		Side:      side,
		Type:      typ,
		Origin:    domain.OriginGenerator,
		Price:     price,
		Quantity:  size,
		Timestamp: g.now,
	}, nil
}

// ObserveRested tells the generator that one of its limit orders rested
// on the book, making it a cancel candidate.
func (g *Generator) ObserveRested(orderID uint64) {
	if len(g.resting) >= restingCap {
		g.resting = g.resting[1:]
	}
	g.resting = append(g.resting, orderID)
}

// referencePrice is the mean of the rolling price window, or the start
// price before any history exists.
func (g *Generator) referencePrice() int64 {
	if g.wcount == 0 {
		return g.params.StartPrice
	}
	var sum int64
	for i := 0; i < g.wcount; i++ {
		sum += g.window[i]
	}
	return sum / int64(g.wcount)
}

func (g *Generator) observePrice(price int64) {
	g.window[g.wpos] = price
	g.wpos = (g.wpos + 1) % len(g.window)
	if g.wcount < len(g.window) {
		g.wcount++
	}
}

// buyProbability biases side selection by regime drift, clamped so both
// sides always remain reachable.
func buyProbability(drift float64) float64 {
	p := 0.5 + 0.3*drift
	if p < 0.05 {
		p = 0.05
	}
	if p > 0.95 {
		p = 0.95
	}
	return p
}
