package engine

import (
	"fmt"

	"github.com/jialuechen/genmarket/internal/domain"
)

// MatchResult describes what happened to one submitted order.
type MatchResult struct {
	Trades []domain.Trade
	// Rested reports whether a remainder was placed on the book.
	Rested bool
	// UnfilledQuantity is the market-order remainder that found no
	// liquidity. It is dropped, never rested.
	UnfilledQuantity int64
}

// Engine owns one order book for one run and applies the matching
// algorithm: price priority first, strict FIFO time priority second.
// Matching executes at the resting (maker) order's price.
//
// The engine is synchronous and single-threaded: each run owns its
// engine exclusively, so no locking is needed.
type Engine struct {
	book   *OrderBook
	trades []domain.Trade
}

// New creates an engine with an empty book.
func New() *Engine {
	return &Engine{book: NewOrderBook()}
}

// Trades returns the append-only trade log for the run.
func (e *Engine) Trades() []domain.Trade {
	return e.trades
}

// Depth returns a read-only top-n snapshot of both sides.
func (e *Engine) Depth(n int) domain.DepthSnapshot {
	return e.book.Depth(n)
}

// BestBid returns the best bid price, if any.
func (e *Engine) BestBid() (int64, bool) { return e.book.BestBidPrice() }

// BestAsk returns the best ask price, if any.
func (e *Engine) BestAsk() (int64, bool) { return e.book.BestAskPrice() }

// Mid returns the current midpoint price, if both sides rest.
func (e *Engine) Mid() (int64, bool) { return e.book.Mid() }

// Submit applies one order to the book. Limit orders match against the
// opposite side while price compatibility holds and rest any remainder.
// Market orders match until filled or the opposite side is empty; an
// unfilled remainder is dropped and reported on the result.
//
// Matching always runs before resting, so an incoming order that would
// cross the book is matched away, never left crossed.
func (e *Engine) Submit(o *domain.Order) (MatchResult, error) {
	if o.Quantity <= 0 {
		return MatchResult{}, fmt.Errorf("%w: non-positive quantity %d", domain.ErrRejectedOrder, o.Quantity)
	}

	var res MatchResult
	switch o.Type {
	case domain.OrderTypeLimit:
		if o.Price <= 0 {
			return MatchResult{}, fmt.Errorf("%w: non-positive limit price %d", domain.ErrRejectedOrder, o.Price)
		}
		res = e.matchLimit(o)
	case domain.OrderTypeMarket:
		res = e.matchMarket(o)
	default:
		return MatchResult{}, fmt.Errorf("%w: type %q is not matchable", domain.ErrRejectedOrder, o.Type)
	}

	if err := e.checkUncrossed(); err != nil {
		return res, err
	}
	return res, nil
}

// matchLimit runs the match loop for a limit order: while the incoming
// price is compatible with the best opposite price, fill against it in
// FIFO order; on exhaustion, rest the remainder.
func (e *Engine) matchLimit(o *domain.Order) MatchResult {
	var res MatchResult
	for o.Quantity > 0 {
		best, found := e.bestOpposite(o.Side)
		if !found {
			break
		}
		if !compatible(o.Side, o.Price, best.Price) {
			break
		}
		res.Trades = append(res.Trades, e.fill(o, best))
	}
	if o.Quantity > 0 {
		e.book.Rest(o)
		res.Rested = true
	}
	return res
}

// matchMarket fills a market order against the best available opposite
// prices. Any remainder is dropped (IOC semantics), never rested.
func (e *Engine) matchMarket(o *domain.Order) MatchResult {
	var res MatchResult
	for o.Quantity > 0 {
		best, found := e.bestOpposite(o.Side)
		if !found {
			break
		}
		res.Trades = append(res.Trades, e.fill(o, best))
	}
	if o.Quantity > 0 {
		res.UnfilledQuantity = o.Quantity
		o.Quantity = 0
	}
	return res
}

// fill executes one match between the incoming taker and the best
// resting maker at the maker's price, decrementing both quantities and
// removing the maker when complete.
func (e *Engine) fill(taker *domain.Order, maker bookEntry) domain.Trade {
	resting := maker.Order
	qty := taker.Quantity
	if resting.Quantity < qty {
		qty = resting.Quantity
	}

	taker.Quantity -= qty
	resting.Quantity -= qty

	trade := domain.Trade{
		MakerOrderID: resting.ID,
		TakerOrderID: taker.ID,
		Price:        resting.Price,
		Quantity:     qty,
		Timestamp:    taker.Timestamp,
	}
	e.trades = append(e.trades, trade)

	if resting.Quantity == 0 {
		e.book.Remove(resting.ID)
	}
	return trade
}

// bestOpposite returns the highest-priority entry on the side opposite
// the incoming order.
func (e *Engine) bestOpposite(incoming domain.Side) (bookEntry, bool) {
	if incoming == domain.SideBuy {
		return e.book.BestAsk()
	}
	return e.book.BestBid()
}

// compatible reports whether an incoming limit price crosses the best
// opposite price: buy price ≥ best ask, or sell price ≤ best bid.
func compatible(side domain.Side, price, opposite int64) bool {
	if side == domain.SideBuy {
		return price >= opposite
	}
	return price <= opposite
}

// Cancel removes a resting order from the book. It returns
// ErrOrderNotFound when the order is absent, which callers treat as a
// benign race with a fill.
func (e *Engine) Cancel(orderID uint64) error {
	entry, ok := e.book.index[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	entry.Order.Quantity = 0
	e.book.Remove(orderID)
	return nil
}

// checkUncrossed verifies that the book is not crossed after matching
// settles. A crossed book here indicates a matching defect and is fatal
// to the run.
func (e *Engine) checkUncrossed() error {
	bid, okB := e.book.BestBidPrice()
	ask, okA := e.book.BestAskPrice()
	if okB && okA && bid >= ask {
		return &domain.InvariantViolation{
			Detail: fmt.Sprintf("book crossed after settle: best bid %d >= best ask %d", bid, ask),
		}
	}
	return nil
}

// Verify recomputes per-level quantities from resting orders and checks
// that every level's total equals the sum of its orders' quantities and
// that no order rests with non-positive quantity. It is used by tests
// and debug builds; failures are InvariantViolations.
func (e *Engine) Verify() error {
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		var bad error
		e.book.walk(side, func(entry bookEntry) bool {
			if entry.Order.Quantity <= 0 {
				bad = &domain.InvariantViolation{
					Detail: fmt.Sprintf("order %d rests with quantity %d", entry.Order.ID, entry.Order.Quantity),
				}
				return false
			}
			if entry.Order.Price != entry.Price {
				bad = &domain.InvariantViolation{
					Detail: fmt.Sprintf("order %d price %d disagrees with level %d", entry.Order.ID, entry.Order.Price, entry.Price),
				}
				return false
			}
			return true
		})
		if bad != nil {
			return bad
		}
	}
	return e.checkUncrossed()
}
