package domain

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes limit orders, market orders, and cancellations.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeCancel OrderType = "cancel"
)

// Origin records which component produced an order event.
type Origin string

const (
	OriginGenerator Origin = "generator"
	OriginStrategy  Origin = "strategy"
)

// Order is a single event submitted to the matching engine. IDs are
// assigned by the run coordinator and are monotonic within a run.
// Quantity is the remaining quantity; only the matching engine
// decrements it, and an order with Quantity == 0 is complete.
type Order struct {
	ID        uint64
	Side      Side
	Type      OrderType
	Origin    Origin
	Price     int64 // ticks; 0 for market and cancel events
	Quantity  int64
	Timestamp int64  // logical time, microseconds from run start
	CancelID  uint64 // target order for cancel events
}

// OrderRequest is a strategy's instruction to submit an order. The run
// coordinator assigns the ID and timestamp before handing it to the
// matching engine.
type OrderRequest struct {
	Side     Side
	Type     OrderType
	Price    int64
	Quantity int64
}

// PriceLevel is an aggregated view of one price on one side of the book.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

// DepthSnapshot is a read-only top-N view of both sides of the book.
// Bids are ordered by price descending, asks ascending.
type DepthSnapshot struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// BestBid returns the highest bid price in the snapshot.
func (d DepthSnapshot) BestBid() (int64, bool) {
	if len(d.Bids) == 0 {
		return 0, false
	}
	return d.Bids[0].Price, true
}

// BestAsk returns the lowest ask price in the snapshot.
func (d DepthSnapshot) BestAsk() (int64, bool) {
	if len(d.Asks) == 0 {
		return 0, false
	}
	return d.Asks[0].Price, true
}
