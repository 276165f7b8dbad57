package engine

import (
	"github.com/google/btree"

	"github.com/jialuechen/genmarket/internal/domain"
)

// bookEntry is a single order resting on the book. Seq is the arrival
// sequence assigned when the order rests, which gives strict FIFO
// ordering among orders at the same price.
type bookEntry struct {
	Price int64
	Seq   uint64
	Order *domain.Order
}

// bidLess orders the bid side: price descending, then arrival sequence
// ascending. Min() returns the best bid (highest price, earliest arrival).
func bidLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// askLess orders the ask side: price ascending, then arrival sequence
// ascending. Min() returns the best ask (lowest price, earliest arrival).
func askLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// OrderBook maintains the bid and ask sides for one run using B-trees
// with a secondary index for removal by order ID.
//
// The book is exclusively owned by one run for its whole lifetime and
// is not safe for concurrent use.
type OrderBook struct {
	bids  *btree.BTreeG[bookEntry]
	asks  *btree.BTreeG[bookEntry]
	index map[uint64]bookEntry // order ID → entry
	seq   uint64
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	const degree = 32
	return &OrderBook{
		bids:  btree.NewG[bookEntry](degree, bidLess),
		asks:  btree.NewG[bookEntry](degree, askLess),
		index: make(map[uint64]bookEntry),
	}
}

// Rest places an order on its side of the book, assigning the next
// arrival sequence.
func (ob *OrderBook) Rest(o *domain.Order) {
	ob.seq++
	entry := bookEntry{Price: o.Price, Seq: ob.seq, Order: o}
	if o.Side == domain.SideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.ID] = entry
}

// Remove deletes an order from the book by ID. It reports whether the
// order was present.
func (ob *OrderBook) Remove(orderID uint64) bool {
	entry, ok := ob.index[orderID]
	if !ok {
		return false
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.SideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
	return true
}

// BestBid returns the highest-priority bid (highest price, earliest arrival).
func (ob *OrderBook) BestBid() (bookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest arrival).
func (ob *OrderBook) BestAsk() (bookEntry, bool) {
	return ob.asks.Min()
}

// BestBidPrice returns the best bid price, if any bid rests.
func (ob *OrderBook) BestBidPrice() (int64, bool) {
	entry, ok := ob.bids.Min()
	return entry.Price, ok
}

// BestAskPrice returns the best ask price, if any ask rests.
func (ob *OrderBook) BestAskPrice() (int64, bool) {
	entry, ok := ob.asks.Min()
	return entry.Price, ok
}

// Mid returns the midpoint of the best bid and ask, rounded down.
func (ob *OrderBook) Mid() (int64, bool) {
	bid, okB := ob.BestBidPrice()
	ask, okA := ob.BestAskPrice()
	if !okB || !okA {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Depth returns up to n aggregated price levels per side. Bids are
// ordered by price descending, asks ascending.
func (ob *OrderBook) Depth(n int) domain.DepthSnapshot {
	return domain.DepthSnapshot{
		Bids: topLevels(ob.bids, n),
		Asks: topLevels(ob.asks, n),
	}
}

// topLevels iterates a side in priority order and aggregates entries
// into at most n price levels.
func topLevels(tree *btree.BTreeG[bookEntry], n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]domain.PriceLevel, 0, n)
	tree.Ascend(func(entry bookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].Quantity += entry.Order.Quantity
			levels[len(levels)-1].Orders++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, domain.PriceLevel{
			Price:    entry.Price,
			Quantity: entry.Order.Quantity,
			Orders:   1,
		})
		return true
	})
	return levels
}

// walk iterates one side in priority order. The callback returns true
// to continue.
func (ob *OrderBook) walk(side domain.Side, fn func(bookEntry) bool) {
	if side == domain.SideBuy {
		ob.bids.Ascend(fn)
	} else {
		ob.asks.Ascend(fn)
	}
}

// BidCount returns the number of resting bid orders.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of resting ask orders.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}
