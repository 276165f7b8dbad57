package domain

// Trade is the immutable result of one match. Price is always the
// resting (maker) order's price. Trades are append-only for the run.
type Trade struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	Timestamp    int64  `json:"timestamp"`
}
