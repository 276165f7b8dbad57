package strategy

import "github.com/jialuechen/genmarket/internal/domain"

// TWAP slices the target into equal parts across fixed time intervals,
// independent of observed volume. Earlier slices absorb the division
// remainder so the schedule sums exactly to the target.
type TWAP struct {
	side   domain.Side
	target int64
	slices int
}

func (t *TWAP) OnTick(tick Tick) []domain.OrderRequest {
	st := tick.State
	if st.RemainingTarget <= 0 || st.ElapsedSlices >= t.slices {
		return nil
	}

	price, ok := childPrice(t.side, tick.Depth)
	if !ok {
		return nil
	}

	qty := t.target / int64(t.slices)
	if int64(st.ElapsedSlices) < t.target%int64(t.slices) {
		qty++
	}
	if qty > st.RemainingTarget {
		qty = st.RemainingTarget
	}
	if st.ElapsedSlices == t.slices-1 {
		qty = st.RemainingTarget
	}
	if qty <= 0 {
		return nil
	}

	return []domain.OrderRequest{{
		Side:     t.side,
		Type:     domain.OrderTypeLimit,
		Price:    price,
		Quantity: qty,
	}}
}
