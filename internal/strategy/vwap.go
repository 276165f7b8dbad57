package strategy

import "github.com/jialuechen/genmarket/internal/domain"

// VWAP slices the remaining target proportionally to the volume
// participation observed so far in the run: slices that see more market
// volume execute more, slices that see less execute less. Each child is
// a marketable limit order at or inside the current best price.
type VWAP struct {
	side          domain.Side
	target        int64
	slices        int
	participation float64
}

func (v *VWAP) OnTick(tick Tick) []domain.OrderRequest {
	st := tick.State
	if st.RemainingTarget <= 0 || st.ElapsedSlices >= v.slices {
		return nil
	}

	price, ok := childPrice(v.side, tick.Depth)
	if !ok {
		return nil
	}

	slicesLeft := v.slices - st.ElapsedSlices
	base := ceilDiv(st.RemainingTarget, int64(slicesLeft))

	qty := int64(float64(base) * v.volumeWeight(tick))
	if v.participation > 0 && tick.SliceVolume > 0 {
		if cap := int64(v.participation * float64(tick.SliceVolume)); cap > 0 && qty > cap {
			qty = cap
		}
	}
	if st.ElapsedSlices == v.slices-1 {
		// Final slice takes whatever is left.
		qty = st.RemainingTarget
	}
	if qty > st.RemainingTarget {
		qty = st.RemainingTarget
	}
	if qty <= 0 {
		return nil
	}

	return []domain.OrderRequest{{
		Side:     v.side,
		Type:     domain.OrderTypeLimit,
		Price:    price,
		Quantity: qty,
	}}
}

// volumeWeight compares the volume seen in the current slice against
// the per-slice average so far. Before any volume is observed the
// schedule degrades to equal slices.
func (v *VWAP) volumeWeight(tick Tick) float64 {
	if tick.ObservedVolume <= 0 || tick.State.ElapsedSlices == 0 {
		return 1
	}
	avg := float64(tick.ObservedVolume) / float64(tick.State.ElapsedSlices+1)
	if avg <= 0 {
		return 1
	}
	w := float64(tick.SliceVolume) / avg
	// Clamp so one burst slice cannot blow through the schedule.
	if w > 2 {
		w = 2
	}
	if w < 0.25 {
		w = 0.25
	}
	return w
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
