package strategy

import "github.com/jialuechen/genmarket/internal/domain"

// TrailingStop monitors the best price on its exit side and keeps a
// watermark: the highest price seen for a long exit (sell), the lowest
// for a short exit (buy). When price moves against the watermark by
// more than the trailing distance, or breaches the absolute stop level,
// it fires one market order for the full remaining quantity.
type TrailingStop struct {
	side     domain.Side // exit side: sell closes a long, buy closes a short
	trailing int64       // ticks; 0 disables the trailing trigger
	stop     int64       // absolute stop price; 0 disables
}

func (s *TrailingStop) OnTick(tick Tick) []domain.OrderRequest {
	st := tick.State
	if st.Triggered || st.RemainingTarget <= 0 {
		return nil
	}

	best, ok := s.exitPrice(tick.Depth)
	if !ok {
		return nil
	}

	if st.Watermark == 0 {
		st.Watermark = best
	}
	if s.side == domain.SideSell {
		if best > st.Watermark {
			st.Watermark = best
		}
		if !s.breachedLong(best, st.Watermark) {
			return nil
		}
	} else {
		if best < st.Watermark {
			st.Watermark = best
		}
		if !s.breachedShort(best, st.Watermark) {
			return nil
		}
	}

	st.Triggered = true
	return []domain.OrderRequest{{
		Side:     s.side,
		Type:     domain.OrderTypeMarket,
		Quantity: st.RemainingTarget,
	}}
}

// exitPrice is the best price the exit order would trade against.
func (s *TrailingStop) exitPrice(depth domain.DepthSnapshot) (int64, bool) {
	if s.side == domain.SideSell {
		return depth.BestBid()
	}
	return depth.BestAsk()
}

// The trailing trigger is strict: a move of exactly the trailing
// distance is not a breach.
func (s *TrailingStop) breachedLong(best, watermark int64) bool {
	if s.trailing > 0 && best < watermark-s.trailing {
		return true
	}
	return s.stop > 0 && best <= s.stop
}

func (s *TrailingStop) breachedShort(best, watermark int64) bool {
	if s.trailing > 0 && best > watermark+s.trailing {
		return true
	}
	return s.stop > 0 && best >= s.stop
}
