// Package gen produces the synthetic inputs for one run: the macro
// regime schedule and the autoregressive order flow derived from it.
package gen

import (
	"sort"

	"github.com/jialuechen/genmarket/internal/domain"
)

// Segment is one piece of a piecewise-constant regime schedule,
// effective from Start (logical microseconds) until the next segment.
type Segment struct {
	Start      int64
	Volatility float64
	Liquidity  domain.Liquidity
	Drift      float64
}

// RegimeSource supplies regime snapshots over simulation time. It is a
// pure data producer: a sorted segment list plus a cursor.
type RegimeSource struct {
	segments []Segment
	cursor   int
}

// NewRegimeSource builds a source from one or more segments. Segments
// are sorted by start time; the first segment is clamped to time zero.
func NewRegimeSource(segments []Segment) *RegimeSource {
	ss := make([]Segment, len(segments))
	copy(ss, segments)
	sort.Slice(ss, func(i, j int) bool { return ss[i].Start < ss[j].Start })
	if len(ss) > 0 {
		ss[0].Start = 0
	}
	return &RegimeSource{segments: ss}
}

// At returns the snapshot in effect at logical time t. Lookups must be
// monotonically non-decreasing in t; the cursor only moves forward.
func (s *RegimeSource) At(t int64) domain.RegimeSnapshot {
	for s.cursor+1 < len(s.segments) && s.segments[s.cursor+1].Start <= t {
		s.cursor++
	}
	seg := s.segments[s.cursor]
	return domain.RegimeSnapshot{
		Timestamp:  t,
		Volatility: seg.Volatility,
		Liquidity:  seg.Liquidity,
		Drift:      seg.Drift,
	}
}
