// Package config parses and validates simulation configuration
// documents. A document may arrive from a file, an HTTP body, or an
// external text-to-config adapter; the same validation applies to all
// of them, before any run starts. Unknown fields are ignored.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jialuechen/genmarket/internal/domain"
)

// Document is one simulation configuration: a macro regime, the order
// flow parameters, the book settings, one strategy, and the batch shape.
type Document struct {
	Regime     RegimeConfig   `yaml:"regime"`
	Volatility float64        `yaml:"volatility" validate:"gte=0,lte=1"`
	Liquidity  string         `yaml:"liquidity" validate:"required,oneof=low medium high"`
	Drift      float64        `yaml:"drift" validate:"gte=-1,lte=1"`
	LOB        LOBConfig      `yaml:"lob"`
	Flow       FlowConfig     `yaml:"flow"`
	Strategy   StrategyConfig `yaml:"strategy"`
	Runs       int            `yaml:"runs" validate:"gte=0"`
	Seed       *int64         `yaml:"seed"`
	Seeds      []int64        `yaml:"seeds"`
	Workers    int            `yaml:"workers" validate:"gte=0"`
	TimeoutMS  int64          `yaml:"timeout_ms" validate:"gte=0"`
}

// RegimeConfig names the regime and optionally schedules parameter
// changes over the run. Without segments the top-level volatility,
// liquidity, and drift hold for the whole run.
type RegimeConfig struct {
	Name     string          `yaml:"name"`
	Segments []SegmentConfig `yaml:"segments" validate:"dive"`
}

// SegmentConfig is one piecewise-constant regime segment.
type SegmentConfig struct {
	AtMS       int64   `yaml:"at_ms" validate:"gte=0"`
	Volatility float64 `yaml:"volatility" validate:"gte=0,lte=1"`
	Liquidity  string  `yaml:"liquidity" validate:"omitempty,oneof=low medium high"`
	Drift      float64 `yaml:"drift" validate:"gte=-1,lte=1"`
}

// LOBConfig configures the book surface visible to strategies and the
// fixed per-event processing delay added before matching.
type LOBConfig struct {
	Levels    *int  `yaml:"levels" validate:"gte=1"`
	LatencyMS int64 `yaml:"latency_ms" validate:"gte=0"`
}

// FlowConfig configures the synthetic order flow generator. Pointer
// fields are defaulted only when absent: an explicit zero stays zero,
// it is never rewritten.
type FlowConfig struct {
	Steps          int      `yaml:"steps" validate:"required,gte=1"`
	StartPrice     int64    `yaml:"start_price" validate:"required,gte=1"`
	MeanIntervalMS *float64 `yaml:"mean_interval_ms" validate:"gte=0"`
	Window         *int     `yaml:"window" validate:"gte=1"`
	BaseSize       *float64 `yaml:"base_size" validate:"gte=0"`
	MarketRatio    *float64 `yaml:"market_ratio" validate:"gte=0,lte=1"`
	CancelRatio    *float64 `yaml:"cancel_ratio" validate:"gte=0,lte=1"`
}

// StrategyConfig selects one strategy variant and its parameters.
type StrategyConfig struct {
	Type   string         `yaml:"type" validate:"required,oneof=vwap twap trailing_stop"`
	Params StrategyParams `yaml:"params"`
}

// StrategyParams is the union of all variant parameters; each variant
// validates the subset it needs.
type StrategyParams struct {
	Side              string  `yaml:"side" validate:"required,oneof=buy sell"`
	TargetVolume      int64   `yaml:"target_volume" validate:"required,gte=1"`
	TimeHorizonMS     int64   `yaml:"time_horizon_ms" validate:"required,gte=1"`
	Slices            *int    `yaml:"slices" validate:"gte=1"`
	ParticipationRate float64 `yaml:"participation_rate" validate:"gte=0,lte=1"`
	TrailingDistance  int64   `yaml:"trailing_distance" validate:"gte=0"`
	StopPrice         int64   `yaml:"stop_price" validate:"gte=0"`
}

var validate = validator.New()

// Parse decodes a YAML (or JSON) configuration document, applies
// defaults, and validates it. It fails fast: any error surfaces before
// a run starts, and the document is never partially applied.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("malformed document: %v", err)}
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// applyDefaults fills absent optional fields with their defaults.
// Explicitly written values, zero included, are never rewritten;
// required fields are left untouched so validation catches them.
func (d *Document) applyDefaults() {
	if d.LOB.Levels == nil {
		d.LOB.Levels = ptr(10)
	}
	if d.Flow.MeanIntervalMS == nil {
		d.Flow.MeanIntervalMS = ptr(1.0)
	}
	if d.Flow.Window == nil {
		d.Flow.Window = ptr(16)
	}
	if d.Flow.BaseSize == nil {
		d.Flow.BaseSize = ptr(10.0)
	}
	if d.Flow.MarketRatio == nil {
		d.Flow.MarketRatio = ptr(0.1)
	}
	if d.Flow.CancelRatio == nil {
		d.Flow.CancelRatio = ptr(0.05)
	}
	if d.Runs == 0 && len(d.Seeds) == 0 {
		d.Runs = 1
	}
	if d.Seed == nil {
		d.Seed = ptr(int64(1))
	}
	if d.Workers == 0 {
		d.Workers = runtime.NumCPU()
	}
	if d.Strategy.Params.Slices == nil {
		d.Strategy.Params.Slices = ptr(10)
	}
}

func ptr[T any](v T) *T { return &v }

// Validate checks the document against field constraints and
// cross-field rules. It returns a domain.ValidationError naming the
// first offending field.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &domain.ValidationError{
				Field:   strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Document.")),
				Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
			}
		}
		return &domain.ValidationError{Message: err.Error()}
	}

	if d.Strategy.Type == "trailing_stop" &&
		d.Strategy.Params.TrailingDistance == 0 && d.Strategy.Params.StopPrice == 0 {
		return &domain.ValidationError{
			Field:   "strategy.params",
			Message: "trailing_stop requires trailing_distance or stop_price",
		}
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

// RunSeeds returns the explicit seed list when given, otherwise seeds
// derived from the base seed for the configured run count.
func (d *Document) RunSeeds() []int64 {
	if len(d.Seeds) > 0 {
		return d.Seeds
	}
	seeds := make([]int64, d.Runs)
	for i := range seeds {
		seeds[i] = *d.Seed + int64(i)
	}
	return seeds
}

// LiquidityClass converts the document field to the domain enum.
func LiquidityClass(s string) domain.Liquidity {
	switch s {
	case "low":
		return domain.LiquidityLow
	case "high":
		return domain.LiquidityHigh
	default:
		return domain.LiquidityMedium
	}
}
