// Package aggregation turns raw trades into footprint candles: time buckets
// whose bodies are per-price volume profiles with POC, value area, and
// imbalance markers.
package aggregation

import (
	"math"
	"strings"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseTickSize       = 0.0001
	DefaultImbalanceRatio     = 3.0
	DefaultImbalanceMinVolume = 1.0
	DefaultValueAreaPercent   = 70.0

	// MaxGapFill is the longest run of empty buckets synthesized between two
	// traded candles. Longer gaps are left as a discontinuity.
	MaxGapFill = 1440

	// maxDenseTicks bounds the tick grid scanned for the value area of one candle.
	maxDenseTicks = 1 << 20
)

// Params configures one aggregation run.
type Params struct {
	// Symbol restricts aggregation to one instrument. Empty accepts every trade.
	Symbol string

	TimeframeMinutes int
	BaseTickSize     float64
	TickMultiplier   int

	ImbalanceRatio     float64
	ImbalanceMinVolume float64
	ValueAreaPercent   float64

	// FillGaps synthesizes empty candles for buckets without trades.
	FillGaps bool
}

// ParamsFromSettings derives aggregation parameters from chart settings.
func ParamsFromSettings(s models.Settings, baseTick float64) Params {
	return Params{
		Symbol:             s.Instrument,
		TimeframeMinutes:   s.TimeframeMinutes,
		BaseTickSize:       baseTick,
		TickMultiplier:     s.TickMultiplier,
		ImbalanceRatio:     s.ImbalanceRatio,
		ImbalanceMinVolume: s.ImbalanceMinVolume,
		ValueAreaPercent:   s.ValueAreaPercent,
		FillGaps:           true,
	}
}

// normalized replaces unusable values with defaults.
func (p Params) normalized() Params {
	if p.TimeframeMinutes <= 0 {
		p.TimeframeMinutes = 1
	}
	if p.BaseTickSize <= 0 || !isFinite(p.BaseTickSize) {
		p.BaseTickSize = DefaultBaseTickSize
	}
	if p.TickMultiplier <= 0 {
		p.TickMultiplier = 1
	}
	if p.ImbalanceRatio <= 0 || !isFinite(p.ImbalanceRatio) {
		p.ImbalanceRatio = DefaultImbalanceRatio
	}
	if p.ImbalanceMinVolume < 0 || !isFinite(p.ImbalanceMinVolume) {
		p.ImbalanceMinVolume = 0
	}
	if p.ValueAreaPercent <= 0 || p.ValueAreaPercent > 100 || !isFinite(p.ValueAreaPercent) {
		p.ValueAreaPercent = DefaultValueAreaPercent
	}
	return p
}

// IntervalMs is the bucket width in milliseconds.
func (p Params) IntervalMs() int64 {
	return int64(p.normalized().TimeframeMinutes) * 60_000
}

// EffectiveTickSize is BaseTickSize * TickMultiplier.
func (p Params) EffectiveTickSize() float64 {
	return p.tick().InexactFloat64()
}

func (p Params) tick() decimal.Decimal {
	n := p.normalized()
	return decimal.NewFromFloat(n.BaseTickSize).Mul(decimal.NewFromInt(int64(n.TickMultiplier)))
}

func (p Params) accepts(t models.Trade) bool {
	if p.Symbol != "" && !strings.EqualFold(p.Symbol, t.Symbol) {
		return false
	}
	if !isFinite(t.Price) || t.Price <= 0 {
		return false
	}
	if !isFinite(t.Size) || t.Size <= 0 {
		return false
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
