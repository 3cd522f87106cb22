package aggregation

import (
	"math"
	"sort"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/shopspring/decimal"
)

// Aggregate buckets trades into footprint candles ordered by open time.
// It has no hidden state: identical inputs give identical output.
// Trades that fail validation are dropped one by one; an empty input yields
// an empty series.
func Aggregate(trades []models.Trade, p Params) []models.FootprintCandle {
	b := newBuilder(p)
	valid := b.filter(trades)
	if len(valid) == 0 {
		return []models.FootprintCandle{}
	}
	sides := classify(valid, nil, models.SideUnknown)
	return b.candles(valid, sides, nil)
}

type builder struct {
	p        Params
	tick     decimal.Decimal
	interval int64
}

func newBuilder(p Params) builder {
	n := p.normalized()
	return builder{p: n, tick: n.tick(), interval: n.IntervalMs()}
}

// filter copies the acceptable trades and sorts them by time, keeping input
// order between equal timestamps.
func (b builder) filter(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if b.p.accepts(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out
}

func (b builder) bucket(ts int64) int64 {
	k := ts / b.interval
	if ts < 0 && ts%b.interval != 0 {
		k--
	}
	return k * b.interval
}

// tickIndex snaps a price to the nearest multiple of the effective tick.
func (b builder) tickIndex(price float64) int64 {
	return decimal.NewFromFloat(price).Div(b.tick).Round(0).IntPart()
}

func (b builder) price(idx int64) float64 {
	return decimal.NewFromInt(idx).Mul(b.tick).InexactFloat64()
}

// classify resolves unknown sides with the tick rule: an uptick is a buy, a
// downtick a sell, an unchanged price repeats the previous side, and the very
// first trade counts as a buy. prev is the trade preceding trades[0], if any.
func classify(trades []models.Trade, prev *models.Trade, prevSide models.Side) []models.Side {
	sides := make([]models.Side, len(trades))
	havePrev := prev != nil
	var lastPrice float64
	if havePrev {
		lastPrice = prev.Price
	}
	last := prevSide
	for i, t := range trades {
		side := t.Side
		if side != models.SideBuy && side != models.SideSell {
			switch {
			case !havePrev:
				side = models.SideBuy
			case t.Price > lastPrice:
				side = models.SideBuy
			case t.Price < lastPrice:
				side = models.SideSell
			default:
				side = last
				if side != models.SideBuy && side != models.SideSell {
					side = models.SideBuy
				}
			}
		}
		sides[i] = side
		last = side
		lastPrice = t.Price
		havePrev = true
	}
	return sides
}

// candles builds the series for sorted, classified trades. prev is the last
// traded candle before trades[0] and only seeds gap filling.
func (b builder) candles(trades []models.Trade, sides []models.Side, prev *models.FootprintCandle) []models.FootprintCandle {
	var out []models.FootprintCandle
	for start := 0; start < len(trades); {
		key := b.bucket(trades[start].TimestampMs)
		end := start + 1
		for end < len(trades) && b.bucket(trades[end].TimestampMs) == key {
			end++
		}
		if b.p.FillGaps && prev != nil {
			out = append(out, b.gap(*prev, key)...)
		}
		c := b.candle(key, trades[start:end], sides[start:end])
		out = append(out, c)
		prev = &out[len(out)-1]
		start = end
	}
	if out == nil {
		out = []models.FootprintCandle{}
	}
	return out
}

// gap returns empty candles for the buckets strictly between prev and next.
func (b builder) gap(prev models.FootprintCandle, next int64) []models.FootprintCandle {
	missing := (next-prev.OpenTime)/b.interval - 1
	if missing <= 0 || missing > MaxGapFill {
		return nil
	}
	out := make([]models.FootprintCandle, 0, missing)
	for ts := prev.OpenTime + b.interval; ts < next; ts += b.interval {
		out = append(out, models.FootprintCandle{
			OpenTime:      ts,
			Open:          prev.Close,
			High:          prev.Close,
			Low:           prev.Close,
			Close:         prev.Close,
			ValueAreaHigh: prev.Close,
			ValueAreaLow:  prev.Close,
			Empty:         true,
		})
	}
	return out
}

type level struct {
	idx       int64
	buy, sell float64
}

func (b builder) candle(openTime int64, trades []models.Trade, sides []models.Side) models.FootprintCandle {
	c := models.FootprintCandle{
		OpenTime: openTime,
		Open:     trades[0].Price,
		High:     trades[0].Price,
		Low:      trades[0].Price,
		Close:    trades[len(trades)-1].Price,
	}

	byIdx := make(map[int64]*level)
	for i, t := range trades {
		c.High = math.Max(c.High, t.Price)
		c.Low = math.Min(c.Low, t.Price)
		c.TradeCount++

		idx := b.tickIndex(t.Price)
		lv, ok := byIdx[idx]
		if !ok {
			lv = &level{idx: idx}
			byIdx[idx] = lv
		}
		if sides[i] == models.SideSell {
			lv.sell += t.Size
			c.SellVolume += t.Size
		} else {
			lv.buy += t.Size
			c.BuyVolume += t.Size
		}
	}

	levels := make([]*level, 0, len(byIdx))
	for _, lv := range byIdx {
		levels = append(levels, lv)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].idx < levels[j].idx })

	c.VolumeProfile = make([]models.PriceLevel, len(levels))
	maxVol := -1.0
	for i, lv := range levels {
		pl := models.PriceLevel{
			Price:       b.price(lv.idx),
			BuyVolume:   lv.buy,
			SellVolume:  lv.sell,
			TotalVolume: lv.buy + lv.sell,
		}
		pl.Imbalance = imbalance(pl, b.p.ImbalanceRatio, b.p.ImbalanceMinVolume)
		c.VolumeProfile[i] = pl
		c.TotalVolume += pl.TotalVolume
		if pl.TotalVolume > maxVol {
			maxVol = pl.TotalVolume
		}
	}
	c.Delta = c.BuyVolume - c.SellVolume

	for _, pl := range c.VolumeProfile {
		if pl.TotalVolume == maxVol {
			c.POC = append(c.POC, pl.Price)
		}
	}

	b.valueArea(&c, levels)
	return c
}

func imbalance(pl models.PriceLevel, ratio, minVolume float64) models.Imbalance {
	if pl.TotalVolume < minVolume {
		return models.ImbalanceNone
	}
	switch {
	case pl.BuyVolume/math.Max(pl.SellVolume, 1) >= ratio:
		return models.ImbalanceBuy
	case pl.SellVolume/math.Max(pl.BuyVolume, 1) >= ratio:
		return models.ImbalanceSell
	}
	return models.ImbalanceNone
}

// valueArea finds the shortest contiguous run of ticks containing the primary
// POC whose volume reaches ValueAreaPercent of the candle total. Ticks inside
// [low, high] with no trades count as zero volume. Among equally short runs
// the one with more volume wins, then the one most centred on the POC.
func (b builder) valueArea(c *models.FootprintCandle, levels []*level) {
	poc, ok := c.PrimaryPOC()
	if !ok {
		return
	}
	lo, hi := levels[0].idx, levels[len(levels)-1].idx

	var vols []float64
	var prices []float64
	pocPos := 0
	if hi-lo+1 <= maxDenseTicks {
		vols = make([]float64, hi-lo+1)
		for _, lv := range levels {
			vols[lv.idx-lo] = lv.buy + lv.sell
		}
		pocPos = int(b.tickIndex(poc) - lo)
	} else {
		// Pathological spread: fall back to the populated levels only.
		vols = make([]float64, len(levels))
		prices = make([]float64, len(levels))
		for i, lv := range levels {
			vols[i] = lv.buy + lv.sell
			prices[i] = b.price(lv.idx)
			if prices[i] == poc {
				pocPos = i
			}
		}
	}

	prefix := make([]float64, len(vols)+1)
	for i, v := range vols {
		prefix[i+1] = prefix[i] + v
	}
	target := c.TotalVolume * b.p.ValueAreaPercent / 100
	eps := c.TotalVolume * 1e-12

	bestL, bestR := 0, len(vols)-1
	bestSum := prefix[len(vols)]
	r := pocPos
	for l := pocPos; l >= 0; l-- {
		// Shrink r while the window starting at l still reaches the target.
		if r < pocPos {
			r = pocPos
		}
		for r > pocPos && prefix[r]-prefix[l] >= target-eps {
			r--
		}
		for r < len(vols) && prefix[r+1]-prefix[l] < target-eps {
			r++
		}
		if r >= len(vols) {
			continue
		}
		sum := prefix[r+1] - prefix[l]
		if better(l, r, sum, bestL, bestR, bestSum, pocPos) {
			bestL, bestR, bestSum = l, r, sum
		}
	}

	if prices == nil {
		c.ValueAreaLow = b.price(lo + int64(bestL))
		c.ValueAreaHigh = b.price(lo + int64(bestR))
	} else {
		c.ValueAreaLow = prices[bestL]
		c.ValueAreaHigh = prices[bestR]
	}
	c.ValueAreaVolume = bestSum
}

func better(l, r int, sum float64, bl, br int, bsum float64, poc int) bool {
	if w, bw := r-l, br-bl; w != bw {
		return w < bw
	}
	if sum != bsum {
		return sum > bsum
	}
	skew := func(a, b int) int {
		d := (poc - a) - (b - poc)
		if d < 0 {
			return -d
		}
		return d
	}
	return skew(l, r) < skew(bl, br)
}
