package models

// Imbalance marks a price level whose buy or sell volume dominates the other side.
type Imbalance string

const (
	ImbalanceNone Imbalance = "none"
	ImbalanceBuy  Imbalance = "buy"
	ImbalanceSell Imbalance = "sell"
)

// PriceLevel is the volume traded at one tick of the price grid inside a candle.
// TotalVolume is always BuyVolume + SellVolume.
type PriceLevel struct {
	Price       float64   `json:"price"`
	BuyVolume   float64   `json:"buy_volume"`
	SellVolume  float64   `json:"sell_volume"`
	TotalVolume float64   `json:"total_volume"`
	Imbalance   Imbalance `json:"imbalance"`
}

// Delta is buy volume minus sell volume at this level.
func (l PriceLevel) Delta() float64 {
	return l.BuyVolume - l.SellVolume
}

// FootprintCandle is one time bucket of trades with its per-price volume profile.
type FootprintCandle struct {
	// OpenTime is the bucket start in Unix milliseconds.
	OpenTime int64 `json:"open_time"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	// TotalVolume is the summed size of every trade in the bucket.
	TotalVolume float64 `json:"total_volume"`
	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`

	// Delta is BuyVolume - SellVolume.
	Delta float64 `json:"delta"`

	TradeCount int `json:"trade_count"`

	// VolumeProfile holds the populated price levels sorted by ascending price.
	VolumeProfile []PriceLevel `json:"volume_profile"`

	// POC lists every level price carrying the maximum total volume.
	POC []float64 `json:"poc"`

	ValueAreaHigh   float64 `json:"value_area_high"`
	ValueAreaLow    float64 `json:"value_area_low"`
	ValueAreaVolume float64 `json:"value_area_volume"`

	// Empty is set on synthesized candles for buckets without trades.
	Empty bool `json:"empty,omitempty"`
}

// Level returns the profile level at price, if the candle has one.
func (c *FootprintCandle) Level(price float64) (PriceLevel, bool) {
	lo, hi := 0, len(c.VolumeProfile)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.VolumeProfile[mid].Price < price {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(c.VolumeProfile) && c.VolumeProfile[lo].Price == price {
		return c.VolumeProfile[lo], true
	}
	return PriceLevel{}, false
}

// MaxLevelVolume is the largest total volume at any level of the candle.
func (c *FootprintCandle) MaxLevelVolume() float64 {
	var m float64
	for _, l := range c.VolumeProfile {
		if l.TotalVolume > m {
			m = l.TotalVolume
		}
	}
	return m
}

// PrimaryPOC is the POC price the value area is built around: the POC closest
// to the middle of the candle range, the lower one on ties.
func (c *FootprintCandle) PrimaryPOC() (float64, bool) {
	if len(c.POC) == 0 {
		return 0, false
	}
	mid := (c.High + c.Low) / 2
	best := c.POC[0]
	for _, p := range c.POC[1:] {
		if abs(p-mid) < abs(best-mid) {
			best = p
		}
	}
	return best, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
