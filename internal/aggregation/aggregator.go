package aggregation

import (
	"sort"
	"sync"

	"github.com/navid-fn/footprint/internal/models"
)

// DefaultMaxTrades caps the retained trade buffer.
const DefaultMaxTrades = 200_000

// Aggregator keeps a capped trade buffer and its candle series up to date as
// trades arrive. Candles() always equals Aggregate(Trades(), params).
type Aggregator struct {
	mu        sync.Mutex
	b         builder
	maxTrades int

	trades  []models.Trade
	sides   []models.Side
	candles []models.FootprintCandle

	// closedThrough is the open time of the newest candle already reported closed.
	closedThrough int64
	hasClosed     bool
}

// NewAggregator creates an empty aggregator. maxTrades <= 0 uses DefaultMaxTrades.
func NewAggregator(p Params, maxTrades int) *Aggregator {
	if maxTrades <= 0 {
		maxTrades = DefaultMaxTrades
	}
	return &Aggregator{b: newBuilder(p), maxTrades: maxTrades}
}

// Params returns the normalized parameters in use.
func (a *Aggregator) Params() Params {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.b.p
}

// Reset replaces the buffer and recomputes the whole series.
func (a *Aggregator) Reset(trades []models.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trades = a.b.filter(trades)
	a.trim()
	a.hasClosed = false
	a.rebuild()
	a.markClosed()
}

// SetParams swaps the parameters and rebuilds from the retained trades.
func (a *Aggregator) SetParams(p Params) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.b = newBuilder(p)
	// Symbol filtering may differ; re-filter what is retained.
	a.trades = a.b.filter(a.trades)
	a.hasClosed = false
	a.rebuild()
	a.markClosed()
}

// Append merges new trades into the buffer and returns the candles that were
// closed by this batch, i.e. candles followed by a newer one for the first time.
func (a *Aggregator) Append(trades []models.Trade) []models.FootprintCandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	incoming := a.b.filter(trades)
	if len(incoming) == 0 {
		return nil
	}

	first := a.merge(incoming)
	if a.trim() || len(a.candles) == 0 {
		a.rebuild()
	} else {
		a.rebuildFrom(first)
	}
	return a.markClosed()
}

// Candles returns a copy of the current series.
func (a *Aggregator) Candles() []models.FootprintCandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.FootprintCandle(nil), a.candles...)
}

// Trades returns a copy of the retained trades in time order.
func (a *Aggregator) Trades() []models.Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Trade(nil), a.trades...)
}

// Len is the number of retained trades.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trades)
}

// merge inserts sorted incoming trades after existing trades of equal time
// and returns the index of the earliest inserted trade.
func (a *Aggregator) merge(incoming []models.Trade) int {
	n := len(a.trades)
	if n == 0 || incoming[0].TimestampMs >= a.trades[n-1].TimestampMs {
		a.trades = append(a.trades, incoming...)
		return n
	}
	first := sort.Search(n, func(i int) bool {
		return a.trades[i].TimestampMs > incoming[0].TimestampMs
	})
	merged := make([]models.Trade, 0, n+len(incoming))
	merged = append(merged, a.trades[:first]...)
	i, j := first, 0
	for i < n && j < len(incoming) {
		if incoming[j].TimestampMs < a.trades[i].TimestampMs {
			merged = append(merged, incoming[j])
			j++
		} else {
			merged = append(merged, a.trades[i])
			i++
		}
	}
	merged = append(merged, a.trades[i:]...)
	merged = append(merged, incoming[j:]...)
	a.trades = merged
	return first
}

// trim drops the oldest trades beyond the cap and reports whether it did.
func (a *Aggregator) trim() bool {
	over := len(a.trades) - a.maxTrades
	if over <= 0 {
		return false
	}
	a.trades = append([]models.Trade(nil), a.trades[over:]...)
	return true
}

func (a *Aggregator) rebuild() {
	a.sides = classify(a.trades, nil, models.SideUnknown)
	a.candles = a.b.candles(a.trades, a.sides, nil)
}

// rebuildFrom recomputes candles starting at the bucket that holds trade
// index first. Everything before the last traded candle preceding that bucket
// is kept as is.
func (a *Aggregator) rebuildFrom(first int) {
	key := a.b.bucket(a.trades[first].TimestampMs)

	keep := -1
	for i := len(a.candles) - 1; i >= 0; i-- {
		c := a.candles[i]
		if c.OpenTime < key && !c.Empty {
			keep = i
			break
		}
	}
	if keep < 0 {
		a.rebuild()
		return
	}

	boundary := a.candles[keep].OpenTime + a.b.interval
	start := sort.Search(len(a.trades), func(i int) bool {
		return a.trades[i].TimestampMs >= boundary
	})

	prevTrade := a.trades[start-1]
	tail := classify(a.trades[start:], &prevTrade, a.sides[start-1])
	a.sides = append(a.sides[:start:start], tail...)

	prev := a.candles[keep]
	fresh := a.b.candles(a.trades[start:], a.sides[start:], &prev)
	a.candles = append(a.candles[:keep+1:keep+1], fresh...)
}

func (a *Aggregator) markClosed() []models.FootprintCandle {
	var closed []models.FootprintCandle
	for i := 0; i < len(a.candles)-1; i++ {
		c := a.candles[i]
		if c.Empty || (a.hasClosed && c.OpenTime <= a.closedThrough) {
			continue
		}
		closed = append(closed, c)
		a.closedThrough = c.OpenTime
		a.hasClosed = true
	}
	return closed
}
