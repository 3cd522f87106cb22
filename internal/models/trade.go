// Package models defines the domain models shared across the footprint chart.
package models

import "strings"

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

// ParseSide maps the side spellings used by trade feeds onto a Side.
// Anything unrecognised is SideUnknown.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "ask", "bought":
		return SideBuy
	case "sell", "s", "bid", "sold":
		return SideSell
	default:
		return SideUnknown
	}
}

// Trade is a single executed trade as delivered by the feed. Trades are never mutated
// once they leave the streaming client.
type Trade struct {
	// ID is the feed trade id, or a SHA1 of the trade fields when the feed has none.
	ID string `json:"id"`

	// Symbol is the instrument the trade belongs to (e.g. "EUR/USD").
	Symbol string `json:"symbol"`

	// TimestampMs is the execution time in Unix milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	// Price is the execution price.
	Price float64 `json:"price"`

	// Size is the traded quantity.
	Size float64 `json:"size"`

	// Side is the aggressor side, or SideUnknown when the feed does not carry it.
	Side Side `json:"side"`

	// Sequence is the feed sequence number, 0 when absent.
	Sequence int64 `json:"sequence,omitempty"`
}
