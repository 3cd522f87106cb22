package stream

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/navid-fn/footprint/internal/models"
)

// Outbound control messages.
type subscribeMessage struct {
	Action string          `json:"action"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Symbols []string `json:"symbols"`
}

type pingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

const (
	actionSubscribe   = "subscribemulti"
	actionUnsubscribe = "unsubscribemulti"
)

// number decodes a JSON number or a numeric string.
type number struct {
	V   float64
	Set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	n.V, n.Set = v, true
	return nil
}

// wireTrade is the loosely typed feed payload.
type wireTrade struct {
	Type      string          `json:"type"`
	ID        json.RawMessage `json:"id"`
	Symbol    *string         `json:"symbol"`
	Price     number          `json:"price"`
	Size      number          `json:"size"`
	TradeSize number          `json:"trade_size"`
	Timestamp json.RawMessage `json:"timestamp"`
	Datetime  json.RawMessage `json:"datetime"`
	Sequence  number          `json:"sequence"`
	Side      string          `json:"side"`
}

// decoded is the result of parsing one websocket frame.
type decoded struct {
	trades  []models.Trade
	pong    bool
	dropped int
}

// decodeFrame validates a frame holding one object or an array of objects.
// Items without a symbol or price, or with unparseable fields, are dropped.
func decodeFrame(data []byte, now time.Time) decoded {
	var out decoded
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return out
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			out.dropped++
			return out
		}
	} else {
		items = []json.RawMessage{data}
	}

	for _, raw := range items {
		var w wireTrade
		if err := json.Unmarshal(raw, &w); err != nil {
			out.dropped++
			continue
		}
		switch strings.ToLower(w.Type) {
		case "pong":
			out.pong = true
			continue
		case "", "trade", "trades":
		default:
			// Acks and other control frames are not trades.
			if w.Symbol == nil || !w.Price.Set {
				continue
			}
		}
		t, ok := w.trade(now)
		if !ok {
			out.dropped++
			continue
		}
		out.trades = append(out.trades, t)
	}
	return out
}

func (w wireTrade) trade(now time.Time) (models.Trade, bool) {
	if w.Symbol == nil || strings.TrimSpace(*w.Symbol) == "" || !w.Price.Set {
		return models.Trade{}, false
	}
	size := w.Size
	if !size.Set {
		size = w.TradeSize
	}

	ts, ok := parseTimestamp(w.Timestamp)
	if !ok {
		ts, ok = parseTimestamp(w.Datetime)
	}
	if !ok {
		ts = now.UnixMilli()
	}

	t := models.Trade{
		Symbol:      strings.TrimSpace(*w.Symbol),
		TimestampMs: ts,
		Price:       w.Price.V,
		Size:        size.V,
		Side:        models.ParseSide(w.Side),
	}
	if w.Sequence.Set {
		t.Sequence = int64(w.Sequence.V)
	}
	t.ID = parseID(w.ID)
	if t.ID == "" {
		t.ID = generateTradeID(t)
	}
	return t, true
}

func parseID(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts epoch seconds, epoch milliseconds, or a date string.
func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n number
	if err := n.UnmarshalJSON(raw); err == nil && n.Set {
		return epochMillis(n.V), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// epochMillis treats values below 1e11 as seconds.
func epochMillis(v float64) int64 {
	if v < 1e11 {
		return int64(v * 1000)
	}
	return int64(v)
}

// generateTradeID derives a stable id for feeds that do not send one.
func generateTradeID(t models.Trade) string {
	unique := fmt.Sprintf("%s-%d-%f-%f-%s-%d", t.Symbol, t.TimestampMs, t.Price, t.Size, t.Side, t.Sequence)
	hash := sha1.Sum([]byte(unique))
	return hex.EncodeToString(hash[:])
}
