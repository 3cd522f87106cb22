package models

// ViewState is the transient camera over the candle series.
type ViewState struct {
	// ViewOffset is the fractional candle index at the left edge of the chart.
	ViewOffset float64 `json:"view_offset"`

	// ViewCount is the number of candles spanning the chart width.
	ViewCount float64 `json:"view_count"`

	// YDomain is the explicit [low, high] price range. Nil means auto-fit to
	// the visible candles.
	YDomain *[2]float64 `json:"y_domain"`
}

// WithYDomain returns a copy of v with an explicit price range.
func (v ViewState) WithYDomain(lo, hi float64) ViewState {
	v.YDomain = &[2]float64{lo, hi}
	return v
}

// Equal compares two view states including the price domain.
func (v ViewState) Equal(o ViewState) bool {
	if v.ViewOffset != o.ViewOffset || v.ViewCount != o.ViewCount {
		return false
	}
	if v.YDomain == nil || o.YDomain == nil {
		return v.YDomain == nil && o.YDomain == nil
	}
	return *v.YDomain == *o.YDomain
}

// ConnectionStatus is the state of the trade feed connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
)
