package render

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the number of decimals needed to print multiples of step.
func PriceDecimals(step float64) int32 {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 2
	}
	d := decimal.NewFromFloat(step)
	if exp := d.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}

// FormatPrice prints price with the precision of step.
func FormatPrice(price, step float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return ""
	}
	return decimal.NewFromFloat(price).StringFixed(PriceDecimals(step))
}

// FormatVolume abbreviates large volumes: 1234 -> 1.2K, 2500000 -> 2.5M.
func FormatVolume(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return trimFloat(v/1e6, 1) + "M"
	case abs >= 1e4:
		return trimFloat(v/1e3, 0) + "K"
	case abs >= 1e3:
		return trimFloat(v/1e3, 1) + "K"
	case abs >= 100 || v == math.Trunc(v):
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	default:
		return trimFloat(v, 2)
	}
}

func trimFloat(v float64, prec int) string {
	return decimal.NewFromFloat(v).Round(int32(prec)).String()
}

// FormatTime prints an axis label. Day boundaries print the date.
func FormatTime(ms int64, intervalMs int64) string {
	t := time.UnixMilli(ms).UTC()
	if intervalMs >= 24*time.Hour.Milliseconds() || (t.Hour() == 0 && t.Minute() == 0) {
		return t.Format("Jan 02")
	}
	return t.Format("15:04")
}

// FormatCrosshairTime is the full readout shown in the time box.
func FormatCrosshairTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("Jan 02 15:04")
}
