package render

import (
	"errors"
	"math"
	"testing"

	"github.com/navid-fn/footprint/internal/models"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var testPalette = models.Palette{
	Background: "#000000",
	Buy:        "#00ff00",
	Sell:       "#ff0000",
	Up:         "#00aa00",
	Down:       "#aa0000",
	Imbalance:  "#ffa500",
	POC:        "#ffff00",
	ValueArea:  "#0000ff",
	Selection:  "#ffffff",
	Drawing:    "#2962ff",
}

func testCandles() []models.FootprintCandle {
	return []models.FootprintCandle{
		{
			OpenTime: 0, Open: 1.1585, High: 1.1586, Low: 1.1584, Close: 1.1586,
			TotalVolume: 23, BuyVolume: 15, SellVolume: 8, Delta: 7, TradeCount: 3,
			VolumeProfile: []models.PriceLevel{
				{Price: 1.1584, SellVolume: 8, TotalVolume: 8, Imbalance: models.ImbalanceSell},
				{Price: 1.1585, BuyVolume: 5, TotalVolume: 5, Imbalance: models.ImbalanceBuy},
				{Price: 1.1586, BuyVolume: 10, TotalVolume: 10, Imbalance: models.ImbalanceBuy},
			},
			POC: []float64{1.1586}, ValueAreaHigh: 1.1586, ValueAreaLow: 1.1584, ValueAreaVolume: 23,
		},
		{OpenTime: 60000, Open: 1.1586, High: 1.1586, Low: 1.1586, Close: 1.1586, Empty: true},
		{
			OpenTime: 120000, Open: 1.1587, High: 1.1588, Low: 1.1587, Close: 1.1588,
			TotalVolume: 10, BuyVolume: 5, SellVolume: 5, TradeCount: 4,
			VolumeProfile: []models.PriceLevel{
				{Price: 1.1587, BuyVolume: 2, SellVolume: 4, TotalVolume: 6, Imbalance: models.ImbalanceNone},
				{Price: 1.1588, BuyVolume: 3, SellVolume: 1, TotalVolume: 4, Imbalance: models.ImbalanceNone},
			},
			POC: []float64{1.1587}, ValueAreaHigh: 1.1588, ValueAreaLow: 1.1587, ValueAreaVolume: 10,
		},
	}
}

// testFrame has a 500x400 chart area, 100px columns and 40px tick rows.
func testFrame(chartType models.ChartType) *Frame {
	candles := testCandles()
	layout := NewLayout(560, 424)
	settings := models.DefaultSettings()
	settings.ChartType = chartType
	return &Frame{
		Layout:     layout,
		X:          layout.IndexScale(0, 5),
		Y:          layout.PriceScale(1.1580, 1.1590),
		Candles:    candles,
		StartIndex: 0,
		Total:      len(candles),
		Last:       &candles[len(candles)-1],
		OriginMs:   0,
		IntervalMs: 60000,
		TickSize:   0.0001,
		Settings:   settings,
		Theme:      models.Theme{ID: "test", Colors: testPalette},
	}
}

func sameRGB(a, b drawing.Color) bool {
	return a.R == b.R && a.G == b.G && a.B == b.B
}

// filledIn returns filled rects of color c whose left edge is in [x0, x1).
func filledIn(ops []Op, x0, x1 float64, c drawing.Color) []Op {
	var out []Op
	for _, op := range ops {
		if op.Kind == OpRect && op.Style.Fill.A > 0 && sameRGB(op.Style.Fill, c) && op.X >= x0 && op.X < x1 {
			out = append(out, op)
		}
	}
	return out
}

func texts(ops []Op) []string {
	var out []string
	for _, op := range ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

func TestRasterClearsEveryFrame(t *testing.T) {
	rec := NewRecorder(560, 424, 2)
	r := NewRasterRenderer()
	f := testFrame(models.ChartBidAsk)
	for i := 0; i < 3; i++ {
		if err := r.Render(rec, f); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
	}
	if rec.Clears() != 3 {
		t.Errorf("Expected 3 clears, got %d", rec.Clears())
	}
	if !sameRGB(rec.Background(), ParseColor("#000000")) {
		t.Errorf("Expected theme background, got %+v", rec.Background())
	}
	first := len(rec.Ops())
	_ = r.Render(rec, f)
	if got := len(rec.Ops()); got != first {
		t.Errorf("Expected a full repaint of %d ops, got %d", first, got)
	}
}

func TestRasterBidAskCells(t *testing.T) {
	rec := NewRecorder(560, 424, 1)
	f := testFrame(models.ChartBidAsk)
	if err := NewRasterRenderer().Render(rec, f); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	ops := rec.Ops()
	sell := ParseColor(testPalette.Sell)
	buy := ParseColor(testPalette.Buy)

	// Level 1.1587 of the third candle has both sides.
	top, _ := f.row(1.1587)
	var sellCell, buyCell *Op
	for _, op := range filledIn(ops, 200, 300, sell) {
		if math.Abs(op.Y-top) < 1e-6 {
			sellCell = &op
		}
	}
	for _, op := range filledIn(ops, 200, 300, buy) {
		if math.Abs(op.Y-top) < 1e-6 {
			buyCell = &op
		}
	}
	if sellCell == nil || buyCell == nil {
		t.Fatalf("Expected a sell and a buy cell at 1.1587")
	}
	if sellCell.X >= buyCell.X {
		t.Errorf("Expected sell cell left of buy cell, got %v and %v", sellCell.X, buyCell.X)
	}

	// Sides scale independently: sell 4 of max 8, buy 2 of max 10.
	wantSell := withOpacity(sell, Opacity(4, 8)).A
	wantBuy := withOpacity(buy, Opacity(2, 10)).A
	if sellCell.Style.Fill.A != wantSell {
		t.Errorf("Expected sell alpha %d, got %d", wantSell, sellCell.Style.Fill.A)
	}
	if buyCell.Style.Fill.A != wantBuy {
		t.Errorf("Expected buy alpha %d, got %d", wantBuy, buyCell.Style.Fill.A)
	}

	// The largest sell level is fully opaque.
	for _, op := range filledIn(ops, 0, 100, sell) {
		if op.Style.Fill.A != 255 {
			t.Errorf("Expected max sell level opaque, got alpha %d", op.Style.Fill.A)
		}
	}
}

func TestRasterImbalanceOutline(t *testing.T) {
	tests := []struct {
		name string
		show bool
		want int
	}{
		{"enabled", true, 3},
		{"disabled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecorder(560, 424, 1)
			f := testFrame(models.ChartBidAsk)
			f.Settings.ShowImbalance = tt.show
			_ = NewRasterRenderer().Render(rec, f)
			got := 0
			for _, op := range rec.OpsOf(OpRect) {
				if op.Style.Fill.A == 0 && sameRGB(op.Style.Stroke, ParseColor(testPalette.Imbalance)) {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("Expected %d outlines, got %d", tt.want, got)
			}
		})
	}
}

func TestRasterCellText(t *testing.T) {
	tests := []struct {
		chartType models.ChartType
		want      []string
	}{
		{models.ChartBidAsk, []string{"8", "0", "0", "5", "0", "10", "4", "2", "1", "3"}},
		{models.ChartVolume, []string{"8", "5", "10", "6", "4"}},
		{models.ChartDelta, []string{"-8", "+5", "+10", "-2", "+2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.chartType), func(t *testing.T) {
			rec := NewRecorder(560, 424, 1)
			_ = NewRasterRenderer().Render(rec, testFrame(tt.chartType))
			got := texts(rec.Ops())
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}

	rec := NewRecorder(560, 424, 1)
	f := testFrame(models.ChartBidAsk)
	f.Settings.ShowCellText = false
	_ = NewRasterRenderer().Render(rec, f)
	if got := texts(rec.Ops()); len(got) != 0 {
		t.Errorf("Expected no cell text, got %v", got)
	}
}

func TestRasterSkipsEmptyCandles(t *testing.T) {
	rec := NewRecorder(560, 424, 1)
	_ = NewRasterRenderer().Render(rec, testFrame(models.ChartVolume))
	for _, op := range rec.Ops() {
		if op.X >= 100 && op.X < 200 {
			t.Fatalf("Expected nothing in the empty candle's column, got %+v", op)
		}
	}
}

func TestRasterDots(t *testing.T) {
	rec := NewRecorder(560, 424, 1)
	f := testFrame(models.ChartDots)
	_ = NewRasterRenderer().Render(rec, f)
	if n := len(rec.OpsOf(OpRect)); n != 0 {
		t.Errorf("Expected no cells in dots mode, got %d rects", n)
	}
	circles := rec.OpsOf(OpCircle)
	if len(circles) != 2 {
		t.Fatalf("Expected 2 dots, got %d", len(circles))
	}
	if circles[0].R <= circles[1].R {
		t.Errorf("Expected the larger candle to have the larger dot, got %v and %v", circles[0].R, circles[1].R)
	}
	if math.Abs(circles[0].Y-f.Y.Map(1.1586)) > 1e-9 {
		t.Errorf("Expected dot at the POC, got y=%v", circles[0].Y)
	}
	if math.Abs(circles[0].X-50) > 1e-9 {
		t.Errorf("Expected dot centred in its column, got x=%v", circles[0].X)
	}
}

func TestRasterHeatmap(t *testing.T) {
	rec := NewRecorder(560, 424, 1)
	f := testFrame(models.ChartDots)
	f.Settings.ShowHeatmap = true
	_ = NewRasterRenderer().Render(rec, f)
	if n := len(rec.OpsOf(OpRect)); n != 5 {
		t.Errorf("Expected one heatmap cell per level, got %d", n)
	}
}

func TestRasterReleasedSurface(t *testing.T) {
	rec := NewRecorder(560, 424, 1)
	rec.Release()
	err := NewRasterRenderer().Render(rec, testFrame(models.ChartBidAsk))
	if !errors.Is(err, ErrReleased) {
		t.Errorf("Expected ErrReleased, got %v", err)
	}
}
