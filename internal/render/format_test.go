package render

import (
	"testing"
	"time"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price, step float64
		want        string
	}{
		{1.15855, 0.0001, "1.1586"},
		{1.2, 0.0005, "1.2000"},
		{101.5, 0.5, "101.5"},
		{4200, 50, "4200"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.price, tt.step); got != tt.want {
			t.Errorf("FormatPrice(%v, %v): expected %q, got %q", tt.price, tt.step, tt.want, got)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{2.5, "2.5"},
		{-8, "-8"},
		{1234, "1.2K"},
		{15000, "15K"},
		{2500000, "2.5M"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.v); got != tt.want {
			t.Errorf("FormatVolume(%v): expected %q, got %q", tt.v, tt.want, got)
		}
	}
}

func TestFormatTime(t *testing.T) {
	minute := time.Minute.Milliseconds()
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC).UnixMilli()
	if got := FormatTime(ts, minute); got != "14:30" {
		t.Errorf("Expected 14:30, got %q", got)
	}
	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := FormatTime(midnight, minute); got != "Mar 05" {
		t.Errorf("Expected Mar 05, got %q", got)
	}
}
