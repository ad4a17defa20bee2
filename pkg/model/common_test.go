package model

import (
	"testing"
	"time"
)

func TestCoordinate_DistanceMiles(t *testing.T) {
	tests := []struct {
		name     string
		c1       Coordinate
		c2       Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "同一位置",
			c1:       Coordinate{Lat: 33.4152, Lng: -111.8315},
			c2:       Coordinate{Lat: 33.4152, Lng: -111.8315},
			expected: 0,
			delta:    0.001,
		},
		{
			name:     "凤凰城到图森",
			c1:       Coordinate{Lat: 33.4484, Lng: -112.0740}, // Phoenix
			c2:       Coordinate{Lat: 32.2226, Lng: -110.9747}, // Tucson
			expected: 107,
			delta:    3,
		},
		{
			name:     "梅萨到坦佩",
			c1:       Coordinate{Lat: 33.4152, Lng: -111.8315}, // Mesa
			c2:       Coordinate{Lat: 33.4255, Lng: -111.9400}, // Tempe
			expected: 6.3,
			delta:    0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.c1.DistanceMiles(tt.c2)
			if result < tt.expected-tt.delta || result > tt.expected+tt.delta {
				t.Errorf("DistanceMiles() = %v, expected %v ± %v", result, tt.expected, tt.delta)
			}
		})
	}
}

func TestWindow_Overlap(t *testing.T) {
	w := Window{Start: 600, End: 720}
	tests := []struct {
		other    Window
		expected int
	}{
		{Window{Start: 600, End: 720}, 120},
		{Window{Start: 660, End: 780}, 60},
		{Window{Start: 720, End: 840}, 0},
		{Window{Start: 480, End: 900}, 120},
	}
	for _, tt := range tests {
		if got := w.Overlap(tt.other); got != tt.expected {
			t.Errorf("Overlap(%v) = %d, want %d", tt.other, got, tt.expected)
		}
	}
	if w.StartHour() != 10 {
		t.Errorf("StartHour() = %d, want 10", w.StartHour())
	}
}

func TestNormalizeCity(t *testing.T) {
	if got := NormalizeCity("  San   Tan Valley "); got != "san tan valley" {
		t.Errorf("NormalizeCity() = %q", got)
	}
	if got := WeekdayKey(time.Tuesday); got != "tuesday" {
		t.Errorf("WeekdayKey() = %q", got)
	}
	if Region(" North ").Normalize() != RegionNorth || Region("").Normalize() != RegionUnknown {
		t.Error("Region.Normalize() mismatch")
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Errorf("NewID() should be unique, got %q and %q", a, b)
	}
}
