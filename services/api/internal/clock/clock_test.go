package clock

import (
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	clk.Advance(30 * time.Minute)
	if got := clk.Now(); !got.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("expected %v, got %v", start.Add(30*time.Minute), got)
	}

	clk.Set(start)
	if got := clk.Now(); !got.Equal(start) {
		t.Fatalf("expected %v after Set, got %v", start, got)
	}
}

func TestFixed_ReturnsUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2025, 3, 1, 15, 0, 0, 0, loc)
	if got := NewFixed(in).Now(); got.Location() != time.UTC || !got.Equal(in) {
		t.Fatalf("expected UTC instant equal to input, got %v", got)
	}
}
