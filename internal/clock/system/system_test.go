package system

import (
	"testing"
	"time"
)

// TestClockDefaultsToUTC ensures a nil location yields UTC timestamps.
func TestClockDefaultsToUTC(t *testing.T) {
	t.Parallel()

	clk := New(nil)
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockUsesLocation checks timestamps carry the configured zone.
func TestClockUsesLocation(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*3600+1800)
	clk := New(ist)
	if clk.Location() != ist {
		t.Fatalf("expected IST location, got %v", clk.Location())
	}
	if _, offset := clk.Now().Zone(); offset != 19800 {
		t.Fatalf("expected +05:30 offset, got %d", offset)
	}

	var zero Clock
	if zero.Now().Location() != time.UTC || zero.Location() != time.UTC {
		t.Fatal("expected zero Clock to behave as UTC")
	}
}
