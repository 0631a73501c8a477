package service

import (
	"testing"
	"time"
)

func TestFormatTimeRangeMs(t *testing.T) {
	start := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	if got := FormatTimeRangeMs(start.UnixMilli(), start.Add(90*time.Minute).UnixMilli(), time.UTC); got != "2025-03-10 20:00-21:30" {
		t.Fatalf("same day: %q", got)
	}
	if got := FormatTimeRangeMs(start.UnixMilli(), start.Add(5*time.Hour).UnixMilli(), time.UTC); got != "2025-03-10 20:00 - 2025-03-11 01:00" {
		t.Fatalf("cross day: %q", got)
	}
	if got := FormatTimeRangeMs(start.UnixMilli(), start.UnixMilli(), time.UTC); got != "" {
		t.Fatalf("empty range should be blank, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{0: "0h 00m", 59: "0h 00m", 3900: "1h 05m", -5: "0h 00m"}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%d)=%q want %q", in, got, want)
		}
	}
}
