package util

import "testing"

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-45210, "-45,210"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "-"},
		{950, "$950"},
		{12_500, "$12.5K"},
		{3_400_000, "$3.4M"},
		{2_950_000_000, "$2.95B"},
		{3_010_000_000_000, "$3.01T"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.in); got != tt.want {
			t.Errorf("FormatCompact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	if got := FormatChange(110, 100); got != "+10.00 (+10.00%)" {
		t.Errorf("up = %q", got)
	}
	if got := FormatChange(95, 100); got != "-5.00 (-5.00%)" {
		t.Errorf("down = %q", got)
	}
	if got := FormatChange(95, 0); got != "" {
		t.Errorf("unknown prev = %q", got)
	}
}
