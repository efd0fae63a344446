package util

import (
	"fmt"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCompact formats a large dollar amount with T/B/M/K suffixes, or "-"
// when it is unknown.
func FormatCompact(v float64) string {
	switch {
	case v <= 0:
		return "-"
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// FormatChange renders the move from prev to cur as "+1.23 (+0.45%)". It
// returns "" when prev is unknown.
func FormatChange(cur, prev float64) string {
	if prev <= 0 {
		return ""
	}
	d := cur - prev
	return fmt.Sprintf("%+.2f (%+.2f%%)", d, d/prev*100)
}
