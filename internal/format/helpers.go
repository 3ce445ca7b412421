package format

import (
	"fmt"
	"strconv"
)

// Percent formats a 0-100 value with at most two decimals: "85%", "66.67%".
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Score formats a 0-100 risk score as "62/100".
func Score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "/100"
}

// Minutes formats a duration in minutes as "1h 5m" or "50m".
func Minutes(m int) string {
	if m >= 60 {
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm", m)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
