package monitor

import "fmt"

// FormatRate formats a webhook rate value as "X.X upd/min"
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f upd/min", rate)
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatCount formats a counter as "42", "1.2k" or "3.4M"
func FormatCount(n int64) string {
	switch {
	case n >= 1000000:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatDuration formats duration in seconds to "Xh Ym" or "Xm"
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
