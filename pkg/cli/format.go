package cli

import (
	"fmt"
	"time"
)

// FormatDuration renders a latency figure for the chat prompt: plain
// milliseconds under a second, seconds with one decimal under a minute,
// minutes and seconds beyond that.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		rest := d - time.Duration(m)*time.Minute
		return fmt.Sprintf("%dm%.1fs", m, rest.Seconds())
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGT"[exp])
}
