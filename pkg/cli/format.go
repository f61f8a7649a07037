package cli

import (
	"fmt"
	"time"
)

// FormatClock formats an elapsed recording time as "mm:ss.t", or
// "h:mm:ss" from one hour on.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d >= time.Hour {
		s := int(d / time.Second)
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	tenths := int(d / (100 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d.%d", tenths/600, tenths/10%60, tenths%10)
}

// FormatBytes formats bytes to human readable string.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatPercent renders a progress fraction.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%3.0f%%", min(max(p, 0), 1)*100)
}
