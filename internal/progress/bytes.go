package progress

import (
	"fmt"
	"strings"
	"time"
)

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

// formatBytes formats bytes with binary units.
func formatBytes(b int64) string {
	switch {
	case b >= tib:
		return scaled(b, tib, "TiB")
	case b >= gib:
		return scaled(b, gib, "GiB")
	case b >= mib:
		return scaled(b, mib, "MiB")
	case b >= kib:
		return scaled(b, kib, "KiB")
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func scaled(b, unit int64, suffix string) string {
	v := float64(b) / float64(unit)
	if v >= 100 {
		return fmt.Sprintf("%.0f %s", v, suffix)
	}
	return fmt.Sprintf("%.1f %s", v, suffix)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes returns b in IEC units with one decimal below 100 and none
// above, e.g. "512 B", "1.5 MiB", "256 MiB".
func FormatBytes(b int64) string {
	return formatBytes(b)
}

var units = []struct {
	suffix string
	mult   int64
}{
	{"TiB", tib},
	{"GiB", gib},
	{"MiB", mib},
	{"KiB", kib},
	{"TB", 1000 * 1000 * 1000 * 1000},
	{"GB", 1000 * 1000 * 1000},
	{"MB", 1000 * 1000},
	{"KB", 1000},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string. Binary suffixes (KiB,
// MiB, ...) are powers of 1024, SI suffixes (KB, MB, ...) powers of 1000.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			mult = u.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	var value float64
	if _, err := fmt.Sscanf(s, "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative byte string: %q", s)
	}

	return int64(value * float64(mult)), nil
}
