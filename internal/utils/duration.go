package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactDurationRegex = regexp.MustCompile(`^(\d+)\s*(s|m|h|d|w)$`)

// ParseCompactDuration parses the short forms used in commands: "30s", "5m",
// "2h", "1d", "1w".
func ParseCompactDuration(raw string) (time.Duration, error) {
	match := compactDurationRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if match == nil {
		return 0, fmt.Errorf("invalid duration %q, use forms like 30s, 5m, 2h, 1d", raw)
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	switch match[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	}
}

// FormatDuration renders a duration in at most two units, e.g. "2h 30m".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)

	units := []struct {
		name string
		size time.Duration
	}{
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}

	var parts []string
	for _, unit := range units {
		if d < unit.size {
			continue
		}
		count := d / unit.size
		d -= count * unit.size
		parts = append(parts, fmt.Sprintf("%d%s", count, unit.name))
		if len(parts) == 2 {
			break
		}
	}
	return strings.Join(parts, " ")
}
