package playlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// FormatDuration renders a second count in the canonical M:SS form used
// across the catalog boundary: minutes unbounded, seconds zero-padded.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ParseDuration parses a canonical M:SS duration back into seconds.
// It is the inverse of FormatDuration: ParseDuration(FormatDuration(n)) == n
// for every n >= 0.
func ParseDuration(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid duration %q: want M:SS", s)
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid duration %q: bad minutes", s)
	}

	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid duration %q: seconds must be two digits", s)
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid duration %q: bad seconds", s)
	}

	return minutes*60 + seconds, nil
}

// TotalSeconds sums the parsed durations of the given songs.
// Songs with unparseable durations contribute nothing.
func TotalSeconds(songs []Song) int {
	return lo.SumBy(songs, func(s Song) int {
		secs, err := ParseDuration(s.Duration)
		if err != nil {
			return 0
		}
		return secs
	})
}

type timeUnit struct {
	name    string
	seconds int
}

var timeUnits = []timeUnit{
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// FormatDurationWords renders a second count as spelled-out units,
// e.g. "1 hour, 2 minutes, 5 seconds".
func FormatDurationWords(totalSeconds int) string {
	remaining := totalSeconds
	var parts []string

	for _, u := range timeUnits {
		if remaining >= u.seconds {
			count := remaining / u.seconds
			part := fmt.Sprintf("%d %s", count, u.name)
			if count != 1 {
				part += "s"
			}
			parts = append(parts, part)
			remaining %= u.seconds
		}
	}

	if len(parts) == 0 {
		return "less than a second"
	}

	return strings.Join(parts, ", ")
}
