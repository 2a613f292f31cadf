package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ParseDuration parses a duration string.
// examples: "10d", "-1.5w" or "3Y4M5d".
// Add time units are "d"="D", "w"="W", "M", "y"="Y".
// Taken from https://gist.github.com/xhit/79c9e137e1cfe332076cdda9f5e24699
func ParseDuration(s string) (time.Duration, error) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	re := regexp.MustCompile(`(\d*\.\d+|\d+)[^\d]*`)
	unitMap := map[string]int{
		"d": 24,
		"D": 24,
		"w": 7 * 24,
		"W": 7 * 24,
		"M": 30 * 24,
		"y": 365 * 24,
		"Y": 365 * 24,
	}

	strs := re.FindAllString(s, -1)
	if len(strs) == 0 {
		return 0, fmt.Errorf("invalid duration string: %s", s)
	}

	var sumDur time.Duration
	for _, str := range strs {
		_hours := 1
		for unit, hours := range unitMap {
			if strings.Contains(str, unit) {
				str = strings.ReplaceAll(str, unit, "h")
				_hours = hours
				break
			}
		}

		dur, err := time.ParseDuration(str)
		if err != nil {
			return 0, err
		}

		sumDur += time.Duration(int(dur) * _hours)
	}

	if neg {
		sumDur = -sumDur
	}
	return sumDur, nil
}
