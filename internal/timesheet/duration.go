package timesheet

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

// ParseDuration converts an ISO-8601 style duration token such as "PT7H30M",
// "PT7H", "PT30M" or "PT7.5H" to seconds, rounding to the nearest second.
// Empty input yields 0.
func ParseDuration(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if !strings.HasPrefix(raw, "PT") {
		return 0, apperr.InvalidInput("parse duration", "unsupported duration %q", raw)
	}
	rest := raw[2:]
	if rest == "" {
		return 0, nil
	}

	var total float64
	for rest != "" {
		i := strings.IndexAny(rest, "HMS")
		if i <= 0 || !decimalRegex.MatchString(rest[:i]) {
			return 0, apperr.InvalidInput("parse duration", "malformed duration %q", raw)
		}
		n, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil {
			return 0, apperr.InvalidInput("parse duration", "malformed duration %q", raw)
		}
		switch rest[i] {
		case 'H':
			total += n * 3600
		case 'M':
			total += n * 60
		case 'S':
			total += n
		}
		rest = rest[i+1:]
	}
	return int64(math.Round(total)), nil
}

var decimalRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// HoursToSeconds converts decimal hours to whole seconds.
func HoursToSeconds(hours float64) int64 {
	return int64(math.Round(hours * 3600))
}

// ParseHours converts a decimal-hours string such as "7.5" to seconds. Empty
// input yields 0.
func ParseHours(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	h, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.InvalidInput("parse hours", "malformed hours %q", raw)
	}
	return HoursToSeconds(h), nil
}

// SecondsToHours converts seconds to decimal hours.
func SecondsToHours(seconds int64) float64 {
	return float64(seconds) / 3600
}
