package liveboard2sqlite

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Bounds for ValidateTimestamp: [2000-01-01T00:00:00Z, 2100-01-01T00:00:00Z).
const (
	minEpoch = 946684800
	maxEpoch = 4102444800
)

// Bounds for ValidateDelay, in minutes.
const (
	minDelayMinutes = -60
	maxDelayMinutes = 1440
)

const unknownField = "Unknown"

var trainIDPattern = regexp.MustCompile(`^[A-Za-z0-9.\- ]+$`)

// ValidateStationName trims and title-cases a station name. Station identity
// feeds the dedup key, so a bad name fails the whole record.
func ValidateStationName(s string) (string, error) {
	if s == "" {
		return "", validationErrorf("station", "name must be non-empty")
	}

	normalized := titleCase(strings.TrimSpace(s))
	if n := utf8.RuneCountInString(normalized); n < 2 || n > 100 {
		return "", validationErrorf("station", "name length out of range: %q", normalized)
	}
	return normalized, nil
}

// ValidateTrainID never fails: the train ID is best-effort. Unusual content
// is kept but logged.
func ValidateTrainID(s string) string {
	if s == "" {
		return unknownField
	}

	normalized := strings.TrimSpace(s)
	if normalized == "" {
		return unknownField
	}
	if !trainIDPattern.MatchString(normalized) {
		slog.Warn("unusual train ID format", "train_id", normalized)
	}

	return truncateRunes(normalized, 50)
}

// ValidateTimestamp parses integer epoch seconds and rejects values outside
// [2000-01-01, 2100-01-01).
func ValidateTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, validationErrorf("timestamp", "missing")
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, validationErrorf("timestamp", "not an integer: %q", s)
	}
	if epoch < minEpoch {
		return time.Time{}, validationErrorf("timestamp", "%d is before 2000", epoch)
	}
	if epoch >= maxEpoch {
		return time.Time{}, validationErrorf("timestamp", "%d is at or after 2100", epoch)
	}

	return time.Unix(epoch, 0).UTC(), nil
}

// ValidateDelay converts a delay in seconds to whole minutes. It never fails
// the caller: unparseable input becomes 0 and out-of-range values are clamped
// to [-60, 1440].
func ValidateDelay(s string) int {
	if s == "" {
		return 0
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		slog.Warn("invalid delay value, defaulting to 0", "delay", s)
		return 0
	}

	minutes := floorDiv(seconds, 60)
	if minutes < minDelayMinutes || minutes > maxDelayMinutes {
		slog.Warn("unusual delay value, clamping", "delay_minutes", minutes)
		return min(max(minutes, minDelayMinutes), maxDelayMinutes)
	}
	return minutes
}

// ValidatePlatform never fails; a missing platform becomes the sentinel.
func ValidatePlatform(s string) string {
	normalized := strings.TrimSpace(s)
	if normalized == "" {
		return unknownField
	}
	return truncateRunes(normalized, 20)
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "brussels-central" becomes "Brussels-Central".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// truncateRunes limits s to n characters, never splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// floorDiv rounds toward negative infinity, so -90 seconds is -2 minutes.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
