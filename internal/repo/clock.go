package repo

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// MinutesPerDay bounds wall-clock values: valid clock minutes are [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// ParseClock parses an "HH:MM" wall-clock string (00:00 to 23:59) into
// minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return h*60 + m, nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinuteRangesOverlap is the half-open overlap test used for windows:
// max(startA, startB) < min(endA, endB).
func MinuteRangesOverlap(startA, endA, startB, endB int) bool {
	return max(startA, startB) < min(endA, endB)
}

// AtClock returns the instant at minutes past midnight of date in loc.
func AtClock(date civil.Date, minutes int, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, minutes/60, minutes%60, 0, 0, loc)
}

// Interval is a half-open [Start, End) span of absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}
