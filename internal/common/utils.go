package common

import (
	"strings"
	"time"
)

// StampLayout is the 12-digit YYYYMMDDHHmm layout shared by stored readings
// and the station feed.
const StampLayout = "200601021504"

// FormatStamp renders t in loc using StampLayout.
func FormatStamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(StampLayout)
}

// IsStamp reports whether s is a run of exactly 12 ASCII digits.
func IsStamp(s string) bool {
	return IsDigits(s, 12)
}

// IsDigits reports whether s consists of exactly n ASCII digits.
func IsDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// TopOfHour truncates t to the start of its hour in t's own location.
func TopOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// HasAnyPrefix returns true if s starts with any of the prefixes.
func HasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
