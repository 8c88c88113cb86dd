package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// directLayouts are tried in order before any pattern matching.
var directLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"2006-01-02",
}

var (
	isoDateRe   = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	usDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?,?\s+(\d{4})\b`)
	allDigitsRe = regexp.MustCompile(`^\d+$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// ParseDate resolves a date string. It first attempts a set of fixed,
// locale-independent layouts and unix timestamps, then falls back to
// YYYY-MM-DD, MM/DD/YYYY and "D Month YYYY" patterns. Values without a zone
// are interpreted as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range directLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := parseUnix(s); ok {
		return t, true
	}
	return parsePatterns(s)
}

func parseUnix(s string) (time.Time, bool) {
	if !allDigitsRe.MatchString(s) {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	switch {
	case len(s) >= 12 && len(s) <= 13:
		return time.UnixMilli(n).UTC(), true
	case len(s) >= 9 && len(s) <= 10:
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func parsePatterns(s string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := civilDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := usDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := civilDate(m[3], m[1], m[2]); ok {
			return t, true
		}
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if month, ok := lookupMonth(m[2]); ok {
			if t, ok := civilDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if m, ok := monthNames[name]; ok {
		return m, true
	}
	if len(name) < 3 {
		return 0, false
	}
	m, ok := monthNames[name[:3]]
	if !ok {
		return 0, false
	}
	// Accept full names only when they spell the real month.
	if !strings.HasPrefix(strings.ToLower(m.String()), name) {
		return 0, false
	}
	return m, true
}

// civilDate builds a UTC midnight date and rejects overflowing values such as
// February 30.
func civilDate(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
