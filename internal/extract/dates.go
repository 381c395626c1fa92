package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO layout every parser returns.
const DateLayout = "2006-01-02"

var (
	isoDate       = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	monthDayYear  = regexp.MustCompile(`([A-Za-z]+)\.? (\d{1,2}),? (\d{4})`)
	dayMonthYear  = regexp.MustCompile(`(\d{1,2}) ([A-Za-z]+),? (\d{4})`)
	timeOnDate    = regexp.MustCompile(`\d{1,2}:\d{2}\s*(?:am|pm|AM|PM|a\.m\.|p\.m\.)\s+\w+\s+on\s+([A-Za-z]+) (\d{1,2}),? (\d{4})`)
	strictMDY     = regexp.MustCompile(`^([A-Za-z]+) (\d{1,2}), (\d{4})$`)
	monthDay      = regexp.MustCompile(`^([A-Za-z]+) (\d{1,2})$`)
	submittedBy   = regexp.MustCompile(`[Aa]pplications\s+must\s+be\s+submitted\s+by\s+([^.]+)`)
	deadlinePhras = regexp.MustCompile(`[Dd]eadline[:\s]+([^.]+)`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseMonth resolves a full or three-letter English month name.
func ParseMonth(name string) (time.Month, bool) {
	m, ok := months[strings.ToLower(strings.TrimSuffix(name, "."))]
	return m, ok
}

// civil builds a date and rejects overflow such as February 30.
func civil(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	m, ok := ParseMonth(month)
	if !ok {
		mi, err := strconv.Atoi(month)
		if err != nil || mi < 1 || mi > 12 {
			return time.Time{}, false
		}
		m = time.Month(mi)
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != m {
		return time.Time{}, false
	}
	return t, true
}

// ParseDate returns the first recognizable date in text as YYYY-MM-DD.
// Formats are tried in order: ISO, "Month D, YYYY", "D Month YYYY",
// and "H:MM pm TZ on Month D, YYYY".
func ParseDate(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	text = Normalize(text)

	for _, m := range isoDate.FindAllStringSubmatch(text, -1) {
		if t, ok := civil(m[1], m[2], m[3]); ok {
			return t.Format(DateLayout), true
		}
	}
	for _, m := range monthDayYear.FindAllStringSubmatch(text, -1) {
		if t, ok := civil(m[3], m[1], m[2]); ok {
			return t.Format(DateLayout), true
		}
	}
	for _, m := range dayMonthYear.FindAllStringSubmatch(text, -1) {
		if t, ok := civil(m[3], m[2], m[1]); ok {
			return t.Format(DateLayout), true
		}
	}
	if m := timeOnDate.FindStringSubmatch(text); m != nil {
		if t, ok := civil(m[3], m[1], m[2]); ok {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// ParseDeadline looks for an explicit "Applications must be submitted by"
// clause, then a "Deadline:" clause, then any date in text.
func ParseDeadline(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	text = Normalize(text)
	for _, re := range []*regexp.Regexp{submittedBy, deadlinePhras} {
		if m := re.FindStringSubmatch(text); m != nil {
			if d, ok := ParseDate(m[1]); ok {
				return d, true
			}
		}
	}
	return ParseDate(text)
}

// ParseMonthDayYear parses exactly "Month D, YYYY".
func ParseMonthDayYear(s string) (time.Time, bool) {
	m := strictMDY.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	return civil(m[3], m[1], m[2])
}

// ResolveYearless places "Month D" in now's year, rolling to the next year
// when that day is already behind now.
func ResolveYearless(s string, now time.Time) (time.Time, bool) {
	m := monthDay.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	year := now.Year()
	t, ok := civil(strconv.Itoa(year), m[1], m[2])
	if !ok {
		return time.Time{}, false
	}
	if t.Before(StartOfDay(now)) {
		return civil(strconv.Itoa(year+1), m[1], m[2])
	}
	return t, true
}

// StartOfDay returns midnight UTC of t's calendar day, the form every parser
// here returns, so dates compare by day regardless of t's zone.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
