// Package dates holds the date arithmetic shared by indicator predicates.
// Registry exports write dates day-first (DD/MM/YYYY or DD-MM-YYYY); datasets
// normalise slash dates to ISO at load time, so both shapes reach ToDate.
package dates

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/cdreport/cdreport/internal/indicator"
)

var dayFirstRe = regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})`)

// ToDate parses a cell into a midnight UTC date. Empty and unparseable
// values report false.
func ToDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return midnight(t), true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SubtractMonths moves t back by calendar months. Days past the end of the
// target month roll forward (31 March minus one month is 3 March).
func SubtractMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, -months, 0)
}

// WithinDateRange reports whether measured falls within monthsAgo months of
// current, boundary included. A blank or unparseable measurement, or one
// dated after current, is NotApplicable.
func WithinDateRange(current string, monthsAgo int, measured string) indicator.TriState {
	if strings.TrimSpace(measured) == "" {
		return indicator.NotApplicable
	}
	cur, ok := ToDate(current)
	if !ok {
		return indicator.NotApplicable
	}
	md, ok := ToDate(measured)
	if !ok {
		return indicator.NotApplicable
	}
	return WithinRange(cur, monthsAgo, md)
}

// WithinRange is WithinDateRange for already parsed dates.
func WithinRange(current time.Time, monthsAgo int, measured time.Time) indicator.TriState {
	if measured.After(current) {
		return indicator.NotApplicable
	}
	return indicator.FromBool(!measured.Before(SubtractMonths(current, monthsAgo)))
}

// MonthsDifference counts whole calendar months from measured to current.
func MonthsDifference(current, measured string) (int, bool) {
	cur, ok := ToDate(current)
	if !ok {
		return 0, false
	}
	md, ok := ToDate(measured)
	if !ok {
		return 0, false
	}
	return MonthsBetween(cur, md), true
}

// MonthsBetween counts whole months from measured to current, negative when
// measured is later. Partial months are measured against the length of the
// surrounding month and truncated toward zero.
func MonthsBetween(current, measured time.Time) int {
	whole := (measured.Year()-current.Year())*12 + int(measured.Month()) - int(current.Month())
	anchor := addMonthsClamped(current, whole)
	var adjust float64
	if measured.Before(anchor) {
		prev := addMonthsClamped(current, whole-1)
		adjust = float64(measured.Sub(anchor)) / float64(anchor.Sub(prev))
	} else {
		next := addMonthsClamped(current, whole+1)
		adjust = float64(measured.Sub(anchor)) / float64(next.Sub(anchor))
	}
	diff := -(float64(whole) + adjust)
	if diff < 0 {
		return int(math.Ceil(diff))
	}
	return int(math.Floor(diff))
}

// addMonthsClamped adds n months keeping the day within the target month.
func addMonthsClamped(t time.Time, n int) time.Time {
	m := int(t.Month()) - 1 + n
	y := t.Year() + floorDiv(m, 12)
	m = m - floorDiv(m, 12)*12
	first := time.Date(y, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(y, time.Month(m+1), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MostRecentDate returns the latest parseable date among values.
func MostRecentDate(values ...string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, v := range values {
		t, ok := ToDate(v)
		if !ok {
			continue
		}
		if !found || t.After(best) {
			best, found = t, true
		}
	}
	return best, found
}

// AgeFromCodedString converts the coded ages some exports use ("18mo",
// "6wk", "12days", "7") into whole years.
func AgeFromCodedString(code string) (int, bool) {
	switch {
	case strings.Index(code, "mo") > 0:
		n, ok := leadingInt(code)
		if !ok {
			return 0, false
		}
		return floorDiv(n, 12), true
	case strings.Index(code, "wk") > 0, strings.Index(code, "days") > 0:
		return 0, true
	}
	v := indicator.Number(code)
	if math.IsNaN(v) {
		return 0, false
	}
	return int(v), true
}

// leadingInt parses the integer prefix of s, ignoring leading spaces.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
