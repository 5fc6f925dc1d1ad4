package evidence

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	reISODate = regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{1,2})-(\d{1,2})(?:\D|$)`)
	reDayDate = regexp.MustCompile(`(?:^|[^\d.,])(\d{1,2})([./-])(\d{1,2})([./-])(\d{4}|\d{2})(?:[^\d.,]|[.,]?$)`)
	reClock   = regexp.MustCompile(`(?:^|[^\d:.,])([01]?\d|2[0-3]):([0-5]\d)(?::[0-5]\d)?(?:[^\d:.,]|$)`)
)

// findDates returns every valid calendar date on a line as YYYY-MM-DD.
// Dotted and dashed dates are day-first; slashed dates are month-first only
// when the second part cannot be a month.
func findDates(s string) []string {
	var out []string
	for _, m := range reISODate.FindAllStringSubmatch(s, -1) {
		if d, ok := calendarDate(m[1], m[2], m[3]); ok {
			out = append(out, d)
		}
	}
	for _, m := range reDayDate.FindAllStringSubmatch(s, -1) {
		if m[2] != m[4] {
			continue
		}
		day, month := m[1], m[3]
		if m[2] == "/" {
			a, _ := strconv.Atoi(m[1])
			b, _ := strconv.Atoi(m[3])
			if b > 12 && a <= 12 {
				day, month = m[3], m[1]
			}
		}
		if d, ok := calendarDate(m[5], month, day); ok {
			out = append(out, d)
		}
	}
	return out
}

func calendarDate(y, m, d string) (string, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if len(y) == 2 {
		year += 2000
	}
	if year < 1990 || year > 2100 || month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// findTime returns the first clock time on a line as HH:MM.
func findTime(s string) (string, bool) {
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", h, m[2]), true
}
