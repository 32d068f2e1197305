// Package daycount turns calendar dates into the year fractions the pricing
// engines take as time to expiry.
package daycount

import (
	"fmt"
	"strings"
	"time"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// DateLayout is the layout of expiry and horizon dates on the wire.
const DateLayout = "2006-01-02"

// Convention is a day-count basis.
type Convention string

const (
	// Business252 counts weekdays in [from, to) over 252 trading days a year.
	Business252 Convention = "business252"
	// Calendar365 counts calendar days in [from, to) over 365.
	Calendar365 Convention = "calendar365"
)

// ParseConvention accepts the two supported convention names.
func ParseConvention(s string) (Convention, error) {
	switch c := Convention(strings.ToLower(strings.TrimSpace(s))); c {
	case Business252, Calendar365:
		return c, nil
	default:
		return "", fmt.Errorf("daycount: unknown convention %q: %w", s, domain.ErrInvalidInput)
	}
}

// YearFraction returns the time from one date to another in years. Only the
// calendar date of each instant counts. to before from is an error.
func (c Convention) YearFraction(from, to time.Time) (float64, error) {
	from, to = civil(from), civil(to)
	if to.Before(from) {
		return 0, fmt.Errorf("daycount: %s is before %s: %w",
			to.Format(DateLayout), from.Format(DateLayout), domain.ErrInvalidInput)
	}
	switch c {
	case Business252:
		return float64(BusinessDays(from, to)) / 252, nil
	case Calendar365:
		return float64(calendarDays(from, to)) / 365, nil
	default:
		return 0, fmt.Errorf("daycount: unknown convention %q: %w", c, domain.ErrInvalidInput)
	}
}

// YearsUntil parses a YYYY-MM-DD expiry and returns the year fraction from
// now until it.
func (c Convention) YearsUntil(expiry string, now time.Time) (float64, error) {
	to, err := time.Parse(DateLayout, strings.TrimSpace(expiry))
	if err != nil {
		return 0, fmt.Errorf("daycount: parse expiry %q: %w", expiry, domain.ErrInvalidInput)
	}
	return c.YearFraction(now, to)
}

// BusinessDays counts Monday to Friday dates in [from, to). Holidays are not
// modelled.
func BusinessDays(from, to time.Time) int {
	from, to = civil(from), civil(to)
	days := calendarDays(from, to)
	if days <= 0 {
		return 0
	}

	weeks, rest := days/7, days%7
	count := weeks * 5
	wd := from.Weekday()
	for i := 0; i < rest; i++ {
		if d := (wd + time.Weekday(i)) % 7; d != time.Saturday && d != time.Sunday {
			count++
		}
	}
	return count
}

func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
