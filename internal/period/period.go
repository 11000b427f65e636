// Package period parses alert query periods and labels them for display.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidPeriod = errors.New("invalid period")

// Period is an inclusive date range. Both bounds are calendar dates at
// midnight UTC so day arithmetic is free of DST effects.
type Period struct {
	Begin time.Time
	End   time.Time
}

// Style selects the label used for spans longer than three days.
type Style string

const (
	StyleWeek    Style = "week"
	StyleLiteral Style = "literal"
)

func ParseStyle(s string) Style {
	if strings.EqualFold(strings.TrimSpace(s), string(StyleLiteral)) {
		return StyleLiteral
	}
	return StyleWeek
}

// Parse reads "YYYY-MM-DD,YYYY-MM-DD". An empty string yields Default(now).
func Parse(raw string, now time.Time) (Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Default(now), nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: expected two comma-separated dates, got %q", ErrInvalidPeriod, raw)
	}
	begin, err := parseDate(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: begin: %w", ErrInvalidPeriod, err)
	}
	end, err := parseDate(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: end: %w", ErrInvalidPeriod, err)
	}
	if begin.After(end) {
		return Period{}, fmt.Errorf("%w: begin %s is after end %s", ErrInvalidPeriod,
			begin.Format(dateLayout), end.Format(dateLayout))
	}
	return Period{Begin: begin, End: end}, nil
}

// Default is (yesterday, today) in now's calendar.
func Default(now time.Time) Period {
	today := dateOf(now)
	return Period{Begin: today.AddDate(0, 0, -1), End: today}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// dateOf keeps the local calendar date of t as a UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p Period) BeginString() string { return p.Begin.Format(dateLayout) }
func (p Period) EndString() string   { return p.End.Format(dateLayout) }

func (p Period) String() string {
	return p.BeginString() + "," + p.EndString()
}

// Days is the whole number of days between End and Begin.
func (p Period) Days() int {
	return int(p.End.Sub(p.Begin).Hours() / 24)
}

// Label maps the span to a human readable label. Spans of 1..3 days have
// fixed labels; anything else gets the generic label for style.
func Label(p Period, style Style) string {
	switch p.Days() {
	case 1:
		return "Past 24 hours"
	case 2:
		return "Past 48 hours"
	case 3:
		return "Past 72 hours"
	}
	if style == StyleLiteral {
		return p.String()
	}
	return "Past week"
}
