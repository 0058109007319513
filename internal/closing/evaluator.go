// Package closing decides which transactions close inside the lookahead window.
//
// The evaluator works on civil dates: a closing date is the calendar day written
// in the source string, "today" is the calendar day of the clock in the
// configured location, and both are compared at midnight on a UTC basis so
// daylight-saving shifts never change an offset.
package closing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoClosingDate is returned for a nil or blank closing date.
	ErrNoClosingDate = errors.New("closing: no closing date")
	// ErrUnparseableDate is wrapped by every ParseError.
	ErrUnparseableDate = errors.New("closing: unparseable date")
)

// ParseError reports a closing date that matched none of the known layouts.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("closing: unparseable date %q", e.Raw)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseableDate
}

// layouts accepted from SISU, most common first.
var layouts = []string{
	"2006-01-02",
	time.RFC1123,
	time.RFC3339,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 02 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 02 2006",
}

// ParseClosingDate parses a loosely formatted closing date. A nil or blank
// input yields ErrNoClosingDate; any other failure yields a *ParseError.
func ParseClosingDate(raw *string) (time.Time, error) {
	if raw == nil {
		return time.Time{}, ErrNoClosingDate
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return time.Time{}, ErrNoClosingDate
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Raw: s}
}

// DaysUntil returns the number of days from now's calendar day to the closing
// date's calendar day. ok is false if the date is absent or unparseable.
func DaysUntil(raw *string, now time.Time) (days int, ok bool) {
	target, err := ParseClosingDate(raw)
	if err != nil {
		return 0, false
	}
	return daysBetween(now, target), true
}

// IsWithinWindow reports whether the closing date is 0..windowDays days away,
// both ends inclusive.
func IsWithinWindow(raw *string, windowDays int, now time.Time) bool {
	d, ok := DaysUntil(raw, now)
	if !ok {
		return false
	}
	return d >= 0 && d <= windowDays
}

func daysBetween(now, target time.Time) int {
	from := midnightUTC(now)
	to := midnightUTC(target)
	// both values sit on a UTC midnight, so the division is exact
	return int((to.Unix() - from.Unix()) / 86400)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Clock returns the current time.
type Clock func() time.Time

// Evaluator binds the date functions to an injected clock and location.
type Evaluator struct {
	clock    Clock
	location *time.Location
}

// NewEvaluator creates an Evaluator. A nil clock uses time.Now and a nil
// location uses time.Local.
func NewEvaluator(clock Clock, loc *time.Location) Evaluator {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Evaluator{clock: clock, location: loc}
}

// Now returns the clock's time in the evaluator's location.
func (e Evaluator) Now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	if e.location == nil {
		return e.clock()
	}
	return e.clock().In(e.location)
}

// DaysUntil is DaysUntil evaluated against the evaluator's clock.
func (e Evaluator) DaysUntil(raw *string) (int, bool) {
	return DaysUntil(raw, e.Now())
}

// IsWithinWindow is IsWithinWindow evaluated against the evaluator's clock.
func (e Evaluator) IsWithinWindow(raw *string, windowDays int) bool {
	return IsWithinWindow(raw, windowDays, e.Now())
}
