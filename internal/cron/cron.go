// Package cron parses and evaluates six and seven field cron expressions
// (second minute hour day-of-month month day-of-week [year]).
package cron

import (
	"time"

	"github.com/cockroachdb/errors"
)

// searchHorizonYears bounds Next so that schedules which can never match
// (for example the 31st of February) terminate.
const searchHorizonYears = 5

var (
	// ErrParse marks every error returned by Parse.
	ErrParse = errors.New("cron: invalid expression")

	// ErrNoMatch is returned by Next when no instant within the search
	// horizon satisfies the schedule.
	ErrNoMatch = errors.New("cron: no matching time")
)

// Schedule represents a parsed cron expression
type Schedule struct {
	// Each field stores all valid values for that field
	seconds     valueSet // 0-59
	minutes     valueSet // 0-59
	hours       valueSet // 0-23
	daysOfMonth valueSet // 1-31
	months      valueSet // 1-12
	daysOfWeek  valueSet // 0-6 (0=Sunday)
	years       valueSet // offsets from MinYear

	// Written as * or ? in the expression. Drives the day-of-month /
	// day-of-week OR rule.
	domStar bool
	dowStar bool

	// Second, minute and hour are single values; such a schedule fires
	// once per wall-clock time across a fall-back transition
	fixedTime bool

	// Store original expression for debugging
	original string
}

// Parse parses a cron expression and validates all constraints
// Returns an error marked with ErrParse if:
// - Format is invalid (not 6 or 7 fields, unknown descriptor)
// - Any field contains invalid syntax or out of range values
func Parse(expr string) (*Schedule, error) {
	return parse(expr)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level schedules.
func MustParse(expr string) *Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the expression the schedule was parsed from.
func (s *Schedule) String() string {
	return s.original
}

// Next returns the earliest instant strictly after 'after' that matches the
// schedule. The schedule is evaluated in after's location.
// Returns an error wrapping ErrNoMatch if nothing matches within the search
// horizon.
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	loc := after.Location()

	// Sub-second precision never matches; start at the next whole second
	t := after.Truncate(time.Second).Add(time.Second)
	limit := after.Year() + searchHorizonYears

	for {
		year := t.Year()
		if year > limit || year > MaxYear {
			return time.Time{}, errors.Wrapf(ErrNoMatch, "%q after %s", s.original, after.Format(time.RFC3339))
		}

		if year < MinYear || !s.years.has(year-MinYear) {
			t = time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
			continue
		}

		if !s.months.has(int(t.Month())) {
			t = time.Date(year, t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}

		if !s.dayMatches(t) {
			t = time.Date(year, t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}

		// Hours, minutes and seconds advance on absolute time so DST
		// transitions can only move t forward
		if !s.hours.has(t.Hour()) {
			t = t.Add(time.Hour - time.Duration(t.Minute())*time.Minute - time.Duration(t.Second())*time.Second)
			continue
		}

		if !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute - time.Duration(t.Second())*time.Second)
			continue
		}

		if !s.seconds.has(t.Second()) {
			t = t.Add(time.Second)
			continue
		}

		if s.fixedTime && repeatsWallClock(t) {
			t = t.Add(time.Second)
			continue
		}

		return t, nil
	}
}

// NextN calculates the next n occurrences of this schedule after the given time.
// "After" means strictly after - if 'after' is exactly at a scheduled time, that time is NOT included.
// Returns the occurrences found before the schedule was exhausted together
// with the ErrNoMatch error, if any.
func (s *Schedule) NextN(after time.Time, n int) ([]time.Time, error) {
	results := make([]time.Time, 0, n)

	current := after
	for len(results) < n {
		next, err := s.Next(current)
		if err != nil {
			return results, err
		}
		results = append(results, next)
		current = next
	}

	return results, nil
}
