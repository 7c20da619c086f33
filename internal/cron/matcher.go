package cron

import (
	"math/bits"
	"time"
)

// valueSet is a bitset over small non-negative integers (up to 191).
type valueSet [3]uint64

func (vs *valueSet) add(v int) {
	vs[v/64] |= 1 << uint(v%64)
}

func (vs *valueSet) remove(v int) {
	vs[v/64] &^= 1 << uint(v%64)
}

func (vs valueSet) has(v int) bool {
	if v < 0 || v >= 192 {
		return false
	}
	return vs[v/64]&(1<<uint(v%64)) != 0
}

func (vs valueSet) empty() bool {
	return vs[0] == 0 && vs[1] == 0 && vs[2] == 0
}

// single reports whether exactly one value is set
func (vs valueSet) single() bool {
	n := bits.OnesCount64(vs[0]) + bits.OnesCount64(vs[1]) + bits.OnesCount64(vs[2])
	return n == 1
}

// repeatsWallClock reports whether t's wall clock already occurred earlier
// the same day, i.e. t lies in the repeated hour after a fall-back
// transition.
func repeatsWallClock(t time.Time) bool {
	_, offset := t.Zone()
	_, earlierOffset := t.Add(-3 * time.Hour).Zone()
	if earlierOffset <= offset {
		return false
	}

	twin := t.Add(-time.Duration(earlierOffset-offset) * time.Second)
	return twin.YearDay() == t.YearDay() &&
		twin.Hour() == t.Hour() &&
		twin.Minute() == t.Minute() &&
		twin.Second() == t.Second()
}

// Matches reports whether t, truncated to the second, satisfies every field
// of the schedule in t's location.
func (s *Schedule) Matches(t time.Time) bool {
	if t.Nanosecond() != 0 {
		return false
	}
	return s.seconds.has(t.Second()) &&
		s.minutes.has(t.Minute()) &&
		s.hours.has(t.Hour()) &&
		s.dayMatches(t) &&
		s.months.has(int(t.Month())) &&
		s.years.has(t.Year()-MinYear)
}

// dayMatches handles the special day-of-month vs day-of-week logic
//
// Cron standard behavior:
// - If both day-of-month and day-of-week are restricted (not * or ?): match if EITHER matches (OR logic)
// - If only one is restricted: match on that field only
// - If both are *: match any day
//
// Days that do not exist in a month (Feb 30) are never produced by the
// calendar, so no extra validity check is needed here.
func (s *Schedule) dayMatches(t time.Time) bool {
	domMatch := s.daysOfMonth.has(t.Day())
	dowMatch := s.daysOfWeek.has(int(t.Weekday()))

	if s.domStar || s.dowStar {
		// The starred field is full, so this reduces to the other field
		return domMatch && dowMatch
	}

	return domMatch || dowMatch
}
