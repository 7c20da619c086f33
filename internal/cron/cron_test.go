package cron

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

// Test helpers

func mustParse(t *testing.T, expr string) *Schedule {
	t.Helper()
	cs, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) unexpected error: %v", expr, err)
	}
	return cs
}

func mustNext(t *testing.T, cs *Schedule, after time.Time) time.Time {
	t.Helper()
	next, err := cs.Next(after)
	if err != nil {
		t.Fatalf("Next(%v) for %q unexpected error: %v", after, cs, err)
	}
	return next
}

func assertTimes(t *testing.T, expected, actual []time.Time) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("length mismatch: expected %d times, got %d (%v)", len(expected), len(actual), actual)
	}
	for i := range expected {
		if !expected[i].Equal(actual[i]) {
			t.Errorf("time[%d] mismatch: expected %v, got %v", i, expected[i], actual[i])
		}
	}
}

func makeTime(year, month, day, hour, minute, second int) time.Time {
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

// bruteForceNext scans second by second; the reference for Next.
func bruteForceNext(cs *Schedule, after time.Time, limit time.Duration) (time.Time, bool) {
	t := after.Truncate(time.Second).Add(time.Second)
	end := after.Add(limit)
	for !t.After(end) {
		if cs.Matches(t) {
			return t, true
		}
		t = t.Add(time.Second)
	}
	return time.Time{}, false
}

// Parse tests

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		expr string
		desc string
	}{
		{"* * * * * *", "every second"},
		{"0 * * * * *", "every minute"},
		{"0 0 * * * *", "every hour"},
		{"0 0 0 * * *", "every day"},
		{"0 0 0 * * 0", "every Sunday"},
		{"0 0 0 * * 7", "every Sunday written as 7"},
		{"0 30 9,12,15 1,15 May-Aug Mon,Wed,Fri 2018/2", "full seven field example"},
		{"1/4 * * * * *", "every 4 seconds from 1"},
		{"*/15 9-17 * * * 1-5", "quarter hours on weekdays"},
		{"0 0 12 ? * WED", "question mark for day-of-month"},
		{"0 0 0 1 jan *", "lowercase month name"},
		{"0 0 0 * * sun-sat", "weekday name range"},
		{"0 5-59/10 * * * *", "stepped range"},
		{"0 0 0 1 1 * 2030", "single year"},
		{"@hourly", "hourly descriptor"},
		{"@DAILY", "uppercase descriptor"},
		{"  0 0 0 * * *  ", "surrounding whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if _, err := Parse(tt.expr); err != nil {
				t.Errorf("Parse(%q) unexpected error: %v", tt.expr, err)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		expr string
		desc string
	}{
		{"", "empty string"},
		{"* * * * *", "five fields"},
		{"* * * * * * * *", "eight fields"},
		{"60 * * * * *", "second 60"},
		{"0 60 * * * *", "minute 60"},
		{"0 0 24 * * *", "hour 24"},
		{"0 0 0 0 * *", "day-of-month 0"},
		{"0 0 0 32 * *", "day-of-month 32"},
		{"0 0 0 * 13 *", "month 13"},
		{"0 0 0 * 0 *", "month 0"},
		{"0 0 0 * * 8", "day-of-week 8"},
		{"0 0 0 * * * 1969", "year before range"},
		{"0 0 0 * * * 2100", "year after range"},
		{"0 0 10-5 * * *", "inverted range"},
		{"*/0 * * * * *", "zero step"},
		{"*/-1 * * * * *", "negative step"},
		{"*/x * * * * *", "non-numeric step"},
		{"a * * * * *", "non-numeric value"},
		{"1,,2 * * * * *", "empty list item"},
		{"? * * * * *", "question mark in seconds"},
		{"0 0 0 * Foo *", "unknown month name"},
		{"0 0 0 * * Funday", "unknown day name"},
		{"@fortnightly", "unknown descriptor"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got nil", tt.expr)
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("Parse(%q) error %v is not ErrParse", tt.expr, err)
			}
		})
	}
}

func TestParse_ErrorNamesField(t *testing.T) {
	_, err := Parse("0 0 24 * * *")
	if err == nil {
		t.Fatal("expected error")
	}
	want := `invalid hour field "24": value 24 out of bounds [0, 23]`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestParse_NamesNormalized(t *testing.T) {
	named := mustParse(t, "0 0 0 * May-Aug Mon,Wed,Fri")
	numeric := mustParse(t, "0 0 0 * 5-8 1,3,5")

	if named.months != numeric.months {
		t.Errorf("month names not normalized: %v vs %v", named.months, numeric.months)
	}
	if named.daysOfWeek != numeric.daysOfWeek {
		t.Errorf("day names not normalized: %v vs %v", named.daysOfWeek, numeric.daysOfWeek)
	}
}

func TestParse_StepFromStart(t *testing.T) {
	cs := mustParse(t, "50/4 * * * * *")

	for _, v := range []int{50, 54, 58} {
		if !cs.seconds.has(v) {
			t.Errorf("expected second %d to be allowed", v)
		}
	}
	for _, v := range []int{0, 49, 51, 59} {
		if cs.seconds.has(v) {
			t.Errorf("expected second %d to be disallowed", v)
		}
	}
}

func TestParse_SundayAliases(t *testing.T) {
	zero := mustParse(t, "0 0 0 * * 0")
	seven := mustParse(t, "0 0 0 * * 7")
	if zero.daysOfWeek != seven.daysOfWeek {
		t.Errorf("expected 0 and 7 to both mean Sunday")
	}
}

func TestParse_DayOfWeekStepStopsAtSaturday(t *testing.T) {
	cs := mustParse(t, "0 0 0 * * 1/2")

	// 2024-01-01 is a Monday
	for day, want := range map[int]bool{1: true, 2: false, 3: true, 5: true, 6: false, 7: false} {
		if got := cs.Matches(makeTime(2024, 1, day, 0, 0, 0)); got != want {
			t.Errorf("1/2 on 2024-01-%02d (%s): expected %v, got %v",
				day, makeTime(2024, 1, day, 0, 0, 0).Weekday(), want, got)
		}
	}

	if mustParse(t, "0 0 0 * * */3").daysOfWeek != mustParse(t, "0 0 0 * * 0,3,6").daysOfWeek {
		t.Error("expected */3 to be Sunday, Wednesday and Saturday")
	}
	if mustParse(t, "0 0 0 * * 7/2").daysOfWeek != mustParse(t, "0 0 0 * * 0").daysOfWeek {
		t.Error("expected 7/2 to be Sunday only")
	}
}

func TestString_ReturnsOriginal(t *testing.T) {
	cs := mustParse(t, "@weekly")
	if cs.String() != "@weekly" {
		t.Errorf("expected @weekly, got %s", cs.String())
	}
}

// Next tests

func TestNext_DailyAtNineThirty(t *testing.T) {
	cs := mustParse(t, "0 30 9 * * *")

	got := mustNext(t, cs, makeTime(2024, 1, 1, 9, 0, 0))
	if want := makeTime(2024, 1, 1, 9, 30, 0); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Exclusive of 'after'
	got = mustNext(t, cs, makeTime(2024, 1, 1, 9, 30, 0))
	if want := makeTime(2024, 1, 2, 9, 30, 0); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_SubSecondAfter(t *testing.T) {
	cs := mustParse(t, "* * * * * *")
	after := makeTime(2024, 1, 1, 0, 0, 0).Add(500 * time.Millisecond)

	got := mustNext(t, cs, after)
	if want := makeTime(2024, 1, 1, 0, 0, 1); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_DayOfMonthOrDayOfWeek(t *testing.T) {
	cs := mustParse(t, "0 0 0 15 * 1") // midnight on the 15th OR any Monday

	// 2024-01-08 is a Monday that is not the 15th
	if !cs.Matches(makeTime(2024, 1, 8, 0, 0, 0)) {
		t.Error("expected Monday 2024-01-08 to match")
	}
	// 2024-02-15 is a Thursday
	if !cs.Matches(makeTime(2024, 2, 15, 0, 0, 0)) {
		t.Error("expected Thursday 2024-02-15 to match")
	}
	// 2024-01-09 is a Tuesday and not the 15th
	if cs.Matches(makeTime(2024, 1, 9, 0, 0, 0)) {
		t.Error("expected Tuesday 2024-01-09 not to match")
	}

	got, err := cs.NextN(makeTime(2024, 2, 10, 0, 0, 0), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2024, 2, 12, 0, 0, 0), // Mon
		makeTime(2024, 2, 15, 0, 0, 0), // Thu 15th
		makeTime(2024, 2, 19, 0, 0, 0), // Mon
		makeTime(2024, 2, 26, 0, 0, 0), // Mon
	}, got)
}

func TestNext_OnlyDayOfWeekRestricted(t *testing.T) {
	cs := mustParse(t, "0 0 0 * * MON")

	got, err := cs.NextN(makeTime(2024, 1, 1, 0, 0, 0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2024, 1, 8, 0, 0, 0),
		makeTime(2024, 1, 15, 0, 0, 0),
	}, got)
}

func TestNext_StepDayOfMonthIsRestricted(t *testing.T) {
	// */10 is not a plain star, so the OR rule applies with Sunday
	cs := mustParse(t, "0 0 0 */10 * SUN")

	got, err := cs.NextN(makeTime(2024, 3, 1, 12, 0, 0), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2024, 3, 3, 0, 0, 0),  // Sun
		makeTime(2024, 3, 10, 0, 0, 0), // Sun
		makeTime(2024, 3, 11, 0, 0, 0), // 11th (1 + 10)
	}, got)
}

func TestNext_LeapDay(t *testing.T) {
	cs := mustParse(t, "0 0 0 29 2 *")

	got := mustNext(t, cs, makeTime(2024, 3, 1, 0, 0, 0))
	if want := makeTime(2028, 2, 29, 0, 0, 0); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_MonthEnd(t *testing.T) {
	cs := mustParse(t, "0 0 0 31 * *")

	got, err := cs.NextN(makeTime(2024, 1, 31, 0, 0, 0), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2024, 3, 31, 0, 0, 0),
		makeTime(2024, 5, 31, 0, 0, 0),
		makeTime(2024, 7, 31, 0, 0, 0),
	}, got)
}

func TestNext_YearRollover(t *testing.T) {
	cs := mustParse(t, "0 0 0 1 1 *")

	got := mustNext(t, cs, makeTime(2024, 6, 1, 0, 0, 0))
	if want := makeTime(2025, 1, 1, 0, 0, 0); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_YearField(t *testing.T) {
	cs := mustParse(t, "0 30 9 1 May * 2018/2")

	got, err := cs.NextN(makeTime(2017, 1, 1, 0, 0, 0), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2018, 5, 1, 9, 30, 0),
		makeTime(2020, 5, 1, 9, 30, 0),
		makeTime(2022, 5, 1, 9, 30, 0),
	}, got)
}

func TestNext_ImpossibleDateExhausts(t *testing.T) {
	cs := mustParse(t, "0 0 0 31 2 *")

	_, err := cs.Next(makeTime(2024, 1, 1, 0, 0, 0))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestNext_PastYearExhausts(t *testing.T) {
	cs := mustParse(t, "0 0 0 1 1 * 2020")

	_, err := cs.Next(makeTime(2024, 1, 1, 0, 0, 0))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestNext_FarFutureYearBeyondHorizon(t *testing.T) {
	cs := mustParse(t, "0 0 0 1 1 * 2090")

	_, err := cs.Next(makeTime(2024, 1, 1, 0, 0, 0))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch beyond the search horizon, got %v", err)
	}
}

func TestNextN_StopsAtExhaustion(t *testing.T) {
	cs := mustParse(t, "0 0 0 1 1 * 2025-2026")

	got, err := cs.NextN(makeTime(2024, 6, 1, 0, 0, 0), 5)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	assertTimes(t, []time.Time{
		makeTime(2025, 1, 1, 0, 0, 0),
		makeTime(2026, 1, 1, 0, 0, 0),
	}, got)
}

func TestNext_Location(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	cs := mustParse(t, "0 0 9 * * *")

	after := time.Date(2024, 1, 1, 10, 0, 0, 0, loc)
	got := mustNext(t, cs, after)

	want := time.Date(2024, 1, 2, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got.Location() != loc {
		t.Errorf("expected result in %v, got %v", loc, got.Location())
	}
}

func TestNext_DSTSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	// 02:30 does not exist on 2024-03-10
	cs := mustParse(t, "0 30 2 * * *")

	got := mustNext(t, cs, time.Date(2024, 3, 9, 12, 0, 0, 0, loc))
	want := time.Date(2024, 3, 11, 2, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_DSTFallBackFixedTimeOnce(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	// 01:00-02:00 happens twice on 2024-11-03
	cs := mustParse(t, "0 30 1 * * *")

	first := mustNext(t, cs, time.Date(2024, 11, 3, 0, 0, 0, 0, loc))
	if want := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC); !first.Equal(want) {
		t.Errorf("expected first run at %v, got %v", want, first)
	}

	second := mustNext(t, cs, first)
	if want := time.Date(2024, 11, 4, 6, 30, 0, 0, time.UTC); !second.Equal(want) {
		t.Errorf("expected the repeated 01:30 to be skipped, got %v", second)
	}

	// Started inside the repeated hour, after the first 01:30
	resumed := mustNext(t, cs, time.Date(2024, 11, 3, 5, 45, 0, 0, time.UTC).In(loc))
	if want := time.Date(2024, 11, 4, 6, 30, 0, 0, time.UTC); !resumed.Equal(want) {
		t.Errorf("expected next day, got %v", resumed)
	}
}

func TestNext_DSTFallBackIntervalRunsBothHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	cs := mustParse(t, "0 */30 * * * *")

	got, err := cs.NextN(time.Date(2024, 11, 3, 4, 45, 0, 0, time.UTC).In(loc), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, []time.Time{
		time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC),
		time.Date(2024, 11, 3, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC),
	}, got)
}

func TestNext_StrictlyLaterAndNoEarlierMatch(t *testing.T) {
	exprs := []string{
		"* * * * * *",
		"*/7 * * * * *",
		"0 */13 * * * *",
		"30 15 */5 * * *",
		"0 0 0 15 * 1",
		"0 0 12 * * MON-FRI",
		"15,45 5 1-3 * * *",
		"0 0 0 1 * *",
	}
	starts := []time.Time{
		makeTime(2024, 1, 1, 0, 0, 0),
		makeTime(2024, 2, 28, 23, 59, 59),
		makeTime(2023, 12, 31, 23, 59, 30),
		makeTime(2024, 7, 15, 13, 14, 15),
	}

	for _, expr := range exprs {
		cs := mustParse(t, expr)
		for _, start := range starts {
			got, err := cs.Next(start)
			if err != nil {
				t.Fatalf("Next(%v) for %q unexpected error: %v", start, expr, err)
			}
			if !got.After(start) {
				t.Errorf("%q: Next(%v) = %v is not strictly later", expr, start, got)
			}
			if !cs.Matches(got) {
				t.Errorf("%q: Next(%v) = %v does not match the schedule", expr, start, got)
			}
			want, ok := bruteForceNext(cs, start, 40*24*time.Hour)
			if ok && !want.Equal(got) {
				t.Errorf("%q: Next(%v) = %v, brute force found %v", expr, start, got, want)
			}
		}
	}
}
