package cron

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Year bounds accepted by the year field.
const (
	MinYear = 1970
	MaxYear = 2099
)

// field describes one position of a cron expression
type field struct {
	name     string
	min, max int
	names    map[string]int
	dayField bool // accepts ?

	// Last value reached by * and N/S; zero means max
	openMax int
}

func (f field) openEnd() int {
	if f.openMax != 0 {
		return f.openMax
	}
	return f.max
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

var (
	secondField = field{name: "second", min: 0, max: 59}
	minuteField = field{name: "minute", min: 0, max: 59}
	hourField   = field{name: "hour", min: 0, max: 23}
	domField    = field{name: "day-of-month", min: 1, max: 31, dayField: true}
	monthField  = field{name: "month", min: 1, max: 12, names: monthNames}
	dowField    = field{name: "day-of-week", min: 0, max: 7, names: dayNames, dayField: true, openMax: 6}
	yearField   = field{name: "year", min: MinYear, max: MaxYear}
)

var descriptors = map[string]string{
	"@yearly":   "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly":  "0 0 0 1 * *",
	"@weekly":   "0 0 0 * * 0",
	"@daily":    "0 0 0 * * *",
	"@midnight": "0 0 0 * * *",
	"@hourly":   "0 0 * * * *",
}

// parse parses a cron expression into a Schedule
func parse(expr string) (*Schedule, error) {
	original := strings.TrimSpace(expr)
	text := original

	if strings.HasPrefix(text, "@") {
		expanded, ok := descriptors[strings.ToLower(text)]
		if !ok {
			return nil, errors.Mark(errors.Newf("unknown descriptor %q", text), ErrParse)
		}
		text = expanded
	}

	// Split on whitespace
	fields := strings.Fields(text)
	if len(fields) != 6 && len(fields) != 7 {
		return nil, errors.Mark(
			errors.WithHint(
				errors.Newf("expected 6 or 7 fields, got %d", len(fields)),
				"fields are: second minute hour day-of-month month day-of-week [year]"),
			ErrParse)
	}
	if len(fields) == 6 {
		fields = append(fields, "*")
	}

	s := &Schedule{original: original}

	targets := []struct {
		f   field
		dst *valueSet
	}{
		{secondField, &s.seconds},
		{minuteField, &s.minutes},
		{hourField, &s.hours},
		{domField, &s.daysOfMonth},
		{monthField, &s.months},
		{dowField, &s.daysOfWeek},
		{yearField, &s.years},
	}

	for i, target := range targets {
		vals, err := parseField(fields[i], target.f)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid %s field %q", target.f.name, fields[i]), ErrParse)
		}
		*target.dst = vals
	}

	// Sunday may be written as 0 or 7
	if s.daysOfWeek.has(7) {
		s.daysOfWeek.remove(7)
		s.daysOfWeek.add(0)
	}

	s.fixedTime = s.seconds.single() && s.minutes.single() && s.hours.single()

	s.domStar = isStar(fields[3])
	s.dowStar = isStar(fields[5])

	return s, nil
}

func isStar(text string) bool {
	return text == "*" || text == "?"
}

// parseField parses a single cron field into the set of values it allows.
// Year values are stored as offsets from MinYear.
func parseField(text string, f field) (valueSet, error) {
	var set valueSet

	if text == "" {
		return set, errors.New("empty field")
	}
	if text == "?" && !f.dayField {
		return set, errors.New("? is only allowed in day-of-month and day-of-week")
	}

	// Handle lists: 1,3,5 - every item may itself be a range or step
	for _, part := range strings.Split(text, ",") {
		if part == "" {
			return set, errors.New("empty value in list")
		}
		if err := parsePart(part, f, &set); err != nil {
			return set, err
		}
	}

	if set.empty() {
		return set, errors.New("field matches no values")
	}
	return set, nil
}

// parsePart handles one list item: *, ?, N, A-B, */S, N/S or A-B/S
func parsePart(part string, f field, set *valueSet) error {
	rangeText, stepText, hasStep := strings.Cut(part, "/")

	step := 1
	if hasStep {
		var err error
		step, err = strconv.Atoi(stepText)
		if err != nil {
			return errors.Newf("invalid step value %q", stepText)
		}
		if step <= 0 {
			return errors.New("step must be greater than 0")
		}
	}

	var start, end int
	switch {
	case isStar(rangeText):
		start, end = f.min, f.openEnd()
	case strings.Contains(rangeText, "-"):
		lo, hi, _ := strings.Cut(rangeText, "-")
		var err error
		if start, err = parseValue(lo, f); err != nil {
			return err
		}
		if end, err = parseValue(hi, f); err != nil {
			return err
		}
		if start > end {
			return errors.Newf("invalid range: start %d > end %d", start, end)
		}
	default:
		v, err := parseValue(rangeText, f)
		if err != nil {
			return err
		}
		start, end = v, v
		if hasStep {
			// N/S means every S-th value starting at N
			end = max(start, f.openEnd())
		}
	}

	for v := start; v <= end; v += step {
		if f.name == yearField.name {
			set.add(v - MinYear)
		} else {
			set.add(v)
		}
	}
	return nil
}

// parseValue parses a single integer or name and checks its bounds
func parseValue(text string, f field) (int, error) {
	if f.names != nil {
		if v, ok := f.names[strings.ToLower(text)]; ok {
			return v, nil
		}
	}

	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.Newf("invalid value %q", text)
	}

	if v < f.min || v > f.max {
		return 0, errors.Newf("value %d out of bounds [%d, %d]", v, f.min, f.max)
	}

	return v, nil
}
