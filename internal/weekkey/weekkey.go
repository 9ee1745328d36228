// Package weekkey buckets instants into ISO-8601 weeks identified by "YYYY-Www" keys.
package weekkey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrMalformedWeekKey is returned when a string is not a valid "YYYY-Www" key.
	ErrMalformedWeekKey = errors.New("malformed week key")
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("invalid week range")
)

var keyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Key identifies one ISO week by its week-numbering year and week number.
type Key struct {
	Year int
	Week int
}

// Of returns the ISO week containing t. The calendar date is taken in t's own
// location; all arithmetic after that happens on UTC calendar days.
func Of(t time.Time) Key {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	thursday := day.AddDate(0, 0, 4-weekday)

	// ceil(dayOfYear / 7), with dayOfYear counted from 1.
	week := (thursday.YearDay() + 6) / 7
	return Key{Year: thursday.Year(), Week: week}
}

// Parse reads a "YYYY-Www" key. The week number must exist in that ISO year.
func Parse(s string) (Key, error) {
	match := keyPattern.FindStringSubmatch(s)
	if match == nil {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedWeekKey, s)
	}
	year, _ := strconv.Atoi(match[1])
	week, _ := strconv.Atoi(match[2])

	k := Key{Year: year, Week: week}
	if !k.Valid() {
		return Key{}, fmt.Errorf("%w: %q has no week %d", ErrMalformedWeekKey, s, week)
	}
	return k, nil
}

// MustParse is Parse for constant keys; it panics on error.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String renders the key as "YYYY-Www".
func (k Key) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

// Valid reports whether the week number exists in the key's ISO year.
func (k Key) Valid() bool {
	return k.Year >= 1 && k.Year <= 9999 && k.Week >= 1 && k.Week <= WeeksInYear(k.Year)
}

// Compare returns -1, 0 or +1 depending on whether k is before, equal to or after other.
func (k Key) Compare(other Key) int {
	switch {
	case k.Year < other.Year:
		return -1
	case k.Year > other.Year:
		return 1
	case k.Week < other.Week:
		return -1
	case k.Week > other.Week:
		return 1
	}
	return 0
}

// Before reports whether k is strictly earlier than other.
func (k Key) Before(other Key) bool {
	return k.Compare(other) < 0
}

// Next returns the following ISO week, rolling into week 1 of the next year.
func (k Key) Next() Key {
	if k.Week+1 > WeeksInYear(k.Year) {
		return Key{Year: k.Year + 1, Week: 1}
	}
	return Key{Year: k.Year, Week: k.Week + 1}
}

// Start returns Monday 00:00 UTC of the week.
func (k Key) Start() time.Time {
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (k.Week-1)*7)
}

// WeeksInYear returns 53 when January 1st or December 31st of year is a Thursday, else 52.
func WeeksInYear(year int) int {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec31 := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if jan1.Weekday() == time.Thursday || dec31.Weekday() == time.Thursday {
		return 53
	}
	return 52
}

// Enumerate lists every week from start to end inclusive in chronological order.
func Enumerate(start, end Key) ([]Key, error) {
	if !start.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrMalformedWeekKey, start.String())
	}
	if !end.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrMalformedWeekKey, end.String())
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start, end)
	}

	weeks := make([]Key, 0, estimateSpan(start, end))
	for k := start; !end.Before(k); k = k.Next() {
		weeks = append(weeks, k)
	}
	return weeks, nil
}

func estimateSpan(start, end Key) int {
	return (end.Year-start.Year)*53 + end.Week - start.Week + 1
}
