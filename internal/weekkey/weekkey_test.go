package weekkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfKnownDates(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"mid year", time.Date(2026, time.February, 4, 12, 0, 0, 0, time.UTC), "2026-W06"},
		{"jan 1 belongs to previous year", time.Date(2021, time.January, 1, 8, 0, 0, 0, time.UTC), "2020-W53"},
		{"dec 31 belongs to next year", time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC), "2025-W01"},
		{"monday opening week one", time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), "2026-W01"},
		{"sunday closes the week", time.Date(2024, time.January, 7, 23, 0, 0, 0, time.UTC), "2024-W01"},
		{"monday after", time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC), "2024-W02"},
		{"thursday jan 1", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), "2015-W01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Of(tc.at).String())
		})
	}
}

func TestOfUsesCalendarDateOfLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// Sunday 20:00 UTC is already Monday in Tokyo.
	instant := time.Date(2024, time.January, 7, 20, 0, 0, 0, time.UTC)

	require.Equal(t, "2024-W01", Of(instant).String())
	require.Equal(t, "2024-W02", Of(instant.In(tokyo)).String())
}

func TestOfMatchesStandardLibraryISOWeek(t *testing.T) {
	day := time.Date(2012, time.December, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2032, time.February, 1, 0, 0, 0, 0, time.UTC)
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		year, week := day.ISOWeek()
		got := Of(day)
		require.Equal(t, Key{Year: year, Week: week}, got, "date %s", day.Format(time.DateOnly))
	}
}

func TestParseRoundTrip(t *testing.T) {
	day := time.Date(2019, time.June, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3000; i++ {
		k := Of(day)
		parsed, err := Parse(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
		day = day.AddDate(0, 0, 1)
	}
}

func TestParseRejectsMalformedKeys(t *testing.T) {
	for _, raw := range []string{"", "2024", "2024-W1", "2024W01", "2024-w01", "24-W01", "2024-W00", "2021-W53", "2024-W54", "2024-W01 ", "abcd-W01"} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrMalformedWeekKey, "input %q", raw)
	}
}

func TestParseAcceptsWeek53OnlyInLongYears(t *testing.T) {
	k, err := Parse("2020-W53")
	require.NoError(t, err)
	require.Equal(t, Key{Year: 2020, Week: 53}, k)

	_, err = Parse("2023-W53")
	require.ErrorIs(t, err, ErrMalformedWeekKey)
}

func TestWeeksInYear(t *testing.T) {
	long := map[int]bool{2009: true, 2015: true, 2020: true, 2026: true, 2032: true}
	for year := 2008; year <= 2033; year++ {
		want := 52
		if long[year] {
			want = 53
		}
		require.Equal(t, want, WeeksInYear(year), "year %d", year)
	}
}

func TestEnumerateSingleWeek(t *testing.T) {
	k := MustParse("2024-W10")
	weeks, err := Enumerate(k, k)
	require.NoError(t, err)
	require.Equal(t, []Key{k}, weeks)
}

func TestEnumerateCrossesYearBoundaries(t *testing.T) {
	weeks, err := Enumerate(MustParse("2020-W52"), MustParse("2021-W02"))
	require.NoError(t, err)
	require.Equal(t, []string{"2020-W52", "2020-W53", "2021-W01", "2021-W02"}, keyStrings(weeks))

	weeks, err = Enumerate(MustParse("2023-W51"), MustParse("2024-W01"))
	require.NoError(t, err)
	require.Equal(t, []string{"2023-W51", "2023-W52", "2024-W01"}, keyStrings(weeks))
}

func TestEnumerateIsStrictlyIncreasingAndComplete(t *testing.T) {
	start := MustParse("2014-W40")
	end := MustParse("2027-W05")
	weeks, err := Enumerate(start, end)
	require.NoError(t, err)

	// Every enumerated week starts exactly seven days after the previous one.
	require.Equal(t, start, weeks[0])
	require.Equal(t, end, weeks[len(weeks)-1])
	for i := 1; i < len(weeks); i++ {
		require.True(t, weeks[i-1].Before(weeks[i]))
		require.Equal(t, weeks[i-1].Start().AddDate(0, 0, 7), weeks[i].Start())
	}
	wantLen := int(end.Start().Sub(start.Start()).Hours()/(24*7)) + 1
	require.Len(t, weeks, wantLen)
}

func TestEnumerateRejectsInvertedRange(t *testing.T) {
	_, err := Enumerate(MustParse("2024-W05"), MustParse("2024-W04"))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestEnumerateRejectsInvalidKeys(t *testing.T) {
	_, err := Enumerate(Key{Year: 2023, Week: 53}, MustParse("2024-W04"))
	require.ErrorIs(t, err, ErrMalformedWeekKey)
}

func TestStartIsMondayOfWeek(t *testing.T) {
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), MustParse("2024-W01").Start())
	require.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), MustParse("2026-W01").Start())
	require.Equal(t, time.Date(2020, time.December, 28, 0, 0, 0, 0, time.UTC), MustParse("2020-W53").Start())
}

func keyStrings(keys []Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
