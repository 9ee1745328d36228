package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"example.com/ibblog/internal/weekkey"
)

// ErrUnknownPeriod is returned for leaderboard periods outside the supported set.
var ErrUnknownPeriod = errors.New("unknown leaderboard period")

// Period selects the time window a leaderboard aggregates over.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodAllTime Period = "all-time"
)

// ParsePeriod validates a period name. An empty string means weekly.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case "":
		return PeriodWeekly, nil
	case PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAllTime:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, raw)
	}
}

// LinkActivity is a group link joined with the owning workout's user and duration.
type LinkActivity struct {
	UserID          string
	DurationMinutes int
	IsQualified     bool
	WeekKey         string
	CreatedAt       time.Time
}

// LeaderboardEntry summarises one user's activity in a group over a period.
type LeaderboardEntry struct {
	UserID                 string
	Username               string
	DisplayName            string
	TotalQualifiedWorkouts int
	TotalMinutes           int
	AvgMinutes             int
}

// RankLeaderboard aggregates the group's links that fall inside period and
// ranks users by qualified workout count, highest first.
//
// The weekly window is the ISO week of now; monthly and yearly windows start at
// the first day of now's calendar month or year in now's location. Users with
// no link in the window are omitted. Ties keep the order in which users first
// appear in links (stable sort, no secondary key).
func RankLeaderboard(period Period, links []LinkActivity, members []Member, now time.Time) []LeaderboardEntry {
	inPeriod := periodFilter(period, now)

	type tally struct {
		qualified int
		minutes   int
		count     int
	}
	tallies := make(map[string]*tally)
	order := make([]string, 0)

	for _, link := range links {
		if !inPeriod(link) {
			continue
		}
		t, ok := tallies[link.UserID]
		if !ok {
			t = &tally{}
			tallies[link.UserID] = t
			order = append(order, link.UserID)
		}
		t.minutes += link.DurationMinutes
		t.count++
		if link.IsQualified {
			t.qualified++
		}
	}

	profiles := make(map[string]Member, len(members))
	for _, m := range members {
		if _, ok := profiles[m.UserID]; !ok {
			profiles[m.UserID] = m
		}
	}

	entries := make([]LeaderboardEntry, 0, len(order))
	for _, userID := range order {
		t := tallies[userID]
		profile := profiles[userID]
		entries = append(entries, LeaderboardEntry{
			UserID:                 userID,
			Username:               profile.Label(),
			DisplayName:            profile.DisplayName,
			TotalQualifiedWorkouts: t.qualified,
			TotalMinutes:           t.minutes,
			AvgMinutes:             roundedAverage(t.minutes, t.count),
		})
	}

	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		return b.TotalQualifiedWorkouts - a.TotalQualifiedWorkouts
	})
	return entries
}

func periodFilter(period Period, now time.Time) func(LinkActivity) bool {
	switch period {
	case PeriodWeekly:
		current := weekkey.Of(now).String()
		return func(l LinkActivity) bool { return l.WeekKey == current }
	case PeriodMonthly:
		start := monthStart(now)
		return func(l LinkActivity) bool { return !l.CreatedAt.Before(start) }
	case PeriodYearly:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return func(l LinkActivity) bool { return !l.CreatedAt.Before(start) }
	default:
		return func(LinkActivity) bool { return true }
	}
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// roundedAverage rounds half away from zero and returns 0 for an empty set.
func roundedAverage(total, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(count)))
}
