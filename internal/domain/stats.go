package domain

import (
	"time"

	"example.com/ibblog/internal/weekkey"
)

// UserStats summarises a user's whole workout history.
//
// DayDistribution is indexed by time.Weekday: index 0 is Sunday and index 6 is
// Saturday, using the weekday of CreatedAt in its own location.
type UserStats struct {
	TotalWorkouts   int
	TotalMinutes    int
	AvgMinutes      int
	LongestWorkout  int
	ThisWeekCount   int
	ThisMonthCount  int
	CurrentStreak   int
	BestStreak      int
	DayDistribution [7]int
}

// ComputeUserStats rolls up the workout history of one user as of now.
//
// A week qualifies for streak purposes when any group link of any workout in
// that week is qualified. Malformed week keys on links are reported as
// weekkey.ErrMalformedWeekKey.
func ComputeUserStats(workouts []Workout, now time.Time) (UserStats, error) {
	var stats UserStats
	if len(workouts) == 0 {
		return stats, nil
	}

	current := weekkey.Of(now)
	startOfMonth := monthStart(now)
	qualifying := make(map[weekkey.Key]struct{})

	for _, w := range workouts {
		stats.TotalMinutes += w.DurationMinutes
		if w.DurationMinutes > stats.LongestWorkout {
			stats.LongestWorkout = w.DurationMinutes
		}

		stats.DayDistribution[w.CreatedAt.Weekday()]++

		if !w.CreatedAt.Before(startOfMonth) {
			stats.ThisMonthCount++
		}
		if weekkey.Of(w.CreatedAt) == current {
			stats.ThisWeekCount++
		}

		for _, link := range w.Links {
			if !link.IsQualified {
				continue
			}
			k, err := weekkey.Parse(link.WeekKey)
			if err != nil {
				return UserStats{}, err
			}
			qualifying[k] = struct{}{}
		}
	}

	stats.TotalWorkouts = len(workouts)
	stats.AvgMinutes = roundedAverage(stats.TotalMinutes, stats.TotalWorkouts)

	currentStreak, bestStreak, err := ComputeStreaks(qualifying, current)
	if err != nil {
		return UserStats{}, err
	}
	stats.CurrentStreak = currentStreak
	stats.BestStreak = bestStreak
	return stats, nil
}

// ComputeStreaks walks every ISO week from the earliest qualifying week through
// current, counting consecutive qualifying weeks. The current streak is the
// running count after the walk, so a non-qualifying current week yields 0.
//
// Qualifying weeks later than current are ignored.
func ComputeStreaks(qualifying map[weekkey.Key]struct{}, current weekkey.Key) (currentStreak, bestStreak int, err error) {
	var earliest weekkey.Key
	found := false
	for k := range qualifying {
		if current.Before(k) {
			continue
		}
		if !found || k.Before(earliest) {
			earliest = k
			found = true
		}
	}
	if !found {
		return 0, 0, nil
	}

	weeks, err := weekkey.Enumerate(earliest, current)
	if err != nil {
		return 0, 0, err
	}

	streak := 0
	for _, week := range weeks {
		if _, ok := qualifying[week]; ok {
			streak++
			if streak > bestStreak {
				bestStreak = streak
			}
			continue
		}
		streak = 0
	}
	return streak, bestStreak, nil
}
