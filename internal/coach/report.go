package coach

import (
	"log/slog"
	"math"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/models"
)

// weekDays is the length of a report window.
const weekDays = 7

// WeeklySummary carries the numbers and context embedded in a weekly-report
// prompt. The counts and streak are computed in code, never by the model.
type WeeklySummary struct {
	UserName         string
	Today            string // models.DateLayout
	ThisWeekCount    int
	LastWeekCount    int
	CompletenessRate int // percent, rounded
	LongestStreak    int // days
	Logs             []models.DailyLog // current window, ascending by date
	Goals            []models.Goal
	Milestones       []models.GoalBreakdown
}

// BuildWeeklySummary assembles a summary from the two report windows. The
// current window is the 7 days ending at today inclusive; the prior window is
// the 7 days immediately before it.
func BuildWeeklySummary(userName, today string, thisWeek, lastWeek []models.DailyLog, goals []models.Goal, milestones []models.GoalBreakdown) WeeklySummary {
	count := CountCheckins(thisWeek)
	return WeeklySummary{
		UserName:         userName,
		Today:            today,
		ThisWeekCount:    count,
		LastWeekCount:    CountCheckins(lastWeek),
		CompletenessRate: CompletenessRate(count),
		LongestStreak:    LongestStreak(thisWeek, today),
		Logs:             thisWeek,
		Goals:            goals,
		Milestones:       milestones,
	}
}

// CountCheckins counts logs carrying a non-empty check-in payload.
func CountCheckins(logs []models.DailyLog) int {
	count := 0
	for _, log := range logs {
		if log.HasCheckin() {
			count++
		}
	}
	return count
}

// CompletenessRate converts a check-in count over a 7-day window into a
// rounded percentage. 5 of 7 days rounds to 71.
func CompletenessRate(count int) int {
	return int(math.Round(float64(count) / weekDays * 100))
}

// LongestStreak returns the longest run of consecutive days with a non-empty
// check-in payload within the 7-day window ending at today.
func LongestStreak(logs []models.DailyLog, today string) int {
	present := make(map[string]bool, len(logs))
	for _, log := range logs {
		if log.HasCheckin() {
			present[log.Date] = true
		}
	}

	longest, run := 0, 0
	for offset := -(weekDays - 1); offset <= 0; offset++ {
		if present[shiftDate(today, offset)] {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// ReportWindows returns the inclusive date bounds of the two report windows:
// the current window [thisStart, today] and the prior window
// [lastStart, lastEnd] immediately before it.
func ReportWindows(today string) (thisStart, lastStart, lastEnd string) {
	return shiftDate(today, -(weekDays - 1)), shiftDate(today, -(2*weekDays - 1)), shiftDate(today, -weekDays)
}

// shiftDate moves a DateLayout string by the given number of days.
func shiftDate(date string, days int) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		slog.Error("coach.shiftDate: invalid date", "date", date, "error", err)
		return date
	}
	return t.AddDate(0, 0, days).Format(models.DateLayout)
}
