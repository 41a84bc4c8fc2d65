// Package aggregate derives per-day and current-day statistics from interval
// snapshots. Grouping keys off the local calendar date of the interval start:
// an outage starting late on day D and ending on D+1 counts entirely for D.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/plugwatch/plugwatch/internal/model"
)

const dateLayout = "2006-01-02"

// DayBounds returns the [start, end) millisecond range of the local calendar
// day containing ts.
func DayBounds(ts time.Time, loc *time.Location) (startMs, endMs int64) {
	local := ts.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli()
}

// TodayTotals computes the live rollup for the local day containing now.
// Ongoing intervals count toward the event count but contribute zero stored
// duration; callers showing live elapsed time compute now-start themselves.
func TodayTotals(intervals []model.OutageInterval, now time.Time, loc *time.Location) model.TodayTotals {
	startMs, endMs := DayBounds(now, loc)

	totals := model.TodayTotals{}
	for _, iv := range intervals {
		if iv.StartTimeMs < startMs || iv.StartTimeMs >= endMs {
			continue
		}
		totals.EventCount++
		if iv.DurationSeconds != nil {
			totals.TotalDurationSeconds += *iv.DurationSeconds
		}
	}
	totals.FormattedDuration = FormatDuration(totals.TotalDurationSeconds)
	return totals
}

// GroupByDay rolls intervals up by the local date of their start, newest date
// first.
func GroupByDay(intervals []model.OutageInterval, loc *time.Location) []model.DailyTotal {
	byDate := make(map[string]*model.DailyTotal)
	for _, iv := range intervals {
		date := iv.StartTime(loc).Format(dateLayout)
		total, ok := byDate[date]
		if !ok {
			total = &model.DailyTotal{Date: date}
			byDate[date] = total
		}
		total.EventCount++
		if iv.DurationSeconds != nil {
			total.TotalDurationSeconds += *iv.DurationSeconds
		}
	}

	result := make([]model.DailyTotal, 0, len(byDate))
	for _, total := range byDate {
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date > result[j].Date
	})
	return result
}

// FormatDuration renders total seconds as "1h 1m 1s", dropping leading zero
// units ("5m 30s", "12s").
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
