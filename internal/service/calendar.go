package service

import (
	"context"
	"time"

	"github.com/beontime/internal/db"
)

// maxCalendarDays 限制一次日历查询的跨度
const maxCalendarDays = 366

// CalendarDay 表示日历中的单日状态，Recorded 为 false 时当天尚无记录
type CalendarDay struct {
	Date      string `json:"date"`
	Recorded  bool   `json:"recorded"`
	Completed bool   `json:"completed"`
}

// CalendarStats 汇总区间内的完成情况
type CalendarStats struct {
	RangeStart     string        `json:"range_start"`
	RangeEnd       string        `json:"range_end"`
	Days           []CalendarDay `json:"days"`
	CompletedCount int           `json:"completed_count"`
	TargetCount    int           `json:"target_count"`
	CompletionRate float64       `json:"completion_rate"`
	CurrentStreak  int           `json:"current_streak"`
	LongestStreak  int           `json:"longest_streak"`
}

// Calendar 返回习惯在 [start, end] 区间内每天的完成情况与统计
func (s *HabitService) Calendar(ctx context.Context, id string, actorID uint, start, end time.Time) (*CalendarStats, error) {
	loc := s.clock.Now().Location()
	start = normalizeToDate(start.In(loc))
	end = normalizeToDate(end.In(loc))
	if end.Before(start) {
		return nil, validationError("invalid range: end before start")
	}
	if end.Sub(start) > maxCalendarDays*24*time.Hour {
		return nil, validationError("range must not exceed %d days", maxCalendarDays)
	}

	habit, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]bool, len(habit.Entries))
	for _, entry := range habit.Entries {
		byDay[entry.Day] = entry.Completed
	}

	stats := &CalendarStats{RangeStart: dayKey(start), RangeEnd: dayKey(end)}
	inRange := make([]db.HabitEntry, 0, len(habit.Entries))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := dayKey(day)
		completed, recorded := byDay[key]
		stats.Days = append(stats.Days, CalendarDay{Date: key, Recorded: recorded, Completed: completed})
		if recorded {
			inRange = append(inRange, db.HabitEntry{Day: key, Completed: completed})
		}
		if completed {
			stats.CompletedCount++
		}
	}

	stats.TargetCount = expectedCount(*habit, start, end)
	if stats.TargetCount <= 0 {
		stats.TargetCount = stats.CompletedCount
	}
	if stats.TargetCount > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TargetCount)
	}
	stats.CurrentStreak = habit.Streak
	stats.LongestStreak = LongestStreak(inRange)

	return stats, nil
}

// expectedCount 按频率估算区间内应完成的次数
func expectedCount(habit db.Habit, start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	days := int(end.Sub(start).Hours()/24) + 1

	// 每周/每月习惯的 TargetDays 表示每个周期内的目标天数
	switch habit.Frequency {
	case db.FrequencyWeekly:
		return max(1, days/7) * perPeriod(habit.TargetDays, 7)
	case db.FrequencyMonthly:
		return max(1, diffMonths(start, end)) * perPeriod(habit.TargetDays, 31)
	default:
		return days
	}
}

func perPeriod(target, limit int) int {
	return min(limit, max(1, target))
}

func diffMonths(start, end time.Time) int {
	y1, m1, _ := start.Date()
	y2, m2, _ := end.Date()

	return (y2-y1)*12 + int(m2-m1) + 1
}
