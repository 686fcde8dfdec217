package service

import (
	"math"
	"sort"
	"time"

	"github.com/beontime/internal/db"
)

const dayFormat = "2006-01-02"

// ComputeStreak 计算截至 today 的连续完成天数。
// 过去的日期必须有 completed=true 的记录，缺失或 completed=false 都会中断连胜；
// 今天尚无记录视为"未决"，从昨天开始回溯；今天明确未完成则为 0。
func ComputeStreak(entries []db.HabitEntry, today time.Time) int {
	streak, _ := currentRun(entries, today)
	return streak
}

// currentRun 返回截至 today 的连胜长度及该连胜最后一个完成日
func currentRun(entries []db.HabitEntry, today time.Time) (int, time.Time) {
	cursor := normalizeToDate(today)
	if len(entries) == 0 {
		return 0, cursor
	}

	byDay := make(map[string]bool, len(entries))
	for _, entry := range entries {
		byDay[entry.Day] = entry.Completed
	}

	completed, decided := byDay[dayKey(cursor)]
	if !decided {
		cursor = cursor.AddDate(0, 0, -1)
	} else if !completed {
		return 0, cursor
	}

	last := cursor
	streak := 0
	for byDay[dayKey(cursor)] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, last
}

// ComputeProgress 返回完成天数占已记录天数的百分比（四舍五入，0-100）。
func ComputeProgress(entries []db.HabitEntry) int {
	total := len(entries)
	if total == 0 {
		return 0
	}

	completed := 0
	for _, entry := range entries {
		if entry.Completed {
			completed++
		}
	}

	progress := int(math.Round(100 * float64(completed) / float64(total)))
	return min(100, max(0, progress))
}

// LongestStreak 返回账本中出现过的最长连续完成天数
func LongestStreak(entries []db.HabitEntry) int {
	days := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		if !entry.Completed {
			continue
		}
		if t, err := time.Parse(dayFormat, entry.Day); err == nil {
			days = append(days, t)
		}
	}
	if len(days) == 0 {
		return 0
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Equal(days[i-1].AddDate(0, 0, 1)) {
			current++
			longest = max(longest, current)
		} else {
			current = 1
		}
	}
	return longest
}

// upsertEntry 返回写入 day 记录后的账本副本，保证同一天只有一条记录
func upsertEntry(entries []db.HabitEntry, day string, completed bool) []db.HabitEntry {
	next := make([]db.HabitEntry, 0, len(entries)+1)
	found := false
	for _, entry := range entries {
		if entry.Day == day {
			entry.Completed = completed
			found = true
		}
		next = append(next, entry)
	}
	if !found {
		next = append(next, db.HabitEntry{Day: day, Completed: completed})
	}
	return next
}

func findEntry(entries []db.HabitEntry, day string) (db.HabitEntry, bool) {
	for _, entry := range entries {
		if entry.Day == day {
			return entry, true
		}
	}
	return db.HabitEntry{}, false
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format(dayFormat)
}
