package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beontime/internal/db"
)

// ReminderClass 表示一类到期提醒
type ReminderClass string

const (
	ReminderStart           ReminderClass = "start"
	ReminderEndApproaching  ReminderClass = "end_approaching"
	ReminderStreakMilestone ReminderClass = "streak_milestone"
)

// DefaultReminderTolerance 是轮询周期为 60 秒时的匹配容差
const DefaultReminderTolerance = 30 * time.Second

// DueReminder 描述一次到期提醒
// Marker 与 Class 一起构成去重键：开始/结束提醒为日历日，里程碑为 "<连胜>@<起始日>"
type DueReminder struct {
	Class  ReminderClass
	Marker string
	At     time.Time
}

// ReminderMatcher 判断某个时刻习惯是否有提醒到期，本身不保存任何状态
type ReminderMatcher struct {
	Tolerance time.Duration
	Location  *time.Location
}

// NewReminderMatcher 构造匹配器，tolerance 非正时使用默认值
func NewReminderMatcher(tolerance time.Duration, loc *time.Location) ReminderMatcher {
	if tolerance <= 0 {
		tolerance = DefaultReminderTolerance
	}
	return ReminderMatcher{Tolerance: tolerance, Location: loc}
}

// Match 返回 now 时刻到期的开始/结束提醒
func (m ReminderMatcher) Match(habit db.Habit, now time.Time) []DueReminder {
	if !habit.NotifyEnabled {
		return nil
	}
	now = m.localize(now)
	today := normalizeToDate(now)

	var due []DueReminder

	if habit.NotifyStart && habit.StartTime != "" && activeOn(habit, today) {
		if target, ok := atTimeOfDay(today, habit.StartTime); ok && m.within(now, target) {
			due = append(due, DueReminder{Class: ReminderStart, Marker: dayKey(today), At: target})
		}
	}

	if habit.NotifyEnd && habit.EndTime != "" {
		lead := time.Duration(endReminderMinutes(habit)) * time.Minute
		// 结束时间减去提前量可能跨过午夜，因此同时检查明天的结束时间
		for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
			if !activeOn(habit, day) {
				continue
			}
			end, ok := atTimeOfDay(day, habit.EndTime)
			if !ok {
				break
			}
			target := end.Add(-lead)
			if m.within(now, target) {
				due = append(due, DueReminder{Class: ReminderEndApproaching, Marker: dayKey(day), At: target})
				break
			}
		}
	}

	return due
}

// MatchMilestone 根据完成账本判断当前连胜是否达到 7 的倍数。
// 连胜可能结束于昨天（今天尚未记录），标记取该连胜的真实起始日，因此同一段连胜只会命中一次。
func (m ReminderMatcher) MatchMilestone(habit db.Habit, now time.Time) (DueReminder, bool) {
	streak, lastDay := currentRun(habit.Entries, m.localize(now))
	if streak <= 0 || streak%7 != 0 {
		return DueReminder{}, false
	}

	runStart := lastDay.AddDate(0, 0, -(streak - 1))
	return DueReminder{
		Class:  ReminderStreakMilestone,
		Marker: fmt.Sprintf("%d@%s", streak, dayKey(runStart)),
		At:     now,
	}, true
}

func (m ReminderMatcher) within(now, target time.Time) bool {
	return !now.Before(target.Add(-m.Tolerance)) && now.Before(target.Add(m.Tolerance))
}

func (m ReminderMatcher) localize(t time.Time) time.Time {
	if m.Location == nil {
		return t
	}
	return t.In(m.Location)
}

// activeOn 判断习惯在 day 当天是否处于有效期内
func activeOn(habit db.Habit, day time.Time) bool {
	key := dayKey(day)
	if dayKey(habit.StartDate.In(day.Location())) > key {
		return false
	}
	if habit.EndDate != nil && dayKey(habit.EndDate.In(day.Location())) < key {
		return false
	}
	return true
}

// atTimeOfDay 将 HH:mm 解析为 day 当天的具体时刻
func atTimeOfDay(day time.Time, clock string) (time.Time, bool) {
	hour, minute, ok := parseTimeOfDay(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), true
}

func parseTimeOfDay(value string) (int, int, bool) {
	if !timeOfDayPattern.MatchString(value) {
		return 0, 0, false
	}
	parts := strings.SplitN(value, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	return hour, minute, true
}

func endReminderMinutes(habit db.Habit) int {
	if habit.EndReminderMinutes <= 0 {
		return db.DefaultEndReminderMinutes
	}
	return habit.EndReminderMinutes
}
