package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
	"github.com/dustin/go-humanize"
)

const (
	statsWeekDays      = 7
	statsRecentNotices = 5
)

// 今日习惯的状态
const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
)

// DayCount 是某一天所有习惯的完成次数
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TodayHabit 是概览中今日习惯的一行
type TodayHabit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	Status    string `json:"status"`
}

// RecentNotice 是概览中的未读通知摘要
type RecentNotice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	Ago       string    `json:"ago"`
}

// UserStats 是用户的习惯概览
type UserStats struct {
	TotalHabits         int            `json:"total_habits"`
	CompletedToday      int            `json:"completed_today"`
	LongestStreak       int            `json:"longest_streak"`
	CompletionRate      int            `json:"completion_rate"`
	Weekly              []DayCount     `json:"weekly"`
	TodayHabits         []TodayHabit   `json:"today_habits"`
	RecentNotifications []RecentNotice `json:"recent_notifications"`
}

// HabitStats 是单个习惯的累计统计
type HabitStats struct {
	Streak           int     `json:"streak"`
	Progress         int     `json:"progress"`
	StreakGoal       int     `json:"streak_goal"`
	TotalCompletions int     `json:"total_completions"`
	LastCompleted    *string `json:"last_completed"`
}

// StatsService 汇总习惯账本与未读通知，生成只读统计
type StatsService struct {
	habits        *HabitService
	notifications *store.NotificationStore
	clock         clock.Clock
	timeout       time.Duration
}

// NewStatsService 构造 StatsService
func NewStatsService(habits *HabitService, notifications *store.NotificationStore, clk clock.Clock, timeout time.Duration) *StatsService {
	return &StatsService{habits: habits, notifications: notifications, clock: clk, timeout: timeout}
}

// UserStats 返回调用者的概览：习惯总数、今日完成数、连胜、完成率、近 7 天曲线、今日习惯与最近未读通知
func (s *StatsService) UserStats(ctx context.Context, actorID uint) (*UserStats, error) {
	habits, err := s.habits.List(ctx, actorID, store.HabitFilter{})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := normalizeToDate(now)
	todayKey := dayKey(today)

	stats := &UserStats{TotalHabits: len(habits)}

	weekStart := today.AddDate(0, 0, -(statsWeekDays - 1))
	perDay := make(map[string]int, statsWeekDays)
	completed, recorded := 0, 0
	active := make([]db.Habit, 0, len(habits))

	for _, habit := range habits {
		stats.LongestStreak = max(stats.LongestStreak, ComputeStreak(habit.Entries, now))
		for _, entry := range habit.Entries {
			recorded++
			if !entry.Completed {
				continue
			}
			completed++
			if entry.Day >= dayKey(weekStart) && entry.Day <= todayKey {
				perDay[entry.Day]++
			}
		}
		if entry, ok := findEntry(habit.Entries, todayKey); ok && entry.Completed {
			stats.CompletedToday++
		}
		if activeOn(habit, today) {
			active = append(active, habit)
		}
	}

	if recorded > 0 {
		stats.CompletionRate = int(math.Round(100 * float64(completed) / float64(recorded)))
	}

	stats.Weekly = make([]DayCount, 0, statsWeekDays)
	for day := weekStart; !day.After(today); day = day.AddDate(0, 0, 1) {
		stats.Weekly = append(stats.Weekly, DayCount{Date: dayKey(day), Count: perDay[dayKey(day)]})
	}

	sortByStartTime(active)
	stats.TodayHabits = make([]TodayHabit, 0, len(active))
	for _, habit := range active {
		status := StatusPending
		if entry, ok := findEntry(habit.Entries, todayKey); ok && entry.Completed {
			status = StatusCompleted
		}
		stats.TodayHabits = append(stats.TodayHabits, TodayHabit{ID: habit.ID, Title: habit.Title, StartTime: habit.StartTime, Status: status})
	}

	stats.RecentNotifications, err = s.recentNotices(ctx, actorID, now)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// HabitStats 返回单个习惯的累计完成情况，非所有者返回 ErrForbidden
func (s *StatsService) HabitStats(ctx context.Context, id string, actorID uint) (*HabitStats, error) {
	habit, err := s.habits.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	stats := &HabitStats{
		Streak:     habit.Streak,
		Progress:   habit.Progress,
		StreakGoal: habit.StreakGoal,
	}

	days := make([]string, 0, len(habit.Entries))
	for _, entry := range habit.Entries {
		if entry.Completed {
			days = append(days, entry.Day)
		}
	}
	stats.TotalCompletions = len(days)
	if len(days) > 0 {
		sort.Strings(days)
		stats.LastCompleted = &days[len(days)-1]
	}
	return stats, nil
}

func (s *StatsService) recentNotices(ctx context.Context, actorID uint, now time.Time) ([]RecentNotice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.notifications.ListUnread(ctx, actorID, statsRecentNotices)
	if err != nil {
		return nil, translateStoreError(err, ErrNotificationNotFound)
	}

	notices := make([]RecentNotice, 0, len(items))
	for _, n := range items {
		notices = append(notices, RecentNotice{
			ID:        n.ID,
			Message:   n.Message,
			Level:     noticeLevel(n.Type),
			CreatedAt: n.CreatedAt,
			Ago:       humanize.RelTime(n.CreatedAt, now, "ago", "from now"),
		})
	}
	return notices, nil
}

// noticeLevel 将通知类型映射为展示级别
func noticeLevel(kind string) string {
	switch kind {
	case db.NotificationHabitStart, db.NotificationHabitEnd:
		return "warning"
	case db.NotificationStreakAchievement:
		return "success"
	default:
		return "info"
	}
}
