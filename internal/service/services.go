package service

import (
	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/config"
	"github.com/beontime/internal/store"
	"gorm.io/gorm"
)

// Services 汇总 HTTP 层与命令行共用的服务实例
type Services struct {
	Habits        *HabitService
	Completion    *CompletionEngine
	Notifications *NotificationService
	Challenges    *ChallengeService
	Scheduler     *Scheduler
	Stats         *StatsService
	Users         *store.UserStore
}

// NewServices 基于同一个数据库连接装配全部服务
func NewServices(gdb *gorm.DB, cfg config.AppConfig, clk clock.Clock, sender MessageSender) *Services {
	habitStore := store.NewHabitStore(gdb)
	notificationStore := store.NewNotificationStore(gdb)
	notifications := NewNotificationService(notificationStore, sender, clk, cfg.StoreTimeout, cfg.DeliveryTimeout)
	habits := NewHabitService(habitStore, clk, cfg.StoreTimeout)
	challenges := NewChallengeService(store.NewChallengeStore(gdb), habits, clk, cfg.StoreTimeout)
	matcher := NewReminderMatcher(cfg.ReminderTolerance, nil)

	return &Services{
		Habits:        habits,
		Completion:    NewCompletionEngine(habitStore, notifications, challenges, clk, cfg.StoreTimeout),
		Notifications: notifications,
		Challenges:    challenges,
		Scheduler:     NewScheduler(habitStore, notifications, matcher, clk, cfg.PollInterval, cfg.StoreTimeout),
		Stats:         NewStatsService(habits, notificationStore, clk, cfg.StoreTimeout),
		Users:         store.NewUserStore(gdb),
	}
}
