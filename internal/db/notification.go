package db

import (
	"time"

	"gorm.io/datatypes"
)

// 通知类型
const (
	NotificationHabitStart        = "habit_start"
	NotificationHabitEnd          = "habit_end"
	NotificationStreakAchievement = "streak_achievement"
	NotificationHabitCompletion   = "habit_completion"
	NotificationSystem            = "system"
)

// Notification 是站内通知。创建后只允许 Read 由 false 变为 true。
type Notification struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   uint   `gorm:"not null;index:idx_notification_owner_read,priority:1"`
	Type      string `gorm:"size:32;not null"`
	Title     string `gorm:"not null"`
	Message   string `gorm:"type:text;not null"`
	Read      bool   `gorm:"index:idx_notification_owner_read,priority:2"`
	ReadAt    *time.Time
	Data      datatypes.JSONMap
	CreatedAt time.Time `gorm:"index:idx_notification_owner_read,priority:3"`
}

// ReminderMark 记录某习惯的某类提醒在某个标记（日期或连胜轮次）上已经发出。
// 唯一索引保证跨轮询、跨进程重启都不会重复触发。
type ReminderMark struct {
	ID             uint   `gorm:"primaryKey"`
	HabitID        string `gorm:"size:36;index:idx_reminder_mark_unique,unique"`
	Class          string `gorm:"size:32;index:idx_reminder_mark_unique,unique"`
	Marker         string `gorm:"size:64;index:idx_reminder_mark_unique,unique"`
	NotificationID string `gorm:"size:36"`
	CreatedAt      time.Time
}
