package db

import (
	"time"

	"gorm.io/datatypes"
)

// 习惯分类与频率的合法取值
const (
	CategoryHealth       = "Health"
	CategoryProductivity = "Productivity"
	CategorySelfCare     = "Self-Care"
	CategoryLearning     = "Learning"
	CategoryOther        = "Other"

	FrequencyDaily   = "Daily"
	FrequencyWeekly  = "Weekly"
	FrequencyMonthly = "Monthly"

	// SourceChallenge 表示习惯由挑战活动派生，SourceID 指向 Challenge.ID
	SourceChallenge = "challenge"
	// SourceCommunity 表示习惯由社区日程派生
	SourceCommunity = "community"

	// DefaultEndReminderMinutes 为结束提醒的默认提前量
	DefaultEndReminderMinutes = 5
)

// Habit 定义了习惯模型
// StartTime/EndTime 为 24 小时制 HH:mm 字符串，空串表示未设置，不携带时区
// Streak/StreakGoal/Progress/Completed 由完成引擎根据 Entries 推导
// Version 用于乐观并发控制，每次条件更新自增
type Habit struct {
	ID          string `gorm:"primaryKey;size:36"`
	OwnerID     uint   `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	Description string
	Category    string `gorm:"index"`
	Frequency   string
	TargetDays  int
	StartDate   time.Time
	EndDate     *time.Time
	StartTime   string `gorm:"size:5"`
	EndTime     string `gorm:"size:5"`

	NotifyEnabled      bool `gorm:"index"`
	NotifyStart        bool
	NotifyEnd          bool
	EndReminderMinutes int

	Streak     int
	StreakGoal int
	Progress   int
	Completed  bool

	SourceKind string `gorm:"size:20"`
	SourceID   string `gorm:"index;size:36"`

	Tags    datatypes.JSONSlice[string]
	Version int64 `gorm:"not null;default:1"`

	Entries []HabitEntry `gorm:"foreignKey:HabitID;constraint:OnDelete:CASCADE"`
	Notes   []HabitNote  `gorm:"foreignKey:HabitID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HabitEntry 是习惯账本中的单日记录
// HabitID + Day 采用唯一索引，同一天的重复写入覆盖原记录
type HabitEntry struct {
	ID        uint   `gorm:"primaryKey"`
	HabitID   string `gorm:"size:36;index:idx_habit_entry_unique,unique"`
	Day       string `gorm:"size:10;index:idx_habit_entry_unique,unique"`
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 重写确保唯一索引作用到 habit_id + day
func (HabitEntry) TableName() string {
	return "habit_entries"
}

// HabitNote 为习惯附带的带时间戳备注
type HabitNote struct {
	ID        uint   `gorm:"primaryKey"`
	HabitID   string `gorm:"size:36;index"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}
