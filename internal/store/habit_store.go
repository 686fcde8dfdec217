// Package store 封装习惯与通知的持久化契约。
// 服务层只依赖这里的接口，gorm 实现负责条件更新与账本 upsert 的原子性。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beontime/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound 在记录不存在时返回
	ErrNotFound = errors.New("record not found")
	// ErrConflict 在条件更新的版本号不匹配时返回
	ErrConflict = errors.New("version conflict")
)

// HabitFilter 描述按所有者查询时的过滤条件
type HabitFilter struct {
	Category string
	Search   string
}

// HabitStore 是习惯记录的持久化契约
type HabitStore interface {
	Create(ctx context.Context, habit *db.Habit) error
	GetByID(ctx context.Context, id string) (*db.Habit, error)
	FindByOwner(ctx context.Context, ownerID uint, filter HabitFilter) ([]db.Habit, error)
	FindActiveWithNotificationsEnabled(ctx context.Context) ([]db.Habit, error)
	FindStreakCandidates(ctx context.Context) ([]db.Habit, error)
	// Update 在 habit.Version 未变化时写入派生字段与配置，并在同一事务内 upsert entry（可为 nil）。
	// 成功后 habit.Version 自增。
	Update(ctx context.Context, habit *db.Habit, entry *db.HabitEntry) error
	AddNote(ctx context.Context, note *db.HabitNote) error
	Delete(ctx context.Context, id string) error
}

// GormHabitStore 是 HabitStore 的 gorm 实现
type GormHabitStore struct {
	db *gorm.DB
}

// NewHabitStore 构造 GormHabitStore
func NewHabitStore(gdb *gorm.DB) *GormHabitStore {
	return &GormHabitStore{db: gdb}
}

var _ HabitStore = (*GormHabitStore)(nil)

func (s *GormHabitStore) Create(ctx context.Context, habit *db.Habit) error {
	if habit.Version == 0 {
		habit.Version = 1
	}
	if err := s.db.WithContext(ctx).Omit("Entries", "Notes").Create(habit).Error; err != nil {
		return fmt.Errorf("create habit: %w", err)
	}
	return nil
}

func (s *GormHabitStore) GetByID(ctx context.Context, id string) (*db.Habit, error) {
	var habit db.Habit
	err := s.db.WithContext(ctx).
		Preload("Entries", func(tx *gorm.DB) *gorm.DB { return tx.Order("day ASC") }).
		Preload("Notes", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		First(&habit, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

func (s *GormHabitStore) FindByOwner(ctx context.Context, ownerID uint, filter HabitFilter) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.WithContext(ctx).Model(&db.Habit{}).Where("owner_id = ?", ownerID)
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("LOWER(category) = LOWER(?)", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", search)
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Preload("Entries", func(tx *gorm.DB) *gorm.DB { return tx.Order("day ASC") }).
		Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// FindActiveWithNotificationsEnabled 返回开启提醒的习惯，日期窗口由匹配器在内存中判断。
func (s *GormHabitStore) FindActiveWithNotificationsEnabled(ctx context.Context) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.WithContext(ctx).
		Where("notify_enabled = ?", true).
		Where("start_time <> '' OR end_time <> ''").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list reminder habits: %w", err)
	}
	return habits, nil
}

// FindStreakCandidates 返回派生状态可能需要滚动或触发里程碑的习惯（附带账本）。
func (s *GormHabitStore) FindStreakCandidates(ctx context.Context) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.WithContext(ctx).
		Where("streak > 0 OR completed = ?", true).
		Preload("Entries", func(tx *gorm.DB) *gorm.DB { return tx.Order("day ASC") }).
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list streak habits: %w", err)
	}
	return habits, nil
}

func (s *GormHabitStore) Update(ctx context.Context, habit *db.Habit, entry *db.HabitEntry) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Habit{}).
			Where("id = ? AND version = ?", habit.ID, habit.Version).
			Updates(map[string]interface{}{
				"title":                habit.Title,
				"description":          habit.Description,
				"category":             habit.Category,
				"frequency":            habit.Frequency,
				"target_days":          habit.TargetDays,
				"start_date":           habit.StartDate,
				"end_date":             habit.EndDate,
				"start_time":           habit.StartTime,
				"end_time":             habit.EndTime,
				"notify_enabled":       habit.NotifyEnabled,
				"notify_start":         habit.NotifyStart,
				"notify_end":           habit.NotifyEnd,
				"end_reminder_minutes": habit.EndReminderMinutes,
				"streak":               habit.Streak,
				"streak_goal":          habit.StreakGoal,
				"progress":             habit.Progress,
				"completed":            habit.Completed,
				"tags":                 habit.Tags,
				"version":              habit.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("update habit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&db.Habit{}).Where("id = ?", habit.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("check habit: %w", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}

		if entry == nil {
			return nil
		}
		entry.HabitID = habit.ID
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed", "updated_at"}),
		}).Create(entry).Error; err != nil {
			return fmt.Errorf("upsert habit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	habit.Version++
	return nil
}

func (s *GormHabitStore) AddNote(ctx context.Context, note *db.HabitNote) error {
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("add habit note: %w", err)
	}
	return nil
}

// Delete 删除习惯及其账本、备注与提醒标记
func (s *GormHabitStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&db.Habit{})
		if res.Error != nil {
			return fmt.Errorf("delete habit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		for _, model := range []interface{}{&db.HabitEntry{}, &db.HabitNote{}, &db.ReminderMark{}} {
			if err := tx.Where("habit_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("delete habit children: %w", err)
			}
		}
		return nil
	})
}
