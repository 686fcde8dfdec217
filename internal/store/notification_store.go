package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beontime/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyClaimed 在提醒标记已存在（或目标习惯已被删除）时返回
var ErrAlreadyClaimed = errors.New("reminder already claimed")

// NotificationStore 负责通知与提醒去重标记的持久化
type NotificationStore struct {
	db *gorm.DB
}

// NewNotificationStore 构造 NotificationStore
func NewNotificationStore(gdb *gorm.DB) *NotificationStore {
	return &NotificationStore{db: gdb}
}

// Create 保存一条通知
func (s *NotificationStore) Create(ctx context.Context, n *db.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ClaimAndCreate 在同一事务内写入去重标记与通知。
// 标记已存在或习惯已不存在时返回 ErrAlreadyClaimed，且不写入任何数据。
func (s *NotificationStore) ClaimAndCreate(ctx context.Context, mark *db.ReminderMark, n *db.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Habit{}).Where("id = ?", mark.HabitID).Count(&count).Error; err != nil {
			return fmt.Errorf("check habit: %w", err)
		}
		if count == 0 {
			return ErrAlreadyClaimed
		}

		mark.NotificationID = n.ID
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(mark)
		if res.Error != nil {
			return fmt.Errorf("claim reminder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		if err := tx.Create(n).Error; err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
}

// GetByID 根据 ID 获取通知
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*db.Notification, error) {
	var n db.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// ListByOwner 按创建时间倒序返回通知及未读数量
func (s *NotificationStore) ListByOwner(ctx context.Context, ownerID uint, limit int) ([]db.Notification, int64, error) {
	var items []db.Notification
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var unread int64
	if err := s.db.WithContext(ctx).Model(&db.Notification{}).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Count(&unread).Error; err != nil {
		return nil, 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return items, unread, nil
}

// ListUnread 按创建时间倒序返回最近的未读通知
func (s *NotificationStore) ListUnread(ctx context.Context, ownerID uint, limit int) ([]db.Notification, error) {
	var items []db.Notification
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return items, nil
}

// MarkRead 将单条通知标记为已读；已读通知保持原 ReadAt。
func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(&db.Notification{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]interface{}{"read": true, "read_at": at}).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead 将所有者的全部未读通知标记为已读，返回受影响条数
func (s *NotificationStore) MarkAllRead(ctx context.Context, ownerID uint, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&db.Notification{}).
		Where("owner_id = ? AND read = ?", ownerID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UserStore 提供投递方所需的用户查询
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 构造 UserStore
func NewUserStore(gdb *gorm.DB) *UserStore {
	return &UserStore{db: gdb}
}

// GetByID 根据 ID 获取用户
func (s *UserStore) GetByID(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetByUsername 根据用户名获取用户
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// List 按 ID 升序返回全部用户
func (s *UserStore) List(ctx context.Context) ([]db.User, error) {
	var users []db.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
