package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultNotificationLimit 是通知列表默认返回条数
const DefaultNotificationLimit = 50

// MessageSender 负责把已持久化的通知投递到外部渠道
type MessageSender interface {
	Send(ctx context.Context, actorID uint, subject, textBody, htmlBody string) error
}

// ReminderKey 是提醒去重键
type ReminderKey struct {
	HabitID string
	Class   ReminderClass
	Marker  string
}

// NotificationList 是通知列表查询结果
type NotificationList struct {
	Items  []db.Notification
	Unread int64
}

// NotificationService 持久化通知并尽力投递，投递失败不回滚通知
type NotificationService struct {
	store           *store.NotificationStore
	sender          MessageSender
	clock           clock.Clock
	storeTimeout    time.Duration
	deliveryTimeout time.Duration
}

// NewNotificationService 构造 NotificationService，sender 为 nil 时只记录站内通知
func NewNotificationService(notifications *store.NotificationStore, sender MessageSender, clk clock.Clock, storeTimeout, deliveryTimeout time.Duration) *NotificationService {
	return &NotificationService{
		store:           notifications,
		sender:          sender,
		clock:           clk,
		storeTimeout:    storeTimeout,
		deliveryTimeout: deliveryTimeout,
	}
}

// Dispatch 保存通知后尝试投递
func (s *NotificationService) Dispatch(ctx context.Context, actorID uint, kind, title, message string, payload map[string]interface{}, body Message) (*db.Notification, error) {
	n := s.newNotification(actorID, kind, title, message, payload)

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err := s.store.Create(storeCtx, n)
	cancel()
	if err != nil {
		return nil, translateStoreError(err, ErrNotificationNotFound)
	}
	notificationsCreatedTotal.WithLabelValues(kind).Inc()

	s.deliver(ctx, n, body)
	return n, nil
}

// DispatchReminder 在同一事务中写入去重标记与通知。
// 已提醒过或习惯已被删除时返回 (nil, false, nil)。
func (s *NotificationService) DispatchReminder(ctx context.Context, key ReminderKey, actorID uint, kind string, payload map[string]interface{}, body Message) (*db.Notification, bool, error) {
	n := s.newNotification(actorID, kind, body.Title, body.Text, payload)
	mark := &db.ReminderMark{
		HabitID:   key.HabitID,
		Class:     string(key.Class),
		Marker:    key.Marker,
		CreatedAt: n.CreatedAt,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err := s.store.ClaimAndCreate(storeCtx, mark, n)
	cancel()
	if errors.Is(err, store.ErrAlreadyClaimed) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translateStoreError(err, ErrNotificationNotFound)
	}
	notificationsCreatedTotal.WithLabelValues(kind).Inc()

	s.deliver(ctx, n, body)
	return n, true, nil
}

// NotifySystem 创建一条系统通知
func (s *NotificationService) NotifySystem(ctx context.Context, actorID uint, title, message string, payload map[string]interface{}) (*db.Notification, error) {
	if title == "" || message == "" {
		return nil, validationError("title and message are required")
	}
	body, err := systemMessage(title, message)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, actorID, db.NotificationSystem, title, message, payload, body)
}

// List 返回调用者最新的通知及未读数量
func (s *NotificationService) List(ctx context.Context, actorID uint, limit int) (NotificationList, error) {
	if limit <= 0 || limit > DefaultNotificationLimit {
		limit = DefaultNotificationLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	items, unread, err := s.store.ListByOwner(ctx, actorID, limit)
	if err != nil {
		return NotificationList{}, translateStoreError(err, ErrNotificationNotFound)
	}
	return NotificationList{Items: items, Unread: unread}, nil
}

// MarkRead 将单条通知标记为已读，重复调用保持幂等
func (s *NotificationService) MarkRead(ctx context.Context, id string, actorID uint) (*db.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, ErrNotificationNotFound)
	}
	if n.OwnerID != actorID {
		return nil, ErrForbidden
	}
	if n.Read {
		return n, nil
	}

	now := s.clock.Now()
	if err := s.store.MarkRead(ctx, id, now); err != nil {
		return nil, translateStoreError(err, ErrNotificationNotFound)
	}
	n.Read = true
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead 将调用者全部未读通知标记为已读
func (s *NotificationService) MarkAllRead(ctx context.Context, actorID uint) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	changed, err := s.store.MarkAllRead(ctx, actorID, s.clock.Now())
	if err != nil {
		return 0, translateStoreError(err, ErrNotificationNotFound)
	}
	return changed, nil
}

func (s *NotificationService) newNotification(actorID uint, kind, title, message string, payload map[string]interface{}) *db.Notification {
	data := datatypes.JSONMap{}
	for key, value := range payload {
		data[key] = value
	}
	return &db.Notification{
		ID:        uuid.NewString(),
		OwnerID:   actorID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: s.clock.Now(),
	}
}

// deliver 同步投递，超时视为失败，错误只记录不返回
func (s *NotificationService) deliver(ctx context.Context, n *db.Notification, body Message) {
	if s.sender == nil {
		return
	}

	subject, text := body.Subject, body.Text
	if subject == "" {
		subject = n.Title
	}
	if text == "" {
		text = n.Message
	}

	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, n.OwnerID, subject, text, body.HTML); err != nil {
		deliveryFailuresTotal.Inc()
		log.Printf("[notify] %v: notification=%s user=%d: %v", ErrDeliveryFailed, n.ID, n.OwnerID, err)
	}
}

func habitPayload(habit db.Habit) map[string]interface{} {
	return map[string]interface{}{
		"habitId":    habit.ID,
		"habitTitle": habit.Title,
	}
}

func describeReminder(key ReminderKey) string {
	return fmt.Sprintf("%s/%s/%s", key.HabitID, key.Class, key.Marker)
}
