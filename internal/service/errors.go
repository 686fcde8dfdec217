package service

import (
	"errors"
	"fmt"

	"github.com/beontime/internal/store"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrNotificationNotFound 在指定通知不存在时返回
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrChallengeNotFound 在指定挑战不存在时返回
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrForbidden 在操作者不是资源所有者时返回
	ErrForbidden = errors.New("forbidden")
	// ErrValidation 在字段缺失或取值越界时返回
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyCompleted 表示当天已经完成，属于提示性错误
	ErrAlreadyCompleted = errors.New("habit already completed for this day")
	// ErrConflict 在重试后仍出现并发修改冲突时返回
	ErrConflict = errors.New("habit was modified concurrently")
	// ErrDeliveryFailed 表示外部投递失败，不影响通知本身
	ErrDeliveryFailed = errors.New("notification delivery failed")
	// ErrPersistenceUnavailable 表示存储层不可用
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateStoreError 将存储层错误映射为服务层错误
func translateStoreError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
}
