// Package sender 实现通知的外部投递渠道（日志、邮件、Telegram）。
package sender

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/service"
)

// UserLookup 提供投递所需的收件人信息
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*db.User, error)
}

// New 根据配置选择投递渠道
func New(cfg config.AppConfig, users UserLookup) (service.MessageSender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MessageTransport)) {
	case "", config.TransportLog:
		return LogSender{}, nil
	case config.TransportSMTP:
		smtpSender, err := NewSMTPSender(cfg.SMTP, cfg.DeliveryTimeout, users)
		if err != nil {
			return nil, err
		}
		return smtpSender, nil
	case config.TransportTelegram:
		tg, err := NewTelegramSender(cfg.TelegramToken, cfg.DeliveryTimeout, users)
		if err != nil {
			return nil, err
		}
		return tg, nil
	default:
		return nil, fmt.Errorf("unsupported message transport %q", cfg.MessageTransport)
	}
}

// LogSender 只把投递内容写入日志
type LogSender struct{}

func (LogSender) Send(_ context.Context, actorID uint, subject, textBody, _ string) error {
	log.Printf("[sender] user=%d subject=%q body=%q", actorID, subject, textBody)
	return nil
}

// runWithContext 在独立 goroutine 中执行不接收 ctx 的阻塞调用，ctx 结束时视为投递失败。
// fn 自身必须有超时，否则 goroutine 会在 ctx 结束后继续存活。
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delivery aborted: %w", ctx.Err())
	}
}
