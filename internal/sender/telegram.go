package sender

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender 通过 Telegram Bot 推送通知，未绑定 chat 的用户会被跳过
type TelegramSender struct {
	api   telegramAPI
	users UserLookup
}

// NewTelegramSender 使用 bot token 构造 TelegramSender。
// Bot API 调用不接收 ctx，HTTP 客户端超时保证每次调用最终返回。
func NewTelegramSender(token string, timeout time.Duration, users UserLookup) (*TelegramSender, error) {
	botAPI, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("[sender] telegram bot ready: @%s", botAPI.Self.UserName)
	return &TelegramSender{api: botAPI, users: users}, nil
}

func (s *TelegramSender) Send(ctx context.Context, actorID uint, subject, textBody, _ string) error {
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("lookup recipient %d: %w", actorID, err)
	}
	if user.TelegramChatID == 0 {
		log.Printf("[sender] telegram not linked for user %d, skipping %q", actorID, subject)
		return nil
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, fmt.Sprintf("🔔 <b>%s</b>\n\n%s", html.EscapeString(subject), html.EscapeString(textBody)))
	msg.ParseMode = tgbotapi.ModeHTML

	return runWithContext(ctx, func() error {
		if _, err := s.api.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	})
}
