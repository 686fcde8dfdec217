package sender

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/beontime/internal/config"
)

// mailClient 是 go-mail 客户端的投递子集，发送过程随 ctx 取消而结束
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender 通过 SMTP 发送 text/html 双格式邮件。
// 用户关闭邮件通知或未填写邮箱时直接跳过。
type SMTPSender struct {
	from   string
	users  UserLookup
	client mailClient
}

// NewSMTPSender 构造 SMTPSender，timeout 同时约束建连与每个 SMTP 指令
func NewSMTPSender(cfg config.SMTPConfig, timeout time.Duration, users UserLookup) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if cfg.Port != "" {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("invalid smtp port %q: %w", cfg.Port, err)
		}
		opts = append(opts, mail.WithPort(port))
	}
	if timeout > 0 {
		opts = append(opts, mail.WithTimeout(timeout))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = "beontime@" + cfg.Host
	}
	return &SMTPSender{from: from, users: users, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, actorID uint, subject, textBody, htmlBody string) error {
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("lookup recipient %d: %w", actorID, err)
	}
	if !user.EmailNotifications || strings.TrimSpace(user.Email) == "" {
		log.Printf("[sender] email disabled for user %d, skipping %q", actorID, subject)
		return nil
	}

	msg, err := buildMessage(s.from, user.Email, subject, textBody, htmlBody)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", user.Email, err)
	}
	return nil
}

// buildMessage 生成 multipart/alternative 邮件，纯文本在前，HTML 为备选
func buildMessage(from, to, subject, textBody, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}
	return msg, nil
}
