package sender

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
)

type fakeUsers map[uint]*db.User

func (f fakeUsers) GetByID(_ context.Context, id uint) (*db.User, error) {
	user, ok := f[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

type fakeTelegram struct {
	sent  []tgbotapi.MessageConfig
	err   error
	block chan struct{}
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []*mail.Msg
	err      error
	blocking bool
	inflight atomic.Int32
}

// DialAndSendWithContext 与 go-mail 一致：阻塞时等待 ctx 结束后返回
func (f *fakeMailer) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.inflight.Add(1)
	defer f.inflight.Add(-1)

	if f.blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, messages...)
	return nil
}

func TestNewSelectsTransport(t *testing.T) {
	s, err := New(config.AppConfig{}, fakeUsers{})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = New(config.AppConfig{MessageTransport: "SMTP", SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: "587"}}, fakeUsers{})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = New(config.AppConfig{MessageTransport: "smtp", SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: "mail"}}, fakeUsers{})
	require.Error(t, err)

	_, err = New(config.AppConfig{MessageTransport: "pigeon"}, fakeUsers{})
	require.Error(t, err)
}

func TestLogSenderNeverFails(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), 1, "subject", "text", "<p>text</p>"))
}

func TestNewSMTPSenderDefaultsFrom(t *testing.T) {
	s, err := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", User: "bot", Password: "secret"}, time.Second, fakeUsers{})
	require.NoError(t, err)
	assert.Equal(t, "beontime@smtp.example.com", s.from)

	_, err = NewSMTPSender(config.SMTPConfig{}, time.Second, fakeUsers{})
	assert.Error(t, err)
}

func TestSMTPSenderBuildsMultipartMessage(t *testing.T) {
	users := fakeUsers{1: {Username: "alice", Email: "alice@example.com", EmailNotifications: true}}
	mailer := &fakeMailer{}
	s := &SMTPSender{from: "noreply@example.com", users: users, client: mailer}

	err := s.Send(context.Background(), 1, "Habit Completed: Run", "Great job!", "<p>Great job!</p>")
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Len(t, msg.GetFrom(), 1)
	assert.Equal(t, "noreply@example.com", msg.GetFrom()[0].Address)
	require.Len(t, msg.GetTo(), 1)
	assert.Equal(t, "alice@example.com", msg.GetTo()[0].Address)
	assert.Equal(t, []string{"Habit Completed: Run"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
	assert.True(t, strings.Index(raw, "Great job!") < strings.Index(raw, "<p>Great job!</p>"))
}

func TestSMTPSenderSkipsOptedOutUsers(t *testing.T) {
	users := fakeUsers{
		1: {Username: "quiet", Email: "quiet@example.com", EmailNotifications: false},
		2: {Username: "noemail", EmailNotifications: true},
	}
	mailer := &fakeMailer{}
	s := &SMTPSender{from: "noreply@example.com", users: users, client: mailer}

	require.NoError(t, s.Send(context.Background(), 1, "s", "t", "h"))
	require.NoError(t, s.Send(context.Background(), 2, "s", "t", "h"))
	assert.Empty(t, mailer.sent)

	assert.Error(t, s.Send(context.Background(), 99, "s", "t", "h"))
}

func TestSMTPSenderPropagatesFailures(t *testing.T) {
	users := fakeUsers{1: {Email: "a@example.com", EmailNotifications: true}}
	boom := errors.New("connection refused")
	s := &SMTPSender{from: "noreply@example.com", users: users, client: &fakeMailer{err: boom}}

	err := s.Send(context.Background(), 1, "s", "t", "h")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	s = &SMTPSender{from: "not an address", users: users, client: &fakeMailer{}}
	assert.Error(t, s.Send(context.Background(), 1, "s", "t", "h"))
}

func TestSMTPSenderTimeoutsLeaveNoSendInFlight(t *testing.T) {
	users := fakeUsers{1: {Email: "a@example.com", EmailNotifications: true}}
	mailer := &fakeMailer{blocking: true}
	s := &SMTPSender{from: "noreply@example.com", users: users, client: mailer}

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		err := s.Send(ctx, 1, "s", "t", "h")
		cancel()

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, mailer.inflight.Load(), "send %d still running after Send returned", i)
	}
}

func TestTelegramSenderFormatsHTML(t *testing.T) {
	api := &fakeTelegram{}
	s := &TelegramSender{api: api, users: fakeUsers{1: {TelegramChatID: 4242}, 2: {}}}

	require.NoError(t, s.Send(context.Background(), 1, "Streak <7>", "Keep going & win", ""))
	require.NoError(t, s.Send(context.Background(), 2, "skipped", "skipped", ""))

	require.Len(t, api.sent, 1)
	msg := api.sent[0]
	assert.Equal(t, int64(4242), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>Streak &lt;7&gt;</b>")
	assert.Contains(t, msg.Text, "Keep going &amp; win")
}

func TestTelegramSenderErrors(t *testing.T) {
	api := &fakeTelegram{err: errors.New("chat not found")}
	s := &TelegramSender{api: api, users: fakeUsers{1: {TelegramChatID: 1}}}

	err := s.Send(context.Background(), 1, "s", "t", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	blocked := &fakeTelegram{block: make(chan struct{})}
	defer close(blocked.block)
	s = &TelegramSender{api: blocked, users: fakeUsers{1: {TelegramChatID: 1}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, 1, "s", "t", ""), context.Canceled)
}
