package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMessage struct {
	actorID uint
	subject string
	text    string
	html    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, actorID uint, subject, text, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{actorID: actorID, subject: subject, text: text, html: html})
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixture struct {
	gdb    *gorm.DB
	clock  *clock.Fake
	sender *recordingSender
	svc    *Services
	owner  uint
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	gdb := testutil.OpenDB(t)
	clk := clock.NewFake(now)
	sender := &recordingSender{}

	return &fixture{
		gdb:    gdb,
		clock:  clk,
		sender: sender,
		svc:    NewServices(gdb, config.Default(), clk, sender),
		owner:  testutil.CreateUser(t, gdb, "alice"),
	}
}

func (f *fixture) createHabit(t *testing.T, mutate func(*HabitInput)) *db.Habit {
	t.Helper()

	start := normalizeToDate(f.clock.Now())
	input := HabitInput{
		Title:      "Morning Run",
		Category:   "health",
		Frequency:  "daily",
		TargetDays: 30,
		StartDate:  &start,
	}
	if mutate != nil {
		mutate(&input)
	}

	habit, err := f.svc.Habits.Create(context.Background(), f.owner, input)
	require.NoError(t, err)
	return habit
}

func (f *fixture) notifications(t *testing.T, kind string) []db.Notification {
	t.Helper()

	var items []db.Notification
	require.NoError(t, f.gdb.Where("type = ?", kind).Order("created_at ASC").Find(&items).Error)
	return items
}

func (f *fixture) reload(t *testing.T, id string) *db.Habit {
	t.Helper()

	habit, err := f.svc.Habits.Get(context.Background(), id, f.owner)
	require.NoError(t, err)
	return habit
}

func at(day time.Time, hour, minute, second int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location())
}
