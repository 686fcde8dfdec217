package service

import (
	"testing"
	"time"

	"github.com/beontime/internal/db"
	"github.com/stretchr/testify/assert"
)

func TestReminderMatcherMatch(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	end := day.AddDate(0, 0, 2)
	base := db.Habit{
		StartDate:          day.AddDate(0, 0, -1),
		EndDate:            &end,
		StartTime:          "09:00",
		EndTime:            "18:30",
		NotifyEnabled:      true,
		NotifyStart:        true,
		NotifyEnd:          true,
		EndReminderMinutes: 15,
	}
	matcher := NewReminderMatcher(30*time.Second, nil)

	tests := []struct {
		name   string
		mutate func(*db.Habit)
		now    time.Time
		want   []ReminderClass
	}{
		{name: "start on time", now: at(day, 9, 0, 0), want: []ReminderClass{ReminderStart}},
		{name: "start just before", now: at(day, 8, 59, 30), want: []ReminderClass{ReminderStart}},
		{name: "start window closed", now: at(day, 9, 0, 30), want: nil},
		{name: "end lead time", now: at(day, 18, 15, 10), want: []ReminderClass{ReminderEndApproaching}},
		{name: "at end time itself", now: at(day, 18, 30, 0), want: nil},
		{name: "notifications disabled", now: at(day, 9, 0, 0), mutate: func(h *db.Habit) { h.NotifyEnabled = false }, want: nil},
		{name: "start class disabled", now: at(day, 9, 0, 0), mutate: func(h *db.Habit) { h.NotifyStart = false }, want: nil},
		{name: "start time unset", now: at(day, 9, 0, 0), mutate: func(h *db.Habit) { h.StartTime = "" }, want: nil},
		{name: "before start date", now: at(day.AddDate(0, 0, -2), 9, 0, 0), want: nil},
		{name: "last active day", now: at(end, 18, 15, 0), want: []ReminderClass{ReminderEndApproaching}},
		{name: "after end date", now: at(end.AddDate(0, 0, 1), 9, 0, 0), want: nil},
		{name: "ongoing habit", now: at(day.AddDate(0, 0, 40), 9, 0, 0), mutate: func(h *db.Habit) { h.EndDate = nil }, want: []ReminderClass{ReminderStart}},
		{name: "default lead time", now: at(day, 18, 25, 0), mutate: func(h *db.Habit) { h.EndReminderMinutes = 0 }, want: []ReminderClass{ReminderEndApproaching}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			habit := base
			if tt.mutate != nil {
				tt.mutate(&habit)
			}

			var got []ReminderClass
			for _, due := range matcher.Match(habit, tt.now) {
				got = append(got, due.Class)
				assert.Equal(t, dayKey(tt.now), due.Marker)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderMatcherEndCrossesMidnight(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	habit := db.Habit{
		StartDate:          day,
		EndTime:            "00:03",
		NotifyEnabled:      true,
		NotifyEnd:          true,
		EndReminderMinutes: 5,
	}
	matcher := NewReminderMatcher(0, nil)

	due := matcher.Match(habit, at(day, 23, 58, 0))
	if assert.Len(t, due, 1) {
		assert.Equal(t, ReminderEndApproaching, due[0].Class)
		assert.Equal(t, "2025-03-15", due[0].Marker)
	}

	due = matcher.Match(habit, at(day.AddDate(0, 0, -1), 23, 58, 0))
	if assert.Len(t, due, 1) {
		assert.Equal(t, "2025-03-14", due[0].Marker)
	}

	assert.Empty(t, matcher.Match(habit, at(day.AddDate(0, 0, -2), 23, 58, 0)))
}

func TestReminderMatcherUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	habit := db.Habit{
		StartDate:     time.Date(2025, 3, 14, 0, 0, 0, 0, loc),
		StartTime:     "07:00",
		NotifyEnabled: true,
		NotifyStart:   true,
	}
	matcher := NewReminderMatcher(0, loc)

	due := matcher.Match(habit, time.Date(2025, 3, 13, 23, 0, 10, 0, time.UTC))
	if assert.Len(t, due, 1) {
		assert.Equal(t, "2025-03-14", due[0].Marker)
	}
}

// completedRun 生成从 last 往前连续 n 天的完成记录
func completedRun(last time.Time, n int) []db.HabitEntry {
	entries := make([]db.HabitEntry, 0, n)
	for i := n - 1; i >= 0; i-- {
		entries = append(entries, db.HabitEntry{Day: dayKey(last.AddDate(0, 0, -i)), Completed: true})
	}
	return entries
}

func TestReminderMatcherMilestone(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	today := normalizeToDate(now)
	yesterday := today.AddDate(0, 0, -1)
	matcher := NewReminderMatcher(0, nil)

	tests := []struct {
		name    string
		entries []db.HabitEntry
		marker  string
		ok      bool
	}{
		{name: "seven ending today", entries: completedRun(today, 7), marker: "7@2025-03-08", ok: true},
		{name: "fourteen ending today", entries: completedRun(today, 14), marker: "14@2025-03-01", ok: true},
		{name: "seven ending yesterday", entries: completedRun(yesterday, 7), marker: "7@2025-03-07", ok: true},
		{name: "eight", entries: completedRun(today, 8)},
		{name: "today explicitly missed", entries: append(completedRun(yesterday, 7), db.HabitEntry{Day: dayKey(today)})},
		{name: "empty ledger"},
	}

	for _, tt := range tests {
		due, ok := matcher.MatchMilestone(db.Habit{Entries: tt.entries}, now)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, ReminderStreakMilestone, due.Class, tt.name)
			assert.Equal(t, tt.marker, due.Marker, tt.name)
		}
	}
}

func TestReminderMatcherMilestoneMarkerStableAcrossMidnight(t *testing.T) {
	matcher := NewReminderMatcher(0, nil)
	habit := db.Habit{Entries: completedRun(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), 7)}

	evening, ok := matcher.MatchMilestone(habit, time.Date(2025, 3, 14, 23, 59, 40, 0, time.UTC))
	assert.True(t, ok)
	morning, ok := matcher.MatchMilestone(habit, time.Date(2025, 3, 15, 0, 0, 20, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, evening.Marker, morning.Marker)
}
