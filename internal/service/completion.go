package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
)

const completionAttempts = 3

// CompletionEngine 记录习惯某天的完成情况并维护连胜、进度等派生字段
type CompletionEngine struct {
	habits     store.HabitStore
	notifier   *NotificationService
	challenges ChallengeProgress
	clock      clock.Clock
	timeout    time.Duration
}

// NewCompletionEngine 构造 CompletionEngine，challenges 可为 nil
func NewCompletionEngine(habits store.HabitStore, notifier *NotificationService, challenges ChallengeProgress, clk clock.Clock, timeout time.Duration) *CompletionEngine {
	return &CompletionEngine{
		habits:     habits,
		notifier:   notifier,
		challenges: challenges,
		clock:      clk,
		timeout:    timeout,
	}
}

// Complete 将 when 所在日期标记为完成，when 为零值时取当前时间。
// 当天已完成时返回未修改的习惯与 ErrAlreadyCompleted。
func (e *CompletionEngine) Complete(ctx context.Context, habitID string, actorID uint, when time.Time) (*db.Habit, error) {
	now := e.clock.Now()
	if when.IsZero() {
		when = now
	}
	today := normalizeToDate(now)
	day := normalizeToDate(when.In(now.Location()))
	if day.After(today) {
		completionsTotal.WithLabelValues("invalid").Inc()
		return nil, validationError("cannot complete a future day %s", dayKey(day))
	}
	key := dayKey(day)

	for attempt := 1; attempt <= completionAttempts; attempt++ {
		habit, err := e.load(ctx, habitID)
		if err != nil {
			return nil, err
		}
		if habit.OwnerID != actorID {
			completionsTotal.WithLabelValues("forbidden").Inc()
			return nil, ErrForbidden
		}
		if key < dayKey(habit.StartDate.In(now.Location())) {
			completionsTotal.WithLabelValues("invalid").Inc()
			return nil, validationError("day %s is before the habit start date", key)
		}
		if entry, ok := findEntry(habit.Entries, key); ok && entry.Completed {
			completionsTotal.WithLabelValues("already_completed").Inc()
			return habit, ErrAlreadyCompleted
		}

		entries := upsertEntry(habit.Entries, key, true)
		habit.Streak = ComputeStreak(entries, now)
		habit.Progress = ComputeProgress(entries)
		habit.StreakGoal = max(habit.StreakGoal, habit.Streak)
		todayEntry, _ := findEntry(entries, dayKey(today))
		habit.Completed = todayEntry.Completed
		if err := validateHabit(*habit); err != nil {
			completionsTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}

		storeCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err = e.habits.Update(storeCtx, habit, &db.HabitEntry{Day: key, Completed: true})
		cancel()
		if errors.Is(err, store.ErrConflict) {
			log.Printf("[completion] habit %s modified concurrently, retrying (%d/%d)", habitID, attempt, completionAttempts)
			continue
		}
		if err != nil {
			return nil, translateStoreError(err, ErrHabitNotFound)
		}

		for i := range entries {
			entries[i].HabitID = habit.ID
		}
		habit.Entries = entries
		completionsTotal.WithLabelValues("completed").Inc()

		e.afterCompletion(ctx, *habit, day)
		return habit, nil
	}

	completionsTotal.WithLabelValues("conflict").Inc()
	return nil, ErrConflict
}

func (e *CompletionEngine) load(ctx context.Context, habitID string) (*db.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	habit, err := e.habits.GetByID(ctx, habitID)
	if err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	return habit, nil
}

// afterCompletion 同步挑战进度并发送完成通知，失败只记录日志
func (e *CompletionEngine) afterCompletion(ctx context.Context, habit db.Habit, day time.Time) {
	if habit.SourceKind == db.SourceChallenge && habit.SourceID != "" && e.challenges != nil {
		e.syncChallenge(ctx, habit)
	}

	if e.notifier == nil {
		return
	}
	body, err := habitMessage(db.NotificationHabitCompletion, habit, habit.Streak)
	if err != nil {
		log.Printf("[completion] render message for habit %s: %v", habit.ID, err)
		return
	}
	payload := habitPayload(habit)
	payload["completionDate"] = dayKey(day)
	payload["streak"] = habit.Streak
	if _, err := e.notifier.Dispatch(ctx, habit.OwnerID, db.NotificationHabitCompletion, body.Title, body.Text, payload, body); err != nil {
		log.Printf("[completion] completion notification for habit %s: %v", habit.ID, err)
	}
}

func (e *CompletionEngine) syncChallenge(ctx context.Context, habit db.Habit) {
	challenge, err := e.challenges.GetByHabitBackref(ctx, habit.SourceID)
	if err != nil {
		log.Printf("[completion] load challenge %s for habit %s: %v", habit.SourceID, habit.ID, err)
		return
	}

	progress := challengeProgress(*challenge, habit.Entries)
	if err := e.challenges.UpdateParticipantProgress(ctx, challenge.ID, habit.OwnerID, progress); err != nil {
		log.Printf("[completion] update challenge %s progress for user %d: %v", challenge.ID, habit.OwnerID, err)
	}
}
