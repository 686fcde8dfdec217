package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultPollInterval 是提醒轮询的默认周期
const DefaultPollInterval = time.Minute

// TickReport 汇总一次轮询的处理结果
type TickReport struct {
	Checked    int
	Dispatched int
	Skipped    int
	Refreshed  int
	Failed     int
}

// Scheduler 按固定周期扫描习惯，为到期提醒生成通知。
// 每个 tick 自行读取快照，不持有阻塞其它请求的锁。
type Scheduler struct {
	habits   store.HabitStore
	notifier *NotificationService
	matcher  ReminderMatcher
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler 构造 Scheduler
func NewScheduler(habits store.HabitStore, notifier *NotificationService, matcher ReminderMatcher, clk clock.Clock, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		habits:   habits,
		notifier: notifier,
		matcher:  matcher,
		clock:    clk,
		interval: interval,
		timeout:  timeout,
	}
}

// Start 启动周期任务，重复调用不会创建第二个任务
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	logger := cron.PrintfLogger(log.New(log.Writer(), "[scheduler] ", log.LstdFlags))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		report := s.Tick(context.Background())
		if report.Dispatched > 0 || report.Failed > 0 {
			log.Printf("[scheduler] tick done: checked=%d dispatched=%d skipped=%d refreshed=%d failed=%d",
				report.Checked, report.Dispatched, report.Skipped, report.Refreshed, report.Failed)
		}
	}))
	c.Start()
	s.cron = c

	log.Printf("[scheduler] started, interval=%s", s.interval)
	return nil
}

// Stop 停止周期任务并等待正在执行的 tick 结束，未启动时直接返回
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		log.Printf("[scheduler] stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running 报告周期任务是否在运行
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Tick 执行一次扫描。单个习惯的错误只记录并计数，不会中断本次扫描。
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	started := time.Now()
	now := s.clock.Now()
	var report TickReport

	defer func() {
		schedulerTicksTotal.Inc()
		schedulerTickDuration.Observe(time.Since(started).Seconds())
	}()

	habits, err := s.load(ctx, s.habits.FindActiveWithNotificationsEnabled)
	if err != nil {
		log.Printf("[scheduler] load reminder habits: %v", err)
		s.fail(&report)
	}
	for _, habit := range habits {
		report.Checked++
		for _, due := range s.matcher.Match(habit, now) {
			s.dispatch(ctx, habit, due, &report)
		}
	}

	candidates, err := s.load(ctx, s.habits.FindStreakCandidates)
	if err != nil {
		log.Printf("[scheduler] load streak habits: %v", err)
		s.fail(&report)
	}
	for _, habit := range candidates {
		current, ok := s.refresh(ctx, habit, now, &report)
		if !ok {
			continue
		}
		if due, ok := s.matcher.MatchMilestone(current, now); ok {
			s.dispatch(ctx, current, due, &report)
		}
	}

	return report
}

func (s *Scheduler) load(ctx context.Context, query func(context.Context) ([]db.Habit, error)) ([]db.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return query(ctx)
}

// refresh 在跨天后重算连胜与"今日完成"状态，条件更新冲突时跳过本次
func (s *Scheduler) refresh(ctx context.Context, habit db.Habit, now time.Time, report *TickReport) (db.Habit, bool) {
	streak := ComputeStreak(habit.Entries, now)
	today, _ := findEntry(habit.Entries, dayKey(normalizeToDate(now)))
	if streak == habit.Streak && today.Completed == habit.Completed {
		return habit, true
	}

	habit.Streak = streak
	habit.Completed = today.Completed
	habit.StreakGoal = max(habit.StreakGoal, streak)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.habits.Update(ctx, &habit, nil); err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			report.Skipped++
			return habit, false
		}
		log.Printf("[scheduler] refresh habit %s: %v", habit.ID, err)
		s.fail(report)
		return habit, false
	}
	report.Refreshed++
	return habit, true
}

func (s *Scheduler) dispatch(ctx context.Context, habit db.Habit, due DueReminder, report *TickReport) {
	kind := notificationType(due.Class)
	body, err := habitMessage(kind, habit, habit.Streak)
	if err != nil {
		log.Printf("[scheduler] render %s for habit %s: %v", due.Class, habit.ID, err)
		s.fail(report)
		return
	}

	payload := habitPayload(habit)
	switch due.Class {
	case ReminderStart:
		payload["time"] = habit.StartTime
	case ReminderEndApproaching:
		payload["time"] = habit.EndTime
	case ReminderStreakMilestone:
		payload["streak"] = habit.Streak
	}

	key := ReminderKey{HabitID: habit.ID, Class: due.Class, Marker: due.Marker}
	_, created, err := s.notifier.DispatchReminder(ctx, key, habit.OwnerID, kind, payload, body)
	if err != nil {
		log.Printf("[scheduler] dispatch %s: %v", describeReminder(key), err)
		s.fail(report)
		return
	}
	if !created {
		report.Skipped++
		return
	}

	report.Dispatched++
	remindersDispatchedTotal.WithLabelValues(string(due.Class)).Inc()
}

func (s *Scheduler) fail(report *TickReport) {
	report.Failed++
	schedulerErrorsTotal.Inc()
}

func notificationType(class ReminderClass) string {
	switch class {
	case ReminderStart:
		return db.NotificationHabitStart
	case ReminderEndApproaching:
		return db.NotificationHabitEnd
	default:
		return db.NotificationStreakAchievement
	}
}
