package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
	"github.com/google/uuid"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

var validCategories = []string{
	db.CategoryHealth,
	db.CategoryProductivity,
	db.CategorySelfCare,
	db.CategoryLearning,
	db.CategoryOther,
}

var validFrequencies = []string{db.FrequencyDaily, db.FrequencyWeekly, db.FrequencyMonthly}

// HabitService 负责 Habit 的增删改查
// 所有操作都以调用者身份（actorID）校验所有权，派生字段只由完成引擎与调度器维护
type HabitService struct {
	store   store.HabitStore
	clock   clock.Clock
	timeout time.Duration
}

// HabitInput 定义创建/更新习惯时可配置字段
// SourceKind/SourceID 只由挑战、社区等协作方在创建时填写
type HabitInput struct {
	Title              string
	Description        string
	Category           string
	Frequency          string
	TargetDays         int
	StartDate          *time.Time
	EndDate            *time.Time
	StartTime          string
	EndTime            string
	NotifyEnabled      bool
	NotifyStart        bool
	NotifyEnd          bool
	EndReminderMinutes int
	Tags               []string
	SourceKind         string
	SourceID           string
}

// NewHabitService 构造 HabitService
func NewHabitService(habits store.HabitStore, clk clock.Clock, timeout time.Duration) *HabitService {
	return &HabitService{store: habits, clock: clk, timeout: timeout}
}

// List 返回调用者的习惯集合，支持分类与关键字筛选
func (s *HabitService) List(ctx context.Context, actorID uint, filter store.HabitFilter) ([]db.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	habits, err := s.store.FindByOwner(ctx, actorID, filter)
	if err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	return habits, nil
}

// Today 返回今天处于有效期内的习惯，按开始时间排序
func (s *HabitService) Today(ctx context.Context, actorID uint) ([]db.Habit, error) {
	habits, err := s.List(ctx, actorID, store.HabitFilter{})
	if err != nil {
		return nil, err
	}

	today := normalizeToDate(s.clock.Now())
	active := make([]db.Habit, 0, len(habits))
	for _, habit := range habits {
		if activeOn(habit, today) {
			active = append(active, habit)
		}
	}

	sortByStartTime(active)
	return active, nil
}

// sortByStartTime 按开始时间升序排序，未设置开始时间的排在最后
func sortByStartTime(habits []db.Habit) {
	sort.SliceStable(habits, func(i, j int) bool {
		a, b := habits[i].StartTime, habits[j].StartTime
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})
}

// Get 根据 ID 获取习惯并校验所有权
func (s *HabitService) Get(ctx context.Context, id string, actorID uint) (*db.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	habit, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	if habit.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(ctx context.Context, actorID uint, input HabitInput) (*db.Habit, error) {
	habit := &db.Habit{
		ID:         uuid.NewString(),
		OwnerID:    actorID,
		SourceKind: strings.TrimSpace(input.SourceKind),
		SourceID:   strings.TrimSpace(input.SourceID),
	}
	if err := applyHabitInput(habit, input, s.clock.Now().Location()); err != nil {
		return nil, err
	}
	if err := validateHabit(*habit); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Create(ctx, habit); err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	return habit, nil
}

// Update 更新习惯的日程与提醒配置，派生字段与来源保持不变
func (s *HabitService) Update(ctx context.Context, id string, actorID uint, input HabitInput) (*db.Habit, error) {
	existing, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	if err := applyHabitInput(existing, input, s.clock.Now().Location()); err != nil {
		return nil, err
	}
	if err := validateHabit(*existing); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Update(ctx, existing, nil); err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	return existing, nil
}

// Delete 删除习惯，连带删除账本、备注和提醒标记
func (s *HabitService) Delete(ctx context.Context, id string, actorID uint) error {
	if _, err := s.Get(ctx, id, actorID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Delete(ctx, id); err != nil {
		return translateStoreError(err, ErrHabitNotFound)
	}
	return nil
}

// AddNote 为习惯追加一条备注
func (s *HabitService) AddNote(ctx context.Context, id string, actorID uint, content string) (*db.HabitNote, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("note content is required")
	}

	if _, err := s.Get(ctx, id, actorID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	note := &db.HabitNote{HabitID: id, Content: content, CreatedAt: s.clock.Now()}
	if err := s.store.AddNote(ctx, note); err != nil {
		return nil, translateStoreError(err, ErrHabitNotFound)
	}
	return note, nil
}

func applyHabitInput(habit *db.Habit, input HabitInput, loc *time.Location) error {
	if input.StartDate == nil {
		return validationError("start date is required")
	}

	habit.Title = strings.TrimSpace(input.Title)
	habit.Description = strings.TrimSpace(input.Description)
	habit.Category = canonical(validCategories, input.Category)
	habit.Frequency = canonical(validFrequencies, input.Frequency)
	habit.TargetDays = input.TargetDays
	habit.StartDate = normalizeToDate(input.StartDate.In(loc))
	habit.EndDate = nil
	if input.EndDate != nil {
		end := normalizeToDate(input.EndDate.In(loc))
		habit.EndDate = &end
	}
	habit.StartTime = strings.TrimSpace(input.StartTime)
	habit.EndTime = strings.TrimSpace(input.EndTime)
	habit.NotifyEnabled = input.NotifyEnabled
	habit.NotifyStart = input.NotifyStart
	habit.NotifyEnd = input.NotifyEnd
	habit.EndReminderMinutes = input.EndReminderMinutes
	if habit.EndReminderMinutes == 0 {
		habit.EndReminderMinutes = db.DefaultEndReminderMinutes
	}
	habit.Tags = normalizeTags(input.Tags)
	return nil
}

// validateHabit 校验持久化前必须成立的字段约束
func validateHabit(habit db.Habit) error {
	if habit.Title == "" {
		return validationError("title is required")
	}
	if !contains(validCategories, habit.Category) {
		return validationError("unsupported category %q", habit.Category)
	}
	if !contains(validFrequencies, habit.Frequency) {
		return validationError("unsupported frequency %q", habit.Frequency)
	}
	if habit.TargetDays < 1 {
		return validationError("target days must be at least 1")
	}
	if habit.StartDate.IsZero() {
		return validationError("start date is required")
	}
	if habit.EndDate != nil && habit.EndDate.Before(habit.StartDate) {
		return validationError("end date must not be before start date")
	}
	if habit.StartTime != "" && !timeOfDayPattern.MatchString(habit.StartTime) {
		return validationError("invalid start time %q, expected HH:mm", habit.StartTime)
	}
	if habit.EndTime != "" && !timeOfDayPattern.MatchString(habit.EndTime) {
		return validationError("invalid end time %q, expected HH:mm", habit.EndTime)
	}
	if habit.EndReminderMinutes < 1 || habit.EndReminderMinutes > 60 {
		return validationError("end reminder minutes must be within 1-60")
	}
	if habit.Streak < 0 || habit.Progress < 0 || habit.Progress > 100 {
		return validationError("derived state out of range")
	}
	switch habit.SourceKind {
	case "", db.SourceChallenge, db.SourceCommunity:
	default:
		return validationError("unsupported source kind %q", habit.SourceKind)
	}
	return nil
}

// canonical 忽略大小写匹配合法取值，未命中时原样返回交由校验报错
func canonical(values []string, input string) string {
	trimmed := strings.TrimSpace(input)
	for _, value := range values {
		if strings.EqualFold(value, trimmed) {
			return value
		}
	}
	return trimmed
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}
