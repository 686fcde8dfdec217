package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/store"
	"github.com/google/uuid"
)

// ErrAlreadyJoined 在用户重复加入同一挑战时返回
var ErrAlreadyJoined = errors.New("already joined this challenge")

// ChallengeProgress 是完成引擎在挑战习惯上调用的协作方
type ChallengeProgress interface {
	GetByHabitBackref(ctx context.Context, id string) (*db.Challenge, error)
	UpdateParticipantProgress(ctx context.Context, id string, actorID uint, progress int) error
}

// ChallengeInput 定义创建挑战的字段
type ChallengeInput struct {
	Title       string
	Description string
	Category    string
	Frequency   string
	TargetDays  int
	StartDate   time.Time
	EndDate     time.Time
}

// JoinInput 是参与者加入挑战时的时间偏好
type JoinInput struct {
	StartTime string
	EndTime   string
}

// ChallengeService 管理限时挑战，加入挑战会派生一个带回指的习惯
type ChallengeService struct {
	store   *store.ChallengeStore
	habits  *HabitService
	clock   clock.Clock
	timeout time.Duration
}

// NewChallengeService 构造 ChallengeService
func NewChallengeService(challenges *store.ChallengeStore, habits *HabitService, clk clock.Clock, timeout time.Duration) *ChallengeService {
	return &ChallengeService{store: challenges, habits: habits, clock: clk, timeout: timeout}
}

var _ ChallengeProgress = (*ChallengeService)(nil)

// Create 新建挑战
func (s *ChallengeService) Create(ctx context.Context, actorID uint, input ChallengeInput) (*db.Challenge, error) {
	loc := s.clock.Now().Location()
	challenge := &db.Challenge{
		ID:          uuid.NewString(),
		CreatorID:   actorID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    canonical(validCategories, input.Category),
		Frequency:   canonical(validFrequencies, input.Frequency),
		TargetDays:  input.TargetDays,
		StartDate:   normalizeToDate(input.StartDate.In(loc)),
		EndDate:     normalizeToDate(input.EndDate.In(loc)),
	}

	switch {
	case challenge.Title == "":
		return nil, validationError("title is required")
	case !contains(validCategories, challenge.Category):
		return nil, validationError("unsupported category %q", challenge.Category)
	case !contains(validFrequencies, challenge.Frequency):
		return nil, validationError("unsupported frequency %q", challenge.Frequency)
	case challenge.TargetDays < 1:
		return nil, validationError("target days must be at least 1")
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		return nil, validationError("start and end dates are required")
	case challenge.EndDate.Before(challenge.StartDate):
		return nil, validationError("end date must not be before start date")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Create(ctx, challenge); err != nil {
		return nil, translateStoreError(err, ErrChallengeNotFound)
	}
	return challenge, nil
}

// List 返回所有挑战
func (s *ChallengeService) List(ctx context.Context) ([]db.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	challenges, err := s.store.List(ctx)
	if err != nil {
		return nil, translateStoreError(err, ErrChallengeNotFound)
	}
	return challenges, nil
}

// Get 获取挑战详情
func (s *ChallengeService) Get(ctx context.Context, id string) (*db.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	challenge, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, ErrChallengeNotFound)
	}
	return challenge, nil
}

// GetByHabitBackref 根据习惯上的回指获取挑战
func (s *ChallengeService) GetByHabitBackref(ctx context.Context, id string) (*db.Challenge, error) {
	return s.Get(ctx, id)
}

// Join 加入挑战并创建对应的挑战习惯
func (s *ChallengeService) Join(ctx context.Context, id string, actorID uint, input JoinInput) (*db.Challenge, *db.Habit, error) {
	challenge, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, participant := range challenge.Participants {
		if participant.UserID == actorID {
			return nil, nil, ErrAlreadyJoined
		}
	}

	startDate, endDate := challenge.StartDate, challenge.EndDate
	habit, err := s.habits.Create(ctx, actorID, HabitInput{
		Title:              challenge.Title,
		Description:        challenge.Description,
		Category:           challenge.Category,
		Frequency:          challenge.Frequency,
		TargetDays:         challenge.TargetDays,
		StartDate:          &startDate,
		EndDate:            &endDate,
		StartTime:          input.StartTime,
		EndTime:            input.EndTime,
		NotifyEnabled:      true,
		NotifyStart:        true,
		NotifyEnd:          true,
		EndReminderMinutes: db.DefaultEndReminderMinutes,
		SourceKind:         db.SourceChallenge,
		SourceID:           challenge.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	participant := &db.ChallengeParticipant{
		ChallengeID: challenge.ID,
		UserID:      actorID,
		HabitID:     habit.ID,
		StartTime:   habit.StartTime,
		EndTime:     habit.EndTime,
		JoinedAt:    s.clock.Now(),
	}
	if err := s.store.AddParticipant(storeCtx, participant); err != nil {
		if delErr := s.habits.Delete(ctx, habit.ID, actorID); delErr != nil {
			log.Printf("[challenge] failed to remove habit %s after join error: %v", habit.ID, delErr)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, ErrAlreadyJoined
		}
		return nil, nil, translateStoreError(err, ErrChallengeNotFound)
	}

	challenge.Participants = append(challenge.Participants, *participant)
	return challenge, habit, nil
}

// Leave 退出挑战并删除派生的挑战习惯
func (s *ChallengeService) Leave(ctx context.Context, id string, actorID uint) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	participant, err := s.store.FindParticipant(storeCtx, id, actorID)
	if err != nil {
		return translateStoreError(err, ErrChallengeNotFound)
	}
	if err := s.store.RemoveParticipant(storeCtx, id, actorID); err != nil {
		return translateStoreError(err, ErrChallengeNotFound)
	}
	if participant.HabitID == "" {
		return nil
	}
	if err := s.habits.Delete(ctx, participant.HabitID, actorID); err != nil && !errors.Is(err, ErrHabitNotFound) {
		return err
	}
	return nil
}

// UpdateParticipantProgress 写入参与者进度，进度达到 100 时标记完成
func (s *ChallengeService) UpdateParticipantProgress(ctx context.Context, id string, actorID uint, progress int) error {
	progress = min(100, max(0, progress))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.store.UpdateParticipantProgress(ctx, id, actorID, progress, progress >= 100, s.clock.Now())
	return translateStoreError(err, ErrChallengeNotFound)
}

// challengeProgress 计算挑战窗口内的完成百分比
func challengeProgress(challenge db.Challenge, entries []db.HabitEntry) int {
	start := normalizeToDate(challenge.StartDate)
	end := normalizeToDate(challenge.EndDate.In(start.Location()))

	totalDays := int(math.Ceil(end.Sub(start).Hours() / 24))
	if totalDays < 1 {
		totalDays = 1
	}

	startKey, endKey := dayKey(start), dayKey(end)
	completed := 0
	for _, entry := range entries {
		if entry.Completed && entry.Day >= startKey && entry.Day <= endKey {
			completed++
		}
	}

	return min(100, int(math.Round(100*float64(completed)/float64(totalDays))))
}
