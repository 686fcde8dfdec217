package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beontime/internal/db"
	"gorm.io/gorm"
)

// ErrDuplicate 在唯一约束冲突时返回
var ErrDuplicate = errors.New("record already exists")

// ChallengeStore 负责挑战与参与者的持久化
type ChallengeStore struct {
	db *gorm.DB
}

// NewChallengeStore 构造 ChallengeStore
func NewChallengeStore(gdb *gorm.DB) *ChallengeStore {
	return &ChallengeStore{db: gdb}
}

// Create 保存挑战
func (s *ChallengeStore) Create(ctx context.Context, challenge *db.Challenge) error {
	if err := s.db.WithContext(ctx).Omit("Participants").Create(challenge).Error; err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// GetByID 获取挑战及其参与者
func (s *ChallengeStore) GetByID(ctx context.Context, id string) (*db.Challenge, error) {
	var challenge db.Challenge
	err := s.db.WithContext(ctx).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB { return tx.Order("joined_at ASC") }).
		First(&challenge, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &challenge, nil
}

// List 按创建时间倒序返回挑战
func (s *ChallengeStore) List(ctx context.Context) ([]db.Challenge, error) {
	var challenges []db.Challenge
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		Order("created_at DESC").
		Find(&challenges).Error; err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

// AddParticipant 写入参与记录，同一用户重复加入返回 ErrDuplicate
func (s *ChallengeStore) AddParticipant(ctx context.Context, participant *db.ChallengeParticipant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.ChallengeParticipant{}).
			Where("challenge_id = ? AND user_id = ?", participant.ChallengeID, participant.UserID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check participant: %w", err)
		}
		if count > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(participant).Error; err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		return nil
	})
}

// FindParticipant 获取用户在挑战中的参与记录
func (s *ChallengeStore) FindParticipant(ctx context.Context, challengeID string, userID uint) (*db.ChallengeParticipant, error) {
	var participant db.ChallengeParticipant
	err := s.db.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &participant, nil
}

// UpdateParticipantProgress 更新参与者进度；首次达到完成时记录完成时间
func (s *ChallengeStore) UpdateParticipantProgress(ctx context.Context, challengeID string, userID uint, progress int, completed bool, at time.Time) error {
	updates := map[string]interface{}{
		"progress":  progress,
		"completed": completed,
	}

	query := s.db.WithContext(ctx).Model(&db.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID)
	if completed {
		updates["completion_date"] = gorm.Expr("COALESCE(completion_date, ?)", at)
	} else {
		updates["completion_date"] = nil
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update participant progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveParticipant 删除参与记录
func (s *ChallengeStore) RemoveParticipant(ctx context.Context, challengeID string, userID uint) error {
	if err := s.db.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		Delete(&db.ChallengeParticipant{}).Error; err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}
