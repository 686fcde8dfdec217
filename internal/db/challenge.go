package db

import "time"

// Challenge 是限时挑战活动。参与者加入时会派生一个带回指的 Habit。
type Challenge struct {
	ID          string `gorm:"primaryKey;size:36"`
	CreatorID   uint   `gorm:"index"`
	Title       string `gorm:"not null"`
	Description string
	Category    string
	Frequency   string
	TargetDays  int
	StartDate   time.Time
	EndDate     time.Time

	Participants []ChallengeParticipant `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChallengeParticipant 记录参与者在挑战内的进度
type ChallengeParticipant struct {
	ID             uint   `gorm:"primaryKey"`
	ChallengeID    string `gorm:"size:36;index:idx_challenge_participant_unique,unique"`
	UserID         uint   `gorm:"index:idx_challenge_participant_unique,unique"`
	HabitID        string `gorm:"size:36"`
	Progress       int
	Completed      bool
	CompletionDate *time.Time
	StartTime      string `gorm:"size:5"`
	EndTime        string `gorm:"size:5"`
	JoinedAt       time.Time
}
