package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuizAttempt records one user working through the quiz held by a specific
// artifact version. Attempts and responses are append-only consumer records;
// the engine never grades or mutates them.
type QuizAttempt struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID uuid.UUID        `gorm:"type:uuid;not null;index" json:"version_id"`
	Version   *ArtifactVersion `gorm:"constraint:OnDelete:CASCADE;foreignKey:VersionID;references:ID" json:"version,omitempty"`

	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	StartedAt   time.Time  `gorm:"not null;default:now()" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }

type QuizResponse struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID uuid.UUID    `gorm:"type:uuid;not null;index" json:"attempt_id"`
	Attempt   *QuizAttempt `gorm:"constraint:OnDelete:CASCADE;foreignKey:AttemptID;references:ID" json:"attempt,omitempty"`

	QuestionIndex int       `gorm:"not null" json:"question_index"`
	Answer        string    `gorm:"type:text;not null" json:"answer"`
	Correct       bool      `gorm:"not null" json:"correct"`
	AnsweredAt    time.Time `gorm:"not null;default:now()" json:"answered_at"`
}

func (QuizResponse) TableName() string { return "quiz_response" }
