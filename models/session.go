package models

import (
	"time"

	"gorm.io/gorm"
)

// Session statuses. A session is mutable only until it reaches
// StatusFinished; finished rows are retained for result review.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// Sub-phases of an in-progress session.
const (
	PhaseQuestionOpen     = "question_open"
	PhaseQuestionClosed   = "question_closed"
	PhaseLeaderboardShown = "leaderboard_shown"
)

type QuizSession struct {
	ID                string         `json:"id" gorm:"primaryKey;size:36"`
	QuizID            uint           `json:"quiz_id" gorm:"not null"`
	HostID            uint           `json:"host_id" gorm:"not null"`
	Pin               string         `json:"pin" gorm:"index;not null"`
	Status            string         `json:"status" gorm:"not null;default:'waiting'"`
	Phase             string         `json:"phase,omitempty"`
	CurrentQuestionID *uint          `json:"current_question_id,omitempty"`
	QuestionOpenedAt  *time.Time     `json:"question_opened_at,omitempty"`
	TimeLimitOverride *int           `json:"time_limit_override,omitempty"` // seconds, applies to every question
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quiz         Quiz          `json:"quiz,omitempty"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:SessionID"`
	Responses    []Response    `json:"responses,omitempty" gorm:"foreignKey:SessionID"`
}
