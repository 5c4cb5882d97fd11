package models

import (
	"time"

	"gorm.io/gorm"
)

type Question struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	QuizID    uint           `json:"quiz_id" gorm:"not null"`
	Type      string         `json:"type" gorm:"not null;default:'single_choice'"` // single_choice, multi_choice
	Text      string         `json:"text" gorm:"not null"`
	MediaURL  string         `json:"media_url"`
	TimeLimit int            `json:"time_limit" gorm:"not null;default:30"` // seconds
	Order     int            `json:"order" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Quiz    Quiz     `json:"quiz,omitempty"`
	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}
