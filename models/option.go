package models

import (
	"time"

	"gorm.io/gorm"
)

// Option is one answer choice of a question. IsCorrect is only ever
// serialized on host-facing quiz management endpoints; participant
// views are built from a reduced shape without it.
type Option struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	QuestionID uint           `json:"question_id" gorm:"index;not null"`
	Text       string         `json:"text" gorm:"not null"`
	IsCorrect  bool           `json:"is_correct" gorm:"not null;default:false"`
	Order      int            `json:"order" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
