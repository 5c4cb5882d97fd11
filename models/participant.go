package models

import (
	"time"

	"gorm.io/gorm"
)

type Participant struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	SessionID string         `json:"session_id" gorm:"index;not null;size:36"`
	Nickname  string         `json:"nickname" gorm:"not null"`
	UserID    *uint          `json:"user_id,omitempty"` // nil for anonymous play
	Score     int            `json:"score" gorm:"not null;default:0"`
	JoinOrder int            `json:"join_order" gorm:"not null"`
	Connected bool           `json:"connected" gorm:"not null;default:true"`
	JoinedAt  time.Time      `json:"joined_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// TotalElapsedMs accumulates server-measured response time across
	// answered questions; it is the leaderboard tie-breaker.
	TotalElapsedMs int64 `json:"total_elapsed_ms" gorm:"not null;default:0"`
}
