package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// UintSlice stores a set of option ids as JSONB.
type UintSlice []uint

func (o *UintSlice) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value")
	}
	return json.Unmarshal(bytes, o)
}

func (o UintSlice) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

// Response is one participant's submission for one question. At most one
// row ever exists per (participant, question); later submissions are
// rejected, not overwritten.
type Response struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	SessionID     string    `json:"session_id" gorm:"index;not null;size:36"`
	ParticipantID string    `json:"participant_id" gorm:"index;not null;size:36"`
	QuestionID    uint      `json:"question_id" gorm:"not null"`
	OptionIDs     UintSlice `json:"option_ids" gorm:"type:jsonb;not null"`
	ElapsedMs     int64     `json:"elapsed_ms" gorm:"not null"` // server-measured since question open
	IsCorrect     bool      `json:"is_correct" gorm:"not null"`
	Points        int       `json:"points" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}
