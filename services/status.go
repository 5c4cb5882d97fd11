package services

import (
	"time"

	"orchidaquiz/models"
)

// OptionView and QuestionView are the participant-facing shapes of quiz
// content. Correctness flags are deliberately absent: they must never
// reach a client before the question closes.
type OptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID        uint         `json:"id"`
	Type      string       `json:"type"`
	Text      string       `json:"text"`
	MediaURL  string       `json:"media_url,omitempty"`
	TimeLimit int          `json:"time_limit"` // seconds
	Options   []OptionView `json:"options"`
}

func questionView(question *models.Question, limitSec int) QuestionView {
	view := QuestionView{
		ID:        question.ID,
		Type:      question.Type,
		Text:      question.Text,
		MediaURL:  question.MediaURL,
		TimeLimit: limitSec,
		Options:   make([]OptionView, len(question.Options)),
	}
	for i, opt := range question.Options {
		view.Options[i] = OptionView{ID: opt.ID, Text: opt.Text}
	}
	return view
}

// SessionStatus is the poll-friendly snapshot of a session. Every state
// change a client could miss over the push channel is recoverable from
// here.
type SessionStatus struct {
	ID              string             `json:"id"`
	Pin             string             `json:"pin"`
	QuizID          uint               `json:"quiz_id"`
	Status          string             `json:"status"`
	Phase           string             `json:"phase,omitempty"`
	QuestionIndex   int                `json:"question_index"`
	TotalQuestions  int                `json:"total_questions"`
	CurrentQuestion *QuestionView      `json:"current_question,omitempty"`
	EndsAt          *time.Time         `json:"ends_at,omitempty"`
	PlayerCount     int                `json:"player_count"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
}

// Status returns a consistent snapshot of the session.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() SessionStatus {
	status := SessionStatus{
		ID:             s.id,
		Pin:            s.pin,
		QuizID:         s.quiz.ID,
		Status:         s.status,
		Phase:          s.phase,
		QuestionIndex:  s.current,
		TotalQuestions: len(s.quiz.Questions),
		PlayerCount:    len(s.participants),
		Leaderboard:    s.leaderboardLocked(),
	}
	if s.current >= 0 && s.phase == models.PhaseQuestionOpen {
		question := &s.quiz.Questions[s.current]
		limit := s.questionLimit(question)
		view := questionView(question, int(limit.Seconds()))
		status.CurrentQuestion = &view
		endsAt := s.openedAt.Add(limit)
		status.EndsAt = &endsAt
	}
	return status
}
