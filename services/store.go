package services

import (
	"context"
	"errors"
	"fmt"

	"orchidaquiz/models"

	"gorm.io/gorm"
)

// Store persists session, participant and response rows and reads quiz
// definitions. The in-memory session aggregate stays authoritative for
// every invariant; rows written here exist for result review and never
// feed back into live decisions.
type Store interface {
	LoadQuiz(ctx context.Context, quizID uint) (*models.Quiz, error)
	CreateSession(ctx context.Context, session *models.QuizSession) error
	SaveSession(ctx context.Context, session *models.QuizSession) error
	CreateParticipant(ctx context.Context, participant *models.Participant) error
	SaveParticipant(ctx context.Context, participant *models.Participant) error
	CreateResponse(ctx context.Context, response *models.Response) error
	SaveResponse(ctx context.Context, response *models.Response) error
}

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order")
		}).
		First(&quiz, quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz %d: %w", quizID, err)
	}
	return &quiz, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.QuizSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GormStore) SaveSession(ctx context.Context, session *models.QuizSession) error {
	return s.db.WithContext(ctx).Model(&models.QuizSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"status":              session.Status,
			"phase":               session.Phase,
			"current_question_id": session.CurrentQuestionID,
			"question_opened_at":  session.QuestionOpenedAt,
			"started_at":          session.StartedAt,
			"ended_at":            session.EndedAt,
		}).Error
}

func (s *GormStore) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	return s.db.WithContext(ctx).Create(participant).Error
}

func (s *GormStore) SaveParticipant(ctx context.Context, participant *models.Participant) error {
	return s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ?", participant.ID).
		Updates(map[string]interface{}{
			"score":            participant.Score,
			"total_elapsed_ms": participant.TotalElapsedMs,
			"connected":        participant.Connected,
		}).Error
}

func (s *GormStore) CreateResponse(ctx context.Context, response *models.Response) error {
	return s.db.WithContext(ctx).Create(response).Error
}

func (s *GormStore) SaveResponse(ctx context.Context, response *models.Response) error {
	return s.db.WithContext(ctx).Model(&models.Response{}).
		Where("id = ?", response.ID).
		Updates(map[string]interface{}{
			"is_correct": response.IsCorrect,
			"points":     response.Points,
		}).Error
}
