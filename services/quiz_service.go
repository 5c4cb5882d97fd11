package services

import (
	"errors"

	"orchidaquiz/models"

	"gorm.io/gorm"
)

type QuizService struct {
	db    *gorm.DB
	cache *QuizCache
}

func NewQuizService(db *gorm.DB, cache *QuizCache) *QuizService {
	return &QuizService{db: db, cache: cache}
}

type CreateQuizRequest struct {
	Title       string                  `json:"title" binding:"required"`
	Description string                  `json:"description"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"required,min=1"`
}

type CreateQuestionRequest struct {
	Type      string                `json:"type"`
	Text      string                `json:"text" binding:"required"`
	MediaURL  string                `json:"media_url"`
	TimeLimit int                   `json:"time_limit" binding:"required,min=5,max=300"`
	Order     int                   `json:"order" binding:"required"`
	Options   []CreateOptionRequest `json:"options" binding:"required,min=2,max=6"`
}

type CreateOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" binding:"required"`
}

type UpdateQuizRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Questions   []CreateQuestionRequest `json:"questions"`
}

// validateQuestion enforces the correctness-flag invariant per question
// type: single choice means exactly one correct option, multi choice at
// least one.
func validateQuestion(req *CreateQuestionRequest) error {
	if req.Type == "" {
		req.Type = "single_choice"
	}
	correctCount := 0
	for _, opt := range req.Options {
		if opt.IsCorrect {
			correctCount++
		}
	}
	switch req.Type {
	case "single_choice":
		if correctCount != 1 {
			return errors.New("a single-choice question must have exactly one correct option")
		}
	case "multi_choice":
		if correctCount < 1 {
			return errors.New("a multi-choice question must have at least one correct option")
		}
	default:
		return errors.New("unknown question type: " + req.Type)
	}
	return nil
}

func (s *QuizService) CreateQuiz(userID uint, req *CreateQuizRequest) (*models.Quiz, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	quiz := models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		UserID:      userID,
	}

	if err := tx.Create(&quiz).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createQuestions(tx, quiz.ID, req.Questions); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetQuizByID(quiz.ID, userID)
}

func createQuestions(tx *gorm.DB, quizID uint, requests []CreateQuestionRequest) error {
	for i := range requests {
		qReq := &requests[i]
		if err := validateQuestion(qReq); err != nil {
			return err
		}

		question := models.Question{
			QuizID:    quizID,
			Type:      qReq.Type,
			Text:      qReq.Text,
			MediaURL:  qReq.MediaURL,
			TimeLimit: qReq.TimeLimit,
			Order:     qReq.Order,
		}
		if err := tx.Create(&question).Error; err != nil {
			return err
		}

		for _, optReq := range qReq.Options {
			option := models.Option{
				QuestionID: question.ID,
				Text:       optReq.Text,
				IsCorrect:  optReq.IsCorrect,
				Order:      optReq.Order,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *QuizService) GetUserQuizzes(userID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := s.db.Where("user_id = ?", userID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order")
		}).
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (s *QuizService) GetQuizByID(quizID uint, userID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.Where("id = ? AND user_id = ?", quizID, userID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order")
		}).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *QuizService) UpdateQuiz(quizID uint, userID uint, req *UpdateQuizRequest) (*models.Quiz, error) {
	quiz, err := s.GetQuizByID(quizID, userID)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if req.Title != "" {
		quiz.Title = req.Title
	}
	if req.Description != "" {
		quiz.Description = req.Description
	}

	if err := tx.Save(quiz).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.Questions != nil {
		// Replacing questions drops their options too, otherwise the
		// old options linger as orphans.
		subQuery := s.db.Model(&models.Question{}).Select("id").Where("quiz_id = ?", quizID)
		if err := tx.Where("question_id IN (?)", subQuery).Delete(&models.Option{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := createQuestions(tx, quiz.ID, req.Questions); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(quizID)
	}
	return s.GetQuizByID(quiz.ID, userID)
}

func (s *QuizService) DeleteQuiz(quizID uint, userID uint) error {
	if _, err := s.GetQuizByID(quizID, userID); err != nil {
		return err
	}
	if err := s.db.Delete(&models.Quiz{}, quizID).Error; err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(quizID)
	}
	return nil
}
