package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/cache"
	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := r.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var question models.Question

	err := r.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			return nil, err
		}
		return &dbQuestion, nil
	})
	if err != nil {
		return nil, err
	}

	return &question, nil
}

func (r *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := r.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	db := r.getDB(tx)
	var examQuestions []*models.ExamQuestion
	err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC").
		Preload("Question").
		Find(&examQuestions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return examQuestions, nil
}
