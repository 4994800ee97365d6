package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/cache"
	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (r *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := r.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var exam models.Exam

	err := r.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			return nil, err
		}
		return &dbExam, nil
	})
	if err != nil {
		return nil, err
	}

	return &exam, nil
}

func (r *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := r.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.position ASC")
		}).
		Preload("Questions.Question").
		First(&exam, id).Error; err != nil {
		return nil, err
	}

	exam.QuestionCount = len(exam.Questions)
	for _, eq := range exam.Questions {
		exam.TotalPoints += eq.Points
	}

	return &exam, nil
}

func (r *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(exam).Error; err != nil {
		return err
	}
	cache.InvalidateExamCache(ctx, r.cacheManager, exam.ID)
	return nil
}

func (r *ExamPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	cacheKey := fmt.Sprintf("exam:%d", id)
	if cached, err := r.cacheManager.Exists.GetString(ctx, cacheKey); err == nil {
		return cached == "1", nil
	}

	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.Exam{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}

	value := "0"
	if count > 0 {
		value = "1"
	}
	_ = r.cacheManager.Exists.SetString(ctx, cacheKey, value, cache.ExistsCacheConfig.TTL)

	return count > 0, nil
}
