package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edupulse/attempt-service/internal/cache"
	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var attempt models.ExamAttempt

	err := a.cacheManager.Attempt.CacheOrExecute(ctx, cacheKey, &attempt, cache.AttemptCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.ExamAttempt
		if err := db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, err
		}
		return &dbAttempt, nil
	})
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	if err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.position ASC")
		}).
		Preload("Exam.Questions.Question").
		Preload("Answers").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return err
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.ExamID, attempt.StudentID)
	return nil
}

func (a *AttemptPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d", id))
	return nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	err := db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, models.AttemptInProgress).
		Order("started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) HasActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, models.AttemptInProgress).
		Count(&count).Error
	return count > 0, err
}

func (a *AttemptPostgreSQL) GetAttemptCount(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	return int(count), err
}

func (a *AttemptPostgreSQL) GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error) {
	count, err := a.GetAttemptCount(ctx, tx, examID, studentID)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (a *AttemptPostgreSQL) GetExpiredAttempts(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.ExamAttempt
	err := db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", models.AttemptInProgress, cutoff).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get expired attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.ExamAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.ExamAttempt{})
	query = applyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.ExamID = &examID
	return a.List(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.StudentID = &studentID
	return a.List(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%d:attempts", examID)
	var stats repositories.AttemptStats

	err := a.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var result repositories.AttemptStats

		type row struct {
			Total      int64
			InProgress int64
			Submitted  int64
			TimedOut   int64
			AvgScore   *float64
			PassRate   *float64
			AvgTime    *float64
		}
		var r row

		err := db.WithContext(ctx).
			Model(&models.ExamAttempt{}).
			Select(`
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE status = ?) AS in_progress,
				COUNT(*) FILTER (WHERE status = ?) AS submitted,
				COUNT(*) FILTER (WHERE end_reason = ?) AS timed_out,
				AVG(score_percentage) AS avg_score,
				AVG(CASE WHEN passed THEN 1.0 ELSE 0.0 END) AS pass_rate,
				AVG(time_spent) AS avg_time`,
				models.AttemptInProgress, models.AttemptSubmitted, models.AttemptEndReasonTimeout).
			Where("exam_id = ?", examID).
			Scan(&r).Error
		if err != nil {
			return nil, fmt.Errorf("failed to compute attempt stats: %w", err)
		}

		result.TotalAttempts = int(r.Total)
		result.InProgressCount = int(r.InProgress)
		result.SubmittedCount = int(r.Submitted)
		result.TimedOutCount = int(r.TimedOut)
		if r.AvgScore != nil {
			result.AverageScore = *r.AvgScore
		}
		if r.PassRate != nil {
			result.PassRate = *r.PassRate * 100
		}
		if r.AvgTime != nil {
			result.AverageTimeSpent = *r.AvgTime
		}

		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (r *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	db := r.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create answers: %w", err)
	}
	return nil
}

func (r *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	db := r.getDB(tx)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "is_correct", "points_earned", "is_graded", "feedback", "updated_at"}),
		}).
		Create(answer).Error
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

func (r *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	db := r.getDB(tx)
	var answers []*models.AttemptAnswer
	err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

func (r *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error) {
	db := r.getDB(tx)
	var answer models.AttemptAnswer
	err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerPostgreSQL) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	db := r.getDB(tx)
	for _, answer := range answers {
		if err := db.WithContext(ctx).Save(answer).Error; err != nil {
			return fmt.Errorf("failed to update answer %d: %w", answer.ID, err)
		}
	}
	return nil
}
