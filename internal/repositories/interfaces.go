package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
)

// AttemptFilters narrows attempt listings. Zero values mean "no filter".
type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status,omitempty"`
	ExamID    *uint                 `json:"exam_id,omitempty"`
	StudentID *string               `json:"student_id,omitempty"`
	DateFrom  *time.Time            `json:"date_from,omitempty"`
	DateTo    *time.Time            `json:"date_to,omitempty"`
	Limit     int                   `json:"limit,omitempty"`
	Offset    int                   `json:"offset,omitempty"`
	SortBy    string                `json:"sort_by,omitempty"`
	SortOrder string                `json:"sort_order,omitempty"`
}

// AttemptStats aggregates attempt outcomes for one exam.
type AttemptStats struct {
	TotalAttempts    int     `json:"total_attempts"`
	InProgressCount  int     `json:"in_progress_count"`
	SubmittedCount   int     `json:"submitted_count"`
	TimedOutCount    int     `json:"timed_out_count"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`
	AverageTimeSpent float64 `json:"average_time_spent"`
}

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error

	GetActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error)
	HasActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error)
	GetAttemptCount(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error)
	GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error)

	// GetExpiredAttempts returns in-progress attempts whose deadline passed
	// before cutoff. Used by the timeout sweeper.
	GetExpiredAttempts(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*models.ExamAttempt, error)

	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*AttemptStats, error)
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error)
	UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}
