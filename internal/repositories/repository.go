package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates the per-entity repository interfaces.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	User() UserRepository

	// WithTransaction runs fn inside a database transaction; the tx handle
	// is passed through to repository calls made within fn.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager handles repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
