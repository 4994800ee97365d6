package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

// Validator validates request DTOs before they reach domain logic.
type Validator interface {
	Validate(s any) error
}

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator Validator
	events    EventPublisher
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, validator Validator, events EventPublisher) AttemptService {
	return &attemptService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    events,
	}
}

// Start begins a new attempt or resumes the active one. A student never has
// two in-progress attempts on the same exam; reloading the take-exam view
// lands back on the existing attempt with its saved answers.
func (s *attemptService) Start(ctx context.Context, req StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, req.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.Status != models.ExamStatusActive {
		return nil, ErrExamNotActive
	}
	if exam.DueDate != nil && time.Now().After(*exam.DueDate) {
		return nil, NewBusinessRuleError("exam_due_date_passed", "exam due date has passed", ErrAttemptCannotStart)
	}

	// Resume the active attempt instead of creating a second one.
	if existing, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, exam.ID, studentID); err == nil {
		s.logger.Info("resuming active attempt",
			"attempt_id", existing.ID,
			"exam_id", exam.ID,
			"student_id", studentID)
		return s.GetByIDWithDetails(ctx, existing.ID, studentID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}

	count, err := s.repo.Attempt().GetAttemptCount(ctx, nil, exam.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if exam.MaxAttempts > 0 && count >= exam.MaxAttempts {
		return nil, ErrMaxAttemptsReached
	}

	now := time.Now()
	attempt := &models.ExamAttempt{
		ExamID:         exam.ID,
		StudentID:      studentID,
		AttemptNumber:  count + 1,
		Status:         models.AttemptInProgress,
		StartedAt:      now,
		Deadline:       AttemptDeadline(now, exam.TimeLimit),
		TotalQuestions: len(exam.Questions),
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			return err
		}
		return s.initializeAttemptAnswers(ctx, tx, attempt, exam)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}

	s.logger.Info("attempt started",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"student_id", studentID,
		"attempt_number", attempt.AttemptNumber)

	if s.events != nil {
		s.events.PublishAttemptStarted(ctx, attempt)
	}

	return s.GetByIDWithDetails(ctx, attempt.ID, studentID)
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	return s.buildAttemptResponse(attempt, false), nil
}

func (s *attemptService) GetByIDWithDetails(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.checkAccess(attempt, userID); err != nil {
		return nil, err
	}
	return s.buildAttemptResponse(attempt, true), nil
}

// SaveAnswer upserts one answer. Value shape is not validated here; the per
// question type check happens at grading time. Saving the same question
// again overwrites, re-navigation never clears.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req SaveAnswerRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if !attempt.IsActive() {
		return ErrAttemptNotActive
	}
	if expired, err := s.rejectIfExpired(ctx, attempt); expired {
		return err
	}

	answer := &models.AttemptAnswer{
		AttemptID:  attempt.ID,
		QuestionID: req.QuestionID,
		Answer:     normalizeAnswerJSON(req.Answer),
	}

	if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Debug("answer saved",
		"attempt_id", attempt.ID,
		"question_id", req.QuestionID)

	return nil
}

// ToggleFlag adds or removes a question from the attempt's flagged set and
// reports the new state. Flags are review bookkeeping only.
func (s *attemptService) ToggleFlag(ctx context.Context, attemptID uint, req ToggleFlagRequest, userID string) (bool, error) {
	if err := s.validator.Validate(req); err != nil {
		return false, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return false, err
	}
	if !attempt.IsActive() {
		return false, ErrAttemptNotActive
	}

	flags := decodeFlaggedSet(attempt.FlaggedQuestions)
	flagged := toggleFlagged(flags, req.QuestionID)

	encoded, err := json.Marshal(flaggedSetToSlice(flags))
	if err != nil {
		return false, fmt.Errorf("failed to encode flagged set: %w", err)
	}
	attempt.FlaggedQuestions = encoded

	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return false, fmt.Errorf("failed to update flags: %w", err)
	}

	return flagged, nil
}

// Progress reports answered/total as a percentage, recomputed on every call.
func (s *attemptService) Progress(ctx context.Context, attemptID uint, userID string) (*ProgressResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	answered := 0
	for _, a := range answers {
		if a.Answered() {
			answered++
		}
	}

	return &ProgressResponse{
		Answered:   answered,
		Total:      attempt.TotalQuestions,
		Percentage: ProgressPercentage(answered, attempt.TotalQuestions),
	}, nil
}

func (s *attemptService) TimeRemaining(ctx context.Context, attemptID uint, userID string) (*TimeRemainingResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	now := time.Now()
	resp := &TimeRemainingResponse{
		State:    TimerStateOf(attempt.StartedAt, exam.TimeLimit, now),
		Deadline: attempt.Deadline,
	}
	if exam.TimeLimit != nil {
		remaining := Remaining(attempt.StartedAt, *exam.TimeLimit*60, now)
		resp.RemainingSeconds = &remaining
	}

	return resp, nil
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	// Students only ever see their own attempts.
	filters.StudentID = &userID

	attempts, total, err := s.repo.Attempt().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	return s.buildListResponse(attempts, total, filters), nil
}

func (s *attemptService) GetByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	attempts, total, err := s.repo.Attempt().GetByExam(ctx, nil, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam attempts: %w", err)
	}

	return s.buildListResponse(attempts, total, filters), nil
}

func (s *attemptService) GetStats(ctx context.Context, examID uint, userID string) (*repositories.AttemptStats, error) {
	exists, err := s.repo.Exam().Exists(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	return s.repo.Attempt().GetStats(ctx, nil, examID)
}

// Review returns the post-submission report: summary plus per-question
// submitted/correct pairs with explanations.
func (s *attemptService) Review(ctx context.Context, attemptID uint, userID string) (*AttemptReview, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.checkAccess(attempt, userID); err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrAttemptNotActive
	}

	return buildAttemptReview(attempt)
}
