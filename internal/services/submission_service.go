package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

// submissionService is the single guarded entry point for finishing an
// attempt. The manual path and the timer-expiry path both funnel through
// the same per-attempt lock, so racing calls produce exactly one grading
// run; later calls get the already stored summary.
type submissionService struct {
	repo      repositories.Repository
	grading   GradingService
	logger    *slog.Logger
	validator Validator
	events    EventPublisher

	// grace is how far past the deadline a manual submission still counts
	// as on time before it is closed as timed out.
	grace time.Duration
	now   func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewSubmissionService(repo repositories.Repository, grading GradingService, logger *slog.Logger, validator Validator, events EventPublisher, grace time.Duration) SubmissionService {
	return &submissionService{
		repo:      repo,
		grading:   grading,
		logger:    logger,
		validator: validator,
		events:    events,
		grace:     grace,
		now:       time.Now,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// lockAttempt serializes submissions per attempt id.
func (s *submissionService) lockAttempt(attemptID uint) func() {
	s.mu.Lock()
	lock, ok := s.locks[attemptID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[attemptID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *submissionService) Submit(ctx context.Context, attemptID uint, req SubmitAttemptRequest, userID string) (*AttemptSummary, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	unlock := s.lockAttempt(attemptID)
	defer unlock()

	attempt, err := s.loadForSubmission(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != userID {
		return nil, ErrAttemptNotFound
	}

	// Idempotency: a submitted attempt returns its stored summary, it is
	// never graded twice.
	if attempt.Status == models.AttemptSubmitted {
		summary := summaryFromAttempt(attempt)
		return &summary, nil
	}

	now := s.now()
	timedOut := attempt.Deadline != nil && now.After(attempt.Deadline.Add(s.grace))

	// Late submissions keep only what was saved before the deadline; final
	// answer edits arriving past the grace window are dropped.
	if !timedOut && len(req.Answers) > 0 {
		if err := s.applyFinalAnswers(ctx, attempt, req.Answers); err != nil {
			return nil, err
		}
	}

	endReason := models.AttemptEndReasonManual
	if timedOut {
		endReason = models.AttemptEndReasonTimeout
		s.logger.Warn("submission past deadline, closing as timed out",
			"attempt_id", attempt.ID,
			"deadline", attempt.Deadline)
	}

	return s.finalize(ctx, attempt, now, endReason)
}

// SubmitExpired closes a timed-out attempt on behalf of the sweeper. It
// shares the same per-attempt lock and idempotency rules as Submit.
func (s *submissionService) SubmitExpired(ctx context.Context, attemptID uint) (*AttemptSummary, error) {
	unlock := s.lockAttempt(attemptID)
	defer unlock()

	attempt, err := s.loadForSubmission(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptSubmitted {
		summary := summaryFromAttempt(attempt)
		return &summary, nil
	}

	return s.finalize(ctx, attempt, s.now(), models.AttemptEndReasonTimeout)
}

func (s *submissionService) loadForSubmission(ctx context.Context, attemptID uint) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.Exam == nil {
		return nil, fmt.Errorf("attempt %d has no exam loaded", attempt.ID)
	}
	return attempt, nil
}

func (s *submissionService) applyFinalAnswers(ctx context.Context, attempt *models.ExamAttempt, answers []SaveAnswerRequest) error {
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, req := range answers {
			answer := &models.AttemptAnswer{
				AttemptID:  attempt.ID,
				QuestionID: req.QuestionID,
				Answer:     normalizeAnswerJSON(req.Answer),
			}
			if err := s.repo.Answer().Upsert(ctx, tx, answer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply final answers: %w", err)
	}

	// Reload so the payload sees the flushed answers.
	fresh, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to reload answers: %w", err)
	}
	attempt.Answers = make([]models.AttemptAnswer, len(fresh))
	for i, a := range fresh {
		attempt.Answers[i] = *a
	}

	return nil
}

// finalize grades and persists in one transaction. Any failure rolls back
// with the attempt still in progress, so a retry is safe and no half
// submitted state exists.
func (s *submissionService) finalize(ctx context.Context, attempt *models.ExamAttempt, now time.Time, endReason models.AttemptEndReason) (*AttemptSummary, error) {
	payload := BuildSubmissionPayload(attempt, now)

	examQuestions := make([]*models.ExamQuestion, 0, len(attempt.Exam.Questions))
	for i := range attempt.Exam.Questions {
		examQuestions = append(examQuestions, &attempt.Exam.Questions[i])
	}

	graded, err := s.grading.Grade(ctx, examQuestions, payload.Entries)
	if err != nil {
		return nil, fmt.Errorf("grading failed: %w", err)
	}

	summary := s.grading.Summarize(graded, attempt.Exam, payload.TimeSpent)
	summary.AttemptID = attempt.ID

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.persistVerdicts(ctx, tx, attempt, graded); err != nil {
			return err
		}
		return s.persistSummary(ctx, tx, attempt, summary, now, endReason)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	s.logger.Info("attempt submitted",
		"attempt_id", attempt.ID,
		"exam_id", attempt.ExamID,
		"student_id", attempt.StudentID,
		"end_reason", endReason,
		"score_percentage", summary.ScorePercentage,
		"passed", summary.IsPassed)

	if s.events != nil {
		if endReason == models.AttemptEndReasonTimeout {
			s.events.PublishAttemptExpired(ctx, attempt, &summary)
		} else {
			s.events.PublishAttemptSubmitted(ctx, attempt, &summary)
		}
	}

	return &summary, nil
}

func (s *submissionService) persistVerdicts(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt, graded []GradedAnswer) error {
	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answersByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	updated := make([]*models.AttemptAnswer, 0, len(graded))
	for i := range graded {
		g := &graded[i]
		answer, ok := answersByQuestion[g.QuestionID]
		if !ok {
			answer = &models.AttemptAnswer{
				AttemptID:  attempt.ID,
				QuestionID: g.QuestionID,
			}
		}

		isCorrect := g.IsCorrect
		points := g.PointsEarned
		feedback := g.Feedback
		answer.IsCorrect = &isCorrect
		answer.PointsEarned = &points
		answer.Feedback = &feedback
		answer.IsGraded = !g.PendingManual

		if ok {
			updated = append(updated, answer)
		} else {
			if err := s.repo.Answer().Upsert(ctx, tx, answer); err != nil {
				return err
			}
		}
	}

	return s.repo.Answer().UpdateBatch(ctx, tx, updated)
}

func (s *submissionService) persistSummary(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt, summary AttemptSummary, now time.Time, endReason models.AttemptEndReason) error {
	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now
	attempt.TimeSpent = &summary.TimeSpent
	attempt.EndReason = &endReason
	attempt.CorrectAnswers = &summary.CorrectAnswers
	attempt.TotalQuestions = summary.TotalQuestions
	attempt.ScorePercentage = &summary.ScorePercentage
	attempt.EarnedPoints = &summary.EarnedPoints
	attempt.TotalPoints = &summary.TotalPoints
	attempt.Passed = &summary.IsPassed
	attempt.Grade = &summary.Grade

	return s.repo.Attempt().Update(ctx, tx, attempt)
}

// BuildSubmissionPayload assembles the grading input: exactly one entry per
// exam question, in exam order, with JSON null for unanswered questions.
// TimeSpent is whole seconds since the start, clamped at the deadline for
// late submissions.
func BuildSubmissionPayload(attempt *models.ExamAttempt, now time.Time) SubmissionPayload {
	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answersByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	entries := make([]SubmissionEntry, 0, len(attempt.Exam.Questions))
	for _, eq := range attempt.Exam.Questions {
		entry := SubmissionEntry{
			QuestionID: eq.QuestionID,
			Answer:     json.RawMessage("null"),
		}
		if answer, ok := answersByQuestion[eq.QuestionID]; ok && answer.Answered() {
			entry.Answer = json.RawMessage(answer.Answer)
		}
		entries = append(entries, entry)
	}

	end := now
	if attempt.Deadline != nil && end.After(*attempt.Deadline) {
		end = *attempt.Deadline
	}

	return SubmissionPayload{
		AttemptID: attempt.ID,
		Entries:   entries,
		TimeSpent: int(end.Sub(attempt.StartedAt).Seconds()),
	}
}

// summaryFromAttempt rebuilds the summary of an already submitted attempt
// from its stored aggregates.
func summaryFromAttempt(attempt *models.ExamAttempt) AttemptSummary {
	summary := AttemptSummary{
		AttemptID:      attempt.ID,
		TotalQuestions: attempt.TotalQuestions,
	}
	if attempt.CorrectAnswers != nil {
		summary.CorrectAnswers = *attempt.CorrectAnswers
	}
	if attempt.ScorePercentage != nil {
		summary.ScorePercentage = *attempt.ScorePercentage
	}
	if attempt.Passed != nil {
		summary.IsPassed = *attempt.Passed
	}
	if attempt.EarnedPoints != nil {
		summary.EarnedPoints = *attempt.EarnedPoints
	}
	if attempt.TotalPoints != nil {
		summary.TotalPoints = *attempt.TotalPoints
	}
	if attempt.TimeSpent != nil {
		summary.TimeSpent = *attempt.TimeSpent
	}
	if attempt.Grade != nil {
		summary.Grade = *attempt.Grade
	}
	return summary
}
