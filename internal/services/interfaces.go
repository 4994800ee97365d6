package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

// ===== Request DTOs =====

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

// SaveAnswerRequest carries one answer edit. Answer is the raw JSON value
// whose shape follows the question type: a string for multiple choice,
// short answer, essay and fill-in-blank, a boolean for true/false.
type SaveAnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	Answer     json.RawMessage `json:"answer"`
}

type ToggleFlagRequest struct {
	QuestionID uint `json:"question_id" validate:"required"`
}

// SubmitAttemptRequest may carry final answer edits applied before the
// payload is assembled, so a client can flush unsaved answers and submit in
// one call.
type SubmitAttemptRequest struct {
	Answers []SaveAnswerRequest `json:"answers,omitempty"`
}

// ===== Submission payload =====

// SubmissionEntry is one slot of the grading payload. Answer is JSON null
// for unanswered questions, never omitted.
type SubmissionEntry struct {
	QuestionID uint            `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// SubmissionPayload is the complete, order-stable grading input: exactly one
// entry per exam question, in exam order, plus elapsed seconds.
type SubmissionPayload struct {
	AttemptID uint              `json:"attempt_id"`
	Entries   []SubmissionEntry `json:"entries"`
	TimeSpent int               `json:"time_spent"`
}

// ===== Grading output =====

// GradedAnswer is the grading verdict for one question.
type GradedAnswer struct {
	QuestionID    uint            `json:"question_id"`
	Answer        json.RawMessage `json:"answer"`
	IsCorrect     bool            `json:"is_correct"`
	PointsEarned  float64         `json:"points_earned"`
	MaxPoints     int             `json:"max_points"`
	Feedback      string          `json:"feedback,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	Explanation   *string         `json:"explanation,omitempty"`

	// PendingManual marks answers (essays) that need a teacher's grade.
	PendingManual bool `json:"pending_manual,omitempty"`
}

// AttemptSummary aggregates per-question verdicts into the final report.
// ScorePercentage is count-weighted (correct / total) unless the exam opts
// into points-weighted passing.
type AttemptSummary struct {
	AttemptID       uint    `json:"attempt_id"`
	TotalQuestions  int     `json:"total_questions"`
	CorrectAnswers  int     `json:"correct_answers"`
	ScorePercentage float64 `json:"score_percentage"`
	IsPassed        bool    `json:"is_passed"`
	EarnedPoints    float64 `json:"earned_points"`
	TotalPoints     int     `json:"total_points"`
	TimeSpent       int     `json:"time_spent"`
	Grade           string  `json:"grade"`
}

// QuestionReview pairs a graded answer with its question for the results
// view. Submitted and Correct are display strings; boolean answers are
// rendered "True"/"False".
type QuestionReview struct {
	QuestionID   uint                `json:"question_id"`
	Position     int                 `json:"position"`
	Type         models.QuestionType `json:"type"`
	Text         string              `json:"text"`
	Submitted    *string             `json:"submitted"`
	Correct      string              `json:"correct,omitempty"`
	IsCorrect    bool                `json:"is_correct"`
	PointsEarned float64             `json:"points_earned"`
	MaxPoints    int                 `json:"max_points"`
	Explanation  *string             `json:"explanation,omitempty"`
}

// AttemptReview is the full post-submission report.
type AttemptReview struct {
	Summary   AttemptSummary   `json:"summary"`
	Questions []QuestionReview `json:"questions"`
}

// ===== Attempt views =====

// AttemptQuestion is a question as served to an in-progress attempt:
// sanitized content, the saved answer and flag state, never the grading key.
type AttemptQuestion struct {
	QuestionID uint                `json:"question_id"`
	Position   int                 `json:"position"`
	Type       models.QuestionType `json:"type"`
	Text       string              `json:"text"`
	Points     int                 `json:"points"`
	Content    json.RawMessage     `json:"content,omitempty"`
	MediaURL   *string             `json:"media_url,omitempty"`
	Answer     json.RawMessage     `json:"answer,omitempty"`
	Flagged    bool                `json:"flagged"`
	IsFirst    bool                `json:"is_first"`
	IsLast     bool                `json:"is_last"`
}

type AttemptResponse struct {
	*models.ExamAttempt
	CanSubmit        bool              `json:"can_submit"`
	CanResume        bool              `json:"can_resume"`
	RemainingSeconds *int              `json:"remaining_seconds,omitempty"`
	Questions        []AttemptQuestion `json:"questions,omitempty"`
}

type ProgressResponse struct {
	Answered   int     `json:"answered"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type TimeRemainingResponse struct {
	State            TimerState `json:"state"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ===== Service interfaces =====

type AttemptService interface {
	Start(ctx context.Context, req StartAttemptRequest, studentID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	GetByIDWithDetails(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)

	SaveAnswer(ctx context.Context, attemptID uint, req SaveAnswerRequest, userID string) error
	ToggleFlag(ctx context.Context, attemptID uint, req ToggleFlagRequest, userID string) (bool, error)
	Progress(ctx context.Context, attemptID uint, userID string) (*ProgressResponse, error)
	TimeRemaining(ctx context.Context, attemptID uint, userID string) (*TimeRemainingResponse, error)

	List(ctx context.Context, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)
	GetByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)
	GetStats(ctx context.Context, examID uint, userID string) (*repositories.AttemptStats, error)

	Review(ctx context.Context, attemptID uint, userID string) (*AttemptReview, error)
}

type SubmissionService interface {
	// Submit performs guarded, exactly-once submission for both the manual
	// and timer-expiry paths.
	Submit(ctx context.Context, attemptID uint, req SubmitAttemptRequest, userID string) (*AttemptSummary, error)

	// SubmitExpired force-closes a timed-out attempt on behalf of the
	// sweeper, grading whatever answers were saved.
	SubmitExpired(ctx context.Context, attemptID uint) (*AttemptSummary, error)
}

type GradingService interface {
	// Grade computes verdicts for a payload against the exam's questions.
	// The service is the correctness authority; callers never grade.
	Grade(ctx context.Context, examQuestions []*models.ExamQuestion, entries []SubmissionEntry) ([]GradedAnswer, error)

	// Summarize aggregates verdicts into the attempt report.
	Summarize(gradedAnswers []GradedAnswer, exam *models.Exam, timeSpent int) AttemptSummary
}

type ExportService interface {
	// ExportExamResults renders all submitted attempts of an exam as an
	// xlsx workbook.
	ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, error)
}

// ServiceManager provides access to all services and manages their
// lifecycle.
type ServiceManager interface {
	Attempt() AttemptService
	Submission() SubmissionService
	Grading() GradingService
	Export() ExportService
	Sweeper() *TimeoutSweeper

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
