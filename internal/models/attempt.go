package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

type AttemptEndReason string

const (
	AttemptEndReasonManual  AttemptEndReason = "manual"
	AttemptEndReasonTimeout AttemptEndReason = "time_out"
)

// ExamAttempt is one instance of a student taking an exam. AttemptNumber is
// the per-student per-exam ordinal and never changes after creation. Status
// only ever moves in_progress -> submitted.
type ExamAttempt struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ExamID        uint   `json:"exam_id" gorm:"not null;index:idx_attempt_exam_student"`
	StudentID     string `json:"student_id" gorm:"size:64;not null;index:idx_attempt_exam_student"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null"`

	Status    AttemptStatus `json:"status" gorm:"size:20;not null;default:'in_progress';index"`
	StartedAt time.Time     `json:"started_at" gorm:"not null"`

	// Deadline is StartedAt plus the exam's time limit, nil when unbounded.
	Deadline    *time.Time        `json:"deadline,omitempty"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	TimeSpent   *int              `json:"time_spent,omitempty" gorm:"comment:seconds"`
	EndReason   *AttemptEndReason `json:"end_reason,omitempty" gorm:"size:20"`

	// Grading results, populated on submission.
	CorrectAnswers  *int     `json:"correct_answers,omitempty"`
	TotalQuestions  int      `json:"total_questions" gorm:"not null;default:0"`
	ScorePercentage *float64 `json:"score_percentage,omitempty"`
	EarnedPoints    *float64 `json:"earned_points,omitempty"`
	TotalPoints     *int     `json:"total_points,omitempty"`
	Passed          *bool    `json:"passed,omitempty"`
	Grade           *string  `json:"grade,omitempty" gorm:"size:2"`

	// FlaggedQuestions is review bookkeeping only, it never affects grading.
	FlaggedQuestions datatypes.JSON `json:"flagged_questions,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    *Exam           `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Answers []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// IsActive reports whether the attempt can still accept answer edits.
func (a *ExamAttempt) IsActive() bool {
	return a.Status == AttemptInProgress
}

// AttemptAnswer is one saved answer within an attempt. Answer is the raw
// JSON value whose shape follows the question type; a null Answer means the
// question was never answered.
type AttemptAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_answer"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_answer"`

	Answer datatypes.JSON `json:"answer,omitempty" gorm:"type:jsonb"`

	// Grading output.
	IsCorrect    *bool    `json:"is_correct,omitempty"`
	PointsEarned *float64 `json:"points_earned,omitempty"`
	IsGraded     bool     `json:"is_graded" gorm:"not null;default:false"`
	Feedback     *string  `json:"feedback,omitempty" gorm:"type:text"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// Answered reports whether a non-null answer value has been saved.
func (a *AttemptAnswer) Answered() bool {
	return len(a.Answer) > 0 && string(a.Answer) != "null"
}
