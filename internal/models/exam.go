package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamStatusDraft    ExamStatus = "draft"
	ExamStatusActive   ExamStatus = "active"
	ExamStatusExpired  ExamStatus = "expired"
	ExamStatusArchived ExamStatus = "archived"
)

// Exam is the assessment an attempt runs against. TimeLimit is in minutes;
// a nil TimeLimit means the attempt is not time-bounded.
type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	Status      ExamStatus `json:"status" gorm:"size:20;not null;default:'draft';index"`

	TimeLimit    *int `json:"time_limit,omitempty" gorm:"comment:minutes" validate:"omitempty,time_limit"`
	PassingScore int  `json:"passing_score" gorm:"not null;default:60;comment:percentage" validate:"passing_score"`
	MaxAttempts  int  `json:"max_attempts" gorm:"not null;default:1" validate:"max_attempts"`

	SectionID *uint      `json:"section_id,omitempty" gorm:"index"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedBy string     `json:"created_by" gorm:"size:64;not null;index"`

	Settings datatypes.JSON `json:"settings,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Attempts  []ExamAttempt  `json:"-" gorm:"foreignKey:ExamID"`

	// Computed fields (not persisted)
	QuestionCount int `json:"question_count,omitempty" gorm:"-"`
	TotalPoints   int `json:"total_points,omitempty" gorm:"-"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamSettings is the decoded shape of Exam.Settings.
type ExamSettings struct {
	RandomizeQuestions bool `json:"randomize_questions"`
	ShowProgressBar    bool `json:"show_progress_bar"`
	AllowFlagging      bool `json:"allow_flagging"`
	ShowReviewAfter    bool `json:"show_review_after"`
	// PointsWeightedPass switches pass/fail from correct-count percentage to
	// earned/total points percentage.
	PointsWeightedPass bool `json:"points_weighted_pass"`
}

// ExamQuestion links a question into an exam with its position and point
// value. Position is the fixed order answers are submitted in.
type ExamQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ExamID     uint `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_exam_question"`
	Position   int  `json:"position" gorm:"not null;index"`
	Points     int  `json:"points" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`

	Exam     *Exam     `json:"-" gorm:"foreignKey:ExamID"`
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
