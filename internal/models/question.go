package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
	FillInBlank    QuestionType = "fill_in_blank"
)

// ValidQuestionTypes lists every type the grading pipeline understands.
var ValidQuestionTypes = []QuestionType{
	MultipleChoice, TrueFalse, ShortAnswer, Essay, FillInBlank,
}

func (qt QuestionType) IsValid() bool {
	for _, t := range ValidQuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

// Question content is stored as JSONB; the decoded shape depends on Type.
// Content holds the prompt-facing data (choices, labels), Answer holds the
// grading key and is never served to an in-progress attempt.
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	Type   QuestionType `json:"type" gorm:"size:30;not null;index" validate:"required,question_type"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Points int          `json:"points" gorm:"not null;default:1" validate:"min=0"`

	Content datatypes.JSON `json:"content,omitempty" gorm:"type:jsonb"`
	Answer  datatypes.JSON `json:"-" gorm:"type:jsonb"`

	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`
	MediaURL    *string `json:"media_url,omitempty" gorm:"size:500"`

	CreatedBy string    `json:"created_by" gorm:"size:64;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// Content schemas, decoded from Question.Content / Question.Answer.

type ChoiceOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MultipleChoiceContent struct {
	Options          []ChoiceOption `json:"options"`
	RandomizeOptions bool           `json:"randomize_options,omitempty"`
}

type MultipleChoiceKey struct {
	CorrectOption string `json:"correct_option"`
}

type TrueFalseContent struct {
	TrueLabel  string `json:"true_label,omitempty"`
	FalseLabel string `json:"false_label,omitempty"`
}

type TrueFalseKey struct {
	CorrectAnswer bool `json:"correct_answer"`
}

type ShortAnswerKey struct {
	AcceptedAnswers []string `json:"accepted_answers"`
	CaseSensitive   bool     `json:"case_sensitive,omitempty"`
	FuzzyMatching   bool     `json:"fuzzy_matching,omitempty"`
}

type FillInBlankContent struct {
	// Template contains a single blank marker, e.g. "Water boils at ___ degrees."
	Template string `json:"template"`
}

type FillInBlankKey struct {
	AcceptedAnswers []string `json:"accepted_answers"`
	CaseSensitive   bool     `json:"case_sensitive,omitempty"`
}

type EssayKey struct {
	SampleAnswer *string  `json:"sample_answer,omitempty"`
	KeyWords     []string `json:"key_words,omitempty"`
}
