package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"gorm.io/datatypes"

	"github.com/edupulse/attempt-service/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func choiceQuestion(id uint, correctOption string) *models.Question {
	content, _ := json.Marshal(models.MultipleChoiceContent{
		Options: []models.ChoiceOption{
			{ID: "a", Text: "Amsterdam"},
			{ID: "b", Text: "Berlin"},
			{ID: "c", Text: "Copenhagen"},
		},
	})
	key, _ := json.Marshal(models.MultipleChoiceKey{CorrectOption: correctOption})
	return &models.Question{
		ID:      id,
		Type:    models.MultipleChoice,
		Text:    "Capital of Germany?",
		Points:  2,
		Content: datatypes.JSON(content),
		Answer:  datatypes.JSON(key),
	}
}

func trueFalseQuestion(id uint, correct bool) *models.Question {
	key, _ := json.Marshal(models.TrueFalseKey{CorrectAnswer: correct})
	return &models.Question{
		ID:     id,
		Type:   models.TrueFalse,
		Text:   "The earth is round.",
		Points: 1,
		Answer: datatypes.JSON(key),
	}
}

func shortAnswerQuestion(id uint, accepted []string, fuzzy bool) *models.Question {
	key, _ := json.Marshal(models.ShortAnswerKey{AcceptedAnswers: accepted, FuzzyMatching: fuzzy})
	return &models.Question{
		ID:     id,
		Type:   models.ShortAnswer,
		Text:   "Name the layer between transport and application.",
		Points: 3,
		Answer: datatypes.JSON(key),
	}
}

func essayQuestion(id uint) *models.Question {
	key, _ := json.Marshal(models.EssayKey{})
	return &models.Question{
		ID:     id,
		Type:   models.Essay,
		Text:   "Discuss the CAP theorem.",
		Points: 5,
		Answer: datatypes.JSON(key),
	}
}

func examQuestion(position int, q *models.Question) *models.ExamQuestion {
	return &models.ExamQuestion{
		ExamID:     1,
		QuestionID: q.ID,
		Position:   position,
		Points:     q.Points,
		Question:   q,
	}
}

func TestCheckAnswer(t *testing.T) {
	tests := []struct {
		name     string
		question *models.Question
		answer   string
		want     bool
	}{
		{name: "multiple choice correct", question: choiceQuestion(1, "b"), answer: `"b"`, want: true},
		{name: "multiple choice wrong", question: choiceQuestion(1, "b"), answer: `"a"`, want: false},
		{name: "multiple choice case insensitive", question: choiceQuestion(1, "b"), answer: `"B"`, want: true},
		{name: "true false correct", question: trueFalseQuestion(2, true), answer: `true`, want: true},
		{name: "true false wrong", question: trueFalseQuestion(2, true), answer: `false`, want: false},
		{name: "short answer exact", question: shortAnswerQuestion(3, []string{"session"}, false), answer: `"session"`, want: true},
		{name: "short answer trims and folds case", question: shortAnswerQuestion(3, []string{"session"}, false), answer: `"  Session "`, want: true},
		{name: "short answer fuzzy accepts typo", question: shortAnswerQuestion(3, []string{"session"}, true), answer: `"sesion"`, want: true},
		{name: "short answer fuzzy too far", question: shortAnswerQuestion(3, []string{"session"}, true), answer: `"datagram"`, want: false},
		{name: "short answer no fuzzy rejects typo", question: shortAnswerQuestion(3, []string{"session"}, false), answer: `"sesion"`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAnswer(tt.question, json.RawMessage(tt.answer))
			if err != nil {
				t.Fatalf("CheckAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckAnswer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAnswer_Essay(t *testing.T) {
	_, err := CheckAnswer(essayQuestion(9), json.RawMessage(`"my essay"`))
	if err == nil {
		t.Fatal("expected error for essay auto-grading, got nil")
	}
}

func TestDisplayAnswer_Booleans(t *testing.T) {
	q := trueFalseQuestion(1, true)

	got := DisplayAnswer(q, []byte(`true`))
	if got == nil || *got != "True" {
		t.Errorf("DisplayAnswer(true) = %v, want True", got)
	}

	got = DisplayAnswer(q, []byte(`false`))
	if got == nil || *got != "False" {
		t.Errorf("DisplayAnswer(false) = %v, want False", got)
	}

	if got := DisplayAnswer(q, nil); got != nil {
		t.Errorf("DisplayAnswer(nil) = %v, want nil", got)
	}
}

func TestDisplayAnswer_MultipleChoiceOptionText(t *testing.T) {
	q := choiceQuestion(1, "b")

	got := DisplayAnswer(q, []byte(`"b"`))
	if got == nil || *got != "Berlin" {
		t.Errorf("DisplayAnswer(b) = %v, want Berlin", got)
	}
}

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{100, "A"}, {90, "A"}, {89.9, "B"}, {80, "B"},
		{79, "C"}, {70, "C"}, {69, "D"}, {60, "D"},
		{59.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.percentage); got != tt.want {
			t.Errorf("LetterGrade(%v) = %s, want %s", tt.percentage, got, tt.want)
		}
	}
}

func TestGrade_AggregatesVerdicts(t *testing.T) {
	svc := NewGradingService(testLogger())

	questions := []*models.ExamQuestion{
		examQuestion(1, choiceQuestion(1, "b")),
		examQuestion(2, trueFalseQuestion(2, true)),
		examQuestion(3, shortAnswerQuestion(3, []string{"session"}, false)),
		examQuestion(4, trueFalseQuestion(4, false)),
	}
	entries := []SubmissionEntry{
		{QuestionID: 1, Answer: json.RawMessage(`"b"`)},
		{QuestionID: 2, Answer: json.RawMessage(`true`)},
		{QuestionID: 3, Answer: json.RawMessage(`"transport"`)},
		{QuestionID: 4, Answer: json.RawMessage(`null`)},
	}

	graded, err := svc.Grade(context.Background(), questions, entries)
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if len(graded) != 4 {
		t.Fatalf("expected 4 verdicts, got %d", len(graded))
	}

	if !graded[0].IsCorrect || graded[0].PointsEarned != 2 {
		t.Errorf("question 1: got correct=%v points=%v, want correct with 2 points", graded[0].IsCorrect, graded[0].PointsEarned)
	}
	if !graded[1].IsCorrect {
		t.Errorf("question 2 should be correct")
	}
	if graded[2].IsCorrect || graded[2].PointsEarned != 0 {
		t.Errorf("question 3: wrong answer must earn nothing")
	}
	if graded[3].IsCorrect {
		t.Errorf("unanswered question must not be correct")
	}
	if graded[3].Feedback != "Not answered." {
		t.Errorf("unanswered feedback = %q", graded[3].Feedback)
	}
}

func TestGrade_UnknownQuestion(t *testing.T) {
	svc := NewGradingService(testLogger())

	_, err := svc.Grade(context.Background(),
		[]*models.ExamQuestion{examQuestion(1, trueFalseQuestion(1, true))},
		[]SubmissionEntry{{QuestionID: 99, Answer: json.RawMessage(`true`)}})
	if err == nil {
		t.Fatal("expected error for entry outside the exam")
	}
}

func TestSummarize(t *testing.T) {
	svc := NewGradingService(testLogger())
	exam := &models.Exam{ID: 1, PassingScore: 70}

	graded := []GradedAnswer{
		{QuestionID: 1, IsCorrect: true, PointsEarned: 2, MaxPoints: 2},
		{QuestionID: 2, IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
		{QuestionID: 3, IsCorrect: true, PointsEarned: 3, MaxPoints: 3},
		{QuestionID: 4, IsCorrect: false, MaxPoints: 4},
	}

	summary := svc.Summarize(graded, exam, 120)

	if summary.TotalQuestions != 4 || summary.CorrectAnswers != 3 {
		t.Errorf("got %d/%d, want 3/4", summary.CorrectAnswers, summary.TotalQuestions)
	}
	if summary.ScorePercentage != 75 {
		t.Errorf("ScorePercentage = %v, want 75", summary.ScorePercentage)
	}
	if !summary.IsPassed {
		t.Error("75%% against passing score 70 must pass")
	}
	if summary.Grade != "C" {
		t.Errorf("Grade = %s, want C", summary.Grade)
	}
	if summary.EarnedPoints != 6 || summary.TotalPoints != 10 {
		t.Errorf("points = %v/%v, want 6/10", summary.EarnedPoints, summary.TotalPoints)
	}
	if summary.TimeSpent != 120 {
		t.Errorf("TimeSpent = %d, want 120", summary.TimeSpent)
	}
}

func TestSummarize_EmptyExam(t *testing.T) {
	svc := NewGradingService(testLogger())
	exam := &models.Exam{ID: 1, PassingScore: 0}

	summary := svc.Summarize(nil, exam, 0)

	if summary.ScorePercentage != 0 {
		t.Errorf("ScorePercentage = %v, want 0 for empty exam", summary.ScorePercentage)
	}
	if summary.Grade != "F" {
		t.Errorf("Grade = %s, want F", summary.Grade)
	}
}

func TestSummarize_PointsWeightedPass(t *testing.T) {
	svc := NewGradingService(testLogger())

	settings, _ := json.Marshal(models.ExamSettings{PointsWeightedPass: true})
	exam := &models.Exam{ID: 1, PassingScore: 70, Settings: datatypes.JSON(settings)}

	// 1 of 2 correct by count (50%), but the correct one carries 8 of 10
	// points (80%)
	graded := []GradedAnswer{
		{QuestionID: 1, IsCorrect: true, PointsEarned: 8, MaxPoints: 8},
		{QuestionID: 2, IsCorrect: false, MaxPoints: 2},
	}

	summary := svc.Summarize(graded, exam, 60)

	if summary.ScorePercentage != 50 {
		t.Errorf("displayed percentage = %v, want count-weighted 50", summary.ScorePercentage)
	}
	if !summary.IsPassed {
		t.Error("points-weighted pass at 80%% against 70 must pass")
	}
}
