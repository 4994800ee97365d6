package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/edupulse/attempt-service/internal/models"
)

// gradingService is the correctness authority: it turns a submission
// payload into per-question verdicts and aggregates them into the attempt
// summary. Nothing outside this service decides is_correct.
type gradingService struct {
	logger *slog.Logger
}

func NewGradingService(logger *slog.Logger) GradingService {
	return &gradingService{logger: logger}
}

// Grade computes a verdict for every payload entry. Unanswered entries
// (null answers) are graded incorrect with zero points so the denominator
// stays the full question count.
func (s *gradingService) Grade(ctx context.Context, examQuestions []*models.ExamQuestion, entries []SubmissionEntry) ([]GradedAnswer, error) {
	questionsByID := make(map[uint]*models.ExamQuestion, len(examQuestions))
	for _, eq := range examQuestions {
		questionsByID[eq.QuestionID] = eq
	}

	graded := make([]GradedAnswer, 0, len(entries))
	for _, entry := range entries {
		eq, ok := questionsByID[entry.QuestionID]
		if ok && eq.Question == nil {
			ok = false
		}
		if !ok {
			return nil, fmt.Errorf("%w: question %d not in exam", ErrQuestionNotFound, entry.QuestionID)
		}

		verdict, err := s.gradeEntry(eq, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to grade question %d: %w", entry.QuestionID, err)
		}
		graded = append(graded, verdict)
	}

	return graded, nil
}

func (s *gradingService) gradeEntry(eq *models.ExamQuestion, entry SubmissionEntry) (GradedAnswer, error) {
	question := eq.Question
	verdict := GradedAnswer{
		QuestionID:    entry.QuestionID,
		Answer:        entry.Answer,
		MaxPoints:     eq.Points,
		CorrectAnswer: CorrectAnswerDisplay(question),
		Explanation:   question.Explanation,
	}

	if isNullAnswer(entry.Answer) {
		verdict.Feedback = "Not answered."
		return verdict, nil
	}

	if question.Type == models.Essay {
		verdict.PendingManual = true
		verdict.Feedback = "This answer will be graded by your instructor."
		return verdict, nil
	}

	correct, err := CheckAnswer(question, entry.Answer)
	if err != nil {
		return verdict, err
	}

	verdict.IsCorrect = correct
	if correct {
		verdict.PointsEarned = float64(eq.Points)
		verdict.Feedback = "Correct! Well done."
	} else {
		verdict.Feedback = fmt.Sprintf("Incorrect. The correct answer is: %s", verdict.CorrectAnswer)
	}

	return verdict, nil
}

// Summarize aggregates verdicts into the final report. The score
// percentage is count-weighted: every question counts equally regardless of
// its point value. Exams can opt into passing on the points ratio instead
// via settings; the percentage shown stays count-weighted either way.
func (s *gradingService) Summarize(gradedAnswers []GradedAnswer, exam *models.Exam, timeSpent int) AttemptSummary {
	summary := AttemptSummary{
		TotalQuestions: len(gradedAnswers),
		TimeSpent:      timeSpent,
	}

	for _, g := range gradedAnswers {
		if g.IsCorrect {
			summary.CorrectAnswers++
		}
		summary.EarnedPoints += g.PointsEarned
		summary.TotalPoints += g.MaxPoints
	}

	if summary.TotalQuestions > 0 {
		summary.ScorePercentage = float64(summary.CorrectAnswers) / float64(summary.TotalQuestions) * 100
	}

	passPercentage := summary.ScorePercentage
	if pointsWeightedPass(exam) && summary.TotalPoints > 0 {
		passPercentage = summary.EarnedPoints / float64(summary.TotalPoints) * 100
	}
	summary.IsPassed = passPercentage >= float64(exam.PassingScore)
	summary.Grade = LetterGrade(summary.ScorePercentage)

	return summary
}

// LetterGrade maps a score percentage to its letter. Pure and stateless.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func pointsWeightedPass(exam *models.Exam) bool {
	if len(exam.Settings) == 0 {
		return false
	}
	var settings models.ExamSettings
	if err := json.Unmarshal(exam.Settings, &settings); err != nil {
		return false
	}
	return settings.PointsWeightedPass
}
