package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

// ProgressPercentage is answered/total as a percentage. Zero questions is
// defined as zero progress, not a division by zero.
func ProgressPercentage(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(answered) / float64(total) * 100
}

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if err := s.checkAccess(attempt, userID); err != nil {
		return nil, err
	}
	return attempt, nil
}

// checkAccess hides other students' attempts. A foreign attempt reads as
// not-found rather than forbidden so attempt ids cannot be probed.
func (s *attemptService) checkAccess(attempt *models.ExamAttempt, userID string) error {
	if attempt.StudentID != userID {
		return ErrAttemptNotFound
	}
	return nil
}

// rejectIfExpired reports whether the attempt's deadline has passed and, if
// so, the error the caller must return.
func (s *attemptService) rejectIfExpired(ctx context.Context, attempt *models.ExamAttempt) (bool, error) {
	if attempt.Deadline == nil {
		return false, nil
	}
	if time.Now().After(*attempt.Deadline) {
		return true, ErrAttemptTimeExpired
	}
	return false, nil
}

// initializeAttemptAnswers seeds one empty answer row per exam question so
// the payload denominator is fixed at start time.
func (s *attemptService) initializeAttemptAnswers(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt, exam *models.Exam) error {
	if len(exam.Questions) == 0 {
		return nil
	}

	answers := make([]*models.AttemptAnswer, 0, len(exam.Questions))
	for _, eq := range exam.Questions {
		answers = append(answers, &models.AttemptAnswer{
			AttemptID:  attempt.ID,
			QuestionID: eq.QuestionID,
		})
	}

	return s.repo.Answer().CreateBatch(ctx, tx, answers)
}

// normalizeAnswerJSON maps empty values to nil so "cleared" and "never
// answered" store identically.
func normalizeAnswerJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return nil
	}
	return raw
}

func decodeFlaggedSet(raw []byte) map[uint]struct{} {
	set := make(map[uint]struct{})
	if len(raw) == 0 {
		return set
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// toggleFlagged flips membership and reports the new state.
func toggleFlagged(set map[uint]struct{}, questionID uint) bool {
	if _, ok := set[questionID]; ok {
		delete(set, questionID)
		return false
	}
	set[questionID] = struct{}{}
	return true
}

func flaggedSetToSlice(set map[uint]struct{}) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// buildAttemptResponse derives the view flags the client drives its take
// exam screen from. Questions are included only when details were loaded;
// they are always sanitized while the attempt is in progress.
func (s *attemptService) buildAttemptResponse(attempt *models.ExamAttempt, withQuestions bool) *AttemptResponse {
	now := time.Now()

	resp := &AttemptResponse{
		ExamAttempt: attempt,
		CanSubmit:   attempt.Status == models.AttemptInProgress,
		CanResume:   attempt.Status == models.AttemptInProgress,
	}

	if attempt.Deadline != nil {
		if now.After(*attempt.Deadline) {
			resp.CanSubmit = false
			resp.CanResume = false
		}
		if attempt.Exam != nil && attempt.Exam.TimeLimit != nil {
			remaining := Remaining(attempt.StartedAt, *attempt.Exam.TimeLimit*60, now)
			resp.RemainingSeconds = &remaining
		}
	}

	if withQuestions && attempt.Exam != nil {
		resp.Questions = s.buildAttemptQuestions(attempt)
	}

	// The raw exam question rows carry explanations and load alongside the
	// grading keys. Questions reach the client only through the sanitized
	// list above, so the embedded exam is serialized without them.
	if attempt.Exam != nil && len(attempt.Exam.Questions) > 0 {
		view := *attempt
		exam := *attempt.Exam
		exam.Questions = nil
		view.Exam = &exam
		resp.ExamAttempt = &view
	}

	return resp
}

func (s *attemptService) buildAttemptQuestions(attempt *models.ExamAttempt) []AttemptQuestion {
	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answersByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}
	flags := decodeFlaggedSet(attempt.FlaggedQuestions)

	questions := make([]AttemptQuestion, 0, len(attempt.Exam.Questions))
	for i, eq := range attempt.Exam.Questions {
		if eq.Question == nil {
			continue
		}

		q := AttemptQuestion{
			QuestionID: eq.QuestionID,
			Position:   eq.Position,
			Type:       eq.Question.Type,
			Text:       eq.Question.Text,
			Points:     eq.Points,
			Content:    json.RawMessage(eq.Question.Content),
			MediaURL:   eq.Question.MediaURL,
			IsFirst:    i == 0,
			IsLast:     i == len(attempt.Exam.Questions)-1,
		}
		if _, ok := flags[eq.QuestionID]; ok {
			q.Flagged = true
		}
		if answer, ok := answersByQuestion[eq.QuestionID]; ok && answer.Answered() {
			q.Answer = json.RawMessage(answer.Answer)
		}

		questions = append(questions, q)
	}

	return questions
}

func (s *attemptService) buildListResponse(attempts []*models.ExamAttempt, total int64, filters repositories.AttemptFilters) *AttemptListResponse {
	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, s.buildAttemptResponse(attempt, false))
	}

	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
}

// buildAttemptReview reconstructs the report from stored grading output.
func buildAttemptReview(attempt *models.ExamAttempt) (*AttemptReview, error) {
	if attempt.Exam == nil {
		return nil, fmt.Errorf("attempt %d has no exam loaded", attempt.ID)
	}

	answersByQuestion := make(map[uint]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answersByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	summary := summaryFromAttempt(attempt)

	questions := make([]QuestionReview, 0, len(attempt.Exam.Questions))
	for _, eq := range attempt.Exam.Questions {
		if eq.Question == nil {
			continue
		}

		review := QuestionReview{
			QuestionID:  eq.QuestionID,
			Position:    eq.Position,
			Type:        eq.Question.Type,
			Text:        eq.Question.Text,
			Correct:     CorrectAnswerDisplay(eq.Question),
			MaxPoints:   eq.Points,
			Explanation: eq.Question.Explanation,
		}

		if answer, ok := answersByQuestion[eq.QuestionID]; ok {
			review.Submitted = DisplayAnswer(eq.Question, answer.Answer)
			if answer.IsCorrect != nil {
				review.IsCorrect = *answer.IsCorrect
			}
			if answer.PointsEarned != nil {
				review.PointsEarned = *answer.PointsEarned
			}
		}

		questions = append(questions, review)
	}

	return &AttemptReview{
		Summary:   summary,
		Questions: questions,
	}, nil
}
