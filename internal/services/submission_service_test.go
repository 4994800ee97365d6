package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

// ===== In-memory fakes =====

type fakeAttemptRepo struct {
	attempts    map[uint]*models.ExamAttempt
	updateCalls int
	failUpdate  bool
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uint]*models.ExamAttempt)}
}

func (f *fakeAttemptRepo) put(attempt *models.ExamAttempt) {
	f.attempts[attempt.ID] = attempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if attempt.ID == 0 {
		attempt.ID = uint(len(f.attempts) + 1)
	}
	f.attempts[attempt.ID] = attempt
	return nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	return f.GetByIDWithDetails(ctx, tx, id)
}

func (f *fakeAttemptRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	attempt, ok := f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	copied.Answers = append([]models.AttemptAnswer(nil), attempt.Answers...)
	return &copied, nil
}

func (f *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	f.updateCalls++
	if f.failUpdate {
		return fmt.Errorf("update rejected")
	}
	if _, ok := f.attempts[attempt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *attempt
	copied.Answers = append([]models.AttemptAnswer(nil), attempt.Answers...)
	f.attempts[attempt.ID] = &copied
	return nil
}

func (f *fakeAttemptRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	attempt, ok := f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.Status = status
	return nil
}

func (f *fakeAttemptRepo) GetActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.ExamAttempt, error) {
	for _, attempt := range f.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID && attempt.Status == models.AttemptInProgress {
			return f.GetByIDWithDetails(ctx, tx, attempt.ID)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) HasActiveAttempt(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error) {
	_, err := f.GetActiveAttempt(ctx, tx, examID, studentID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeAttemptRepo) GetAttemptCount(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error) {
	count := 0
	for _, attempt := range f.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (int, error) {
	count, _ := f.GetAttemptCount(ctx, tx, examID, studentID)
	return count + 1, nil
}

func (f *fakeAttemptRepo) GetExpiredAttempts(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*models.ExamAttempt, error) {
	var out []*models.ExamAttempt
	for _, attempt := range f.attempts {
		if attempt.Status == models.AttemptInProgress && attempt.Deadline != nil && attempt.Deadline.Before(cutoff) {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	var out []*models.ExamAttempt
	for _, attempt := range f.attempts {
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.ExamID != nil && attempt.ExamID != *filters.ExamID {
			continue
		}
		out = append(out, attempt)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.ExamID = &examID
	return f.List(ctx, tx, filters)
}

func (f *fakeAttemptRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.StudentID = &studentID
	return f.List(ctx, tx, filters)
}

func (f *fakeAttemptRepo) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.AttemptStats, error) {
	return &repositories.AttemptStats{}, nil
}

type fakeAnswerRepo struct {
	answers map[string]*models.AttemptAnswer
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{answers: make(map[string]*models.AttemptAnswer)}
}

func answerKey(attemptID, questionID uint) string {
	return fmt.Sprintf("%d:%d", attemptID, questionID)
}

func (f *fakeAnswerRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error {
	for _, answer := range answers {
		copied := *answer
		f.answers[answerKey(answer.AttemptID, answer.QuestionID)] = &copied
	}
	return nil
}

func (f *fakeAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	copied := *answer
	f.answers[answerKey(answer.AttemptID, answer.QuestionID)] = &copied
	return nil
}

func (f *fakeAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptAnswer, error) {
	var out []*models.AttemptAnswer
	for _, answer := range f.answers {
		if answer.AttemptID == attemptID {
			out = append(out, answer)
		}
	}
	return out, nil
}

func (f *fakeAnswerRepo) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.AttemptAnswer, error) {
	answer, ok := f.answers[answerKey(attemptID, questionID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return answer, nil
}

func (f *fakeAnswerRepo) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AttemptAnswer) error {
	return f.CreateBatch(ctx, tx, answers)
}

type fakeExamRepo struct {
	exams map[uint]*models.Exam
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{exams: make(map[uint]*models.Exam)}
}

func (f *fakeExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	f.exams[exam.ID] = exam
	return nil
}

func (f *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	exam, ok := f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (f *fakeExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	f.exams[exam.ID] = exam
	return nil
}

func (f *fakeExamRepo) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	_, ok := f.exams[id]
	return ok, nil
}

type fakeRepo struct {
	attempt *fakeAttemptRepo
	answer  *fakeAnswerRepo
	exam    *fakeExamRepo
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		attempt: newFakeAttemptRepo(),
		answer:  newFakeAnswerRepo(),
		exam:    newFakeExamRepo(),
	}
}

func (f *fakeRepo) Exam() repositories.ExamRepository         { return f.exam }
func (f *fakeRepo) Question() repositories.QuestionRepository { return nil }
func (f *fakeRepo) Attempt() repositories.AttemptRepository   { return f.attempt }
func (f *fakeRepo) Answer() repositories.AnswerRepository     { return f.answer }
func (f *fakeRepo) User() repositories.UserRepository         { return nil }
func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type stubValidator struct{}

func (stubValidator) Validate(s any) error { return nil }

// ===== Fixtures =====

func fiveQuestionExam() *models.Exam {
	limit := 30
	questions := []*models.Question{
		choiceQuestion(1, "b"),
		trueFalseQuestion(2, true),
		trueFalseQuestion(3, false),
		shortAnswerQuestion(4, []string{"session"}, false),
		choiceQuestion(5, "a"),
	}
	exam := &models.Exam{
		ID:           1,
		Title:        "Networking basics",
		Status:       models.ExamStatusActive,
		TimeLimit:    &limit,
		PassingScore: 70,
		MaxAttempts:  3,
	}
	for i, q := range questions {
		exam.Questions = append(exam.Questions, models.ExamQuestion{
			ExamID:     exam.ID,
			QuestionID: q.ID,
			Position:   i + 1,
			Points:     q.Points,
			Question:   q,
		})
	}
	return exam
}

func inProgressAttempt(exam *models.Exam, startedAt time.Time) *models.ExamAttempt {
	return &models.ExamAttempt{
		ID:             10,
		ExamID:         exam.ID,
		StudentID:      "student-1",
		AttemptNumber:  1,
		Status:         models.AttemptInProgress,
		StartedAt:      startedAt,
		Deadline:       AttemptDeadline(startedAt, exam.TimeLimit),
		TotalQuestions: len(exam.Questions),
		Exam:           exam,
	}
}

func newTestSubmissionService(repo *fakeRepo, now func() time.Time) *submissionService {
	return &submissionService{
		repo:      repo,
		grading:   NewGradingService(testLogger()),
		logger:    testLogger(),
		validator: stubValidator{},
		events:    NoopEventPublisher{},
		grace:     30 * time.Second,
		now:       now,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// ===== Payload tests =====

func TestBuildSubmissionPayload_OneEntryPerQuestionInOrder(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	attempt.Answers = []models.AttemptAnswer{
		{AttemptID: attempt.ID, QuestionID: 2, Answer: []byte(`true`)},
		{AttemptID: attempt.ID, QuestionID: 4, Answer: []byte(`"session"`)},
	}

	payload := BuildSubmissionPayload(attempt, start.Add(90*time.Second))

	if len(payload.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(payload.Entries))
	}
	for i, entry := range payload.Entries {
		if want := exam.Questions[i].QuestionID; entry.QuestionID != want {
			t.Errorf("entry %d: question %d, want %d (exam order)", i, entry.QuestionID, want)
		}
	}

	// Unanswered questions carry explicit nulls
	for _, i := range []int{0, 2, 4} {
		if string(payload.Entries[i].Answer) != "null" {
			t.Errorf("entry %d: answer = %s, want null", i, payload.Entries[i].Answer)
		}
	}
	if string(payload.Entries[1].Answer) != "true" {
		t.Errorf("entry 1: answer = %s, want true", payload.Entries[1].Answer)
	}
	if string(payload.Entries[3].Answer) != `"session"` {
		t.Errorf("entry 3: answer = %s", payload.Entries[3].Answer)
	}

	if payload.TimeSpent != 90 {
		t.Errorf("TimeSpent = %d, want 90", payload.TimeSpent)
	}
	if payload.AttemptID != attempt.ID {
		t.Errorf("AttemptID = %d, want %d", payload.AttemptID, attempt.ID)
	}
}

func TestBuildSubmissionPayload_ClampsTimeSpentAtDeadline(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limit := 1 // minute
	exam := fiveQuestionExam()
	exam.TimeLimit = &limit
	attempt := inProgressAttempt(exam, start)

	payload := BuildSubmissionPayload(attempt, start.Add(5*time.Minute))

	if payload.TimeSpent != 60 {
		t.Errorf("TimeSpent = %d, want clamped 60", payload.TimeSpent)
	}
}

// ===== Submit tests =====

func TestSubmit_GradesAndPersists(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	// 4 of 5 correct: q5 wrong
	attempt.Answers = []models.AttemptAnswer{
		{AttemptID: attempt.ID, QuestionID: 1, Answer: []byte(`"b"`)},
		{AttemptID: attempt.ID, QuestionID: 2, Answer: []byte(`true`)},
		{AttemptID: attempt.ID, QuestionID: 3, Answer: []byte(`false`)},
		{AttemptID: attempt.ID, QuestionID: 4, Answer: []byte(`"session"`)},
		{AttemptID: attempt.ID, QuestionID: 5, Answer: []byte(`"c"`)},
	}
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(10 * time.Minute) })

	summary, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if summary.CorrectAnswers != 4 || summary.TotalQuestions != 5 {
		t.Errorf("got %d/%d correct, want 4/5", summary.CorrectAnswers, summary.TotalQuestions)
	}
	if summary.ScorePercentage != 80 {
		t.Errorf("ScorePercentage = %v, want 80", summary.ScorePercentage)
	}
	if !summary.IsPassed {
		t.Error("80%% against passing score 70 must pass")
	}
	if summary.Grade != "B" {
		t.Errorf("Grade = %s, want B", summary.Grade)
	}
	if summary.TimeSpent != 600 {
		t.Errorf("TimeSpent = %d, want 600", summary.TimeSpent)
	}

	stored := repo.attempt.attempts[attempt.ID]
	if stored.Status != models.AttemptSubmitted {
		t.Errorf("stored status = %s, want submitted", stored.Status)
	}
	if stored.SubmittedAt == nil {
		t.Error("SubmittedAt not set")
	}
	if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonManual {
		t.Errorf("EndReason = %v, want manual", stored.EndReason)
	}

	// Verdicts persisted per answer
	graded, _ := repo.answer.GetByAttempt(context.Background(), nil, attempt.ID)
	if len(graded) != 5 {
		t.Fatalf("expected 5 persisted verdicts, got %d", len(graded))
	}
	for _, answer := range graded {
		if answer.IsCorrect == nil {
			t.Errorf("question %d: verdict missing", answer.QuestionID)
		}
	}
}

func TestSubmit_Idempotent(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	attempt.Answers = []models.AttemptAnswer{
		{AttemptID: attempt.ID, QuestionID: 2, Answer: []byte(`true`)},
	}
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(time.Minute) })

	first, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1")
	if err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	updatesAfterFirst := repo.attempt.updateCalls

	second, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1")
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	if repo.attempt.updateCalls != updatesAfterFirst {
		t.Errorf("second submit wrote %d more updates, want 0", repo.attempt.updateCalls-updatesAfterFirst)
	}
	if second.ScorePercentage != first.ScorePercentage || second.Grade != first.Grade {
		t.Errorf("second summary %v differs from first %v", second, first)
	}
}

func TestSubmit_ConcurrentCallsGradeOnce(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(time.Minute) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1"); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// One grading run means exactly one attempt update
	if repo.attempt.updateCalls != 1 {
		t.Errorf("attempt updated %d times, want 1", repo.attempt.updateCalls)
	}
}

func TestSubmit_FailureKeepsAttemptInProgress(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	repo.attempt.put(attempt)
	repo.attempt.failUpdate = true

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(time.Minute) })

	_, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1")
	if err == nil {
		t.Fatal("expected persistence error")
	}

	stored := repo.attempt.attempts[attempt.ID]
	if stored.Status != models.AttemptInProgress {
		t.Errorf("failed submission moved status to %s, want in_progress", stored.Status)
	}
	if stored.SubmittedAt != nil {
		t.Error("failed submission set SubmittedAt")
	}

	// A retry after the failure clears works
	repo.attempt.failUpdate = false
	if _, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "student-1"); err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
}

func TestSubmit_ForeignAttemptReadsAsNotFound(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	attempt := inProgressAttempt(fiveQuestionExam(), start)
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(time.Minute) })

	_, err := svc.Submit(context.Background(), attempt.ID, SubmitAttemptRequest{}, "someone-else")
	if err != ErrAttemptNotFound {
		t.Errorf("error = %v, want ErrAttemptNotFound", err)
	}
}

func TestSubmit_FlushesFinalAnswers(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	attempt := inProgressAttempt(exam, start)
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(time.Minute) })

	req := SubmitAttemptRequest{
		Answers: []SaveAnswerRequest{
			{QuestionID: 1, Answer: json.RawMessage(`"b"`)},
			{QuestionID: 2, Answer: json.RawMessage(`true`)},
		},
	}
	summary, err := svc.Submit(context.Background(), attempt.ID, req, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if summary.CorrectAnswers != 2 {
		t.Errorf("CorrectAnswers = %d, want 2 from flushed answers", summary.CorrectAnswers)
	}
}

func TestSubmitExpired_ClosesAsTimeout(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limit := 1
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	exam.TimeLimit = &limit
	attempt := inProgressAttempt(exam, start)
	repo.attempt.put(attempt)

	// Sweeper fires shortly after the deadline; nothing was answered
	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(75 * time.Second) })

	summary, err := svc.SubmitExpired(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("SubmitExpired() error = %v", err)
	}

	if summary.CorrectAnswers != 0 {
		t.Errorf("CorrectAnswers = %d, want 0", summary.CorrectAnswers)
	}
	if summary.TimeSpent != 60 {
		t.Errorf("TimeSpent = %d, want clamped 60", summary.TimeSpent)
	}

	stored := repo.attempt.attempts[attempt.ID]
	if stored.Status != models.AttemptSubmitted {
		t.Errorf("stored status = %s, want submitted", stored.Status)
	}
	if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonTimeout {
		t.Errorf("EndReason = %v, want time_out", stored.EndReason)
	}

	// The sweeper path is idempotent too
	again, err := svc.SubmitExpired(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("second SubmitExpired() error = %v", err)
	}
	if again.ScorePercentage != summary.ScorePercentage {
		t.Errorf("second summary differs: %v vs %v", again, summary)
	}
}

func TestSubmit_PastGraceDropsLateEditsAndClosesAsTimeout(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limit := 1
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	exam.TimeLimit = &limit
	attempt := inProgressAttempt(exam, start)
	attempt.Answers = []models.AttemptAnswer{
		{AttemptID: attempt.ID, QuestionID: 2, Answer: []byte(`true`)},
	}
	repo.attempt.put(attempt)

	// 5 minutes past a 1 minute deadline with 30s grace
	svc := newTestSubmissionService(repo, func() time.Time { return start.Add(5 * time.Minute) })

	req := SubmitAttemptRequest{
		Answers: []SaveAnswerRequest{{QuestionID: 1, Answer: json.RawMessage(`"b"`)}},
	}
	summary, err := svc.Submit(context.Background(), attempt.ID, req, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Only the answer saved before the deadline counts
	if summary.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1 (late edit dropped)", summary.CorrectAnswers)
	}

	stored := repo.attempt.attempts[attempt.ID]
	if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonTimeout {
		t.Errorf("EndReason = %v, want time_out", stored.EndReason)
	}
}

func TestSweep_ClosesExpiredAttempts(t *testing.T) {
	start := time.Now().Add(-10 * time.Minute)
	limit := 1
	repo := newFakeRepo()
	exam := fiveQuestionExam()
	exam.TimeLimit = &limit
	attempt := inProgressAttempt(exam, start)
	repo.attempt.put(attempt)

	svc := newTestSubmissionService(repo, time.Now)
	sweeper := NewTimeoutSweeper(repo, svc, testLogger(), 30*time.Second, time.Minute)

	sweeper.Sweep(context.Background())

	stored := repo.attempt.attempts[attempt.ID]
	if stored.Status != models.AttemptSubmitted {
		t.Errorf("sweeper left status %s, want submitted", stored.Status)
	}
	if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonTimeout {
		t.Errorf("EndReason = %v, want time_out", stored.EndReason)
	}
}
