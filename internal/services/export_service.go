package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var exportHeaders = []string{
	"Student ID", "Attempt", "Status", "Started At", "Submitted At",
	"Time Spent (s)", "Correct", "Total Questions", "Score (%)",
	"Points", "Passed", "Grade", "End Reason",
}

// ExportExamResults renders every attempt of an exam into an xlsx
// workbook. Restricted to teachers and admins.
func (s *exportService) ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, error) {
	if err := s.requireInstructor(ctx, userID); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	attempts, _, err := s.repo.Attempt().GetByExam(ctx, nil, examID, repositories.AttemptFilters{
		SortBy:    "submitted_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, attempt := range attempts {
		row := i + 2
		values := exportRow(attempt)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("exported exam results",
		"exam_id", exam.ID,
		"attempts", len(attempts),
		"requested_by", userID)

	return buf.Bytes(), nil
}

func (s *exportService) requireInstructor(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewPermissionError(userID, "export", "exam results")
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, "export", "exam results")
	}
	return nil
}

func exportRow(attempt *models.ExamAttempt) []any {
	values := []any{
		attempt.StudentID,
		attempt.AttemptNumber,
		string(attempt.Status),
		attempt.StartedAt.Format(time.RFC3339),
		"", nil, nil, attempt.TotalQuestions, nil, "", "", "", "",
	}
	if attempt.SubmittedAt != nil {
		values[4] = attempt.SubmittedAt.Format(time.RFC3339)
	}
	if attempt.TimeSpent != nil {
		values[5] = *attempt.TimeSpent
	}
	if attempt.CorrectAnswers != nil {
		values[6] = *attempt.CorrectAnswers
	}
	if attempt.ScorePercentage != nil {
		values[8] = *attempt.ScorePercentage
	}
	if attempt.EarnedPoints != nil && attempt.TotalPoints != nil {
		values[9] = fmt.Sprintf("%.1f / %d", *attempt.EarnedPoints, *attempt.TotalPoints)
	}
	if attempt.Passed != nil {
		if *attempt.Passed {
			values[10] = "Yes"
		} else {
			values[10] = "No"
		}
	}
	if attempt.Grade != nil {
		values[11] = *attempt.Grade
	}
	if attempt.EndReason != nil {
		values[12] = string(*attempt.EndReason)
	}
	return values
}
