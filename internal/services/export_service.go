package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

const exportSheet = "Attempt History"

// AttemptHistoryWorkbook renders all completed attempts of a student
// into a spreadsheet, newest first.
func (s *exportService) AttemptHistoryWorkbook(ctx context.Context, studentID string) (*excelize.File, error) {
	completed := models.AttemptCompleted
	attempts, _, err := s.repo.Attempt().ListByStudent(ctx, nil, studentID, repositories.AttemptFilters{
		Status:    &completed,
		SortBy:    "completed_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts for export: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create export sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Attempt ID", "Quiz", "Completed At", "Score", "Max Score", "Percentage"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, err
		}
	}

	for row, attempt := range attempts {
		title := ""
		if attempt.Quiz != nil {
			title = attempt.Quiz.Title
		}
		completedAt := ""
		if attempt.CompletedAt != nil {
			completedAt = attempt.CompletedAt.Format("2006-01-02 15:04:05")
		}

		values := []any{attempt.ID, title, completedAt, attempt.Score, attempt.MaxScore, attempt.Percentage}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("Attempt history exported",
		"student_id", studentID,
		"attempt_count", len(attempts))
	return f, nil
}
