package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/repositories"
)

type reportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

const reportPageSize = 1000

// GeneratePenaltyReport exports all penalty records as an xlsx workbook.
func (s *reportService) GeneratePenaltyReport(ctx context.Context) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Penalties"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"User ID", "Harmful Count", "Alert Sent", "Healer Status Removed", "Last Violation At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := 2
	offset := 0
	for {
		penalties, _, err := s.repo.Penalty().List(ctx, s.db, repositories.PenaltyFilters{
			Limit:     reportPageSize,
			Offset:    offset,
			SortBy:    "harmful_count",
			SortOrder: "desc",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load penalty records: %w", err)
		}

		for _, p := range penalties {
			lastViolation := ""
			if p.LastViolationAt != nil {
				lastViolation = p.LastViolationAt.Format(time.RFC3339)
			}
			values := []interface{}{p.UserID, p.HarmfulCount, p.AlertSent, p.HealerStatusRemoved, lastViolation}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("failed to write row: %w", err)
				}
			}
			row++
		}

		if len(penalties) < reportPageSize {
			break
		}
		offset += reportPageSize
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.Info("Penalty report generated", "rows", row-2)
	return buf.Bytes(), nil
}

// GenerateQuizReport exports all stored quiz results as an xlsx workbook.
func (s *reportService) GenerateQuizReport(ctx context.Context) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Quiz Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"User ID", "Score", "Passed", "Taken At", "Can Retake At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := 2
	offset := 0
	for {
		attempts, _, err := s.repo.QuizAttempt().List(ctx, s.db, repositories.QuizAttemptFilters{
			Limit:     reportPageSize,
			Offset:    offset,
			SortBy:    "taken_at",
			SortOrder: "desc",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load quiz attempts: %w", err)
		}

		for _, a := range attempts {
			canRetake := ""
			if a.CanRetakeAt != nil {
				canRetake = a.CanRetakeAt.Format(time.RFC3339)
			}
			values := []interface{}{a.UserID, a.Score, a.Passed, a.TakenAt.Format(time.RFC3339), canRetake}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("failed to write row: %w", err)
				}
			}
			row++
		}

		if len(attempts) < reportPageSize {
			break
		}
		offset += reportPageSize
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.Info("Quiz report generated", "rows", row-2)
	return buf.Bytes(), nil
}
