package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/finclose/close-engine/internal/domain/approval"
)

// ExportService renders approval logs and workflow status as xlsx workbooks
// for controllers who live in spreadsheets.
type ExportService interface {
	// ApprovalLogs renders the approval records in a date range as a workbook
	ApprovalLogs(ctx context.Context, start, end time.Time) (*bytes.Buffer, error)

	// WorkflowStatus renders a batch's step list as a workbook
	WorkflowStatus(ctx context.Context, batchID string) (*bytes.Buffer, error)
}

type exportServiceImpl struct {
	audit    AuditService
	workflow WorkflowService
	logger   Logger
}

// NewExportService creates a new ExportService
func NewExportService(audit AuditService, workflow WorkflowService, logger Logger) ExportService {
	return &exportServiceImpl{
		audit:    audit,
		workflow: workflow,
		logger:   logger,
	}
}

func (s *exportServiceImpl) ApprovalLogs(ctx context.Context, start, end time.Time) (*bytes.Buffer, error) {
	records, err := s.audit.Logs(ctx, start, end)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Approval Logs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Batch", "Level", "Action", "Approver", "Reason", "Timestamp"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, r := range records {
		values := []interface{}{r.BatchID, levelLabel(r.Level), r.Action, r.Approver, r.Reason, r.Timestamp.Format(time.RFC3339)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("Failed to render approval log export", "error", err)
		return nil, fmt.Errorf("render approval log export: %w", err)
	}
	return buf, nil
}

func (s *exportServiceImpl) WorkflowStatus(ctx context.Context, batchID string) (*bytes.Buffer, error) {
	status, err := s.workflow.Status(ctx, batchID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Workflow"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Step", "Name", "Status", "Owner", "Due Date", "Tasks Done", "Tasks Total", "Comments"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, step := range status.Steps {
		due := ""
		if step.DueDate != nil {
			due = step.DueDate.Format("2006-01-02")
		}
		values := []interface{}{
			step.ID, step.Name, string(step.Status), step.Owner, due,
			step.CompletedTasks(), len(step.Tasks), step.CommentCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	summaryRow := len(status.Steps) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	f.SetCellValue(sheet, cell, fmt.Sprintf("Progress: %d%% (%d of %d steps complete)",
		status.Progress.Percentage, status.Progress.CompletedSteps, status.Progress.TotalSteps))

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("Failed to render workflow export", "error", err, "batch_id", batchID)
		return nil, fmt.Errorf("render workflow export: %w", err)
	}
	return buf, nil
}

func levelLabel(level int) string {
	if level == approval.LevelPostFinal {
		return "post-final"
	}
	return fmt.Sprintf("level %d", level)
}
