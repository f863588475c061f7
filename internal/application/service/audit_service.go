package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/entity"
)

// Logger defines the logging operations services depend on
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// AuditService is the append-only trail of approval decisions. Records are
// written once and only ever read back.
type AuditService interface {
	// Record appends one approval decision to the trail
	Record(ctx context.Context, record *entity.ApprovalRecord) error

	// History returns all records for a batch ordered by timestamp
	// ascending. An unknown or decision-free batch yields an empty list,
	// not an error.
	History(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error)

	// Logs returns records across all batches within the date range,
	// ordered by timestamp ascending
	Logs(ctx context.Context, start, end time.Time) ([]*entity.ApprovalRecord, error)
}

type auditServiceImpl struct {
	recordRepo   port.RecordRepository
	maxRangeDays int
	logger       Logger
}

// NewAuditService creates a new AuditService. maxRangeDays caps the window a
// single Logs query may span; zero disables the cap.
func NewAuditService(recordRepo port.RecordRepository, maxRangeDays int, logger Logger) AuditService {
	return &auditServiceImpl{
		recordRepo:   recordRepo,
		maxRangeDays: maxRangeDays,
		logger:       logger,
	}
}

func (s *auditServiceImpl) Record(ctx context.Context, record *entity.ApprovalRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to append approval record", "error", err, "batch_id", record.BatchID)
		return fmt.Errorf("append approval record: %w", err)
	}
	s.logger.Info("Approval record appended",
		"batch_id", record.BatchID,
		"level", record.Level,
		"action", record.Action,
	)
	return nil
}

func (s *auditServiceImpl) History(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error) {
	records, err := s.recordRepo.ListByBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("Failed to read approval history", "error", err, "batch_id", batchID)
		return nil, fmt.Errorf("read approval history: %w", err)
	}
	if records == nil {
		records = []*entity.ApprovalRecord{}
	}
	return records, nil
}

func (s *auditServiceImpl) Logs(ctx context.Context, start, end time.Time) ([]*entity.ApprovalRecord, error) {
	if s.maxRangeDays > 0 && end.Sub(start) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, fmt.Errorf("%w: date range exceeds %d days", approval.ErrValidation, s.maxRangeDays)
	}

	records, err := s.recordRepo.ListByDateRange(ctx, start, end)
	if err != nil {
		s.logger.Error("Failed to read approval logs", "error", err)
		return nil, fmt.Errorf("read approval logs: %w", err)
	}
	if records == nil {
		records = []*entity.ApprovalRecord{}
	}
	return records, nil
}
