package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/sqlite"
)

// RecordRepository implements port.RecordRepository. The table is append
// only: no update or delete statements exist here.
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new approval record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new approval record
func (r *RecordRepository) Create(ctx context.Context, record *entity.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			batch_id, level, action, approver, reason, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.BatchID,
		record.Level,
		record.Action,
		record.Approver,
		record.Reason,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create approval record", zap.Error(err), zap.String("batch_id", record.BatchID))
		return fmt.Errorf("failed to create approval record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// ListByBatch retrieves all records for a batch, oldest first
func (r *RecordRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error) {
	query := `
		SELECT id, batch_id, level, action, approver, reason, timestamp
		FROM approval_records
		WHERE batch_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to list approval records", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByDateRange retrieves records across all batches in [start, end]
func (r *RecordRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.ApprovalRecord, error) {
	query := `
		SELECT id, batch_id, level, action, approver, reason, timestamp
		FROM approval_records
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, start, end)
	if err != nil {
		r.logger.Error("Failed to list approval records by date", zap.Error(err))
		return nil, fmt.Errorf("failed to list approval records by date: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*entity.ApprovalRecord, error) {
	var records []*entity.ApprovalRecord
	for rows.Next() {
		var record entity.ApprovalRecord
		err := rows.Scan(
			&record.ID,
			&record.BatchID,
			&record.Level,
			&record.Action,
			&record.Approver,
			&record.Reason,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *RecordRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
