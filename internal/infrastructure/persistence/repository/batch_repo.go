package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/sqlite"
)

// BatchRepository implements port.BatchRepository
type BatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *sql.DB, logger *zap.Logger) port.BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *entity.Batch) error {
	query := `
		INSERT INTO batches (
			id, batch_date, approval_status, reopened, revision,
			data_summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		batch.ID,
		batch.BatchDate,
		string(batch.ApprovalStatus),
		batch.Reopened,
		batch.Revision,
		batch.DataSummary,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create batch", zap.Error(err), zap.String("batch_id", batch.ID))
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

// GetByID retrieves a batch by id. A missing batch yields (nil, nil).
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*entity.Batch, error) {
	query := `
		SELECT id, batch_date, approval_status, reopened, revision,
			data_summary, created_at, updated_at
		FROM batches
		WHERE id = ?
	`

	batch, err := scanBatch(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get batch", zap.String("batch_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// List retrieves batches, newest batch date first
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]*entity.Batch, error) {
	query := `
		SELECT id, batch_date, approval_status, reopened, revision,
			data_summary, created_at, updated_at
		FROM batches
		ORDER BY batch_date DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list batches", zap.Error(err))
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	return collectBatches(rows)
}

// ListByStatus retrieves batches in the given approval status
func (r *BatchRepository) ListByStatus(ctx context.Context, status approval.Status) ([]*entity.Batch, error) {
	query := `
		SELECT id, batch_date, approval_status, reopened, revision,
			data_summary, created_at, updated_at
		FROM batches
		WHERE approval_status = ?
		ORDER BY batch_date DESC, id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, string(status))
	if err != nil {
		r.logger.Error("Failed to list batches by status", zap.String("status", status.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list batches by status: %w", err)
	}
	defer rows.Close()

	return collectBatches(rows)
}

// UpdateApproval sets approval status and reopened flag and bumps the
// revision in the same statement.
func (r *BatchRepository) UpdateApproval(ctx context.Context, id string, status approval.Status, reopened bool) error {
	query := `
		UPDATE batches
		SET approval_status = ?, reopened = ?, revision = revision + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, string(status), reopened, id)
	if err != nil {
		r.logger.Error("Failed to update approval status", zap.String("batch_id", id), zap.Error(err))
		return fmt.Errorf("failed to update approval status: %w", err)
	}
	return requireRow(result, id)
}

// BumpRevision advances the batch revision for non-approval mutations
func (r *BatchRepository) BumpRevision(ctx context.Context, id string) error {
	query := `
		UPDATE batches
		SET revision = revision + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to bump batch revision", zap.String("batch_id", id), zap.Error(err))
		return fmt.Errorf("failed to bump batch revision: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner) (*entity.Batch, error) {
	var batch entity.Batch
	var status string
	err := row.Scan(
		&batch.ID,
		&batch.BatchDate,
		&status,
		&batch.Reopened,
		&batch.Revision,
		&batch.DataSummary,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	batch.ApprovalStatus = approval.Status(status)
	return &batch, nil
}

func collectBatches(rows *sql.Rows) ([]*entity.Batch, error) {
	var batches []*entity.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *BatchRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.BatchRepository = (*BatchRepository)(nil)
