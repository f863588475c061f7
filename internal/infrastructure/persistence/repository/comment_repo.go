package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/sqlite"
)

// CommentRepository implements port.CommentRepository. Batch-level comments
// carry an empty step_id; step comments carry the step they annotate.
type CommentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sql.DB, logger *zap.Logger) port.CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	query := `
		INSERT INTO comments (
			id, batch_id, step_id, author, text, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		comment.ID,
		comment.BatchID,
		comment.StepID,
		comment.Author,
		comment.Text,
		comment.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create comment", zap.Error(err), zap.String("batch_id", comment.BatchID))
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// ListByBatch retrieves batch-level comments, oldest first
func (r *CommentRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.Comment, error) {
	query := `
		SELECT id, batch_id, step_id, author, text, timestamp
		FROM comments
		WHERE batch_id = ? AND step_id = ''
		ORDER BY timestamp ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	return collectComments(rows)
}

// ListByStep retrieves a step's comments, oldest first
func (r *CommentRepository) ListByStep(ctx context.Context, batchID, stepID string) ([]*entity.Comment, error) {
	query := `
		SELECT id, batch_id, step_id, author, text, timestamp
		FROM comments
		WHERE batch_id = ? AND step_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, batchID, stepID)
	if err != nil {
		r.logger.Error("Failed to list step comments", zap.String("batch_id", batchID), zap.String("step_id", stepID), zap.Error(err))
		return nil, fmt.Errorf("failed to list step comments: %w", err)
	}
	defer rows.Close()

	return collectComments(rows)
}

// CountByStep returns comment counts keyed by step id for a batch
func (r *CommentRepository) CountByStep(ctx context.Context, batchID string) (map[string]int, error) {
	query := `
		SELECT step_id, COUNT(*)
		FROM comments
		WHERE batch_id = ? AND step_id != ''
		GROUP BY step_id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to count step comments", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to count step comments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stepID string
		var count int
		if err := rows.Scan(&stepID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan comment count: %w", err)
		}
		counts[stepID] = count
	}
	return counts, rows.Err()
}

func collectComments(rows *sql.Rows) ([]*entity.Comment, error) {
	var comments []*entity.Comment
	for rows.Next() {
		var comment entity.Comment
		err := rows.Scan(
			&comment.ID,
			&comment.BatchID,
			&comment.StepID,
			&comment.Author,
			&comment.Text,
			&comment.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *CommentRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.CommentRepository = (*CommentRepository)(nil)
