package port

import (
	"context"
	"time"

	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/domain/stepgraph"
)

// BatchRepository defines persistence operations for report batches
type BatchRepository interface {
	Create(ctx context.Context, batch *entity.Batch) error
	GetByID(ctx context.Context, id string) (*entity.Batch, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Batch, error)
	ListByStatus(ctx context.Context, status approval.Status) ([]*entity.Batch, error)

	// UpdateApproval sets the approval status and reopened flag and bumps
	// the batch revision in the same statement.
	UpdateApproval(ctx context.Context, id string, status approval.Status, reopened bool) error

	// BumpRevision advances the batch revision for non-approval mutations
	// (workflow step changes, comments).
	BumpRevision(ctx context.Context, id string) error
}

// RecordRepository defines persistence operations for the append-only
// approval record trail. Records are immutable once created.
type RecordRepository interface {
	Create(ctx context.Context, record *entity.ApprovalRecord) error
	ListByBatch(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.ApprovalRecord, error)
}

// CommentRepository defines persistence operations for batch and step comments
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	ListByBatch(ctx context.Context, batchID string) ([]*entity.Comment, error)
	ListByStep(ctx context.Context, batchID, stepID string) ([]*entity.Comment, error)
	CountByStep(ctx context.Context, batchID string) (map[string]int, error)
}

// StepRepository defines persistence operations for a batch's workflow steps
type StepRepository interface {
	CreateSteps(ctx context.Context, batchID string, steps []*stepgraph.Step) error
	GetByBatch(ctx context.Context, batchID string) ([]*stepgraph.Step, error)
	UpdateStep(ctx context.Context, batchID string, step *stepgraph.Step) error
	CreateTask(ctx context.Context, batchID, stepID string, task *stepgraph.Task) error
	UpdateTask(ctx context.Context, batchID, stepID string, task *stepgraph.Task) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
