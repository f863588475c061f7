package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finclose/close-engine/internal/application/dispatcher"
	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/approval"
	"github.com/finclose/close-engine/internal/domain/entity"
	"github.com/finclose/close-engine/internal/domain/event"
	"github.com/finclose/close-engine/internal/domain/stepgraph"
)

// ApprovalService drives a batch through the three-level approval chain and
// the post-approval reversal path, and owns batch lifecycle and comments.
type ApprovalService interface {
	// CreateBatch registers a new reporting batch and instantiates its
	// monthly workflow steps in the same transaction
	CreateBatch(ctx context.Context, batchID string, batchDate time.Time, dataSummary string) (*entity.Batch, error)

	// GetBatch returns one batch by id
	GetBatch(ctx context.Context, batchID string) (*entity.Batch, error)

	// ListBatches returns batches, newest first
	ListBatches(ctx context.Context, limit, offset int) ([]*entity.Batch, error)

	// ListFinalApproved returns batches eligible for post-final rejection
	ListFinalApproved(ctx context.Context) ([]*entity.Batch, error)

	// Approve records an approval at the given level (1..3)
	Approve(ctx context.Context, batchID string, level int, approver string) (*entity.Batch, error)

	// Reject records a rejection at the given level (1..3) with a reason
	Reject(ctx context.Context, batchID string, level int, approver, reason string) (*entity.Batch, error)

	// RejectFinal reopens a fully approved batch with a reason
	RejectFinal(ctx context.Context, batchID string, approver, reason string) (*entity.Batch, error)

	// History returns the batch's approval record trail, oldest first
	History(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error)

	// AddComment attaches a batch-level comment
	AddComment(ctx context.Context, batchID, author, text string) (*entity.Comment, error)

	// Comments returns batch-level comments, oldest first
	Comments(ctx context.Context, batchID string) ([]*entity.Comment, error)
}

type approvalServiceImpl struct {
	batchRepo   port.BatchRepository
	commentRepo port.CommentRepository
	stepRepo    port.StepRepository
	txManager   port.TransactionManager
	audit       AuditService
	dispatcher  dispatcher.Dispatcher
	locks       *BatchLocks
	logger      Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	batchRepo port.BatchRepository,
	commentRepo port.CommentRepository,
	stepRepo port.StepRepository,
	txManager port.TransactionManager,
	audit AuditService,
	disp dispatcher.Dispatcher,
	locks *BatchLocks,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		batchRepo:   batchRepo,
		commentRepo: commentRepo,
		stepRepo:    stepRepo,
		txManager:   txManager,
		audit:       audit,
		dispatcher:  disp,
		locks:       locks,
		logger:      logger,
	}
}

func (s *approvalServiceImpl) CreateBatch(ctx context.Context, batchID string, batchDate time.Time, dataSummary string) (*entity.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", approval.ErrValidation)
	}

	if existing, err := s.batchRepo.GetByID(ctx, batchID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchExists, batchID)
	}

	now := time.Now()
	batch := &entity.Batch{
		ID:             batchID,
		BatchDate:      batchDate,
		ApprovalStatus: approval.StatusReadyForL1,
		Revision:       1,
		DataSummary:    dataSummary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	graph, err := stepgraph.New(stepgraph.MonthlyTemplate())
	if err != nil {
		return nil, fmt.Errorf("build monthly workflow: %w", err)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.batchRepo.Create(txCtx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if err := s.stepRepo.CreateSteps(txCtx, batchID, graph.Steps()); err != nil {
			return fmt.Errorf("create workflow steps: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create batch", "error", err, "batch_id", batchID)
		return nil, err
	}

	s.logger.Info("Batch created", "batch_id", batchID, "batch_date", batchDate.Format("2006-01-02"))
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeBatchCreated, batchID, map[string]interface{}{
		"batch_date": batchDate.Format("2006-01-02"),
	}))

	return batch, nil
}

func (s *approvalServiceImpl) GetBatch(ctx context.Context, batchID string) (*entity.Batch, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return batch, nil
}

func (s *approvalServiceImpl) ListBatches(ctx context.Context, limit, offset int) ([]*entity.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	batches, err := s.batchRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if batches == nil {
		batches = []*entity.Batch{}
	}
	return batches, nil
}

func (s *approvalServiceImpl) ListFinalApproved(ctx context.Context) ([]*entity.Batch, error) {
	batches, err := s.batchRepo.ListByStatus(ctx, approval.StatusApprovedFinal)
	if err != nil {
		return nil, fmt.Errorf("list approved batches: %w", err)
	}
	if batches == nil {
		batches = []*entity.Batch{}
	}
	return batches, nil
}

func (s *approvalServiceImpl) Approve(ctx context.Context, batchID string, level int, approver string) (*entity.Batch, error) {
	return s.decide(ctx, batchID, level, approver, "", entity.ActionApproved)
}

func (s *approvalServiceImpl) Reject(ctx context.Context, batchID string, level int, approver, reason string) (*entity.Batch, error) {
	return s.decide(ctx, batchID, level, approver, reason, entity.ActionRejected)
}

// decide applies one approval or rejection decision under the batch lock:
// read the batch, run the transition, persist status and audit record in a
// single transaction, then dispatch the event after commit.
func (s *approvalServiceImpl) decide(ctx context.Context, batchID string, level int, approver, reason, action string) (*entity.Batch, error) {
	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	var batch *entity.Batch
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.batchRepo.GetByID(txCtx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}

		var next approval.Status
		if action == entity.ActionApproved {
			next, err = approval.NextOnApprove(batch.ApprovalStatus, level)
		} else {
			next, err = approval.NextOnReject(batch.ApprovalStatus, level, reason)
		}
		if err != nil {
			return err
		}

		// A post-final reversal is cleared once the chain completes again.
		reopened := batch.Reopened
		if next == approval.StatusApprovedFinal {
			reopened = false
		}

		if err := s.batchRepo.UpdateApproval(txCtx, batchID, next, reopened); err != nil {
			return fmt.Errorf("update approval status: %w", err)
		}

		record := &entity.ApprovalRecord{
			BatchID:   batchID,
			Level:     level,
			Action:    action,
			Approver:  approver,
			Reason:    strings.TrimSpace(reason),
			Timestamp: time.Now(),
		}
		if err := s.audit.Record(txCtx, record); err != nil {
			return err
		}

		batch.ApprovalStatus = next
		batch.Reopened = reopened
		batch.Revision++
		batch.UpdatedAt = record.Timestamp
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := event.TypeBatchApproved
	if action == entity.ActionRejected {
		eventType = event.TypeBatchRejected
	}
	s.logger.Info("Approval decision recorded",
		"batch_id", batchID,
		"level", level,
		"action", action,
		"new_status", batch.ApprovalStatus.String(),
	)
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(eventType, batchID, map[string]interface{}{
		"level":      level,
		"approver":   approver,
		"new_status": batch.ApprovalStatus.String(),
	}))

	return batch, nil
}

func (s *approvalServiceImpl) RejectFinal(ctx context.Context, batchID string, approver, reason string) (*entity.Batch, error) {
	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	var batch *entity.Batch
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.batchRepo.GetByID(txCtx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}

		next, err := approval.NextOnRejectFinal(batch.ApprovalStatus, reason)
		if err != nil {
			return err
		}

		if err := s.batchRepo.UpdateApproval(txCtx, batchID, next, true); err != nil {
			return fmt.Errorf("update approval status: %w", err)
		}

		record := &entity.ApprovalRecord{
			BatchID:   batchID,
			Level:     approval.LevelPostFinal,
			Action:    entity.ActionRejected,
			Approver:  approver,
			Reason:    strings.TrimSpace(reason),
			Timestamp: time.Now(),
		}
		if err := s.audit.Record(txCtx, record); err != nil {
			return err
		}

		batch.ApprovalStatus = next
		batch.Reopened = true
		batch.Revision++
		batch.UpdatedAt = record.Timestamp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch reopened after final approval", "batch_id", batchID, "approver", approver)
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeBatchReopened, batchID, map[string]interface{}{
		"approver": approver,
	}))

	return batch, nil
}

func (s *approvalServiceImpl) History(ctx context.Context, batchID string) ([]*entity.ApprovalRecord, error) {
	return s.audit.History(ctx, batchID)
}

func (s *approvalServiceImpl) AddComment(ctx context.Context, batchID, author, text string) (*entity.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	comment := &entity.Comment{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		batch, err := s.batchRepo.GetByID(txCtx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}
		if err := s.commentRepo.Create(txCtx, comment); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return s.batchRepo.BumpRevision(txCtx, batchID)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeCommentAdded, batchID, map[string]interface{}{
		"author": author,
	}))

	return comment, nil
}

func (s *approvalServiceImpl) Comments(ctx context.Context, batchID string) ([]*entity.Comment, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []*entity.Comment{}
	}
	return comments, nil
}
