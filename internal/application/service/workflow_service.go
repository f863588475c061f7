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

// WorkflowStatus is the full picture of a batch's monthly workflow: every
// step with its derived blocked state, plus the aggregate numbers a close
// dashboard renders.
type WorkflowStatus struct {
	BatchID      string             `json:"batch_id"`
	Steps        []*stepgraph.Step  `json:"steps"`
	Progress     stepgraph.Progress `json:"progress"`
	CriticalPath []string           `json:"critical_path"`
	OverdueSteps []string           `json:"overdue_steps"`
}

// StepDetail is one step plus its dependents, for the step drill-down view
type StepDetail struct {
	Step       *stepgraph.Step `json:"step"`
	Dependents []string        `json:"dependents"`
}

// DueDateResult carries the updated step and the non-fatal ordering warning
// produced when a due date precedes a prerequisite's.
type DueDateResult struct {
	Step    *stepgraph.Step `json:"step"`
	Warning string          `json:"warning,omitempty"`
}

// WorkflowService exposes the workflow step operations for a batch. Every
// mutation reloads the graph from storage, applies the change, re-derives
// blocked state, and persists the touched steps in one transaction.
type WorkflowService interface {
	// Status returns all steps with derived state and aggregate progress
	Status(ctx context.Context, batchID string) (*WorkflowStatus, error)

	// StepDetail returns one step and the steps that depend on it
	StepDetail(ctx context.Context, batchID, stepID string) (*StepDetail, error)

	// CompleteStep marks a step complete and unblocks its dependents
	CompleteStep(ctx context.Context, batchID, stepID, userID string) (*WorkflowStatus, error)

	// AssignOwner sets the owner of a step
	AssignOwner(ctx context.Context, batchID, stepID, userID string) (*stepgraph.Step, error)

	// SetDueDate sets a step's due date, warning when it precedes a prerequisite's
	SetDueDate(ctx context.Context, batchID, stepID string, due time.Time) (*DueDateResult, error)

	// AddTask appends a checklist task to a step
	AddTask(ctx context.Context, batchID, stepID, name, link string) (*stepgraph.Step, error)

	// ToggleTask flips a task's completed flag
	ToggleTask(ctx context.Context, batchID, stepID, taskID string) (*stepgraph.Step, error)

	// AddStepComment attaches a comment to a step
	AddStepComment(ctx context.Context, batchID, stepID, author, text string) (*entity.Comment, error)

	// StepComments returns a step's comments, oldest first
	StepComments(ctx context.Context, batchID, stepID string) ([]*entity.Comment, error)
}

type workflowServiceImpl struct {
	batchRepo   port.BatchRepository
	stepRepo    port.StepRepository
	commentRepo port.CommentRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	locks       *BatchLocks
	logger      Logger
	nowFn       func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	batchRepo port.BatchRepository,
	stepRepo port.StepRepository,
	commentRepo port.CommentRepository,
	txManager port.TransactionManager,
	disp dispatcher.Dispatcher,
	locks *BatchLocks,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		batchRepo:   batchRepo,
		stepRepo:    stepRepo,
		commentRepo: commentRepo,
		txManager:   txManager,
		dispatcher:  disp,
		locks:       locks,
		logger:      logger,
		nowFn:       time.Now,
	}
}

// loadGraph reads a batch's steps, rebuilds the dependency graph, and
// re-derives blocked state. A graph that fails validation here means the
// stored definition is corrupt; that surfaces as ErrInvalidGraph.
func (s *workflowServiceImpl) loadGraph(ctx context.Context, batchID string) (*stepgraph.Graph, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	steps, err := s.stepRepo.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load workflow steps: %w", err)
	}

	g, err := stepgraph.New(steps)
	if err != nil {
		s.logger.Error("Stored workflow definition is invalid", "error", err, "batch_id", batchID)
		return nil, err
	}
	stepgraph.Recompute(g)

	counts, err := s.commentRepo.CountByStep(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("count step comments: %w", err)
	}
	for _, step := range g.Steps() {
		step.CommentCount = counts[step.ID]
	}

	return g, nil
}

func (s *workflowServiceImpl) status(g *stepgraph.Graph, batchID string) *WorkflowStatus {
	now := s.nowFn()
	return &WorkflowStatus{
		BatchID:      batchID,
		Steps:        g.Steps(),
		Progress:     stepgraph.ComputeProgress(g, now),
		CriticalPath: stepgraph.CriticalPath(g),
		OverdueSteps: stepgraph.OverdueSteps(g, now),
	}
}

func (s *workflowServiceImpl) Status(ctx context.Context, batchID string) (*WorkflowStatus, error) {
	var result *WorkflowStatus
	// Reads run inside a transaction so the batch, steps, tasks and comment
	// counts come from one snapshot even while a mutation commits.
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		result = s.status(g, batchID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *workflowServiceImpl) StepDetail(ctx context.Context, batchID, stepID string) (*StepDetail, error) {
	var detail *StepDetail
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		step, err := g.Step(stepID)
		if err != nil {
			return err
		}
		detail = &StepDetail{Step: step, Dependents: g.Dependents(stepID)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *workflowServiceImpl) CompleteStep(ctx context.Context, batchID, stepID, userID string) (*WorkflowStatus, error) {
	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	var result *WorkflowStatus
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		if err := g.MarkComplete(stepID); err != nil {
			return err
		}
		stepgraph.Recompute(g)

		// Persist the completed step and every dependent whose blocked
		// state just changed. Writing the whole graph keeps it simple and
		// the step count is small.
		for _, step := range g.Steps() {
			if err := s.stepRepo.UpdateStep(txCtx, batchID, step); err != nil {
				return fmt.Errorf("persist step %s: %w", step.ID, err)
			}
		}
		if err := s.batchRepo.BumpRevision(txCtx, batchID); err != nil {
			return err
		}
		result = s.status(g, batchID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow step completed", "batch_id", batchID, "step_id", stepID, "user_id", userID)
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStepCompleted, batchID, map[string]interface{}{
		"step_id": stepID,
		"user_id": userID,
	}))

	return result, nil
}

func (s *workflowServiceImpl) AssignOwner(ctx context.Context, batchID, stepID, userID string) (*stepgraph.Step, error) {
	var updated *stepgraph.Step
	err := s.mutateStep(ctx, batchID, stepID, func(g *stepgraph.Graph) error {
		if err := g.AssignOwner(stepID, userID); err != nil {
			return err
		}
		updated, _ = g.Step(stepID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *workflowServiceImpl) SetDueDate(ctx context.Context, batchID, stepID string, due time.Time) (*DueDateResult, error) {
	var result DueDateResult
	err := s.mutateStep(ctx, batchID, stepID, func(g *stepgraph.Graph) error {
		warning, err := g.SetDueDate(stepID, due)
		if err != nil {
			return err
		}
		result.Warning = warning
		result.Step, _ = g.Step(stepID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Warning != "" {
		s.logger.Info("Due date precedes prerequisite", "batch_id", batchID, "step_id", stepID, "warning", result.Warning)
	}
	return &result, nil
}

func (s *workflowServiceImpl) AddTask(ctx context.Context, batchID, stepID, name, link string) (*stepgraph.Step, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: task name is required", approval.ErrValidation)
	}

	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	var updated *stepgraph.Step
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		task, err := g.AddTask(stepID, name, link)
		if err != nil {
			return err
		}
		if err := s.stepRepo.CreateTask(txCtx, batchID, stepID, task); err != nil {
			return fmt.Errorf("persist task: %w", err)
		}
		updated, _ = g.Step(stepID)
		if err := s.stepRepo.UpdateStep(txCtx, batchID, updated); err != nil {
			return fmt.Errorf("persist step %s: %w", stepID, err)
		}
		return s.batchRepo.BumpRevision(txCtx, batchID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *workflowServiceImpl) ToggleTask(ctx context.Context, batchID, stepID, taskID string) (*stepgraph.Step, error) {
	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	var updated *stepgraph.Step
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		task, err := g.ToggleTask(stepID, taskID)
		if err != nil {
			return err
		}
		if err := s.stepRepo.UpdateTask(txCtx, batchID, stepID, task); err != nil {
			return fmt.Errorf("persist task: %w", err)
		}
		updated, _ = g.Step(stepID)
		if err := s.stepRepo.UpdateStep(txCtx, batchID, updated); err != nil {
			return fmt.Errorf("persist step %s: %w", stepID, err)
		}
		return s.batchRepo.BumpRevision(txCtx, batchID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *workflowServiceImpl) AddStepComment(ctx context.Context, batchID, stepID, author, text string) (*entity.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	comment := &entity.Comment{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		StepID:    stepID,
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		if _, err := g.Step(stepID); err != nil {
			return err
		}
		if err := s.commentRepo.Create(txCtx, comment); err != nil {
			return fmt.Errorf("create step comment: %w", err)
		}
		return s.batchRepo.BumpRevision(txCtx, batchID)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeCommentAdded, batchID, map[string]interface{}{
		"step_id": stepID,
		"author":  author,
	}))

	return comment, nil
}

func (s *workflowServiceImpl) StepComments(ctx context.Context, batchID, stepID string) ([]*entity.Comment, error) {
	var comments []*entity.Comment
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		if _, err := g.Step(stepID); err != nil {
			return err
		}
		comments, err = s.commentRepo.ListByStep(txCtx, batchID, stepID)
		if err != nil {
			return fmt.Errorf("list step comments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*entity.Comment{}
	}
	return comments, nil
}

// mutateStep runs a single-step mutation under the batch lock in one
// transaction and persists the mutated step.
func (s *workflowServiceImpl) mutateStep(ctx context.Context, batchID, stepID string, fn func(g *stepgraph.Graph) error) error {
	lock := s.locks.acquire(batchID)
	defer lock.Unlock()

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.loadGraph(txCtx, batchID)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		step, err := g.Step(stepID)
		if err != nil {
			return err
		}
		if err := s.stepRepo.UpdateStep(txCtx, batchID, step); err != nil {
			return fmt.Errorf("persist step %s: %w", stepID, err)
		}
		return s.batchRepo.BumpRevision(txCtx, batchID)
	})
}
