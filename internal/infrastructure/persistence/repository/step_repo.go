package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/stepgraph"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/sqlite"
)

// StepRepository implements port.StepRepository. Dependencies are stored as
// a JSON array on the step row; checklist tasks live in their own table.
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new workflow step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSteps persists a batch's full step set, tasks included
func (r *StepRepository) CreateSteps(ctx context.Context, batchID string, steps []*stepgraph.Step) error {
	stepQuery := `
		INSERT INTO workflow_steps (
			batch_id, id, name, status, dependencies, owner,
			due_date, estimated_days, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	taskQuery := `
		INSERT INTO step_tasks (
			batch_id, step_id, id, name, completed, link, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	exec := r.getExecutor(ctx)
	for _, step := range steps {
		deps, err := json.Marshal(step.Dependencies)
		if err != nil {
			return fmt.Errorf("failed to marshal dependencies: %w", err)
		}
		_, err = exec.ExecContext(ctx, stepQuery,
			batchID,
			step.ID,
			step.Name,
			string(step.Status),
			string(deps),
			step.Owner,
			step.DueDate,
			step.EstimatedDays,
			step.Seq,
		)
		if err != nil {
			r.logger.Error("Failed to create workflow step", zap.Error(err), zap.String("batch_id", batchID), zap.String("step_id", step.ID))
			return fmt.Errorf("failed to create workflow step: %w", err)
		}

		for i, task := range step.Tasks {
			_, err := exec.ExecContext(ctx, taskQuery,
				batchID, step.ID, task.ID, task.Name, task.Completed, task.Link, i,
			)
			if err != nil {
				r.logger.Error("Failed to create step task", zap.Error(err), zap.String("step_id", step.ID))
				return fmt.Errorf("failed to create step task: %w", err)
			}
		}
	}

	return nil
}

// GetByBatch retrieves a batch's steps in creation order, tasks attached
func (r *StepRepository) GetByBatch(ctx context.Context, batchID string) ([]*stepgraph.Step, error) {
	query := `
		SELECT id, name, status, dependencies, owner, due_date, estimated_days
		FROM workflow_steps
		WHERE batch_id = ?
		ORDER BY seq ASC
	`

	exec := r.getExecutor(ctx)
	rows, err := exec.QueryContext(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to get workflow steps", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*stepgraph.Step
	byID := make(map[string]*stepgraph.Step)
	for rows.Next() {
		var step stepgraph.Step
		var status, deps string
		var dueDate sql.NullTime
		err := rows.Scan(
			&step.ID,
			&step.Name,
			&status,
			&deps,
			&step.Owner,
			&dueDate,
			&step.EstimatedDays,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		step.Status = stepgraph.StepStatus(status)
		if err := json.Unmarshal([]byte(deps), &step.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
		if dueDate.Valid {
			t := dueDate.Time
			step.DueDate = &t
		}
		steps = append(steps, &step)
		byID[step.ID] = &step
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	taskQuery := `
		SELECT step_id, id, name, completed, link
		FROM step_tasks
		WHERE batch_id = ?
		ORDER BY step_id ASC, seq ASC
	`
	taskRows, err := exec.QueryContext(ctx, taskQuery, batchID)
	if err != nil {
		r.logger.Error("Failed to get step tasks", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to get step tasks: %w", err)
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var stepID string
		var task stepgraph.Task
		if err := taskRows.Scan(&stepID, &task.ID, &task.Name, &task.Completed, &task.Link); err != nil {
			return nil, fmt.Errorf("failed to scan step task: %w", err)
		}
		if step, ok := byID[stepID]; ok {
			step.Tasks = append(step.Tasks, task)
		}
	}

	return steps, taskRows.Err()
}

// UpdateStep persists a step's mutable fields
func (r *StepRepository) UpdateStep(ctx context.Context, batchID string, step *stepgraph.Step) error {
	query := `
		UPDATE workflow_steps
		SET status = ?, owner = ?, due_date = ?
		WHERE batch_id = ? AND id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(step.Status), step.Owner, step.DueDate, batchID, step.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow step", zap.Error(err), zap.String("batch_id", batchID), zap.String("step_id", step.ID))
		return fmt.Errorf("failed to update workflow step: %w", err)
	}
	return nil
}

// CreateTask appends a task to a step
func (r *StepRepository) CreateTask(ctx context.Context, batchID, stepID string, task *stepgraph.Task) error {
	query := `
		INSERT INTO step_tasks (batch_id, step_id, id, name, completed, link, seq)
		VALUES (?, ?, ?, ?, ?, ?,
			(SELECT COUNT(*) FROM step_tasks WHERE batch_id = ? AND step_id = ?))
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		batchID, stepID, task.ID, task.Name, task.Completed, task.Link,
		batchID, stepID,
	)
	if err != nil {
		r.logger.Error("Failed to create step task", zap.Error(err), zap.String("step_id", stepID))
		return fmt.Errorf("failed to create step task: %w", err)
	}
	return nil
}

// UpdateTask persists a task's completed flag
func (r *StepRepository) UpdateTask(ctx context.Context, batchID, stepID string, task *stepgraph.Task) error {
	query := `
		UPDATE step_tasks
		SET completed = ?
		WHERE batch_id = ? AND step_id = ? AND id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.Completed, batchID, stepID, task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update step task", zap.Error(err), zap.String("step_id", stepID))
		return fmt.Errorf("failed to update step task: %w", err)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *StepRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
