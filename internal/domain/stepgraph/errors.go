package stepgraph

import "github.com/pkg/errors"

var (
	// ErrInvalidGraph is returned when a step definition set is cyclic or
	// references unknown steps. Fatal at load: the workflow must not be served.
	ErrInvalidGraph = errors.New("invalid workflow graph")

	// ErrStepNotFound is returned when a step id does not exist in the graph
	ErrStepNotFound = errors.New("workflow step not found")

	// ErrTaskNotFound is returned when a task id does not exist on a step
	ErrTaskNotFound = errors.New("task not found")

	// ErrTasksIncomplete is returned when completing a step with unfinished tasks
	ErrTasksIncomplete = errors.New("step has incomplete tasks")

	// ErrStepBlocked is returned when completing a step whose dependencies
	// are not all complete
	ErrStepBlocked = errors.New("step dependencies not complete")
)
