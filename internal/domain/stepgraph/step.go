package stepgraph

import "time"

// StepStatus represents the lifecycle status of a workflow step
type StepStatus string

const (
	StatusNotStarted StepStatus = "not-started"
	StatusInProgress StepStatus = "in-progress"
	StatusBlocked    StepStatus = "blocked"
	StatusComplete   StepStatus = "complete"
)

// String returns the string representation of the status
func (s StepStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the defined step statuses
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusBlocked, StatusComplete:
		return true
	default:
		return false
	}
}

// Task is one checklist item on a workflow step
type Task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Link      string `json:"link,omitempty"`
}

// Step is one unit of the monthly close process. Steps are created from the
// monthly template when a batch's workflow is instantiated and are never
// deleted, only transitioned.
type Step struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        StepStatus `json:"status"`
	Dependencies  []string   `json:"dependencies"`
	Owner         string     `json:"owner,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	EstimatedDays int        `json:"estimated_days"`
	Tasks         []Task     `json:"tasks"`
	CommentCount  int        `json:"comment_count"`

	// Seq is the creation order within the graph, assigned at load.
	// It is the deterministic tie-break for analytics.
	Seq int `json:"-"`
}

// TasksComplete returns true if every task on the step is completed.
// A step with no tasks counts as complete.
func (s *Step) TasksComplete() bool {
	for _, t := range s.Tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}

// CompletedTasks returns the number of completed tasks on the step
func (s *Step) CompletedTasks() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// IsOverdue reports whether the step has a due date strictly before now and
// is not complete.
func (s *Step) IsOverdue(now time.Time) bool {
	if s.DueDate == nil || s.Status == StatusComplete {
		return false
	}
	return s.DueDate.Before(now)
}
