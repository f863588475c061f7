package stepgraph

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Graph holds the fixed set of workflow steps for a batch and their
// dependency edges. Construction validates the dependency set is acyclic;
// a cyclic or dangling definition fails fast with ErrInvalidGraph at load
// time, not at query time.
type Graph struct {
	steps map[string]*Step
	order []string
}

// New builds a graph from the given steps, assigning creation order from
// slice position and validating the dependency set.
func New(steps []*Step) (*Graph, error) {
	g := &Graph{
		steps: make(map[string]*Step, len(steps)),
		order: make([]string, 0, len(steps)),
	}

	for i, s := range steps {
		if s.ID == "" {
			return nil, errors.Wrap(ErrInvalidGraph, "step with empty id")
		}
		if _, dup := g.steps[s.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidGraph, "duplicate step id %q", s.ID)
		}
		if s.Status == "" {
			s.Status = StatusNotStarted
		}
		if !s.Status.IsValid() {
			return nil, errors.Wrapf(ErrInvalidGraph, "step %q has invalid status %q", s.ID, s.Status)
		}
		if s.EstimatedDays <= 0 {
			s.EstimatedDays = 1
		}
		s.Seq = i
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
	}

	for _, s := range g.steps {
		for _, dep := range s.Dependencies {
			if _, ok := g.steps[dep]; !ok {
				return nil, errors.Wrapf(ErrInvalidGraph, "step %q depends on unknown step %q", s.ID, dep)
			}
			if dep == s.ID {
				return nil, errors.Wrapf(ErrInvalidGraph, "step %q depends on itself", s.ID)
			}
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, errors.Wrapf(ErrInvalidGraph, "dependency cycle: %v", cycle)
	}

	return g, nil
}

// findCycle runs Kahn's algorithm and returns the step ids left unresolved
// when a cycle exists, or nil for a valid DAG.
func (g *Graph) findCycle() []string {
	indegree := make(map[string]int, len(g.steps))
	for id := range g.steps {
		indegree[id] = 0
	}
	for _, s := range g.steps {
		indegree[s.ID] = len(s.Dependencies)
	}

	dependents := g.dependentIndex()

	queue := make([]string, 0, len(g.steps))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	resolved := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if resolved == len(g.steps) {
		return nil
	}

	var cycle []string
	for _, id := range g.order {
		if indegree[id] > 0 {
			cycle = append(cycle, id)
		}
	}
	return cycle
}

// dependentIndex inverts the dependency edges: step id -> ids that depend on it
func (g *Graph) dependentIndex() map[string][]string {
	idx := make(map[string][]string, len(g.steps))
	for _, id := range g.order {
		s := g.steps[id]
		for _, dep := range s.Dependencies {
			idx[dep] = append(idx[dep], id)
		}
	}
	return idx
}

// Len returns the number of steps in the graph
func (g *Graph) Len() int {
	return len(g.steps)
}

// Step returns the step with the given id
func (g *Graph) Step(id string) (*Step, error) {
	s, ok := g.steps[id]
	if !ok {
		return nil, errors.Wrapf(ErrStepNotFound, "step %q", id)
	}
	return s, nil
}

// Steps returns all steps in creation order
func (g *Graph) Steps() []*Step {
	out := make([]*Step, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.steps[id])
	}
	return out
}

// Dependents returns the ids of steps that depend on the given step,
// in creation order.
func (g *Graph) Dependents(id string) []string {
	deps := g.dependentIndex()[id]
	sort.Slice(deps, func(i, j int) bool {
		return g.steps[deps[i]].Seq < g.steps[deps[j]].Seq
	})
	return deps
}

// DependenciesComplete reports whether every dependency of the step is complete
func (g *Graph) DependenciesComplete(s *Step) bool {
	for _, dep := range s.Dependencies {
		if d, ok := g.steps[dep]; !ok || d.Status != StatusComplete {
			return false
		}
	}
	return true
}

// MarkComplete transitions a step to complete. It fails with
// ErrTasksIncomplete if any task on the step is unfinished, and with
// ErrStepBlocked if a dependency has not completed. The caller is expected
// to run Recompute afterwards so dependents flip out of blocked.
func (g *Graph) MarkComplete(id string) error {
	s, err := g.Step(id)
	if err != nil {
		return err
	}
	if !g.DependenciesComplete(s) {
		return errors.Wrapf(ErrStepBlocked, "step %q", id)
	}
	if !s.TasksComplete() {
		return errors.Wrapf(ErrTasksIncomplete, "step %q has %d of %d tasks done",
			id, s.CompletedTasks(), len(s.Tasks))
	}
	s.Status = StatusComplete
	return nil
}

// AssignOwner sets the owner of a step
func (g *Graph) AssignOwner(id, userID string) error {
	s, err := g.Step(id)
	if err != nil {
		return err
	}
	s.Owner = userID
	return nil
}

// SetDueDate sets the due date of a step. When the date precedes the due
// date of any prerequisite a non-fatal warning is returned; the date is
// still applied.
func (g *Graph) SetDueDate(id string, date time.Time) (string, error) {
	s, err := g.Step(id)
	if err != nil {
		return "", err
	}
	warning := ""
	for _, depID := range s.Dependencies {
		dep := g.steps[depID]
		if dep.DueDate != nil && date.Before(*dep.DueDate) {
			warning = fmt.Sprintf("due date precedes due date of prerequisite %q (%s)",
				dep.ID, dep.DueDate.Format("2006-01-02"))
			break
		}
	}
	s.DueDate = &date
	return warning, nil
}

// AddTask appends a task to a step and returns it with a generated id
func (g *Graph) AddTask(stepID, name, link string) (*Task, error) {
	s, err := g.Step(stepID)
	if err != nil {
		return nil, err
	}
	task := Task{
		ID:   fmt.Sprintf("%s-task-%d", stepID, len(s.Tasks)+1),
		Name: name,
		Link: link,
	}
	s.Tasks = append(s.Tasks, task)
	// A new unfinished task on a completed step reopens it.
	if s.Status == StatusComplete {
		s.Status = StatusInProgress
	}
	return &s.Tasks[len(s.Tasks)-1], nil
}

// ToggleTask flips a task's completed flag. Unchecking a task on a completed
// step drops the step back to in-progress; checking the first task on a
// not-started step moves it to in-progress.
func (g *Graph) ToggleTask(stepID, taskID string) (*Task, error) {
	s, err := g.Step(stepID)
	if err != nil {
		return nil, err
	}
	for i := range s.Tasks {
		if s.Tasks[i].ID != taskID {
			continue
		}
		s.Tasks[i].Completed = !s.Tasks[i].Completed
		if !s.Tasks[i].Completed && s.Status == StatusComplete {
			s.Status = StatusInProgress
		}
		if s.Tasks[i].Completed && s.Status == StatusNotStarted {
			s.Status = StatusInProgress
		}
		return &s.Tasks[i], nil
	}
	return nil, errors.Wrapf(ErrTaskNotFound, "task %q on step %q", taskID, stepID)
}
