package stepgraph

import (
	"math"
	"sort"
	"time"
)

// Progress is the aggregated completion state of a workflow graph
type Progress struct {
	TotalSteps              int        `json:"total_steps"`
	CompletedSteps          int        `json:"completed_steps"`
	Percentage              int        `json:"percentage"`
	Status                  StepStatus `json:"status"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
}

// Recompute re-derives the blocked flag for every step from the current
// dependency state. It is invoked explicitly after every mutating graph
// operation rather than as a side effect of any one mutation, and is
// idempotent: a second call on the same snapshot changes nothing.
//
// A step is blocked iff it has not completed and at least one dependency is
// not complete. Completion cascades: once all of a step's dependencies are
// complete the step flips out of blocked, which can in turn unblock steps
// further downstream on the next iteration of the same pass.
func Recompute(g *Graph) {
	for _, s := range topoOrder(g) {
		if s.Status == StatusComplete {
			continue
		}
		if !g.DependenciesComplete(s) {
			s.Status = StatusBlocked
			continue
		}
		if s.Status == StatusBlocked {
			if s.CompletedTasks() > 0 {
				s.Status = StatusInProgress
			} else {
				s.Status = StatusNotStarted
			}
		}
	}
}

// CriticalPath returns the ordered step ids on the longest dependency chain
// from a step with no dependencies to a step with no dependents, weighted by
// estimated duration. Ties break by step creation order so the result is
// stable and deterministic.
func CriticalPath(g *Graph) []string {
	if g.Len() == 0 {
		return nil
	}

	ordered := topoOrder(g)

	dist := make(map[string]int, g.Len())
	prev := make(map[string]string, g.Len())

	for _, s := range ordered {
		best := 0
		bestDep := ""
		for _, depID := range s.Dependencies {
			dep := g.steps[depID]
			d := dist[depID]
			if d > best || (d == best && (bestDep == "" || dep.Seq < g.steps[bestDep].Seq)) {
				best = d
				bestDep = depID
			}
		}
		dist[s.ID] = best + s.EstimatedDays
		prev[s.ID] = bestDep
	}

	// Pick the terminal step (no dependents) with the longest chain,
	// breaking ties by creation order.
	dependents := g.dependentIndex()
	endID := ""
	for _, id := range g.order {
		if len(dependents[id]) > 0 {
			continue
		}
		if endID == "" || dist[id] > dist[endID] {
			endID = id
		}
	}
	if endID == "" {
		return nil
	}

	var path []string
	for id := endID; id != ""; id = prev[id] {
		path = append(path, id)
	}
	// Reverse into root-to-leaf order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// EstimatedCompletion returns the projected completion date, derived by
// summing the remaining per-step durations along the critical path from now.
// A fully complete (or empty) graph has no estimate.
func EstimatedCompletion(g *Graph, now time.Time) *time.Time {
	days := 0
	for _, id := range CriticalPath(g) {
		s := g.steps[id]
		if s.Status != StatusComplete {
			days += s.EstimatedDays
		}
	}
	if days == 0 {
		return nil
	}
	est := now.AddDate(0, 0, days)
	return &est
}

// ComputeProgress aggregates completion across the graph. It never fails:
// an empty graph reports 0% and not-started rather than dividing by zero.
func ComputeProgress(g *Graph, now time.Time) Progress {
	p := Progress{
		TotalSteps: g.Len(),
		Status:     StatusNotStarted,
	}
	if p.TotalSteps == 0 {
		return p
	}

	started := false
	for _, s := range g.Steps() {
		switch s.Status {
		case StatusComplete:
			p.CompletedSteps++
			started = true
		case StatusInProgress:
			started = true
		}
	}

	p.Percentage = int(math.Round(100 * float64(p.CompletedSteps) / float64(p.TotalSteps)))
	switch {
	case p.CompletedSteps == p.TotalSteps:
		p.Status = StatusComplete
	case started:
		p.Status = StatusInProgress
	}
	if p.Status != StatusComplete {
		p.EstimatedCompletionDate = EstimatedCompletion(g, now)
	}
	return p
}

// OverdueSteps returns the ids of steps whose due date has passed without
// completion, in creation order.
func OverdueSteps(g *Graph, now time.Time) []string {
	var out []string
	for _, s := range g.Steps() {
		if s.IsOverdue(now) {
			out = append(out, s.ID)
		}
	}
	return out
}

// topoOrder returns the steps in topological order, visiting ready steps in
// creation order for determinism. Callers rely on New having rejected cycles.
func topoOrder(g *Graph) []*Step {
	indegree := make(map[string]int, g.Len())
	for _, s := range g.steps {
		indegree[s.ID] = len(s.Dependencies)
	}
	dependents := g.dependentIndex()

	ready := make([]*Step, 0, g.Len())
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, g.steps[id])
		}
	}

	out := make([]*Step, 0, g.Len())
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Seq < ready[j].Seq })
		s := ready[0]
		ready = ready[1:]
		out = append(out, s)
		for _, depID := range dependents[s.ID] {
			indegree[depID]--
			if indegree[depID] == 0 {
				ready = append(ready, g.steps[depID])
			}
		}
	}
	return out
}
