package entity

import "time"

// Comment is a free-text annotation on a batch, independent of approval
// decisions. When StepID is set the comment is scoped to a workflow step.
// Comments are never mutated or deleted.
type Comment struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	StepID    string    `json:"step_id,omitempty"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
