package event

// Type identifies the type of domain event
type Type string

const (
	TypeBatchCreated   Type = "batch.created"
	TypeBatchApproved  Type = "batch.approved"
	TypeBatchRejected  Type = "batch.rejected"
	TypeBatchReopened  Type = "batch.reopened"
	TypeStepCompleted  Type = "workflow.step_completed"
	TypeCommentAdded   Type = "batch.comment_added"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeBatchCreated,
		TypeBatchApproved,
		TypeBatchRejected,
		TypeBatchReopened,
		TypeStepCompleted,
		TypeCommentAdded:
		return true
	default:
		return false
	}
}
