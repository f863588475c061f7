package entity

import "time"

// Approval record actions
const (
	ActionApproved = "APPROVED"
	ActionRejected = "REJECTED"
)

// ApprovalRecord is one decision at one level. Records are immutable once
// created and form the append-only audit history of a batch. Level 0 marks a
// post-approval reversal.
type ApprovalRecord struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batch_id"`
	Level     int       `json:"level"`
	Action    string    `json:"action"`
	Approver  string    `json:"approver"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
