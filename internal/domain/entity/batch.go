package entity

import (
	"time"

	"github.com/finclose/close-engine/internal/domain/approval"
)

// Batch represents one monthly reporting cycle subject to approval and
// workflow tracking. DataSummary is owned by the external data-confirmation
// collaborator and stored verbatim.
type Batch struct {
	ID             string          `json:"batch_id"`
	BatchDate      time.Time       `json:"batch_date"`
	ApprovalStatus approval.Status `json:"approval_status"`
	Reopened       bool            `json:"reopened"`
	Revision       int64           `json:"revision"`
	DataSummary    string          `json:"data_summary,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
