package approval

// Status represents the approval state of a report batch
type Status string

const (
	StatusReadyForL1    Status = "READY_FOR_L1"
	StatusL1Approved    Status = "L1_APPROVED"
	StatusL2Approved    Status = "L2_APPROVED"
	StatusApprovedFinal Status = "APPROVED_FINAL"
	StatusL1Rejected    Status = "L1_REJECTED"
	StatusL2Rejected    Status = "L2_REJECTED"
	StatusL3Rejected    Status = "L3_REJECTED"
)

var validStatuses = map[Status]bool{
	StatusReadyForL1:    true,
	StatusL1Approved:    true,
	StatusL2Approved:    true,
	StatusApprovedFinal: true,
	StatusL1Rejected:    true,
	StatusL2Rejected:    true,
	StatusL3Rejected:    true,
}

var rejectedStatuses = map[Status]bool{
	StatusL1Rejected: true,
	StatusL2Rejected: true,
	StatusL3Rejected: true,
}

// chainRank is the position of a status on the forward approval chain.
// Rejected statuses sit off the chain and rank zero: after a rejection
// the whole chain must be re-approved from level 1.
var chainRank = map[Status]int{
	StatusReadyForL1:    0,
	StatusL1Approved:    1,
	StatusL2Approved:    2,
	StatusApprovedFinal: 3,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the enumerated approval states
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsRejected returns true if the status is a rejection state at any level
func (s Status) IsRejected() bool {
	return rejectedStatuses[s]
}

// IsFinal returns true if the batch has passed all three approval levels
func (s Status) IsFinal() bool {
	return s == StatusApprovedFinal
}

// Rank returns the number of approval levels the status has passed.
// Rejected statuses rank zero.
func (s Status) Rank() int {
	return chainRank[s]
}
