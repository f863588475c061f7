package approval

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Approval levels. LevelPostFinal is a synthetic marker used on audit records
// for a post-approval reversal; it is never a valid input to Approve or Reject.
const (
	LevelPostFinal = 0
	LevelOne       = 1
	LevelTwo       = 2
	LevelThree     = 3
)

// Rejection reason minimum lengths. Levels 1 and 2 only require a non-empty
// reason; reopening a fully approved batch carries the highest bar.
const (
	MinReasonLenL3        = 20
	MinReasonLenPostFinal = 30
)

// transition describes one row of the approval transition table: the unique
// predecessor status a level requires, and the statuses it moves to.
type transition struct {
	from     Status
	approved Status
	rejected Status
}

var transitions = map[int]transition{
	LevelOne:   {from: StatusReadyForL1, approved: StatusL1Approved, rejected: StatusL1Rejected},
	LevelTwo:   {from: StatusL1Approved, approved: StatusL2Approved, rejected: StatusL2Rejected},
	LevelThree: {from: StatusL2Approved, approved: StatusApprovedFinal, rejected: StatusL3Rejected},
}

// RequiredPredecessor returns the status a batch must be in before the given
// level may act on it.
func RequiredPredecessor(level int) (Status, error) {
	t, ok := transitions[level]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return t.from, nil
}

// CanAct reports whether the given level's approver may currently approve or
// reject the batch. Level 1 may also act on a rejected batch: a rejection at
// any level sends the chain back through level 1.
func CanAct(current Status, level int) bool {
	t, ok := transitions[level]
	if !ok {
		return false
	}
	if current == t.from {
		return true
	}
	return level == LevelOne && current.IsRejected()
}

// NextOnApprove validates an approval at the given level and returns the
// status the batch transitions to. The current status must be the level's
// unique predecessor; re-approving a level that already signed off fails with
// ErrAlreadyApproved, anything else with ErrPrerequisiteNotMet.
func NextOnApprove(current Status, level int) (Status, error) {
	t, ok := transitions[level]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if !current.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}
	if CanAct(current, level) {
		return t.approved, nil
	}
	if current.Rank() >= level {
		return "", fmt.Errorf("%w: level %d already approved (status %s)", ErrAlreadyApproved, level, current)
	}
	return "", fmt.Errorf("%w: level %d approval required first", ErrPrerequisiteNotMet, level-1)
}

// NextOnReject validates a rejection at the given level and returns the
// rejection status. The reason is validated before the prerequisite so a
// caller-correctable input error never masquerades as an ordering error.
func NextOnReject(current Status, level int, reason string) (Status, error) {
	t, ok := transitions[level]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if !current.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}
	if err := ValidateReason(level, reason); err != nil {
		return "", err
	}
	if !CanAct(current, level) {
		if current.Rank() >= level {
			return "", fmt.Errorf("%w: level %d already approved (status %s)", ErrAlreadyApproved, level, current)
		}
		return "", fmt.Errorf("%w: level %d approval required first", ErrPrerequisiteNotMet, level-1)
	}
	return t.rejected, nil
}

// NextOnRejectFinal validates a post-final rejection and returns the reopened
// status. Only a fully approved batch can be reopened, and the reason must
// meet the post-final minimum length.
func NextOnRejectFinal(current Status, reason string) (Status, error) {
	if !current.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}
	if err := ValidateReason(LevelPostFinal, reason); err != nil {
		return "", err
	}
	if current != StatusApprovedFinal {
		return "", fmt.Errorf("%w: batch is not fully approved (status %s)", ErrPrerequisiteNotMet, current)
	}
	return StatusReadyForL1, nil
}

// ValidateReason checks a rejection reason against the level's minimum-length
// rule. LevelPostFinal applies the post-approval reversal rule. Lengths count
// characters, not bytes, so multi-byte scripts are measured fairly.
func ValidateReason(level int, reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	switch level {
	case LevelThree:
		if utf8.RuneCountInString(trimmed) < MinReasonLenL3 {
			return fmt.Errorf("%w: level 3 rejection reason must be at least %d characters", ErrValidation, MinReasonLenL3)
		}
	case LevelPostFinal:
		if utf8.RuneCountInString(trimmed) < MinReasonLenPostFinal {
			return fmt.Errorf("%w: post-final rejection reason must be at least %d characters", ErrValidation, MinReasonLenPostFinal)
		}
	}
	return nil
}
