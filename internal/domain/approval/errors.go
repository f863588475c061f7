package approval

import "errors"

var (
	// ErrPrerequisiteNotMet is returned when the prior approval level has not signed off
	ErrPrerequisiteNotMet = errors.New("prerequisite approval not met")

	// ErrAlreadyApproved is returned when re-approving a level that already signed off
	ErrAlreadyApproved = errors.New("level already approved")

	// ErrInvalidLevel is returned when a level outside 1-3 is requested
	ErrInvalidLevel = errors.New("invalid approval level")

	// ErrValidation is returned when a rejection reason or comment fails validation
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned when a batch carries a status outside the enumeration
	ErrInvalidStatus = errors.New("invalid approval status")
)
