package executor

import "errors"

// Registration errors: fatal misuse of RunPeriodic.
var (
	ErrEmptyOwner    = errors.New("task owner must not be empty")
	ErrNilEffect     = errors.New("task effect must not be nil")
	ErrInvalidPeriod = errors.New("period is not a positive exact multiple of the tick duration")
	ErrInvalidOffset = errors.New("offset must be less than period expressed in ticks")
	ErrDuplicateTask = errors.New("task name already registered for this owner")
)
