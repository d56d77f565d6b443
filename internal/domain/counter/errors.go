package counter

import "errors"

// Sentinel kinds for recorder errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrGoalNotFound    = errors.New("goal not found")
	ErrInvalidDelta    = errors.New("delta must be non-zero")
	ErrInvalidSegment  = errors.New("unknown prayer segment")
)
