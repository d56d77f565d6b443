package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateOffline = errors.New("offline id already logged")
	ErrUnknownSegment   = errors.New("unknown bucket segment")
)
