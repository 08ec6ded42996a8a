package model

import "errors"

// Seat request rejections.  These are reported to the peer as retryable
// outcomes and never end a session.
var (
	ErrSeatOutOfRange = errors.New("seat index out of range")
	ErrDuplicateSeat  = errors.New("seat requested twice")
	ErrSeatTaken      = errors.New("seat not available")
)

// Directory and ledger errors.
var (
	ErrInvalidDimensions  = errors.New("invalid grid dimensions")
	ErrInvalidCode        = errors.New("invalid booking code")
	ErrCodeSpaceExhausted = errors.New("no free booking code found")
	ErrEmailExists        = errors.New("email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInconsistentState  = errors.New("inconsistent state")
)
