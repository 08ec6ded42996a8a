// Package repository persists the three durable records of the seat server:
// the seat grid, the booking ledger and the account directory.  FileStore
// writes the plain-text formats the server has always used; SQLStore keeps
// an optional MySQL copy of the same snapshot.
package repository

import "errors"

// ErrNoState is returned by Load when there is no previous state to resume
// from.  The caller creates a fresh grid.
var ErrNoState = errors.New("no persisted state")

// ErrCorruptRecord is returned when a persisted record cannot be parsed.
// The wrapped message names the file and the offending line or field.
var ErrCorruptRecord = errors.New("corrupt record")
