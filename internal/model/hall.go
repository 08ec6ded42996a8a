package model

import (
	"fmt"
	"sync"
)

// Hall is the seat grid together with the booking ledger.  The two are kept
// in one structure because every booking and every cancellation writes both,
// and a snapshot must never observe one without the other.
//
// The internal mutex only makes individual calls atomic.  Multi-step
// sequences (browse, select, confirm) are serialized by the booking lock in
// package lock, not here.
//
// Fields:
//  rows, cols – grid dimensions, fixed for the lifetime of the process.
//  seats      – seat state by linear index minus one.
//  codes      – booking code by linear index minus one; "" when free.
type Hall struct {
	mu    sync.RWMutex
	rows  int
	cols  int
	seats []SeatState
	codes []string
}

// NewHall returns an empty grid of rows × cols free seats.
func NewHall(rows, cols int) (*Hall, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	h := &Hall{
		rows:  rows,
		cols:  cols,
		seats: make([]SeatState, rows*cols),
		codes: make([]string, rows*cols),
	}
	for i := range h.seats {
		h.seats[i] = SeatFree
	}
	return h, nil
}

// RestoreHall rebuilds a hall from persisted seat states and ledger codes.
// Both slices must hold exactly rows*cols entries.
func RestoreHall(rows, cols int, seats []SeatState, codes []string) (*Hall, error) {
	h, err := NewHall(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(h.seats) || len(codes) != len(h.codes) {
		return nil, fmt.Errorf("%w: %d seats and %d codes for a %dx%d grid", ErrInvalidDimensions, len(seats), len(codes), rows, cols)
	}
	for i, s := range seats {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: seat %d has state %q", ErrInconsistentState, i+1, byte(s))
		}
		if codes[i] != "" && !ValidCode(codes[i]) {
			return nil, fmt.Errorf("%w: seat %d: %q", ErrInvalidCode, i+1, codes[i])
		}
	}
	copy(h.seats, seats)
	copy(h.codes, codes)
	return h, nil
}

func (h *Hall) Rows() int { return h.rows }
func (h *Hall) Cols() int { return h.cols }
func (h *Hall) Size() int { return h.rows * h.cols }

// Layout returns one availability bitmap per row, as streamed to clients.
func (h *Hall) Layout() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([][]byte, h.rows)
	for r := 0; r < h.rows; r++ {
		row := make([]byte, h.cols)
		for c := 0; c < h.cols; c++ {
			row[c] = byte(h.seats[r*h.cols+c])
		}
		out[r] = row
	}
	return out
}

// Seat returns the state of the seat at the 1-based index.
func (h *Hall) Seat(index int) (SeatState, error) {
	if index < 1 || index > h.Size() {
		return 0, fmt.Errorf("%w: %d", ErrSeatOutOfRange, index)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seats[index-1], nil
}

// FreeCount returns the number of free seats.
func (h *Hall) FreeCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.seats {
		if s == SeatFree {
			n++
		}
	}
	return n
}

// Full reports whether no seat is free.
func (h *Hall) Full() bool { return h.FreeCount() == 0 }

// CheckIndices validates a seat request without looking at availability:
// every index must lie in [1, rows*cols] and appear only once.
func (h *Hall) CheckIndices(indices []int) error {
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > h.Size() {
			return fmt.Errorf("%w: %d", ErrSeatOutOfRange, idx)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateSeat, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// Available reports whether every requested seat is free.  The indices must
// already have passed CheckIndices.
func (h *Hall) Available(indices []int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked(indices)
}

func (h *Hall) availableLocked(indices []int) bool {
	for _, idx := range indices {
		if h.seats[idx-1] != SeatFree {
			return false
		}
	}
	return true
}

// Book marks every requested seat booked under code.  It is all-or-nothing:
// on any rejection nothing changes.
func (h *Hall) Book(indices []int, code string) error {
	if !ValidCode(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	if err := h.CheckIndices(indices); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.availableLocked(indices) {
		return ErrSeatTaken
	}
	for _, idx := range indices {
		h.seats[idx-1] = SeatBooked
		h.codes[idx-1] = code
	}
	return nil
}

// HasCode reports whether any ledger entry holds code.
func (h *Hall) HasCode(code string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.codes {
		if c == code {
			return true
		}
	}
	return false
}

// SeatsFor returns the 1-based indices booked under code, in index order.
func (h *Hall) SeatsFor(code string) []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []int
	for i, c := range h.codes {
		if c != "" && c == code {
			out = append(out, i+1)
		}
	}
	return out
}

// ReleaseCode clears every ledger entry holding code and frees the matching
// seats.  It returns the indices that were freed.
func (h *Hall) ReleaseCode(code string) []int {
	if code == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var freed []int
	for i, c := range h.codes {
		if c == code {
			h.codes[i] = ""
			h.seats[i] = SeatFree
			freed = append(freed, i+1)
		}
	}
	return freed
}

// Snapshot copies seat states and ledger codes under one read lock.
func (h *Hall) Snapshot() (seats []SeatState, codes []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seats = append([]SeatState(nil), h.seats...)
	codes = append([]string(nil), h.codes...)
	return seats, codes
}
