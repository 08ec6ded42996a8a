package model

// SeatState is the on-wire and on-disk byte describing one seat.
type SeatState byte

const (
	SeatFree   SeatState = '0'
	SeatBooked SeatState = '1'
)

// Valid reports whether s is one of the two known states.
func (s SeatState) Valid() bool { return s == SeatFree || s == SeatBooked }

// SeatIndex converts a zero-based (row, col) pair into the 1-based linear
// index used by the protocol and the ledger.
func SeatIndex(row, col, cols int) int { return row*cols + col + 1 }

// SeatPosition is the inverse of SeatIndex.
func SeatPosition(index, cols int) (row, col int) {
	return (index - 1) / cols, (index - 1) % cols
}
