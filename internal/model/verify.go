package model

import "fmt"

// Verify checks the cross-structure invariants at a quiescent point:
//   - a seat is booked iff the ledger holds a code for it;
//   - every ledger code belongs to exactly one account;
//   - every account code covers at least one seat.
func Verify(h *Hall, d *Directory) error {
	seats, codes := h.Snapshot()
	inLedger := map[string]bool{}
	for i := range seats {
		booked := seats[i] == SeatBooked
		if booked != (codes[i] != "") {
			return fmt.Errorf("%w: seat %d state %q with code %q", ErrInconsistentState, i+1, byte(seats[i]), codes[i])
		}
		if codes[i] != "" {
			inLedger[codes[i]] = true
		}
	}
	owners := map[string]int{}
	for _, a := range d.Accounts() {
		for _, c := range a.Reservations() {
			owners[c]++
			if !inLedger[c] {
				return fmt.Errorf("%w: code %s of %s covers no seat", ErrInconsistentState, c, a.Email)
			}
		}
	}
	for c := range inLedger {
		if owners[c] != 1 {
			return fmt.Errorf("%w: code %s owned by %d accounts", ErrInconsistentState, c, owners[c])
		}
	}
	return nil
}
