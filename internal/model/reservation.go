package model

import (
	"crypto/rand"
	"math/big"
)

// CodeSize is the fixed width of a booking code on the wire and on disk.
const CodeSize = 10

// maxCodeAttempts bounds the collision search.  With 9e9 candidates and at
// most 10 000 seats the loop practically never runs twice.
const maxCodeAttempts = 1000

var (
	codeFloor = big.NewInt(1_000_000_000)
	codeSpan  = big.NewInt(9_000_000_000)
)

// Reservation is a booking code together with the seats it covers.  The
// code is the join key between an account's list and the ledger; Seats is
// recovered by scanning the ledger.
type Reservation struct {
	Code  string `json:"code"`
	Seats []int  `json:"seats"`
}

// CodeSource draws one candidate booking code.
type CodeSource func() (string, error)

// RandomCode draws a uniformly random 10-digit code without a leading zero.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return n.Add(n, codeFloor).String(), nil
}

// ValidCode reports whether code is exactly CodeSize ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeSize {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// NewCode draws candidates from src until one is absent from the ledger.
// Callers hold the booking lock, so no other booking can commit the same
// code between this check and Book.
func (h *Hall) NewCode(src CodeSource) (string, error) {
	if src == nil {
		src = RandomCode
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := src()
		if err != nil {
			return "", err
		}
		if !ValidCode(code) {
			continue
		}
		if !h.HasCode(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Reservations resolves every code of the account to its seats.
func (h *Hall) Reservations(a *Account) []Reservation {
	codes := a.Reservations()
	out := make([]Reservation, 0, len(codes))
	for _, c := range codes {
		out = append(out, Reservation{Code: c, Seats: h.SeatsFor(c)})
	}
	return out
}
