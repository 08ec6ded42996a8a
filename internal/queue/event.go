// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Each event type has its own durable queue; the routing key
// equals the queue name on the default exchange.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published once a booking code has been written
// to the ledger and appended to the account's reservations.  Seats are the
// 1-based linear indices; Rows and Cols let consumers render positions
// without asking the server.
type BookingConfirmedEvent struct {
	Code        string `json:"code"`
	Email       string `json:"email"`
	Nickname    string `json:"nickname"`
	Seats       []int  `json:"seats"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	SessionID   string `json:"session_id"`
	ConfirmedAt string `json:"confirmed_at"`
}

// BookingCancelledEvent is published after a cancellation freed its seats.
type BookingCancelledEvent struct {
	Code        string `json:"code"`
	Email       string `json:"email"`
	Seats       []int  `json:"seats"`
	SessionID   string `json:"session_id"`
	CancelledAt string `json:"cancelled_at"`
}
