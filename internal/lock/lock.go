// Package lock implements the three critical sections guarding shared seat
// state: the global booking lock, the global signup lock and one deletion
// lock per account.
//
// Every acquisition is recorded in the caller's Holdings and returns an
// idempotent Release.  Sessions defer Holdings.ReleaseAll so that a
// disconnect, a timeout or a shutdown drops exactly the locks that session
// owns, once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Kind names one of the three critical sections.
type Kind int

const (
	Booking Kind = iota
	Signup
	Deletion
)

func (k Kind) String() string {
	switch k {
	case Booking:
		return "booking"
	case Signup:
		return "signup"
	case Deletion:
		return "deletion"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrAlreadyHeld is returned when a session tries to take a lock it holds.
var ErrAlreadyHeld = errors.New("lock already held by this session")

// Release gives a lock back.  Calling it more than once is a no-op.
type Release func()

// Manager owns the two global locks.  Deletion locks live on the accounts.
type Manager struct {
	booking sync.Mutex
	signup  sync.Mutex
	poll    time.Duration

	mu     sync.Mutex
	holder string
}

// NewManager returns a manager whose booking lock is polled every poll.
func NewManager(poll time.Duration) *Manager {
	if poll <= 0 {
		poll = time.Second
	}
	return &Manager{poll: poll}
}

// AcquireBooking takes the booking lock with a zero-wait try.  While another
// session holds it, busy is called once per poll interval so the caller can
// keep its peer informed, and the try is repeated.  Waiting stops when ctx
// is done or busy fails.
func (m *Manager) AcquireBooking(ctx context.Context, h *Holdings, busy func() error) (Release, error) {
	if h.Holds(Booking) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyHeld, Booking)
	}
	for !m.booking.TryLock() {
		if busy != nil {
			if err := busy(); err != nil {
				return nil, err
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.poll):
		}
	}
	m.setHolder(h.Owner)
	return h.track(Booking, func() {
		m.setHolder("")
		m.booking.Unlock()
	}), nil
}

// AcquireSignup blocks until the signup lock is free.  The section it
// guards does no I/O, so waiting is short.
func (m *Manager) AcquireSignup(h *Holdings) (Release, error) {
	if h.Holds(Signup) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyHeld, Signup)
	}
	m.signup.Lock()
	return h.track(Signup, m.signup.Unlock), nil
}

// AcquireDeletion blocks on one account's deletion lock.
func AcquireDeletion(h *Holdings, l sync.Locker) (Release, error) {
	if h.Holds(Deletion) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyHeld, Deletion)
	}
	l.Lock()
	return h.track(Deletion, l.Unlock), nil
}

// BookingHolder returns the owner of the booking lock, or "" when free.
func (m *Manager) BookingHolder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}

func (m *Manager) setHolder(owner string) {
	m.mu.Lock()
	m.holder = owner
	m.mu.Unlock()
}
