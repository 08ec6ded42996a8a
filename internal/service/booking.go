// Package service holds the seat operations shared by the TCP sessions and
// the admin API: account sign-up and sign-in, booking commit and
// cancellation.  Callers own the protocol exchange; this package owns the
// locking order and the state changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-seat-server/internal/config"
	"github.com/iliyamo/cinema-seat-server/internal/lock"
	"github.com/iliyamo/cinema-seat-server/internal/model"
	q "github.com/iliyamo/cinema-seat-server/internal/queue"
	"github.com/iliyamo/cinema-seat-server/internal/utils"
)

var (
	// ErrInvalidCredential rejects an empty credential or one that cannot be
	// persisted.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrBadCredentials rejects a sign-in with an unknown email or a wrong
	// password.  The two cases are not distinguished.
	ErrBadCredentials = errors.New("email or password does not match")
	// ErrBookingLockNotHeld guards Commit against callers that skipped the
	// booking lock.
	ErrBookingLockNotHeld = errors.New("booking lock not held")
)

// publishTimeout bounds one asynchronous event publication.
const publishTimeout = 5 * time.Second

// Options tune a Booking service.  The zero value stores passwords
// verbatim, draws random codes and publishes nothing.
type Options struct {
	PasswordHashing string
	BcryptCost      int
	Codes           model.CodeSource
	Events          Publisher
	Log             *log.Logger
}

// Booking performs the state-changing operations on one hall and one
// account directory.
type Booking struct {
	hall     *model.Hall
	accounts *model.Directory
	locks    *lock.Manager
	opts     Options
}

// NewBooking wires a service to shared state.
func NewBooking(h *model.Hall, d *model.Directory, locks *lock.Manager, opts Options) *Booking {
	if opts.Events == nil {
		opts.Events = NoopPublisher{}
	}
	if opts.Log == nil {
		opts.Log = log.New("service")
	}
	return &Booking{hall: h, accounts: d, locks: locks, opts: opts}
}

func (s *Booking) Hall() *model.Hall          { return s.hall }
func (s *Booking) Accounts() *model.Directory { return s.accounts }
func (s *Booking) Locks() *lock.Manager       { return s.locks }

// ValidateCredential accepts any non-empty value that does not contain the
// record delimiter of the account file.
func ValidateCredential(v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCredential)
	}
	if strings.ContainsAny(v, ";\n") {
		return fmt.Errorf("%w: contains a reserved character", ErrInvalidCredential)
	}
	return nil
}

// SignUp registers a new account.  The uniqueness check and the insert run
// under the signup lock.
func (s *Booking) SignUp(h *lock.Holdings, email, nickname, password string) (*model.Account, error) {
	for _, v := range []string{email, nickname, password} {
		if err := ValidateCredential(v); err != nil {
			return nil, err
		}
	}
	stored := password
	if s.opts.PasswordHashing == config.PasswordBcrypt {
		hashed, err := utils.HashPassword(password, s.opts.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		stored = hashed
	}

	release, err := s.locks.AcquireSignup(h)
	if err != nil {
		return nil, err
	}
	defer release()
	if s.accounts.Exists(email) {
		return nil, fmt.Errorf("%w: %s", model.ErrEmailExists, email)
	}
	a := model.NewAccount(email, nickname, stored)
	if err := s.accounts.Insert(a); err != nil {
		return nil, err
	}
	return a, nil
}

// SignIn returns the account matching email and password.  The admin
// sentinel can never sign in.
func (s *Booking) SignIn(email, password string) (*model.Account, error) {
	if ValidateCredential(email) != nil || ValidateCredential(password) != nil {
		return nil, ErrBadCredentials
	}
	a, err := s.accounts.Lookup(email)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if !utils.CheckPassword(a.Password, password, s.opts.PasswordHashing == config.PasswordBcrypt) {
		return nil, ErrBadCredentials
	}
	return a, nil
}

// Check classifies a seat request without changing anything: range and
// duplicate violations first, then availability.
func (s *Booking) Check(indices []int) error {
	if err := s.hall.CheckIndices(indices); err != nil {
		return err
	}
	if !s.hall.Available(indices) {
		return model.ErrSeatTaken
	}
	return nil
}

// Commit books indices for a under a fresh code and returns the code.  The
// caller must hold the booking lock.  The ledger write and the append to
// the account's reservations happen together under the account's deletion
// lock, so a concurrent cancellation never sees one without the other.
func (s *Booking) Commit(h *lock.Holdings, a *model.Account, indices []int) (string, error) {
	if !h.Holds(lock.Booking) {
		return "", ErrBookingLockNotHeld
	}
	code, err := s.hall.NewCode(s.opts.Codes)
	if err != nil {
		return "", err
	}
	release, err := lock.AcquireDeletion(h, a.DeletionLock())
	if err != nil {
		return "", err
	}
	if err := s.hall.Book(indices, code); err != nil {
		release()
		return "", err
	}
	a.AddReservation(code)
	release()

	s.opts.Log.Infof("booked seats %v for %s under %s", indices, a.Email, code)
	s.publish(func(ctx context.Context) error {
		return s.opts.Events.BookingConfirmed(ctx, q.BookingConfirmedEvent{
			Code:        code,
			Email:       a.Email,
			Nickname:    a.Nickname,
			Seats:       append([]int(nil), indices...),
			Rows:        s.hall.Rows(),
			Cols:        s.hall.Cols(),
			SessionID:   h.Owner,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		})
	})
	return code, nil
}

// Cancel removes code from a's reservations and frees its seats.  It
// reports whether the code belonged to a; an unknown code changes nothing.
func (s *Booking) Cancel(h *lock.Holdings, a *model.Account, code string) (bool, error) {
	release, err := lock.AcquireDeletion(h, a.DeletionLock())
	if err != nil {
		return false, err
	}
	if !a.RemoveReservation(code) {
		release()
		return false, nil
	}
	freed := s.hall.ReleaseCode(code)
	release()

	s.opts.Log.Infof("cancelled %s for %s, freed seats %v", code, a.Email, freed)
	s.publish(func(ctx context.Context) error {
		return s.opts.Events.BookingCancelled(ctx, q.BookingCancelledEvent{
			Code:        code,
			Email:       a.Email,
			Seats:       freed,
			SessionID:   h.Owner,
			CancelledAt: time.Now().UTC().Format(time.RFC3339),
		})
	})
	return true, nil
}

// Reservations returns the reservations of the account registered under
// email, with their seats.
func (s *Booking) Reservations(email string) ([]model.Reservation, error) {
	a, err := s.accounts.Lookup(email)
	if err != nil {
		return nil, err
	}
	return s.hall.Reservations(a), nil
}

func (s *Booking) publish(send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.opts.Log.Warnf("publish event: %v", err)
		}
	}()
}

// Quiesce runs fn while no booking or cancellation is in flight: it holds
// the booking lock and every account's deletion lock, taken in directory
// order after the booking lock.  fn must not block.
func (s *Booking) Quiesce(ctx context.Context, fn func()) error {
	h := &lock.Holdings{Owner: "quiesce"}
	release, err := s.locks.AcquireBooking(ctx, h, nil)
	if err != nil {
		return err
	}
	defer release()
	accts := s.accounts.Accounts()
	for _, a := range accts {
		a.DeletionLock().Lock()
	}
	defer func() {
		for i := len(accts) - 1; i >= 0; i-- {
			accts[i].DeletionLock().Unlock()
		}
	}()
	fn()
	return nil
}
