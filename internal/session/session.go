// Package session runs the seat protocol for one client connection.
//
// A session moves through the states below.  Every exit path, including a
// peer close, a deadline and a server shutdown, leaves through Serve's
// deferred cleanup, which releases exactly the locks the session still
// holds and closes the connection.
//
//	AwaitingAccessChoice → AwaitingCredentials → AwaitingOperationChoice
//	AwaitingOperationChoice → Booking | Cancelling → AwaitingOperationChoice
//	any → Closed
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-seat-server/internal/lock"
	"github.com/iliyamo/cinema-seat-server/internal/model"
	"github.com/iliyamo/cinema-seat-server/internal/protocol"
	"github.com/iliyamo/cinema-seat-server/internal/service"
)

// State is the position of a session in the protocol.
type State int

const (
	AwaitingAccessChoice State = iota
	AwaitingCredentials
	AwaitingOperationChoice
	Booking
	Cancelling
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingAccessChoice:
		return "awaiting-access-choice"
	case AwaitingCredentials:
		return "awaiting-credentials"
	case AwaitingOperationChoice:
		return "awaiting-operation-choice"
	case Booking:
		return "booking"
	case Cancelling:
		return "cancelling"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrNoSeats ends a session that asked to book while the grid was full.
	ErrNoSeats = errors.New("no free seats")
	// ErrProtocol reports input that cannot be answered within the protocol.
	ErrProtocol = errors.New("protocol violation")
)

// Options configure a session.
type Options struct {
	RecvTimeout time.Duration
	SendTimeout time.Duration
	Log         *log.Logger
}

// Info is a point-in-time view of a session for the admin API.
type Info struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	State     string    `json:"state"`
	Email     string    `json:"email,omitempty"`
	Locks     []string  `json:"locks"`
	StartedAt time.Time `json:"started_at"`
}

// Session is the per-connection context.
type Session struct {
	ID string

	conn     *protocol.Conn
	svc      *service.Booking
	holdings *lock.Holdings
	log      *log.Logger
	started  time.Time

	mu      sync.Mutex
	state   State
	account *model.Account
}

// New wraps c in a session bound to svc.
func New(c net.Conn, svc *service.Booking, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Log
	if logger == nil {
		logger = log.New("session")
	}
	return &Session{
		ID:       id,
		conn:     protocol.NewConn(c, opts.RecvTimeout, opts.SendTimeout),
		svc:      svc,
		holdings: &lock.Holdings{Owner: id},
		log:      logger,
		started:  time.Now().UTC(),
		state:    AwaitingAccessChoice,
	}
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Account returns the authenticated account or nil.
func (s *Session) Account() *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	in := Info{ID: s.ID, Remote: s.conn.RemoteAddr().String(), State: s.state.String(), StartedAt: s.started}
	if s.account != nil {
		in.Email = s.account.Email
	}
	s.mu.Unlock()
	in.Locks = []string{}
	for _, k := range s.holdings.Held() {
		in.Locks = append(in.Locks, k.String())
	}
	return in
}

// Serve runs the protocol until the client leaves, an unrecoverable error
// occurs or ctx is cancelled.  A clean end, including a peer close and a
// full grid, returns nil.
func (s *Session) Serve(ctx context.Context) (err error) {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer func() {
		if held := s.holdings.ReleaseAll(); len(held) > 0 {
			s.log.Infof("session %s released %v on exit", s.ID, held)
		}
		_ = s.conn.Close()
		s.setState(Closed)
	}()

	err = s.run(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		s.log.Infof("session %s interrupted by shutdown", s.ID)
		err = nil
	case errors.Is(err, protocol.ErrPeerClosed):
		s.log.Debugf("session %s: peer closed", s.ID)
		err = nil
	case errors.Is(err, ErrNoSeats):
		s.log.Infof("session %s: grid is full, closing", s.ID)
		err = nil
	}
	return err
}

func (s *Session) run(ctx context.Context) error {
	ok, err := s.access()
	if err != nil || !ok {
		return err
	}
	for {
		s.setState(AwaitingOperationChoice)
		choice, err := s.conn.ReadByte()
		if err != nil {
			return err
		}
		switch choice {
		case protocol.Book:
			s.setState(Booking)
			err = s.book(ctx)
		case protocol.Cancel:
			s.setState(Cancelling)
			err = s.cancel()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// access handles the access choice and the credential exchange.  It
// reports false when the client chose to leave.
func (s *Session) access() (bool, error) {
	s.setState(AwaitingAccessChoice)
	choice, err := s.conn.ReadByte()
	if err != nil {
		return false, err
	}
	if choice != protocol.SignIn && choice != protocol.SignUp {
		return false, nil
	}
	s.setState(AwaitingCredentials)
	for {
		a, err := s.credentials(choice == protocol.SignUp)
		if err != nil {
			return false, err
		}
		if a == nil {
			if err := s.conn.WriteByte(protocol.Retry); err != nil {
				return false, err
			}
			continue
		}
		if err := s.conn.WriteByte(protocol.OK); err != nil {
			return false, err
		}
		if choice == protocol.SignIn {
			if err := s.conn.WriteText(a.Nickname); err != nil {
				return false, err
			}
		}
		s.mu.Lock()
		s.account = a
		s.mu.Unlock()
		return true, nil
	}
}

// credentials reads one credential round.  A rejected attempt returns a nil
// account and a nil error.
func (s *Session) credentials(signUp bool) (*model.Account, error) {
	email, emailErr := s.conn.ReadText()
	if emailErr != nil && !errors.Is(emailErr, protocol.ErrFieldTooLong) {
		return nil, emailErr
	}
	var nickname string
	var nickErr error
	if signUp {
		nickname, nickErr = s.conn.ReadText()
		if nickErr != nil && !errors.Is(nickErr, protocol.ErrFieldTooLong) {
			return nil, nickErr
		}
	}
	password, pwErr := s.conn.ReadText()
	if pwErr != nil && !errors.Is(pwErr, protocol.ErrFieldTooLong) {
		return nil, pwErr
	}
	if emailErr != nil || nickErr != nil || pwErr != nil {
		s.log.Debugf("session %s: oversized credential", s.ID)
		return nil, nil
	}

	if signUp {
		a, err := s.svc.SignUp(s.holdings, email, nickname, password)
		if err != nil {
			s.log.Debugf("session %s: sign-up rejected: %v", s.ID, err)
			return nil, nil
		}
		s.log.Infof("session %s: signed up %s", s.ID, email)
		return a, nil
	}
	a, err := s.svc.SignIn(email, password)
	if err != nil {
		s.log.Debugf("session %s: sign-in rejected for %q", s.ID, email)
		return nil, nil
	}
	s.log.Infof("session %s: signed in %s", s.ID, email)
	return a, nil
}
