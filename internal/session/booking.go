package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-seat-server/internal/model"
	"github.com/iliyamo/cinema-seat-server/internal/protocol"
)

// book runs one booking exchange.  The booking lock is held from the grid
// stream to the code delivery and released on every return path.
func (s *Session) book(ctx context.Context) error {
	hall := s.svc.Hall()
	if err := s.conn.WriteInt(hall.Rows()); err != nil {
		return err
	}
	if err := s.conn.WriteInt(hall.Cols()); err != nil {
		return err
	}

	release, err := s.svc.Locks().AcquireBooking(ctx, s.holdings, func() error {
		return s.conn.WriteByte(protocol.Busy)
	})
	if err != nil {
		return err
	}
	defer release()
	if err := s.conn.WriteByte(protocol.Ready); err != nil {
		return err
	}

	full := true
	for _, row := range hall.Layout() {
		for _, seat := range row {
			if model.SeatState(seat) == model.SeatFree {
				full = false
			}
		}
		if err := s.conn.Write(row); err != nil {
			return err
		}
	}
	if full {
		return ErrNoSeats
	}

	width := protocol.NumberWidth(hall.Size())
	count, err := s.conn.ReadNumber(width)
	if errors.Is(err, protocol.ErrBadNumber) {
		return fmt.Errorf("%w: seat count: %v", ErrProtocol, err)
	}
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if count > hall.Size() {
		return fmt.Errorf("%w: %d seats requested from %d", ErrProtocol, count, hall.Size())
	}

	indices := make([]int, count)
	for {
		for i := range indices {
			n, err := s.conn.ReadNumber(width)
			if err != nil {
				if errors.Is(err, protocol.ErrBadNumber) {
					// Keep the stream aligned; a bad index is just out of range.
					n = 0
				} else {
					return err
				}
			}
			indices[i] = n
		}

		flag := protocol.FlagOK
		switch err := s.svc.Check(indices); {
		case err == nil:
		case errors.Is(err, model.ErrSeatTaken):
			flag = protocol.FlagConflict
		default:
			flag = protocol.FlagInvalid
		}
		if err := s.conn.WriteFlag(flag); err != nil {
			return err
		}
		if flag == protocol.FlagOK {
			break
		}
		retry, err := s.conn.ReadDecision()
		if err != nil {
			return err
		}
		if !retry {
			return nil
		}
	}

	code, err := s.svc.Commit(s.holdings, s.Account(), indices)
	if err != nil {
		return err
	}
	return s.conn.WriteCode(code)
}

// cancel runs one cancellation exchange.
func (s *Session) cancel() error {
	code, err := s.conn.ReadCode()
	if err != nil {
		return err
	}
	removed, err := s.svc.Cancel(s.holdings, s.Account(), code)
	if err != nil {
		return err
	}
	if removed {
		return s.conn.WriteByte(protocol.Removed)
	}
	return s.conn.WriteByte(protocol.NotFound)
}
