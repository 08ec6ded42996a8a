package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-seat-server/internal/model"
)

// AccountRecord is the persisted form of one account.
type AccountRecord struct {
	Nickname string
	Email    string
	Password string
	Codes    []string
}

// Snapshot is a point-in-time copy of all shared state.
type Snapshot struct {
	Rows     int
	Cols     int
	Seats    []model.SeatState
	Codes    []string
	Accounts []AccountRecord
}

// Store reads and writes snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// Capture copies the hall and the directory into a snapshot.
func Capture(h *model.Hall, d *model.Directory) Snapshot {
	seats, codes := h.Snapshot()
	accts := d.Accounts()
	recs := make([]AccountRecord, 0, len(accts))
	for _, a := range accts {
		recs = append(recs, AccountRecord{
			Nickname: a.Nickname,
			Email:    a.Email,
			Password: a.Password,
			Codes:    a.Reservations(),
		})
	}
	return Snapshot{Rows: h.Rows(), Cols: h.Cols(), Seats: seats, Codes: codes, Accounts: recs}
}

// Build turns a snapshot back into live structures.
func (s Snapshot) Build() (*model.Hall, *model.Directory, error) {
	h, err := model.RestoreHall(s.Rows, s.Cols, s.Seats, s.Codes)
	if err != nil {
		return nil, nil, err
	}
	d := model.NewDirectory()
	for _, r := range s.Accounts {
		if err := d.Insert(model.NewAccount(r.Email, r.Nickname, r.Password, r.Codes...)); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
	}
	return h, d, nil
}

// Fresh returns the snapshot of an empty rows × cols grid with no accounts.
func Fresh(rows, cols int) Snapshot {
	n := rows * cols
	s := Snapshot{Rows: rows, Cols: cols, Seats: make([]model.SeatState, n), Codes: make([]string, n)}
	for i := range s.Seats {
		s.Seats[i] = model.SeatFree
	}
	return s
}

// Mirrored saves to a primary store and then to every mirror.  Loads come
// from the primary only.  A failing mirror is reported through onMirrorErr
// and never fails the save.
type Mirrored struct {
	Primary     Store
	Mirrors     []Store
	OnMirrorErr func(error)
}

func (m Mirrored) Load(ctx context.Context) (Snapshot, error) { return m.Primary.Load(ctx) }

func (m Mirrored) Save(ctx context.Context, s Snapshot) error {
	if err := m.Primary.Save(ctx, s); err != nil {
		return err
	}
	for _, mirror := range m.Mirrors {
		if err := mirror.Save(ctx, s); err != nil && m.OnMirrorErr != nil {
			m.OnMirrorErr(err)
		}
	}
	return nil
}
