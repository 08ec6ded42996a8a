package handler // handler defines http handlers

import (
	"context"  // context bounds the sync request
	"errors"   // errors.Is for sentinel checks
	"net/http" // HTTP status codes
	"strconv"  // strconv formats seat labels
	"time"     // time bounds the sync request

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/cinema-seat-server/internal/model"   // model holds grid and account types
	"github.com/iliyamo/cinema-seat-server/internal/service" // service exposes shared seat state
	"github.com/iliyamo/cinema-seat-server/internal/session" // session.Info describes live connections
)

// syncTimeout bounds how long POST /v1/sync waits for in-flight bookings.
const syncTimeout = 10 * time.Second

// Registry is the part of the dispatcher the admin API reads and drives.
type Registry interface {
	Sessions() []session.Info
	Sync(ctx context.Context) error
}

// AdminHandler serves read-only views of the seat state plus an explicit
// sync.  All methods assume JWTAuth and RequireRole have run.
type AdminHandler struct {
	Svc      *service.Booking // shared hall, directory and locks
	Registry Registry         // live sessions and persistence
}

// NewAdminHandler constructs an AdminHandler and panics if a dependency is nil.
func NewAdminHandler(svc *service.Booking, reg Registry) *AdminHandler {
	if svc == nil || reg == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc, Registry: reg}
}

type gridResponse struct {
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`
	Free       int      `json:"free"`
	Layout     []string `json:"layout"`
	LockHolder string   `json:"booking_lock_holder,omitempty"`
	Accounts   int      `json:"accounts"`
}

// Grid handles GET /v1/grid.  Layout has one string per row, '0' free and
// '1' booked, exactly as clients see it.
func (h *AdminHandler) Grid(c echo.Context) error {
	hall := h.Svc.Hall()
	rows := hall.Layout()
	layout := make([]string, len(rows))
	free := 0
	for i, r := range rows {
		layout[i] = string(r)
		for _, b := range r {
			if model.SeatState(b) == model.SeatFree {
				free++
			}
		}
	}
	return c.JSON(http.StatusOK, gridResponse{
		Rows:       hall.Rows(),
		Cols:       hall.Cols(),
		Free:       free,
		Layout:     layout,
		LockHolder: h.Svc.Locks().BookingHolder(),
		Accounts:   h.Svc.Accounts().Len(),
	})
}

type reservationView struct {
	Code   string   `json:"code"`
	Seats  []int    `json:"seats"`
	Labels []string `json:"labels"`
}

// Reservations handles GET /v1/accounts/:email/reservations.
func (h *AdminHandler) Reservations(c echo.Context) error {
	email := c.Param("email")
	res, err := h.Svc.Reservations(email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list reservations"})
	}
	cols := h.Svc.Hall().Cols()
	out := make([]reservationView, 0, len(res))
	for _, r := range res {
		v := reservationView{Code: r.Code, Seats: r.Seats, Labels: make([]string, 0, len(r.Seats))}
		if v.Seats == nil {
			v.Seats = []int{}
		}
		for _, idx := range r.Seats {
			v.Labels = append(v.Labels, seatLabel(idx, cols))
		}
		out = append(out, v)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": email, "reservations": out})
}

// Sessions handles GET /v1/sessions.
func (h *AdminHandler) Sessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Registry.Sessions())
}

// Sync handles POST /v1/sync: it waits for in-flight bookings and
// cancellations to finish and writes the three records.
func (h *AdminHandler) Sync(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), syncTimeout)
	defer cancel()
	if err := h.Registry.Sync(ctx); err != nil {
		c.Logger().Errorf("sync: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking in progress, try again"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// seatLabel renders a 1-based linear index as row letters and a 1-based
// column, e.g. 3 in a 2-column grid is B1.
func seatLabel(index, cols int) string {
	row, col := model.SeatPosition(index, cols)
	return indexToRowLabel(row) + strconv.Itoa(col+1)
}

// indexToRowLabel converts a zero-based index to an alphabetical row label like A, B, AA
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
