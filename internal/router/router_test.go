package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-server/internal/config"
	"github.com/iliyamo/cinema-seat-server/internal/handler"
	"github.com/iliyamo/cinema-seat-server/internal/lock"
	"github.com/iliyamo/cinema-seat-server/internal/logging"
	"github.com/iliyamo/cinema-seat-server/internal/model"
	"github.com/iliyamo/cinema-seat-server/internal/ratelimit"
	"github.com/iliyamo/cinema-seat-server/internal/service"
	"github.com/iliyamo/cinema-seat-server/internal/session"
	"github.com/iliyamo/cinema-seat-server/internal/utils"
)

const secret = "test-secret"

type fakeRegistry struct {
	syncErr error
	synced  int
}

func (f *fakeRegistry) Sessions() []session.Info {
	return []session.Info{{ID: "s1", Remote: "127.0.0.1:5000", State: "booking", Locks: []string{"booking"}}}
}

func (f *fakeRegistry) Sync(context.Context) error {
	f.synced++
	return f.syncErr
}

func newAPI(t *testing.T) (*echo.Echo, *service.Booking, *fakeRegistry) {
	t.Helper()
	h, err := model.NewHall(2, 2)
	if err != nil {
		t.Fatalf("NewHall: %v", err)
	}
	svc := service.NewBooking(h, model.NewDirectory(), lock.NewManager(time.Millisecond), service.Options{Log: logging.Discard("service")})
	reg := &fakeRegistry{}
	e := echo.New()
	RegisterRoutes(e)
	RegisterAdmin(e, handler.NewAdminHandler(svc, reg), secret, ratelimit.New(config.RateLimitConfig{Enabled: true}, nil))
	return e, svc, reg
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "ops", role, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return tok.Token
}

func do(e *echo.Echo, method, path, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _, _ := newAPI(t)
	rec := do(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAdminRequiresToken(t *testing.T) {
	e, _, _ := newAPI(t)
	if rec := do(e, http.MethodGet, "/v1/grid", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/grid", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/grid", token(t, "CUSTOMER")); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: %d", rec.Code)
	}
}

func TestGrid(t *testing.T) {
	e, svc, _ := newAPI(t)
	h := &lock.Holdings{}
	a, _ := svc.SignUp(h, "a@b.c", "al", "pw")
	rel, _ := svc.Locks().AcquireBooking(context.Background(), h, nil)
	if _, err := svc.Commit(h, a, []int{2}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rel()

	rec := do(e, http.MethodGet, "/v1/grid", token(t, "ADMIN"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Rows, Cols, Free, Accounts int
		Layout                     []string
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Rows != 2 || body.Free != 3 || body.Accounts != 1 || strings.Join(body.Layout, "|") != "01|00" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestReservations(t *testing.T) {
	e, svc, _ := newAPI(t)
	h := &lock.Holdings{}
	a, _ := svc.SignUp(h, "a@b.c", "al", "pw")
	rel, _ := svc.Locks().AcquireBooking(context.Background(), h, nil)
	code, err := svc.Commit(h, a, []int{3, 4})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rel()

	rec := do(e, http.MethodGet, "/v1/accounts/a@b.c/reservations", token(t, "ADMIN"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), code) || !strings.Contains(rec.Body.String(), `"labels":["B1","B2"]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/accounts/nobody/reservations", token(t, "ADMIN")); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/accounts/admin/reservations", token(t, "ADMIN")); rec.Code != http.StatusNotFound {
		t.Fatalf("sentinel account: %d", rec.Code)
	}
}

func TestSessionsAndSync(t *testing.T) {
	e, _, reg := newAPI(t)
	rec := do(e, http.MethodGet, "/v1/sessions", token(t, "ADMIN"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"s1"`) {
		t.Fatalf("sessions: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/v1/sync", token(t, "ADMIN")); rec.Code != http.StatusNoContent {
		t.Fatalf("sync: %d", rec.Code)
	}
	reg.syncErr = errors.New("disk full")
	if rec := do(e, http.MethodPost, "/v1/sync", token(t, "ADMIN")); rec.Code != http.StatusInternalServerError {
		t.Fatalf("failing sync: %d", rec.Code)
	}
	reg.syncErr = context.DeadlineExceeded
	if rec := do(e, http.MethodPost, "/v1/sync", token(t, "ADMIN")); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("busy sync: %d", rec.Code)
	}
	if reg.synced != 3 {
		t.Fatalf("synced %d times", reg.synced)
	}
}
