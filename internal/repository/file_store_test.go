package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iliyamo/cinema-seat-server/internal/model"
)

func exampleSnapshot() Snapshot {
	b, f := model.SeatBooked, model.SeatFree
	return Snapshot{
		Rows:  2,
		Cols:  3,
		Seats: []model.SeatState{b, f, b, f, f, b},
		Codes: []string{"1234567890", "", "1234567890", "", "", "5555555555"},
		Accounts: []AccountRecord{
			{Nickname: "ann", Email: "ann@example.com", Password: "pw1", Codes: []string{"1234567890"}},
			{Nickname: "bob", Email: "bob@example.com", Password: "pw2", Codes: []string{"5555555555"}},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	want := exampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// save(load(x)) == x, byte for byte.
	before := readAll(t, dir)
	if err := store.Save(ctx, got); err != nil {
		t.Fatal(err)
	}
	if after := readAll(t, dir); !reflect.DeepEqual(before, after) {
		t.Fatalf("files changed on re-save:\n%v\n%v", before, after)
	}
}

func TestFileStoreLiveStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	h, d, err := exampleSnapshot().Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := model.Verify(h, d); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(t.TempDir())
	if err := store.Save(ctx, Capture(h, d)); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	h2, d2, err := loaded.Build()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(Capture(h2, d2), Capture(h, d)) {
		t.Fatal("rebuilt state differs")
	}
}

func TestFileFormats(t *testing.T) {
	s := exampleSnapshot()
	seats, err := EncodeSeats(s.Rows, s.Cols, s.Seats)
	if err != nil {
		t.Fatal(err)
	}
	if seats != "2;3;101;001;" {
		t.Fatalf("seats = %q", seats)
	}
	if got := EncodeLedger(s.Codes); got != "1234567890\n\n1234567890\n\n\n5555555555\n" {
		t.Fatalf("ledger = %q", got)
	}
	want := "ann;ann@example.com;pw1;1234567890\nbob;bob@example.com;pw2;5555555555"
	if got := EncodeAccounts(s.Accounts); got != want {
		t.Fatalf("accounts = %q", got)
	}
}

func TestLoadResetsPartialState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Save(ctx, exampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, AccountsFileName)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
	for _, n := range []string{SeatsFileName, BookingFileName} {
		if _, err := os.Stat(filepath.Join(dir, n)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s survived a partial state reset", n)
		}
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if _, err := NewFileStore(t.TempDir()).Load(context.Background()); !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	bad := []string{"", "2;", "x;3;000;000;", "2;3;000;", "2;3;000;0a0;", "1;2;000;"}
	for _, raw := range bad {
		if _, _, _, err := DecodeSeats(raw); !errors.Is(err, ErrCorruptRecord) {
			t.Fatalf("seats %q accepted: %v", raw, err)
		}
	}
	if _, err := DecodeLedger("123\n", 2); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("short code accepted: %v", err)
	}
	if _, err := DecodeLedger("\n\n1234567890\n", 2); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("extra ledger line accepted: %v", err)
	}
	if _, err := DecodeAccounts("nick;only-two"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("short account line accepted: %v", err)
	}
}

func TestDecodeLedgerFreshFile(t *testing.T) {
	codes, err := DecodeLedger("", 4)
	if err != nil || len(codes) != 4 {
		t.Fatalf("codes=%v err=%v", codes, err)
	}
}

func readAll(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, n := range []string{SeatsFileName, BookingFileName, AccountsFileName} {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			t.Fatal(err)
		}
		out[n] = string(b)
	}
	return out
}
