package model

import (
	"errors"
	"testing"
)

func TestDirectorySentinel(t *testing.T) {
	d := NewDirectory()
	if !d.Exists(AdminEmail) {
		t.Fatal("sentinel missing")
	}
	if _, err := d.Lookup(AdminEmail); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("sentinel returned by Lookup: %v", err)
	}
	if d.Len() != 0 || len(d.Accounts()) != 0 {
		t.Fatal("sentinel counted as an account")
	}
	if err := d.Insert(NewAccount(AdminEmail, "x", "y")); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("sentinel email accepted: %v", err)
	}
}

func TestDirectoryInsertOrder(t *testing.T) {
	d := NewDirectory()
	for _, e := range []string{"b@x.io", "a@x.io", "c@x.io"} {
		if err := d.Insert(NewAccount(e, e, "pw")); err != nil {
			t.Fatal(err)
		}
	}
	got := d.Accounts()
	if got[0].Email != "b@x.io" || got[2].Email != "c@x.io" {
		t.Fatalf("order not preserved: %s %s %s", got[0].Email, got[1].Email, got[2].Email)
	}
	if err := d.Insert(NewAccount("a@x.io", "dup", "pw")); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate accepted: %v", err)
	}
}

func TestAccountReservations(t *testing.T) {
	a := NewAccount("a@x.io", "a", "pw", "1111111111")
	a.AddReservation("2222222222")
	a.AddReservation("3333333333")
	if !a.RemoveReservation("2222222222") {
		t.Fatal("remove failed")
	}
	if a.RemoveReservation("2222222222") {
		t.Fatal("removed twice")
	}
	got := a.Reservations()
	if len(got) != 2 || got[0] != "1111111111" || got[1] != "3333333333" {
		t.Fatalf("reservations = %v", got)
	}
}
