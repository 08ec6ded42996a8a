package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := RandomCode()
		if err != nil {
			t.Fatal(err)
		}
		if !ValidCode(c) || c[0] == '0' {
			t.Fatalf("bad code %q", c)
		}
	}
}

func TestValidCode(t *testing.T) {
	for _, c := range []string{"", "123", "12345678901", "12345x7890"} {
		if ValidCode(c) {
			t.Fatalf("%q accepted", c)
		}
	}
}

// A source that replays already-committed codes before yielding a fresh one
// must never produce a duplicate.
func TestNewCodeSkipsCollisions(t *testing.T) {
	h, _ := NewHall(10, 10)
	committed := map[string]bool{}
	next := 0
	for seat := 1; seat <= 50; seat++ {
		var replay []string
		for c := range committed {
			replay = append(replay, c)
		}
		src := func() (string, error) {
			if len(replay) > 0 {
				c := replay[0]
				replay = replay[1:]
				return c, nil
			}
			next++
			return fmt.Sprintf("%010d", 1_000_000_000+next), nil
		}
		code, err := h.NewCode(src)
		if err != nil {
			t.Fatal(err)
		}
		if committed[code] {
			t.Fatalf("duplicate code %s", code)
		}
		if err := h.Book([]int{seat}, code); err != nil {
			t.Fatal(err)
		}
		committed[code] = true
	}
}

func TestNewCodeGivesUp(t *testing.T) {
	h, _ := NewHall(1, 1)
	_ = h.Book([]int{1}, "5555555555")
	_, err := h.NewCode(func() (string, error) { return "5555555555", nil })
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestReservationsResolveSeats(t *testing.T) {
	h, _ := NewHall(2, 2)
	a := NewAccount("a@x.io", "a", "pw", "1234567890")
	_ = h.Book([]int{1, 3}, "1234567890")
	res := h.Reservations(a)
	if len(res) != 1 || len(res[0].Seats) != 2 || res[0].Seats[1] != 3 {
		t.Fatalf("reservations = %+v", res)
	}
}
