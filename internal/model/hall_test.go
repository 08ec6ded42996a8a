package model

import (
	"errors"
	"testing"
)

func TestNewHallRejectsBadDimensions(t *testing.T) {
	if _, err := NewHall(0, 3); !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions, got %v", err)
	}
}

func TestCheckIndicesBoundaries(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 2}, {3, 7}, {100, 100}} {
		h, err := NewHall(dims[0], dims[1])
		if err != nil {
			t.Fatal(err)
		}
		if err := h.CheckIndices([]int{0}); !errors.Is(err, ErrSeatOutOfRange) {
			t.Fatalf("%v: index 0 accepted: %v", dims, err)
		}
		if err := h.CheckIndices([]int{h.Size() + 1}); !errors.Is(err, ErrSeatOutOfRange) {
			t.Fatalf("%v: index size+1 accepted: %v", dims, err)
		}
		if err := h.CheckIndices([]int{1, h.Size()}); h.Size() > 1 && err != nil {
			t.Fatalf("%v: valid indices rejected: %v", dims, err)
		}
	}
}

func TestCheckIndicesRejectsDuplicates(t *testing.T) {
	h, _ := NewHall(2, 2)
	if err := h.CheckIndices([]int{3, 3}); !errors.Is(err, ErrDuplicateSeat) {
		t.Fatalf("expected ErrDuplicateSeat, got %v", err)
	}
}

func TestBookIsAllOrNothing(t *testing.T) {
	h, _ := NewHall(2, 3)
	if err := h.Book([]int{2}, "1111111111"); err != nil {
		t.Fatal(err)
	}
	if err := h.Book([]int{1, 2, 3}, "2222222222"); !errors.Is(err, ErrSeatTaken) {
		t.Fatalf("expected ErrSeatTaken, got %v", err)
	}
	if st, _ := h.Seat(1); st != SeatFree {
		t.Fatal("seat 1 booked by a rejected request")
	}
	if h.HasCode("2222222222") {
		t.Fatal("rejected code reached the ledger")
	}
}

func TestReleaseCodeFreesEverySeat(t *testing.T) {
	h, _ := NewHall(2, 2)
	_ = h.Book([]int{1, 4}, "1234567890")
	_ = h.Book([]int{2}, "0987654321")
	freed := h.ReleaseCode("1234567890")
	if len(freed) != 2 || freed[0] != 1 || freed[1] != 4 {
		t.Fatalf("freed = %v", freed)
	}
	if h.FreeCount() != 3 {
		t.Fatalf("free count = %d", h.FreeCount())
	}
	if got := h.SeatsFor("0987654321"); len(got) != 1 || got[0] != 2 {
		t.Fatalf("other booking disturbed: %v", got)
	}
}

func TestLayoutAndFull(t *testing.T) {
	h, _ := NewHall(1, 2)
	_ = h.Book([]int{1}, "1234567890")
	rows := h.Layout()
	if string(rows[0]) != "10" {
		t.Fatalf("layout = %q", rows[0])
	}
	if h.Full() {
		t.Fatal("hall reported full")
	}
	_ = h.Book([]int{2}, "1234567891")
	if !h.Full() {
		t.Fatal("hall not reported full")
	}
}

func TestSeatIndexRoundTrip(t *testing.T) {
	cols := 7
	for r := 0; r < 3; r++ {
		for c := 0; c < cols; c++ {
			gr, gc := SeatPosition(SeatIndex(r, c, cols), cols)
			if gr != r || gc != c {
				t.Fatalf("(%d,%d) -> (%d,%d)", r, c, gr, gc)
			}
		}
	}
}
