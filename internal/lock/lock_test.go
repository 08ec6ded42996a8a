package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBookingLockPollsWhileBusy(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	var a, b Holdings
	a.Owner = "a"
	relA, err := m.AcquireBooking(context.Background(), &a, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.BookingHolder() != "a" {
		t.Fatalf("holder = %q", m.BookingHolder())
	}
	var busy atomic.Int32
	done := make(chan error, 1)
	go func() {
		rel, err := m.AcquireBooking(context.Background(), &b, func() error { busy.Add(1); return nil })
		if err == nil {
			rel()
		}
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	relA()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if busy.Load() < 2 {
		t.Fatalf("busy signalled %d times", busy.Load())
	}
	if a.Holds(Booking) || b.Holds(Booking) {
		t.Fatal("holdings not cleared")
	}
}

func TestBookingLockFirstTryDoesNotSignal(t *testing.T) {
	m := NewManager(time.Second)
	var h Holdings
	rel, err := m.AcquireBooking(context.Background(), &h, func() error {
		t.Fatal("busy signalled on a free lock")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rel()
}

func TestBookingLockHonoursContext(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	var a, b Holdings
	rel, _ := m.AcquireBooking(context.Background(), &a, nil)
	defer rel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.AcquireBooking(ctx, &b, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if b.Holds(Booking) {
		t.Fatal("failed acquisition recorded")
	}
}

func TestBusyErrorAbortsWait(t *testing.T) {
	m := NewManager(time.Millisecond)
	var a, b Holdings
	rel, _ := m.AcquireBooking(context.Background(), &a, nil)
	defer rel()
	boom := errors.New("write failed")
	if _, err := m.AcquireBooking(context.Background(), &b, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager(time.Millisecond)
	var h Holdings
	rel, _ := m.AcquireSignup(&h)
	rel()
	rel()
	// A second acquisition proves the mutex was unlocked exactly once.
	rel2, err := m.AcquireSignup(&h)
	if err != nil {
		t.Fatal(err)
	}
	rel2()
}

func TestReleaseAllDropsOnlyOwnLocks(t *testing.T) {
	m := NewManager(time.Millisecond)
	var mine, other Holdings
	var acct sync.Mutex
	if _, err := m.AcquireBooking(context.Background(), &mine, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := AcquireDeletion(&mine, &acct); err != nil {
		t.Fatal(err)
	}
	relOther, _ := m.AcquireSignup(&other)

	released := mine.ReleaseAll()
	if len(released) != 2 || released[0] != Booking || released[1] != Deletion {
		t.Fatalf("released = %v", released)
	}
	if len(mine.ReleaseAll()) != 0 {
		t.Fatal("second ReleaseAll released something")
	}
	if !other.Holds(Signup) {
		t.Fatal("other session's lock dropped")
	}
	if !m.booking.TryLock() || !acct.TryLock() {
		t.Fatal("locks not actually released")
	}
	if m.signup.TryLock() {
		t.Fatal("signup lock released by the wrong session")
	}
	relOther()
}

func TestAlreadyHeld(t *testing.T) {
	m := NewManager(time.Millisecond)
	var h Holdings
	rel, _ := m.AcquireSignup(&h)
	defer rel()
	if _, err := m.AcquireSignup(&h); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}
}

// At most one holder at any instant.
func TestBookingLockExclusion(t *testing.T) {
	m := NewManager(time.Millisecond)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var h Holdings
			rel, err := m.AcquireBooking(context.Background(), &h, nil)
			if err != nil {
				t.Error(err)
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			rel()
		}()
	}
	wg.Wait()
	if maxInside.Load() != 1 {
		t.Fatalf("max concurrent holders = %d", maxInside.Load())
	}
}
