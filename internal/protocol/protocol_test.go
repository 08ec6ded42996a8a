package protocol

import (
	"errors"
	"net"
	"testing"
	"time"
)

func pipe(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return NewConn(a, time.Second, time.Second), NewConn(b, time.Second, time.Second)
}

func TestTextRoundTrip(t *testing.T) {
	srv, cli := pipe(t)
	go func() { _ = cli.WriteText("alice@example.com") }()
	got, err := srv.ReadText()
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "alice@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeTextStopsAtFirstTerminator(t *testing.T) {
	cases := map[string]string{
		"bob\x00junk": "bob",
		"bob\nrest":   "bob",
		"bob rest":    "bob",
		"\x00":        "",
	}
	for in, want := range cases {
		got, err := DecodeText([]byte(in))
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestDecodeTextRejectsUnterminatedBlock(t *testing.T) {
	block := make([]byte, TextSize)
	for i := range block {
		block[i] = 'x'
	}
	if _, err := DecodeText(block); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestEncodeTextRejectsOversize(t *testing.T) {
	if _, err := EncodeText("abcd", 4); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
	b, err := EncodeText("abc", 4)
	if err != nil || string(b) != "abc\x00" {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestIntIsLittleEndian(t *testing.T) {
	srv, cli := pipe(t)
	go func() { _ = srv.WriteInt(258) }()
	raw, err := cli.Read(IntSize)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if raw[0] != 2 || raw[1] != 1 || raw[2] != 0 || raw[3] != 0 {
		t.Fatalf("unexpected bytes % x", raw)
	}
}

func TestNumberWidth(t *testing.T) {
	cases := map[int]int{4: 2, 9: 2, 10: 3, 100: 4, 10000: 6}
	for size, want := range cases {
		if got := NumberWidth(size); got != want {
			t.Fatalf("NumberWidth(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestNumberRoundTrip(t *testing.T) {
	srv, cli := pipe(t)
	go func() { _ = cli.WriteNumber(42, 3) }()
	n, err := srv.ReadNumber(3)
	if err != nil || n != 42 {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestDecodeNumberRejectsGarbage(t *testing.T) {
	for _, in := range []string{"ab\x00", "\x00\x00", "-1\x00", "1a"} {
		if _, err := DecodeNumber([]byte(in)); !errors.Is(err, ErrBadNumber) {
			t.Fatalf("%q: expected ErrBadNumber, got %v", in, err)
		}
	}
}

func TestFlagAndDecision(t *testing.T) {
	srv, cli := pipe(t)
	go func() {
		_ = srv.WriteFlag(FlagInvalid)
		_ = cli.WriteDecision(true)
	}()
	f, err := cli.ReadFlag()
	if err != nil || f != FlagInvalid {
		t.Fatalf("flag %d, %v", f, err)
	}
	retry, err := srv.ReadDecision()
	if err != nil || !retry {
		t.Fatalf("decision %v, %v", retry, err)
	}
}

func TestCodeMustBeFullWidth(t *testing.T) {
	srv, _ := pipe(t)
	if err := srv.WriteCode("123"); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestPeerCloseIsReported(t *testing.T) {
	a, b := net.Pipe()
	srv := NewConn(a, time.Second, time.Second)
	defer a.Close()
	b.Close()
	if _, err := srv.ReadByte(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestPeerCloseIsReportedOnWrite(t *testing.T) {
	a, b := net.Pipe()
	srv := NewConn(a, time.Second, time.Second)
	defer a.Close()
	b.Close()
	if err := srv.WriteByte(OK); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestPeerCloseWithoutTimeouts(t *testing.T) {
	a, b := net.Pipe()
	srv := NewConn(a, 0, 0)
	defer a.Close()
	b.Close()
	if _, err := srv.ReadByte(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestReadDeadline(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	srv := NewConn(a, 20*time.Millisecond, time.Second)
	_, err := srv.ReadByte()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
}
