// Package protocol implements the fixed-width wire fields of the seat
// protocol over a reliable ordered byte stream.
//
// Every read and write installs its own deadline: reads wait long enough for
// a person at a keyboard, writes fail fast.  A zero-length read (the peer
// closed its side) is reported as ErrPeerClosed so callers can treat it the
// same way as a termination request.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// Field widths and single-byte tokens.
const (
	TextSize = 255
	CodeSize = 10
	FlagSize = 2
	IntSize  = 4
	OK       = '1'
	Retry    = '0'
	Busy     = '0'
	Ready    = '1'
	SignIn   = '1'
	SignUp   = '2'
	Exit     = '3'
	Book     = '1'
	Cancel   = '2'
	Removed  = '1'
	NotFound = '0'
)

// Bookable flag values.
const (
	FlagOK       = 0
	FlagConflict = 1
	FlagInvalid  = 2
)

var (
	// ErrPeerClosed reports that the peer closed the connection.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrFieldTooLong reports a text value that does not fit its block.
	ErrFieldTooLong = errors.New("field exceeds its fixed width")
	// ErrBadNumber reports a decimal field that does not parse.
	ErrBadNumber = errors.New("malformed decimal field")
)

// Conn wraps a stream with per-operation deadlines.
type Conn struct {
	c            net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps c.  Zero timeouts disable the corresponding deadline.
func NewConn(c net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{c: c, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Close closes the underlying stream.
func (p *Conn) Close() error { return p.c.Close() }

// RemoteAddr returns the peer address.
func (p *Conn) RemoteAddr() net.Addr { return p.c.RemoteAddr() }

// peerClosed maps the ways a departed peer surfaces to ErrPeerClosed.
func peerClosed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return ErrPeerClosed
	}
	return err
}

func (p *Conn) read(n int) ([]byte, error) {
	if p.readTimeout > 0 {
		if err := p.c.SetReadDeadline(time.Now().Add(p.readTimeout)); err != nil {
			return nil, peerClosed(err)
		}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.c, buf); err != nil {
		return nil, peerClosed(err)
	}
	return buf, nil
}

func (p *Conn) write(b []byte) error {
	if p.writeTimeout > 0 {
		if err := p.c.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return peerClosed(err)
		}
	}
	if _, err := p.c.Write(b); err != nil {
		return peerClosed(err)
	}
	return nil
}

// ReadByte reads one byte.
func (p *Conn) ReadByte() (byte, error) {
	b, err := p.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteByte writes one byte.
func (p *Conn) WriteByte(b byte) error { return p.write([]byte{b}) }

// ReadText reads a TextSize block and returns its content, which ends at
// the first NUL, newline or space.  A block with no terminator at all held
// more than TextSize-1 characters on the sender's side and is rejected
// with ErrFieldTooLong; the block is still fully consumed.
func (p *Conn) ReadText() (string, error) {
	b, err := p.read(TextSize)
	if err != nil {
		return "", err
	}
	return DecodeText(b)
}

// DecodeText extracts the content of a fixed text block.
func DecodeText(b []byte) (string, error) {
	end := bytes.IndexAny(b, "\x00\n ")
	if end < 0 {
		return "", ErrFieldTooLong
	}
	return string(b[:end]), nil
}

// WriteText writes s as a NUL-padded TextSize block.
func (p *Conn) WriteText(s string) error {
	b, err := EncodeText(s, TextSize)
	if err != nil {
		return err
	}
	return p.write(b)
}

// EncodeText pads s with NULs to width.  At least one NUL is always present.
func EncodeText(s string, width int) ([]byte, error) {
	if len(s) >= width {
		return nil, fmt.Errorf("%w: %d bytes into %d", ErrFieldTooLong, len(s), width)
	}
	b := make([]byte, width)
	copy(b, s)
	return b, nil
}

// ReadCode reads a CodeSize field verbatim.
func (p *Conn) ReadCode() (string, error) {
	b, err := p.read(CodeSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteCode writes a code that must be exactly CodeSize bytes.
func (p *Conn) WriteCode(code string) error {
	if len(code) != CodeSize {
		return fmt.Errorf("%w: code of %d bytes", ErrFieldTooLong, len(code))
	}
	return p.write([]byte(code))
}

// WriteInt writes a 32-bit little-endian integer.
func (p *Conn) WriteInt(n int) error {
	var b [IntSize]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(n)))
	return p.write(b[:])
}

// ReadInt reads a 32-bit little-endian integer.
func (p *Conn) ReadInt() (int, error) {
	b, err := p.read(IntSize)
	if err != nil {
		return 0, err
	}
	return int(int32(binary.LittleEndian.Uint32(b))), nil
}

// Write writes raw bytes, e.g. one grid row.
func (p *Conn) Write(b []byte) error { return p.write(b) }

// Read reads exactly n raw bytes.
func (p *Conn) Read(n int) ([]byte, error) { return p.read(n) }

// NumberWidth is the width of the decimal seat fields for a grid of size
// seats: the digits of size plus one terminator.
func NumberWidth(size int) int { return len(strconv.Itoa(size)) + 1 }

// ReadNumber reads a decimal field of the given width.  Leading spaces are
// ignored and the number ends at the first NUL, newline or space.
func (p *Conn) ReadNumber(width int) (int, error) {
	b, err := p.read(width)
	if err != nil {
		return 0, err
	}
	return DecodeNumber(b)
}

// DecodeNumber parses a decimal field.
func DecodeNumber(b []byte) (int, error) {
	b = bytes.TrimLeft(b, " ")
	if end := bytes.IndexAny(b, "\x00\n\r "); end >= 0 {
		b = b[:end]
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, b)
	}
	return n, nil
}

// WriteNumber writes n as a NUL-padded decimal field of the given width.
func (p *Conn) WriteNumber(n, width int) error {
	b, err := EncodeText(strconv.Itoa(n), width)
	if err != nil {
		return err
	}
	return p.write(b)
}

// WriteFlag writes a FlagSize decimal flag.
func (p *Conn) WriteFlag(flag int) error {
	b, err := EncodeText(strconv.Itoa(flag), FlagSize)
	if err != nil {
		return err
	}
	return p.write(b)
}

// ReadFlag reads a FlagSize decimal flag.
func (p *Conn) ReadFlag() (int, error) {
	b, err := p.read(FlagSize)
	if err != nil {
		return 0, err
	}
	return DecodeNumber(b)
}

// ReadDecision reads a FlagSize retry answer and reports whether it asks
// to retry.
func (p *Conn) ReadDecision() (bool, error) {
	b, err := p.read(FlagSize)
	if err != nil {
		return false, err
	}
	return b[0] == 'y' || b[0] == 'Y', nil
}

// WriteDecision writes a FlagSize retry answer.
func (p *Conn) WriteDecision(retry bool) error {
	if retry {
		return p.write([]byte{'y', 0})
	}
	return p.write([]byte{'n', 0})
}
