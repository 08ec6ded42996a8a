package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-server/internal/model"
)

// File names inside the data directory.
const (
	SeatsFileName    = "cinema_struct"
	BookingFileName  = "booking_struct"
	AccountsFileName = "accounts"
)

// FileStore keeps the three records as plain-text files in one directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.  The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (f *FileStore) path(name string) string { return filepath.Join(f.dir, name) }

// Load reads all three records.  If any one of them is missing the others
// are discarded and ErrNoState is returned, so that a partially written
// data directory never mixes with a fresh grid.
func (f *FileStore) Load(_ context.Context) (Snapshot, error) {
	names := []string{SeatsFileName, BookingFileName, AccountsFileName}
	missing := false
	for _, n := range names {
		if _, err := os.Stat(f.path(n)); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Snapshot{}, err
			}
			missing = true
		}
	}
	if missing {
		for _, n := range names {
			if err := os.Remove(f.path(n)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return Snapshot{}, err
			}
		}
		return Snapshot{}, ErrNoState
	}

	seatsRaw, err := os.ReadFile(f.path(SeatsFileName))
	if err != nil {
		return Snapshot{}, err
	}
	rows, cols, seats, err := DecodeSeats(string(seatsRaw))
	if err != nil {
		return Snapshot{}, err
	}
	ledgerRaw, err := os.ReadFile(f.path(BookingFileName))
	if err != nil {
		return Snapshot{}, err
	}
	codes, err := DecodeLedger(string(ledgerRaw), rows*cols)
	if err != nil {
		return Snapshot{}, err
	}
	accountsRaw, err := os.ReadFile(f.path(AccountsFileName))
	if err != nil {
		return Snapshot{}, err
	}
	accounts, err := DecodeAccounts(string(accountsRaw))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Rows: rows, Cols: cols, Seats: seats, Codes: codes, Accounts: accounts}, nil
}

// Save rewrites all three records.  Each file is written to a temporary
// name and renamed into place, so a crash mid-save leaves either the old or
// the new version of every file.
func (f *FileStore) Save(_ context.Context, s Snapshot) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	seats, err := EncodeSeats(s.Rows, s.Cols, s.Seats)
	if err != nil {
		return err
	}
	files := []struct {
		name string
		data string
	}{
		{SeatsFileName, seats},
		{BookingFileName, EncodeLedger(s.Codes)},
		{AccountsFileName, EncodeAccounts(s.Accounts)},
	}
	for _, file := range files {
		if err := writeFileAtomic(f.path(file.name), []byte(file.data)); err != nil {
			return fmt.Errorf("write %s: %w", file.name, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// EncodeSeats renders "rows;cols;" followed by one cols-character row per
// row, each terminated by ';'.
func EncodeSeats(rows, cols int, seats []model.SeatState) (string, error) {
	if len(seats) != rows*cols {
		return "", fmt.Errorf("%w: %d seats for a %dx%d grid", ErrCorruptRecord, len(seats), rows, cols)
	}
	var b strings.Builder
	b.Grow(8 + rows*(cols+1))
	fmt.Fprintf(&b, "%d;%d;", rows, cols)
	for i, s := range seats {
		if !s.Valid() {
			return "", fmt.Errorf("%w: seat %d has state %q", ErrCorruptRecord, i+1, byte(s))
		}
		b.WriteByte(byte(s))
		if (i+1)%cols == 0 {
			b.WriteByte(';')
		}
	}
	return b.String(), nil
}

// DecodeSeats parses the seat grid record.
func DecodeSeats(raw string) (rows, cols int, seats []model.SeatState, err error) {
	parts := strings.Split(strings.TrimRight(raw, "\n"), ";")
	if len(parts) < 3 {
		return 0, 0, nil, fmt.Errorf("%w: %s: missing dimensions", ErrCorruptRecord, SeatsFileName)
	}
	if rows, err = strconv.Atoi(parts[0]); err != nil || rows < 1 {
		return 0, 0, nil, fmt.Errorf("%w: %s: rows %q", ErrCorruptRecord, SeatsFileName, parts[0])
	}
	if cols, err = strconv.Atoi(parts[1]); err != nil || cols < 1 {
		return 0, 0, nil, fmt.Errorf("%w: %s: cols %q", ErrCorruptRecord, SeatsFileName, parts[1])
	}
	body := parts[2:]
	if body[len(body)-1] == "" {
		body = body[:len(body)-1]
	}
	if len(body) != rows {
		return 0, 0, nil, fmt.Errorf("%w: %s: %d rows, want %d", ErrCorruptRecord, SeatsFileName, len(body), rows)
	}
	seats = make([]model.SeatState, 0, rows*cols)
	for r, line := range body {
		if len(line) != cols {
			return 0, 0, nil, fmt.Errorf("%w: %s: row %d has %d seats, want %d", ErrCorruptRecord, SeatsFileName, r+1, len(line), cols)
		}
		for c := 0; c < cols; c++ {
			s := model.SeatState(line[c])
			if !s.Valid() {
				return 0, 0, nil, fmt.Errorf("%w: %s: row %d col %d: %q", ErrCorruptRecord, SeatsFileName, r+1, c+1, line[c])
			}
			seats = append(seats, s)
		}
	}
	return rows, cols, seats, nil
}

// EncodeLedger renders one line per seat index holding the code or nothing.
func EncodeLedger(codes []string) string {
	var b strings.Builder
	b.Grow(len(codes) * (model.CodeSize + 1))
	for _, c := range codes {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	return b.String()
}

// DecodeLedger parses the ledger record into exactly size entries.  Lines
// beyond the end of the file are blank: a freshly created ledger is empty.
func DecodeLedger(raw string, size int) ([]string, error) {
	codes := make([]string, size)
	if raw == "" {
		return codes, nil
	}
	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if i >= size {
			if line != "" {
				return nil, fmt.Errorf("%w: %s: line %d beyond %d seats", ErrCorruptRecord, BookingFileName, i+1, size)
			}
			continue
		}
		if line == "" {
			continue
		}
		if !model.ValidCode(line) {
			return nil, fmt.Errorf("%w: %s: line %d: %q", ErrCorruptRecord, BookingFileName, i+1, line)
		}
		codes[i] = line
	}
	return codes, nil
}

// EncodeAccounts renders "nickname;email;password[;code]*" per account.
// The last line carries no trailing newline.
func EncodeAccounts(accounts []AccountRecord) string {
	lines := make([]string, 0, len(accounts))
	for _, a := range accounts {
		fields := append([]string{a.Nickname, a.Email, a.Password}, a.Codes...)
		lines = append(lines, strings.Join(fields, ";"))
	}
	return strings.Join(lines, "\n")
}

// DecodeAccounts parses the account directory record.  Blank lines are
// skipped.
func DecodeAccounts(raw string) ([]AccountRecord, error) {
	var out []AccountRecord
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 3 || fields[1] == "" {
			return nil, fmt.Errorf("%w: %s: line %d", ErrCorruptRecord, AccountsFileName, i+1)
		}
		rec := AccountRecord{Nickname: fields[0], Email: fields[1], Password: fields[2]}
		for _, c := range fields[3:] {
			if c == "" {
				continue
			}
			if !model.ValidCode(c) {
				return nil, fmt.Errorf("%w: %s: line %d: code %q", ErrCorruptRecord, AccountsFileName, i+1, c)
			}
			rec.Codes = append(rec.Codes, c)
		}
		out = append(out, rec)
	}
	return out, nil
}
