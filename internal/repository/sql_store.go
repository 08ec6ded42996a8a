package repository // repository: MySQL copy of the seat server state

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sql.ErrNoRows checks
	"fmt"          // fmt wraps errors with the failing step
	"strings"      // strings builds the batched INSERT statements

	"github.com/iliyamo/cinema-seat-server/internal/model"
)

// schema creates the mirror tables.  The layout is deliberately flat: one
// row per seat, one per account, one per reservation code.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS grid_meta (
		id     TINYINT PRIMARY KEY,
		rows_n INT NOT NULL,
		cols_n INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS grid_seats (
		seat_index INT PRIMARY KEY,
		state      CHAR(1) NOT NULL,
		code       CHAR(10) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS grid_accounts (
		position INT PRIMARY KEY,
		email    VARCHAR(255) NOT NULL UNIQUE,
		nickname VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS grid_account_codes (
		email    VARCHAR(255) NOT NULL,
		position INT NOT NULL,
		code     CHAR(10) NOT NULL,
		PRIMARY KEY (email, position)
	)`,
}

// SQLStore mirrors snapshots into MySQL.  Every Save replaces the previous
// snapshot inside one transaction.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore binds a store to db.
func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// EnsureSchema creates the mirror tables when they do not exist.
func (r *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Save replaces the mirrored snapshot.
func (r *SQLStore) Save(ctx context.Context, s Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, t := range []string{"grid_meta", "grid_seats", "grid_accounts", "grid_account_codes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO grid_meta (id, rows_n, cols_n) VALUES (1, ?, ?)`, s.Rows, s.Cols); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	steps := []struct {
		what    string
		batches []insertBatch
	}{
		{"seats", seatInsert(s)},
		{"accounts", accountInsert(s.Accounts)},
		{"codes", codeInsert(s.Accounts)},
	}
	for _, step := range steps {
		for _, b := range step.batches {
			if _, err := tx.ExecContext(ctx, b.query, b.args...); err != nil {
				return fmt.Errorf("insert %s: %w", step.what, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Load reads the mirrored snapshot back.  ErrNoState is returned when
// nothing has been mirrored yet.
func (r *SQLStore) Load(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := r.db.QueryRowContext(ctx, `SELECT rows_n, cols_n FROM grid_meta WHERE id = 1`).Scan(&s.Rows, &s.Cols)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoState
	}
	if err != nil {
		return Snapshot{}, err
	}
	fresh := Fresh(s.Rows, s.Cols)
	s.Seats, s.Codes = fresh.Seats, fresh.Codes

	rows, err := r.db.QueryContext(ctx, `SELECT seat_index, state, code FROM grid_seats ORDER BY seat_index`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var state string
		var code sql.NullString
		if err := rows.Scan(&idx, &state, &code); err != nil {
			return Snapshot{}, err
		}
		if idx < 1 || idx > len(s.Seats) || len(state) != 1 {
			return Snapshot{}, fmt.Errorf("%w: grid_seats row %d", ErrCorruptRecord, idx)
		}
		s.Seats[idx-1] = model.SeatState(state[0])
		if code.Valid {
			s.Codes[idx-1] = code.String
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	arows, err := r.db.QueryContext(ctx, `SELECT email, nickname, password FROM grid_accounts ORDER BY position`)
	if err != nil {
		return Snapshot{}, err
	}
	defer arows.Close()
	byEmail := map[string]int{}
	for arows.Next() {
		var a AccountRecord
		if err := arows.Scan(&a.Email, &a.Nickname, &a.Password); err != nil {
			return Snapshot{}, err
		}
		byEmail[a.Email] = len(s.Accounts)
		s.Accounts = append(s.Accounts, a)
	}
	if err := arows.Err(); err != nil {
		return Snapshot{}, err
	}

	crows, err := r.db.QueryContext(ctx, `SELECT email, code FROM grid_account_codes ORDER BY email, position`)
	if err != nil {
		return Snapshot{}, err
	}
	defer crows.Close()
	for crows.Next() {
		var email, code string
		if err := crows.Scan(&email, &code); err != nil {
			return Snapshot{}, err
		}
		i, ok := byEmail[email]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: code %s for unknown account %s", ErrCorruptRecord, code, email)
		}
		s.Accounts[i].Codes = append(s.Accounts[i].Codes, code)
	}
	return s, crows.Err()
}

// insertChunk bounds the rows per INSERT, keeping every statement far below
// MySQL's 65535 placeholder limit.
const insertChunk = 1000

type insertBatch struct {
	query string
	args  []interface{}
}

// batchInsert splits rows into multi-row INSERT statements of at most
// insertChunk rows each.  tuple is the placeholder group for one row.
func batchInsert(prefix, tuple string, rows [][]interface{}) []insertBatch {
	var out []insertBatch
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		var q strings.Builder
		q.WriteString(prefix)
		args := make([]interface{}, 0, (end-start)*len(rows[start]))
		for i, row := range rows[start:end] {
			if i > 0 {
				q.WriteByte(',')
			}
			q.WriteString(tuple)
			args = append(args, row...)
		}
		out = append(out, insertBatch{query: q.String(), args: args})
	}
	return out
}

func seatInsert(s Snapshot) []insertBatch {
	rows := make([][]interface{}, 0, len(s.Seats))
	for i, st := range s.Seats {
		var code interface{}
		if s.Codes[i] != "" {
			code = s.Codes[i]
		}
		rows = append(rows, []interface{}{i + 1, string(rune(st)), code})
	}
	return batchInsert(`INSERT INTO grid_seats (seat_index, state, code) VALUES `, "(?, ?, ?)", rows)
}

func accountInsert(accts []AccountRecord) []insertBatch {
	rows := make([][]interface{}, 0, len(accts))
	for i, a := range accts {
		rows = append(rows, []interface{}{i, a.Email, a.Nickname, a.Password})
	}
	return batchInsert(`INSERT INTO grid_accounts (position, email, nickname, password) VALUES `, "(?, ?, ?, ?)", rows)
}

func codeInsert(accts []AccountRecord) []insertBatch {
	var rows [][]interface{}
	for _, a := range accts {
		for pos, c := range a.Codes {
			rows = append(rows, []interface{}{a.Email, pos, c})
		}
	}
	return batchInsert(`INSERT INTO grid_account_codes (email, position, code) VALUES `, "(?, ?, ?)", rows)
}
