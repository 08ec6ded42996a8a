package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/mattn/go-isatty"

	"github.com/iliyamo/cinema-seat-server/internal/config"
	"github.com/iliyamo/cinema-seat-server/internal/model"
	"github.com/iliyamo/cinema-seat-server/internal/repository"
)

// SizeFunc chooses the dimensions of a fresh grid.
type SizeFunc func() (rows, cols int, err error)

// Load restores the state from store.  When the store holds no state a
// fresh grid is sized by size and saved immediately, so the three records
// always exist after startup.  The restored state is verified before use.
func Load(ctx context.Context, store repository.Store, size SizeFunc, logger *log.Logger) (*model.Hall, *model.Directory, error) {
	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNoState):
		rows, cols, err := size()
		if err != nil {
			return nil, nil, fmt.Errorf("size grid: %w", err)
		}
		snap = repository.Fresh(rows, cols)
		if err := store.Save(ctx, snap); err != nil {
			return nil, nil, fmt.Errorf("save fresh state: %w", err)
		}
		logger.Infof("created a fresh %dx%d grid", rows, cols)
	case err != nil:
		return nil, nil, fmt.Errorf("load state: %w", err)
	default:
		logger.Infof("restored a %dx%d grid with %d accounts", snap.Rows, snap.Cols, len(snap.Accounts))
	}
	h, d, err := snap.Build()
	if err != nil {
		return nil, nil, err
	}
	if err := model.Verify(h, d); err != nil {
		return nil, nil, err
	}
	return h, d, nil
}

// GridSize asks on the terminal when stdin is one, otherwise it uses the
// configured dimensions.
func GridSize(cfg config.Config) SizeFunc {
	return func() (int, int, error) {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return Prompt(os.Stdin, os.Stdout)
		}
		return cfg.GridRows, cfg.GridCols, nil
	}
}

// Prompt reads rows and columns from in until both lie in 1..100.
func Prompt(in io.Reader, out io.Writer) (rows, cols int, err error) {
	sc := bufio.NewScanner(in)
	ask := func(what string) (int, error) {
		for {
			fmt.Fprintf(out, "%s (%d-%d): ", what, config.MinGridSide, config.MaxGridSide)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return 0, err
				}
				return 0, io.ErrUnexpectedEOF
			}
			n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
			if err == nil && config.ValidateGridSide(n) == nil {
				return n, nil
			}
			fmt.Fprintln(out, "invalid value")
		}
	}
	if rows, err = ask("rows"); err != nil {
		return 0, 0, err
	}
	if cols, err = ask("columns"); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}
