package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed means a guarded write matched no row because the
	// record no longer satisfies the guard.
	ErrConditionFailed = errors.New("write condition not met")
)

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if isNoRows(err) {
		return ErrNotFound
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return d, nil
}

// amountArg renders an amount the way NUMERIC(14,2) columns store it.
func amountArg(d decimal.Decimal) string {
	return d.StringFixed(2)
}
