package e

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrInternal         = errors.New("internal error")
	ErrDeadline         = errors.New("deadline exceeded")
	ErrCanceled         = errors.New("context canceled")
	ErrNoLocation       = errors.New("no location fix available")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrFeedFull         = errors.New("location feed is full")
)

// WrapError приводит ошибки pgx и контекста к доменным ошибкам
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514", "22P02":
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, ErrInvalidInput)
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrInternal)
		}
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrInternal)
}
