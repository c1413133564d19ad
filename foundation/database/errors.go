package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx"
)

// ConstraintViolation indicates a write was rejected by a uniqueness, foreign key,
// check, or not-null constraint. The write did not happen.
type ConstraintViolation struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint violation on %s: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("constraint violation: %v", e.Err)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

// TransientError indicates a connectivity or timeout failure from the backing store.
// The operation may succeed if retried; retrying is the caller's decision.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// WrapError classifies err into the store error taxonomy. Integrity errors
// (postgres class 23) become ConstraintViolation, connection and resource
// errors (classes 08, 53, 57) and network timeouts become TransientError.
// Anything else passes through unchanged. Returns nil for nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr pgx.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return &ConstraintViolation{Constraint: pgErr.ConstraintName, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return &TransientError{Err: err}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	return err
}

// IsNoRows reports whether err is the driver's empty-result sentinel. Stores
// use this to translate "unknown id" into an empty result instead of an error.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsConstraintViolation reports whether err is a rejected write per WrapError.
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv)
}

// IsTransient reports whether err is a connectivity or timeout failure per WrapError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
