package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store failures. Callers match them with errors.Is; the driver error stays in
// the chain for logs only.
var (
	// ErrUnavailable means the store could not be reached or did not answer in time.
	ErrUnavailable = errors.New("store unavailable")

	// ErrQuery means the store answered but rejected or failed the query.
	ErrQuery = errors.New("store query failed")
)

// StoreError tags a driver error with the failing operation.
type StoreError struct {
	Op   string
	Kind error // ErrUnavailable or ErrQuery
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify wraps err as a StoreError. Context errors pass through unchanged so
// cancellation stays distinguishable from store faults.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := ErrQuery
	if IsUnavailable(err) {
		kind = ErrUnavailable
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// IsUnavailable reports whether err is a connectivity or timeout fault rather than
// a query fault.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 57P: operator intervention (shutdown)
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:3] == "57P")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
