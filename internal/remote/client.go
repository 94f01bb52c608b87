// Package remote is a thin table-oriented client for the authoritative relational store.
//
// Every operation returns a *StoreError on failure so the repository layer can decide, as a
// visible branch, whether to fall back to the local cache.
package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the remote store could not be reached.
	ErrUnavailable = errors.New("remote: store unavailable")
	// ErrNoRows indicates an update or delete matched nothing.
	ErrNoRows = errors.New("remote: no rows matched")
	// ErrEmptyFilter guards against unfiltered updates and deletes.
	ErrEmptyFilter = errors.New("remote: filter required")
)

// Kind classifies a remote failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindRejected    Kind = "rejected"
	KindNotFound    Kind = "not_found"
)

// StoreError describes a failed remote operation.
type StoreError struct {
	Op    string
	Table string
	Kind  Kind
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("remote %s %s: %s: %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or "" when err is not a StoreError.
func KindOf(err error) Kind {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return ""
}

func newStoreError(op, table string, err error) *StoreError {
	kind := KindRejected
	switch {
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		kind = KindUnavailable
	case errors.Is(err, ErrNoRows):
		kind = KindNotFound
	}
	return &StoreError{Op: op, Table: table, Kind: kind, Err: err}
}

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query narrows a Select.
type Query struct {
	Filters []Filter
	// Since keeps rows whose SinceColumn is at or after the given value.
	SinceColumn string
	Since       any
	Order       string
	Limit       int
}

// Client is the table-oriented contract of the remote store.
type Client interface {
	Select(ctx context.Context, table string, query Query, dest any) error
	Insert(ctx context.Context, table string, rows any) error
	Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
}
