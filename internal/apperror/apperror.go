// Package apperror defines the structured errors surfaced by the analytics services.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure for callers and for the HTTP layer.
type Kind string

const (
	KindInvalidRange     Kind = "invalid_range"
	KindInvalidInput     Kind = "invalid_input"
	KindStoreUnavailable Kind = "store_unavailable"
	KindNoData           Kind = "no_data"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// Error carries the kind, the failing operation and the request parameters needed to
// log or retry the call. Err keeps the cause for errors.Is/As but is never rendered to
// clients.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.NoData) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	InvalidRange     = &Error{Kind: KindInvalidRange}
	InvalidInput     = &Error{Kind: KindInvalidInput}
	StoreUnavailable = &Error{Kind: KindStoreUnavailable}
	NoData           = &Error{Kind: KindNoData}
	Canceled         = &Error{Kind: KindCanceled}
)

// New builds an Error.
func New(kind Kind, op, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Details: details}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, op, message string, details map[string]any, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Details: details, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailsOf returns the details attached to err, if any.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}
