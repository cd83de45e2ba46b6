package model

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per category. Every *Error unwraps to one of these,
// so callers can use errors.Is(err, model.ErrNotFound).
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrInvariant  = errors.New("invariant violation")
	ErrOutOfRange = errors.New("out of range")
	ErrInUse      = errors.New("in use")
)

// Code categorizes catalog errors.
type Code string

const (
	// CodeNotFound: a lookup by unique key matched nothing. Never retried.
	CodeNotFound Code = "NOT_FOUND"

	// CodeDuplicate: the entity already exists. Surfaced, never merged.
	CodeDuplicate Code = "DUPLICATE"

	// CodeInvariant: the current unit of work must be rolled back.
	CodeInvariant Code = "INVARIANT_VIOLATION"

	// CodeOutOfRange: a quark interval lies outside the manifest bounds.
	CodeOutOfRange Code = "OUT_OF_RANGE"

	// CodeInUse: a delete would drop the last reference to shared data.
	// Recoverable by supplying force or removing the reference first.
	CodeInUse Code = "IN_USE"
)

var sentinels = map[Code]error{
	CodeNotFound:   ErrNotFound,
	CodeDuplicate:  ErrDuplicate,
	CodeInvariant:  ErrInvariant,
	CodeOutOfRange: ErrOutOfRange,
	CodeInUse:      ErrInUse,
}

// Error is the structured error returned by catalog layers.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the operation that failed, e.g. "delete location".
	Op string

	// Entity names the table or entity kind involved.
	Entity string

	// Key identifies the record (name, id or content key).
	Key string

	// Message is a human-readable description.
	Message string

	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Entity != "" || e.Key != "" {
		msg += fmt.Sprintf(" (%s %s)", e.Entity, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the category sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Code]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound creates a CodeNotFound error.
func NotFound(op, entity string, key any) *Error {
	return &Error{Code: CodeNotFound, Op: op, Entity: entity, Key: fmt.Sprint(key)}
}

// Duplicate creates a CodeDuplicate error.
func Duplicate(op, entity string, key any) *Error {
	return &Error{Code: CodeDuplicate, Op: op, Entity: entity, Key: fmt.Sprint(key), Message: "already exists"}
}

// Invariant creates a CodeInvariant error.
func Invariant(op, format string, args ...any) *Error {
	return &Error{Code: CodeInvariant, Op: op, Message: fmt.Sprintf(format, args...)}
}

// OutOfRange creates a CodeOutOfRange error.
func OutOfRange(op, format string, args ...any) *Error {
	return &Error{Code: CodeOutOfRange, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InUse creates a CodeInUse error.
func InUse(op, entity string, key any, format string, args ...any) *Error {
	return &Error{Code: CodeInUse, Op: op, Entity: entity, Key: fmt.Sprint(key), Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err is a duplicate error.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }

// IsOutOfRange reports whether err is an out-of-range error.
func IsOutOfRange(err error) bool { return errors.Is(err, ErrOutOfRange) }

// IsInUse reports whether err is an in-use (permission class) error.
func IsInUse(err error) bool { return errors.Is(err, ErrInUse) }
