// Package result provides a typed value-or-error carrier used throughout
// the runtime in place of panics or bare error returns on the hot path.
package result

import "fmt"

// ErrorCode classifies an Error the way the runtime's taxonomy does: OK for
// values that still carry diagnostic text, NotOk for ordinary recoverable
// failures, and Unknown for anything that didn't originate from a typed
// check.
type ErrorCode int

const (
	OK ErrorCode = iota + 1
	NotOk
	Unknown
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case NotOk:
		return "NOT_OK"
	default:
		return "UNKNOWN"
	}
}

// Error pairs a code with a human-readable message. Message returns the
// code-prefixed form, UserMessage the text alone.
type Error struct {
	Code ErrorCode
	Text string
}

func NewError(code ErrorCode, text string) Error {
	return Error{Code: code, Text: text}
}

func (e Error) Error() string {
	return e.Message()
}

func (e Error) Message() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

func (e Error) UserMessage() string {
	return e.Text
}

// Result carries either a value of T or an Error, never both.
type Result[T any] struct {
	value T
	err   Error
	ok    bool
}

// Ok builds a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err builds a failed Result.
func Err[T any](err Error) Result[T] {
	return Result[T]{err: err, ok: false}
}

func (r Result[T]) HasValue() bool {
	return r.ok
}

// Value returns the carried value. It panics if the Result holds an error;
// callers should check HasValue first, matching the original's
// value()-on-empty-expected fatal contract.
func (r Result[T]) Value() T {
	if !r.ok {
		panic("result: Value() called on an error Result: " + r.err.Message())
	}
	return r.value
}

func (r Result[T]) Error() Error {
	return r.err
}

// InspectError runs f against the error without consuming the Result, then
// returns the Result unchanged. No-op on success.
func (r Result[T]) InspectError(f func(Error)) Result[T] {
	if !r.ok {
		f(r.err)
	}
	return r
}

// AndThen chains a fallible transformation, short-circuiting on error.
func AndThen[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if !r.ok {
		return Err[U](r.err)
	}
	return f(r.value)
}
