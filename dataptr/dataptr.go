// Package dataptr provides owning and shared handles around sampled data
// values, mirroring the original DataPtr<T>/ConstDataPtr<T> contract:
// dereferencing an empty pointer is a fatal, logged abort rather than a
// returned error, because it indicates a programming mistake in generated
// or hand-written module code, not a recoverable runtime condition.
package dataptr

import "github.com/fleetsys/fleet/logger"

// FatalLogger is the minimal surface dataptr needs from a logger to report
// a fatal dereference before aborting. logger.Logger satisfies it.
type FatalLogger interface {
	Error(msg string, args ...any)
}

var abortLogger FatalLogger = logger.Default()

// SetAbortLogger overrides the logger used to report empty-pointer
// dereferences. Intended for tests that want to assert on the log line
// instead of letting the process exit.
func SetAbortLogger(l FatalLogger) {
	abortLogger = l
}

// DataPtr is an owning, movable, type-erased handle around a pointer to T.
// It is produced by Allocate and consumed by set_allocated-style calls on a
// data-element provider endpoint.
type DataPtr[T any] struct {
	v *T
}

// Allocate returns a freshly owned, default-constructed DataPtr.
func Allocate[T any]() DataPtr[T] {
	var zero T
	return DataPtr[T]{v: &zero}
}

// WrapOwned builds a DataPtr from an already-constructed value, useful when
// a provider wants to fill in fields before publishing.
func WrapOwned[T any](v T) DataPtr[T] {
	return DataPtr[T]{v: &v}
}

func (d DataPtr[T]) Empty() bool {
	return d.v == nil
}

// Get dereferences the pointer, aborting the process if it is empty.
func (d DataPtr[T]) Get() *T {
	if d.v == nil {
		abortLogger.Error("DataPtr is empty")
		panic("dataptr: dereferenced an empty DataPtr")
	}
	return d.v
}

// Freeze converts an owning DataPtr into a shared, immutable ConstDataPtr.
// Used by set_allocated to promote a just-written sample into the cached
// latest value without copying it again.
func (d DataPtr[T]) Freeze() ConstDataPtr[T] {
	return ConstDataPtr[T]{v: d.v}
}

// ConstDataPtr is a shared, cloneable, immutable view over a sampled value.
// Multiple consumers may hold the same ConstDataPtr; none may mutate through
// it, and a publish that replaces the cached sample does not affect a
// ConstDataPtr captured before that publish (immutable-after-publish).
type ConstDataPtr[T any] struct {
	v *T
}

func (d ConstDataPtr[T]) Empty() bool {
	return d.v == nil
}

// Get dereferences the pointer, aborting the process if it is empty.
func (d ConstDataPtr[T]) Get() *T {
	if d.v == nil {
		abortLogger.Error("ConstDataPtr is empty")
		panic("dataptr: dereferenced an empty ConstDataPtr")
	}
	return d.v
}
