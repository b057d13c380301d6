// Package future provides a single-writer, single-reader one-shot
// completion handle: Promise writes it, Future reads it. Built on a
// buffered channel rather than a sync.Cond so IsReady is a non-blocking
// peek, as required by callers that poll a middleware-backed operation
// from inside a scheduler tick instead of blocking on it.
package future

import (
	"runtime"
	"sync/atomic"

	"github.com/fleetsys/fleet/result"
)

type state[T any] struct {
	ch        chan result.Result[T]
	completed atomic.Bool
}

// Future is the read side of a one-shot completion handle.
type Future[T any] struct {
	st  *state[T]
	val result.Result[T]
	set bool
}

// promiseGuard is the object the finalizer below actually attaches to. It is
// reachable only through Promise, never through Future, so it is collected
// (and fires) exactly when every copy of the Promise itself becomes
// unreachable — not when the shared state does, which Future also pins.
type promiseGuard[T any] struct {
	st *state[T]
}

// Promise is the write side of a one-shot completion handle. Exactly one of
// SetValue or SetError must be called. A Promise that is garbage collected
// without either surfaces a NotOk error to the Future's reader — the
// finalizer below approximates the original's "dropped promise" contract,
// which C++ gets for free from destructors.
type Promise[T any] struct {
	guard *promiseGuard[T]
}

// New creates a linked Promise/Future pair.
func New[T any]() (Promise[T], *Future[T]) {
	st := &state[T]{ch: make(chan result.Result[T], 1)}
	guard := &promiseGuard[T]{st: st}
	runtime.SetFinalizer(guard, func(g *promiseGuard[T]) {
		if !g.st.completed.Swap(true) {
			g.st.ch <- result.Err[T](result.NewError(result.NotOk, "promise dropped without value"))
		}
	})
	return Promise[T]{guard: guard}, &Future[T]{st: st}
}

// Ready returns a Future that is already resolved to v. Used by in-process
// operation calls, which complete synchronously on the caller's goroutine.
func Ready[T any](v T) *Future[T] {
	p, f := New[T]()
	p.SetValue(v)
	return f
}

// ReadyErr returns a Future that is already resolved to an error.
func ReadyErr[T any](err result.Error) *Future[T] {
	p, f := New[T]()
	p.SetError(err)
	return f
}

func (p Promise[T]) SetValue(v T) {
	if p.guard.st.completed.Swap(true) {
		return
	}
	p.guard.st.ch <- result.Ok(v)
	runtime.SetFinalizer(p.guard, nil)
}

func (p Promise[T]) SetError(err result.Error) {
	if p.guard.st.completed.Swap(true) {
		return
	}
	p.guard.st.ch <- result.Err[T](err)
	runtime.SetFinalizer(p.guard, nil)
}

// IsReady reports whether GetResult would return immediately, without
// blocking. Safe to call from a scheduler tick.
func (f *Future[T]) IsReady() bool {
	if f.set {
		return true
	}
	select {
	case v := <-f.st.ch:
		f.val = v
		f.set = true
		return true
	default:
		return false
	}
}

// GetResult blocks until the Promise is fulfilled. Safe to call from an
// in-process operation's caller, where the Promise is always already
// fulfilled by the time the Future is returned. Middleware-backed futures
// must be polled with IsReady from inside a scheduler tick instead, per the
// runtime's suspension-point rules.
func (f *Future[T]) GetResult() result.Result[T] {
	if f.set {
		return f.val
	}
	f.val = <-f.st.ch
	f.set = true
	return f.val
}
