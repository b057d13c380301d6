package dataelement

import (
	"github.com/fleetsys/fleet/dataptr"
	"github.com/fleetsys/fleet/result"
)

// Consumer is the subscribing side of a data-element: it reads the cached
// latest sample and registers handlers invoked on every publish while
// active.
type Consumer[T any] struct {
	core *core[T]
}

// GetAllocated returns the current cached sample, failing with "no
// sample" if nothing has been published yet.
func (c *Consumer[T]) GetAllocated() result.Result[dataptr.ConstDataPtr[T]] {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	if c.core.latest.Empty() {
		return result.Err[dataptr.ConstDataPtr[T]](result.NewError(result.NotOk, "no sample"))
	}
	return result.Ok(c.core.latest)
}

// Get returns a copy of the cached sample, or the zero value if absent.
func (c *Consumer[T]) Get() T {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	if c.core.latest.Empty() {
		var zero T
		return zero
	}
	return *c.core.latest.Get()
}

// RegisterHandler appends a subscriber record owned by owner. If owner is
// already active (its module is currently starting or operational) the
// handler is marked active immediately; otherwise it becomes active only
// once the controller activates handlers for that owner.
func (c *Consumer[T]) RegisterHandler(owner string, handler Handler[T]) {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	_, active := c.core.activeSet[owner]
	c.core.subscribers = append(c.core.subscribers, &subscriber[T]{owner: owner, handler: handler, active: active})
}

// Deliver replaces the cached sample with ptr (frozen to an immutable
// view) and fans out to every currently active subscriber. It is the
// consumer-side counterpart to Provider.SetAllocated, used by the
// middleware backend's reception callback once it has deserialized an
// incoming publish into a fresh DataPtr.
func (c *Consumer[T]) Deliver(ptr dataptr.DataPtr[T]) {
	sample := ptr.Freeze()
	active := c.core.publish(sample)
	for _, s := range active {
		s.handler(sample)
	}
}

// StartEventHandlerForModule and StopEventHandlerForModule let a Consumer
// be registered directly with the controller as an Activatable.
func (c *Consumer[T]) StartEventHandlerForModule(name string) { c.core.StartEventHandlerForModule(name) }
func (c *Consumer[T]) StopEventHandlerForModule(name string)  { c.core.StopEventHandlerForModule(name) }
