package dataelement

import (
	"github.com/fleetsys/fleet/dataptr"
)

// Provider is the publishing side of a data-element: it allocates,
// populates and publishes samples, triggering synchronous fan-out to every
// currently active subscriber.
type Provider[T any] struct {
	core *core[T]
}

// NewEndpoint builds a fresh data-element and returns its provider and
// consumer views, sharing one underlying cached sample and subscriber
// list. Application wiring code hands the Provider to the publishing
// module and the Consumer to each subscribing module.
func NewEndpoint[T any]() (*Provider[T], *Consumer[T]) {
	c := newCore[T]()
	return &Provider[T]{core: c}, &Consumer[T]{core: c}
}

// Allocate returns a freshly owned, default-constructed writable handle.
func (p *Provider[T]) Allocate() dataptr.DataPtr[T] {
	return dataptr.Allocate[T]()
}

// SetAllocated consumes ptr, promotes it to the cached immutable sample,
// then invokes every currently active subscriber handler with it. Callers
// must not call SetAllocated or Set again from within a subscriber
// handler invoked by this call; re-entrant publish is undefined.
func (p *Provider[T]) SetAllocated(ptr dataptr.DataPtr[T]) {
	sample := ptr.Freeze()
	active := p.core.publish(sample)
	for _, s := range active {
		s.handler(sample)
	}
}

// Set is equivalent to Allocate + copy + SetAllocated.
func (p *Provider[T]) Set(value T) {
	p.SetAllocated(dataptr.WrapOwned(value))
}

// StartEventHandlerForModule and StopEventHandlerForModule let a Provider
// be registered directly with the controller as an Activatable when no
// separate Consumer handle is needed for that purpose.
func (p *Provider[T]) StartEventHandlerForModule(name string) { p.core.StartEventHandlerForModule(name) }
func (p *Provider[T]) StopEventHandlerForModule(name string)  { p.core.StopEventHandlerForModule(name) }
