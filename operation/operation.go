// Package operation implements request/response endpoints: a provider
// registers a single handler, a consumer invokes it and gets back a
// completion handle. It is grounded on the original ControlInterface-
// adjacent request/response contract described for operations and on the
// runtime's Promise/Future primitives from the future package.
package operation

import (
	"fmt"

	"github.com/fleetsys/fleet/future"
	"github.com/fleetsys/fleet/result"
)

// Handler answers a single request with an Output or an error.
type Handler[In, Out any] func(in In) result.Result[Out]

// Provider is the server side of an operation: exactly one handler may be
// registered at a time, matching "a single registered handler per
// provider".
type Provider[In, Out any] struct {
	name    string
	handler Handler[In, Out]
}

// NewProvider builds a Provider for the operation called name (used only
// in the provider's error messages, matching the wire naming convention's
// member name).
func NewProvider[In, Out any](name string) *Provider[In, Out] {
	return &Provider[In, Out]{name: name}
}

// RegisterHandler installs h as the operation's handler. At most one
// handler may be registered per provider instance; a second call fails
// with ErrHandlerAlreadyRegistered and leaves the original handler in
// effect.
func (p *Provider[In, Out]) RegisterHandler(h Handler[In, Out]) error {
	if p.handler != nil {
		return fmt.Errorf("operation: %q: %w", p.name, ErrHandlerAlreadyRegistered)
	}
	p.handler = h
	return nil
}

// Invoke runs the registered handler inline, for use by an in-process
// Consumer and by a middleware RPC server adapting a deserialized request.
func (p *Provider[In, Out]) Invoke(in In) result.Result[Out] {
	if p.handler == nil {
		return result.Err[Out](result.NewError(result.NotOk,
			fmt.Sprintf("No operation handler registered for %s.", p.name)))
	}
	return p.handler(in)
}

// Consumer is the client side of an in-process operation: every call
// invokes the provider's handler synchronously on the caller's goroutine
// and returns an already-ready Future.
type Consumer[In, Out any] struct {
	provider *Provider[In, Out]
}

// NewConsumer builds a Consumer bound directly to provider, the in-process
// binding: no serialization, no RPC round trip.
func NewConsumer[In, Out any](provider *Provider[In, Out]) *Consumer[In, Out] {
	return &Consumer[In, Out]{provider: provider}
}

// Call invokes the operation and returns a Future that is already ready
// by the time Call returns.
func (c *Consumer[In, Out]) Call(in In) *future.Future[Out] {
	res := c.provider.Invoke(in)
	if res.HasValue() {
		return future.Ready(res.Value())
	}
	return future.ReadyErr[Out](res.Error())
}
