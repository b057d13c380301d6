package middleware

import (
	"github.com/fleetsys/fleet/codec"
	"github.com/fleetsys/fleet/future"
	"github.com/fleetsys/fleet/operation"
	"github.com/fleetsys/fleet/result"
)

// OperationServer is the provider side of a middleware-backed operation:
// incoming RPC requests are deserialized, run through an in-process
// operation.Provider (so the handler itself is backend-agnostic), and the
// result serialized back as the response.
type OperationServer[In, Out any] struct {
	provider *operation.Provider[In, Out]
	in       codec.Transformer[In]
	out      codec.Transformer[Out]
}

// NewOperationServer registers a server for the operation named member on
// interfaceName, delegating to provider for the actual handler logic.
func NewOperationServer[In, Out any](
	participant *Participant,
	interfaceName, member string,
	provider *operation.Provider[In, Out],
	in codec.Transformer[In],
	out codec.Transformer[Out],
) *OperationServer[In, Out] {
	s := &OperationServer[In, Out]{provider: provider, in: in, out: out}
	participant.registerMethod(WireName(interfaceName, member), s)
	return s
}

// serveWire implements methodServer.
func (s *OperationServer[In, Out]) serveWire(data []byte) ([]byte, error) {
	input, err := s.in.FromWire(data)
	if err != nil {
		return nil, err
	}
	res := s.provider.Invoke(input)
	if !res.HasValue() {
		return nil, res.Error()
	}
	return s.out.ToWire(res.Value())
}

// OperationClient is the consumer side of a middleware-backed operation:
// Call serializes the input, issues an RPC request carrying a promise's
// context, and returns a Future that becomes ready once the response (or a
// transport failure) arrives. Only when the request cannot be encoded or
// written is the Future already ready when Call returns; otherwise, unlike
// the in-process operation.Consumer, it is not.
type OperationClient[In, Out any] struct {
	participant *Participant
	method      string
	instance    string
	in          codec.Transformer[In]
	out         codec.Transformer[Out]
}

// NewOperationClient builds a client for the operation named member on
// interfaceName, wired to participant.
func NewOperationClient[In, Out any](participant *Participant, interfaceName, member string, in codec.Transformer[In], out codec.Transformer[Out]) *OperationClient[In, Out] {
	return &OperationClient[In, Out]{
		participant: participant,
		method:      WireName(interfaceName, member),
		instance:    interfaceName,
		in:          in,
		out:         out,
	}
}

// Call serializes in and issues the RPC request, returning a Future that
// is not necessarily ready at return time; callers on the scheduler's
// worker thread must poll it with IsReady rather than block.
func (c *OperationClient[In, Out]) Call(input In) *future.Future[Out] {
	promise, fut := future.New[Out]()

	data, err := c.in.ToWire(input)
	if err != nil {
		promise.SetError(result.NewError(result.NotOk, err.Error()))
		return fut
	}

	c.participant.call(c.method, c.instance, data, func(respData []byte, transportErr error) {
		if transportErr != nil {
			promise.SetError(result.NewError(result.NotOk, transportErr.Error()))
			return
		}
		value, err := c.out.FromWire(respData)
		if err != nil {
			promise.SetError(result.NewError(result.NotOk, err.Error()))
			return
		}
		promise.SetValue(value)
	})

	return fut
}
