package middleware

import (
	"github.com/fleetsys/fleet/codec"
	"github.com/fleetsys/fleet/dataelement"
	"github.com/fleetsys/fleet/dataptr"
)

// Publisher is the provider-side, middleware-backed counterpart to
// dataelement.Provider: set/set_allocated serialize the sample through
// Transformer and publish it as a CloudEvents envelope instead of fanning
// out to in-process subscribers directly.
type Publisher[T any] struct {
	participant *Participant
	topic       string
	instance    string
	transformer codec.Transformer[T]
}

// NewPublisher registers a publisher for the data element named member on
// interfaceName, wired to participant.
func NewPublisher[T any](participant *Participant, interfaceName, member string, transformer codec.Transformer[T]) *Publisher[T] {
	return &Publisher[T]{
		participant: participant,
		topic:       WireName(interfaceName, member),
		instance:    interfaceName,
		transformer: transformer,
	}
}

// Allocate returns a freshly owned, default-constructed writable handle,
// matching dataelement.Provider.Allocate's contract.
func (p *Publisher[T]) Allocate() dataptr.DataPtr[T] {
	return dataptr.Allocate[T]()
}

// SetAllocated serializes ptr's value and publishes it on the wire.
func (p *Publisher[T]) SetAllocated(ptr dataptr.DataPtr[T]) error {
	data, err := p.transformer.ToWire(*ptr.Get())
	if err != nil {
		return err
	}
	return p.participant.publish(p.topic, p.instance, data)
}

// Set is equivalent to Allocate + copy + SetAllocated.
func (p *Publisher[T]) Set(value T) error {
	return p.SetAllocated(dataptr.WrapOwned(value))
}

// Subscriber is the consumer-side, middleware-backed counterpart to
// dataelement.Consumer: it registers itself with a Participant, and on
// every received publish deserializes the payload and delivers it into an
// embedded dataelement.Consumer so module code sees the exact same
// Get/GetAllocated/RegisterHandler surface regardless of backend.
type Subscriber[T any] struct {
	*dataelement.Consumer[T]
	transformer codec.Transformer[T]
}

// NewSubscriber builds a Subscriber for the data element named member on
// interfaceName and registers it with participant.
func NewSubscriber[T any](participant *Participant, interfaceName, member string, transformer codec.Transformer[T]) *Subscriber[T] {
	_, consumer := dataelement.NewEndpoint[T]()
	s := &Subscriber[T]{Consumer: consumer, transformer: transformer}
	participant.registerTopic(WireName(interfaceName, member), s)
	return s
}

// receiveWire implements topicReceiver: deserialize and deliver into the
// embedded dataelement.Consumer, which replaces the cache and fans out to
// active subscribers exactly as the in-process backend does.
func (s *Subscriber[T]) receiveWire(data []byte) error {
	value, err := s.transformer.FromWire(data)
	if err != nil {
		return err
	}
	s.Deliver(dataptr.WrapOwned(value))
	return nil
}
