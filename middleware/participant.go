// Package middleware implements the runtime's cross-process binding: a
// Participant that multiplexes data-element topics and operation methods
// over a single net.Conn, plus a read-only HTTP introspection server
// riding alongside it. It is grounded on the original vaf_silkit.py code
// generator's topic/method naming and connection-point fields, reshaped
// around a plain length-prefixed CloudEvents envelope instead of an actual
// SilKit dependency, using the same CloudEvents envelope format the
// controller's own event bus uses internally.
package middleware

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/fleetsys/fleet/logger"
)

const maxFrameBytes = 64 << 20 // 64MiB, generous guard against a corrupt length prefix

// WireName builds the "<Interface>_<Member>" identifier §4.5 mandates for
// both data-element topics and operation RPC method names.
func WireName(interfaceName, member string) string {
	return interfaceName + "_" + member
}

// instanceExtension is the CloudEvents extension attribute name carrying
// the mandatory Instance=<Interface> label.
const instanceExtension = "instance"

const (
	suffixRequest  = ".request"
	suffixResponse = ".response"
)

// topicReceiver is satisfied by a middleware-side data-element consumer
// binding: it is handed the raw wire bytes for a publish it is subscribed
// to.
type topicReceiver interface {
	receiveWire(data []byte) error
}

// methodServer is satisfied by a middleware-side operation provider
// binding: it is handed a request's raw wire bytes and returns the
// response's raw wire bytes, or an error to report back to the caller.
type methodServer interface {
	serveWire(data []byte) ([]byte, error)
}

type pendingCall struct {
	deliver func(data []byte, transportErr error)
}

// Participant owns one underlying connection and dispatches every framed
// CloudEvents envelope that arrives on it to the topic subscriber or
// operation server registered for that envelope's type, or, for RPC
// responses, to the pending call awaiting that request ID.
type Participant struct {
	conn net.Conn
	log  logger.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	topics  map[string]topicReceiver
	methods map[string]methodServer
	pending map[string]pendingCall

	closed  chan struct{}
	closeMu sync.Mutex
}

// NewParticipant wraps conn. Call Run in its own goroutine to start
// dispatching inbound frames.
func NewParticipant(conn net.Conn, log logger.Logger) *Participant {
	if log == nil {
		log = logger.Default()
	}
	return &Participant{
		conn:    conn,
		log:     log,
		topics:  make(map[string]topicReceiver),
		methods: make(map[string]methodServer),
		pending: make(map[string]pendingCall),
		closed:  make(chan struct{}),
	}
}

func (p *Participant) registerTopic(name string, r topicReceiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[name] = r
}

func (p *Participant) registerMethod(name string, s methodServer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.methods[name] = s
}

// Close shuts down the underlying connection and unblocks Run.
func (p *Participant) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return p.conn.Close()
}

// Run reads framed envelopes from the connection until it is closed or a
// read fails. It should run on its own goroutine for the lifetime of the
// Participant.
func (p *Participant) Run() error {
	r := bufio.NewReader(p.conn)
	for {
		event, err := readFrame(r)
		if err != nil {
			select {
			case <-p.closed:
				return nil
			default:
			}
			return fmt.Errorf("middleware: read frame: %w", err)
		}
		p.dispatch(event)
	}
}

func (p *Participant) dispatch(event cloudevents.Event) {
	eventType := event.Type()

	switch {
	case strings.HasSuffix(eventType, suffixRequest):
		p.handleRequest(event)
	case strings.HasSuffix(eventType, suffixResponse):
		p.handleResponse(event)
	default:
		p.mu.Lock()
		receiver, ok := p.topics[eventType]
		p.mu.Unlock()
		if !ok {
			return
		}
		if err := receiver.receiveWire(event.Data()); err != nil {
			p.log.Warn("middleware: topic delivery failed", "topic", eventType, "error", err)
		}
	}
}

func (p *Participant) handleRequest(event cloudevents.Event) {
	method := strings.TrimSuffix(event.Type(), suffixRequest)
	p.mu.Lock()
	server, ok := p.methods[method]
	p.mu.Unlock()

	requestID, _ := event.Context.GetExtension("requestid")
	instance, _ := event.Context.GetExtension("instance")

	if !ok {
		p.sendResponse(method, fmt.Sprint(requestID), fmt.Sprint(instance), nil,
			fmt.Errorf("No operation handler registered for %s.", method))
		return
	}

	respData, err := server.serveWire(event.Data())
	p.sendResponse(method, fmt.Sprint(requestID), fmt.Sprint(instance), respData, err)
}

func (p *Participant) sendResponse(method, requestID, instance string, data []byte, callErr error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource("fleetrt/middleware")
	event.SetType(method + suffixResponse)
	event.SetExtension("requestid", requestID)
	event.SetExtension("instance", instance)
	if callErr != nil {
		event.SetExtension("error", callErr.Error())
	} else if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	if err := p.writeFrame(event); err != nil {
		p.log.Warn("middleware: failed writing RPC response", "method", method, "error", err)
	}
}

func (p *Participant) handleResponse(event cloudevents.Event) {
	requestID, _ := event.Context.GetExtension("requestid")
	key := fmt.Sprint(requestID)

	p.mu.Lock()
	call, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	if errText, err := event.Context.GetExtension("error"); err == nil && errText != nil && fmt.Sprint(errText) != "" {
		call.deliver(nil, fmt.Errorf("%v", errText))
		return
	}
	call.deliver(event.Data(), nil)
}

// publish writes a fire-and-forget data-element envelope.
func (p *Participant) publish(topic, instance string, data []byte) error {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource("fleetrt/middleware")
	event.SetType(topic)
	event.SetExtension(instanceExtension, instance)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return fmt.Errorf("middleware: encoding publish envelope: %w", err)
	}
	return p.writeFrame(event)
}

// call issues an RPC request and registers deliver to be invoked exactly
// once, either from handleResponse or, on a write failure, immediately.
func (p *Participant) call(method, instance string, data []byte, deliver func(data []byte, transportErr error)) {
	requestID := uuid.NewString()

	p.mu.Lock()
	p.pending[requestID] = pendingCall{deliver: deliver}
	p.mu.Unlock()

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource("fleetrt/middleware")
	event.SetType(method + suffixRequest)
	event.SetExtension("requestid", requestID)
	event.SetExtension(instanceExtension, instance)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		p.mu.Lock()
		delete(p.pending, requestID)
		p.mu.Unlock()
		deliver(nil, fmt.Errorf("middleware: encoding request envelope: %w", err))
		return
	}

	if err := p.writeFrame(event); err != nil {
		p.mu.Lock()
		delete(p.pending, requestID)
		p.mu.Unlock()
		deliver(nil, fmt.Errorf("middleware: writing request envelope: %w", err))
	}
}

func (p *Participant) writeFrame(event cloudevents.Event) error {
	payload, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("middleware: marshal envelope: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := p.conn.Write(header[:]); err != nil {
		return err
	}
	_, err = p.conn.Write(payload)
	return err
}

func readFrame(r *bufio.Reader) (cloudevents.Event, error) {
	var header [4]byte
	if _, err := readFull(r, header[:]); err != nil {
		return cloudevents.Event{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameBytes {
		return cloudevents.Event{}, fmt.Errorf("middleware: frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := readFull(r, payload); err != nil {
		return cloudevents.Event{}, err
	}

	event := cloudevents.NewEvent()
	if err := event.UnmarshalJSON(payload); err != nil {
		return cloudevents.Event{}, fmt.Errorf("middleware: unmarshal envelope: %w", err)
	}
	return event, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
