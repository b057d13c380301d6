package controller

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/fleetsys/fleet/result"
)

// Event type vocabulary for CloudEvents emitted by the controller, using a
// reverse-domain-notation const block scoped to the runtime's own
// lifecycle rather than a generic application framework.
const (
	EventModuleStarting    = "com.fleetrt.module.starting"
	EventModuleOperational = "com.fleetrt.module.operational"
	EventModuleShutdown    = "com.fleetrt.module.shutdown"
	EventModuleError       = "com.fleetrt.module.error"
)

const eventSource = "fleetrt/controller"

// Observer receives CloudEvents emitted by a Subject. Implementations
// should return quickly; NotifyObservers does not wait for slow observers.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// Subject is the controller's CloudEvents event source: the STARTING,
// OPERATIONAL and SHUTDOWN transitions and every error report are emitted
// as a cloudevents.Event that
// registered observers can subscribe to, independent of whatever transport
// (if any) the application layers on top.
type Subject struct {
	mu        sync.RWMutex
	observers map[string]registeredObserver
}

type registeredObserver struct {
	observer   Observer
	eventTypes map[string]struct{} // empty means "all types"
}

// NewSubject builds an empty Subject.
func NewSubject() *Subject {
	return &Subject{observers: make(map[string]registeredObserver)}
}

// RegisterObserver adds an observer, optionally filtered to specific event
// types. An empty eventTypes list means "receive everything".
func (s *Subject) RegisterObserver(observer Observer, eventTypes ...string) {
	filter := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[observer.ObserverID()] = registeredObserver{observer: observer, eventTypes: filter}
}

// UnregisterObserver removes an observer. Idempotent.
func (s *Subject) UnregisterObserver(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, observer.ObserverID())
}

// NotifyObservers delivers event to every registered observer whose filter
// matches, each on its own goroutine, so a slow or misbehaving observer
// cannot delay the controller's lifecycle walk.
func (s *Subject) NotifyObservers(ctx context.Context, event cloudevents.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, reg := range s.observers {
		if len(reg.eventTypes) > 0 {
			if _, ok := reg.eventTypes[event.Type()]; !ok {
				continue
			}
		}
		go reg.observer.OnEvent(ctx, event) //nolint:errcheck
	}
}

// Emit builds and delivers a lifecycle CloudEvent for moduleName, with an
// optional free-text detail payload.
func (s *Subject) Emit(eventType, moduleName, detail string) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	_ = event.SetData(cloudevents.ApplicationJSON, map[string]string{
		"module": moduleName,
		"detail": detail,
	})
	s.NotifyObservers(context.Background(), event)
}

// EmitError builds and delivers an error CloudEvent, carrying the error's
// code, message and criticality.
func (s *Subject) EmitError(moduleName string, err result.Error, critical bool) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(eventSource)
	event.SetType(EventModuleError)
	event.SetTime(time.Now())
	_ = event.SetData(cloudevents.ApplicationJSON, map[string]any{
		"module":   moduleName,
		"code":     err.Code.String(),
		"message":  err.UserMessage(),
		"critical": critical,
	})
	s.NotifyObservers(context.Background(), event)
}
