package dataelement

import (
	"sync"

	"github.com/fleetsys/fleet/dataptr"
)

// subscriber mirrors vaf::ReceiverHandlerContainer<T>: an owning module
// name, the handler it registered, and whether the controller has
// currently activated it.
type subscriber[T any] struct {
	owner   string
	handler Handler[T]
	active  bool
}

// Handler is a subscriber callback invoked with the sample just published.
type Handler[T any] func(sample dataptr.ConstDataPtr[T])

// core is the single shared object a Provider and its Consumers publish
// into and read from in the in-process backend: one cached latest sample
// and one subscriber list, guarded by one lock, matching "the endpoint
// (in-proc) synchronously fans out ... and updates the cached latest
// value". Provider and Consumer are thin typed views over the same core.
type core[T any] struct {
	mu          sync.Mutex
	latest      dataptr.ConstDataPtr[T]
	subscribers []*subscriber[T]
	activeSet   map[string]struct{}
}

func newCore[T any]() *core[T] {
	return &core[T]{activeSet: make(map[string]struct{})}
}

// publish replaces the cached sample and returns the subscribers that are
// currently active, for the caller to invoke outside the lock. Shared by
// Provider.SetAllocated (in-process publish) and Consumer.Deliver
// (middleware reception callback replacing the cache on the consumer
// side), per §4.3/§4.5's identical "replace cache, fan out to active
// subscribers" step.
func (c *core[T]) publish(sample dataptr.ConstDataPtr[T]) []*subscriber[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = sample
	active := make([]*subscriber[T], 0, len(c.subscribers))
	for _, s := range c.subscribers {
		if s.active {
			active = append(active, s)
		}
	}
	return active
}

// StartEventHandlerForModule marks every subscriber owned by name as
// active and adds name to the endpoint's active set, satisfying
// controller.Activatable.
func (c *core[T]) StartEventHandlerForModule(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeSet[name] = struct{}{}
	for _, s := range c.subscribers {
		if s.owner == name {
			s.active = true
		}
	}
}

// StopEventHandlerForModule is the inverse of StartEventHandlerForModule.
func (c *core[T]) StopEventHandlerForModule(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeSet, name)
	for _, s := range c.subscribers {
		if s.owner == name {
			s.active = false
		}
	}
}
