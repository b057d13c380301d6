// Package controller implements the runtime's lifecycle controller: module
// registration, dependency-ordered DoInitialize/DoStart/DoShutdown, the
// operational handshake, and error routing. It follows an
// application.go-style resolveDependencies topological sort and
// Init/Start/Stop ordering, and is grounded on the original
// controller_interface.h/.cpp and executable_controller_interface.h
// (ReportOperational, SkipStartingOfModule, ReportError, the
// event-handler activation protocol).
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetsys/fleet/executor"
	"github.com/fleetsys/fleet/logger"
	"github.com/fleetsys/fleet/result"
)

// Activatable is satisfied by data-element provider/consumer endpoints.
// The controller calls StartEventHandlerForModule/StopEventHandlerForModule
// on every registered endpoint whenever a module becomes operational or is
// torn down, and each endpoint filters by owner internally.
type Activatable interface {
	StartEventHandlerForModule(owner string)
	StopEventHandlerForModule(owner string)
}

// OnErrorHook observes every error the controller routes, critical or not,
// after the controller has logged it and emitted its error event; for a
// critical error the module's move to SHUTDOWN follows the hook. It is the runtime's single non-CloudEvents
// observability seam, e.g. for feeding a metrics counter.
type OnErrorHook func(moduleName string, err result.Error, critical bool)

type moduleRecord struct {
	name         string
	dependencies []string
	module       Module
	handle       *Handle

	mu            sync.Mutex
	state         ModuleState
	operationalCh chan struct{}
	closedOnce    sync.Once
}

func (r *moduleRecord) setState(s ModuleState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// transitionModule moves rec to next, logging a warning if the move would
// violate the lifecycle's forward-or-shutdown-only invariant. It still makes
// the move either way: the controller is the state's sole writer, and a
// violation here means a coding mistake in the transition call sites above,
// not a condition worth blocking on.
func (c *Controller) transitionModule(rec *moduleRecord, next ModuleState) {
	if cur := rec.getState(); !canTransition(cur, next) {
		c.log.Warn("module lifecycle transition skipped a state", "module", rec.name, "from", cur, "to", next)
	}
	rec.setState(next)
}

func (r *moduleRecord) getState() ModuleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *moduleRecord) closeOperational() {
	r.closedOnce.Do(func() { close(r.operationalCh) })
}

// Controller is the runtime's single source of truth for module state. It
// owns the shared Executor and is the exclusive writer of every module's
// ModuleState.
type Controller struct {
	log      logger.Logger
	executor *executor.Executor
	onError  OnErrorHook
	subject  *Subject

	mu       sync.Mutex
	order    []string // registration order; DoInitialize computes the dependency order into startOrder
	records  map[string]*moduleRecord
	started  bool

	startOrder []string

	endpointsMu sync.Mutex
	endpoints   []Activatable

	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

// New builds a Controller driving a fresh Executor at tickDuration.
// onError may be nil.
func New(tickDuration time.Duration, log logger.Logger, onError OnErrorHook) *Controller {
	if log == nil {
		log = logger.Default()
	}
	c := &Controller{
		log:          log,
		onError:      onError,
		records:      make(map[string]*moduleRecord),
		subject:      NewSubject(),
		shutdownDone: make(chan struct{}),
	}
	c.executor = executor.New(tickDuration, log, c.onTaskError)
	return c
}

// Subject returns the CloudEvents event source modules and external
// observers can subscribe to for lifecycle and error notifications.
func (c *Controller) Subject() *Subject { return c.subject }

// Executor exposes the shared Executor, primarily so application wiring
// code can start/stop it alongside the controller in tests.
func (c *Controller) Executor() *executor.Executor { return c.executor }

// RegisterEndpoint adds a data-element endpoint to the set notified when a
// module becomes operational and when it is shut down. Safe to call at any
// time before DoStart.
func (c *Controller) RegisterEndpoint(a Activatable) {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	c.endpoints = append(c.endpoints, a)
}

func (c *Controller) dependenciesOf(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.records[name]; ok {
		return append([]string(nil), r.dependencies...)
	}
	return nil
}

// Register constructs a module via factory and adds it to the registry.
// name must be unique and non-empty; dependencies must name modules that
// are (or will be) registered before DoInitialize runs; a module may not
// depend on itself. All of these are fatal configuration errors.
func (c *Controller) Register(name string, dependencies []string, factory Factory) error {
	if name == "" {
		return ErrEmptyModuleName
	}
	for _, d := range dependencies {
		if d == name {
			return fmt.Errorf("%w: %q", ErrSelfDependency, name)
		}
	}

	c.mu.Lock()
	if _, exists := c.records[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateModuleName, name)
	}
	c.mu.Unlock()

	handle := &Handle{
		ctrl: c,
		name: name,
		exec: executor.NewModuleExecutor(c.executor, name, dependencies),
	}
	module, err := factory(handle)
	if err != nil {
		return fmt.Errorf("controller: constructing module %q: %w", name, err)
	}

	rec := &moduleRecord{
		name:          name,
		dependencies:  append([]string(nil), dependencies...),
		module:        module,
		handle:        handle,
		state:         Uninitialized,
		operationalCh: make(chan struct{}),
	}

	c.mu.Lock()
	c.records[name] = rec
	c.order = append(c.order, name)
	c.mu.Unlock()

	return nil
}

// DoInitialize validates the dependency graph (unknown dependencies, cycles)
// and computes the dependency-ordered start sequence. It does not call any
// module lifecycle methods; those happen in DoStart.
func (c *Controller) DoInitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range c.order {
		for _, dep := range c.records[name].dependencies {
			if _, ok := c.records[dep]; !ok {
				return fmt.Errorf("%w: module %q depends on %q", ErrUnknownDependency, name, dep)
			}
		}
	}

	order, err := topoSort(c.order, c.records)
	if err != nil {
		return err
	}
	c.startOrder = order
	return nil
}

// topoSort returns names in dependency order (each name after all of its
// dependencies): a depth-first visit with a three-color mark for cycle
// detection.
func topoSort(names []string, records map[string]*moduleRecord) ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	mark := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch mark[name] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: involving %q", ErrCircularDependency, name)
		}
		mark[name] = visiting
		for _, dep := range records[name].dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		mark[name] = visited
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DoStart walks modules in dependency order. For each it calls Init (if
// present), transitions it to STARTING, calls Start (if present), and then
// blocks until the module reports operational or skips starting. Any
// failure or critical error aborts the walk.
func (c *Controller) DoStart() error {
	c.mu.Lock()
	order := append([]string(nil), c.startOrder...)
	c.started = true
	c.mu.Unlock()

	c.executor.Start(context.Background())

	for _, name := range order {
		rec := c.recordFor(name)
		if rec.getState() == Shutdown {
			return fmt.Errorf("controller: module %q shut down before it could start", name)
		}

		if initer, ok := rec.module.(Initializer); ok {
			res := initer.Init()
			if !res.HasValue() {
				err := res.Error()
				c.reportError(name, err, true)
				return fmt.Errorf("%w: %q: %s", ErrModuleInitFailed, name, err.Message())
			}
		}
		c.transitionModule(rec, NotOperational)

		c.transitionModule(rec, Starting)
		c.subject.Emit(EventModuleStarting, name, "")
		if starter, ok := rec.module.(Starter); ok {
			starter.Start()
		}

		<-rec.operationalCh

		if rec.getState() == Shutdown {
			return fmt.Errorf("controller: module %q shut down during startup", name)
		}

		c.activateModule(name)
	}

	return nil
}

func (c *Controller) activateModule(name string) {
	c.endpointsMu.Lock()
	endpoints := append([]Activatable(nil), c.endpoints...)
	c.endpointsMu.Unlock()
	for _, ep := range endpoints {
		ep.StartEventHandlerForModule(name)
	}
}

func (c *Controller) deactivateModule(name string) {
	c.endpointsMu.Lock()
	endpoints := append([]Activatable(nil), c.endpoints...)
	c.endpointsMu.Unlock()
	for _, ep := range endpoints {
		ep.StopEventHandlerForModule(name)
	}
}

// DoShutdown stops the executor and walks every module in reverse start
// order, calling Stop and Deinit. Safe to call more than once; only the
// first call does anything.
func (c *Controller) DoShutdown() error {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)
		c.executor.Stop()

		c.mu.Lock()
		order := append([]string(nil), c.startOrder...)
		c.mu.Unlock()

		for i := len(order) - 1; i >= 0; i-- {
			name := order[i]
			rec := c.recordFor(name)
			c.deactivateModule(name)
			if stopper, ok := rec.module.(Stopper); ok {
				stopper.Stop()
			}
			if deiniter, ok := rec.module.(Deinitializer); ok {
				deiniter.Deinit()
			}
			c.transitionModule(rec, Shutdown)
			rec.closeOperational()
			c.subject.Emit(EventModuleShutdown, name, "")
		}
	})
	<-c.shutdownDone
	return nil
}

func (c *Controller) recordFor(name string) *moduleRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[name]
}

// StateOf reports a registered module's current lifecycle state.
func (c *Controller) StateOf(name string) (ModuleState, bool) {
	rec := c.recordFor(name)
	if rec == nil {
		return Uninitialized, false
	}
	return rec.getState(), true
}

// ModuleStatus is a snapshot of one module's identity and lifecycle state,
// for introspection.
type ModuleStatus struct {
	Name  string
	State ModuleState
}

// ModuleStatuses returns a snapshot of every registered module's current
// state, in registration order.
func (c *Controller) ModuleStatuses() []ModuleStatus {
	c.mu.Lock()
	names := append([]string(nil), c.order...)
	c.mu.Unlock()

	out := make([]ModuleStatus, 0, len(names))
	for _, name := range names {
		rec := c.recordFor(name)
		out = append(out, ModuleStatus{Name: name, State: rec.getState()})
	}
	return out
}

func (c *Controller) reportOperational(name string) {
	rec := c.recordFor(name)
	if rec == nil {
		return
	}
	if rec.getState() != Starting {
		return
	}
	c.transitionModule(rec, Operational)
	rec.closeOperational()
	c.subject.Emit(EventModuleOperational, name, "")
	c.log.Info("module operational", "module", name)
}

func (c *Controller) skipStarting(name string) {
	rec := c.recordFor(name)
	if rec == nil {
		return
	}
	if len(rec.handle.exec.Handles()) != 0 {
		c.reportError(name, result.NewError(result.NotOk,
			fmt.Sprintf("%s: module %q has %d registered tasks", ErrSkipStartWithTasks, name, len(rec.handle.exec.Handles()))),
			false)
		return
	}
	c.reportOperational(name)
}

func (c *Controller) reportError(name string, err result.Error, critical bool) {
	c.log.Error("module error", "module", name, "critical", critical, "error", err.Message())
	c.subject.EmitError(name, err, critical)
	if c.onError != nil {
		c.onError(name, err, critical)
	}
	if !critical {
		return
	}

	rec := c.recordFor(name)
	if rec != nil {
		c.transitionModule(rec, Shutdown)
		rec.closeOperational()
	}
	go c.DoShutdown()
}

// onTaskError is the Executor's ErrorHandler: it delivers a panicking
// task's error to its owning module's OnError, or, absent that, reports it
// to the controller directly as critical — the module-base default.
func (c *Controller) onTaskError(owner string, err result.Error, critical bool) {
	rec := c.recordFor(owner)
	if rec == nil {
		c.reportError(owner, err, critical)
		return
	}
	if observer, ok := rec.module.(ErrorObserver); ok {
		observer.OnError(err)
		return
	}
	c.reportError(owner, err, critical)
}
