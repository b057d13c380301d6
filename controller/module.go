package controller

import (
	"github.com/fleetsys/fleet/executor"
	"github.com/fleetsys/fleet/result"
)

// Module is the minimal contract every application module satisfies: a
// stable name and the upstream module names it depends on. Everything else
// a module might do is expressed through the optional interfaces below,
// each checked with a type assertion (Initializer, Starter, Stopper, and
// so on).
type Module interface {
	Name() string
	Dependencies() []string
}

// Initializer modules run one-time setup before their first Start. Init
// failure aborts the whole startup walk and is reported as a critical
// error against the failing module.
type Initializer interface {
	Init() result.Result[struct{}]
}

// Starter modules do whatever is needed to begin producing output; for a
// module with periodic tasks this is typically nothing beyond registering
// those tasks, which will already have happened in the factory. For a
// task-less module this is where it calls Handle.SkipStarting.
type Starter interface {
	Start()
}

// Stopper modules release resources acquired in Start, mirroring the
// reverse-order teardown walk.
type Stopper interface {
	Stop()
}

// Deinitializer modules release resources acquired in Init.
type Deinitializer interface {
	Deinit()
}

// ErrorObserver lets a module intercept an error instead of taking the
// default action, which is to report it to the controller as critical.
type ErrorObserver interface {
	OnError(err result.Error)
}

// Factory constructs a Module given the Handle the controller has already
// prepared for it (the "token bundle" carrying its name, dependencies and
// per-module task scheduler). Any data-element or operation endpoints the
// module needs are wired in by the caller before the factory runs; the
// controller itself is agnostic to those.
type Factory func(h *Handle) (Module, error)

// Handle is a module's view of the controller: the subset of
// ExecutableControllerInterface a module body is allowed to call. It is
// constructed by the controller and passed to a module's Factory.
type Handle struct {
	ctrl *Controller
	name string
	exec *executor.ModuleExecutor
}

func (h *Handle) Name() string                        { return h.name }
func (h *Handle) Dependencies() []string               { return h.ctrl.dependenciesOf(h.name) }
func (h *Handle) Executor() *executor.ModuleExecutor   { return h.exec }

// ReportOperational signals that this module has finished starting and is
// ready to serve its dependents. The controller will not proceed to the
// next module in the dependency-ordered start walk until this (or
// SkipStarting) is called.
func (h *Handle) ReportOperational() {
	h.ctrl.reportOperational(h.name)
}

// SkipStarting declares this module task-less and therefore immediately
// operational. It is only valid when the module has registered zero
// periodic tasks; calling it otherwise is reported as a non-critical
// error and does not advance the module's state.
func (h *Handle) SkipStarting() {
	h.ctrl.skipStarting(h.name)
}

// ReportError routes a module-observed error through the controller. A
// critical error shuts the whole runtime down; a non-critical one is
// logged and forwarded to the configured observability hook.
func (h *Handle) ReportError(err result.Error, critical bool) {
	h.ctrl.reportError(h.name, err, critical)
}

// Base is an embeddable helper that satisfies the Module interface from a
// Handle, the way a generated module's base class would. Concrete modules
// embed Base and get Name/Dependencies for free, plus direct access to
// ReportOperational/SkipStarting/ReportError/Executor through the embedded
// *Handle.
type Base struct {
	*Handle
}

// NewBase wraps h for embedding into a concrete module type.
func NewBase(h *Handle) Base { return Base{Handle: h} }

