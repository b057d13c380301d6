// Package executor implements the runtime's single dedicated-thread,
// tick-driven task scheduler: TaskHandle, Executor, and the per-module
// ModuleExecutor facade. It is grounded on the original vaf::Executor
// (RunPeriodic insertion-order algorithm), reshaped around a dedicated
// worker goroutine driven by a ticker with per-task budget warnings, one
// queue per concern.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetsys/fleet/logger"
	"github.com/fleetsys/fleet/result"
)

// ErrorHandler receives a module error raised by a panicking task effect.
// critical is always true for panics, matching the "effect that panics is
// converted to a module error signal, critical=true" failure semantics.
type ErrorHandler func(owner string, err result.Error, critical bool)

// TaskHandle is one registered periodic task: its owner, its ordering
// constraints, and the nullary effect the executor invokes on schedule.
type TaskHandle struct {
	name            string
	owner           string
	periodTicks     uint64
	offsetTicks     uint64
	budget          time.Duration
	upstreamModules []string
	upstreamTasks   []string
	effect          func()

	active atomic.Bool
}

func (t *TaskHandle) Name() string              { return t.name }
func (t *TaskHandle) Owner() string             { return t.owner }
func (t *TaskHandle) Period() uint64            { return t.periodTicks }
func (t *TaskHandle) Offset() uint64            { return t.offsetTicks }
func (t *TaskHandle) Budget() time.Duration     { return t.budget }
func (t *TaskHandle) IsActive() bool            { return t.active.Load() }
func (t *TaskHandle) SetActive(active bool)     { t.active.Store(active) }
func (t *TaskHandle) UpstreamModules() []string { return t.upstreamModules }
func (t *TaskHandle) UpstreamTasks() []string   { return t.upstreamTasks }

func (t *TaskHandle) dueAt(tick uint64) bool {
	return tick%t.periodTicks == t.offsetTicks%t.periodTicks
}

// Executor owns the ordered task sequence and the dedicated worker
// goroutine that walks it once per tick.
type Executor struct {
	tickDuration time.Duration
	log          logger.Logger
	onError      ErrorHandler

	mu    sync.Mutex // guards tasks; only safe to mutate before Start
	tasks []*TaskHandle

	tick    atomic.Uint64
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an Executor ticking at tickDuration. onError is invoked (on
// the executor's own goroutine) whenever a task effect panics.
func New(tickDuration time.Duration, log logger.Logger, onError ErrorHandler) *Executor {
	if tickDuration <= 0 {
		panic("executor: tick duration must be positive")
	}
	if log == nil {
		log = logger.Default()
	}
	return &Executor{tickDuration: tickDuration, log: log, onError: onError}
}

func (e *Executor) TickDuration() time.Duration { return e.tickDuration }

// CurrentTick returns the monotonic tick counter.
func (e *Executor) CurrentTick() uint64 { return e.tick.Load() }

// RunPeriodic registers a new periodic task. period must be an exact,
// positive multiple of the executor's tick duration; a non-exact multiple
// is rejected outright rather than silently rounded down.
//
// The new handle is inserted at the earliest position p such that every
// handle at position >= p whose owner is in upstreamModules, or whose
// owner equals owner and whose name is in upstreamTasks, would otherwise
// violate ordering — i.e. all upstream handles end up strictly before p.
func (e *Executor) RunPeriodic(
	name string,
	period time.Duration,
	effect func(),
	owner string,
	upstreamModules []string,
	upstreamTasks []string,
	offset uint64,
	budget time.Duration,
) (*TaskHandle, error) {
	if owner == "" {
		return nil, fmt.Errorf("executor: %w", ErrEmptyOwner)
	}
	if effect == nil {
		return nil, fmt.Errorf("executor: task %q/%q: %w", owner, name, ErrNilEffect)
	}
	if period <= 0 || period%e.tickDuration != 0 {
		return nil, fmt.Errorf("executor: task %q/%q period %s: %w (tick duration %s)",
			owner, name, period, ErrInvalidPeriod, e.tickDuration)
	}
	periodTicks := uint64(period / e.tickDuration)
	if offset >= periodTicks {
		return nil, fmt.Errorf("executor: task %q/%q offset %d: %w (period-in-ticks %d)",
			owner, name, offset, ErrInvalidOffset, periodTicks)
	}

	handle := &TaskHandle{
		name:            name,
		owner:           owner,
		periodTicks:     periodTicks,
		offsetTicks:     offset,
		budget:          budget,
		upstreamModules: append([]string(nil), upstreamModules...),
		upstreamTasks:   append([]string(nil), upstreamTasks...),
		effect:          effect,
	}
	handle.active.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()

	if name != "" {
		for _, existing := range e.tasks {
			if existing.owner == owner && existing.name == name {
				return nil, fmt.Errorf("executor: task %q owner %q: %w", name, owner, ErrDuplicateTask)
			}
		}
	}

	isUpstream := func(candidate *TaskHandle) bool {
		for _, m := range upstreamModules {
			if candidate.owner == m {
				return true
			}
		}
		if candidate.owner == owner {
			for _, tn := range upstreamTasks {
				if candidate.name == tn {
					return true
				}
			}
		}
		return false
	}

	insertAt := 0
	for i := len(e.tasks) - 1; i >= 0; i-- {
		if isUpstream(e.tasks[i]) {
			insertAt = i + 1
			break
		}
	}

	e.tasks = append(e.tasks, nil)
	copy(e.tasks[insertAt+1:], e.tasks[insertAt:])
	e.tasks[insertAt] = handle

	return handle, nil
}

// Tasks returns a snapshot of the current task sequence, in execution
// order. Intended for introspection, not mutation.
func (e *Executor) Tasks() []*TaskHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*TaskHandle, len(e.tasks))
	copy(out, e.tasks)
	return out
}

// Start spawns the worker goroutine. Idempotent.
func (e *Executor) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.run(ctx)
}

// Stop signals the worker to exit at the next tick boundary and blocks
// until it does. In-flight task effects run to completion; they are not
// interrupted.
func (e *Executor) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	<-e.doneCh
}

func (e *Executor) run(ctx context.Context) {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := e.tick.Add(1)
			e.executeTick(tick)
		}
	}
}

func (e *Executor) executeTick(tick uint64) {
	e.mu.Lock()
	tasks := make([]*TaskHandle, len(e.tasks))
	copy(tasks, e.tasks)
	e.mu.Unlock()

	for _, task := range tasks {
		if !task.IsActive() || !task.dueAt(tick) {
			continue
		}
		e.executeTask(task)
	}
}

func (e *Executor) executeTask(task *TaskHandle) {
	defer func() {
		if r := recover(); r != nil {
			err := result.NewError(result.NotOk, fmt.Sprintf("task %q/%q panicked: %v", task.owner, task.name, r))
			e.log.Error("task effect panicked", "owner", task.owner, "task", task.name, "panic", r)
			if e.onError != nil {
				e.onError(task.owner, err, true)
			}
		}
	}()

	start := time.Now()
	task.effect()
	elapsed := time.Since(start)

	if task.budget > 0 && elapsed > task.budget {
		e.log.Warn("task exceeded its budget", "owner", task.owner, "task", task.name,
			"elapsed", elapsed, "budget", task.budget)
	}
}

// ModuleExecutor is the per-module facade that funnels a module's
// registrations through the shared Executor, automatically tagging each
// task with the module's name and upstream module list.
type ModuleExecutor struct {
	executor     *Executor
	name         string
	dependencies []string

	mu      sync.Mutex
	handles []*TaskHandle
}

// NewModuleExecutor builds the facade a Module uses to register its own
// periodic tasks without repeating its name/dependencies on every call.
func NewModuleExecutor(ex *Executor, name string, dependencies []string) *ModuleExecutor {
	return &ModuleExecutor{executor: ex, name: name, dependencies: append([]string(nil), dependencies...)}
}

// RunPeriodic registers an anonymous task whose only ordering constraint is
// the module's own declared dependencies.
func (m *ModuleExecutor) RunPeriodic(period time.Duration, effect func(), offset uint64, budget time.Duration) (*TaskHandle, error) {
	return m.RunPeriodicNamed("", period, effect, nil, offset, budget)
}

// RunPeriodicNamed registers a named task, optionally run-after other tasks
// owned by the same module.
func (m *ModuleExecutor) RunPeriodicNamed(
	name string,
	period time.Duration,
	effect func(),
	upstreamTasks []string,
	offset uint64,
	budget time.Duration,
) (*TaskHandle, error) {
	handle, err := m.executor.RunPeriodic(name, period, effect, m.name, m.dependencies, upstreamTasks, offset, budget)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.handles = append(m.handles, handle)
	m.mu.Unlock()
	return handle, nil
}

// Handles returns every task this module has registered.
func (m *ModuleExecutor) Handles() []*TaskHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TaskHandle, len(m.handles))
	copy(out, m.handles)
	return out
}
